package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	allPayments = []PaymentStatus{PaymentPending, PaymentSuccess, PaymentFailed}
	allQR       = []QRStatus{QRNone, QRActive, QRUsed, QRRejected}
	allStatuses = []Status{StatusPending, StatusServed, StatusCompleted, StatusCancelled}
)

func forEachCombination(fn func(o Order)) {
	for _, p := range allPayments {
		for _, q := range allQR {
			for _, s := range allStatuses {
				fn(Order{ID: "o-1", PaymentStatus: p, QRStatus: q, OrderStatus: s})
			}
		}
	}
}

func TestCanonical_Rules(t *testing.T) {
	tests := []struct {
		name  string
		order Order
		want  UIState
		rule  int
	}{
		{"failed payment", Order{PaymentStatus: PaymentFailed, QRStatus: QRActive, OrderStatus: StatusServed}, StateRejected, 1},
		{"pending and rejected qr", Order{PaymentStatus: PaymentPending, QRStatus: QRRejected, OrderStatus: StatusPending}, StateRejected, 1},
		{"cancelled", Order{PaymentStatus: PaymentSuccess, QRStatus: QRActive, OrderStatus: StatusCancelled}, StateCancelled, 2},
		{"cancelled while pending", Order{PaymentStatus: PaymentPending, QRStatus: QRNone, OrderStatus: StatusCancelled}, StateCancelled, 2},
		{"pending payment", Order{PaymentStatus: PaymentPending, QRStatus: QRNone, OrderStatus: StatusPending}, StatePendingPayment, 3},
		{"qr active", Order{PaymentStatus: PaymentSuccess, QRStatus: QRActive, OrderStatus: StatusPending}, StateQRActive, 4},
		{"qr active ignores served", Order{PaymentStatus: PaymentSuccess, QRStatus: QRActive, OrderStatus: StatusServed}, StateQRActive, 4},
		{"awaiting qr", Order{PaymentStatus: PaymentSuccess, QRStatus: QRNone, OrderStatus: StatusPending}, StateAwaitingQR, 5},
		{"used qr", Order{PaymentStatus: PaymentSuccess, QRStatus: QRUsed, OrderStatus: StatusServed}, StateScanned, 6},
		{"completed order", Order{PaymentStatus: PaymentSuccess, QRStatus: QRNone, OrderStatus: StatusCompleted}, StateScanned, 6},
		{"served", Order{PaymentStatus: PaymentSuccess, QRStatus: QRNone, OrderStatus: StatusServed}, StateCompleted, 7},
		{"success with rejected qr and served", Order{PaymentStatus: PaymentSuccess, QRStatus: QRRejected, OrderStatus: StatusServed}, StateCompleted, 7},
		{"fallback", Order{PaymentStatus: PaymentSuccess, QRStatus: QRRejected, OrderStatus: StatusUnset}, StateAwaitingQR, FallbackRule},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Explain(tt.order)
			assert.Equal(t, tt.want, d.State)
			assert.Equal(t, tt.rule, d.Rule)
			assert.Equal(t, tt.want, Canonical(tt.order))
		})
	}
}

func TestCanonical_FailedAlwaysRejected(t *testing.T) {
	forEachCombination(func(o Order) {
		if o.PaymentStatus == PaymentFailed {
			assert.Equal(t, StateRejected, Canonical(o), "%+v", o)
		}
	})
}

func TestCanonical_CancelledUnlessFailed(t *testing.T) {
	forEachCombination(func(o Order) {
		if o.OrderStatus != StatusCancelled || o.PaymentStatus == PaymentFailed {
			return
		}
		if o.PaymentStatus == PaymentPending && o.QRStatus == QRRejected {
			// Rule 1 takes precedence.
			assert.Equal(t, StateRejected, Canonical(o))
			return
		}
		assert.Equal(t, StateCancelled, Canonical(o), "%+v", o)
	})
}

func TestCanonical_TotalOnMalformedInput(t *testing.T) {
	inputs := []Order{
		{},
		{ID: "x"},
		{PaymentStatus: "garbage"},
		{PaymentStatus: PaymentSuccess},
		{QRStatus: QRUsed},
		{OrderStatus: StatusServed},
	}
	for _, o := range inputs {
		assert.NotPanics(t, func() {
			s := Canonical(o)
			assert.NotEqual(t, StateUnknown, s)
		})
	}
	assert.Equal(t, StateAwaitingQR, Canonical(Order{}))
}

func TestCanonical_Deterministic(t *testing.T) {
	forEachCombination(func(o Order) {
		first := Canonical(o)
		for i := 0; i < 3; i++ {
			require.Equal(t, first, Canonical(o))
		}
	})
}

func TestShouldShowToken_Exhaustive(t *testing.T) {
	count := 0
	forEachCombination(func(o Order) {
		count++
		want := o.PaymentStatus == PaymentSuccess && o.QRStatus == QRActive
		assert.Equal(t, want, ShouldShowToken(o), "%+v", o)
	})
	assert.Equal(t, 48, count)
}

func TestIsTerminal(t *testing.T) {
	terminal := map[UIState]bool{
		StateCompleted: true,
		StateRejected:  true,
		StateCancelled: true,
	}
	for _, s := range States() {
		assert.Equal(t, terminal[s], IsTerminal(s), s)
	}
	assert.False(t, IsTerminal(StateUnknown))
}

func TestCanNavigateBack(t *testing.T) {
	for _, s := range States() {
		assert.Equal(t, s != StateQRActive, CanNavigateBack(s), s)
	}
}

func TestParseUIState(t *testing.T) {
	assert.Equal(t, StateQRActive, ParseUIState(" qr_active "))
	assert.Equal(t, StateUnknown, ParseUIState("DONE"))
	for _, s := range States() {
		assert.Equal(t, s, ParseUIState(string(s)))
	}
}

func TestLifecycle_SingleFieldWrites(t *testing.T) {
	o := Order{ID: "o-42", PaymentStatus: PaymentPending, QRStatus: QRNone, OrderStatus: StatusPending}
	assert.Equal(t, StatePendingPayment, Canonical(o))

	o.PaymentStatus = PaymentSuccess
	o.QRStatus = QRActive
	assert.Equal(t, StateQRActive, Canonical(o))
	assert.True(t, ShouldShowToken(o))
	assert.False(t, CanNavigateBack(Canonical(o)))

	// Rule 5 precedes rule 6: a used code on a still pending order reads
	// as awaiting until the serving side moves the order on.
	o.QRStatus = QRUsed
	assert.Equal(t, Decision{State: StateAwaitingQR, Rule: 5}, Explain(o))
	assert.False(t, ShouldShowToken(o))

	o.OrderStatus = StatusServed
	assert.Equal(t, Decision{State: StateScanned, Rule: 6}, Explain(o))
}

func TestLifecycle_ScanThenServe(t *testing.T) {
	o := Order{ID: "o-43", PaymentStatus: PaymentSuccess, QRStatus: QRActive, OrderStatus: StatusPending}
	assert.Equal(t, StateQRActive, Canonical(o))

	o.QRStatus = QRUsed
	o.OrderStatus = StatusCompleted
	assert.Equal(t, StateScanned, Canonical(o))
	assert.True(t, CanNavigateBack(Canonical(o)))

	cash := Order{ID: "o-44", PaymentStatus: PaymentSuccess, QRStatus: QRNone, OrderStatus: StatusPending, PaymentType: PaymentTypeCash}
	assert.Equal(t, StateAwaitingQR, Canonical(cash))

	cash.OrderStatus = StatusServed
	assert.Equal(t, Decision{State: StateCompleted, Rule: 7}, Explain(cash))
	assert.True(t, IsTerminal(Canonical(cash)))
}

func TestOrder_UnmarshalDegradesUnknownEnums(t *testing.T) {
	raw := `{"id":"o-1","paymentStatus":"success","qrStatus":"BOGUS","orderStatus":"PENDING","paymentType":"card","totalAmount":"12.50"}`

	var o Order
	require.NoError(t, json.Unmarshal([]byte(raw), &o))

	assert.Equal(t, PaymentSuccess, o.PaymentStatus)
	assert.Equal(t, QRUnset, o.QRStatus)
	assert.Equal(t, StatusPending, o.OrderStatus)
	assert.Equal(t, PaymentTypeUnset, o.PaymentType)
	assert.Equal(t, "12.5", o.TotalAmount.String())
	assert.Equal(t, StateAwaitingQR, Canonical(o))
}
