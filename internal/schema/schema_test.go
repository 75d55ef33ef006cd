package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/roach88/pickup/internal/order"
)

func TestOrder_Valid(t *testing.T) {
	v := MustNew()
	doc := map[string]any{
		"id":            "ord-1",
		"paymentStatus": "SUCCESS",
		"qrStatus":      "ACTIVE",
		"orderStatus":   "PENDING",
		"createdAt":     "2025-03-01T12:00:00Z",
		"userId":        "user-1",
		"cafeteriaId":   "caf-1",
		"totalAmount":   "12.50",
		"paymentType":   "ONLINE",
	}
	assert.NoError(t, v.Order(doc))
}

func TestOrder_Problems(t *testing.T) {
	v := MustNew()
	tests := []struct {
		name string
		doc  map[string]any
	}{
		{"missing id", map[string]any{"paymentStatus": "SUCCESS"}},
		{"empty id", map[string]any{"id": ""}},
		{"unknown payment status", map[string]any{"id": "o", "paymentStatus": "REFUNDED"}},
		{"lowercase qr status", map[string]any{"id": "o", "qrStatus": "active"}},
		{"unknown field", map[string]any{"id": "o", "discount": 3}},
		{"bad timestamp", map[string]any{"id": "o", "createdAt": "yesterday"}},
		{"bad amount", map[string]any{"id": "o", "totalAmount": "twelve"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Order(tt.doc)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestPatch_IDOptional(t *testing.T) {
	v := MustNew()
	assert.NoError(t, v.Patch(map[string]any{"qrStatus": "USED"}))
	assert.Error(t, v.Patch(map[string]any{"qrStatus": "BURNT"}))
}

func TestOrders_IndexesProblems(t *testing.T) {
	v := MustNew()
	err := v.Orders([]any{
		map[string]any{"id": "ok"},
		map[string]any{"id": "bad", "orderStatus": "LOST"},
	})
	require.Error(t, err)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.NotEmpty(t, ve.Problems)
	for _, p := range ve.Problems {
		assert.Contains(t, p, "[1]")
	}
}

func TestOrderJSON_MarshalledOrderIsValid(t *testing.T) {
	v := MustNew()
	o := order.Order{
		ID:            "ord-1",
		PaymentStatus: order.PaymentSuccess,
		QRStatus:      order.QRActive,
		OrderStatus:   order.StatusPending,
		CreatedAt:     time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
		ScannedAt:     time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC),
		ServedAt:      time.Date(2025, 3, 1, 12, 9, 0, 0, time.UTC),
		UserID:        "user-1",
		CafeteriaID:   "caf-1",
		TotalAmount:   decimal.RequireFromString("9.99"),
		PaymentType:   order.PaymentTypeCash,
	}
	data, err := json.Marshal(o)
	require.NoError(t, err)
	assert.NoError(t, v.OrderJSON(data))

	assert.Error(t, v.OrderJSON([]byte("{not json")))
}

func TestOrder_YAMLDocument(t *testing.T) {
	v := MustNew()
	var doc any
	require.NoError(t, yaml.Unmarshal([]byte(`
id: ord-7
paymentStatus: PENDING
qrStatus: NONE
totalAmount: 4.5
`), &doc))
	assert.NoError(t, v.Order(doc))
}
