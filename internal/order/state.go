package order

import "strings"

// UIState is the canonical workflow stage derived from an order snapshot.
type UIState string

const (
	StatePendingPayment UIState = "PENDING_PAYMENT"
	StateAwaitingQR     UIState = "AWAITING_QR"
	StateQRActive       UIState = "QR_ACTIVE"
	StateScanned        UIState = "SCANNED"
	StateCompleted      UIState = "COMPLETED"
	StateRejected       UIState = "REJECTED"
	StateCancelled      UIState = "CANCELLED"

	// StateUnknown is returned by ParseUIState for unrecognized text.
	// Canonical never produces it.
	StateUnknown UIState = "UNKNOWN"
)

// FallbackRule is the rule number reported by Explain when no specific rule matched.
const FallbackRule = 8

// Decision is the outcome of reconciling one snapshot.
type Decision struct {
	State UIState `json:"state"`
	// Rule is the 1-based precedence rule that matched.
	Rule int `json:"rule"`
}

// Canonical reconciles an order snapshot into exactly one UIState.
//
// Rules are evaluated in strict precedence and the first match wins. Canonical
// is total: records with unset or unrecognized fields fall through to
// StateAwaitingQR. It holds no state, so identical inputs yield identical output.
func Canonical(o Order) UIState {
	return Explain(o).State
}

// Explain is Canonical plus the number of the rule that produced the state.
func Explain(o Order) Decision {
	switch {
	case o.PaymentStatus == PaymentFailed,
		o.PaymentStatus == PaymentPending && o.QRStatus == QRRejected:
		return Decision{State: StateRejected, Rule: 1}
	case o.OrderStatus == StatusCancelled:
		return Decision{State: StateCancelled, Rule: 2}
	case o.PaymentStatus == PaymentPending:
		return Decision{State: StatePendingPayment, Rule: 3}
	case o.PaymentStatus == PaymentSuccess && o.QRStatus == QRActive:
		return Decision{State: StateQRActive, Rule: 4}
	case o.PaymentStatus == PaymentSuccess && o.OrderStatus == StatusPending:
		return Decision{State: StateAwaitingQR, Rule: 5}
	case o.QRStatus == QRUsed || o.OrderStatus == StatusCompleted:
		return Decision{State: StateScanned, Rule: 6}
	case o.OrderStatus == StatusServed:
		return Decision{State: StateCompleted, Rule: 7}
	}
	// Overlaps with rule 5; kept as is until product intent for unmatched
	// combinations is settled.
	return Decision{State: StateAwaitingQR, Rule: FallbackRule}
}

// ShouldShowToken reports whether the pickup token may be displayed.
// It ignores OrderStatus so downstream bookkeeping lag never hides a paid token.
func ShouldShowToken(o Order) bool {
	return o.PaymentStatus == PaymentSuccess && o.QRStatus == QRActive
}

// IsTerminal reports whether s is a final state.
func IsTerminal(s UIState) bool {
	switch s {
	case StateCompleted, StateRejected, StateCancelled:
		return true
	}
	return false
}

// CanNavigateBack is false only while a token is actively displayed.
func CanNavigateBack(s UIState) bool {
	return s != StateQRActive
}

// ParseUIState maps text to a UIState, returning StateUnknown for anything else.
func ParseUIState(s string) UIState {
	switch v := UIState(strings.ToUpper(strings.TrimSpace(s))); v {
	case StatePendingPayment, StateAwaitingQR, StateQRActive, StateScanned,
		StateCompleted, StateRejected, StateCancelled:
		return v
	}
	return StateUnknown
}

// States lists every state Canonical can return, in workflow order.
func States() []UIState {
	return []UIState{
		StatePendingPayment,
		StateAwaitingQR,
		StateQRActive,
		StateScanned,
		StateCompleted,
		StateRejected,
		StateCancelled,
	}
}
