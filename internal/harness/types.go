package harness

import "github.com/roach88/pickup/internal/order"

// Token outcomes recorded in the trace when a step shows a pickup token.
const (
	TokenVerified   = "verified"
	TokenRejected   = "rejected"
	TokenIncomplete = "incomplete"
)

// TraceEvent is one snapshot as observed through the realtime feed, reduced
// to what a consumer renders.
type TraceEvent struct {
	Seq             int64         `json:"seq"`
	Step            string        `json:"step"`
	State           order.UIState `json:"state"`
	Rule            int           `json:"rule"`
	ShowToken       bool          `json:"show_token"`
	Terminal        bool          `json:"terminal"`
	CanNavigateBack bool          `json:"can_navigate_back"`
	// Token is empty unless ShowToken is set.
	Token string `json:"token,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per observed snapshot, starting with the
	// initial order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the last snapshot delivered by the feed.
	Final order.Order `json:"final"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, assigning the next sequence number.
func (r *Result) AddTrace(ev TraceEvent) TraceEvent {
	ev.Seq = int64(len(r.Trace) + 1)
	r.Trace = append(r.Trace, ev)
	return ev
}
