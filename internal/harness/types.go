package harness

import "github.com/roach88/enrichcall/internal/host"

// TraceEvent is one routed event, or one account selection, as observed
// by the harness.
type TraceEvent struct {
	Seq     int64  `json:"seq"`
	Flow    string `json:"flow,omitempty"`
	Kind    string `json:"kind"`
	Number  string `json:"number,omitempty"`
	State   string `json:"state,omitempty"`
	Outcome string `json:"outcome"`
	Call    string `json:"call,omitempty"`
	Matched int    `json:"matched,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	// Trace lists events in dispatch order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the host state after the last step.
	Final host.Snapshot `json:"final"`

	// JournalRows is the number of journal entries written.
	JournalRows int `json:"journal_rows"`
}

// NewResult creates a passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
