// Package harness runs enrichcall scenarios against an in-memory host.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: content_before_call
//	description: "Content pushed before the call exists is attached on arrival"
//	flow_token: flow-content-first
//	connected: true
//	steps:
//	  - content: { number: "+1-415-555-0100", subject: "Lunch?" }
//	  - call: { id: c1, handle: "tel:4155550100" }
//	assertions:
//	  - type: attached
//	    call: c1
//	    subject: "Lunch?"
//	  - type: pending_count
//	    count: 0
//
// Steps are host.Step values: content, call, state, service, end_call,
// select_account. After every step the harness drains the router, so the
// trace order is the step order.
//
// # Assertion Types
//
//   - trace_contains: an event with the given kind/outcome/call/number exists
//   - trace_order: outcomes appear in the given order
//   - trace_count: exactly N events match kind/outcome
//   - attached: a call carries content (optionally checking subject/state)
//   - not_attached: a call carries no content
//   - put_count: the correlator wrote a call's extras exactly N times
//   - pending_count: the pending set has exactly N records
//   - pending_contains: a pending record matches number/state/subject
//   - journal_count: the journal holds exactly N rows
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory journal, testutil.DeterministicClock,
// and either a fixed flow token (flow_token) or sequential ones, so traces
// are byte-identical across runs and can be compared to golden files.
package harness
