package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/enrichcall/internal/host"
	"github.com/roach88/enrichcall/internal/phonenum"
)

// AssertionContext carries what state assertions need beyond the trace.
type AssertionContext struct {
	Host        *host.Host
	Norm        phonenum.Normalizer
	JournalRows int
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s -> %s", i+1, ev.Kind, ev.Number, ev.Outcome)
			if ev.Call != "" {
				fmt.Fprintf(&buf, " (call %s)", ev.Call)
			}
			buf.WriteByte('\n')
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure
// messages. All assertions run; evaluation does not stop at the first
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a, actx)
	case AssertTraceOrder:
		return assertTraceOrder(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a, actx)
	case AssertAttached:
		return assertAttached(result, a, actx)
	case AssertNotAttached:
		return assertNotAttached(result, a)
	case AssertPutCount:
		return assertPutCount(result, a)
	case AssertPendingCount:
		return assertCount("pending_count", "pending records", len(result.Final.Pending), *a.Count)
	case AssertPendingContains:
		return assertPendingContains(result, a, actx)
	case AssertJournalCount:
		return assertCount("journal_count", "journal rows", actx.JournalRows, *a.Count)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// sameNumber compares two numbers the way the correlator does.
func sameNumber(norm phonenum.Normalizer, want, got string) bool {
	if want == "" {
		return true
	}
	if got == "" {
		return false
	}
	return norm.Normalize(want) == norm.Normalize(got)
}

// matchEvent checks the fields set on a against ev.
func matchEvent(ev TraceEvent, a Assertion, actx *AssertionContext) bool {
	if a.Kind != "" && ev.Kind != a.Kind {
		return false
	}
	if a.Outcome != "" && ev.Outcome != a.Outcome {
		return false
	}
	if a.Call != "" && ev.Call != a.Call {
		return false
	}
	if a.State != "" && !strings.EqualFold(ev.State, a.State) {
		return false
	}
	return sameNumber(actx.Norm, a.Number, ev.Number)
}

func describeEvent(a Assertion) string {
	var parts []string
	for _, kv := range [][2]string{
		{"kind", a.Kind}, {"outcome", a.Outcome}, {"call", a.Call},
		{"number", a.Number}, {"state", a.State},
	} {
		if kv[1] != "" {
			parts = append(parts, kv[0]+"="+kv[1])
		}
	}
	return "event " + strings.Join(parts, " ")
}

func assertTraceContains(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	for _, ev := range trace {
		if matchEvent(ev, a, actx) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeEvent(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the outcomes appear in order. Intervening
// events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Outcomes) && ev.Outcome == a.Outcomes[next] {
			next++
		}
	}
	if next == len(a.Outcomes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("outcomes in order: %v", a.Outcomes),
		Actual:   fmt.Sprintf("matched %d of %d; missing %q", next, len(a.Outcomes), a.Outcomes[next]),
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion, actx *AssertionContext) error {
	count := 0
	for _, ev := range trace {
		if matchEvent(ev, a, actx) {
			count++
		}
	}
	if count != *a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", *a.Count, describeEvent(a)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

func findCall(result *Result, typ, id string) (host.CallView, error) {
	call, ok := result.Final.Call(id)
	if !ok {
		return host.CallView{}, &AssertionError{
			Type:     typ,
			Expected: fmt.Sprintf("call %s in registry", id),
			Actual:   "call not found",
		}
	}
	return call, nil
}

func assertAttached(result *Result, a Assertion, actx *AssertionContext) error {
	call, err := findCall(result, AssertAttached, a.Call)
	if err != nil {
		return err
	}
	got := call.Enriched
	if got == nil {
		return &AssertionError{
			Type:     AssertAttached,
			Expected: fmt.Sprintf("content attached to call %s", a.Call),
			Actual:   "no content",
			Trace:    result.Trace,
		}
	}
	if a.Subject != "" && got.Subject != a.Subject {
		return &AssertionError{
			Type:     AssertAttached,
			Expected: fmt.Sprintf("subject %q", a.Subject),
			Actual:   fmt.Sprintf("subject %q", got.Subject),
		}
	}
	if a.State != "" && !strings.EqualFold(got.State, a.State) {
		return &AssertionError{
			Type:     AssertAttached,
			Expected: fmt.Sprintf("state %s", strings.ToUpper(a.State)),
			Actual:   fmt.Sprintf("state %s", got.State),
		}
	}
	if !sameNumber(actx.Norm, a.Number, got.Number) {
		return &AssertionError{
			Type:     AssertAttached,
			Expected: fmt.Sprintf("number %s", a.Number),
			Actual:   fmt.Sprintf("number %s", got.Number),
		}
	}
	return nil
}

func assertNotAttached(result *Result, a Assertion) error {
	call, err := findCall(result, AssertNotAttached, a.Call)
	if err != nil {
		return err
	}
	if call.Enriched != nil {
		return &AssertionError{
			Type:     AssertNotAttached,
			Expected: fmt.Sprintf("no content on call %s", a.Call),
			Actual:   fmt.Sprintf("content %q in state %s", call.Enriched.Subject, call.Enriched.State),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertPutCount(result *Result, a Assertion) error {
	call, err := findCall(result, AssertPutCount, a.Call)
	if err != nil {
		return err
	}
	return assertCount(AssertPutCount, "writes to call "+a.Call, call.Puts, *a.Count)
}

func assertPendingContains(result *Result, a Assertion, actx *AssertionContext) error {
	for _, p := range result.Final.Pending {
		if !sameNumber(actx.Norm, a.Number, p.Number) {
			continue
		}
		if a.State != "" && !strings.EqualFold(p.State, a.State) {
			continue
		}
		if a.Subject != "" && p.Subject != a.Subject {
			continue
		}
		return nil
	}
	return &AssertionError{
		Type:     AssertPendingContains,
		Expected: fmt.Sprintf("pending record number=%s state=%s subject=%q", a.Number, a.State, a.Subject),
		Actual:   fmt.Sprintf("%d pending records, none matching", len(result.Final.Pending)),
	}
}

func assertCount(typ, what string, got, want int) error {
	if got == want {
		return nil
	}
	return &AssertionError{
		Type:     typ,
		Expected: fmt.Sprintf("%d %s", want, what),
		Actual:   fmt.Sprintf("%d %s", got, what),
	}
}
