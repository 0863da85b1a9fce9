package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/enrichcall/internal/correlator"
	"github.com/roach88/enrichcall/internal/host"
	"github.com/roach88/enrichcall/internal/journal"
	"github.com/roach88/enrichcall/internal/phonenum"
	"github.com/roach88/enrichcall/internal/router"
	"github.com/roach88/enrichcall/internal/testutil"
)

// stepTimeout bounds the wait for the router after one step.
const stepTimeout = 5 * time.Second

// recorder collects trace events from the router goroutine.
type recorder struct {
	mu    sync.Mutex
	trace []TraceEvent
}

func (r *recorder) observe(ev router.Event, res correlator.Result) {
	te := TraceEvent{
		Seq:     ev.Seq,
		Flow:    ev.Flow,
		Kind:    ev.Kind.String(),
		Number:  ev.Number(),
		Outcome: router.OutcomeName(ev, res),
		Call:    res.CallID,
		Matched: res.Matched,
	}
	switch ev.Kind {
	case router.KindIncomingContent:
		te.State = ev.Record.State.String()
	case router.KindStateUpdate:
		te.State = ev.State.String()
	case router.KindCallArrived:
		te.Call = ev.Call.ID()
	}
	r.add(te)
}

func (r *recorder) add(te TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, te)
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent{}, r.trace...)
}

// Run executes a scenario on a fresh host and evaluates its assertions.
//
// The returned error covers harness failures (a step the host rejected,
// a router that never drained). Assertion failures are reported in
// Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	j, err := journal.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
	}
	defer j.Close()

	var flowGen router.FlowTokenGenerator = testutil.NewSequenceFlowGenerator("flow")
	if scenario.FlowToken != "" {
		flowGen = testutil.NewFixedFlowGenerator(scenario.FlowToken)
	}

	rec := &recorder{}
	region := scenario.Region
	if region == "" {
		region = phonenum.DefaultRegion
	}
	h := host.New(host.Options{
		Region:         region,
		SubscriptionID: scenario.SubscriptionID,
		FeatureEnabled: !scenario.FeatureDisabled,
		Accounts:       scenario.Accounts,
		RouterOptions: []router.Option{
			router.WithJournal(j),
			router.WithClock(testutil.NewDeterministicClock()),
			router.WithFlowGenerator(flowGen),
			router.WithObserver(rec.observe),
		},
	})

	ctx := context.Background()
	h.Start(ctx, scenario.Connected)
	defer h.Stop()

	if err := drain(ctx, h); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		res, err := h.Apply(step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name(), err)
		}
		if err := drain(ctx, h); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Name(), err)
		}
		if step.SelectAccount != nil {
			rec.add(TraceEvent{Kind: "account", Outcome: res.Account.String()})
		}
	}

	result := NewResult()
	result.Trace = rec.events()
	result.Final = h.Snapshot()
	if result.JournalRows, err = j.Count(ctx); err != nil {
		return nil, err
	}

	actx := &AssertionContext{Host: h, Norm: phonenum.NewE164(region), JournalRows: result.JournalRows}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func drain(ctx context.Context, h *host.Host) error {
	ctx, cancel := context.WithTimeout(ctx, stepTimeout)
	defer cancel()
	if err := h.Drain(ctx); err != nil {
		return fmt.Errorf("router did not drain: %w", err)
	}
	return nil
}
