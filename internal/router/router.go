package router

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/enrichcall/internal/correlator"
	"github.com/roach88/enrichcall/internal/journal"
)

// DefaultQueueSize is the initial capacity of the event queue.
const DefaultQueueSize = 64

// Journal receives one entry per dispatched event. Implemented by
// *journal.Journal.
type Journal interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Observer is called on the Run goroutine after each event is dispatched.
type Observer func(ev Event, res correlator.Result)

// Router is the single-consumer event loop in front of a Correlator.
//
// Thread-safety model:
//   - Post, Drain, Stop: safe from any goroutine
//   - Run: must be called from exactly one goroutine
//   - OnConnected: call before Run
type Router struct {
	corr     *correlator.Correlator
	queue    *eventQueue
	clock    SeqSource
	flowGen  FlowTokenGenerator
	journal  Journal
	observer Observer

	mu          sync.Mutex
	onConnected func()

	dispatched atomic.Int64
	queueSize  int
}

// Option configures a Router.
type Option func(*Router)

// WithJournal records every dispatched event.
func WithJournal(j Journal) Option {
	return func(r *Router) { r.journal = j }
}

// WithFlowGenerator overrides the UUIDv7 flow token generator.
func WithFlowGenerator(g FlowTokenGenerator) Option {
	return func(r *Router) { r.flowGen = g }
}

// WithClock overrides the logical clock. Use NewClockAt to resume after an
// existing journal.
func WithClock(c SeqSource) Option {
	return func(r *Router) { r.clock = c }
}

// WithQueueSize sets the initial queue capacity. The queue still grows
// past it.
func WithQueueSize(n int) Option {
	return func(r *Router) { r.queueSize = n }
}

// WithObserver installs a per-event callback.
func WithObserver(o Observer) Option {
	return func(r *Router) { r.observer = o }
}

// New creates a Router dispatching to corr. A nil correlator panics.
func New(corr *correlator.Correlator, opts ...Option) *Router {
	if corr == nil {
		panic("router: nil correlator")
	}
	r := &Router{
		corr:      corr,
		clock:     NewClock(),
		flowGen:   UUIDv7Generator{},
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = newEventQueue(r.queueSize)
	return r
}

// OnConnected sets the handler run on the Run goroutine for each
// KindServiceConnected event.
func (r *Router) OnConnected(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onConnected = fn
}

// Post submits an event. Returns false once the router has been stopped.
func (r *Router) Post(ev Event) bool {
	if ev.Kind == kindBarrier {
		return false
	}
	return r.queue.Enqueue(ev)
}

// Drain blocks until every event posted before the call has been
// dispatched.
func (r *Router) Drain(ctx context.Context) error {
	done := make(chan struct{})
	if !r.queue.Enqueue(Event{Kind: kindBarrier, done: done}) {
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop closes intake. Run dispatches whatever is already queued and then
// returns nil.
func (r *Router) Stop() {
	r.queue.Close()
}

// Stopped reports whether Stop has been called.
func (r *Router) Stopped() bool {
	return r.queue.Closed()
}

// QueueLen returns the number of events waiting for dispatch.
func (r *Router) QueueLen() int {
	return r.queue.Len()
}

// Dispatched returns how many events have reached the correlator.
func (r *Router) Dispatched() int64 {
	return r.dispatched.Load()
}

// Run is the dispatch loop. It blocks until ctx is cancelled or Stop is
// called and the queue is empty.
//
// A failed event is logged with its context and the loop continues.
func (r *Router) Run(ctx context.Context) error {
	slog.Info("router starting")

	for {
		ev, ok := r.queue.TryDequeue()
		if ok {
			if err := r.dispatch(ctx, ev); err != nil {
				logEventError(ev, err)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("router stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel is closed with the queue, so this fires
			// immediately once stopped.
			if r.queue.Closed() && r.queue.Len() == 0 {
				slog.Info("router stopping: queue closed")
				return nil
			}
		}
	}
}

// dispatch applies one event. Called only from Run.
func (r *Router) dispatch(ctx context.Context, ev Event) error {
	if ev.Kind == kindBarrier {
		close(ev.done)
		return nil
	}

	ev.Seq = r.clock.Next()
	if ev.Flow == "" {
		ev.Flow = r.flowGen.Generate()
	}

	var res correlator.Result
	switch ev.Kind {
	case KindIncomingContent:
		if ev.Record == nil {
			return &DispatchError{Code: ErrCodeMissingPayload, Kind: ev.Kind, Seq: ev.Seq}
		}
		res = r.corr.OnIncomingContent(ev.Record)

	case KindStateUpdate:
		res = r.corr.OnContentStateUpdate(ev.PhoneNumber, ev.State)

	case KindCallArrived:
		if ev.Call == nil {
			return &DispatchError{Code: ErrCodeMissingPayload, Kind: ev.Kind, Seq: ev.Seq}
		}
		res = r.corr.OnCallArrived(ev.Call)

	case KindServiceConnected:
		r.mu.Lock()
		fn := r.onConnected
		r.mu.Unlock()
		if fn != nil {
			fn()
		}

	default:
		return &DispatchError{Code: ErrCodeUnknownKind, Kind: ev.Kind, Seq: ev.Seq}
	}

	r.dispatched.Add(1)
	slog.Debug("event dispatched",
		"kind", ev.Kind,
		"seq", ev.Seq,
		"flow", ev.Flow,
		"outcome", OutcomeName(ev, res),
		"call", res.CallID,
	)

	if r.observer != nil {
		r.observer(ev, res)
	}

	if r.journal != nil {
		if err := r.journal.Append(ctx, r.entry(ev, res)); err != nil {
			return &DispatchError{Code: ErrCodeJournal, Kind: ev.Kind, Seq: ev.Seq, Err: err}
		}
	}
	return nil
}

// entry converts a dispatched event to its journal row.
func (r *Router) entry(ev Event, res correlator.Result) journal.Entry {
	number := ev.Number()
	e := journal.Entry{
		Seq:         ev.Seq,
		FlowToken:   ev.Flow,
		Kind:        ev.Kind.String(),
		PhoneNumber: number,
		NumberKey:   r.corr.Key(number),
		Outcome:     OutcomeName(ev, res),
		CallID:      res.CallID,
		Matched:     res.Matched,
	}
	switch ev.Kind {
	case KindIncomingContent:
		e.State = ev.Record.State.String()
		e.Payload = ev.Record.Payload
	case KindStateUpdate:
		e.State = ev.State.String()
	case KindCallArrived:
		if e.CallID == "" {
			e.CallID = ev.Call.ID()
		}
	}
	return e
}

// OutcomeName is the correlator outcome, or "connected" for service
// notifications which never reach the correlator.
func OutcomeName(ev Event, res correlator.Result) string {
	if ev.Kind == KindServiceConnected {
		return "connected"
	}
	return res.Outcome.String()
}

// logEventError logs enough of the event to investigate by hand.
func logEventError(ev Event, err error) {
	attrs := []any{
		"kind", ev.Kind,
		"seq", ev.Seq,
		"flow", ev.Flow,
		"error", err,
	}
	if n := ev.Number(); n != "" {
		attrs = append(attrs, "number", n)
	}
	slog.Error("event processing failed", attrs...)
}
