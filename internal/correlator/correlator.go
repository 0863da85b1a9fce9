package correlator

import (
	"log/slog"

	"github.com/roach88/enrichcall/internal/bundle"
	"github.com/roach88/enrichcall/internal/callreg"
	"github.com/roach88/enrichcall/internal/composer"
	"github.com/roach88/enrichcall/internal/phonenum"
)

// Outcome says what an operation did.
type Outcome int

const (
	// OutcomeIgnored means the input was malformed (no number, no content).
	OutcomeIgnored Outcome = iota
	// OutcomeAttached means content was written to a call.
	OutcomeAttached
	// OutcomeQueued means content was appended to the pending set.
	OutcomeQueued
	// OutcomeUpdated means a call's attached content changed state.
	OutcomeUpdated
	// OutcomeRequeued means pending content was replaced by a copy with the
	// new state.
	OutcomeRequeued
	// OutcomeDropped means pending content was removed by a FAILED update.
	OutcomeDropped
	// OutcomeNoMatch means there was nothing to do.
	OutcomeNoMatch
)

var outcomeNames = [...]string{"ignored", "attached", "queued", "updated", "requeued", "dropped", "no_match"}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return "unknown"
	}
	return outcomeNames[o]
}

// Result describes one operation.
type Result struct {
	Outcome Outcome
	// CallID is set when a call was written to.
	CallID string
	// Matched counts pending records touched by the operation.
	Matched int
}

// Correlator owns the pending set.
type Correlator struct {
	calls   callreg.Registry
	norm    phonenum.Normalizer
	pending []*composer.Record
}

// New creates a Correlator. A nil registry or normalizer is a wiring bug
// and panics.
func New(calls callreg.Registry, norm phonenum.Normalizer) *Correlator {
	if calls == nil {
		panic("correlator: nil call registry")
	}
	if norm == nil {
		panic("correlator: nil normalizer")
	}
	return &Correlator{calls: calls, norm: norm}
}

// OnIncomingContent attaches rec to the call with the same number, or
// queues it when no such call exists yet.
func (c *Correlator) OnIncomingContent(rec *composer.Record) Result {
	if rec == nil || rec.PhoneNumber == "" {
		slog.Debug("incoming content ignored: no phone number")
		return Result{Outcome: OutcomeIgnored}
	}

	if call := c.MatchCall(rec.PhoneNumber); call != nil {
		c.attach(call, rec)
		return Result{Outcome: OutcomeAttached, CallID: call.ID()}
	}

	c.pending = append(c.pending, rec)
	slog.Debug("content queued",
		"number", rec.PhoneNumber,
		"state", rec.State,
		"pending", len(c.pending),
	)
	return Result{Outcome: OutcomeQueued, Matched: 1}
}

// OnCallArrived moves the first pending record matching call's number onto
// the call.
func (c *Correlator) OnCallArrived(call callreg.Call) Result {
	if call == nil {
		return Result{Outcome: OutcomeIgnored}
	}
	number := call.PhoneNumber()
	if number == "" {
		slog.Debug("call arrived without phone number", "call", call.ID())
		return Result{Outcome: OutcomeIgnored}
	}
	key := c.norm.Normalize(number)
	if key == "" {
		return Result{Outcome: OutcomeIgnored}
	}

	for i, rec := range c.pending {
		if c.norm.Normalize(rec.PhoneNumber) != key {
			continue
		}
		last := len(c.pending) - 1
		copy(c.pending[i:], c.pending[i+1:])
		c.pending[last] = nil
		c.pending = c.pending[:last]
		c.attach(call, rec)
		return Result{Outcome: OutcomeAttached, CallID: call.ID(), Matched: 1}
	}
	return Result{Outcome: OutcomeNoMatch}
}

// OnContentStateUpdate applies a delivery state change.
//
// Content already attached to a live call is updated in place when the
// state differs. Otherwise every pending record for the number is removed;
// unless the new state is FAILED a single copy of the first one is queued
// again carrying the new state, so duplicates collapse to one.
func (c *Correlator) OnContentStateUpdate(phoneNumber string, state composer.State) Result {
	if phoneNumber == "" {
		slog.Debug("state update ignored: no phone number")
		return Result{Outcome: OutcomeIgnored}
	}

	if call := c.MatchCall(phoneNumber); call != nil {
		data := c.EnrichCallData(call)
		if data != nil && data.State != state {
			c.attach(call, data.WithState(state))
			return Result{Outcome: OutcomeUpdated, CallID: call.ID()}
		}
		slog.Debug("state update not applied to call: no content or same state",
			"call", call.ID(),
			"state", state,
		)
	}

	key := c.norm.Normalize(phoneNumber)
	var first *composer.Record
	matched := 0
	kept := c.pending[:0]
	for _, rec := range c.pending {
		if c.norm.Normalize(rec.PhoneNumber) == key {
			if first == nil {
				first = rec
			}
			matched++
			continue
		}
		kept = append(kept, rec)
	}
	// Clear the tail so removed records can be collected.
	for i := len(kept); i < len(c.pending); i++ {
		c.pending[i] = nil
	}
	c.pending = kept

	switch {
	case matched == 0:
		return Result{Outcome: OutcomeNoMatch}
	case state == composer.StateFailed:
		slog.Debug("pending content dropped", "number", phoneNumber, "removed", matched)
		return Result{Outcome: OutcomeDropped, Matched: matched}
	default:
		c.pending = append(c.pending, first.WithState(state))
		slog.Debug("pending content state updated", "number", phoneNumber, "state", state, "removed", matched)
		return Result{Outcome: OutcomeRequeued, Matched: matched}
	}
}

// MatchCall returns the first live call whose normalized number equals the
// normalized phoneNumber, or nil. An empty number never matches.
func (c *Correlator) MatchCall(phoneNumber string) callreg.Call {
	if phoneNumber == "" {
		return nil
	}
	key := c.norm.Normalize(phoneNumber)
	if key == "" {
		return nil
	}
	for _, call := range c.calls.Calls() {
		number := call.PhoneNumber()
		if number == "" {
			continue
		}
		if c.norm.Normalize(number) == key {
			return call
		}
	}
	return nil
}

// EnrichCallData returns the content attached to call. Content written by
// the correlator lives in the call extras; content supplied by the dialer
// when the call was placed lives in the intent extras and is used as a
// fallback. Returns nil when the call carries none.
func (c *Correlator) EnrichCallData(call callreg.Call) *composer.Record {
	if call == nil {
		return nil
	}
	if data := call.Extras().GetBundle(composer.ExtraKey); data != nil {
		return composer.FromBundle(data)
	}
	return composer.FromBundle(call.IntentExtras().GetBundle(composer.ExtraKey))
}

// Key returns the normalized form of number used for matching.
func (c *Correlator) Key(number string) string {
	if number == "" {
		return ""
	}
	return c.norm.Normalize(number)
}

// Pending returns a copy of the pending set in arrival order.
func (c *Correlator) Pending() []*composer.Record {
	out := make([]*composer.Record, len(c.pending))
	for i, rec := range c.pending {
		out[i] = rec.WithState(rec.State)
	}
	return out
}

// PendingLen returns the size of the pending set.
func (c *Correlator) PendingLen() int {
	return len(c.pending)
}

func (c *Correlator) attach(call callreg.Call, rec *composer.Record) {
	call.PutExtras(bundle.Bundle{composer.ExtraKey: rec.Bundle()})
	slog.Debug("content attached",
		"call", call.ID(),
		"number", rec.PhoneNumber,
		"state", rec.State,
	)
}
