package correlator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enrichcall/internal/bundle"
	"github.com/roach88/enrichcall/internal/callreg"
	"github.com/roach88/enrichcall/internal/composer"
	"github.com/roach88/enrichcall/internal/phonenum"
)

func newTestCorrelator() (*Correlator, *callreg.Memory) {
	reg := callreg.NewMemory()
	return New(reg, phonenum.NewE164("US")), reg
}

func content(number, subject string, state composer.State) *composer.Record {
	rec := composer.NewRecord(number, subject, "", composer.PriorityNormal)
	rec.State = state
	return rec
}

func addCall(reg *callreg.Memory, id, handle string) *callreg.MemoryCall {
	call := callreg.NewCall(id, handle, nil)
	reg.Add(call)
	return call
}

func TestNew_PanicsOnNilCollaborators(t *testing.T) {
	assert.Panics(t, func() { New(nil, phonenum.NewE164("US")) })
	assert.Panics(t, func() { New(callreg.NewMemory(), nil) })
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "attached", OutcomeAttached.String())
	assert.Equal(t, "no_match", OutcomeNoMatch.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestContentBeforeCall_AttachesOnArrival(t *testing.T) {
	c, reg := newTestCorrelator()
	rec := content("+1-415-555-0100", "Lunch?", composer.StateOffered)

	res := c.OnIncomingContent(rec)
	assert.Equal(t, OutcomeQueued, res.Outcome)
	assert.Equal(t, 1, c.PendingLen())

	call := addCall(reg, "c1", "tel:4155550100")
	res = c.OnCallArrived(call)
	assert.Equal(t, OutcomeAttached, res.Outcome)
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, 0, c.PendingLen())

	got := c.EnrichCallData(call)
	require.NotNil(t, got)
	assert.Equal(t, rec, got)
}

func TestContentAfterCall_AttachesSynchronously(t *testing.T) {
	c, reg := newTestCorrelator()
	call := addCall(reg, "c1", "tel:+14155550100")

	res := c.OnIncomingContent(content("415-555-0100", "Running late", composer.StateOffered))
	assert.Equal(t, OutcomeAttached, res.Outcome)
	assert.Equal(t, "c1", res.CallID)
	assert.Equal(t, 0, c.PendingLen())
	assert.Equal(t, "Running late", c.EnrichCallData(call).Subject())
}

func TestAttachOverwrites(t *testing.T) {
	c, reg := newTestCorrelator()
	call := addCall(reg, "c1", "tel:4155550100")

	c.OnIncomingContent(content("4155550100", "first", composer.StateOffered))
	c.OnIncomingContent(content("4155550100", "second", composer.StateOffered))

	assert.Equal(t, "second", c.EnrichCallData(call).Subject())
	assert.Equal(t, 2, call.PutCount())
}

func TestCallArrived_FirstPendingMatchWins(t *testing.T) {
	c, reg := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "one", composer.StateOffered))
	c.OnIncomingContent(content("+1 415 555 0100", "two", composer.StateOffered))
	c.OnIncomingContent(content("4155550199", "other", composer.StateOffered))

	call := addCall(reg, "c1", "tel:4155550100")
	c.OnCallArrived(call)

	assert.Equal(t, "one", c.EnrichCallData(call).Subject())
	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "two", pending[0].Subject())
	assert.Equal(t, "other", pending[1].Subject())
}

func TestCallArrived_NationalHandleMatchesInternationalContent(t *testing.T) {
	reg := callreg.NewMemory()
	c := New(reg, phonenum.NewE164("GB"))

	res := c.OnIncomingContent(content("+44 20 7946 0958", "Tea?", composer.StateOffered))
	assert.Equal(t, OutcomeQueued, res.Outcome)

	call := addCall(reg, "c1", "tel:02079460958")
	res = c.OnCallArrived(call)
	assert.Equal(t, OutcomeAttached, res.Outcome)
	assert.Empty(t, c.Pending())

	data := c.EnrichCallData(call)
	require.NotNil(t, data)
	assert.Equal(t, "Tea?", data.Subject())
}

func TestCallArrived_NoMatchIsNoop(t *testing.T) {
	c, reg := newTestCorrelator()
	c.OnIncomingContent(content("4155550199", "other", composer.StateOffered))

	call := addCall(reg, "c1", "tel:4155550100")
	res := c.OnCallArrived(call)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Equal(t, 1, c.PendingLen())
	assert.Equal(t, 0, call.PutCount())
}

func TestCallArrived_WithoutNumberIgnored(t *testing.T) {
	c, reg := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))

	call := addCall(reg, "conf", "")
	assert.Equal(t, OutcomeIgnored, c.OnCallArrived(call).Outcome)
	assert.Equal(t, OutcomeIgnored, c.OnCallArrived(nil).Outcome)
	assert.Equal(t, 1, c.PendingLen())
}

func TestIncomingContent_MalformedIgnored(t *testing.T) {
	c, _ := newTestCorrelator()
	assert.Equal(t, OutcomeIgnored, c.OnIncomingContent(nil).Outcome)
	assert.Equal(t, OutcomeIgnored, c.OnIncomingContent(content("", "s", composer.StateOffered)).Outcome)
	assert.Equal(t, 0, c.PendingLen())
}

func TestStateUpdate_AttachedContentUpdatedOnce(t *testing.T) {
	c, reg := newTestCorrelator()
	call := addCall(reg, "c1", "tel:4155550100")
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))
	require.Equal(t, 1, call.PutCount())

	res := c.OnContentStateUpdate("+14155550100", composer.StateSucceeded)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, composer.StateSucceeded, c.EnrichCallData(call).State)
	assert.Equal(t, 2, call.PutCount())

	res = c.OnContentStateUpdate("+14155550100", composer.StateSucceeded)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Equal(t, 2, call.PutCount(), "repeated update must not write again")
}

func TestStateUpdate_FailedOnAttachedContentKeepsContent(t *testing.T) {
	c, reg := newTestCorrelator()
	call := addCall(reg, "c1", "tel:4155550100")
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))

	res := c.OnContentStateUpdate("4155550100", composer.StateFailed)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, composer.StateFailed, c.EnrichCallData(call).State)
	assert.Equal(t, "s", c.EnrichCallData(call).Subject())
}

func TestStateUpdate_CallWithoutContent(t *testing.T) {
	c, reg := newTestCorrelator()
	call := addCall(reg, "c1", "tel:4155550100")

	res := c.OnContentStateUpdate("+14155550100", composer.StateFailed)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Equal(t, 0, call.PutCount())
	assert.Nil(t, c.EnrichCallData(call))
	assert.Equal(t, 0, c.PendingLen())
}

func TestStateUpdate_PendingRequeuedWithNewState(t *testing.T) {
	c, _ := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))
	c.OnIncomingContent(content("4155550199", "other", composer.StateOffered))

	res := c.OnContentStateUpdate("(415) 555-0100", composer.StateSucceeded)
	assert.Equal(t, OutcomeRequeued, res.Outcome)
	assert.Equal(t, 1, res.Matched)

	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, "other", pending[0].Subject())
	assert.Equal(t, "s", pending[1].Subject())
	assert.Equal(t, composer.StateSucceeded, pending[1].State)
}

func TestStateUpdate_FailedDropsPendingForGood(t *testing.T) {
	c, reg := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))

	res := c.OnContentStateUpdate("4155550100", composer.StateFailed)
	assert.Equal(t, OutcomeDropped, res.Outcome)
	assert.Equal(t, 0, c.PendingLen())

	res = c.OnContentStateUpdate("4155550100", composer.StateSucceeded)
	assert.Equal(t, OutcomeNoMatch, res.Outcome)
	assert.Equal(t, 0, c.PendingLen())

	call := addCall(reg, "c1", "tel:4155550100")
	assert.Equal(t, OutcomeNoMatch, c.OnCallArrived(call).Outcome)
	assert.Nil(t, c.EnrichCallData(call))
}

func TestStateUpdate_DuplicatesCollapseToOne(t *testing.T) {
	c, _ := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "one", composer.StateOffered))
	c.OnIncomingContent(content("+14155550100", "two", composer.StateOffered))

	res := c.OnContentStateUpdate("4155550100", composer.StateSucceeded)
	assert.Equal(t, OutcomeRequeued, res.Outcome)
	assert.Equal(t, 2, res.Matched)

	pending := c.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "one", pending[0].Subject())
	assert.Equal(t, composer.StateSucceeded, pending[0].State)
}

func TestStateUpdate_DuplicatesCollapseToZeroOnFailure(t *testing.T) {
	c, _ := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "one", composer.StateOffered))
	c.OnIncomingContent(content("+14155550100", "two", composer.StateOffered))

	res := c.OnContentStateUpdate("4155550100", composer.StateFailed)
	assert.Equal(t, OutcomeDropped, res.Outcome)
	assert.Equal(t, 2, res.Matched)
	assert.Equal(t, 0, c.PendingLen())
}

func TestStateUpdate_EmptyNumberIgnored(t *testing.T) {
	c, _ := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))
	assert.Equal(t, OutcomeIgnored, c.OnContentStateUpdate("", composer.StateFailed).Outcome)
	assert.Equal(t, 1, c.PendingLen())
}

func TestMatchCall(t *testing.T) {
	c, reg := newTestCorrelator()
	addCall(reg, "conf", "")
	addCall(reg, "c1", "tel:4155550100")
	addCall(reg, "c2", "tel:+1 (415) 555-0100")

	assert.Nil(t, c.MatchCall(""))
	assert.Nil(t, c.MatchCall("4155550199"))

	got := c.MatchCall("+1-415-555-0100")
	require.NotNil(t, got)
	assert.Equal(t, "c1", got.ID())
}

func TestEnrichCallData_FallsBackToIntentExtras(t *testing.T) {
	c, reg := newTestCorrelator()
	dialed := content("4155550100", "from dialer", composer.StateOffered)
	call := callreg.NewCall("c1", "tel:4155550100", bundle.Bundle{composer.ExtraKey: dialed.Bundle()})
	reg.Add(call)

	got := c.EnrichCallData(call)
	require.NotNil(t, got)
	assert.Equal(t, "from dialer", got.Subject())

	// A state update on content supplied at dial time writes through to the
	// call extras, which then take precedence.
	res := c.OnContentStateUpdate("4155550100", composer.StateSucceeded)
	assert.Equal(t, OutcomeUpdated, res.Outcome)
	assert.Equal(t, composer.StateSucceeded, c.EnrichCallData(call).State)
	assert.Equal(t, composer.StateOffered, composer.FromBundle(call.IntentExtras().GetBundle(composer.ExtraKey)).State)

	assert.Nil(t, c.EnrichCallData(nil))
}

func TestPending_ReturnsCopies(t *testing.T) {
	c, _ := newTestCorrelator()
	c.OnIncomingContent(content("4155550100", "s", composer.StateOffered))

	snapshot := c.Pending()
	snapshot[0].State = composer.StateFailed
	snapshot[0].Payload[composer.KeySubject] = bundle.String("mutated")

	again := c.Pending()
	assert.Equal(t, composer.StateOffered, again[0].State)
	assert.Equal(t, "s", again[0].Subject())
}

func TestKey(t *testing.T) {
	c, _ := newTestCorrelator()
	assert.Equal(t, "+14155550100", c.Key("(415) 555-0100"))
	assert.Equal(t, "", c.Key(""))
}
