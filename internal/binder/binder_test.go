package binder

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/enrichcall/internal/callreg"
	"github.com/roach88/enrichcall/internal/composer"
	"github.com/roach88/enrichcall/internal/correlator"
	"github.com/roach88/enrichcall/internal/phonenum"
	"github.com/roach88/enrichcall/internal/rcs"
	"github.com/roach88/enrichcall/internal/router"
)

// fakeRouter records posts and runs the connected handler inline.
type fakeRouter struct {
	mu          sync.Mutex
	posted      []router.Event
	onConnected func()
	stopped     bool
}

func (f *fakeRouter) Post(ev router.Event) bool {
	f.mu.Lock()
	if f.stopped {
		f.mu.Unlock()
		return false
	}
	f.posted = append(f.posted, ev)
	fn := f.onConnected
	f.mu.Unlock()

	if ev.Kind == router.KindServiceConnected && fn != nil {
		fn()
	}
	return true
}

func (f *fakeRouter) OnConnected(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onConnected = fn
}

func (f *fakeRouter) kinds() []router.Kind {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]router.Kind, len(f.posted))
	for i, ev := range f.posted {
		out[i] = ev.Kind
	}
	return out
}

func TestNew_FeatureDisabledIsInert(t *testing.T) {
	svc := rcs.NewMemory()
	svc.SetFeatureEnabled(false)
	r := &fakeRouter{}

	b := New(svc, r, 0)
	assert.False(t, b.Active())
	assert.Equal(t, 0, svc.InitializeCalls())

	svc.Connect()
	assert.Empty(t, r.kinds())
	assert.Equal(t, 0, svc.IncomingSubscribers())
	assert.Equal(t, 0, svc.StateSubscribers())

	b.Resubscribe()
	assert.Equal(t, 0, svc.IncomingSubscribers())
}

func TestNew_DisconnectedInitializesThenSubscribesOnConnect(t *testing.T) {
	svc := rcs.NewMemory()
	r := &fakeRouter{}

	b := New(svc, r, 0)
	require.True(t, b.Active())
	assert.Equal(t, 1, svc.InitializeCalls())
	assert.Equal(t, 0, svc.IncomingSubscribers())
	assert.False(t, b.Registered())

	svc.Connect()
	assert.Equal(t, []router.Kind{router.KindServiceConnected}, r.kinds())
	assert.Equal(t, 1, svc.IncomingSubscribers())
	assert.Equal(t, 1, svc.StateSubscribers())
	assert.True(t, b.Registered())
}

func TestNew_ConnectedSubscribesImmediately(t *testing.T) {
	svc := rcs.NewMemory()
	svc.Connect()
	r := &fakeRouter{}

	b := New(svc, r, 0)
	assert.Equal(t, 0, svc.InitializeCalls())
	assert.Equal(t, 1, svc.IncomingSubscribers())
	assert.Equal(t, 1, svc.StateSubscribers())
	assert.True(t, b.Registered())
}

func TestResubscribe_Idempotent(t *testing.T) {
	svc := rcs.NewMemory()
	svc.Connect()
	b := New(svc, &fakeRouter{}, 0)

	for i := 0; i < 3; i++ {
		b.Resubscribe()
	}
	svc.Connect()

	assert.Equal(t, 1, svc.IncomingSubscribers())
	assert.Equal(t, 1, svc.StateSubscribers())
}

func TestResubscribe_AfterServiceRestart(t *testing.T) {
	svc := rcs.NewMemory()
	svc.Connect()
	b := New(svc, &fakeRouter{}, 0)
	require.True(t, b.Registered())

	svc.Disconnect()
	assert.Equal(t, 0, svc.IncomingSubscribers())
	assert.Equal(t, 0, svc.StateSubscribers())

	svc.Connect()
	assert.Equal(t, 1, svc.IncomingSubscribers())
	assert.Equal(t, 1, svc.StateSubscribers())
	assert.True(t, b.Registered())
}

func TestRegisterStateUpdates(t *testing.T) {
	svc := rcs.NewMemory()
	svc.Connect()
	b := New(svc, &fakeRouter{}, 0)

	// Already registered: no-op.
	b.RegisterStateUpdates()
	assert.Equal(t, 1, svc.StateSubscribers())

	b.UnregisterStateUpdates()
	assert.False(t, b.Registered())
	assert.Equal(t, 0, svc.StateSubscribers())
	b.UnregisterStateUpdates()

	svc.Disconnect()
	before := svc.InitializeCalls()
	b.RegisterStateUpdates()
	assert.False(t, b.Registered())
	assert.Equal(t, before+1, svc.InitializeCalls())
}

func TestSinks_PostOnlyWellFormedEvents(t *testing.T) {
	svc := rcs.NewMemory()
	svc.Connect()
	r := &fakeRouter{}
	New(svc, r, 3)

	rec := composer.NewRecord("4155550100", "s", "", composer.PriorityNormal)

	assert.Equal(t, 1, svc.PushIncoming(3, rec))
	assert.Equal(t, 1, svc.PushIncoming(3, nil))
	assert.Equal(t, 1, svc.PushIncoming(3, composer.NewRecord("", "s", "", composer.PriorityNormal)))
	assert.Equal(t, 1, svc.PushStateUpdate(3, "4155550100", composer.StateSucceeded))
	assert.Equal(t, 1, svc.PushStateUpdate(3, "", composer.StateFailed))

	// Other subscriptions are not ours.
	assert.Equal(t, 0, svc.PushIncoming(4, rec))

	assert.Equal(t, []router.Kind{router.KindIncomingContent, router.KindStateUpdate}, r.kinds())
	assert.Same(t, rec, r.posted[0].Record)
	assert.Equal(t, composer.StateSucceeded, r.posted[1].State)
}

func TestClose(t *testing.T) {
	svc := rcs.NewMemory()
	svc.Connect()
	r := &fakeRouter{}
	b := New(svc, r, 0)

	b.Close()
	assert.False(t, b.Active())
	assert.Equal(t, 0, svc.IncomingSubscribers())
	assert.Equal(t, 0, svc.StateSubscribers())

	svc.Connect()
	assert.Empty(t, r.kinds())
	b.Close()
}

func TestBinder_EndToEndThroughRouter(t *testing.T) {
	calls := callreg.NewMemory()
	corr := correlator.New(calls, phonenum.NewE164("US"))
	r := router.New(corr)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errCh
	})

	svc := rcs.NewMemory()
	b := New(svc, r, 0)
	svc.Connect()

	drain := func() {
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		require.NoError(t, r.Drain(dctx))
	}
	drain()
	require.True(t, b.Registered())

	rec := composer.NewRecord("+1-415-555-0100", "Lunch?", "", composer.PriorityUrgent)
	rec.State = composer.StateOffered
	svc.PushIncoming(0, rec)
	drain()
	assert.Equal(t, 1, corr.PendingLen())

	call := callreg.NewCall("c1", "tel:4155550100", nil)
	calls.Add(call)
	r.Post(router.CallEvent(call))
	svc.PushStateUpdate(0, "4155550100", composer.StateSucceeded)
	drain()

	got := corr.EnrichCallData(call)
	require.NotNil(t, got)
	assert.Equal(t, "Lunch?", got.Subject())
	assert.Equal(t, composer.StateSucceeded, got.State)
	assert.Equal(t, composer.PriorityUrgent, got.Priority())
}
