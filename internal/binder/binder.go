// Package binder connects the RCS service to the router.
//
// The binder owns both service subscriptions. Its sinks run on service
// callback goroutines and do nothing but post events; resubscription after
// a service restart runs on the router goroutine.
package binder

import (
	"log/slog"
	"sync"

	"github.com/roach88/enrichcall/internal/composer"
	"github.com/roach88/enrichcall/internal/rcs"
	"github.com/roach88/enrichcall/internal/router"
)

// Router is the part of *router.Router the binder needs.
type Router interface {
	Post(ev router.Event) bool
	OnConnected(fn func())
}

// Binder manages subscriptions for one subscription ID.
type Binder struct {
	svc   rcs.Service
	r     Router
	subID int

	incoming *incomingSink
	updates  *stateSink

	mu         sync.Mutex
	active     bool
	registered bool
	cancel     func()
}

// New binds svc to r. When the enriched-call feature is disabled the
// binder logs and stays inert. Otherwise it either asks a disconnected
// service to initialize or subscribes right away, and resubscribes every
// time the service reports a connection.
func New(svc rcs.Service, r Router, subID int) *Binder {
	b := &Binder{
		svc:      svc,
		r:        r,
		subID:    subID,
		incoming: &incomingSink{post: r.Post},
		updates:  &stateSink{post: r.Post},
	}

	if !svc.IsFeatureEnabled() {
		slog.Info("enriched call feature disabled; binder inactive", "sub", subID)
		return b
	}

	b.active = true
	r.OnConnected(b.Resubscribe)
	b.cancel = svc.OnServiceConnected(func() {
		if !r.Post(router.ConnectedEvent()) {
			slog.Debug("service connected after router stopped", "sub", subID)
		}
	})

	if !svc.IsServiceConnected() {
		slog.Info("enriched call service not connected; initializing", "sub", subID)
		svc.Initialize()
		return b
	}

	b.svc.SubscribeIncoming(b.incoming, b.subID)
	b.RegisterStateUpdates()
	return b
}

// Active reports whether the feature was enabled at construction.
func (b *Binder) Active() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Registered reports whether the state-update sink is registered.
func (b *Binder) Registered() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.registered
}

// Resubscribe drops and re-adds both subscriptions. Safe to call any
// number of times; the service never sees a sink twice.
func (b *Binder) Resubscribe() {
	if !b.Active() {
		return
	}
	slog.Debug("resubscribing to enriched call service", "sub", b.subID)

	b.svc.UnsubscribeIncoming(b.incoming, b.subID)
	b.svc.SubscribeIncoming(b.incoming, b.subID)

	b.UnregisterStateUpdates()
	b.RegisterStateUpdates()
}

// RegisterStateUpdates subscribes the state sink. It is a no-op when
// already registered. When the service is disconnected it asks the service
// to initialize instead; the eventual connection resubscribes.
func (b *Binder) RegisterStateUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.registered {
		return
	}
	if !b.svc.IsServiceConnected() {
		slog.Debug("state update registration deferred; service disconnected", "sub", b.subID)
		b.svc.Initialize()
		return
	}
	b.svc.SubscribeStateUpdates(b.updates, b.subID)
	b.registered = true
}

// UnregisterStateUpdates removes the state sink if registered.
func (b *Binder) UnregisterStateUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.registered {
		return
	}
	b.svc.UnsubscribeStateUpdates(b.updates, b.subID)
	b.registered = false
}

// Close removes both subscriptions and stops listening for connections.
func (b *Binder) Close() {
	b.mu.Lock()
	cancel := b.cancel
	b.cancel = nil
	b.active = false
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	b.svc.UnsubscribeIncoming(b.incoming, b.subID)
	b.UnregisterStateUpdates()
}

type incomingSink struct {
	post func(router.Event) bool
}

func (s *incomingSink) OnIncomingEnrichedCall(rec *composer.Record) {
	if rec == nil || rec.PhoneNumber == "" {
		slog.Debug("incoming enriched call dropped: no phone number")
		return
	}
	s.post(router.ContentEvent(rec))
}

type stateSink struct {
	post func(router.Event) bool
}

func (s *stateSink) OnEnrichedCallUpdate(phoneNumber string, state composer.State) {
	if phoneNumber == "" {
		slog.Debug("enriched call update dropped: no phone number", "state", state)
		return
	}
	s.post(router.StateEvent(phoneNumber, state))
}

var (
	_ rcs.IncomingSink = (*incomingSink)(nil)
	_ rcs.StateSink    = (*stateSink)(nil)
)
