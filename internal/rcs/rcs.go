// Package rcs describes the vendor enriched-call service and provides an
// in-memory implementation of it.
//
// Callbacks from the real service arrive on the service's own goroutines.
// Sinks must not touch correlator state directly; they hand events to the
// router.
package rcs

import (
	"sync"

	"github.com/roach88/enrichcall/internal/composer"
)

// IncomingSink receives composer content pushed by the service.
type IncomingSink interface {
	OnIncomingEnrichedCall(rec *composer.Record)
}

// StateSink receives delivery state updates.
type StateSink interface {
	OnEnrichedCallUpdate(phoneNumber string, state composer.State)
}

// Service is the vendor enriched-call service.
type Service interface {
	IsFeatureEnabled() bool
	IsServiceConnected() bool
	// Initialize asks the service to start. Completion is signalled through
	// the OnServiceConnected callbacks.
	Initialize()

	SubscribeIncoming(sink IncomingSink, subID int)
	UnsubscribeIncoming(sink IncomingSink, subID int)
	SubscribeStateUpdates(sink StateSink, subID int)
	UnsubscribeStateUpdates(sink StateSink, subID int)

	// IsRcsConfigEnabledOnSub reports whether RCS calling is provisioned
	// on the subscription.
	IsRcsConfigEnabledOnSub(subID int) bool

	// OnServiceConnected registers fn to run every time the service
	// (re)connects. The returned func removes the registration.
	OnServiceConnected(fn func()) (cancel func())
}

type subKey[S comparable] struct {
	sink  S
	subID int
}

// Memory is an in-process Service. Pushes are delivered synchronously on
// the caller's goroutine, the way binder callbacks run on a binder thread.
type Memory struct {
	mu             sync.Mutex
	featureEnabled bool
	connected      bool
	initCalls      int
	rcsConfig      map[int]bool
	incoming       []subKey[IncomingSink]
	updates        []subKey[StateSink]
	listeners      map[int]func()
	nextListener   int
}

// NewMemory returns a service with the feature enabled and the service
// disconnected.
func NewMemory() *Memory {
	return &Memory{
		featureEnabled: true,
		rcsConfig:      make(map[int]bool),
		listeners:      make(map[int]func()),
	}
}

// SetFeatureEnabled toggles the enriched-call feature flag.
func (m *Memory) SetFeatureEnabled(enabled bool) {
	m.mu.Lock()
	m.featureEnabled = enabled
	m.mu.Unlock()
}

// SetRcsConfig sets the per-subscription RCS provisioning flag.
func (m *Memory) SetRcsConfig(subID int, enabled bool) {
	m.mu.Lock()
	m.rcsConfig[subID] = enabled
	m.mu.Unlock()
}

// Connect marks the service connected and notifies listeners. Calling it
// again models a service restart.
func (m *Memory) Connect() {
	m.mu.Lock()
	m.connected = true
	fns := make([]func(), 0, len(m.listeners))
	for i := 0; i < m.nextListener; i++ {
		if fn, ok := m.listeners[i]; ok {
			fns = append(fns, fn)
		}
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Disconnect marks the service disconnected and drops every subscription,
// as a crashed vendor process would.
func (m *Memory) Disconnect() {
	m.mu.Lock()
	m.connected = false
	m.incoming = nil
	m.updates = nil
	m.mu.Unlock()
}

// InitializeCalls returns how many times Initialize was called.
func (m *Memory) InitializeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initCalls
}

// IncomingSubscribers returns the number of incoming-content subscriptions.
func (m *Memory) IncomingSubscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.incoming)
}

// StateSubscribers returns the number of state-update subscriptions.
func (m *Memory) StateSubscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.updates)
}

// PushIncoming delivers rec to every incoming sink subscribed on subID.
// It returns the number of sinks reached.
func (m *Memory) PushIncoming(subID int, rec *composer.Record) int {
	m.mu.Lock()
	var sinks []IncomingSink
	for _, s := range m.incoming {
		if s.subID == subID {
			sinks = append(sinks, s.sink)
		}
	}
	m.mu.Unlock()

	for _, s := range sinks {
		s.OnIncomingEnrichedCall(rec)
	}
	return len(sinks)
}

// PushStateUpdate delivers a state update to every state sink subscribed
// on subID. It returns the number of sinks reached.
func (m *Memory) PushStateUpdate(subID int, phoneNumber string, state composer.State) int {
	m.mu.Lock()
	var sinks []StateSink
	for _, s := range m.updates {
		if s.subID == subID {
			sinks = append(sinks, s.sink)
		}
	}
	m.mu.Unlock()

	for _, s := range sinks {
		s.OnEnrichedCallUpdate(phoneNumber, state)
	}
	return len(sinks)
}

func (m *Memory) IsFeatureEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.featureEnabled
}

func (m *Memory) IsServiceConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *Memory) Initialize() {
	m.mu.Lock()
	m.initCalls++
	m.mu.Unlock()
}

// SubscribeIncoming ignores duplicate subscriptions of the same sink.
// Subscriptions made while disconnected are dropped.
func (m *Memory) SubscribeIncoming(sink IncomingSink, subID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return
	}
	key := subKey[IncomingSink]{sink: sink, subID: subID}
	for _, s := range m.incoming {
		if s == key {
			return
		}
	}
	m.incoming = append(m.incoming, key)
}

func (m *Memory) UnsubscribeIncoming(sink IncomingSink, subID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey[IncomingSink]{sink: sink, subID: subID}
	for i, s := range m.incoming {
		if s == key {
			m.incoming = append(m.incoming[:i], m.incoming[i+1:]...)
			return
		}
	}
}

// SubscribeStateUpdates ignores duplicate subscriptions of the same sink.
// Subscriptions made while disconnected are dropped.
func (m *Memory) SubscribeStateUpdates(sink StateSink, subID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return
	}
	key := subKey[StateSink]{sink: sink, subID: subID}
	for _, s := range m.updates {
		if s == key {
			return
		}
	}
	m.updates = append(m.updates, key)
}

func (m *Memory) UnsubscribeStateUpdates(sink StateSink, subID int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := subKey[StateSink]{sink: sink, subID: subID}
	for i, s := range m.updates {
		if s == key {
			m.updates = append(m.updates[:i], m.updates[i+1:]...)
			return
		}
	}
}

func (m *Memory) IsRcsConfigEnabledOnSub(subID int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rcsConfig[subID]
}

func (m *Memory) OnServiceConnected(fn func()) func() {
	m.mu.Lock()
	id := m.nextListener
	m.nextListener++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}
