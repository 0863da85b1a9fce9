// Package account picks the phone account an outgoing enriched call is
// placed on.
package account

import (
	"log/slog"
	"sync"

	"github.com/roach88/enrichcall/internal/composer"
)

// Handle identifies a phone account. The zero Handle means "none".
type Handle struct {
	Component string
	ID        string
}

// IsZero reports whether h names no account.
func (h Handle) IsZero() bool { return h == Handle{} }

func (h Handle) String() string {
	if h.IsZero() {
		return "<none>"
	}
	return h.Component + "/" + h.ID
}

// Registrar is the host's phone account registry.
type Registrar interface {
	// DefaultOutgoing returns the user's default account for scheme, or the
	// zero Handle when the user is asked every time.
	DefaultOutgoing(scheme string) Handle
	// CallCapable lists accounts able to place calls with scheme, in
	// registry order.
	CallCapable(scheme string) []Handle
	// SubscriptionID maps an account to its telephony subscription.
	SubscriptionID(h Handle) int
}

// RcsConfig reports per-subscription RCS provisioning. Implemented by
// rcs.Service.
type RcsConfig interface {
	IsRcsConfigEnabledOnSub(subID int) bool
}

// Selector chooses RCS-capable accounts.
type Selector struct {
	reg Registrar
	cfg RcsConfig
}

// NewSelector panics on nil collaborators.
func NewSelector(reg Registrar, cfg RcsConfig) *Selector {
	if reg == nil || cfg == nil {
		panic("account: nil registrar or rcs config")
	}
	return &Selector{reg: reg, cfg: cfg}
}

// CanInitiateOnSub reports whether an RCS call can be placed on subID.
func (s *Selector) CanInitiateOnSub(subID int) bool {
	return s.cfg.IsRcsConfigEnabledOnSub(subID)
}

// PreferredAccount returns the account to dial on.
//
// A requested account always wins, as does a user default for scheme.
// Otherwise, for valid composer data, the first call-capable account whose
// subscription can carry RCS is chosen. The zero Handle means the host
// should prompt.
func (s *Selector) PreferredAccount(scheme string, data *composer.Record, requested Handle) Handle {
	if !requested.IsZero() {
		return requested
	}
	if !s.reg.DefaultOutgoing(scheme).IsZero() || !data.Valid() {
		return requested
	}
	for _, h := range s.reg.CallCapable(scheme) {
		if s.CanInitiateOnSub(s.reg.SubscriptionID(h)) {
			slog.Debug("rcs account selected", "account", h, "scheme", scheme)
			return h
		}
	}
	return requested
}

// Account is one entry in a MemoryRegistrar.
type Account struct {
	Handle  Handle
	SubID   int
	Schemes []string
}

// MemoryRegistrar is an in-process Registrar. Safe for concurrent use.
type MemoryRegistrar struct {
	mu       sync.Mutex
	accounts []Account
	defaults map[string]Handle
}

// NewMemoryRegistrar returns an empty registrar.
func NewMemoryRegistrar() *MemoryRegistrar {
	return &MemoryRegistrar{defaults: make(map[string]Handle)}
}

// Register adds an account. Registration order is CallCapable order.
func (m *MemoryRegistrar) Register(a Account) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts = append(m.accounts, a)
}

// SetDefault sets the default outgoing account for scheme. A zero Handle
// clears it.
func (m *MemoryRegistrar) SetDefault(scheme string, h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h.IsZero() {
		delete(m.defaults, scheme)
		return
	}
	m.defaults[scheme] = h
}

func (m *MemoryRegistrar) DefaultOutgoing(scheme string) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.defaults[scheme]
}

func (m *MemoryRegistrar) CallCapable(scheme string) []Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Handle
	for _, a := range m.accounts {
		for _, s := range a.Schemes {
			if s == scheme {
				out = append(out, a.Handle)
				break
			}
		}
	}
	return out
}

// SubscriptionID returns -1 for an unknown account.
func (m *MemoryRegistrar) SubscriptionID(h Handle) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if a.Handle == h {
			return a.SubID
		}
	}
	return -1
}
