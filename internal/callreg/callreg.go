// Package callreg describes the host call registry the correlator reads
// and writes, and provides an in-memory registry that stands in for the
// host in tests, the harness and the CLI.
//
// The correlator never owns call lifecycle. It enumerates calls and reads
// or writes their extras, nothing more.
package callreg

import (
	"strings"
	"sync"

	"github.com/roach88/enrichcall/internal/bundle"
)

// Call is a handle to a call owned by the host.
type Call interface {
	// ID identifies the call within the host.
	ID() string
	// PhoneNumber returns the scheme-specific part of the call handle, or ""
	// when the call has no handle.
	PhoneNumber() string
	// Extras returns a copy of the call's current extras, or nil.
	Extras() bundle.Bundle
	// IntentExtras returns a copy of the extras the call was created with.
	IntentExtras() bundle.Bundle
	// PutExtras merges extras into the call's extras.
	PutExtras(extras bundle.Bundle)
}

// Registry enumerates the host's active calls.
type Registry interface {
	Calls() []Call
}

// SchemeSpecificPart strips a URI scheme such as "tel:" or "sip:" from a
// call handle. Handles without a scheme are returned unchanged.
func SchemeSpecificPart(handle string) string {
	scheme, rest, ok := strings.Cut(handle, ":")
	if !ok || scheme == "" || strings.ContainsAny(scheme, "+0123456789 ") {
		return handle
	}
	return rest
}

// MemoryCall is a Call held by a Memory registry.
type MemoryCall struct {
	id     string
	handle string

	mu           sync.Mutex
	extras       bundle.Bundle
	intentExtras bundle.Bundle
	puts         int
}

// NewCall creates a call. handle is a URI such as "tel:4155550100"; an
// empty handle models a call with no number (e.g. a conference).
func NewCall(id, handle string, intentExtras bundle.Bundle) *MemoryCall {
	return &MemoryCall{
		id:           id,
		handle:       handle,
		intentExtras: intentExtras.Clone(),
	}
}

func (c *MemoryCall) ID() string { return c.id }

// Handle returns the call handle URI.
func (c *MemoryCall) Handle() string { return c.handle }

func (c *MemoryCall) PhoneNumber() string {
	if c.handle == "" {
		return ""
	}
	return SchemeSpecificPart(c.handle)
}

func (c *MemoryCall) Extras() bundle.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.extras.Clone()
}

func (c *MemoryCall) IntentExtras() bundle.Bundle {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.intentExtras.Clone()
}

func (c *MemoryCall) PutExtras(extras bundle.Bundle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.extras == nil {
		c.extras = bundle.New()
	}
	c.extras.PutAll(extras.Clone())
	c.puts++
}

// PutCount returns how many times PutExtras was called. Each attach is one
// observable write to the host.
func (c *MemoryCall) PutCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.puts
}

// Memory is a Registry backed by an ordered slice. Safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	calls []*MemoryCall
}

// NewMemory returns an empty registry.
func NewMemory() *Memory {
	return &Memory{}
}

// Add registers call. Calls are enumerated in insertion order.
func (m *Memory) Add(call *MemoryCall) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// Remove drops the call with id. It reports whether a call was removed.
func (m *Memory) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.calls {
		if c.id == id {
			m.calls = append(m.calls[:i], m.calls[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the call with id.
func (m *Memory) Get(id string) (*MemoryCall, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, c := range m.calls {
		if c.id == id {
			return c, true
		}
	}
	return nil, false
}

// Calls implements Registry.
func (m *Memory) Calls() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Call, len(m.calls))
	for i, c := range m.calls {
		out[i] = c
	}
	return out
}

// MemoryCalls returns the concrete calls in insertion order.
func (m *Memory) MemoryCalls() []*MemoryCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*MemoryCall, len(m.calls))
	copy(out, m.calls)
	return out
}
