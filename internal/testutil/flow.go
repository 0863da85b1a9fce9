package testutil

import (
	"fmt"
	"sync"
)

// FixedFlowGenerator returns the same flow token every time, so every event
// in a scenario shares one flow.
//
// If token is empty, Generate returns "test-flow-default".
type FixedFlowGenerator struct {
	token string
}

// NewFixedFlowGenerator creates a generator for token.
//
// The token is typically set in the scenario YAML:
//
//	flow_token: "flow-missed-call"
func NewFixedFlowGenerator(token string) *FixedFlowGenerator {
	if token == "" {
		token = "test-flow-default"
	}
	return &FixedFlowGenerator{token: token}
}

// Generate returns the fixed token.
func (g *FixedFlowGenerator) Generate() string {
	return g.token
}

// SequenceFlowGenerator returns prefix-1, prefix-2, ... so that each event
// gets its own deterministic flow. Safe for concurrent use.
type SequenceFlowGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequenceFlowGenerator creates a generator. An empty prefix means "flow".
func NewSequenceFlowGenerator(prefix string) *SequenceFlowGenerator {
	if prefix == "" {
		prefix = "flow"
	}
	return &SequenceFlowGenerator{prefix: prefix}
}

// Generate returns the next token.
func (g *SequenceFlowGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
