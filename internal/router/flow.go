package router

import "github.com/google/uuid"

// FlowTokenGenerator generates correlation tokens for routed events.
// Implemented by UUIDv7Generator (production) and
// testutil.FixedFlowGenerator (tests).
type FlowTokenGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 flow tokens.
//
// Tokens sort by creation time, which keeps `enrichcall trace` output
// readable.
type UUIDv7Generator struct{}

// Generate returns a new hyphenated UUIDv7.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
