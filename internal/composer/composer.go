// Package composer defines call composer content: the subject, image,
// priority and location a caller attaches to an enriched call, together
// with the delivery state reported by the vendor service.
package composer

import (
	"fmt"
	"strings"

	"github.com/roach88/enrichcall/internal/bundle"
)

// ExtraKey is the call extra under which attached content is stored.
const ExtraKey = "org.codeaurora.rcscommon.ENRICH_CALL_INTENT_EXTRA"

// Bundle keys used inside the attached content.
const (
	KeyPhoneNumber = "phone_number"
	KeyCallState   = "call_state"
	KeySubject     = "subject"
	KeyImage       = "image"
	KeyPriority    = "priority"
	KeyLocation    = "location"
)

// State is the enriched call delivery state.
type State int

const (
	StateUnknown State = iota
	StateOffered
	StateSucceeded
	StateFailed
)

var stateNames = [...]string{"UNKNOWN", "OFFERED", "SUCCEEDED", "FAILED"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a state name, case-insensitively.
func ParseState(name string) (State, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range stateNames {
		if n == upper {
			return State(i), nil
		}
	}
	return StateUnknown, fmt.Errorf("unknown enriched call state %q", name)
}

// MarshalText implements encoding.TextMarshaler.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Priority of the composer content.
type Priority int

const (
	PriorityNormal Priority = iota
	PriorityUrgent
)

func (p Priority) String() string {
	if p == PriorityUrgent {
		return "URGENT"
	}
	return "NORMAL"
}

// ParsePriority parses "NORMAL" or "URGENT". Empty means NORMAL.
func ParsePriority(name string) (Priority, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "NORMAL":
		return PriorityNormal, nil
	case "URGENT", "HIGH":
		return PriorityUrgent, nil
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", name)
}

// Record is one piece of content for one phone number.
//
// PhoneNumber is kept as received. Matching always compares normalized
// forms, so the original formatting survives into the call extras.
type Record struct {
	PhoneNumber string
	State       State
	Payload     bundle.Bundle
}

// NewRecord builds a record from composer fields.
func NewRecord(phoneNumber, subject, image string, priority Priority) *Record {
	payload := bundle.New()
	if subject != "" {
		payload[KeySubject] = bundle.String(subject)
	}
	if image != "" {
		payload[KeyImage] = bundle.String(image)
	}
	payload[KeyPriority] = bundle.Int(priority)
	return &Record{PhoneNumber: phoneNumber, Payload: payload}
}

// Subject returns the composer subject, if any.
func (r *Record) Subject() string { return r.Payload.GetString(KeySubject) }

// Image returns the image URI, if any.
func (r *Record) Image() string { return r.Payload.GetString(KeyImage) }

// Location returns the "lat,lng" location, if any.
func (r *Record) Location() string { return r.Payload.GetString(KeyLocation) }

// Priority returns the content priority.
func (r *Record) Priority() Priority { return Priority(r.Payload.GetInt(KeyPriority)) }

// Valid reports whether the record carries anything worth showing.
func (r *Record) Valid() bool {
	if r == nil {
		return false
	}
	return r.Subject() != "" || r.Image() != "" || r.Location() != ""
}

// WithState returns a copy of r carrying state.
func (r *Record) WithState(state State) *Record {
	return &Record{
		PhoneNumber: r.PhoneNumber,
		State:       state,
		Payload:     r.Payload.Clone(),
	}
}

// Bundle encodes r for storage in call extras.
func (r *Record) Bundle() bundle.Bundle {
	b := r.Payload.Clone()
	if b == nil {
		b = bundle.New()
	}
	b[KeyPhoneNumber] = bundle.String(r.PhoneNumber)
	b[KeyCallState] = bundle.String(r.State.String())
	return b
}

// FromBundle rebuilds a record from its extras encoding. It returns nil
// for a nil bundle. An unrecognized state decodes as StateUnknown.
func FromBundle(b bundle.Bundle) *Record {
	if b == nil {
		return nil
	}
	payload := b.Clone()
	number := payload.GetString(KeyPhoneNumber)
	state, _ := ParseState(payload.GetString(KeyCallState))
	delete(payload, KeyPhoneNumber)
	delete(payload, KeyCallState)
	return &Record{PhoneNumber: number, State: state, Payload: payload}
}

func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("Record{number=%s state=%s subject=%q image=%q priority=%s}",
		r.PhoneNumber, r.State, r.Subject(), r.Image(), r.Priority())
}
