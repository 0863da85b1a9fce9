package host

import (
	"fmt"

	"github.com/roach88/enrichcall/internal/bundle"
	"github.com/roach88/enrichcall/internal/composer"
)

// Step is one external stimulus: something the RCS service, the call
// registry, or the dialer does. Exactly one field is set.
//
// Steps are written as YAML in harness scenarios and as JSON lines on the
// `enrichcall run` input.
type Step struct {
	Content       *ContentInput `yaml:"content,omitempty" json:"content,omitempty"`
	Call          *CallInput    `yaml:"call,omitempty" json:"call,omitempty"`
	State         *StateInput   `yaml:"state,omitempty" json:"state,omitempty"`
	Service       string        `yaml:"service,omitempty" json:"service,omitempty"`
	EndCall       string        `yaml:"end_call,omitempty" json:"end_call,omitempty"`
	SelectAccount *AccountInput `yaml:"select_account,omitempty" json:"select_account,omitempty"`
}

// Service step values.
const (
	ServiceConnect    = "connect"
	ServiceDisconnect = "disconnect"
)

// ContentInput is composer content pushed by the service.
type ContentInput struct {
	Number   string `yaml:"number" json:"number"`
	Subject  string `yaml:"subject,omitempty" json:"subject,omitempty"`
	Image    string `yaml:"image,omitempty" json:"image,omitempty"`
	Location string `yaml:"location,omitempty" json:"location,omitempty"`
	Priority string `yaml:"priority,omitempty" json:"priority,omitempty"`
	// State defaults to OFFERED.
	State string `yaml:"state,omitempty" json:"state,omitempty"`
}

// CallInput is a call added to the registry.
type CallInput struct {
	ID     string `yaml:"id" json:"id"`
	Handle string `yaml:"handle" json:"handle"`
	// Intent is content the dialer attached when placing the call.
	Intent *ContentInput `yaml:"intent,omitempty" json:"intent,omitempty"`
}

// StateInput is a delivery state update.
type StateInput struct {
	Number string `yaml:"number" json:"number"`
	State  string `yaml:"state" json:"state"`
}

// AccountInput asks which account an outgoing call should use.
type AccountInput struct {
	Scheme    string `yaml:"scheme" json:"scheme"`
	Subject   string `yaml:"subject,omitempty" json:"subject,omitempty"`
	Requested string `yaml:"requested,omitempty" json:"requested,omitempty"`
}

// Name returns the step's kind, or "" when the step is malformed.
func (s Step) Name() string {
	var names []string
	if s.Content != nil {
		names = append(names, "content")
	}
	if s.Call != nil {
		names = append(names, "call")
	}
	if s.State != nil {
		names = append(names, "state")
	}
	if s.Service != "" {
		names = append(names, "service")
	}
	if s.EndCall != "" {
		names = append(names, "end_call")
	}
	if s.SelectAccount != nil {
		names = append(names, "select_account")
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// Validate checks the step shape without touching any host.
func (s Step) Validate() error {
	switch s.Name() {
	case "":
		return fmt.Errorf("step must set exactly one of content, call, state, service, end_call, select_account")
	case "content":
		_, err := s.Content.Record()
		return err
	case "call":
		if s.Call.ID == "" {
			return fmt.Errorf("call: id is required")
		}
		if s.Call.Intent != nil {
			if _, err := s.Call.Intent.Record(); err != nil {
				return fmt.Errorf("call.intent: %w", err)
			}
		}
	case "state":
		if _, err := composer.ParseState(s.State.State); err != nil {
			return fmt.Errorf("state: %w", err)
		}
	case "service":
		if s.Service != ServiceConnect && s.Service != ServiceDisconnect {
			return fmt.Errorf("service: want %q or %q, got %q", ServiceConnect, ServiceDisconnect, s.Service)
		}
	case "select_account":
		if s.SelectAccount.Scheme == "" {
			return fmt.Errorf("select_account: scheme is required")
		}
	}
	return nil
}

// Record converts the input to a content record. An empty number is kept
// so that malformed pushes can be exercised.
func (c *ContentInput) Record() (*composer.Record, error) {
	priority, err := composer.ParsePriority(c.Priority)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}
	state := composer.StateOffered
	if c.State != "" {
		if state, err = composer.ParseState(c.State); err != nil {
			return nil, fmt.Errorf("content: %w", err)
		}
	}
	rec := composer.NewRecord(c.Number, c.Subject, c.Image, priority)
	if c.Location != "" {
		rec.Payload[composer.KeyLocation] = bundle.String(c.Location)
	}
	rec.State = state
	return rec, nil
}
