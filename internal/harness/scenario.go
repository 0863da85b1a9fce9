package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/enrichcall/internal/config"
	"github.com/roach88/enrichcall/internal/host"
)

// Scenario is one executable description of host behaviour.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// FlowToken fixes the flow token of every event. When empty, events get
	// sequential tokens flow-1, flow-2, ...
	FlowToken string `yaml:"flow_token,omitempty"`

	// Region is the default normalization region. Defaults to US.
	Region string `yaml:"region,omitempty"`

	// SubscriptionID is the subscription the binder listens on.
	SubscriptionID int `yaml:"subscription_id,omitempty"`

	// FeatureDisabled turns the enriched call feature off.
	FeatureDisabled bool `yaml:"feature_disabled,omitempty"`

	// Connected starts the service connected.
	Connected bool `yaml:"connected,omitempty"`

	// Accounts populate the phone account registrar.
	Accounts []config.Account `yaml:"accounts,omitempty"`

	// Steps run in order; the router is drained after each.
	Steps []host.Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions"`
}

// Assertion validates trace or final state. Which fields apply depends on
// Type; see the package documentation.
type Assertion struct {
	Type string `yaml:"type"`

	Kind     string   `yaml:"kind,omitempty"`
	Outcome  string   `yaml:"outcome,omitempty"`
	Outcomes []string `yaml:"outcomes,omitempty"`
	Call     string   `yaml:"call,omitempty"`
	Number   string   `yaml:"number,omitempty"`
	State    string   `yaml:"state,omitempty"`
	Subject  string   `yaml:"subject,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains   = "trace_contains"
	AssertTraceOrder      = "trace_order"
	AssertTraceCount      = "trace_count"
	AssertAttached        = "attached"
	AssertNotAttached     = "not_attached"
	AssertPutCount        = "put_count"
	AssertPendingCount    = "pending_count"
	AssertPendingContains = "pending_contains"
	AssertJournalCount    = "journal_count"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so that typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	needCount := func() error {
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for %s", index, a.Type)
		}
		if *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTraceContains:
		if a.Kind == "" && a.Outcome == "" && a.Call == "" && a.Number == "" {
			return fmt.Errorf("assertions[%d]: trace_contains needs at least one of kind, outcome, call, number", index)
		}
	case AssertTraceOrder:
		if len(a.Outcomes) == 0 {
			return fmt.Errorf("assertions[%d]: outcomes list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Kind == "" && a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: trace_count needs kind or outcome", index)
		}
		return needCount()
	case AssertAttached, AssertNotAttached:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for %s", index, a.Type)
		}
	case AssertPutCount:
		if a.Call == "" {
			return fmt.Errorf("assertions[%d]: call is required for put_count", index)
		}
		return needCount()
	case AssertPendingCount, AssertJournalCount:
		return needCount()
	case AssertPendingContains:
		if a.Number == "" {
			return fmt.Errorf("assertions[%d]: number is required for pending_contains", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
