// Package config loads enrichcall settings.
//
// Settings come from an optional YAML file, are overridden by command-line
// flags, and are then checked against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/roach88/enrichcall/internal/phonenum"
)

//go:embed schema.cue
var schemaCUE string

// Config holds every runtime setting.
type Config struct {
	DefaultRegion  string    `yaml:"default_region" json:"default_region"`
	SubscriptionID int       `yaml:"subscription_id" json:"subscription_id"`
	QueueSize      int       `yaml:"queue_size" json:"queue_size"`
	LogLevel       string    `yaml:"log_level" json:"log_level"`
	Journal        string    `yaml:"journal" json:"journal"`
	FeatureEnabled bool      `yaml:"feature_enabled" json:"feature_enabled"`
	Accounts       []Account `yaml:"accounts" json:"accounts"`
}

// Account describes a phone account for the in-process registrar.
type Account struct {
	ID        string   `yaml:"id" json:"id"`
	Component string   `yaml:"component" json:"component"`
	SubID     int      `yaml:"sub_id" json:"sub_id"`
	Schemes   []string `yaml:"schemes" json:"schemes"`
	// RCS marks the account's subscription as RCS-provisioned.
	RCS bool `yaml:"rcs" json:"rcs"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		DefaultRegion:  phonenum.DefaultRegion,
		QueueSize:      64,
		LogLevel:       "info",
		FeatureEnabled: true,
		Accounts:       []Account{},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults. Unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Flag names registered by RegisterFlags.
const (
	FlagRegion       = "region"
	FlagSubscription = "sub"
	FlagQueueSize    = "queue-size"
	FlagLogLevel     = "log-level"
	FlagJournal      = "journal"
)

// RegisterFlags adds override flags to fs. Their defaults are only for
// help text; ApplyFlags copies a flag only when the user set it.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(FlagRegion, d.DefaultRegion, "default region for numbers without a country code")
	fs.Int(FlagSubscription, d.SubscriptionID, "subscription ID to bind")
	fs.Int(FlagQueueSize, d.QueueSize, "initial router queue capacity")
	fs.String(FlagLogLevel, d.LogLevel, "log level (debug, info, warn, error)")
	fs.String(FlagJournal, d.Journal, "path to the sqlite event journal")
}

// ApplyFlags copies explicitly set flags from fs into cfg. Flags that were
// never registered are skipped.
func ApplyFlags(fs *pflag.FlagSet, cfg *Config) error {
	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		switch f.Name {
		case FlagRegion:
			cfg.DefaultRegion = strings.ToUpper(f.Value.String())
		case FlagSubscription:
			cfg.SubscriptionID, err = fs.GetInt(FlagSubscription)
		case FlagQueueSize:
			cfg.QueueSize, err = fs.GetInt(FlagQueueSize)
		case FlagLogLevel:
			cfg.LogLevel = strings.ToLower(f.Value.String())
		case FlagJournal:
			cfg.Journal = f.Value.String()
		}
	})
	if err != nil {
		return fmt.Errorf("apply flags: %w", err)
	}
	return nil
}

// Resolve loads path, applies flag overrides, and validates the result.
func Resolve(path string, fs *pflag.FlagSet) (Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return Config{}, err
	}
	if fs != nil {
		if err := ApplyFlags(fs, &cfg); err != nil {
			return Config{}, err
		}
	}
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SlogLevel maps LogLevel to a slog level. Unknown names map to info.
func (c Config) SlogLevel() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidationError is one schema violation.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every violation found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, ve := range e {
		msgs[i] = ve.Error()
	}
	return "invalid config: " + strings.Join(msgs, "; ")
}

// IsValidationError reports whether err carries schema violations.
// Uses errors.As to handle wrapped errors.
func IsValidationError(err error) bool {
	var ve ValidationErrors
	return errors.As(err, &ve)
}

// Validate checks cfg against the embedded CUE schema and returns
// ValidationErrors listing every violation.
func Validate(cfg Config) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	// Encode renders nil slices as null, which the list constraints reject.
	accounts := make([]Account, len(cfg.Accounts))
	copy(accounts, cfg.Accounts)
	for i := range accounts {
		if accounts[i].Schemes == nil {
			accounts[i].Schemes = []string{}
		}
	}
	cfg.Accounts = accounts

	val := ctx.Encode(cfg)
	if err := val.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	var out ValidationErrors
	err := def.Unify(val).Validate(cue.Concrete(true))
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		out = append(out, ValidationError{
			Field:   strings.TrimPrefix(strings.Join(e.Path(), "."), "#Config."),
			Message: fmt.Sprintf(format, args...),
		})
	}
	if err != nil && len(out) == 0 {
		out = ValidationErrors{{Message: err.Error()}}
	}
	if regionErr := ValidateRegion(cfg.DefaultRegion); regionErr != nil && !out.has("default_region") {
		out = append(out, *regionErr)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// ValidateRegion rejects regions the phone number library has no metadata
// for, such as "UK" or "ZZ".
func ValidateRegion(region string) *ValidationError {
	if phonenum.SupportedRegion(region) {
		return nil
	}
	return &ValidationError{
		Field:   "default_region",
		Message: fmt.Sprintf("unsupported region %q", region),
	}
}

func (e ValidationErrors) has(field string) bool {
	for _, ve := range e {
		if ve.Field == field {
			return true
		}
	}
	return false
}
