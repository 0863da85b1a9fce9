package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "enrichcall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "US", cfg.DefaultRegion)
	assert.True(t, cfg.FeatureEnabled)
	assert.NoError(t, Validate(cfg))
}

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_EmptyFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
default_region: GB
subscription_id: 2
journal: /tmp/journal.db
accounts:
  - id: sim2
    component: telephony
    sub_id: 2
    schemes: [tel]
    rcs: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "GB", cfg.DefaultRegion)
	assert.Equal(t, 2, cfg.SubscriptionID)
	assert.Equal(t, 64, cfg.QueueSize, "unset keys keep defaults")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "/tmp/journal.db", cfg.Journal)
	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, Account{ID: "sim2", Component: "telephony", SubID: 2, Schemes: []string{"tel"}, RCS: true}, cfg.Accounts[0])
	assert.NoError(t, Validate(cfg))
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	_, err := Load(writeConfig(t, "default_regoin: GB\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "default_regoin")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestValidate_ReportsViolations(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Config)
		field string
	}{
		{"lowercase region", func(c *Config) { c.DefaultRegion = "us" }, "default_region"},
		{"zero queue", func(c *Config) { c.QueueSize = 0 }, "queue_size"},
		{"negative subscription", func(c *Config) { c.SubscriptionID = -1 }, "subscription_id"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"account without id", func(c *Config) {
			c.Accounts = []Account{{Component: "telephony", Schemes: []string{"tel"}}}
		}, "accounts"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mod(&cfg)

			err := Validate(cfg)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var ve ValidationErrors
			require.ErrorAs(t, err, &ve)
			require.NotEmpty(t, ve)
			assert.Contains(t, ve[0].Field, tt.field)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestValidate_RejectsUnsupportedRegion(t *testing.T) {
	for _, region := range []string{"UK", "ZZ", "XX"} {
		t.Run(region, func(t *testing.T) {
			cfg := Default()
			cfg.DefaultRegion = region

			err := Validate(cfg)
			require.Error(t, err)

			var ve ValidationErrors
			require.ErrorAs(t, err, &ve)
			require.Len(t, ve, 1)
			assert.Equal(t, "default_region", ve[0].Field)
			assert.Contains(t, ve[0].Message, "unsupported region")
		})
	}
}

func TestValidateRegion(t *testing.T) {
	assert.Nil(t, ValidateRegion("GB"))
	assert.Nil(t, ValidateRegion("US"))
	require.NotNil(t, ValidateRegion("UK"))
	assert.Equal(t, `default_region: unsupported region "UK"`, ValidateRegion("UK").Error())
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	cfg := Default()
	cfg.Accounts = []Account{{ID: "a", Component: "c"}}
	require.NoError(t, Validate(cfg))
	assert.Nil(t, cfg.Accounts[0].Schemes)
}

func TestApplyFlags_OnlyChangedFlags(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--region", "de", "--queue-size", "8", "--log-level", "DEBUG"}))

	cfg := Default()
	cfg.Journal = "from-file.db"
	require.NoError(t, ApplyFlags(fs, &cfg))

	assert.Equal(t, "DE", cfg.DefaultRegion)
	assert.Equal(t, 8, cfg.QueueSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-file.db", cfg.Journal, "unset flag keeps file value")
	assert.Equal(t, 0, cfg.SubscriptionID)
}

func TestResolve(t *testing.T) {
	path := writeConfig(t, "default_region: GB\nsubscription_id: 1\n")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--sub", "3"}))

	cfg, err := Resolve(path, fs)
	require.NoError(t, err)
	assert.Equal(t, "GB", cfg.DefaultRegion)
	assert.Equal(t, 3, cfg.SubscriptionID)

	bad := pflag.NewFlagSet("bad", pflag.ContinueOnError)
	RegisterFlags(bad)
	require.NoError(t, bad.Parse([]string{"--queue-size", "0"}))
	_, err = Resolve(path, bad)
	assert.True(t, IsValidationError(err))

	cfg, err = Resolve("", nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestSlogLevel(t *testing.T) {
	for name, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
	} {
		assert.Equal(t, want, Config{LogLevel: name}.SlogLevel(), name)
	}
}
