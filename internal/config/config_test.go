package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
	t.Setenv("OPENAI_API_KEY", "sk-test")
}

// TestLoad_DefaultsWithEnv tests defaults when no file exists.
func TestLoad_DefaultsWithEnv(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "standup", cfg.Trigger)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.Equal(t, 25, cfg.Run.MaxSteps)
	assert.Equal(t, 3, cfg.Run.MaxAttempts)
	assert.Equal(t, 60*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, "xoxb-test", cfg.Slack.BotToken)
	assert.Empty(t, cfg.Checkpoint.Path)
}

// TestLoad_YAMLOverridesDefaults tests file values win over defaults.
func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
trigger: daily
openai:
  model: gpt-4o-mini
  timeout: 30s
run:
  max_steps: 10
  max_attempts: 5
checkpoint:
  path: /tmp/standup.db
health:
  addr: ":9999"
`), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "daily", cfg.Trigger)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, 10, cfg.Run.MaxSteps)
	assert.Equal(t, 5, cfg.Run.MaxAttempts)
	assert.Equal(t, "/tmp/standup.db", cfg.Checkpoint.Path)
	assert.Equal(t, ":9999", cfg.Health.Addr)
}

// TestLoad_EnvOverridesFile tests env wins over the file for the values it
// covers.
func TestLoad_EnvOverridesFile(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("STANDUP_TRIGGER", "checkin")
	t.Setenv("OPENAI_MODEL", "gpt-5")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trigger: daily\n"), 0o600))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "checkin", cfg.Trigger)
	assert.Equal(t, "gpt-5", cfg.OpenAI.Model)
}

// TestLoad_MissingCredentials tests that each required credential is
// enforced.
func TestLoad_MissingCredentials(t *testing.T) {
	tests := []struct {
		name string
		omit string
	}{
		{"bot token", "SLACK_BOT_TOKEN"},
		{"app token", "SLACK_APP_TOKEN"},
		{"api key", "OPENAI_API_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tt.omit, "")

			_, err := Load("")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.omit)
		})
	}
}

// TestLoad_InvalidYAML tests parse failures are surfaced.
func TestLoad_InvalidYAML(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("trigger: [unclosed"), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}

// TestLoad_InvalidBounds tests run-bound validation.
func TestLoad_InvalidBounds(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("run:\n  max_steps: -1\n"), 0o600))

	_, err := Load(path)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_steps")
}
