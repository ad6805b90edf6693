// Package config loads bot configuration from an optional YAML file with
// environment variable overrides for credentials.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration.
type Config struct {
	// Trigger is the keyword that starts a standup conversation,
	// matched case-insensitively as a substring.
	Trigger string `yaml:"trigger"`

	Slack      Slack      `yaml:"slack"`
	OpenAI     OpenAI     `yaml:"openai"`
	Run        Run        `yaml:"run"`
	Checkpoint Checkpoint `yaml:"checkpoint"`
	Health     Health     `yaml:"health"`
}

// Slack holds chat platform credentials. Tokens come from the
// environment, never the YAML file.
type Slack struct {
	BotToken string `yaml:"-"`
	AppToken string `yaml:"-"`
}

// OpenAI holds generation settings. The API key comes from the
// environment.
type OpenAI struct {
	APIKey    string        `yaml:"-"`
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"max_tokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Run bounds graph execution and generation retries.
type Run struct {
	MaxSteps       int           `yaml:"max_steps"`
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
}

// Checkpoint controls run-state persistence. Empty Path disables it.
type Checkpoint struct {
	Path string `yaml:"path"`
}

// Health configures the liveness endpoint. Empty Addr disables it.
type Health struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Trigger: "standup",
		OpenAI: OpenAI{
			Model:     "gpt-4o",
			MaxTokens: 2048,
			Timeout:   60 * time.Second,
		},
		Run: Run{
			MaxSteps:       25,
			MaxAttempts:    3,
			InitialBackoff: time.Second,
			MaxBackoff:     30 * time.Second,
		},
		Health: Health{
			Addr: ":8090",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), then applies environment overrides, then
// validates.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Run on defaults plus environment.
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SLACK_BOT_TOKEN"); v != "" {
		c.Slack.BotToken = v
	}
	if v := os.Getenv("SLACK_APP_TOKEN"); v != "" {
		c.Slack.AppToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
	if v := os.Getenv("OPENAI_MODEL"); v != "" {
		c.OpenAI.Model = v
	}
	if v := os.Getenv("STANDUP_TRIGGER"); v != "" {
		c.Trigger = v
	}
}

func (c *Config) validate() error {
	if c.Slack.BotToken == "" {
		return fmt.Errorf("config: SLACK_BOT_TOKEN is required")
	}
	if c.Slack.AppToken == "" {
		return fmt.Errorf("config: SLACK_APP_TOKEN is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("config: OPENAI_API_KEY is required")
	}
	if c.Run.MaxSteps <= 0 {
		return fmt.Errorf("config: run.max_steps must be positive")
	}
	if c.Run.MaxAttempts <= 0 {
		return fmt.Errorf("config: run.max_attempts must be positive")
	}
	return nil
}
