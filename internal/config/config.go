// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFile is the config file looked up in the working directory.
const DefaultFile = "contui.toml"

// Config represents the contui configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`
	Agent     AgentConfig     `toml:"agent"`
	Storage   StorageConfig   `toml:"storage"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	UI        UIConfig        `toml:"ui"`
}

// LLMConfig contains model provider settings.
type LLMConfig struct {
	Provider     string  `toml:"provider"`
	Model        string  `toml:"model"`
	APIKeyEnv    string  `toml:"api_key_env"`
	BaseURL      string  `toml:"base_url"`
	MaxTokens    int     `toml:"max_tokens"`
	Temperature  float64 `toml:"temperature"`
	MaxRetries   int     `toml:"max_retries"`   // total attempts on HTTP 429
	RetryBackoff string  `toml:"retry_backoff"` // multiplied by the attempt number
	SystemPrompt string  `toml:"system_prompt"` // empty = built-in prompt
}

// AgentConfig controls the step loop and the sandbox.
type AgentConfig struct {
	MaxSteps       int      `toml:"max_steps"`
	StepTimeout    string   `toml:"step_timeout"`
	AllowedDirs    []string `toml:"allowed_dirs"` // empty = working dir + home
	MaxOutputBytes int      `toml:"max_output_bytes"`
	ContextTurns   int      `toml:"context_turns"`
}

// StorageConfig contains persistent storage settings.
type StorageConfig struct {
	Path            string `toml:"path"`
	PersistSessions bool   `toml:"persist_sessions"`
}

// LoggingConfig contains log output settings.
type LoggingConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"` // relative paths are under storage.path
}

// TelemetryConfig contains tracing settings.
type TelemetryConfig struct {
	Enabled     bool   `toml:"enabled"`
	ServiceName string `toml:"service_name"`
	Endpoint    string `toml:"endpoint"` // OTLP/HTTP host:port; empty = OTEL_EXPORTER_OTLP_ENDPOINT or localhost:4318
	Insecure    bool   `toml:"insecure"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	WrapWidth    int    `toml:"wrap_width"` // 0 = terminal width
	PollInterval string `toml:"poll_interval"`
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			Provider:     "gemini",
			Model:        "gemini-2.0-flash",
			APIKeyEnv:    "GEMINI_API_KEY",
			BaseURL:      "https://generativelanguage.googleapis.com",
			MaxTokens:    1000,
			Temperature:  0.7,
			MaxRetries:   3,
			RetryBackoff: "1s",
		},
		Agent: AgentConfig{
			MaxSteps:       10,
			StepTimeout:    "30s",
			MaxOutputBytes: 16 * 1024,
			ContextTurns:   10,
		},
		Storage: StorageConfig{
			Path:            "~/.local/contui",
			PersistSessions: true,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "contui.log",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "contui",
		},
		UI: UIConfig{
			PollInterval: "100ms",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads contui.toml from the current directory, falling back to
// defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, DefaultFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return New(), nil
	}
	return LoadFile(path)
}

// ApplyEnv overlays the MODEL, MAX_TOKENS and TEMPERATURE variables onto the
// config. Malformed numbers are reported and leave the field untouched.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}
	var errs []error
	if v := strings.TrimSpace(getenv("MODEL")); v != "" {
		c.LLM.Model = v
	}
	if v := strings.TrimSpace(getenv("MAX_TOKENS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("MAX_TOKENS: %w", err))
		} else {
			c.LLM.MaxTokens = n
		}
	}
	if v := strings.TrimSpace(getenv("TEMPERATURE")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("TEMPERATURE: %w", err))
		} else {
			c.LLM.Temperature = f
		}
	}
	return errors.Join(errs...)
}

// Validate reports settings the agent cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.LLM.Model == "" {
		errs = append(errs, errors.New("llm.model is required"))
	}
	if c.GetAPIKey() == "" {
		errs = append(errs, fmt.Errorf("API key not set (export %s)", c.apiKeyEnv()))
	}
	if c.Agent.MaxSteps <= 0 {
		errs = append(errs, errors.New("agent.max_steps must be positive"))
	}
	if _, err := c.StepTimeout(); err != nil {
		errs = append(errs, err)
	}
	if _, err := c.RetryBackoff(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetAPIKey returns the API key from the configured environment variable.
func (c *Config) GetAPIKey() string {
	return os.Getenv(c.apiKeyEnv())
}

func (c *Config) apiKeyEnv() string {
	if c.LLM.APIKeyEnv != "" {
		return c.LLM.APIKeyEnv
	}
	return DefaultAPIKeyEnv(c.LLM.Provider)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "google":
		return "GOOGLE_API_KEY"
	default:
		return "GEMINI_API_KEY"
	}
}

// StepTimeout parses agent.step_timeout.
func (c *Config) StepTimeout() (time.Duration, error) {
	return parseDuration("agent.step_timeout", c.Agent.StepTimeout, 30*time.Second)
}

// RetryBackoff parses llm.retry_backoff.
func (c *Config) RetryBackoff() (time.Duration, error) {
	return parseDuration("llm.retry_backoff", c.LLM.RetryBackoff, time.Second)
}

// PollInterval parses ui.poll_interval.
func (c *Config) PollInterval() (time.Duration, error) {
	return parseDuration("ui.poll_interval", c.UI.PollInterval, 100*time.Millisecond)
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", name)
	}
	return d, nil
}

// AllowedDirs returns the configured sandbox roots with ~ expanded, or the
// working directory and home directory when none are configured.
func (c *Config) AllowedDirs() []string {
	if len(c.Agent.AllowedDirs) > 0 {
		dirs := make([]string, 0, len(c.Agent.AllowedDirs))
		for _, d := range c.Agent.AllowedDirs {
			dirs = append(dirs, ExpandPath(d))
		}
		return dirs
	}
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	return dirs
}

// StoragePath returns storage.path with ~ expanded.
func (c *Config) StoragePath() string {
	return ExpandPath(c.Storage.Path)
}

// SessionDir is where transcripts are written.
func (c *Config) SessionDir() string {
	return filepath.Join(c.StoragePath(), "sessions")
}

// LogPath returns the log file location; relative names live under storage.path.
func (c *Config) LogPath() string {
	if c.Logging.File == "" {
		return ""
	}
	p := ExpandPath(c.Logging.File)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.StoragePath(), p)
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
