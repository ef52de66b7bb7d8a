package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.LLM.MaxTokens != 1000 {
		t.Errorf("expected max_tokens 1000, got %d", cfg.LLM.MaxTokens)
	}
	if cfg.LLM.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.LLM.Temperature)
	}
	if cfg.Agent.MaxSteps != 10 {
		t.Errorf("expected max_steps 10, got %d", cfg.Agent.MaxSteps)
	}
	if d, _ := cfg.StepTimeout(); d != 30*time.Second {
		t.Errorf("expected 30s step timeout, got %v", d)
	}
	if d, _ := cfg.RetryBackoff(); d != time.Second {
		t.Errorf("expected 1s backoff, got %v", d)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contui.toml")
	content := `
[llm]
model = "gemini-1.5-pro"
max_retries = 5

[agent]
max_steps = 4
allowed_dirs = ["/tmp"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.LLM.Model != "gemini-1.5-pro" {
		t.Errorf("model not loaded: %s", cfg.LLM.Model)
	}
	if cfg.LLM.MaxRetries != 5 {
		t.Errorf("max_retries not loaded: %d", cfg.LLM.MaxRetries)
	}
	if cfg.Agent.MaxSteps != 4 {
		t.Errorf("max_steps not loaded: %d", cfg.Agent.MaxSteps)
	}
	// untouched keys keep defaults
	if cfg.LLM.MaxTokens != 1000 {
		t.Errorf("default max_tokens lost: %d", cfg.LLM.MaxTokens)
	}
	if dirs := cfg.AllowedDirs(); len(dirs) != 1 || dirs[0] != "/tmp" {
		t.Errorf("unexpected allowed dirs %v", dirs)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	os.WriteFile(path, []byte("[llm\nmodel="), 0o644)
	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"MODEL":       "gemini-exp",
		"MAX_TOKENS":  "2048",
		"TEMPERATURE": "0.2",
	}
	cfg := New()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.LLM.Model != "gemini-exp" || cfg.LLM.MaxTokens != 2048 || cfg.LLM.Temperature != 0.2 {
		t.Errorf("env not applied: %+v", cfg.LLM)
	}
}

func TestApplyEnv_BadNumbers(t *testing.T) {
	cfg := New()
	err := cfg.ApplyEnv(func(k string) string {
		if k == "MAX_TOKENS" {
			return "lots"
		}
		return ""
	})
	if err == nil || !strings.Contains(err.Error(), "MAX_TOKENS") {
		t.Fatalf("expected MAX_TOKENS error, got %v", err)
	}
	if cfg.LLM.MaxTokens != 1000 {
		t.Errorf("bad value should leave default, got %d", cfg.LLM.MaxTokens)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("CONTUI_TEST_KEY", "")
	cfg := New()
	cfg.LLM.APIKeyEnv = "CONTUI_TEST_KEY"
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "CONTUI_TEST_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}

	t.Setenv("CONTUI_TEST_KEY", "secret")
	if err := cfg.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	cfg.Agent.StepTimeout = "soon"
	if err := cfg.Validate(); err == nil {
		t.Error("expected step_timeout error")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home dir")
	}
	if got := ExpandPath("~/x"); got != filepath.Join(home, "x") {
		t.Errorf("got %s", got)
	}
	if got := ExpandPath("/abs/~"); got != "/abs/~" {
		t.Errorf("got %s", got)
	}
}

func TestLogPath(t *testing.T) {
	cfg := New()
	cfg.Storage.Path = "/var/contui"
	if got := cfg.LogPath(); got != "/var/contui/contui.log" {
		t.Errorf("got %s", got)
	}
	cfg.Logging.File = "/tmp/x.log"
	if got := cfg.LogPath(); got != "/tmp/x.log" {
		t.Errorf("got %s", got)
	}
}
