package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.CacheDir != "./paper_cache" {
		t.Errorf("expected default cache dir ./paper_cache, got %s", d.CacheDir)
	}
	if d.OllamaModel != "deepseek-r1:1.5b" {
		t.Errorf("expected default model deepseek-r1:1.5b, got %s", d.OllamaModel)
	}
	if d.OllamaURL != "http://localhost:11434" {
		t.Errorf("expected default ollama url, got %s", d.OllamaURL)
	}
	if d.FallbackTextChars != 2000 {
		t.Errorf("expected default fallback chars 2000, got %d", d.FallbackTextChars)
	}
	if d.ModelTimeoutSec != 0 {
		t.Errorf("expected no default model timeout, got %d", d.ModelTimeoutSec)
	}
	if d.SweepTime != "03:00" {
		t.Errorf("expected default sweep time 03:00, got %s", d.SweepTime)
	}
	if d.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", d.LogLevel)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9000"
cache_dir: "/tmp/papers"
ollama_model: "llama3.2:3b"
model_timeout_secs: 90
sweep_time: "18:30"
timezone: "Europe/Rome"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Errorf("expected listen_addr :9000, got %s", cfg.ListenAddr)
	}
	if cfg.CacheDir != "/tmp/papers" {
		t.Errorf("expected cache_dir /tmp/papers, got %s", cfg.CacheDir)
	}
	if cfg.OllamaModel != "llama3.2:3b" {
		t.Errorf("expected model llama3.2:3b, got %s", cfg.OllamaModel)
	}
	if cfg.ModelTimeout() != 90*time.Second {
		t.Errorf("expected model timeout 90s, got %v", cfg.ModelTimeout())
	}
	if cfg.SweepTime != "18:30" {
		t.Errorf("expected sweep_time 18:30, got %s", cfg.SweepTime)
	}
	// Defaults should be preserved for unset fields
	if cfg.FallbackTextChars != 2000 {
		t.Errorf("expected default fallback chars, got %d", cfg.FallbackTextChars)
	}
}

func TestLoad_FileNotFoundUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheDir != Defaults().CacheDir {
		t.Errorf("expected default cache dir, got %s", cfg.CacheDir)
	}
}

func TestLoad_InvalidTime(t *testing.T) {
	path := writeConfig(t, `sweep_time: "25:00"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid time")
	}
}

func TestLoad_InvalidTimezone(t *testing.T) {
	path := writeConfig(t, `timezone: "Invalid/Zone"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeConfig(t, `log_level: "verbose"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}

func TestLoad_NegativeModelTimeout(t *testing.T) {
	path := writeConfig(t, `model_timeout_secs: -1`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for negative model timeout")
	}
}

func TestLoad_EmptyModel(t *testing.T) {
	path := writeConfig(t, `ollama_model: ""`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for empty model")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, `
cache_dir: "test
  invalid: yaml: [
`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoad_EnvConfigPath(t *testing.T) {
	path := writeConfig(t, `ollama_model: "env-model"`)
	t.Setenv("ARXIV_ANALYZER_CONFIG", path)
	cfg, err := Load("wrong-path.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.OllamaModel != "env-model" {
		t.Errorf("expected env-model, got %s", cfg.OllamaModel)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `cache_dir: "/from/file"`)
	t.Setenv("ARXIV_ANALYZER_CACHE", "/from/env")
	t.Setenv("OLLAMA_HOST", "gpu-box:11434")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.CacheDir != "/from/env" {
		t.Errorf("expected /from/env, got %s", cfg.CacheDir)
	}
	if cfg.OllamaURL != "http://gpu-box:11434" {
		t.Errorf("expected scheme added to OLLAMA_HOST, got %s", cfg.OllamaURL)
	}
}

func TestValidateTime(t *testing.T) {
	tests := []struct {
		input string
		valid bool
	}{
		{"00:00", true},
		{"09:00", true},
		{"23:59", true},
		{"24:00", false},
		{"23:60", false},
		{"9:00", false},
		{"abc", false},
		{"12:0a", false},
		{"", false},
	}

	for _, tt := range tests {
		err := ValidateTime(tt.input)
		if tt.valid && err != nil {
			t.Errorf("ValidateTime(%q) returned unexpected error: %v", tt.input, err)
		}
		if !tt.valid && err == nil {
			t.Errorf("ValidateTime(%q) expected error, got nil", tt.input)
		}
	}
}
