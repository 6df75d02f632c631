package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	ListenAddr         string `yaml:"listen_addr"`
	CacheDir           string `yaml:"cache_dir"`
	DBPath             string `yaml:"db_path"`
	ArxivAPIURL        string `yaml:"arxiv_api_url"`
	ArxivAbsURL        string `yaml:"arxiv_abs_url"`
	OllamaURL          string `yaml:"ollama_url"`
	OllamaModel        string `yaml:"ollama_model"`
	OllamaJSONMode     bool   `yaml:"ollama_json_mode"`
	FetchTimeoutSec    int    `yaml:"fetch_timeout_secs"`
	ModelTimeoutSec    int    `yaml:"model_timeout_secs"`
	FallbackTextChars  int    `yaml:"fallback_text_chars"`
	PlotSamples        int    `yaml:"plot_samples"`
	PlotRetentionHours int    `yaml:"plot_retention_hours"`
	SweepTime          string `yaml:"sweep_time"`
	Timezone           string `yaml:"timezone"`
	LogLevel           string `yaml:"log_level"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		ListenAddr:         ":8501",
		CacheDir:           "./paper_cache",
		DBPath:             "./arxiv-analyzer.db",
		ArxivAPIURL:        "https://export.arxiv.org/api",
		ArxivAbsURL:        "https://arxiv.org/abs",
		OllamaURL:          "http://localhost:11434",
		OllamaModel:        "deepseek-r1:1.5b",
		OllamaJSONMode:     true,
		FetchTimeoutSec:    60,
		ModelTimeoutSec:    0,
		FallbackTextChars:  2000,
		PlotSamples:        200,
		PlotRetentionHours: 24,
		SweepTime:          "03:00",
		Timezone:           "UTC",
		LogLevel:           "info",
	}
}

// Load reads a YAML config file on top of the defaults and returns a validated Config.
// A missing file is not an error. ARXIV_ANALYZER_CONFIG overrides the path,
// ARXIV_ANALYZER_CACHE the cache directory and OLLAMA_HOST the model URL.
func Load(path string) (Config, error) {
	if envPath := os.Getenv("ARXIV_ANALYZER_CONFIG"); envPath != "" {
		path = envPath
	}

	cfg := Defaults()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if envCache := os.Getenv("ARXIV_ANALYZER_CACHE"); envCache != "" {
		cfg.CacheDir = envCache
	}
	if envHost := os.Getenv("OLLAMA_HOST"); envHost != "" {
		if !strings.Contains(envHost, "://") {
			envHost = "http://" + envHost
		}
		cfg.OllamaURL = envHost
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks that required fields are present and values are valid.
func (c *Config) Validate() error {
	if c.CacheDir == "" {
		return fmt.Errorf("cache_dir is required")
	}
	if c.OllamaURL == "" {
		return fmt.Errorf("ollama_url is required")
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("ollama_model is required")
	}
	if c.ArxivAPIURL == "" {
		return fmt.Errorf("arxiv_api_url is required")
	}
	if c.FetchTimeoutSec <= 0 {
		return fmt.Errorf("fetch_timeout_secs must be positive, got %d", c.FetchTimeoutSec)
	}
	if c.ModelTimeoutSec < 0 {
		return fmt.Errorf("model_timeout_secs must not be negative, got %d", c.ModelTimeoutSec)
	}
	if c.FallbackTextChars <= 0 {
		return fmt.Errorf("fallback_text_chars must be positive, got %d", c.FallbackTextChars)
	}
	if c.PlotSamples < 2 {
		return fmt.Errorf("plot_samples must be at least 2, got %d", c.PlotSamples)
	}
	if c.PlotRetentionHours <= 0 {
		return fmt.Errorf("plot_retention_hours must be positive, got %d", c.PlotRetentionHours)
	}

	if err := ValidateTime(c.SweepTime); err != nil {
		return err
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log_level %q: must be debug, info, warn or error", c.LogLevel)
	}

	return nil
}

// FetchTimeout returns the HTTP timeout for arXiv requests.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSec) * time.Second
}

// ModelTimeout returns the per-call model timeout; zero means no timeout.
func (c *Config) ModelTimeout() time.Duration {
	return time.Duration(c.ModelTimeoutSec) * time.Second
}

// ValidateTime checks that a time string is in valid HH:MM 24-hour format.
func ValidateTime(t string) error {
	if len(t) != 5 || t[2] != ':' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	if t[0] < '0' || t[0] > '9' || t[1] < '0' || t[1] > '9' ||
		t[3] < '0' || t[3] > '9' || t[4] < '0' || t[4] > '9' {
		return fmt.Errorf("invalid time format %q: must be HH:MM", t)
	}

	hour := (int(t[0]-'0') * 10) + int(t[1]-'0')
	minute := (int(t[3]-'0') * 10) + int(t[4]-'0')

	if hour > 23 {
		return fmt.Errorf("invalid time %q: hour must be 0-23", t)
	}
	if minute > 59 {
		return fmt.Errorf("invalid time %q: minute must be 0-59", t)
	}

	return nil
}
