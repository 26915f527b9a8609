package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
	LLM         LLMConfig        `toml:"llm"`
	Extraction  ExtractionConfig `toml:"extraction"`
	Filter      FilterConfig     `toml:"filter"`
	OCR         OCRConfig        `toml:"ocr"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level      string   `toml:"level"`       // "debug", "info", "warn", "error"
	Output     []string `toml:"output"`      // "stdout", "file"
	TimeFormat string   `toml:"time_format"` // Time format for logs
}

// ClaudeConfig configures the Anthropic provider (default, heavy tier).
type ClaudeConfig struct {
	APIKey         string  `toml:"api_key"`
	FallbackAPIKey string  `toml:"fallback_api_key"` // Alternate key used when the primary is rate-limited
	Model          string  `toml:"model"`            // Heavy-tier model
	LightModel     string  `toml:"light_model"`      // Light-tier model
	Temperature    float32 `toml:"temperature"`
	MaxTokens      int     `toml:"max_tokens"`
}

// GeminiConfig configures the optional Google provider.
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	LightModel  string  `toml:"light_model"`
	Temperature float32 `toml:"temperature"`
}

// LLMConfig holds provider-agnostic model call settings.
type LLMConfig struct {
	DefaultProvider   string `toml:"default_provider"`    // "claude" or "gemini"
	MaxRetries        int    `toml:"max_retries"`         // Retry attempts for transient errors
	InitialBackoff    string `toml:"initial_backoff"`     // e.g., "2s"; doubles each retry
	MediumTimeout     string `toml:"medium_timeout"`      // Timeout for ordinary documents
	LargeTimeout      string `toml:"large_timeout"`       // Timeout for large documents (>=50 pages AND >=10MB)
	RequestsPerSecond int    `toml:"requests_per_second"` // Client-side rate limit
}

// ExtractionConfig holds pipeline tuning parameters.
type ExtractionConfig struct {
	TokenBudget           int     `toml:"token_budget"`            // Per-segment token budget (chars/4 approximation)
	MinTextLength         int     `toml:"min_text_length"`         // Below this, native parse is treated as empty and OCR is attempted
	RuleLibraryVersion    string  `toml:"rule_library_version"`    // Pinned clause-pattern library version
	RuleCoverageThreshold float64 `toml:"rule_coverage_threshold"` // Coverage ratio above which the model call is skipped
	SegmentConcurrency    int     `toml:"segment_concurrency"`     // Concurrent model calls for a segmented document
	CacheTTL              string  `toml:"cache_ttl"`               // e.g., "720h"; entries older than this are swept
	CacheSweepSchedule    string  `toml:"cache_sweep_schedule"`    // Cron schedule for TTL sweep
}

// FilterConfig enumerates which noise categories the text filter strips.
type FilterConfig struct {
	StripTableOfContents bool `toml:"strip_table_of_contents"`
	StripHeadersFooters  bool `toml:"strip_headers_footers"`
	StripBoilerplate     bool `toml:"strip_boilerplate"`
}

// OCRConfig configures the OCR fallback for scanned documents.
type OCRConfig struct {
	Enabled      bool   `toml:"enabled"`
	TesseractBin string `toml:"tesseract_bin"` // Path to tesseract binary
	PdftoppmBin  string `toml:"pdftoppm_bin"`  // Path to pdftoppm binary for page rasterization
	Workers      int    `toml:"workers"`       // Max concurrent OCR workers
	Language     string `toml:"language"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path:           "./data/extract",
				ResetOnStartup: false,
			},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Output:     []string{"stdout"},
			TimeFormat: "15:04:05",
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			LightModel:  "claude-3-5-haiku-20241022",
			Temperature: 0.2,
			MaxTokens:   8192,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-pro",
			LightModel:  "gemini-2.5-flash",
			Temperature: 0.2,
		},
		LLM: LLMConfig{
			DefaultProvider:   "claude",
			MaxRetries:        3,
			InitialBackoff:    "2s",
			MediumTimeout:     "2m",
			LargeTimeout:      "5m",
			RequestsPerSecond: 2,
		},
		Extraction: ExtractionConfig{
			TokenBudget:           24000,
			MinTextLength:         200,
			RuleLibraryVersion:    "v1",
			RuleCoverageThreshold: 0.8,
			SegmentConcurrency:    3,
			CacheTTL:              "720h",
			CacheSweepSchedule:    "0 3 * * *",
		},
		Filter: FilterConfig{
			StripTableOfContents: true,
			StripHeadersFooters:  true,
			StripBoilerplate:     true,
		},
		OCR: OCRConfig{
			Enabled:      true,
			TesseractBin: "tesseract",
			PdftoppmBin:  "pdftoppm",
			Workers:      2,
			Language:     "eng",
		},
	}
}

// LoadFromFile loads configuration from a TOML file, applying defaults first
// and environment overrides last.
func LoadFromFile(path string) (*Config, error) {
	config := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("ECOCOMPLY_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	if badgerPath := os.Getenv("ECOCOMPLY_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	if level := os.Getenv("ECOCOMPLY_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if apiKey := os.Getenv("ECOCOMPLY_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	}
	if fallback := os.Getenv("ECOCOMPLY_CLAUDE_FALLBACK_API_KEY"); fallback != "" {
		config.Claude.FallbackAPIKey = fallback
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	}

	if provider := os.Getenv("ECOCOMPLY_LLM_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = provider
	}
	if maxRetries := os.Getenv("ECOCOMPLY_LLM_MAX_RETRIES"); maxRetries != "" {
		if n, err := strconv.Atoi(maxRetries); err == nil {
			config.LLM.MaxRetries = n
		}
	}

	if budget := os.Getenv("ECOCOMPLY_TOKEN_BUDGET"); budget != "" {
		if n, err := strconv.Atoi(budget); err == nil {
			config.Extraction.TokenBudget = n
		}
	}
	if version := os.Getenv("ECOCOMPLY_RULE_LIBRARY_VERSION"); version != "" {
		config.Extraction.RuleLibraryVersion = version
	}
}

// Validate checks configuration invariants that would otherwise surface as
// confusing runtime failures.
func (c *Config) Validate() error {
	if c.LLM.DefaultProvider != "claude" && c.LLM.DefaultProvider != "gemini" {
		return fmt.Errorf("invalid llm.default_provider '%s': must be 'claude' or 'gemini'", c.LLM.DefaultProvider)
	}
	if c.LLM.MaxRetries < 0 {
		return fmt.Errorf("llm.max_retries must be >= 0, got %d", c.LLM.MaxRetries)
	}
	if c.Extraction.TokenBudget <= 0 {
		return fmt.Errorf("extraction.token_budget must be > 0, got %d", c.Extraction.TokenBudget)
	}
	if c.Extraction.RuleCoverageThreshold < 0 || c.Extraction.RuleCoverageThreshold > 1 {
		return fmt.Errorf("extraction.rule_coverage_threshold must be in [0,1], got %f", c.Extraction.RuleCoverageThreshold)
	}
	for _, field := range []struct {
		name  string
		value string
	}{
		{"llm.initial_backoff", c.LLM.InitialBackoff},
		{"llm.medium_timeout", c.LLM.MediumTimeout},
		{"llm.large_timeout", c.LLM.LargeTimeout},
		{"extraction.cache_ttl", c.Extraction.CacheTTL},
	} {
		if _, err := time.ParseDuration(field.value); err != nil {
			return fmt.Errorf("invalid duration for %s '%s': %w", field.name, field.value, err)
		}
	}
	return nil
}

// ParseDuration parses a config duration string that has already passed
// Validate. Returns the fallback when the field is empty.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
