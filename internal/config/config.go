// Package config loads Alexandria's configuration from an optional YAML
// file and layers environment-variable overrides on top, following the
// teacher's config.go pattern (file defaults, then os.Getenv overrides).
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StoreConfig configures the storage kernel.
type StoreConfig struct {
	// DBPath overrides the resolved project database path entirely.
	DBPath string `yaml:"db_path"`
	// InlineThresholdBytes is the event-log inline/blob-spill cutover (spec §4.B).
	InlineThresholdBytes int `yaml:"inline_threshold_bytes"`
	// RequireVector fails store initialization if sqlite-vec is unavailable
	// instead of degrading to brute-force cosine search.
	RequireVector bool `yaml:"require_vector"`
}

// DisclosureConfig configures progressive-disclosure triggers (spec §6).
type DisclosureConfig struct {
	AutoCheckpointThreshold int `yaml:"auto_checkpoint_threshold"`
	DisclosureThreshold     int `yaml:"disclosure_threshold"`
	ErrorBurstThreshold     int `yaml:"error_burst_threshold"`
}

// EmbeddingConfig configures the pluggable dense-embedding provider.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // "ollama", "genai", or "" (disabled)
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	GenAIModel     string `yaml:"genai_model"`
	Dimensions     int    `yaml:"dimensions"`
}

// SearchConfig configures hybrid retrieval defaults (spec §4.G).
type SearchConfig struct {
	Alpha       float64 `yaml:"alpha"`
	RRFConstant int     `yaml:"rrf_constant"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	JSONFormat bool            `yaml:"json_format"`
}

// Config is the root configuration object.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Disclosure DisclosureConfig `yaml:"disclosure"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// Default returns the built-in defaults named throughout spec §4/§6.
func Default() Config {
	return Config{
		Store: StoreConfig{
			InlineThresholdBytes: 4096,
			RequireVector:        false,
		},
		Disclosure: DisclosureConfig{
			AutoCheckpointThreshold: 10,
			DisclosureThreshold:     15,
			ErrorBurstThreshold:     3,
		},
		Embedding: EmbeddingConfig{
			Provider:       "",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			Dimensions:     384,
		},
		Search: SearchConfig{
			Alpha:       0.5,
			RRFConstant: 60,
		},
	}
}

// Load reads path (if it exists) over the defaults, then applies
// environment-variable overrides, and returns the final Config.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("config: failed to parse %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// applyEnvOverrides layers the recognised ALEXANDRIA_* environment
// variables over cfg (spec §6).
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ALEXANDRIA_DB_PATH"); v != "" {
		cfg.Store.DBPath = v
	}
	if v := os.Getenv("ALEXANDRIA_AUTO_CHECKPOINT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Disclosure.AutoCheckpointThreshold = n
		}
	}
	if v := os.Getenv("ALEXANDRIA_DISCLOSURE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Disclosure.DisclosureThreshold = n
		}
	}
	if v := os.Getenv("ALEXANDRIA_ERROR_BURST_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Disclosure.ErrorBurstThreshold = n
		}
	}
	if v := os.Getenv("ALEXANDRIA_DEBUG"); v != "" {
		cfg.Logging.DebugMode = v == "1" || v == "true"
	}
	if v := os.Getenv("ALEXANDRIA_EMBEDDING_PROVIDER"); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv("ALEXANDRIA_OLLAMA_ENDPOINT"); v != "" {
		cfg.Embedding.OllamaEndpoint = v
	}
	if v := os.Getenv("ALEXANDRIA_OLLAMA_MODEL"); v != "" {
		cfg.Embedding.OllamaModel = v
	}
	if v := os.Getenv("ALEXANDRIA_SEARCH_ALPHA"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.Alpha = f
		}
	}
}
