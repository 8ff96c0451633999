// Package config reads environment configuration and the optional
// pipeline tuning file.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Extraction oracle (OpenAI-compatible chat completions)
	ExtractionAPIURL string
	ExtractionAPIKey string
	ExtractionModel  string

	// Ollama (embeddings for semantic dedup)
	OllamaHost  string
	OllamaModel string // Ollama model for embeddings (default: nomic-embed-text)

	// Storage
	DatabasePath string
	VecLitePath  string // Path to VecLite database (default: data/moments.veclite)

	// Watch mode
	WatchDir  string
	OutputDir string

	// Logging
	LogLevel string

	// TuningPath points at the optional YAML tuning file.
	TuningPath string
}

// Load reads configuration from environment variables.
// It automatically loads .env file if present.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		ExtractionAPIURL: getEnv("EXTRACTION_API_URL", "https://api.openai.com/v1"),
		ExtractionAPIKey: getEnv("EXTRACTION_API_KEY", ""),
		ExtractionModel:  getEnv("EXTRACTION_MODEL", "gpt-5-mini"),
		OllamaHost:       normalizeOllamaHost(getEnv("OLLAMA_HOST", "http://localhost:11434")),
		OllamaModel:      getEnv("OLLAMA_MODEL", "nomic-embed-text"),
		DatabasePath:     getEnv("DATABASE_PATH", "data/moments.db"),
		VecLitePath:      getEnv("VECLITE_PATH", "data/moments.veclite"),
		WatchDir:         getEnv("WATCH_DIR", ""),
		OutputDir:        getEnv("OUTPUT_DIR", "out"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		TuningPath:       getEnv("PIPELINE_CONFIG", ""),
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	return nil
}

// ValidateForExtract checks configuration needed for an extraction run.
func (c *Config) ValidateForExtract() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ExtractionAPIKey == "" {
		return fmt.Errorf("EXTRACTION_API_KEY is required for extraction")
	}
	return nil
}

// ValidateForSimilar checks configuration needed for similarity search.
func (c *Config) ValidateForSimilar() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.VecLitePath == "" {
		return fmt.Errorf("VECLITE_PATH is required")
	}
	if c.OllamaHost == "" {
		return fmt.Errorf("OLLAMA_HOST is required for embeddings")
	}
	return nil
}

// ValidateForWatch checks configuration needed for watch mode.
func (c *Config) ValidateForWatch() error {
	if err := c.ValidateForExtract(); err != nil {
		return err
	}
	if c.WatchDir == "" {
		return fmt.Errorf("WATCH_DIR is required for watch mode")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR is required for watch mode")
	}
	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

// normalizeOllamaHost ensures the Ollama host has a proper URL scheme.
// This handles cases where OLLAMA_HOST is set to a bind address like "0.0.0.0"
// (used by Ollama server) instead of a client URL like "http://localhost:11434".
func normalizeOllamaHost(host string) string {
	if host == "" {
		return "http://localhost:11434"
	}

	// If it's just a bind address (0.0.0.0 or similar), use localhost instead
	if host == "0.0.0.0" || host == "0.0.0.0:11434" {
		return "http://localhost:11434"
	}

	// If it doesn't have a scheme, add http://
	if len(host) > 0 && host[0] != 'h' {
		// Check if it starts with http
		if len(host) < 4 || host[:4] != "http" {
			return "http://" + host
		}
	}

	return host
}
