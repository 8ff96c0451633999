package config

import (
	"fmt"
	"os"
	"time"

	"github.com/capless/moments/internal/chunker"
	"github.com/capless/moments/internal/dedup"
	"github.com/capless/moments/internal/pipeline"
	"github.com/capless/moments/internal/rerank"
	"github.com/capless/moments/internal/selector"
	"gopkg.in/yaml.v3"
)

// Tuning is the optional YAML tuning file. Missing sections and zero
// fields keep their stage defaults.
type Tuning struct {
	Chunking   chunker.Config   `yaml:"chunking"`
	Extraction ExtractionTuning `yaml:"extraction"`
	Dedup      dedup.Config     `yaml:"dedup"`
	Rerank     rerank.Config    `yaml:"rerank"`
	Selection  selector.Config  `yaml:"selection"`
	Pipeline   PipelineTuning   `yaml:"pipeline"`
}

// ExtractionTuning tunes the per-chunk oracle pass.
type ExtractionTuning struct {
	PerChunkCap int `yaml:"per_chunk_cap"`
	MaxAttempts int `yaml:"max_attempts"`
}

// PipelineTuning tunes the orchestrator.
type PipelineTuning struct {
	Workers             int `yaml:"workers"`
	ChunkTimeoutSeconds int `yaml:"chunk_timeout_seconds"`
}

// DefaultTuning returns the production tuning, with reranking on.
func DefaultTuning() Tuning {
	return Tuning{
		Rerank: rerank.Config{Enabled: true},
	}
}

// LoadTuning reads the tuning file at path. An empty path returns the
// defaults.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse tuning file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate rejects values the stages would silently misinterpret.
func (t *Tuning) Validate() error {
	if t.Chunking.OverlapSeconds >= t.Chunking.WindowSeconds && t.Chunking.WindowSeconds > 0 {
		return fmt.Errorf("chunking: overlap_seconds must be smaller than window_seconds")
	}
	if t.Chunking.CeilingChars > 0 && t.Chunking.CeilingChars < t.Chunking.TargetChars {
		return fmt.Errorf("chunking: ceiling_chars must be at least target_chars")
	}
	if t.Dedup.Threshold < 0 || t.Dedup.Threshold > 1 {
		return fmt.Errorf("dedup: threshold must be in [0, 1]")
	}
	if t.Selection.QualityThreshold < 0 || t.Selection.QualityThreshold > 10 {
		return fmt.Errorf("selection: quality_threshold must be in [0, 10]")
	}
	if t.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline: workers must not be negative")
	}
	return nil
}

// PipelineConfig maps the tuning onto the orchestrator's config.
func (t *Tuning) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		Workers:      t.Pipeline.Workers,
		ChunkTimeout: time.Duration(t.Pipeline.ChunkTimeoutSeconds) * time.Second,
	}
}
