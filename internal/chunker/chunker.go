// Package chunker splits transcripts into overlapping, content-aware
// segments sized for a single extraction pass.
package chunker

import (
	"errors"
	"fmt"

	"github.com/capless/moments/internal/transcript"
)

// ErrEmptyInput is returned when a session carries no usable text.
// It is the only fatal chunking failure.
var ErrEmptyInput = errors.New("transcript has no content")

// Span is a half-open range over the source transcript: seconds for
// caption streams, byte offsets into the joined section text for
// structured sessions.
type Span struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Chunk is one segment of the source transcript. Immutable once built.
type Chunk struct {
	ID              string
	SequenceIndex   int
	Text            string
	Span            Span
	OverlapWithPrev *Span
	OverlapWithNext *Span
	IsSubchunk      bool

	// Captions carries the cues belonging to this chunk for stream
	// sessions, so candidates can be located back to exact timestamps.
	Captions []transcript.Caption
}

// Config holds chunking parameters for both source shapes.
type Config struct {
	// Continuous-stream mode.
	WindowSeconds        float64 `yaml:"window_seconds"`
	OverlapSeconds       float64 `yaml:"overlap_seconds"`
	BoundarySlackSeconds float64 `yaml:"boundary_slack_seconds"`
	MinPauseSeconds      float64 `yaml:"min_pause_seconds"`

	// Structured-section mode.
	TargetChars  int `yaml:"target_chars"`
	CeilingChars int `yaml:"ceiling_chars"`
}

// DefaultConfig returns the chunk sizing used in production.
func DefaultConfig() Config {
	return Config{
		WindowSeconds:        900,
		OverlapSeconds:       180,
		BoundarySlackSeconds: 120,
		MinPauseSeconds:      3,
		TargetChars:          60000,
		CeilingChars:         80000,
	}
}

// Chunker splits a session into chunks using the mode matching its shape.
type Chunker struct {
	cfg Config
}

// New creates a chunker with the given config. Zero fields fall back to
// defaults.
func New(cfg Config) *Chunker {
	def := DefaultConfig()
	if cfg.WindowSeconds <= 0 {
		cfg.WindowSeconds = def.WindowSeconds
	}
	if cfg.OverlapSeconds <= 0 || cfg.OverlapSeconds >= cfg.WindowSeconds {
		cfg.OverlapSeconds = cfg.WindowSeconds / 5
	}
	if cfg.BoundarySlackSeconds <= 0 {
		cfg.BoundarySlackSeconds = def.BoundarySlackSeconds
	}
	if cfg.MinPauseSeconds <= 0 {
		cfg.MinPauseSeconds = def.MinPauseSeconds
	}
	if cfg.TargetChars <= 0 {
		cfg.TargetChars = def.TargetChars
	}
	if cfg.CeilingChars <= cfg.TargetChars {
		cfg.CeilingChars = cfg.TargetChars + (def.CeilingChars - def.TargetChars)
	}
	return &Chunker{cfg: cfg}
}

// Chunk splits the session. Returns ErrEmptyInput when there is nothing
// to split.
func (c *Chunker) Chunk(sess *transcript.Session) ([]Chunk, error) {
	if sess == nil || sess.IsEmpty() {
		return nil, ErrEmptyInput
	}
	if sess.IsStructured() {
		return c.chunkSections(sess.Sections), nil
	}
	return c.chunkCaptions(sess.Captions), nil
}

func chunkID(i int) string {
	return fmt.Sprintf("chunk-%03d", i)
}
