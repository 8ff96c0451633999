// Package selector applies the quality gate and output cap to the
// reranked survivors and shapes the final moment records.
package selector

import (
	"fmt"

	"github.com/capless/moments/internal/rerank"
	"github.com/capless/moments/internal/report"
)

const (
	defaultQualityThreshold = 7.5
	defaultMaxMoments       = 20
)

// Moment is one selected output record with full provenance. The
// moment id is the surviving candidate's id; source_candidate_ids
// lists it together with every absorbed duplicate.
type Moment struct {
	ID                 string   `json:"moment_id"`
	Rank               int      `json:"rank"`
	Quote              string   `json:"quote"`
	Speaker            string   `json:"speaker,omitempty"`
	Topic              string   `json:"topic,omitempty"`
	RawScore           float64  `json:"raw_score"`
	FinalScore         float64  `json:"final_score"`
	SourceChunkID      string   `json:"source_chunk_id"`
	StartTime          float64  `json:"start_time,omitempty"`
	EndTime            float64  `json:"end_time,omitempty"`
	SourceCandidateIDs []string `json:"source_candidate_ids"`
}

// Config tunes selection.
type Config struct {
	// QualityThreshold is the minimum final score a moment needs to be
	// emitted at all.
	QualityThreshold float64 `yaml:"quality_threshold"`

	// MaxMoments caps the output set.
	MaxMoments int `yaml:"max_moments"`
}

// Selector applies the gate and cap.
type Selector struct {
	cfg Config
}

func New(cfg Config) *Selector {
	if cfg.QualityThreshold <= 0 {
		cfg.QualityThreshold = defaultQualityThreshold
	}
	if cfg.MaxMoments <= 0 {
		cfg.MaxMoments = defaultMaxMoments
	}
	return &Selector{cfg: cfg}
}

// Select filters out moments below the quality threshold, caps the
// rest, and finalizes the run's funnel counters. An empty result is a
// legitimate outcome and gets a note, not an error.
func (s *Selector) Select(scored []rerank.Scored, rb *report.Builder) []Moment {
	var out []Moment
	filtered := 0
	for _, m := range scored {
		if m.FinalScore < s.cfg.QualityThreshold {
			filtered++
			continue
		}
		if len(out) >= s.cfg.MaxMoments {
			continue
		}
		out = append(out, Moment{
			ID:                 m.ID,
			Rank:               len(out) + 1,
			Quote:              m.Quote,
			Speaker:            m.Speaker,
			Topic:              m.Topic,
			RawScore:           m.RawScore,
			FinalScore:         m.FinalScore,
			SourceChunkID:      m.ChunkID,
			StartTime:          m.StartTime,
			EndTime:            m.EndTime,
			SourceCandidateIDs: append([]string{m.ID}, m.AbsorbedIDs...),
		})
	}

	rb.SetQualityFiltered(filtered)
	rb.SetFinalCount(len(out))
	if len(out) == 0 && len(scored) > 0 {
		rb.AddNote(fmt.Sprintf("no moments reached the %.1f quality threshold", s.cfg.QualityThreshold))
	}
	return out
}
