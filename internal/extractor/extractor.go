// Package extractor turns chunks into candidate moments by calling the
// extraction oracle, one liberal pass per chunk.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/capless/moments/internal/chunker"
	"github.com/capless/moments/internal/transcript"
	"github.com/google/uuid"
)

const defaultPerChunkCap = 5

// Candidate is a raw extracted excerpt with its per-chunk score.
// Never mutated after creation; later stages derive new records.
type Candidate struct {
	ID            string  `json:"id"`
	ChunkID       string  `json:"source_chunk_id"`
	SequenceIndex int     `json:"sequence_index"`
	Quote         string  `json:"quote"`
	Speaker       string  `json:"speaker"`
	Topic         string  `json:"topic"`
	RawScore      float64 `json:"raw_score"`
	InOverlap     bool    `json:"in_overlap_region"`

	// Located caption times in seconds; zero for structured sessions.
	StartTime float64 `json:"start_time,omitempty"`
	EndTime   float64 `json:"end_time,omitempty"`
}

// Request is what the extraction oracle receives for one chunk.
type Request struct {
	ChunkText   string
	PerChunkCap int
}

// RawMoment is one excerpt as returned by the oracle.
type RawMoment struct {
	Quote   string  `json:"quote"`
	Speaker string  `json:"speaker"`
	Topic   string  `json:"topic"`
	Score   float64 `json:"score"`
}

// Oracle is the external extraction service. Implementations must be
// safe for concurrent use; the pipeline fans out across chunks.
type Oracle interface {
	ExtractCandidates(ctx context.Context, req Request) ([]RawMoment, error)
}

// Extractor produces candidates for a single chunk.
type Extractor struct {
	oracle      Oracle
	perChunkCap int
}

// New creates an Extractor. A non-positive cap falls back to the default.
func New(oracle Oracle, perChunkCap int) *Extractor {
	if perChunkCap <= 0 {
		perChunkCap = defaultPerChunkCap
	}
	return &Extractor{oracle: oracle, perChunkCap: perChunkCap}
}

// ExtractChunk calls the oracle for one chunk and returns 0..cap
// candidates with provenance and overlap flags attached. Stateless and
// idempotent per chunk given a deterministic oracle.
func (e *Extractor) ExtractChunk(ctx context.Context, chunk chunker.Chunk) ([]Candidate, error) {
	raw, err := e.oracle.ExtractCandidates(ctx, Request{
		ChunkText:   chunk.Text,
		PerChunkCap: e.perChunkCap,
	})
	if err != nil {
		return nil, fmt.Errorf("extract chunk %s: %w", chunk.ID, err)
	}
	if len(raw) > e.perChunkCap {
		raw = raw[:e.perChunkCap]
	}

	candidates := make([]Candidate, 0, len(raw))
	for _, m := range raw {
		if strings.TrimSpace(m.Quote) == "" {
			continue
		}
		cand := Candidate{
			ID:            uuid.NewString(),
			ChunkID:       chunk.ID,
			SequenceIndex: chunk.SequenceIndex,
			Quote:         m.Quote,
			Speaker:       m.Speaker,
			Topic:         m.Topic,
			RawScore:      clampScore(m.Score),
		}

		if len(chunk.Captions) > 0 {
			start, end, ok := locateQuote(m.Quote, chunk.Captions)
			if !ok {
				// The oracle sometimes smooths caption text; fall back
				// to the chunk start rather than drop the candidate.
				start, end = chunk.Span.Start, chunk.Span.Start+60
			}
			cand.StartTime, cand.EndTime = start, end
			cand.InOverlap = spanContains(chunk, start)
		} else {
			cand.InOverlap = quoteInOverlapText(m.Quote, chunk)
		}

		candidates = append(candidates, cand)
	}
	return candidates, nil
}

// locateQuote finds the quote's exact caption range using a normalized
// sliding window of 1..10 consecutive cues.
func locateQuote(quote string, caps []transcript.Caption) (float64, float64, bool) {
	target := NormalizeText(quote)
	if target == "" {
		return 0, 0, false
	}
	for i := range caps {
		var window strings.Builder
		for w := 0; w < 10 && i+w < len(caps); w++ {
			if window.Len() > 0 {
				window.WriteByte(' ')
			}
			window.WriteString(NormalizeText(caps[i+w].Text))
			text := window.String()
			if strings.Contains(text, target) || strings.Contains(target, text) {
				return caps[i].Start, caps[i+w].End, true
			}
		}
	}
	return 0, 0, false
}

// spanContains reports whether the position falls inside the chunk's
// overlap region with either neighbor.
func spanContains(chunk chunker.Chunk, at float64) bool {
	if s := chunk.OverlapWithNext; s != nil && at >= s.Start && at <= s.End {
		return true
	}
	if s := chunk.OverlapWithPrev; s != nil && at >= s.Start && at <= s.End {
		return true
	}
	return false
}

// quoteInOverlapText locates the quote by raw text offset for
// structured chunks and checks it against the overlap spans.
func quoteInOverlapText(quote string, chunk chunker.Chunk) bool {
	idx := strings.Index(chunk.Text, strings.TrimSpace(quote))
	if idx < 0 {
		return false
	}
	return spanContains(chunk, chunk.Span.Start+float64(idx))
}

// NormalizeText case-folds and collapses whitespace. Shared with the
// deduplicator's exact-match pass so both sides agree on equality.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
