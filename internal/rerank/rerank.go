// Package rerank rescores the deduplicated survivors against each
// other in a single global pass, so chunk-local scores stop deciding
// the final ordering.
package rerank

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/capless/moments/internal/dedup"
	"github.com/capless/moments/internal/extractor"
	"github.com/capless/moments/internal/report"
)

// Completer is the scoring oracle. *extractor.Client satisfies it.
type Completer interface {
	Complete(ctx context.Context, prompt string, jsonMode bool) (string, error)
}

// Scored is a survivor with its global score and rank attached.
type Scored struct {
	dedup.Kept
	FinalScore float64 `json:"final_score"`
	Rank       int     `json:"rank"`
}

// Config tunes reranking.
type Config struct {
	// Enabled turns the global pass on. When off, raw scores carry
	// through unchanged.
	Enabled bool `yaml:"enabled"`
}

// Reranker runs the global scoring pass.
type Reranker struct {
	completer Completer
	cfg       Config
}

func New(completer Completer, cfg Config) *Reranker {
	return &Reranker{completer: completer, cfg: cfg}
}

// Rerank scores all survivors together. Oracle failure or an
// unparseable response degrades to ordering by raw score rather than
// failing the run. Output is sorted by final score descending, ties by
// raw score then earlier chunk.
func (r *Reranker) Rerank(ctx context.Context, kept []dedup.Kept, rb *report.Builder) []Scored {
	if len(kept) == 0 {
		return nil
	}
	if !r.cfg.Enabled || r.completer == nil {
		return fallbackOrder(kept)
	}

	scores, err := r.scoreGlobally(ctx, kept)
	if err != nil {
		slog.Warn("global rerank unavailable, ordering by raw scores", "error", err)
		rb.MarkDegraded(fmt.Sprintf("global rerank skipped: %v", err))
		return fallbackOrder(kept)
	}

	out := make([]Scored, len(kept))
	missing := 0
	for i, k := range kept {
		s, ok := scores[k.ID]
		if !ok {
			// The oracle dropped this one; carry its raw score so it
			// still competes rather than vanishing.
			s = k.RawScore
			missing++
		}
		out[i] = Scored{Kept: k, FinalScore: clamp(s)}
	}
	if missing > 0 {
		rb.AddNote(fmt.Sprintf("rerank response omitted %d moments, carried raw scores", missing))
	}

	sortScored(out)
	return out
}

// scoreGlobally sends every survivor in one prompt and parses the
// returned scores keyed back to moments by list position.
func (r *Reranker) scoreGlobally(ctx context.Context, kept []dedup.Kept) (map[string]float64, error) {
	text, err := r.completer.Complete(ctx, rerankPrompt(kept), true)
	if err != nil {
		return nil, err
	}

	obj, ok := extractor.ExtractJSONObject(text)
	if !ok {
		return nil, fmt.Errorf("rerank response carries no JSON object")
	}
	var parsed struct {
		RankedMoments []struct {
			Index int     `json:"index"`
			Score float64 `json:"score"`
		} `json:"ranked_moments"`
	}
	if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
		return nil, fmt.Errorf("parse rerank response: %w", err)
	}
	if len(parsed.RankedMoments) == 0 {
		return nil, fmt.Errorf("rerank response lists no moments")
	}

	scores := make(map[string]float64, len(parsed.RankedMoments))
	for _, m := range parsed.RankedMoments {
		if m.Index < 1 || m.Index > len(kept) {
			continue
		}
		scores[kept[m.Index-1].ID] = m.Score
	}
	if len(scores) == 0 {
		return nil, fmt.Errorf("rerank response indices all out of range")
	}
	return scores, nil
}

// fallbackOrder carries raw scores through as final scores.
func fallbackOrder(kept []dedup.Kept) []Scored {
	out := make([]Scored, len(kept))
	for i, k := range kept {
		out[i] = Scored{Kept: k, FinalScore: k.RawScore}
	}
	sortScored(out)
	return out
}

func sortScored(out []Scored) {
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].FinalScore != out[b].FinalScore {
			return out[a].FinalScore > out[b].FinalScore
		}
		if out[a].RawScore != out[b].RawScore {
			return out[a].RawScore > out[b].RawScore
		}
		return out[a].SequenceIndex < out[b].SequenceIndex
	})
	for i := range out {
		out[i].Rank = i + 1
	}
}

func rerankPrompt(kept []dedup.Kept) string {
	var b strings.Builder
	b.WriteString(`You previously rated transcript moments within separate segments. Now rate them against each other as one set, 0-10 for standalone clip appeal. Judge each moment relative to the others; use the full range.

Moments:
`)
	for i, k := range kept {
		fmt.Fprintf(&b, "%d. [%s] %q (topic: %s)\n", i+1, k.Speaker, k.Quote, k.Topic)
	}
	b.WriteString(`
Return JSON only:

{"ranked_moments": [{"index": 1, "score": 8.5}, ...]}

Include every moment exactly once, using the numbers above.`)
	return b.String()
}

func clamp(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
