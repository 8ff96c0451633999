// Package dedup consolidates candidates across chunks: an exact pass
// folds verbatim repeats from overlap regions, then a semantic pass
// merges near-duplicate phrasings of the same moment.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/capless/moments/internal/embedder"
	"github.com/capless/moments/internal/extractor"
	"github.com/capless/moments/internal/report"
)

const defaultThreshold = 0.85

// EmbeddingProvider supplies embeddings for the semantic pass.
// *embedder.Embedder satisfies it.
type EmbeddingProvider interface {
	EmbedAll(ctx context.Context, texts []string, maxConcurrent int) ([][]float32, error)
}

// Kept is a surviving candidate plus the ids it absorbed.
type Kept struct {
	extractor.Candidate
	AbsorbedIDs []string `json:"absorbed_ids,omitempty"`
}

// Config tunes deduplication.
type Config struct {
	// Threshold is the cosine similarity at or above which two
	// candidates are considered the same moment.
	Threshold float64 `yaml:"threshold"`

	// MaxConcurrent bounds parallel embedding requests.
	MaxConcurrent int `yaml:"max_concurrent"`
}

// Deduplicator runs both passes.
type Deduplicator struct {
	provider EmbeddingProvider
	cfg      Config
}

// New creates a Deduplicator. A nil provider disables the semantic
// pass entirely; every run through it is reported as degraded.
func New(provider EmbeddingProvider, cfg Config) *Deduplicator {
	if cfg.Threshold <= 0 || cfg.Threshold > 1 {
		cfg.Threshold = defaultThreshold
	}
	return &Deduplicator{provider: provider, cfg: cfg}
}

// Deduplicate consolidates candidates, recording every merge decision
// into rb. Candidates must arrive in chunk order; output preserves the
// survivors' relative order. Embedding failure degrades the run to the
// exact pass only rather than failing it.
func (d *Deduplicator) Deduplicate(ctx context.Context, cands []extractor.Candidate, rb *report.Builder) []Kept {
	survivors := exactPass(cands, rb)
	if len(survivors) < 2 {
		return survivors
	}

	if d.provider == nil {
		rb.MarkDegraded("semantic deduplication disabled, exact pass only")
		return survivors
	}

	merged, err := d.semanticPass(ctx, survivors, rb)
	if err != nil {
		slog.Warn("semantic dedup unavailable, keeping exact-pass results", "error", err)
		rb.MarkDegraded(fmt.Sprintf("semantic deduplication skipped: %v", err))
		return survivors
	}
	return merged
}

// exactPass folds candidates whose normalized quotes are identical.
// These are almost always the same moment seen from both sides of a
// chunk overlap.
func exactPass(cands []extractor.Candidate, rb *report.Builder) []Kept {
	byKey := make(map[string][]int)
	var keys []string
	for i, c := range cands {
		key := extractor.NormalizeText(c.Quote)
		if _, seen := byKey[key]; !seen {
			keys = append(keys, key)
		}
		byKey[key] = append(byKey[key], i)
	}

	out := make([]Kept, 0, len(keys))
	for _, key := range keys {
		idxs := byKey[key]
		best := pickRepresentative(cands, idxs)

		kept := Kept{Candidate: cands[best]}
		if len(idxs) > 1 {
			var removed []string
			for _, i := range idxs {
				if i != best {
					removed = append(removed, cands[i].ID)
					kept.AbsorbedIDs = append(kept.AbsorbedIDs, cands[i].ID)
				}
			}
			rb.RecordExactRemoval(report.Decision{
				KeptID:     cands[best].ID,
				RemovedIDs: removed,
				Reason:     "exact duplicate",
			})
		}
		out = append(out, kept)
	}
	return out
}

// semanticPass embeds the survivors and merges pairs at or above the
// similarity threshold via union-find, so chains of near-duplicates
// collapse into one group.
func (d *Deduplicator) semanticPass(ctx context.Context, survivors []Kept, rb *report.Builder) ([]Kept, error) {
	texts := make([]string, len(survivors))
	for i, s := range survivors {
		texts[i] = s.Quote
	}
	embeddings, err := d.provider.EmbedAll(ctx, texts, d.cfg.MaxConcurrent)
	if err != nil {
		return nil, err
	}

	sims := make(map[[2]int]float64)
	uf := newUnionFind(len(survivors))
	for i := 0; i < len(survivors); i++ {
		for j := i + 1; j < len(survivors); j++ {
			sim := float64(embedder.CosineSimilarity(embeddings[i], embeddings[j]))
			if sim >= d.cfg.Threshold {
				uf.union(i, j)
				sims[[2]int{i, j}] = sim
			}
		}
	}

	groups := uf.groups()
	roots := make([]int, 0, len(groups))
	for root := range groups {
		roots = append(roots, root)
	}
	sort.Ints(roots)

	var out []Kept
	for _, root := range roots {
		idxs := groups[root]
		best := pickKeptRepresentative(survivors, idxs)
		kept := survivors[best]

		if len(idxs) > 1 {
			var removed []string
			scores := make(map[string]float64)
			for _, i := range idxs {
				if i == best {
					continue
				}
				removed = append(removed, survivors[i].ID)
				kept.AbsorbedIDs = append(kept.AbsorbedIDs, survivors[i].ID)
				kept.AbsorbedIDs = append(kept.AbsorbedIDs, survivors[i].AbsorbedIDs...)
				scores[survivors[i].ID] = pairSim(sims, best, i,
					float64(embedder.CosineSimilarity(embeddings[best], embeddings[i])))
			}
			rb.RecordSemanticRemoval(report.Decision{
				KeptID:           kept.ID,
				RemovedIDs:       removed,
				Reason:           "semantic duplicate",
				SimilarityScores: scores,
			})
		}
		out = append(out, kept)
	}

	// Survivors stay in chunk order regardless of group roots.
	sort.SliceStable(out, func(a, b int) bool {
		return out[a].SequenceIndex < out[b].SequenceIndex
	})
	return out, nil
}

func pairSim(sims map[[2]int]float64, a, b int, fallback float64) float64 {
	if a > b {
		a, b = b, a
	}
	if s, ok := sims[[2]int{a, b}]; ok {
		return s
	}
	return fallback
}

// pickRepresentative keeps the highest raw score, breaking ties toward
// the earlier chunk so reruns are deterministic.
func pickRepresentative(cands []extractor.Candidate, idxs []int) int {
	best := idxs[0]
	for _, i := range idxs[1:] {
		if cands[i].RawScore > cands[best].RawScore {
			best = i
		}
	}
	return best
}

func pickKeptRepresentative(kept []Kept, idxs []int) int {
	best := idxs[0]
	for _, i := range idxs[1:] {
		if kept[i].RawScore > kept[best].RawScore {
			best = i
		}
	}
	return best
}
