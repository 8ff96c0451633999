package dedup

import (
	"context"
	"errors"
	"testing"

	"github.com/capless/moments/internal/extractor"
	"github.com/capless/moments/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider returns canned unit vectors per quote, so similarity is
// fully controlled by the test.
type fakeProvider struct {
	vectors map[string][]float32
	err     error
}

func (f *fakeProvider) EmbedAll(_ context.Context, texts []string, _ int) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := f.vectors[t]
		if !ok {
			return nil, errors.New("no vector for " + t)
		}
		out[i] = v
	}
	return out, nil
}

func cand(id string, seq int, quote string, score float64) extractor.Candidate {
	return extractor.Candidate{ID: id, ChunkID: "chunk", SequenceIndex: seq, Quote: quote, RawScore: score}
}

func TestDeduplicator_ExactPass(t *testing.T) {
	t.Run("folds verbatim repeats keeping the higher score", func(t *testing.T) {
		cands := []extractor.Candidate{
			cand("a", 0, "I will not stand for this", 7.5),
			cand("b", 1, "i will NOT stand for this", 8.5),
			cand("c", 1, "a different moment entirely", 8.0),
		}
		rb := report.NewBuilder()
		kept := New(nil, Config{}).Deduplicate(context.Background(), cands, rb)

		require.Len(t, kept, 2)
		assert.Equal(t, "b", kept[0].ID)
		assert.Equal(t, []string{"a"}, kept[0].AbsorbedIDs)
		assert.Equal(t, "c", kept[1].ID)

		assert.Equal(t, 1, rb.Stats().OverlapDuplicatesRemoved)
		decisions := rb.Decisions()
		require.Len(t, decisions, 1)
		assert.Equal(t, "b", decisions[0].KeptID)
		assert.Equal(t, "exact duplicate", decisions[0].Reason)
	})

	t.Run("score tie keeps the earlier chunk", func(t *testing.T) {
		cands := []extractor.Candidate{
			cand("a", 0, "same words", 8),
			cand("b", 1, "same words", 8),
		}
		rb := report.NewBuilder()
		kept := New(nil, Config{}).Deduplicate(context.Background(), cands, rb)
		require.Len(t, kept, 1)
		assert.Equal(t, "a", kept[0].ID)
	})

	t.Run("nil provider degrades instead of failing", func(t *testing.T) {
		cands := []extractor.Candidate{
			cand("a", 0, "first", 8),
			cand("b", 1, "second", 7),
		}
		rb := report.NewBuilder()
		kept := New(nil, Config{}).Deduplicate(context.Background(), cands, rb)
		assert.Len(t, kept, 2)
		assert.True(t, rb.Degraded())
	})
}

func TestDeduplicator_SemanticPass(t *testing.T) {
	provider := &fakeProvider{vectors: map[string][]float32{
		"the minister must resign now": {1, 0, 0},
		"the minister has to resign":   {0.99, 0.141, 0}, // ~0.99 similar
		"funding for rural schools":    {0, 1, 0},
	}}

	t.Run("merges near-duplicates above threshold", func(t *testing.T) {
		cands := []extractor.Candidate{
			cand("a", 0, "the minister must resign now", 8.0),
			cand("b", 1, "the minister has to resign", 9.0),
			cand("c", 2, "funding for rural schools", 7.0),
		}
		rb := report.NewBuilder()
		kept := New(provider, Config{Threshold: 0.85}).Deduplicate(context.Background(), cands, rb)

		require.Len(t, kept, 2)
		assert.Equal(t, "b", kept[0].ID)
		assert.Equal(t, []string{"a"}, kept[0].AbsorbedIDs)
		assert.Equal(t, "c", kept[1].ID)
		assert.Equal(t, 1, rb.Stats().SemanticDuplicatesRemoved)

		decisions := rb.Decisions()
		require.Len(t, decisions, 1)
		assert.Equal(t, "semantic duplicate", decisions[0].Reason)
		assert.InDelta(t, 0.99, decisions[0].SimilarityScores["a"], 0.01)
	})

	t.Run("below threshold stays separate", func(t *testing.T) {
		cands := []extractor.Candidate{
			cand("a", 0, "the minister must resign now", 8.0),
			cand("c", 1, "funding for rural schools", 7.0),
		}
		rb := report.NewBuilder()
		kept := New(provider, Config{Threshold: 0.85}).Deduplicate(context.Background(), cands, rb)
		assert.Len(t, kept, 2)
		assert.Zero(t, rb.Stats().SemanticDuplicatesRemoved)
		assert.False(t, rb.Degraded())
	})

	t.Run("embedding failure degrades to exact-only", func(t *testing.T) {
		failing := &fakeProvider{err: errors.New("ollama down")}
		cands := []extractor.Candidate{
			cand("a", 0, "first", 8),
			cand("b", 1, "second", 7),
		}
		rb := report.NewBuilder()
		kept := New(failing, Config{}).Deduplicate(context.Background(), cands, rb)

		assert.Len(t, kept, 2)
		assert.True(t, rb.Degraded())
		require.Len(t, rb.Notes(), 1)
		assert.Contains(t, rb.Notes()[0], "semantic deduplication skipped")
	})

	t.Run("chains collapse into a single group", func(t *testing.T) {
		chain := &fakeProvider{vectors: map[string][]float32{
			"a": {1, 0},
			"b": {0.95, 0.312}, // close to a
			"c": {0.81, 0.586}, // close to b, not to a
		}}
		cands := []extractor.Candidate{
			cand("a", 0, "a", 7),
			cand("b", 1, "b", 8),
			cand("c", 2, "c", 9),
		}
		rb := report.NewBuilder()
		kept := New(chain, Config{Threshold: 0.95}).Deduplicate(context.Background(), cands, rb)

		require.Len(t, kept, 1)
		assert.Equal(t, "c", kept[0].ID)
		assert.ElementsMatch(t, []string{"a", "b"}, kept[0].AbsorbedIDs)
	})

	t.Run("absorbed ids accumulate across passes", func(t *testing.T) {
		cands := []extractor.Candidate{
			cand("a1", 0, "the minister must resign now", 8.0),
			cand("a2", 1, "the minister must resign now", 7.0),
			cand("b", 1, "the minister has to resign", 9.0),
		}
		rb := report.NewBuilder()
		kept := New(provider, Config{Threshold: 0.85}).Deduplicate(context.Background(), cands, rb)

		require.Len(t, kept, 1)
		assert.Equal(t, "b", kept[0].ID)
		assert.ElementsMatch(t, []string{"a1", "a2"}, kept[0].AbsorbedIDs)
		assert.Equal(t, 1, rb.Stats().OverlapDuplicatesRemoved)
		assert.Equal(t, 1, rb.Stats().SemanticDuplicatesRemoved)
	})
}

func TestUnionFind(t *testing.T) {
	uf := newUnionFind(5)
	uf.union(0, 1)
	uf.union(3, 4)
	uf.union(1, 3)

	assert.Equal(t, uf.find(0), uf.find(4))
	assert.NotEqual(t, uf.find(0), uf.find(2))

	groups := uf.groups()
	assert.Len(t, groups, 2)
	assert.ElementsMatch(t, []int{0, 1, 3, 4}, groups[uf.find(0)])
}
