package rerank

import (
	"context"
	"errors"
	"testing"

	"github.com/capless/moments/internal/dedup"
	"github.com/capless/moments/internal/extractor"
	"github.com/capless/moments/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	response string
	err      error
}

func (s *stubCompleter) Complete(context.Context, string, bool) (string, error) {
	return s.response, s.err
}

func kept(id string, seq int, raw float64) dedup.Kept {
	return dedup.Kept{Candidate: extractor.Candidate{
		ID: id, SequenceIndex: seq, Quote: "quote " + id, RawScore: raw,
	}}
}

func TestReranker_Rerank(t *testing.T) {
	survivors := []dedup.Kept{
		kept("a", 0, 9.0),
		kept("b", 1, 7.5),
		kept("c", 2, 8.0),
	}

	t.Run("reorders by global scores", func(t *testing.T) {
		c := &stubCompleter{response: `{"ranked_moments":[
			{"index":1,"score":6.0},{"index":2,"score":9.5},{"index":3,"score":8.0}]}`}
		rb := report.NewBuilder()
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), survivors, rb)

		require.Len(t, out, 3)
		assert.Equal(t, []string{"b", "c", "a"}, ids(out))
		assert.Equal(t, 1, out[0].Rank)
		assert.Equal(t, 9.5, out[0].FinalScore)
		assert.False(t, rb.Degraded())
	})

	t.Run("omitted moments carry raw scores", func(t *testing.T) {
		c := &stubCompleter{response: `{"ranked_moments":[{"index":2,"score":9.5}]}`}
		rb := report.NewBuilder()
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), survivors, rb)

		require.Len(t, out, 3)
		assert.Equal(t, []string{"b", "a", "c"}, ids(out))
		assert.Equal(t, 9.0, out[1].FinalScore)
		require.Len(t, rb.Notes(), 1)
		assert.Contains(t, rb.Notes()[0], "omitted 2")
	})

	t.Run("oracle failure falls back to raw order", func(t *testing.T) {
		c := &stubCompleter{err: errors.New("timeout")}
		rb := report.NewBuilder()
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), survivors, rb)

		require.Len(t, out, 3)
		assert.Equal(t, []string{"a", "c", "b"}, ids(out))
		assert.True(t, rb.Degraded())
	})

	t.Run("garbage response falls back", func(t *testing.T) {
		c := &stubCompleter{response: "not json at all"}
		rb := report.NewBuilder()
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), survivors, rb)
		assert.Equal(t, []string{"a", "c", "b"}, ids(out))
		assert.True(t, rb.Degraded())
	})

	t.Run("out-of-range indices are ignored", func(t *testing.T) {
		c := &stubCompleter{response: `{"ranked_moments":[
			{"index":0,"score":1},{"index":7,"score":2},{"index":1,"score":5}]}`}
		rb := report.NewBuilder()
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), survivors, rb)

		require.Len(t, out, 3)
		// Only "a" was rescored, down to 5.
		for _, s := range out {
			if s.ID == "a" {
				assert.Equal(t, 5.0, s.FinalScore)
			}
		}
	})

	t.Run("scores are clamped", func(t *testing.T) {
		c := &stubCompleter{response: `{"ranked_moments":[
			{"index":1,"score":42},{"index":2,"score":-3},{"index":3,"score":5}]}`}
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), survivors, report.NewBuilder())
		assert.Equal(t, 10.0, out[0].FinalScore)
		assert.Equal(t, 0.0, out[2].FinalScore)
	})

	t.Run("disabled mode orders by raw score", func(t *testing.T) {
		rb := report.NewBuilder()
		out := New(nil, Config{}).Rerank(context.Background(), survivors, rb)
		require.Len(t, out, 3)
		assert.Equal(t, []string{"a", "c", "b"}, ids(out))
		assert.Equal(t, 9.0, out[0].FinalScore)
		assert.False(t, rb.Degraded())
	})

	t.Run("tie breaks by raw score then earlier chunk", func(t *testing.T) {
		tied := []dedup.Kept{
			kept("x", 2, 7.0),
			kept("y", 0, 7.0),
			kept("z", 1, 8.0),
		}
		c := &stubCompleter{response: `{"ranked_moments":[
			{"index":1,"score":8},{"index":2,"score":8},{"index":3,"score":8}]}`}
		out := New(c, Config{Enabled: true}).Rerank(context.Background(), tied, report.NewBuilder())
		assert.Equal(t, []string{"z", "y", "x"}, ids(out))
	})

	t.Run("empty input yields nil", func(t *testing.T) {
		out := New(nil, Config{Enabled: true}).Rerank(context.Background(), nil, report.NewBuilder())
		assert.Nil(t, out)
	})
}

func ids(out []Scored) []string {
	s := make([]string, len(out))
	for i, m := range out {
		s[i] = m.ID
	}
	return s
}
