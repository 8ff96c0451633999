package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/capless/moments/internal/pipeline"
	"github.com/capless/moments/internal/report"
	"github.com/capless/moments/internal/selector"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()
	s, err := New(ctx, filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(ctx))
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(runID string) *pipeline.Record {
	return &pipeline.Record{
		RunID:      runID,
		SourcePath: "session.vtt",
		StartedAt:  time.Now().UTC().Add(-time.Minute).Truncate(time.Second),
		FinishedAt: time.Now().UTC().Truncate(time.Second),
		FinalMoments: []selector.Moment{
			{
				ID: "m1", Rank: 1, Quote: "I will not apologize", Speaker: "Member",
				Topic: "debate", RawScore: 8.5, FinalScore: 9.0,
				SourceChunkID: "chunk-002", StartTime: 512, EndTime: 530,
			},
			{
				ID: "m2", Rank: 2, Quote: "the numbers do not add up",
				RawScore: 8.0, FinalScore: 8.0, SourceChunkID: "chunk-000",
			},
		},
		ConsolidationStats: report.Stats{
			TotalCandidatesExtracted:  12,
			OverlapDuplicatesRemoved:  3,
			SemanticDuplicatesRemoved: 2,
			QualityFiltered:           5,
			FinalCount:                2,
		},
		DeduplicationDecisions: []report.Decision{
			{KeptID: "m1", RemovedIDs: []string{"x"}, Reason: "exact duplicate"},
		},
		Degraded: false,
		Notes:    []string{"chunk-004 produced no candidates"},
	}
}

func TestStore_Migrate(t *testing.T) {
	s := testStore(t)

	t.Run("is idempotent", func(t *testing.T) {
		require.NoError(t, s.Migrate(context.Background()))
	})
}

func TestStore_SaveRecord(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips the full record", func(t *testing.T) {
		s := testStore(t)
		rec := testRecord("run-1")
		require.NoError(t, s.SaveRecord(ctx, rec))

		got, err := s.GetRecord(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, rec.RunID, got.RunID)
		assert.Equal(t, rec.ConsolidationStats, got.ConsolidationStats)
		require.Len(t, got.FinalMoments, 2)
		assert.Equal(t, "I will not apologize", got.FinalMoments[0].Quote)
		assert.Equal(t, rec.DeduplicationDecisions, got.DeduplicationDecisions)
		assert.Equal(t, rec.Notes, got.Notes)
	})

	t.Run("saving the same run twice replaces it", func(t *testing.T) {
		s := testStore(t)
		rec := testRecord("run-1")
		require.NoError(t, s.SaveRecord(ctx, rec))

		rec.FinalMoments = rec.FinalMoments[:1]
		rec.ConsolidationStats.FinalCount = 1
		require.NoError(t, s.SaveRecord(ctx, rec))

		got, err := s.GetRecord(ctx, "run-1")
		require.NoError(t, err)
		assert.Len(t, got.FinalMoments, 1)

		runs, err := s.ListRuns(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("unknown run reports not found", func(t *testing.T) {
		s := testStore(t)
		_, err := s.GetRecord(ctx, "nope")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestStore_ListRuns(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	first := testRecord("run-1")
	first.StartedAt = time.Now().UTC().Add(-2 * time.Hour)
	second := testRecord("run-2")
	second.Degraded = true
	require.NoError(t, s.SaveRecord(ctx, first))
	require.NoError(t, s.SaveRecord(ctx, second))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	// Newest first.
	assert.Equal(t, "run-2", runs[0].ID)
	assert.True(t, runs[0].Degraded)
	assert.Equal(t, "run-1", runs[1].ID)
	assert.Equal(t, 2, runs[0].FinalCount)
	assert.Equal(t, 12, runs[0].TotalFound)

	t.Run("respects limit", func(t *testing.T) {
		runs, err := s.ListRuns(ctx, 1)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})
}

func TestStore_GetStats(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	t.Run("empty archive", func(t *testing.T) {
		st, err := s.GetStats(ctx)
		require.NoError(t, err)
		assert.Zero(t, st.TotalRuns)
		assert.Zero(t, st.TotalMoments)
	})

	t.Run("aggregates runs", func(t *testing.T) {
		require.NoError(t, s.SaveRecord(ctx, testRecord("run-1")))
		degraded := testRecord("run-2")
		degraded.Degraded = true
		require.NoError(t, s.SaveRecord(ctx, degraded))

		st, err := s.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), st.TotalRuns)
		assert.Equal(t, int64(1), st.DegradedRuns)
		assert.Equal(t, int64(4), st.TotalMoments)
		assert.Equal(t, 2.0, st.AvgFinalCount)
	})
}
