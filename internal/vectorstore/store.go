// Package vectorstore provides a VecLite-based archive of selected
// moments, searchable across runs.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abdul-hamid-achik/veclite"
	"github.com/capless/moments/internal/selector"
)

const momentsCollection = "moments"

// Config holds configuration for the MomentStore.
type Config struct {
	// Path to the VecLite database file (e.g., "data/moments.veclite").
	Path string

	// ConfigPath is the path to veclite.yaml config file (optional).
	// If empty, searches ./veclite.yaml, ~/.veclite/config.yaml.
	ConfigPath string
}

// MomentStore wraps VecLite for moment vector storage and search.
type MomentStore struct {
	vecdb    *veclite.DB
	coll     *veclite.Collection
	embedder veclite.Embedder
}

// MomentHit is one similarity search result.
type MomentHit struct {
	VecLiteID  uint64
	MomentID   string
	RunID      string
	Quote      string
	Speaker    string
	Topic      string
	FinalScore float64
	Similarity float32
}

// New creates a new MomentStore using veclite.yaml configuration.
func New(cfg Config) (*MomentStore, error) {
	slog.Debug("creating MomentStore", "path", cfg.Path, "config_path", cfg.ConfigPath)

	// Load veclite config (searches ./veclite.yaml, ~/.veclite/config.yaml)
	vecliteCfg, err := veclite.LoadConfig(cfg.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load veclite config: %w", err)
	}

	embedder, err := veclite.NewEmbedderFromConfig(vecliteCfg.Embedder)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	vecdb, err := veclite.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open veclite db: %w", err)
	}

	coll, err := vecdb.CreateCollection(momentsCollection,
		veclite.WithDimension(embedder.Dimension()),
		veclite.WithDistanceType(veclite.DistanceCosine),
		veclite.WithHNSW(16, 200), // M=16, efConstruction=200
		veclite.WithTextIndex("quote", "speaker", "topic"),
		veclite.WithEmbedder(embedder),
	)
	if err != nil {
		// Collection might already exist, try to get it
		coll, err = vecdb.GetCollection(momentsCollection)
		if err != nil {
			vecdb.Close()
			return nil, fmt.Errorf("get collection: %w", err)
		}
	}

	return &MomentStore{
		vecdb:    vecdb,
		coll:     coll,
		embedder: embedder,
	}, nil
}

// Close closes the VecLite database.
func (s *MomentStore) Close() error {
	if s.vecdb != nil {
		return s.vecdb.Close()
	}
	return nil
}

// InsertMoment adds a selected moment to the vector store.
// Returns the VecLite record ID.
func (s *MomentStore) InsertMoment(ctx context.Context, runID string, m selector.Moment) (uint64, error) {
	payload := map[string]any{
		"moment_id":   m.ID,
		"run_id":      runID,
		"quote":       m.Quote,
		"speaker":     m.Speaker,
		"topic":       m.Topic,
		"final_score": m.FinalScore,
	}

	// InsertText auto-embeds via the configured embedder
	id, err := s.coll.InsertText(m.Quote, payload)
	if err != nil {
		return 0, fmt.Errorf("insert moment: %w", err)
	}

	return id, nil
}

// InsertRun archives every selected moment of a run.
func (s *MomentStore) InsertRun(ctx context.Context, runID string, moments []selector.Moment) error {
	for _, m := range moments {
		if _, err := s.InsertMoment(ctx, runID, m); err != nil {
			return err
		}
	}
	return s.Sync()
}

// Search finds moments similar to the query text.
func (s *MomentStore) Search(ctx context.Context, query string, k int) ([]MomentHit, error) {
	results, err := s.coll.SearchText(query, veclite.TopK(k))
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	return s.convertResults(results), nil
}

// SearchWithThreshold finds moments above a similarity threshold.
func (s *MomentStore) SearchWithThreshold(ctx context.Context, query string, threshold float32, maxResults int) ([]MomentHit, error) {
	results, err := s.coll.SearchText(query,
		veclite.TopK(maxResults),
		veclite.Threshold(threshold),
	)
	if err != nil {
		return nil, fmt.Errorf("search with threshold: %w", err)
	}

	return s.convertResults(results), nil
}

// SearchByRun restricts search to a single run's moments.
func (s *MomentStore) SearchByRun(ctx context.Context, query, runID string, k int) ([]MomentHit, error) {
	queryVec, err := s.embedder.Embed(query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.coll.Search(queryVec,
		veclite.TopK(k),
		veclite.WithFilter(veclite.Equal("run_id", runID)),
	)
	if err != nil {
		return nil, fmt.Errorf("search by run: %w", err)
	}

	return s.convertResults(results), nil
}

// Count returns the number of archived moments.
func (s *MomentStore) Count() int {
	return s.coll.Count()
}

// Stats returns statistics about the moment store.
func (s *MomentStore) Stats() veclite.CollectionStats {
	return s.coll.Stats()
}

// Sync persists any pending changes to disk.
func (s *MomentStore) Sync() error {
	return s.vecdb.Sync()
}

// convertResults converts VecLite results to MomentHits.
func (s *MomentStore) convertResults(results []veclite.Result) []MomentHit {
	out := make([]MomentHit, 0, len(results))
	for _, r := range results {
		hit := MomentHit{
			VecLiteID:  r.Record.ID,
			Similarity: r.Score,
		}

		if r.Record.Payload != nil {
			if v, ok := r.Record.Payload["moment_id"].(string); ok {
				hit.MomentID = v
			}
			if v, ok := r.Record.Payload["run_id"].(string); ok {
				hit.RunID = v
			}
			if v, ok := r.Record.Payload["quote"].(string); ok {
				hit.Quote = v
			}
			if v, ok := r.Record.Payload["speaker"].(string); ok {
				hit.Speaker = v
			}
			if v, ok := r.Record.Payload["topic"].(string); ok {
				hit.Topic = v
			}
			if v, ok := r.Record.Payload["final_score"].(float64); ok {
				hit.FinalScore = v
			}
		}

		if hit.Quote == "" && r.Record.Content != "" {
			hit.Quote = r.Record.Content
		}

		out = append(out, hit)
	}
	return out
}
