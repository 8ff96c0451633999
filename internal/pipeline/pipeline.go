// Package pipeline orchestrates a full extraction run: chunk the
// transcript, fan candidate extraction out across workers, consolidate,
// rerank and select.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/capless/moments/internal/chunker"
	"github.com/capless/moments/internal/dedup"
	"github.com/capless/moments/internal/extractor"
	"github.com/capless/moments/internal/rerank"
	"github.com/capless/moments/internal/report"
	"github.com/capless/moments/internal/selector"
	"github.com/capless/moments/internal/transcript"
	"github.com/google/uuid"
)

// State names the pipeline's current stage.
type State string

const (
	StateChunking      State = "chunking"
	StateExtracting    State = "extracting"
	StateDeduplicating State = "deduplicating"
	StateReranking     State = "reranking"
	StateSelecting     State = "selecting"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

const (
	defaultWorkers      = 4
	defaultChunkTimeout = 2 * time.Minute
)

// Record is the result of one run, shaped for JSON output.
type Record struct {
	RunID        string            `json:"run_id"`
	SourcePath   string            `json:"source_path,omitempty"`
	StartedAt    time.Time         `json:"started_at"`
	FinishedAt   time.Time         `json:"finished_at"`
	FinalMoments []selector.Moment `json:"final_moments"`

	ConsolidationStats     report.Stats      `json:"consolidation_stats"`
	DeduplicationDecisions []report.Decision `json:"deduplication_decisions"`

	Degraded bool     `json:"degraded"`
	Notes    []string `json:"notes,omitempty"`
}

// Config tunes the orchestrator.
type Config struct {
	// Workers bounds concurrent chunk extractions.
	Workers int

	// ChunkTimeout bounds one chunk's extraction, retries included.
	ChunkTimeout time.Duration
}

// Pipeline wires the stages together.
type Pipeline struct {
	chunker   *chunker.Chunker
	extractor *extractor.Extractor
	dedup     *dedup.Deduplicator
	reranker  *rerank.Reranker
	selector  *selector.Selector
	cfg       Config

	mu    sync.Mutex
	state State
}

// New assembles a pipeline from its stages.
func New(ch *chunker.Chunker, ex *extractor.Extractor, dd *dedup.Deduplicator, rr *rerank.Reranker, sel *selector.Selector, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = defaultChunkTimeout
	}
	return &Pipeline{
		chunker:   ch,
		extractor: ex,
		dedup:     dd,
		reranker:  rr,
		selector:  sel,
		cfg:       cfg,
	}
}

// State returns the stage the pipeline is currently in.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	slog.Debug("pipeline stage", "state", s)
}

// Run executes one full pass over the session. Empty input and
// cancellation are the only fatal errors; chunk-level extraction
// failures degrade the run and continue.
func (p *Pipeline) Run(ctx context.Context, sess *transcript.Session) (*Record, error) {
	rec := &Record{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	rb := report.NewBuilder()

	p.setState(StateChunking)
	chunks, err := p.chunker.Chunk(sess)
	if err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	slog.Info("chunked transcript", "run_id", rec.RunID, "chunks", len(chunks))

	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		return nil, err
	}

	p.setState(StateExtracting)
	candidates := p.extractAll(ctx, chunks, rb)
	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		return nil, err
	}
	slog.Info("extracted candidates", "run_id", rec.RunID, "candidates", len(candidates))

	p.setState(StateDeduplicating)
	kept := p.dedup.Deduplicate(ctx, candidates, rb)
	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		return nil, err
	}

	p.setState(StateReranking)
	scored := p.reranker.Rerank(ctx, kept, rb)
	if err := ctx.Err(); err != nil {
		p.setState(StateFailed)
		return nil, err
	}

	p.setState(StateSelecting)
	rec.FinalMoments = p.selector.Select(scored, rb)

	rec.FinishedAt = time.Now().UTC()
	rec.ConsolidationStats = rb.Stats()
	rec.DeduplicationDecisions = rb.Decisions()
	rec.Degraded = rb.Degraded()
	rec.Notes = rb.Notes()
	if rec.FinalMoments == nil {
		rec.FinalMoments = []selector.Moment{}
	}

	p.setState(StateCompleted)
	slog.Info("run completed",
		"run_id", rec.RunID,
		"moments", len(rec.FinalMoments),
		"degraded", rec.Degraded,
	)
	return rec, nil
}

// extractAll fans chunks out across a bounded worker pool. Results are
// collected per chunk index and merged in chunk order, so identical
// inputs produce identical candidate order regardless of worker timing.
func (p *Pipeline) extractAll(ctx context.Context, chunks []chunker.Chunk, rb *report.Builder) []extractor.Candidate {
	results := make([][]extractor.Candidate, len(chunks))
	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup

	for i, chunk := range chunks {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, chunk chunker.Chunk) {
			defer wg.Done()
			defer func() { <-sem }()

			chunkCtx, cancel := context.WithTimeout(ctx, p.cfg.ChunkTimeout)
			defer cancel()

			cands, err := p.extractor.ExtractChunk(chunkCtx, chunk)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("chunk extraction failed, continuing without it",
					"chunk_id", chunk.ID, "error", err)
				rb.MarkDegraded(fmt.Sprintf("chunk %s extraction failed: %v", chunk.ID, err))
				return
			}
			results[i] = cands
		}(i, chunk)
	}
	wg.Wait()

	var merged []extractor.Candidate
	for _, cands := range results {
		merged = append(merged, cands...)
	}
	rb.AddExtracted(len(merged))
	return merged
}
