package embedder

import (
	"context"
	"fmt"
	"sync"
)

const defaultConcurrency = 4

// EmbedAll embeds every text concurrently, bounded by maxConcurrent
// workers. Results come back in input order. All texts must succeed;
// the first failure cancels the rest and is returned, so callers can
// fall back to exact-only deduplication in one piece.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string, maxConcurrent int) ([][]float32, error) {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultConcurrency
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([][]float32, len(texts))
	errs := make([]error, len(texts))
	sem := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup

	for i, text := range texts {
		select {
		case <-ctx.Done():
		case sem <- struct{}{}:
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			defer func() { <-sem }()

			emb, err := e.Embed(ctx, text)
			if err != nil {
				errs[i] = fmt.Errorf("embed text %d: %w", i, err)
				cancel()
				return
			}
			out[i] = emb
		}(i, text)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
