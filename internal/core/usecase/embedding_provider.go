package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

// sharedCallTimeout bounds work collapsed by singleflight. That work runs
// detached from the caller that started it, so one abandoned request cannot
// fail the others waiting on the same key.
const sharedCallTimeout = time.Minute

// EmbeddingProvider is the shared handle for one embedding space. Build it
// once at startup and pass it to every component that embeds text.
type EmbeddingProvider struct {
	embedder   ports.Embedder
	dimension  int
	queryCache ports.Cache[string, []float32]
	inflight   singleflight.Group
	logger     *slog.Logger
}

func NewEmbeddingProvider(
	embedder ports.Embedder,
	dimension int,
	queryCache ports.Cache[string, []float32],
	logger *slog.Logger,
) *EmbeddingProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingProvider{
		embedder:   embedder,
		dimension:  dimension,
		queryCache: queryCache,
		logger:     logger,
	}
}

// Dimension is the expected vector size; 0 means unknown.
func (p *EmbeddingProvider) Dimension() int {
	return p.dimension
}

// EmbedQuery returns a memoized query vector. The returned slice is a copy.
func (p *EmbeddingProvider) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if vector, ok := p.queryCache.Get(text); ok {
		return slices.Clone(vector), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ch := p.inflight.DoChan(text, func() (v any, err error) {
		defer func() {
			if r := recover(); r != nil {
				v, err = nil, fmt.Errorf("query embedding panic: %v", r)
			}
		}()
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedCallTimeout)
		defer cancel()
		vector, err := p.embedder.EmbedQuery(callCtx, text)
		if err != nil {
			return nil, err
		}
		if len(vector) == 0 {
			return nil, fmt.Errorf("empty query embedding")
		}
		p.queryCache.Add(text, vector)
		return vector, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("embed query: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("embed query: %w", res.Err)
		}
		return slices.Clone(res.Val.([]float32)), nil
	}
}

// EmbedDocuments embeds a batch. If the batch call fails each text is retried
// alone, and texts that still fail get a zero vector. An error is returned
// only when no text could be embedded at all.
func (p *EmbeddingProvider) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors, err := p.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) == len(texts) {
		return vectors, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("embed documents: %w", ctxErr)
	}
	if err == nil {
		err = fmt.Errorf("embedding count mismatch: got %d want %d", len(vectors), len(texts))
	}
	p.logger.Warn("batch_embedding_failed", "texts", len(texts), "error", err)

	out := make([][]float32, len(texts))
	failed := make([]int, 0)
	dim := p.dimension
	for i, text := range texts {
		single, itemErr := p.embedder.Embed(ctx, []string{text})
		if itemErr != nil || len(single) != 1 || len(single[0]) == 0 {
			p.logger.Warn("item_embedding_failed", "index", i, "error", itemErr)
			failed = append(failed, i)
			continue
		}
		out[i] = single[0]
		if dim <= 0 {
			dim = len(single[0])
		}
	}
	if len(failed) == len(texts) {
		return nil, domain.WrapError(domain.ErrTemporary, "embed documents", err)
	}
	for _, i := range failed {
		out[i] = make([]float32, dim)
	}
	return out, nil
}
