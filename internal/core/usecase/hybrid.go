package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
)

// corpusSource is the part of a document store the hybrid retriever needs.
type corpusSource interface {
	Name() string
	Search(ctx context.Context, query string, k int) ([]domain.Document, error)
	MaterializeAll(ctx context.Context) ([]domain.Document, error)
}

// HybridRetriever fuses vector search with a lexical BM25 index over the same
// store. The lexical index is built on first use, at most once; concurrent
// first callers wait for the single build instead of starting their own.
type HybridRetriever struct {
	source        corpusSource
	vectorK       int
	lexicalK      int
	vectorWeight  float64
	lexicalWeight float64
	logger        *slog.Logger

	index   atomic.Pointer[LexicalIndex]
	buildMu sync.Mutex
}

func NewHybridRetriever(source corpusSource, policy domain.RetrievalPolicy, logger *slog.Logger) *HybridRetriever {
	if logger == nil {
		logger = slog.Default()
	}
	policy = policy.WithDefaults()
	return &HybridRetriever{
		source:        source,
		vectorK:       policy.LegalTopK,
		lexicalK:      policy.LexicalTopK,
		vectorWeight:  policy.VectorWeight,
		lexicalWeight: policy.LexicalWeight,
		logger:        logger.With("store", source.Name()),
	}
}

// Built reports whether the lexical index is ready.
func (h *HybridRetriever) Built() bool {
	return h.index.Load() != nil
}

// Search returns the fused, deduplicated ranking. It fails with
// domain.ErrEmptyCorpus or a store error when the lexical side cannot be built.
func (h *HybridRetriever) Search(ctx context.Context, query string) ([]domain.Document, error) {
	idx, err := h.lexicalIndex(ctx)
	if err != nil {
		return nil, err
	}

	vectorDocs, err := h.source.Search(ctx, query, h.vectorK)
	if err != nil {
		return nil, fmt.Errorf("hybrid vector search: %w", err)
	}
	lexicalDocs := idx.Search(query, h.lexicalK)

	fused := fuseWeightedRRF(
		[][]domain.Document{vectorDocs, lexicalDocs},
		[]float64{h.vectorWeight, h.lexicalWeight},
		defaultRRFConstant,
	)
	h.logger.Debug("hybrid_search_completed",
		"vector_hits", len(vectorDocs),
		"lexical_hits", len(lexicalDocs),
		"fused", len(fused),
	)
	return fused, nil
}

func (h *HybridRetriever) lexicalIndex(ctx context.Context) (*LexicalIndex, error) {
	if idx := h.index.Load(); idx != nil {
		return idx, nil
	}

	h.buildMu.Lock()
	defer h.buildMu.Unlock()
	if idx := h.index.Load(); idx != nil {
		return idx, nil
	}

	started := time.Now()
	docs, err := h.source.MaterializeAll(ctx)
	if err != nil {
		h.logger.Warn("hybrid_retriever_build_failed", "error", err)
		return nil, fmt.Errorf("build lexical index: %w", err)
	}
	if len(docs) == 0 {
		h.logger.Warn("hybrid_retriever_build_failed", "error", domain.ErrEmptyCorpus)
		return nil, domain.WrapError(domain.ErrEmptyCorpus, "build lexical index", fmt.Errorf("store %s has no documents", h.source.Name()))
	}

	idx := NewLexicalIndex(docs)
	h.index.Store(idx)
	h.logger.Info("hybrid_retriever_built",
		"documents", idx.Len(),
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return idx, nil
}
