package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/jeonse-legal-assistant/internal/core/domain"
	"github.com/kirillkom/jeonse-legal-assistant/internal/core/ports"
)

// DocumentStore wraps one persisted vector collection. A store whose backend
// cannot be reached at construction stays unavailable for its whole lifetime.
type DocumentStore struct {
	name       string
	index      ports.VectorIndex
	embeddings *EmbeddingProvider
	available  bool
	reason     error
	logger     *slog.Logger
}

func NewDocumentStore(
	ctx context.Context,
	name string,
	index ports.VectorIndex,
	embeddings *EmbeddingProvider,
	logger *slog.Logger,
) *DocumentStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &DocumentStore{
		name:       name,
		index:      index,
		embeddings: embeddings,
		logger:     logger.With("store", name),
	}
	if index == nil {
		s.reason = fmt.Errorf("no backend configured")
		s.logger.Error("document_store_unavailable", "error", s.reason)
		return s
	}

	size, err := index.VectorSize(ctx)
	if err != nil {
		s.reason = err
		s.logger.Error("document_store_unavailable", "error", err)
		return s
	}
	if want := embeddings.Dimension(); want > 0 && size > 0 && size != want {
		s.reason = domain.WrapError(domain.ErrDimensionMismatch, "open store",
			fmt.Errorf("collection=%d embedder=%d", size, want))
		s.logger.Error("document_store_unavailable", "error", s.reason)
		return s
	}

	s.available = true
	s.logger.Info("document_store_connected", "vector_size", size)
	return s
}

func (s *DocumentStore) Name() string {
	return s.name
}

func (s *DocumentStore) Available() bool {
	return s.available
}

// Search embeds the query and returns the k nearest documents.
func (s *DocumentStore) Search(ctx context.Context, query string, k int) ([]domain.Document, error) {
	if !s.available {
		return nil, s.unavailableErr("search")
	}
	vector, err := s.embeddings.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", s.name, err)
	}
	docs, err := s.index.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("%s search: %w", s.name, err)
	}
	return docs, nil
}

// MaterializeAll pulls the whole corpus; it is used to build the lexical index.
func (s *DocumentStore) MaterializeAll(ctx context.Context) ([]domain.Document, error) {
	if !s.available {
		return nil, s.unavailableErr("materialize")
	}
	docs, err := s.index.ScrollAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s materialize: %w", s.name, err)
	}
	return docs, nil
}

func (s *DocumentStore) Count(ctx context.Context) (int, error) {
	if !s.available {
		return 0, s.unavailableErr("count")
	}
	n, err := s.index.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s count: %w", s.name, err)
	}
	return n, nil
}

// Probe logs the corpus size and a smoke search. Failures are only logged.
func (s *DocumentStore) Probe(ctx context.Context, smokeQuery string) {
	if !s.available {
		return
	}
	count, err := s.Count(ctx)
	if err != nil {
		s.logger.Warn("document_store_count_failed", "error", err)
	} else {
		s.logger.Info("document_store_count", "documents", count)
	}

	docs, err := s.Search(ctx, smokeQuery, 1)
	if err != nil {
		s.logger.Warn("document_store_smoke_search_failed", "query", smokeQuery, "error", err)
		return
	}
	attrs := []any{"query", smokeQuery, "hits", len(docs)}
	if len(docs) > 0 {
		attrs = append(attrs, "sample_title", truncateRunes(docs[0].MetaString("title"), 50))
	}
	s.logger.Info("document_store_smoke_search", attrs...)
}

func (s *DocumentStore) unavailableErr(operation string) error {
	return domain.WrapError(domain.ErrStoreUnavailable, s.name+" "+operation, s.reason)
}

// StoreHealthReporter exposes per-store availability for health checks.
type StoreHealthReporter struct {
	stores []*DocumentStore
}

func NewStoreHealthReporter(stores ...*DocumentStore) *StoreHealthReporter {
	return &StoreHealthReporter{stores: stores}
}

func (r *StoreHealthReporter) Availability() map[string]bool {
	out := make(map[string]bool, len(r.stores))
	for _, s := range r.stores {
		out[s.Name()] = s.Available()
	}
	return out
}
