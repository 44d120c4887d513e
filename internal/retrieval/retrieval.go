// Package retrieval composes the corpus store, embedder, and ranker into the
// semantic retrieval step of the answer pipeline.
package retrieval

import (
	"context"

	"go.uber.org/zap"

	"github.com/chartalabs/chartad/internal/corpus"
	"github.com/chartalabs/chartad/internal/similarity"
)

// Embedder converts query text into an embedding vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Service performs embedding-based retrieval over the in-memory corpus.
//
// Retrieval never fails a request: every failure mode (unreadable corpus,
// embedding call error, empty query) degrades to an empty result, and the
// completion proceeds without grounding context.
type Service struct {
	store    *corpus.Store
	embedder Embedder
	topK     int
	logger   *zap.Logger
}

// NewService creates a retrieval service. topK <= 0 falls back to the default.
func NewService(store *corpus.Store, embedder Embedder, topK int, logger *zap.Logger) *Service {
	if topK <= 0 {
		topK = similarity.DefaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, embedder: embedder, topK: topK, logger: logger}
}

// FindRelevantSections returns up to k sections most similar to the query,
// in descending similarity order. k <= 0 uses the configured top-K.
func (s *Service) FindRelevantSections(ctx context.Context, query string, k int) []similarity.Scored {
	if k <= 0 {
		k = s.topK
	}

	sections := s.store.Load()
	if len(sections) == 0 || s.embedder == nil {
		return nil
	}

	vec, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		s.logger.Warn("query embedding failed, continuing without context",
			zap.Error(err),
		)
		return nil
	}

	return similarity.Rank(vec, sections, k)
}
