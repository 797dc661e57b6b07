package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/docchatlabs/docchat/internal/core/domain"
	"github.com/docchatlabs/docchat/internal/core/ports"
)

type RetrievalConfig struct {
	TopK int
	// MinScore drops results below the relevance floor after over-fetching.
	MinScore            float64
	OverfetchMultiplier int
	Timeout             time.Duration
}

// RetrievalService answers similarity queries against the vector store.
// It fails open: any store error yields an empty result set so the caller
// can fall back to an external source instead of erroring out.
type RetrievalService struct {
	store  ports.VectorStore
	target domain.IndexConfig
	cfg    RetrievalConfig
	logger *slog.Logger
}

func NewRetrievalService(store ports.VectorStore, target domain.IndexConfig, cfg RetrievalConfig, logger *slog.Logger) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.OverfetchMultiplier <= 0 {
		cfg.OverfetchMultiplier = 1
	}
	return &RetrievalService{store: store, target: target, cfg: cfg, logger: logger}
}

func (s *RetrievalService) Retrieve(ctx context.Context, question, namespace string, filter *domain.MetadataFilter) []domain.RetrievalResult {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	target := s.target
	if namespace != "" {
		target = target.WithNamespace(namespace)
	}

	k := s.cfg.TopK * s.cfg.OverfetchMultiplier
	results, err := s.store.Query(ctx, question, target, k, filter)
	if err != nil {
		s.logger.Warn("retrieval_failed", "namespace", target.Namespace, "error", err)
		return nil
	}

	kept := results[:0]
	for _, r := range results {
		if r.Score >= s.cfg.MinScore {
			kept = append(kept, r)
		}
	}
	if len(kept) > s.cfg.TopK {
		kept = kept[:s.cfg.TopK]
	}
	return kept
}
