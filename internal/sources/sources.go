// Package sources ingests candidate articles from external content APIs
// into the store. Sources fail soft: one provider erroring out never aborts
// an ingest run.
package sources

import (
	"context"
	"log/slog"

	"newsreel/internal/store"
	"newsreel/internal/types"
)

// Source fetches candidate articles from one provider.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]types.Article, error)
}

// Manager runs every configured source and persists the results.
type Manager struct {
	sources []Source
	store   *store.Store
	logger  *slog.Logger
}

func NewManager(st *store.Store, logger *slog.Logger, srcs ...Source) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{sources: srcs, store: st, logger: logger}
}

// Ingest fetches from all sources and saves new articles as pending.
// Returns the number of articles saved.
func (m *Manager) Ingest(ctx context.Context) (int, error) {
	saved := 0
	for _, src := range m.sources {
		articles, err := src.Fetch(ctx)
		if err != nil {
			m.logger.Warn("source fetch failed", "source", src.Name(), "error", err)
			continue
		}
		m.logger.Info("source fetched", "source", src.Name(), "articles", len(articles))

		for i := range articles {
			inserted, err := m.store.SaveArticle(ctx, &articles[i])
			if err != nil {
				m.logger.Warn("save article failed", "source", src.Name(), "error", err)
				continue
			}
			if inserted {
				saved++
			}
		}
	}
	return saved, nil
}
