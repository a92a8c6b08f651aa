package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/taxqa/internal/config"
	"github.com/hyperjump/taxqa/pkg/utils"
)

// New opens the chunk store selected by cfg.Storage.Backend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ChunkStore, error) {
	logger = utils.OrNop(logger)
	dims := cfg.Embedding.Dimensions
	switch cfg.Storage.Backend {
	case config.BackendSQLite, "":
		logger.Debug("Opening SQLite chunk store", zap.String("path", cfg.Storage.DatabasePath))
		return NewSQLiteStore(cfg.Storage.DatabasePath, dims)
	case config.BackendMemory:
		logger.Debug("Using in-memory chunk store")
		return NewMemoryStore(dims), nil
	case config.BackendChromem:
		logger.Debug("Opening chromem chunk store",
			zap.String("path", cfg.Storage.ChromemPath),
			zap.String("collection", cfg.Storage.Collection))
		return NewChromemStore(cfg.Storage.ChromemPath, cfg.Storage.Collection, dims)
	case config.BackendPostgres:
		logger.Debug("Connecting to postgres chunk store", zap.String("table", cfg.Storage.Collection))
		return NewPostgresStore(ctx, cfg.Storage.PostgresDSN, cfg.Storage.Collection, dims, cfg.Debug)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: sqlite, memory, chromem, postgres)", cfg.Storage.Backend)
	}
}

// SupportsNearestNeighbors reports whether s can serve the indexed retrieval strategy.
func SupportsNearestNeighbors(s ChunkStore) bool {
	_, ok := s.(NearestNeighborSearcher)
	return ok
}

// DataPaths returns the on-disk locations used by the configured backend.
func DataPaths(cfg config.StorageConfig) []string {
	switch cfg.Backend {
	case config.BackendSQLite, "":
		return []string{cfg.DatabasePath, cfg.DatabasePath + "-wal", cfg.DatabasePath + "-shm"}
	case config.BackendChromem:
		return []string{cfg.ChromemPath}
	default:
		return nil
	}
}
