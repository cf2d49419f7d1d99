package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/docqd/internal/config"
)

// NewStore creates a Store based on the configuration.
//
// The factory examines cfg.VectorStore.Provider:
//   - "chromem" (default): embedded ChromemStore, no external service
//   - "qdrant": QdrantStore against an external Qdrant server
//
// vectorSize is the embedding dimension of the configured embedder; the
// store rejects entries and queries whose dimension differs.
func NewStore(cfg *config.Config, vectorSize int, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "chromem", "":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.Chromem.Path,
			Compress:   cfg.VectorStore.Chromem.Compress,
			Collection: cfg.VectorStore.Chromem.Collection,
			VectorSize: vectorSize,
		}, logger)

	case "qdrant":
		return NewQdrantStore(QdrantConfig{
			Host:       cfg.VectorStore.Qdrant.Host,
			Port:       cfg.VectorStore.Qdrant.Port,
			Collection: cfg.VectorStore.Qdrant.Collection,
			VectorSize: vectorSize,
			UseTLS:     cfg.VectorStore.Qdrant.UseTLS,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: chromem, qdrant)", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
