package vectorstore

import (
	"fmt"
	"os"
	"time"

	"ambedkargpt/internal/config"
	"ambedkargpt/internal/domain"
	"ambedkargpt/internal/vectorstore/memory"
	"ambedkargpt/internal/vectorstore/qdrant"
)

// Factory returns an empty backend. Each index build gets its own, so a
// rebuild never touches the backend an earlier snapshot still searches.
type Factory func() domain.VectorIndex

// New returns the backend factory selected by cfg.Type and a function that
// releases connections shared by its backends.
func New(cfg config.VectorStoreConfig) (Factory, func() error, error) {
	switch cfg.Type {
	case "memory", "":
		return func() domain.VectorIndex { return memory.NewStorage() }, func() error { return nil }, nil
	case "qdrant":
		if cfg.Qdrant == nil {
			return nil, nil, fmt.Errorf("%w: qdrant config missing", domain.ErrInvalidConfig)
		}
		q := cfg.Qdrant
		client, err := qdrant.Dial(qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			UseTLS:     q.UseTLS,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, nil, err
		}
		return func() domain.VectorIndex { return client.NewStorage() }, client.Close, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, cfg.Type)
	}
}
