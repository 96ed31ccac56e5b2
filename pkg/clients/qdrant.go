package clients

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

type QdrantClient struct {
	Client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewQdrantClient(cfg *cfg.QdrantCfg) (*QdrantClient, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.ApiKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return &QdrantClient{Client: client, cfg: cfg}, nil
}

// EnsureCollection создаёт коллекцию пользовательских эмбеддингов (cosine) нужной размерности.
func (c *QdrantClient) EnsureCollection(ctx context.Context) error {
	exists, err := c.Client.CollectionExists(ctx, c.cfg.QdrantCollectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	if err := c.Client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: c.cfg.QdrantCollectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     c.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("failed to create collection %s: %w", c.cfg.QdrantCollectionName, err)
	}

	return nil
}

func (c *QdrantClient) Close() error {
	return c.Client.Close()
}
