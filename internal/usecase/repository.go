package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/domain"
)

type UserRepository interface {
	// Get возвращает e.ErrUserNotFound, если пользователя нет.
	Get(ctx context.Context, id int64) (*domain.User, error)
	// UpdateEmbedding перезаписывает вектор целиком и возвращает новый updated_at.
	UpdateEmbedding(ctx context.Context, id int64, embedding []float32) (time.Time, error)
	ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error)
}

type OwnershipRepository interface {
	ListOwned(ctx context.Context, userID int64) (*domain.Collection, error)
	// OwnedArtistNames: имена артистов из коллекции, сначала недавно добавленные.
	// Если артистов нет, используются артисты треков коллекции.
	OwnedArtistNames(ctx context.Context, userID int64, limit int) ([]string, error)
}

// FeatureStore: read-only хранилище признаков каталога.
type FeatureStore interface {
	// Get возвращает e.ErrFeatureNotFound, если признаков нет.
	Get(ctx context.Context, item domain.ItemRef) (*domain.FeatureRecord, error)
}

type CatalogRepository interface {
	// ScanEmbeddings читает страницу векторов каталога с id > afterID в порядке возрастания id.
	ScanEmbeddings(ctx context.Context, itemType domain.ItemType, afterID int64, limit int) ([]CatalogVector, error)
	RepresentativeTracks(ctx context.Context, artistIDs []int64, perArtist int) ([]domain.Track, error)
	ResolveTracks(ctx context.Context, keys []TrackKey) (map[TrackKey]domain.Track, error)
	ResolveArtists(ctx context.Context, names []string) (map[string]domain.Artist, error)
	PopularTracks(ctx context.Context, excludeOwnedBy int64, limit int) ([]domain.Track, error)
}

type CacheRepository interface {
	// Get* возвращают e.ErrCacheMiss при промахе.
	GetCompatibility(ctx context.Context, key string) (*domain.Compatibility, error)
	SetCompatibility(ctx context.Context, key string, c *domain.Compatibility, ttl time.Duration) error
	GetRecommendations(ctx context.Context, key string) ([]domain.Recommendation, error)
	SetRecommendations(ctx context.Context, key string, recs []domain.Recommendation, ttl time.Duration) error
}

// UserIndexRepository: индекс пользовательских эмбеддингов для поиска похожих пользователей.
type UserIndexRepository interface {
	Upsert(ctx context.Context, vectors []domain.Embedding) error
	Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]domain.ScoredPoint, error)
}

type OutboxRepository interface {
	Create(ctx context.Context, event *OutboxEvent) (*OutboxEvent, error)
	GetAndMarkAsProcessing(ctx context.Context, limit int) ([]*OutboxEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) error
}
