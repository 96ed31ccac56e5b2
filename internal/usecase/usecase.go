package usecase

import (
	"context"

	"github.com/DRSN-tech/taste-backend/internal/domain"
)

type EmbeddingUC interface {
	AggregateEmbeddingFor(ctx context.Context, userID int64) ([]float32, error)
}

type CompatibilityUC interface {
	GetCompatibility(ctx context.Context, userA, userB int64) (float64, error)
	Compatibility(ctx context.Context, userA, userB int64) (*domain.Compatibility, error)
}

type RecommendationUC interface {
	GetRecommendations(ctx context.Context, userID int64, limit int) ([]domain.Recommendation, error)
}

type RefreshUC interface {
	RefreshUsers(ctx context.Context, userIDs []int64) (*domain.RefreshReport, error)
	RefreshAll(ctx context.Context) (*domain.RefreshReport, error)
}

type SimilarUsersUC interface {
	FindSimilarUsers(ctx context.Context, userID int64, limit int, threshold float64) ([]domain.SimilarUser, error)
}

// Transactor выполняет функцию в одной транзакции БД; репозитории берут её из контекста.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
