package usecase

import (
	"context"
	"errors"
	"math"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
)

const maxSimilarUsers = 100

// SimilarUsersUseCase ищет пользователей с близким вкусом через индекс эмбеддингов.
type SimilarUsersUseCase struct {
	userRepo    UserRepository
	userIndex   UserIndexRepository
	embeddingUC EmbeddingUC
	cfg         *cfg.CompatibilityCfg
	logger      logger.Logger
}

func NewSimilarUsersUC(
	userRepo UserRepository,
	userIndex UserIndexRepository,
	embeddingUC EmbeddingUC,
	cfg *cfg.CompatibilityCfg,
	logger logger.Logger,
) *SimilarUsersUseCase {
	return &SimilarUsersUseCase{
		userRepo:    userRepo,
		userIndex:   userIndex,
		embeddingUC: embeddingUC,
		cfg:         cfg,
		logger:      logger,
	}
}

// FindSimilarUsers возвращает до limit пользователей с косинусной близостью не ниже threshold.
// limit <= 0 берётся из конфигурации, NaN в threshold означает порог по умолчанию.
func (s *SimilarUsersUseCase) FindSimilarUsers(ctx context.Context, userID int64, limit int, threshold float64) ([]domain.SimilarUser, error) {
	const op = "SimilarUsersUseCase.FindSimilarUsers"

	if userID <= 0 {
		return nil, e.Wrap(op, e.ErrInvalidUserID)
	}
	if math.IsNaN(threshold) {
		threshold = s.cfg.SimilarMinSim
	}
	if threshold < -1 || threshold > 1 {
		return nil, e.Wrap(op, e.ErrInvalidThreshold)
	}
	if limit <= 0 {
		limit = s.cfg.SimilarUsersK
	}
	limit = min(limit, maxSimilarUsers)

	user, err := s.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrUserNotFound) {
			return nil, e.Wrap(op, err)
		}
		s.logger.Warnf("failed to load user for similar search. user_id: %d, error: %v", userID, err)
		return []domain.SimilarUser{}, nil
	}

	vector := user.Embedding
	if !vecmath.IsValidEmbedding(vector) {
		vector, err = s.embeddingUC.AggregateEmbeddingFor(ctx, userID)
		if err != nil {
			s.logger.Warnf("embedding aggregation failed. user_id: %d, error: %v", userID, err)
		}
		if vector == nil {
			return []domain.SimilarUser{}, nil
		}
	}

	// +1: сам пользователь тоже лежит в индексе
	points, err := s.userIndex.Search(ctx, vector, limit+1, threshold)
	if err != nil {
		s.logger.Warnf("similar users search failed. user_id: %d, error: %v", userID, err)
		return []domain.SimilarUser{}, nil
	}

	out := make([]domain.SimilarUser, 0, len(points))
	for _, p := range points {
		if p.ID > math.MaxInt64 || int64(p.ID) == userID {
			continue
		}
		id := int64(p.ID)
		sim := float64(p.Score)
		out = append(out, domain.SimilarUser{
			UserID:     id,
			Similarity: sim,
			Score:      CompatibilityScore(sim, s.cfg.Exponent),
		})
		if len(out) == limit {
			break
		}
	}

	return out, nil
}
