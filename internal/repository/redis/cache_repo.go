package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/taste-backend/pkg/clients"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/jimlawless/whereami"
	goredis "github.com/redis/go-redis/v9"
)

type CacheRepo struct {
	client *clients.RedisClient
	conv   converter.CacheConverter
	logger logger.Logger
}

func NewCacheRepo(client *clients.RedisClient, conv converter.CacheConverter, logger logger.Logger) *CacheRepo {
	return &CacheRepo{
		client: client,
		conv:   conv,
		logger: logger,
	}
}

// GetCompatibility возвращает закэшированную оценку или e.ErrCacheMiss
func (r *CacheRepo) GetCompatibility(ctx context.Context, key string) (*domain.Compatibility, error) {
	var model converter.CompatibilityRedisModel
	if err := r.get(ctx, key, &model); err != nil {
		return nil, err
	}

	return r.conv.ToCompatibility(&model), nil
}

func (r *CacheRepo) SetCompatibility(ctx context.Context, key string, c *domain.Compatibility, ttl time.Duration) error {
	return r.set(ctx, key, r.conv.ToCompatibilityModel(c), ttl)
}

// GetRecommendations возвращает закэшированный список или e.ErrCacheMiss
func (r *CacheRepo) GetRecommendations(ctx context.Context, key string) ([]domain.Recommendation, error) {
	var models []converter.RecommendationRedisModel
	if err := r.get(ctx, key, &models); err != nil {
		return nil, err
	}

	return r.conv.ToArrRecommendation(models), nil
}

func (r *CacheRepo) SetRecommendations(ctx context.Context, key string, recs []domain.Recommendation, ttl time.Duration) error {
	return r.set(ctx, key, r.conv.ToArrRecommendationModel(recs), ttl)
}

// get читает JSON по ключу. Нечитаемое значение удаляется и считается промахом.
func (r *CacheRepo) get(ctx context.Context, key string, dst any) error {
	data, err := r.client.Client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return e.ErrCacheMiss
	}
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := json.Unmarshal(data, dst); err != nil {
		r.logger.Warnf("Redis unmarshal failed (key: %s): %v", key, e.Wrap(whereami.WhereAmI(), err))
		if err := r.client.Client.Del(context.Background(), key).Err(); err != nil {
			r.logger.Warnf("Redis del failed: %v", e.Wrap(whereami.WhereAmI(), err))
		}
		return e.ErrCacheMiss
	}

	return nil
}

func (r *CacheRepo) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		return e.Wrap(whereami.WhereAmI(), fmt.Errorf("%w: non-positive ttl for key %s", e.ErrInvalidConfig, key))
	}

	data, err := json.Marshal(value)
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	if err := r.client.Client.Set(ctx, key, data, ttl).Err(); err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}
