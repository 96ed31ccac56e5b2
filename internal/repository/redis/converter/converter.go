package converter

import "github.com/DRSN-tech/taste-backend/internal/domain"

// CacheConverter преобразует результаты между domain и JSON-моделями кэша.
type CacheConverter interface {
	ToCompatibilityModel(entity *domain.Compatibility) *CompatibilityRedisModel
	ToCompatibility(model *CompatibilityRedisModel) *domain.Compatibility
	ToArrRecommendationModel(entities []domain.Recommendation) []RecommendationRedisModel
	ToArrRecommendation(models []RecommendationRedisModel) []domain.Recommendation
}

type CacheConverterImpl struct{}

func (CacheConverterImpl) ToCompatibilityModel(entity *domain.Compatibility) *CompatibilityRedisModel {
	return &CompatibilityRedisModel{
		UserA:  entity.UserA,
		UserB:  entity.UserB,
		Score:  entity.Score,
		Method: string(entity.Method),
	}
}

func (CacheConverterImpl) ToCompatibility(model *CompatibilityRedisModel) *domain.Compatibility {
	return &domain.Compatibility{
		UserA:  model.UserA,
		UserB:  model.UserB,
		Score:  model.Score,
		Method: domain.CompatibilityMethod(model.Method),
	}
}

func (CacheConverterImpl) ToArrRecommendationModel(entities []domain.Recommendation) []RecommendationRedisModel {
	models := make([]RecommendationRedisModel, 0, len(entities))
	for _, r := range entities {
		models = append(models, RecommendationRedisModel{
			ItemType:   string(r.Item.Type),
			ItemID:     r.Item.ID,
			Title:      r.Title,
			Artist:     r.Artist,
			Similarity: r.Similarity,
			Popularity: r.Popularity,
			Source:     string(r.Source),
		})
	}
	return models
}

func (CacheConverterImpl) ToArrRecommendation(models []RecommendationRedisModel) []domain.Recommendation {
	recs := make([]domain.Recommendation, 0, len(models))
	for _, m := range models {
		recs = append(recs, domain.Recommendation{
			Item:       domain.NewItemRef(domain.ItemType(m.ItemType), m.ItemID),
			Title:      m.Title,
			Artist:     m.Artist,
			Similarity: m.Similarity,
			Popularity: m.Popularity,
			Source:     domain.RecommendationSource(m.Source),
		})
	}
	return recs
}
