package domain

import "strings"

// RecommendationSource: каким способом получена рекомендация
type RecommendationSource string

const (
	SourceEmbedding     RecommendationSource = "embedding"
	SourceSimilarArtist RecommendationSource = "similar_artist"
	SourcePopular       RecommendationSource = "popular"
)

// Recommendation: рекомендованная сущность. Item.ID == 0 - внешний результат, которого нет в каталоге.
type Recommendation struct {
	Item       ItemRef
	Title      string
	Artist     string
	Similarity float64
	Popularity *int
	Source     RecommendationSource
}

// Key используется для дедупликации: id каталога, а для внешних результатов пара артист/название без учёта регистра.
func (r Recommendation) Key() string {
	if r.Item.ID != 0 {
		return r.Item.String()
	}
	return "ext:" + strings.ToLower(r.Artist) + "|" + strings.ToLower(r.Title)
}

// Compatibility: результат оценки совместимости двух пользователей
type Compatibility struct {
	UserA  int64
	UserB  int64
	Score  float64 // 0..100, один знак после запятой
	Method CompatibilityMethod
}

// CompatibilityMethod: путь, по которому посчитана совместимость
type CompatibilityMethod string

const (
	MethodEmbedding CompatibilityMethod = "embedding"
	MethodOverlap   CompatibilityMethod = "overlap"
)

// SimilarUser: пользователь с близким вкусом
type SimilarUser struct {
	UserID     int64
	Similarity float64
	Score      float64
}
