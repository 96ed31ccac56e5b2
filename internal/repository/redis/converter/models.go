package converter

// CompatibilityRedisModel: закэшированная оценка совместимости
type CompatibilityRedisModel struct {
	UserA  int64   `json:"user_a"`
	UserB  int64   `json:"user_b"`
	Score  float64 `json:"score"`
	Method string  `json:"method"`
}

// RecommendationRedisModel: одна закэшированная рекомендация. ItemID == 0 - внешний результат.
type RecommendationRedisModel struct {
	ItemType   string  `json:"item_type"`
	ItemID     int64   `json:"item_id,omitempty"`
	Title      string  `json:"title,omitempty"`
	Artist     string  `json:"artist,omitempty"`
	Similarity float64 `json:"similarity"`
	Popularity *int    `json:"popularity,omitempty"`
	Source     string  `json:"source"`
}
