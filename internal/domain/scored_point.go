package domain

// ScoredPoint: найденная в векторном индексе точка. ID совпадает с id пользователя, Score - косинусная близость.
type ScoredPoint struct {
	ID    uint64
	Score float32
}
