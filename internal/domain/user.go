package domain

import "time"

// User: владелец коллекции и вкусового эмбеддинга.
// Embedding == nil, пока ни у одного элемента коллекции нет признаков.
type User struct {
	ID        int64
	Name      string
	Embedding []float32
	Anthem    *ItemRef
	UpdatedAt time.Time
}

// HasEmbedding сообщает, посчитан ли эмбеддинг пользователя
func (u *User) HasEmbedding() bool {
	return u != nil && len(u.Embedding) > 0
}
