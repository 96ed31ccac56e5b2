package domain

import "time"

// Payload описывает дополнительную информацию вектора
type Payload map[string]any

// Embedding: вектор пользователя для индекса похожих пользователей
type Embedding struct {
	ID      string
	Vector  []float32
	Payload Payload
}

func NewEmbedding(id string, vector []float32, payload Payload) *Embedding {
	return &Embedding{
		ID:      id,
		Vector:  vector,
		Payload: payload,
	}
}

func NewPayload(userID int64, updatedAt time.Time, itemsUsed int) Payload {
	return Payload{
		"user_id":    userID,
		"updated_at": updatedAt.UTC().UnixNano(),
		"items_used": int64(itemsUsed),
	}
}
