package usecase

import (
	"strings"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/domain"
)

// CATALOG

// CatalogVector: строка потокового обхода каталога
type CatalogVector struct {
	Item       domain.ItemRef
	Title      string
	Artist     string
	ArtistID   *int64
	Popularity *int
	Embedding  []float32 // nil, если вектор в хранилище повреждён
}

// TrackKey: ключ сопоставления внешнего результата с треком каталога
type TrackKey struct {
	Artist string
	Title  string
}

// NewTrackKey нормализует регистр и пробелы
func NewTrackKey(artist, title string) TrackKey {
	return TrackKey{
		Artist: strings.ToLower(strings.TrimSpace(artist)),
		Title:  strings.ToLower(strings.TrimSpace(title)),
	}
}

// INFRASTRUCTURE

// SimilarItem: результат внешнего поиска. Title пуст, если найден только артист.
type SimilarItem struct {
	Artist string
	Title  string
}

type WriteRawMessageReq struct {
	UserID  int64
	Payload []byte
}

func NewWriteRawMessageReq(userID int64, payload []byte) *WriteRawMessageReq {
	return &WriteRawMessageReq{
		UserID:  userID,
		Payload: payload,
	}
}

// OUTBOX

type OutboxStatus string

const (
	Pending    OutboxStatus = "pending"
	Processing OutboxStatus = "processing"
	Processed  OutboxStatus = "processed"
)

type OutboxEventType string

const (
	UserEmbeddingUpdated OutboxEventType = "user_embedding_updated"
)

// OutboxEvent: событие, записанное в одной транзакции с изменением данных
type OutboxEvent struct {
	ID          int64
	EventID     string
	EventType   OutboxEventType
	UserID      int64
	Payload     []byte
	Status      OutboxStatus
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

func NewOutboxEvent(eventID string, eventType OutboxEventType, userID int64, payload []byte) *OutboxEvent {
	return &OutboxEvent{
		EventID:   eventID,
		EventType: eventType,
		UserID:    userID,
		Payload:   payload,
		Status:    Pending,
		CreatedAt: time.Now().UTC(),
	}
}

// EmbeddingUpdatedPayload: тело события user_embedding_updated
type EmbeddingUpdatedPayload struct {
	EventID   string    `json:"event_id"`
	UserID    int64     `json:"user_id"`
	UpdatedAt time.Time `json:"updated_at"`
	Dimension int       `json:"dimension"`
	ItemsUsed int       `json:"items_used"`
}

// OwnershipChangedEvent: событие изменения коллекции пользователя
type OwnershipChangedEvent struct {
	UserID   int64           `json:"user_id"`
	ItemType domain.ItemType `json:"item_type"`
	ItemID   int64           `json:"item_id"`
	Action   string          `json:"action"` // added / removed
}
