package converter

import "time"

// UserModel представляет строку таблицы users. Embedding - текстовое представление pgvector.
type UserModel struct {
	ID         int64     `db:"id"`
	Name       string    `db:"display_name"`
	Embedding  *string   `db:"embedding"`
	AnthemType *string   `db:"anthem_type"`
	AnthemID   *int64    `db:"anthem_id"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// OwnedItemModel: строка одной из таблиц user_tracks / user_artists / user_albums.
type OwnedItemModel struct {
	ItemType  string    `db:"item_type"`
	ItemID    int64     `db:"item_id"`
	CreatedAt time.Time `db:"created_at"`
}

// FeatureModel: строка одной из таблиц *_features.
type FeatureModel struct {
	ItemType   string  `db:"-"`
	ItemID     int64   `db:"item_id"`
	Genre      *string `db:"genre"`
	Mood       *string `db:"mood"`
	Popularity *int32  `db:"popularity"`
	Embedding  *string `db:"embedding"`
}

// CatalogVectorModel: строка обхода каталога вместе с вектором признаков.
type CatalogVectorModel struct {
	ItemType   string  `db:"-"`
	ID         int64   `db:"id"`
	Title      string  `db:"title"`
	Artist     string  `db:"artist"`
	ArtistID   *int64  `db:"artist_id"`
	Popularity *int32  `db:"popularity"`
	Embedding  *string `db:"embedding"`
}

// TrackModel: трек каталога с популярностью из track_features.
type TrackModel struct {
	ID         int64  `db:"id"`
	Title      string `db:"title"`
	ArtistID   *int64 `db:"artist_id"`
	ArtistName string `db:"artist_name"`
	Popularity *int32 `db:"popularity"`
}

type ArtistModel struct {
	ID         int64  `db:"id"`
	Name       string `db:"name"`
	Popularity *int32 `db:"popularity"`
}

// OutboxEventModel представляет запись таблицы outbox_events.
type OutboxEventModel struct {
	ID          int64      `db:"id"`
	EventID     string     `db:"event_id"`
	EventType   string     `db:"event_type"`
	UserID      int64      `db:"user_id"`
	Payload     []byte     `db:"payload"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	ProcessedAt *time.Time `db:"processed_at"`
}
