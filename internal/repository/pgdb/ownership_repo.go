package pgdb

import (
	"context"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// OwnershipRepo читает коллекции пользователей из user_tracks, user_artists и user_albums.
type OwnershipRepo struct {
	pool *pgxpool.Pool
	conv converter.OwnershipConverter
}

func NewOwnershipRepo(pool *pgxpool.Pool, conv converter.OwnershipConverter) *OwnershipRepo {
	return &OwnershipRepo{pool: pool, conv: conv}
}

func (o *OwnershipRepo) ListOwned(ctx context.Context, userID int64) (*domain.Collection, error) {
	query := `
		SELECT 'track' AS item_type, track_id AS item_id, created_at FROM user_tracks WHERE user_id = $1
		UNION ALL
		SELECT 'artist', artist_id, created_at FROM user_artists WHERE user_id = $1
		UNION ALL
		SELECT 'album', album_id, created_at FROM user_albums WHERE user_id = $1
	`

	rows, err := o.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByName[converter.OwnedItemModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return o.conv.ToCollection(models), nil
}

// OwnedArtistNames возвращает имена артистов коллекции, сначала добавленные недавно.
// Артисты треков идут после явно добавленных артистов.
func (o *OwnershipRepo) OwnedArtistNames(ctx context.Context, userID int64, limit int) ([]string, error) {
	query := `
		SELECT name
		FROM (
			SELECT a.name, ua.created_at, 0 AS src
			FROM user_artists ua
			JOIN artists a ON a.id = ua.artist_id
			WHERE ua.user_id = $1
			UNION ALL
			SELECT t.artist, ut.created_at, 1
			FROM user_tracks ut
			JOIN tracks t ON t.id = ut.track_id
			WHERE ut.user_id = $1 AND t.artist IS NOT NULL AND t.artist <> ''
		) owned
		GROUP BY name
		ORDER BY MIN(src), MAX(created_at) DESC
		LIMIT $2
	`

	rows, err := o.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return names, nil
}
