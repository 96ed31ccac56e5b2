package pgdb

import (
	"context"
	"fmt"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// scanColumns: колонки обхода каталога: id, title, artist, artist_id
var scanColumns = map[domain.ItemType]string{
	domain.ItemTrack:  "i.id, COALESCE(i.song_name, ''), COALESCE(i.artist, ''), i.artist_id",
	domain.ItemArtist: "i.id, COALESCE(i.name, ''), COALESCE(i.name, ''), i.id",
	domain.ItemAlbum:  "i.id, COALESCE(i.title, ''), COALESCE(i.artist, ''), i.artist_id",
}

// CatalogRepo читает каталог треков, артистов и альбомов вместе с признаками.
type CatalogRepo struct {
	pool *pgxpool.Pool
	conv converter.CatalogConverter
}

func NewCatalogRepo(pool *pgxpool.Pool, conv converter.CatalogConverter) *CatalogRepo {
	return &CatalogRepo{pool: pool, conv: conv}
}

// ScanEmbeddings читает страницу элементов с вектором признаков по возрастанию id (keyset).
func (c *CatalogRepo) ScanEmbeddings(ctx context.Context, itemType domain.ItemType, afterID int64, limit int) ([]usecase.CatalogVector, error) {
	table, err := tableFor(itemType)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (i.id) %[4]s, f.popularity, f.embedding::text
		FROM %[1]s i
		JOIN %[2]s f ON f.%[3]s = i.id
		WHERE i.id > $1 AND f.embedding IS NOT NULL
		ORDER BY i.id, f.updated_at DESC
		LIMIT $2
	`, table.items, table.features, table.fk, scanColumns[itemType])

	rows, err := c.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	defer rows.Close()

	result := make([]usecase.CatalogVector, 0, limit)
	for rows.Next() {
		model := converter.CatalogVectorModel{ItemType: string(itemType)}
		if err := rows.Scan(
			&model.ID, &model.Title, &model.Artist, &model.ArtistID, &model.Popularity, &model.Embedding,
		); err != nil {
			return nil, e.Wrap(whereami.WhereAmI(), err)
		}
		result = append(result, c.conv.ToCatalogVector(&model))
	}
	if err := rows.Err(); err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return result, nil
}

// RepresentativeTracks возвращает до perArtist самых популярных треков каждого артиста.
func (c *CatalogRepo) RepresentativeTracks(ctx context.Context, artistIDs []int64, perArtist int) ([]domain.Track, error) {
	if len(artistIDs) == 0 || perArtist <= 0 {
		return nil, nil
	}

	query := `
		SELECT id, title, artist_id, artist_name, popularity
		FROM (
			SELECT t.id,
			       COALESCE(t.song_name, '') AS title,
			       t.artist_id,
			       COALESCE(t.artist, '') AS artist_name,
			       f.popularity,
			       ROW_NUMBER() OVER (PARTITION BY t.artist_id ORDER BY f.popularity DESC NULLS LAST, t.id) AS rn
			FROM tracks t
			LEFT JOIN track_features f ON f.track_id = t.id
			WHERE t.artist_id = ANY($1)
		) ranked
		WHERE rn <= $2
		ORDER BY artist_id, rn
	`

	return c.queryTracks(ctx, query, artistIDs, perArtist)
}

// ResolveTracks сопоставляет пары артист/название с треками каталога без учёта регистра.
func (c *CatalogRepo) ResolveTracks(ctx context.Context, keys []usecase.TrackKey) (map[usecase.TrackKey]domain.Track, error) {
	if len(keys) == 0 {
		return map[usecase.TrackKey]domain.Track{}, nil
	}

	artists := make([]string, 0, len(keys))
	titles := make([]string, 0, len(keys))
	for _, k := range keys {
		artists = append(artists, k.Artist)
		titles = append(titles, k.Title)
	}

	query := `
		SELECT DISTINCT ON (lower(t.artist), lower(t.song_name))
		       t.id, COALESCE(t.song_name, ''), t.artist_id, COALESCE(t.artist, ''), f.popularity
		FROM tracks t
		LEFT JOIN track_features f ON f.track_id = t.id
		WHERE (lower(t.artist), lower(t.song_name)) IN (
			SELECT a, s FROM unnest($1::text[], $2::text[]) AS k(a, s)
		)
		ORDER BY lower(t.artist), lower(t.song_name), t.id
	`

	tracks, err := c.queryTracks(ctx, query, artists, titles)
	if err != nil {
		return nil, err
	}

	result := make(map[usecase.TrackKey]domain.Track, len(tracks))
	for _, t := range tracks {
		result[usecase.NewTrackKey(t.ArtistName, t.Title)] = t
	}

	return result, nil
}

// ResolveArtists ищет артистов по имени без учёта регистра. Ключ результата - имя в нижнем регистре.
func (c *CatalogRepo) ResolveArtists(ctx context.Context, names []string) (map[string]domain.Artist, error) {
	result := make(map[string]domain.Artist, len(names))
	if len(names) == 0 {
		return result, nil
	}

	query := `
		SELECT DISTINCT ON (lower(a.name)) a.id, a.name, f.popularity
		FROM artists a
		LEFT JOIN artist_features f ON f.artist_id = a.id
		WHERE lower(a.name) = ANY($1)
		ORDER BY lower(a.name), a.id
	`

	rows, err := c.pool.Query(ctx, query, names)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByPos[converter.ArtistModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	for i := range models {
		artist := c.conv.ToArtist(&models[i])
		result[usecase.NewTrackKey(artist.Name, "").Artist] = artist
	}

	return result, nil
}

// PopularTracks возвращает самые популярные треки, которых нет в коллекции пользователя.
func (c *CatalogRepo) PopularTracks(ctx context.Context, excludeOwnedBy int64, limit int) ([]domain.Track, error) {
	query := `
		SELECT t.id, COALESCE(t.song_name, ''), t.artist_id, COALESCE(t.artist, ''), f.popularity
		FROM tracks t
		JOIN track_features f ON f.track_id = t.id
		WHERE f.popularity IS NOT NULL
		  AND NOT EXISTS (
			SELECT 1 FROM user_tracks ut WHERE ut.user_id = $1 AND ut.track_id = t.id
		  )
		ORDER BY f.popularity DESC, t.id
		LIMIT $2
	`

	return c.queryTracks(ctx, query, excludeOwnedBy, limit)
}

func (c *CatalogRepo) queryTracks(ctx context.Context, query string, args ...any) ([]domain.Track, error) {
	rows, err := c.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	models, err := pgx.CollectRows(rows, pgx.RowToStructByPos[converter.TrackModel])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	tracks := make([]domain.Track, 0, len(models))
	for i := range models {
		tracks = append(tracks, c.conv.ToTrack(&models[i]))
	}

	return tracks, nil
}
