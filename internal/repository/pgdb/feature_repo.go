package pgdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// catalogTable: таблица сущностей каталога и связанная с ней таблица признаков
type catalogTable struct {
	items    string
	features string
	fk       string
}

var catalogTables = map[domain.ItemType]catalogTable{
	domain.ItemTrack:  {items: "tracks", features: "track_features", fk: "track_id"},
	domain.ItemArtist: {items: "artists", features: "artist_features", fk: "artist_id"},
	domain.ItemAlbum:  {items: "albums", features: "album_features", fk: "album_id"},
}

func tableFor(t domain.ItemType) (catalogTable, error) {
	table, ok := catalogTables[t]
	if !ok {
		return catalogTable{}, fmt.Errorf("%w: %q", e.ErrUnsupportedCatalogType, t)
	}
	return table, nil
}

// FeatureRepo: read-only доступ к признакам каталога.
type FeatureRepo struct {
	pool *pgxpool.Pool
	conv converter.FeatureConverter
}

func NewFeatureRepo(pool *pgxpool.Pool, conv converter.FeatureConverter) *FeatureRepo {
	return &FeatureRepo{pool: pool, conv: conv}
}

// Get возвращает последнюю запись признаков элемента или e.ErrFeatureNotFound.
func (f *FeatureRepo) Get(ctx context.Context, item domain.ItemRef) (*domain.FeatureRecord, error) {
	table, err := tableFor(item.Type)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	query := fmt.Sprintf(`
		SELECT %[2]s, genre, mood, popularity, embedding::text
		FROM %[1]s
		WHERE %[2]s = $1
		ORDER BY updated_at DESC
		LIMIT 1
	`, table.features, table.fk)

	model := converter.FeatureModel{ItemType: string(item.Type)}
	err = f.pool.QueryRow(ctx, query, item.ID).Scan(
		&model.ItemID, &model.Genre, &model.Mood, &model.Popularity, &model.Embedding,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrFeatureNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	rec, err := f.conv.ToEntity(&model)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return rec, nil
}
