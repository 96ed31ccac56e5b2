package pgdb

import (
	"context"
	"errors"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/repository/pgdb/converter"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/tr"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jimlawless/whereami"
)

// UserRepo хранит пользователей и их вкусовые эмбеддинги в PostgreSQL (pgvector).
type UserRepo struct {
	pool *pgxpool.Pool
	conv converter.UserConverter
}

func NewUserRepo(pool *pgxpool.Pool, conv converter.UserConverter) *UserRepo {
	return &UserRepo{pool: pool, conv: conv}
}

func (u *UserRepo) Get(ctx context.Context, id int64) (*domain.User, error) {
	query := `
		SELECT id, COALESCE(display_name, ''), embedding::text, anthem_type, anthem_id, updated_at
		FROM users
		WHERE id = $1
	`

	var model converter.UserModel
	err := conn(ctx, u.pool).QueryRow(ctx, query, id).Scan(
		&model.ID, &model.Name, &model.Embedding, &model.AnthemType, &model.AnthemID, &model.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, e.ErrUserNotFound
		}
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return u.conv.ToEntity(&model), nil
}

// UpdateEmbedding перезаписывает вектор целиком. Вызывается внутри транзакции.
func (u *UserRepo) UpdateEmbedding(ctx context.Context, id int64, embedding []float32) (time.Time, error) {
	tx, err := tr.TxFromCtx(ctx)
	if err != nil {
		return time.Time{}, e.Wrap(whereami.WhereAmI(), err)
	}

	encoded, err := converter.EncodeEmbedding(embedding)
	if err != nil {
		return time.Time{}, e.Wrap(whereami.WhereAmI(), err)
	}

	query := `
		UPDATE users
		SET embedding = $2::vector, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING updated_at
	`

	var updatedAt time.Time
	if err := tx.QueryRow(ctx, query, id, encoded).Scan(&updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, e.ErrUserNotFound
		}
		return time.Time{}, e.Wrap(whereami.WhereAmI(), err)
	}

	return converter.ConvertTime(updatedAt), nil
}

// ListIDs возвращает страницу идентификаторов пользователей с id > afterID.
func (u *UserRepo) ListIDs(ctx context.Context, afterID int64, limit int) ([]int64, error) {
	query := `SELECT id FROM users WHERE id > $1 ORDER BY id LIMIT $2`

	rows, err := u.pool.Query(ctx, query, afterID, limit)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return ids, nil
}
