package qdrant

import (
	"context"
	"strconv"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/qdrant/go-client/qdrant"
)

// UserIndexRepo: индекс пользовательских эмбеддингов в Qdrant. Id точки совпадает с id пользователя.
type UserIndexRepo struct {
	client *qdrant.Client
	cfg    *cfg.QdrantCfg
}

func NewUserIndexRepo(client *qdrant.Client, cfg *cfg.QdrantCfg) *UserIndexRepo {
	return &UserIndexRepo{client: client, cfg: cfg}
}

// Upsert сохраняет или обновляет точки пользователей.
func (q *UserIndexRepo) Upsert(ctx context.Context, vectors []domain.Embedding) error {
	if len(vectors) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(vectors))
	for _, vector := range vectors {
		points = append(points, &qdrant.PointStruct{
			Id:      pointID(vector.ID),
			Vectors: qdrant.NewVectors(vector.Vector...),
			Payload: qdrant.NewValueMap(vector.Payload),
		})
	}

	wait := true
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Points:         points,
		Wait:           &wait,
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	return nil
}

// Search возвращает до limit ближайших точек с косинусной близостью не ниже threshold.
func (q *UserIndexRepo) Search(ctx context.Context, vector []float32, limit int, threshold float64) ([]domain.ScoredPoint, error) {
	lim := uint64(max(limit, 1))
	thr := float32(threshold)

	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.cfg.QdrantCollectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &lim,
		ScoreThreshold: &thr,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return toScoredPoints(points), nil
}

// pointID: числовой id для id пользователя, иначе UUID.
func pointID(id string) *qdrant.PointId {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return qdrant.NewIDNum(n)
	}
	return qdrant.NewIDUUID(id)
}

// toScoredPoints пропускает точки без числового id: в индекс пишутся только пользователи.
func toScoredPoints(points []*qdrant.ScoredPoint) []domain.ScoredPoint {
	out := make([]domain.ScoredPoint, 0, len(points))
	for _, p := range points {
		if p == nil || p.GetId() == nil {
			continue
		}
		num, ok := p.GetId().GetPointIdOptions().(*qdrant.PointId_Num)
		if !ok {
			continue
		}
		out = append(out, domain.ScoredPoint{ID: num.Num, Score: p.GetScore()})
	}
	return out
}
