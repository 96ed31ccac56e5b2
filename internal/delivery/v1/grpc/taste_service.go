package grpc

import (
	"context"

	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"google.golang.org/protobuf/types/known/structpb"
)

type TasteService struct {
	compatibilityUC  usecase.CompatibilityUC
	recommendationUC usecase.RecommendationUC
	embeddingUC      usecase.EmbeddingUC
	defaultLimit     int
	logger           logger.Logger
}

func NewTasteService(
	compatibilityUC usecase.CompatibilityUC,
	recommendationUC usecase.RecommendationUC,
	embeddingUC usecase.EmbeddingUC,
	defaultLimit int,
	logger logger.Logger,
) *TasteService {
	return &TasteService{
		compatibilityUC:  compatibilityUC,
		recommendationUC: recommendationUC,
		embeddingUC:      embeddingUC,
		defaultLimit:     defaultLimit,
		logger:           logger,
	}
}

// Compatibility: {user_id, other_user_id} -> {score, method}
func (g *TasteService) Compatibility(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Compatibility"

	userA, err := userIDField(req, "user_id")
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}
	userB, err := userIDField(req, "other_user_id")
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	res, err := g.compatibilityUC.Compatibility(ctx, userA, userB)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toStruct(op, map[string]any{
		"user_id":       userA,
		"other_user_id": userB,
		"score":         res.Score,
		"method":        string(res.Method),
	})
}

// Recommendations: {user_id, limit?} -> {recommendations: [...]}
func (g *TasteService) Recommendations(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.Recommendations"

	userID, err := userIDField(req, "user_id")
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}
	limit, err := intField(req, "limit", false)
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}
	if limit < 0 {
		return nil, GRPCErrorResponse(e.Wrap(op, e.ErrInvalidLimit))
	}
	if limit == 0 {
		limit = int64(g.defaultLimit)
	}

	recs, err := g.recommendationUC.GetRecommendations(ctx, userID, int(limit))
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toStruct(op, map[string]any{
		"user_id":         userID,
		"recommendations": toArrRecommendationValues(recs),
	})
}

// AggregateEmbedding: {user_id} -> {dimension, updated}
func (g *TasteService) AggregateEmbedding(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	const op = "grpc.AggregateEmbedding"

	userID, err := userIDField(req, "user_id")
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	vec, err := g.embeddingUC.AggregateEmbeddingFor(ctx, userID)
	if err != nil {
		g.logger.Errorf(e.Wrap(op, err), "%s", op)
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}

	return toStruct(op, map[string]any{
		"user_id":   userID,
		"dimension": len(vec),
		"updated":   vec != nil,
	})
}

func toStruct(op string, fields map[string]any) (*structpb.Struct, error) {
	res, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, GRPCErrorResponse(e.Wrap(op, err))
	}
	return res, nil
}

func toRecommendationValue(r domain.Recommendation) map[string]any {
	v := map[string]any{
		"item_type":  string(r.Item.Type),
		"similarity": r.Similarity,
		"source":     string(r.Source),
	}
	if r.Item.ID != 0 {
		v["item_id"] = r.Item.ID
	}
	if r.Title != "" {
		v["title"] = r.Title
	}
	if r.Artist != "" {
		v["artist"] = r.Artist
	}
	if r.Popularity != nil {
		v["popularity"] = *r.Popularity
	}
	return v
}

func toArrRecommendationValues(recs []domain.Recommendation) []any {
	res := make([]any, len(recs))
	for i, r := range recs {
		res[i] = toRecommendationValue(r)
	}
	return res
}
