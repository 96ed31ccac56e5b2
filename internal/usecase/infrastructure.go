package usecase

import (
	"context"

	"github.com/DRSN-tech/taste-backend/internal/domain"
)

// SimilarArtistsClient: внешний сервис похожей музыки.
type SimilarArtistsClient interface {
	Recommend(ctx context.Context, seeds []string, limit int) ([]SimilarItem, error)
}

type MessageProducer interface {
	WriteRawMessage(ctx context.Context, req *WriteRawMessageReq) error
}

type ReportStore interface {
	Upload(ctx context.Context, report *domain.RefreshReport) (*domain.ReportObject, error)
}
