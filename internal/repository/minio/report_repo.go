package minio

import (
	"bytes"
	"context"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/jimlawless/whereami"
	"github.com/minio/minio-go/v7"
)

// ReportRepo хранит отчёты о пересчёте эмбеддингов в MinIO.
type ReportRepo struct {
	mc  *minio.Client
	cfg *cfg.MinIOCfg
}

func NewReportRepo(mc *minio.Client, cfg *cfg.MinIOCfg) *ReportRepo {
	return &ReportRepo{
		mc:  mc,
		cfg: cfg,
	}
}

// Put загружает объект в бакет отчётов.
func (r *ReportRepo) Put(ctx context.Context, objectKey string, data []byte, contentType string) (*domain.ReportObject, error) {
	info, err := r.mc.PutObject(ctx, r.cfg.BucketName, objectKey, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return domain.NewReportObject(info.Bucket, info.Key, info.Size, contentType), nil
}
