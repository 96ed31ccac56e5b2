package minio

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/jitter"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/goccy/go-json"
)

const (
	reportContentType = "application/json"
	uploadAttempts    = 3
)

// ObjectRepository: бакет, в который складываются отчёты.
type ObjectRepository interface {
	Put(ctx context.Context, objectKey string, data []byte, contentType string) (*domain.ReportObject, error)
}

// ReportStore сериализует отчёт о пересчёте и загружает его с повторами.
type ReportStore struct {
	repo    ObjectRepository
	prefix  string
	backoff *jitter.Backoff
	logger  logger.Logger
}

func NewReportStore(repo ObjectRepository, cfg *cfg.MinIOCfg, logger logger.Logger) *ReportStore {
	return &ReportStore{
		repo:    repo,
		prefix:  cfg.ReportPrefix,
		backoff: jitter.NewBackoff(time.Second, 10*time.Second, jitter.DefaultJitter),
		logger:  logger,
	}
}

type reportModel struct {
	ID          string    `json:"id"`
	TriggeredBy string    `json:"triggered_by"`
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	Empty       int       `json:"empty"`
	Failed      int       `json:"failed"`
	FailedIDs   []int64   `json:"failed_ids,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// Upload кладёт отчёт в {prefix}/{yyyy}/{mm}/{dd}/{id}.json
func (s *ReportStore) Upload(ctx context.Context, report *domain.RefreshReport) (*domain.ReportObject, error) {
	const op = "ReportStore.Upload"

	data, err := json.Marshal(reportModel{
		ID:          report.ID,
		TriggeredBy: report.TriggeredBy,
		Total:       report.Total,
		Processed:   report.Processed,
		Empty:       report.Empty,
		Failed:      report.Failed,
		FailedIDs:   report.FailedIDs,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		DurationMs:  report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	})
	if err != nil {
		return nil, e.Wrap(op, err)
	}

	key := s.objectKey(report)
	for attempt := 0; ; attempt++ {
		obj, err := s.repo.Put(ctx, key, data, reportContentType)
		if err == nil {
			return obj, nil
		}
		if attempt+1 >= uploadAttempts {
			return nil, e.Wrap(op, err)
		}

		s.logger.Warnf("report upload failed, retrying. key: %s, attempt: %d, error: %v", key, attempt+1, err)
		if err := s.backoff.Wait(ctx, attempt); err != nil {
			return nil, e.Wrap(op, err)
		}
	}
}

func (s *ReportStore) objectKey(report *domain.RefreshReport) string {
	day := report.StartedAt.UTC()
	return path.Join(s.prefix, day.Format("2006/01/02"), fmt.Sprintf("%s.json", report.ID))
}
