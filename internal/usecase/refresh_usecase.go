package usecase

import (
	"context"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/google/uuid"
)

// RefreshUseCase пересчитывает эмбеддинги пачкой или для всех пользователей.
type RefreshUseCase struct {
	userRepo    UserRepository
	embeddingUC EmbeddingUC
	reportStore ReportStore
	cfg         *cfg.RefreshCfg
	maxUsers    int
	logger      logger.Logger
	now         func() time.Time
}

func NewRefreshUC(
	userRepo UserRepository,
	embeddingUC EmbeddingUC,
	reportStore ReportStore,
	cfg *cfg.RefreshCfg,
	maxUsers int,
	logger logger.Logger,
) *RefreshUseCase {
	return &RefreshUseCase{
		userRepo:    userRepo,
		embeddingUC: embeddingUC,
		reportStore: reportStore,
		cfg:         cfg,
		maxUsers:    maxUsers,
		logger:      logger,
		now:         time.Now,
	}
}

// RefreshUsers пересчитывает эмбеддинги перечисленных пользователей. Повторяющиеся id считаются один раз.
func (r *RefreshUseCase) RefreshUsers(ctx context.Context, userIDs []int64) (*domain.RefreshReport, error) {
	const op = "RefreshUseCase.RefreshUsers"

	if len(userIDs) == 0 {
		return nil, e.Wrap(op, e.ErrStatusBadRequest)
	}
	if r.maxUsers > 0 && len(userIDs) > r.maxUsers {
		return nil, e.Wrap(op, e.ErrTooManyUsers)
	}

	seen := make(map[int64]struct{}, len(userIDs))
	ids := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		if id <= 0 {
			return nil, e.Wrap(op, e.ErrInvalidUserID)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	report := r.newReport("request")
	report.Total = len(ids)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, e.Wrap(op, err)
		}
		r.refreshOne(ctx, id, report)
	}

	return r.finish(ctx, report), nil
}

// RefreshAll проходит всех пользователей страницами по cfg.BatchSize.
func (r *RefreshUseCase) RefreshAll(ctx context.Context) (*domain.RefreshReport, error) {
	const op = "RefreshUseCase.RefreshAll"

	report := r.newReport("schedule")
	batchSize := max(1, r.cfg.BatchSize)

	var afterID int64
	for {
		if err := ctx.Err(); err != nil {
			return nil, e.Wrap(op, err)
		}

		ids, err := r.userRepo.ListIDs(ctx, afterID, batchSize)
		if err != nil {
			return nil, e.Wrap(op, err)
		}

		for _, id := range ids {
			report.Total++
			r.refreshOne(ctx, id, report)
			afterID = id
		}

		r.logger.Infof("refresh progress: %d users (%d processed, %d empty, %d failed)",
			report.Total, report.Processed, report.Empty, report.Failed)

		if len(ids) < batchSize {
			break
		}
	}

	return r.finish(ctx, report), nil
}

func (r *RefreshUseCase) refreshOne(ctx context.Context, userID int64, report *domain.RefreshReport) {
	vec, err := r.embeddingUC.AggregateEmbeddingFor(ctx, userID)
	switch {
	case err != nil:
		r.logger.Warnf("embedding refresh failed. user_id: %d, error: %v", userID, err)
		report.Failed++
		report.FailedIDs = append(report.FailedIDs, userID)
		metrics.RefreshUsers.WithLabelValues("failed").Inc()
	case vec == nil:
		report.Empty++
		metrics.RefreshUsers.WithLabelValues("empty").Inc()
	default:
		report.Processed++
		metrics.RefreshUsers.WithLabelValues("processed").Inc()
	}
}

func (r *RefreshUseCase) newReport(trigger string) *domain.RefreshReport {
	return &domain.RefreshReport{
		ID:          uuid.NewString(),
		StartedAt:   r.now().UTC(),
		TriggeredBy: trigger,
	}
}

// finish закрывает отчёт и сохраняет его в хранилище отчётов, если оно настроено.
func (r *RefreshUseCase) finish(ctx context.Context, report *domain.RefreshReport) *domain.RefreshReport {
	report.FinishedAt = r.now().UTC()

	if r.reportStore == nil {
		return report
	}

	obj, err := r.reportStore.Upload(ctx, report)
	if err != nil {
		r.logger.Warnf("failed to upload refresh report. report_id: %s, error: %v", report.ID, err)
		return report
	}

	r.logger.Infof("refresh report stored. bucket: %s, key: %s", obj.Bucket, obj.ObjectKey)
	return report
}
