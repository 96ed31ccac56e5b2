package usecase

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/domain"
	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/DRSN-tech/taste-backend/pkg/vecmath"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// unchangedTolerance: максимальная покомпонентная разница, при которой вектор считается неизменным.
const unchangedTolerance = 1e-6

// EmbeddingUseCase собирает вкусовой эмбеддинг пользователя из признаков его коллекции.
type EmbeddingUseCase struct {
	userRepo      UserRepository
	ownershipRepo OwnershipRepository
	featureStore  FeatureStore
	userIndex     UserIndexRepository
	outboxRepo    OutboxRepository
	tx            Transactor
	policy        *WeightPolicy
	cfg           *cfg.EmbeddingCfg
	logger        logger.Logger

	group singleflight.Group
	now   func() time.Time
}

func NewEmbeddingUC(
	userRepo UserRepository,
	ownershipRepo OwnershipRepository,
	featureStore FeatureStore,
	userIndex UserIndexRepository,
	outboxRepo OutboxRepository,
	tx Transactor,
	policy *WeightPolicy,
	cfg *cfg.EmbeddingCfg,
	logger logger.Logger,
) (*EmbeddingUseCase, error) {
	if cfg.Dimension <= 0 {
		return nil, e.Wrap("NewEmbeddingUC", e.ErrInvalidDimension)
	}

	return &EmbeddingUseCase{
		userRepo:      userRepo,
		ownershipRepo: ownershipRepo,
		featureStore:  featureStore,
		userIndex:     userIndex,
		outboxRepo:    outboxRepo,
		tx:            tx,
		policy:        policy,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}, nil
}

// aggregation: результат одного пересчёта
type aggregation struct {
	vector    []float32
	itemsUsed int
}

// AggregateEmbeddingFor пересчитывает и сохраняет эмбеддинг пользователя.
// nil без ошибки - у пользователя нет ни одного элемента с признаками, сохранённый вектор не меняется.
// Параллельные вызовы для одного пользователя разделяют одно вычисление.
func (u *EmbeddingUseCase) AggregateEmbeddingFor(ctx context.Context, userID int64) ([]float32, error) {
	const op = "EmbeddingUseCase.AggregateEmbeddingFor"

	// общее вычисление не зависит от отмены первого вызова, его ограничивает ComputeTimeout
	detached := context.WithoutCancel(ctx)
	ch := u.group.DoChan(strconv.FormatInt(userID, 10), func() (any, error) {
		return u.aggregate(detached, userID)
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, e.Wrap(op, ctx.Err())
	}
	if res.Err != nil {
		return nil, e.Wrap(op, res.Err)
	}
	if res.Shared {
		u.logger.Debugf("embedding computation shared. user_id: %d", userID)
	}

	agg := res.Val.(*aggregation)
	if agg == nil || agg.vector == nil {
		return nil, nil
	}

	return append([]float32(nil), agg.vector...), nil
}

func (u *EmbeddingUseCase) aggregate(ctx context.Context, userID int64) (*aggregation, error) {
	start := u.now()
	defer func() { metrics.EmbeddingDuration.Observe(time.Since(start).Seconds()) }()

	if u.cfg.ComputeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.cfg.ComputeTimeout)
		defer cancel()
	}

	user, err := u.userRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, e.ErrUserNotFound) {
			return nil, err
		}
		u.logger.Errorf(err, "failed to load user, embedding left untouched. user_id: %d", userID)
		metrics.EmbeddingOutcomes.WithLabelValues("unavailable").Inc()
		return &aggregation{}, nil
	}

	collection, err := u.ownershipRepo.ListOwned(ctx, userID)
	if err != nil {
		u.logger.Warnf("failed to list owned items, treating collection as empty. user_id: %d, error: %v", userID, err)
		collection = &domain.Collection{}
	}

	weighted := u.collectWeighted(ctx, user, collection)

	avg, stats := vecmath.WeightedAverage(weighted)
	if stats.Skipped() > 0 {
		u.logger.Warnf("data quality: skipped vectors in weighted average. user_id: %d, dimension_mismatch: %d, invalid_weight: %d, empty: %d",
			userID, stats.DimensionMismatch, stats.InvalidWeight, stats.EmptyVector)
	}
	if avg == nil {
		u.logger.Infof("no feature embeddings for user, embedding left untouched. user_id: %d, owned: %d", userID, collection.Len())
		metrics.EmbeddingOutcomes.WithLabelValues("empty").Inc()
		return &aggregation{}, nil
	}

	normalized := vecmath.Normalize(avg)
	if !vecmath.IsValidEmbedding(normalized) {
		u.logger.Errorf(e.ErrInvalidVector, "data quality: aggregated embedding is invalid, not persisted. user_id: %d", userID)
		metrics.EmbeddingOutcomes.WithLabelValues("invalid").Inc()
		return &aggregation{}, nil
	}

	if sameVector(user.Embedding, normalized) {
		u.logger.Debugf("embedding unchanged, skipping write. user_id: %d", userID)
		metrics.EmbeddingOutcomes.WithLabelValues("unchanged").Inc()
		return &aggregation{vector: user.Embedding, itemsUsed: stats.Used}, nil
	}

	if err := u.persist(ctx, userID, normalized, stats.Used); err != nil {
		u.logger.Errorf(err, "failed to persist embedding. user_id: %d", userID)
		metrics.EmbeddingOutcomes.WithLabelValues("unavailable").Inc()
		return &aggregation{}, nil
	}

	metrics.EmbeddingOutcomes.WithLabelValues("updated").Inc()
	u.logger.Infof("embedding updated. user_id: %d, items_used: %d", userID, stats.Used)

	return &aggregation{vector: normalized, itemsUsed: stats.Used}, nil
}

// collectWeighted читает признаки всех элементов коллекции (и гимна) параллельно
// и превращает их во взвешенные векторы. Ошибка чтения одного элемента пропускает только его.
func (u *EmbeddingUseCase) collectWeighted(ctx context.Context, user *domain.User, collection *domain.Collection) []vecmath.Weighted {
	now := u.now()
	owned := collection.All()

	type job struct {
		item   domain.ItemRef
		owned  *domain.OwnedItem
		anthem bool
	}

	jobs := make([]job, 0, len(owned)+1)
	for i := range owned {
		if user.Anthem != nil && owned[i].Item == *user.Anthem {
			continue // гимн учитывается один раз, со своим весом
		}
		jobs = append(jobs, job{item: owned[i].Item, owned: &owned[i]})
	}
	if user.Anthem != nil {
		jobs = append(jobs, job{item: *user.Anthem, anthem: true})
	}

	results := make([]vecmath.Weighted, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, u.cfg.ReadConcurrency))

	for i, j := range jobs {
		g.Go(func() error {
			rec, ok := u.readFeature(gctx, user.ID, j.item)
			if !ok {
				return nil
			}

			weight := u.policy.AnthemWeight()
			if !j.anthem {
				weight = u.policy.Weight(*j.owned, rec.Popularity, now)
			}

			results[i] = vecmath.Weighted{Vector: rec.Embedding, Weight: weight}
			return nil
		})
	}
	_ = g.Wait()

	weighted := make([]vecmath.Weighted, 0, len(results))
	for _, w := range results {
		if w.Vector != nil {
			weighted = append(weighted, w)
		}
	}

	return weighted
}

// readFeature читает одну запись признаков с собственным таймаутом и проверяет вектор.
func (u *EmbeddingUseCase) readFeature(ctx context.Context, userID int64, item domain.ItemRef) (*domain.FeatureRecord, bool) {
	readCtx := ctx
	if u.cfg.FeatureReadTimeout > 0 {
		var cancel context.CancelFunc
		readCtx, cancel = context.WithTimeout(ctx, u.cfg.FeatureReadTimeout)
		defer cancel()
	}

	rec, err := u.featureStore.Get(readCtx, item)
	switch {
	case errors.Is(err, e.ErrFeatureNotFound):
		metrics.FeatureReads.WithLabelValues("missing").Inc()
		return nil, false
	case err != nil:
		metrics.FeatureReads.WithLabelValues("error").Inc()
		u.logger.Warnf("feature read failed, item skipped. user_id: %d, item: %s, error: %v", userID, item, err)
		return nil, false
	case rec == nil || rec.Embedding == nil:
		metrics.FeatureReads.WithLabelValues("missing").Inc()
		return nil, false
	}

	if len(rec.Embedding) != u.cfg.Dimension {
		metrics.FeatureReads.WithLabelValues("invalid").Inc()
		u.logger.Warnf("data quality: feature embedding dimension mismatch, item skipped. item: %s, got: %d, want: %d",
			item, len(rec.Embedding), u.cfg.Dimension)
		return nil, false
	}
	if !vecmath.IsValidEmbedding(rec.Embedding) {
		metrics.FeatureReads.WithLabelValues("invalid").Inc()
		u.logger.Warnf("data quality: invalid feature embedding, item skipped. item: %s", item)
		return nil, false
	}

	metrics.FeatureReads.WithLabelValues("ok").Inc()
	return rec, true
}

// persist атомарно перезаписывает вектор и пишет событие в outbox.
// Индекс похожих пользователей обновляется после коммита и не влияет на результат.
func (u *EmbeddingUseCase) persist(ctx context.Context, userID int64, vector []float32, itemsUsed int) error {
	const op = "EmbeddingUseCase.persist"

	var updatedAt time.Time
	err := u.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		updatedAt, err = u.userRepo.UpdateEmbedding(ctx, userID, vector)
		if err != nil {
			return err
		}

		eventID := uuid.NewString()
		payload, err := json.Marshal(EmbeddingUpdatedPayload{
			EventID:   eventID,
			UserID:    userID,
			UpdatedAt: updatedAt,
			Dimension: len(vector),
			ItemsUsed: itemsUsed,
		})
		if err != nil {
			return err
		}

		_, err = u.outboxRepo.Create(ctx, NewOutboxEvent(eventID, UserEmbeddingUpdated, userID, payload))
		return err
	})
	if err != nil {
		return e.Wrap(op, err)
	}

	point := domain.NewEmbedding(strconv.FormatInt(userID, 10), vector, domain.NewPayload(userID, updatedAt, itemsUsed))
	if err := u.userIndex.Upsert(ctx, []domain.Embedding{*point}); err != nil {
		u.logger.Warnf("failed to upsert user into similarity index. user_id: %d, error: %v", userID, err)
	}

	return nil
}

func sameVector(a, b []float32) bool {
	if len(a) == 0 || len(a) != len(b) {
		return false
	}
	for i := range a {
		d := a[i] - b[i]
		if d > unchangedTolerance || d < -unchangedTolerance {
			return false
		}
	}
	return true
}
