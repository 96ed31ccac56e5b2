package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	config "github.com/DRSN-tech/taste-backend/internal/cfg"
	v1Grpc "github.com/DRSN-tech/taste-backend/internal/delivery/v1/grpc"
	v1Http "github.com/DRSN-tech/taste-backend/internal/delivery/v1/http"
	"github.com/DRSN-tech/taste-backend/internal/infrastructure/catalogsearch"
	"github.com/DRSN-tech/taste-backend/internal/infrastructure/kafka"
	minioInfra "github.com/DRSN-tech/taste-backend/internal/infrastructure/minio"
	s3Repo "github.com/DRSN-tech/taste-backend/internal/repository/minio"
	"github.com/DRSN-tech/taste-backend/internal/repository/pgdb"
	pgdbConv "github.com/DRSN-tech/taste-backend/internal/repository/pgdb/converter"
	qdrantRepo "github.com/DRSN-tech/taste-backend/internal/repository/qdrant"
	"github.com/DRSN-tech/taste-backend/internal/repository/redis"
	redisConv "github.com/DRSN-tech/taste-backend/internal/repository/redis/converter"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/clients"
	"github.com/DRSN-tech/taste-backend/pkg/closer"
	"github.com/DRSN-tech/taste-backend/pkg/debounce"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/DRSN-tech/taste-backend/pkg/postgres"
	"github.com/DRSN-tech/taste-backend/pkg/tr"
	"github.com/go-chi/chi/v5"
	"github.com/jimlawless/whereami"
	"github.com/robfig/cron/v3"
)

const (
	initTimeout     = 10 * time.Second
	shutdownTimeout = 15 * time.Second
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	closer *closer.Closer

	db        *postgres.PgDatabase
	httpSrv   *v1Http.Server
	grpcSrv   *v1Grpc.GRPCServer
	outbox    *kafka.OutboxWorker
	consumer  *kafka.OwnershipConsumer
	debouncer *debounce.Debouncer
	scheduler *cron.Cron
	refreshUC usecase.RefreshUC
}

// NewApp подключает хранилища и собирает зависимости. При ошибке уже открытые ресурсы закрываются.
func NewApp(cfg *config.Config, logger logger.Logger) (app *App, err error) {
	a := &App{
		cfg:    cfg,
		logger: logger,
		closer: closer.NewCloser(5 * time.Second),
	}
	defer func() {
		if err != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if cerr := a.closer.Close(ctx); cerr != nil {
				logger.Warnf("cleanup after failed init: %v", cerr)
			}
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()

	db, err := initPGDB(ctx, logger, cfg)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.db = db
	a.closer.AddFunc("postgres", db.Close)

	txManager := tr.NewManager(db.Pool)
	userRepo := pgdb.NewUserRepo(db.Pool, pgdbConv.UserConverterImpl{})
	ownershipRepo := pgdb.NewOwnershipRepo(db.Pool, pgdbConv.OwnershipConverterImpl{})
	featureRepo := pgdb.NewFeatureRepo(db.Pool, pgdbConv.FeatureConverterImpl{})
	catalogRepo := pgdb.NewCatalogRepo(db.Pool, pgdbConv.CatalogConverterImpl{})
	outboxRepo := pgdb.NewOutboxEventRepo(db.Pool, pgdbConv.OutboxEventConverterImpl{})

	redisClient := clients.NewRedisClient(cfg.Redis)
	a.closer.Add("redis", func(context.Context) error { return redisClient.Close() })
	if err := redisClient.Ping(ctx); err != nil {
		logger.Errorf(err, "failed to connect to redis")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	cacheRepo := redis.NewCacheRepo(redisClient, redisConv.CacheConverterImpl{}, logger)

	qdrantClient, err := clients.NewQdrantClient(cfg.Qdrant)
	if err != nil {
		logger.Errorf(err, "failed to initialize qdrant")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("qdrant", func(context.Context) error { return qdrantClient.Close() })
	if err := qdrantClient.EnsureCollection(ctx); err != nil {
		logger.Errorf(err, "failed to initialize qdrant collection")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	userIndex := qdrantRepo.NewUserIndexRepo(qdrantClient.Client, cfg.Qdrant)

	reportStore := initReportStore(ctx, logger, cfg)

	producer, err := kafka.NewProducer(logger, cfg.Kafka)
	if err != nil {
		logger.Errorf(err, "failed to initialize kafka producer")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}
	a.closer.Add("kafka producer", func(context.Context) error { return producer.Close() })
	if err := producer.EnsureTopic(cfg.Kafka.EmbeddingTopic, 5*time.Second); err != nil {
		logger.Warnf("failed to ensure kafka topic %s: %v", cfg.Kafka.EmbeddingTopic, err)
	}

	policy, err := usecase.NewWeightPolicy(cfg.Embedding)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	embeddingUC, err := usecase.NewEmbeddingUC(
		userRepo,
		ownershipRepo,
		featureRepo,
		userIndex,
		outboxRepo,
		txManager,
		policy,
		cfg.Embedding,
		logger,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	compatibilityUC, err := usecase.NewCompatibilityUC(
		userRepo,
		ownershipRepo,
		featureRepo,
		embeddingUC,
		cacheRepo,
		cfg.Compatibility,
		cfg.Cache,
		logger,
	)
	if err != nil {
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	recommendationUC := usecase.NewRecommendationUC(
		userRepo,
		ownershipRepo,
		catalogRepo,
		catalogsearch.NewClient(cfg.External, logger),
		embeddingUC,
		cacheRepo,
		cfg.Recommend,
		cfg.Cache,
		logger,
	)

	similarUsersUC := usecase.NewSimilarUsersUC(userRepo, userIndex, embeddingUC, cfg.Compatibility, logger)
	a.refreshUC = usecase.NewRefreshUC(userRepo, embeddingUC, reportStore, cfg.Refresh, cfg.Compatibility.MaxRefreshSize, logger)

	a.debouncer = debounce.New(cfg.Refresh.DebounceQuiet, cfg.Refresh.DebounceMaxWait, func(ctx context.Context, userID int64) {
		if _, err := embeddingUC.AggregateEmbeddingFor(ctx, userID); err != nil {
			logger.Warnf("debounced embedding recompute failed. user_id: %d, error: %v", userID, err)
		}
	})
	a.closer.Add("debouncer", a.debouncer.Stop)

	a.consumer = kafka.NewOwnershipConsumer(cfg.Kafka, a.debouncer, logger)
	a.outbox = kafka.NewOutboxWorker(outboxRepo, logger, producer, db.Dsn, pgdb.OutboxNotifyChannel, cfg.Kafka.OutboxBatchSize)

	a.grpcSrv = v1Grpc.NewGRPCServer(cfg.Grpc, logger)
	a.grpcSrv.RegisterServices(v1Grpc.NewTasteService(compatibilityUC, recommendationUC, embeddingUC, cfg.Recommend.DefaultLimit, logger))

	r := chi.NewRouter()
	v1Http.NewRouter(r, logger).Init(v1Http.NewTasteHandler(
		compatibilityUC,
		recommendationUC,
		embeddingUC,
		similarUsersUC,
		a.refreshUC,
		cfg.Recommend.DefaultLimit,
		logger,
	))
	a.httpSrv = v1Http.NewServer(r, cfg.Http, logger)

	return a, nil
}

// Run запускает серверы и фоновые воркеры и блокируется до сигнала или фатальной ошибки сервера.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.outbox.Start(ctx)
	a.closer.AddFunc("outbox worker", a.outbox.Stop)

	a.consumer.Start(ctx)
	// консьюмер останавливается раньше дебаунсера: LIFO
	a.closer.Add("ownership consumer", func(context.Context) error { return a.consumer.Stop() })

	if err := a.startScheduler(ctx); err != nil {
		a.logger.Errorf(err, "failed to schedule embedding refresh")
		a.shutdown()
		return err
	}

	grpcErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("gRPC server starting on %s:%s", a.cfg.Grpc.NetworkMode, a.cfg.Grpc.Port)
		if err := a.grpcSrv.Start(); err != nil {
			grpcErrCh <- err
		}
	}()
	a.closer.Add("grpc server", a.grpcSrv.Stop)

	httpErrCh := make(chan error, 1)
	go func() {
		a.logger.Infof("HTTP server started on port %s", a.cfg.Http.Port)
		if err := a.httpSrv.Run(); err != nil {
			httpErrCh <- err
		}
	}()
	a.closer.Add("http server", a.httpSrv.Stop)

	var appErr error
	select {
	case appErr = <-httpErrCh:
		a.logger.Errorf(appErr, "HTTP server fatal error")
	case appErr = <-grpcErrCh:
		a.logger.Errorf(appErr, "gRPC server fatal error")
	case <-ctx.Done():
		a.logger.Infof("Received shutdown signal, stopping gracefully...")
	}

	stop()
	a.shutdown()
	return appErr
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.closer.Close(ctx); err != nil {
		a.logger.Errorf(err, "shutdown finished with errors")
		return
	}
	a.logger.Infof("Application shutdown complete")
}

// startScheduler ставит полный пересчёт эмбеддингов по cron. Пустое расписание отключает пересчёт.
func (a *App) startScheduler(ctx context.Context) error {
	if a.cfg.Refresh.Schedule == "" {
		a.logger.Infof("scheduled embedding refresh is disabled")
		return nil
	}

	cronLog := newCronLogger(a.logger)
	a.scheduler = cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	_, err := a.scheduler.AddFunc(a.cfg.Refresh.Schedule, func() {
		report, err := a.refreshUC.RefreshAll(ctx)
		if err != nil {
			a.logger.Warnf("scheduled embedding refresh failed: %v", err)
			return
		}
		a.logger.Infof("scheduled embedding refresh done. report_id: %s, total: %d, processed: %d, empty: %d, failed: %d",
			report.ID, report.Total, report.Processed, report.Empty, report.Failed)
	})
	if err != nil {
		return e.Wrap(whereami.WhereAmI(), err)
	}

	a.scheduler.Start()
	a.closer.Add("scheduler", func(ctx context.Context) error {
		select {
		case <-a.scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	a.logger.Infof("embedding refresh scheduled: %s", a.cfg.Refresh.Schedule)

	return nil
}

func initPGDB(ctx context.Context, logger logger.Logger, cfg *config.Config) (*postgres.PgDatabase, error) {
	db, err := postgres.Connect(ctx, cfg.Db)
	if err != nil {
		logger.Errorf(err, "failed to connect to database")
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	if err := db.RunMigrations(postgres.DefaultMigrationsURL, logger); err != nil {
		logger.Errorf(err, "failed to run migrations")
		db.Close()
		return nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return db, nil
}

// initReportStore возвращает nil, если MinIO недоступен: пересчёт работает и без сохранения отчётов.
func initReportStore(ctx context.Context, logger logger.Logger, cfg *config.Config) usecase.ReportStore {
	minioClient, err := clients.NewMinIOClient(cfg.Minio)
	if err != nil {
		logger.Warnf("minio client is not available, refresh reports are disabled: %v", err)
		return nil
	}

	if err := clients.EnsureBucket(ctx, minioClient, cfg.Minio.BucketName); err != nil {
		logger.Warnf("minio bucket %s is not available, refresh reports are disabled: %v", cfg.Minio.BucketName, err)
		return nil
	}

	return minioInfra.NewReportStore(s3Repo.NewReportRepo(minioClient, cfg.Minio), cfg.Minio, logger)
}
