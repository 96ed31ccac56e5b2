package kafka

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/jitter"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/jackc/pgx/v5"
)

const defaultOutboxBatch = 10

// OutboxWorker переносит события из outbox в Kafka. Новые события приходят через LISTEN/NOTIFY,
// при старте выгребаются остатки.
type OutboxWorker struct {
	repo      usecase.OutboxRepository
	logger    logger.Logger
	producer  usecase.MessageProducer
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
	dbConnStr string
	channel   string
	batchSize int
	backoff   *jitter.Backoff
}

func NewOutboxWorker(
	repo usecase.OutboxRepository,
	logger logger.Logger,
	producer usecase.MessageProducer,
	dbConnStr string,
	channel string,
	batchSize int,
) *OutboxWorker {
	if batchSize <= 0 {
		batchSize = defaultOutboxBatch
	}

	return &OutboxWorker{
		repo:      repo,
		logger:    logger,
		producer:  producer,
		stop:      make(chan struct{}),
		dbConnStr: dbConnStr,
		channel:   channel,
		batchSize: batchSize,
		backoff:   jitter.NewBackoff(2*time.Second, 30*time.Second, jitter.DefaultJitter),
	}
}

func (w *OutboxWorker) Start(ctx context.Context) {
	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		w.run(ctx)
	}()

	go func() {
		defer w.wg.Done()
		w.listenOutboxNotifications(ctx)
	}()
}

func (w *OutboxWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *OutboxWorker) run(ctx context.Context) {
	w.logger.Infof("Draining pending outbox events on startup...")
	w.drain(ctx)

	select {
	case <-ctx.Done():
	case <-w.stop:
	}
	w.logger.Infof("Outbox worker stopped")
}

func (w *OutboxWorker) drain(ctx context.Context) {
	for {
		hasMore, err := w.processBatch(ctx)
		if err != nil {
			w.logger.Warnf("Batch processing failed: %v", err)
			return
		}
		if !hasMore {
			return
		}
	}
}

func (w *OutboxWorker) listenOutboxNotifications(ctx context.Context) {
	var conn *pgx.Conn

	connect := func() error {
		c, err := pgx.Connect(ctx, w.dbConnStr)
		if err != nil {
			return e.Wrap("failed to connect for LISTEN", err)
		}

		if _, err := c.Exec(ctx, "LISTEN "+w.channel); err != nil {
			c.Close(ctx)
			return e.Wrap("failed to LISTEN", err)
		}

		conn = c
		w.logger.Infof("Subscribed to '%s' channel", w.channel)
		return nil
	}

	for attempt := 0; ; attempt++ {
		err := connect()
		if err == nil {
			break
		}
		w.logger.Warnf("LISTEN connect failed: %v", err)
		if w.wait(ctx, attempt) != nil {
			return
		}
	}
	defer func() { conn.Close(context.Background()) }()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		default:
		}

		waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		notif, err := conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				continue
			}
			w.logger.Warnf("Connection lost: %v. Reconnecting...", err)
			conn.Close(ctx)

			for attempt := 0; ; attempt++ {
				if w.wait(ctx, attempt) != nil {
					return
				}
				if err := connect(); err == nil {
					break
				}
				w.logger.Warnf("Reconnect failed, attempt %d", attempt+1)
			}
			// пока соединения не было, NOTIFY могли потеряться
			w.drain(ctx)
			continue
		}

		if notif != nil && notif.Channel == w.channel {
			w.logger.Debugf("Received outbox notification, draining outbox events")
			w.drain(ctx)
		}
	}
}

// wait ждёт паузу перед повтором; ошибка означает остановку воркера.
func (w *OutboxWorker) wait(ctx context.Context, attempt int) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-w.stop:
			cancel()
		case <-waitCtx.Done():
		}
	}()

	return w.backoff.Wait(waitCtx, attempt)
}

// processBatch публикует одну пачку. Неотправленные события остаются в processing
// и возвращаются в работу репозиторием после таймаута.
func (w *OutboxWorker) processBatch(ctx context.Context) (bool, error) {
	events, err := w.repo.GetAndMarkAsProcessing(ctx, w.batchSize)
	if err != nil {
		return false, err
	}

	if len(events) == 0 {
		return false, nil
	}

	failed := 0
	for _, event := range events {
		if err := w.processEvent(ctx, event); err != nil {
			failed++
			metrics.OutboxPublished.WithLabelValues("error").Inc()
			w.logger.Warnf("outbox publish failed. event_id: %s, error: %v", event.EventID, err)
			continue
		}
		metrics.OutboxPublished.WithLabelValues("ok").Inc()

		if err := w.repo.MarkAsProcessed(ctx, event.ID); err != nil {
			w.logger.Warnf("mark processed failed: %v", err)
		}
	}

	// вся пачка не ушла: Kafka недоступна, ждём следующего уведомления
	if failed == len(events) {
		return false, nil
	}

	return len(events) == w.batchSize, nil
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *usecase.OutboxEvent) error {
	if err := w.SendBytes(ctx, event.UserID, event.Payload); err != nil {
		if isRetryableError(err) {
			return e.Wrap("Temporary Kafka failure, will retry", err)
		}
		return e.Wrap("Permanent Kafka failure", err)
	}
	return nil
}

func (w *OutboxWorker) SendBytes(ctx context.Context, userID int64, payload []byte) error {
	return w.producer.WriteRawMessage(ctx, usecase.NewWriteRawMessageReq(userID, payload))
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	retryablePhrases := []string{
		"connection refused",
		"i/o timeout",
		"network is unreachable",
		"broker not available",
		"connection reset",
		"broken pipe",
		"no such host",
	}
	for _, phrase := range retryablePhrases {
		if strings.Contains(errStr, phrase) {
			return true
		}
	}
	return false
}
