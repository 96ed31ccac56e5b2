package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/DRSN-tech/taste-backend/internal/cfg"
	"github.com/DRSN-tech/taste-backend/internal/metrics"
	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/e"
	"github.com/DRSN-tech/taste-backend/pkg/jitter"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

const (
	ActionAdded   = "added"
	ActionRemoved = "removed"
)

// messageReader: часть kafka.Reader, которой пользуется консьюмер.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecomputeScheduler откладывает пересчёт эмбеддинга пользователя.
type RecomputeScheduler interface {
	Trigger(userID int64) bool
}

// OwnershipConsumer читает изменения коллекций и планирует пересчёт эмбеддингов.
// Офсет коммитится после планирования: пересчёт идемпотентен, повтор безопасен.
type OwnershipConsumer struct {
	reader    messageReader
	scheduler RecomputeScheduler
	logger    logger.Logger
	backoff   *jitter.Backoff
	wg        sync.WaitGroup
}

func NewOwnershipConsumer(cfg *cfg.KafkaCfg, scheduler RecomputeScheduler, logger logger.Logger) *OwnershipConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          cfg.OwnershipTopic,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		MaxWait:        time.Second,
		CommitInterval: 0,
	})

	return newOwnershipConsumer(reader, scheduler, logger)
}

func newOwnershipConsumer(reader messageReader, scheduler RecomputeScheduler, logger logger.Logger) *OwnershipConsumer {
	return &OwnershipConsumer{
		reader:    reader,
		scheduler: scheduler,
		logger:    logger,
		backoff:   jitter.NewBackoff(500*time.Millisecond, 15*time.Second, jitter.DefaultJitter),
	}
}

func (c *OwnershipConsumer) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(ctx)
	}()
}

// Stop закрывает reader и ждёт завершения цикла чтения. ctx запуска должен быть уже отменён.
func (c *OwnershipConsumer) Stop() error {
	err := c.reader.Close()
	c.wg.Wait()
	return err
}

func (c *OwnershipConsumer) run(ctx context.Context) {
	c.logger.Infof("Ownership consumer started")
	failures := 0

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Infof("Ownership consumer stopped")
				return
			}
			c.logger.Warnf("Kafka fetch failed: %v", err)
			if c.backoff.Wait(ctx, failures) != nil {
				return
			}
			failures++
			continue
		}
		failures = 0

		c.handle(msg)

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Warnf("Kafka commit failed. partition: %d, offset: %d, error: %v", msg.Partition, msg.Offset, err)
		}
	}
}

func (c *OwnershipConsumer) handle(msg kafka.Message) {
	event, err := decodeOwnershipEvent(msg.Value)
	if err != nil {
		metrics.OwnershipEvents.WithLabelValues("malformed").Inc()
		c.logger.Warnf("skipping malformed ownership event. partition: %d, offset: %d, error: %v",
			msg.Partition, msg.Offset, err)
		return
	}

	if !c.scheduler.Trigger(event.UserID) {
		metrics.OwnershipEvents.WithLabelValues("dropped").Inc()
		c.logger.Warnf("recompute scheduler is stopped, dropping event for user %d", event.UserID)
		return
	}

	metrics.OwnershipEvents.WithLabelValues("scheduled").Inc()
	c.logger.Debugf("embedding recompute scheduled. user_id: %d, item: %s:%d, action: %s",
		event.UserID, event.ItemType, event.ItemID, event.Action)
}

func decodeOwnershipEvent(data []byte) (*usecase.OwnershipChangedEvent, error) {
	var event usecase.OwnershipChangedEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("%w: %w", e.ErrEventPayload, err)
	}

	if event.UserID <= 0 {
		return nil, fmt.Errorf("%w: %w", e.ErrEventPayload, e.ErrInvalidUserID)
	}
	if event.ItemType != "" && !event.ItemType.Valid() {
		return nil, fmt.Errorf("%w: %w %q", e.ErrEventPayload, e.ErrUnsupportedCatalogType, event.ItemType)
	}
	switch event.Action {
	case "", ActionAdded, ActionRemoved:
	default:
		return nil, fmt.Errorf("%w: unknown action %q", e.ErrEventPayload, event.Action)
	}

	return &event, nil
}
