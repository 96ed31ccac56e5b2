package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/DRSN-tech/taste-backend/internal/usecase"
	"github.com/DRSN-tech/taste-backend/pkg/logger"
)

type fakeOutbox struct {
	pending   []*usecase.OutboxEvent
	processed []int64
	fetchErr  error
}

func (f *fakeOutbox) Create(_ context.Context, event *usecase.OutboxEvent) (*usecase.OutboxEvent, error) {
	f.pending = append(f.pending, event)
	return event, nil
}

func (f *fakeOutbox) GetAndMarkAsProcessing(_ context.Context, limit int) ([]*usecase.OutboxEvent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	n := min(limit, len(f.pending))
	batch := f.pending[:n]
	f.pending = f.pending[n:]
	return batch, nil
}

func (f *fakeOutbox) MarkAsProcessed(_ context.Context, id int64) error {
	f.processed = append(f.processed, id)
	return nil
}

type fakeProducer struct {
	sent   []int64
	failOn map[int64]error
}

func (p *fakeProducer) WriteRawMessage(_ context.Context, req *usecase.WriteRawMessageReq) error {
	if err := p.failOn[req.UserID]; err != nil {
		return err
	}
	p.sent = append(p.sent, req.UserID)
	return nil
}

func outboxEvents(userIDs ...int64) []*usecase.OutboxEvent {
	events := make([]*usecase.OutboxEvent, 0, len(userIDs))
	for i, id := range userIDs {
		ev := usecase.NewOutboxEvent("ev", usecase.UserEmbeddingUpdated, id, []byte(`{}`))
		ev.ID = int64(i + 1)
		events = append(events, ev)
	}
	return events
}

func TestOutboxWorker_Drain(t *testing.T) {
	repo := &fakeOutbox{pending: outboxEvents(10, 11, 12, 13, 14)}
	producer := &fakeProducer{failOn: map[int64]error{12: errors.New("connection refused")}}

	w := NewOutboxWorker(repo, logger.NewNop(), producer, "", "outbox_pending", 2)
	w.drain(context.Background())

	if want := []int64{10, 11, 13, 14}; !equalIDs(producer.sent, want) {
		t.Errorf("sent = %v, want %v", producer.sent, want)
	}
	if want := []int64{1, 2, 4, 5}; !equalIDs(repo.processed, want) {
		t.Errorf("processed = %v, want %v", repo.processed, want)
	}
}

func TestOutboxWorker_ProcessBatch(t *testing.T) {
	tests := []struct {
		name     string
		repo     *fakeOutbox
		failOn   map[int64]error
		wantMore bool
		wantErr  bool
	}{
		{name: "empty", repo: &fakeOutbox{}},
		{name: "full batch", repo: &fakeOutbox{pending: outboxEvents(1, 2, 3)}, wantMore: true},
		{name: "short batch", repo: &fakeOutbox{pending: outboxEvents(1)}},
		{
			name:   "kafka down",
			repo:   &fakeOutbox{pending: outboxEvents(1, 2)},
			failOn: map[int64]error{1: errors.New("i/o timeout"), 2: errors.New("i/o timeout")},
		},
		{name: "fetch failed", repo: &fakeOutbox{fetchErr: errors.New("db down")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewOutboxWorker(tt.repo, logger.NewNop(), &fakeProducer{failOn: tt.failOn}, "", "outbox_pending", 2)
			more, err := w.processBatch(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("processBatch() error = %v, wantErr %v", err, tt.wantErr)
			}
			if more != tt.wantMore {
				t.Errorf("processBatch() more = %v, want %v", more, tt.wantMore)
			}
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{err: nil, want: false},
		{err: errors.New("dial tcp: Connection Refused"), want: true},
		{err: errors.New("read: i/o timeout"), want: true},
		{err: errors.New("message too large"), want: false},
	}

	for _, tt := range tests {
		if got := isRetryableError(tt.err); got != tt.want {
			t.Errorf("isRetryableError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestMessageKey(t *testing.T) {
	if got := string(messageKey(42)); got != "42" {
		t.Errorf("messageKey(42) = %q, want 42", got)
	}
}

func equalIDs(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
