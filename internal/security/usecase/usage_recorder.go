package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// usageEvent is one pending usage-count update.
type usageEvent struct {
	keyID  uuid.UUID
	usedAt time.Time
}

// UsageRecorder persists API key usage updates off the request path. Events
// are queued on a bounded channel; when the queue is full the event is
// dropped, trading exact usage counts for request latency.
type UsageRecorder struct {
	keyRepo APIKeyRepository
	events  chan usageEvent
	logger  *slog.Logger
}

// NewUsageRecorder creates a UsageRecorder with the given queue capacity.
func NewUsageRecorder(keyRepo APIKeyRepository, bufferSize int, logger *slog.Logger) *UsageRecorder {
	if bufferSize <= 0 {
		bufferSize = 1024
	}
	return &UsageRecorder{
		keyRepo: keyRepo,
		events:  make(chan usageEvent, bufferSize),
		logger:  logger,
	}
}

// Enqueue queues a usage update without blocking. Returns false when the
// queue is full and the event was dropped.
func (r *UsageRecorder) Enqueue(keyID uuid.UUID, usedAt time.Time) bool {
	select {
	case r.events <- usageEvent{keyID: keyID, usedAt: usedAt}:
		return true
	default:
		r.logger.Warn("usage queue full, dropping event",
			slog.String("key_id", keyID.String()))
		return false
	}
}

// Run drains the queue until the context is cancelled, then flushes whatever
// is already buffered before returning.
func (r *UsageRecorder) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return
		case ev := <-r.events:
			r.persist(ctx, ev)
		}
	}
}

// drain flushes buffered events using a short grace period, since the run
// context is already cancelled.
func (r *UsageRecorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		select {
		case ev := <-r.events:
			r.persist(ctx, ev)
		default:
			return
		}
	}
}

func (r *UsageRecorder) persist(ctx context.Context, ev usageEvent) {
	if err := r.keyRepo.UpdateUsage(ctx, ev.keyID, ev.usedAt); err != nil {
		r.logger.Error("failed to persist key usage",
			slog.String("key_id", ev.keyID.String()),
			slog.String("error", err.Error()))
	}
}
