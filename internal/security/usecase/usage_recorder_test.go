package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingKeyRepo counts UpdateUsage calls without a real database.
type recordingKeyRepo struct {
	MockAPIKeyRepository
	mu      sync.Mutex
	updates []uuid.UUID
}

func (r *recordingKeyRepo) UpdateUsage(_ context.Context, id uuid.UUID, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, id)
	return nil
}

func (r *recordingKeyRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.updates)
}

func TestUsageRecorder_PersistsEnqueuedEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &recordingKeyRepo{}
	recorder := NewUsageRecorder(repo, 16, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		recorder.Run(ctx)
	}()

	id := uuid.Must(uuid.NewV7())
	assert.True(t, recorder.Enqueue(id, time.Now()))
	assert.True(t, recorder.Enqueue(id, time.Now()))

	require.Eventually(t, func() bool {
		return repo.count() == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestUsageRecorder_DropsWhenFull(t *testing.T) {
	repo := &recordingKeyRepo{}
	recorder := NewUsageRecorder(repo, 2, testLogger())

	// No consumer running, so the third enqueue finds the queue full.
	id := uuid.Must(uuid.NewV7())
	assert.True(t, recorder.Enqueue(id, time.Now()))
	assert.True(t, recorder.Enqueue(id, time.Now()))
	assert.False(t, recorder.Enqueue(id, time.Now()))
}

func TestUsageRecorder_DrainsOnShutdown(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := &recordingKeyRepo{}
	recorder := NewUsageRecorder(repo, 16, testLogger())

	id := uuid.Must(uuid.NewV7())
	require.True(t, recorder.Enqueue(id, time.Now()))
	require.True(t, recorder.Enqueue(id, time.Now()))
	require.True(t, recorder.Enqueue(id, time.Now()))

	// Start with an already cancelled context: Run must still flush the
	// buffered events before returning.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	recorder.Run(ctx)

	assert.Equal(t, 3, repo.count())
}

func TestNewUsageRecorder_DefaultBufferSize(t *testing.T) {
	recorder := NewUsageRecorder(&recordingKeyRepo{}, 0, testLogger())
	assert.Equal(t, 1024, cap(recorder.events))
}
