package ratelimit

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zero71st/farmgate/internal/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicies() []config.RateLimitPolicy {
	return []config.RateLimitPolicy{
		{
			Name:                   "default",
			AppliesTo:              []string{"User"},
			RequestsPerHour:        2,
			WindowMinutes:          60,
			BlockDurationMinutes:   15,
			CleanupIntervalMinutes: 5,
		},
	}
}

// fakeClock lets tests advance time deterministically.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestLimiter(policies []config.RateLimitPolicy) (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(policies, testLogger())
	limiter.now = clock.Now
	return limiter, clock
}

func TestLimiter_PolicyFor(t *testing.T) {
	limiter, _ := newTestLimiter(testPolicies())

	t.Run("MatchingRole", func(t *testing.T) {
		policy := limiter.PolicyFor("User")
		require.NotNil(t, policy)
		assert.Equal(t, "default", policy.Name)
	})

	t.Run("UnclassifiedRoleIsUnlimited", func(t *testing.T) {
		assert.Nil(t, limiter.PolicyFor("Ghost"))

		status := limiter.Record("user-1", "Ghost")
		assert.True(t, status.Unlimited)
		assert.False(t, status.Blocked)
	})

	t.Run("FirstMatchingPolicyWins", func(t *testing.T) {
		policies := append([]config.RateLimitPolicy{
			{Name: "priority", AppliesTo: []string{"User"}, RequestsPerHour: 9, WindowMinutes: 60, BlockDurationMinutes: 5, CleanupIntervalMinutes: 5},
		}, testPolicies()...)
		l, _ := newTestLimiter(policies)
		policy := l.PolicyFor("User")
		require.NotNil(t, policy)
		assert.Equal(t, "priority", policy.Name)
	})
}

func TestLimiter_RecordBlocksAfterLimit(t *testing.T) {
	limiter, clock := newTestLimiter(testPolicies())

	first := limiter.Record("user-1", "User")
	assert.False(t, first.Blocked)
	assert.Equal(t, 1, first.Count)
	assert.Equal(t, 1, first.Remaining)

	second := limiter.Record("user-1", "User")
	assert.False(t, second.Blocked)
	assert.Equal(t, 2, second.Count)
	assert.Equal(t, 0, second.Remaining)

	third := limiter.Record("user-1", "User")
	assert.True(t, third.Blocked)
	assert.Equal(t, 3, third.Count)
	require.NotNil(t, third.BlockedUntil)
	assert.Equal(t, clock.Now().Add(15*time.Minute), *third.BlockedUntil)
}

func TestLimiter_BlockExtendsPastWindowBoundary(t *testing.T) {
	policies := testPolicies()
	policies[0].WindowMinutes = 1
	policies[0].BlockDurationMinutes = 30
	limiter, clock := newTestLimiter(policies)

	limiter.Record("user-1", "User")
	limiter.Record("user-1", "User")
	blocked := limiter.Record("user-1", "User")
	require.True(t, blocked.Blocked)

	// Window has reset but the block has not elapsed.
	clock.Advance(5 * time.Minute)
	assert.True(t, limiter.Record("user-1", "User").Blocked)
	assert.True(t, limiter.Check("user-1", "User").Blocked)
}

func TestLimiter_BlockExpiryStartsFreshWindow(t *testing.T) {
	limiter, clock := newTestLimiter(testPolicies())

	limiter.Record("user-1", "User")
	limiter.Record("user-1", "User")
	require.True(t, limiter.Record("user-1", "User").Blocked)

	clock.Advance(16 * time.Minute)
	status := limiter.Record("user-1", "User")
	assert.False(t, status.Blocked)
	assert.Equal(t, 1, status.Count)
	assert.Equal(t, 1, status.Remaining)
}

func TestLimiter_WindowRolloverResetsCount(t *testing.T) {
	limiter, clock := newTestLimiter(testPolicies())

	limiter.Record("user-1", "User")
	clock.Advance(61 * time.Minute)

	status := limiter.Record("user-1", "User")
	assert.Equal(t, 1, status.Count)
	assert.False(t, status.Blocked)
}

func TestLimiter_CheckDoesNotMutate(t *testing.T) {
	limiter, _ := newTestLimiter(testPolicies())

	limiter.Record("user-1", "User")
	for i := 0; i < 10; i++ {
		limiter.Check("user-1", "User")
	}

	status := limiter.Record("user-1", "User")
	assert.Equal(t, 2, status.Count)
	assert.False(t, status.Blocked)
}

func TestLimiter_IndependentUsers(t *testing.T) {
	limiter, _ := newTestLimiter(testPolicies())

	limiter.Record("user-1", "User")
	limiter.Record("user-1", "User")
	require.True(t, limiter.Record("user-1", "User").Blocked)

	status := limiter.Record("user-2", "User")
	assert.False(t, status.Blocked)
	assert.Equal(t, 1, status.Count)
}

func TestLimiter_ConcurrentRecordsLoseNoUpdates(t *testing.T) {
	policies := testPolicies()
	policies[0].RequestsPerHour = 10_000
	limiter, _ := newTestLimiter(policies)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				limiter.Record("user-1", "User")
			}
		}()
	}
	wg.Wait()

	status := limiter.Check("user-1", "User")
	assert.Equal(t, 1000, status.Count)
}

func TestLimiter_Cleanup(t *testing.T) {
	limiter, clock := newTestLimiter(testPolicies())

	limiter.Record("user-1", "User")
	assert.Equal(t, 0, limiter.Cleanup())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 1, limiter.Cleanup())
}

func TestLimiter_CleanupKeepsBlockedEntries(t *testing.T) {
	policies := testPolicies()
	policies[0].BlockDurationMinutes = 600
	limiter, clock := newTestLimiter(policies)

	limiter.Record("user-1", "User")
	limiter.Record("user-1", "User")
	require.True(t, limiter.Record("user-1", "User").Blocked)

	clock.Advance(2 * time.Hour)
	assert.Equal(t, 0, limiter.Cleanup())
	assert.True(t, limiter.Check("user-1", "User").Blocked)
}

func TestLimiter_CleanupResolvesSuffixedPolicyNames(t *testing.T) {
	// "limit" is a suffix of "admin-limit"; entries under the longer name
	// must resolve to their own policy, not the shorter one.
	policies := []config.RateLimitPolicy{
		{Name: "limit", AppliesTo: []string{"User"}, RequestsPerHour: 10, WindowMinutes: 1, BlockDurationMinutes: 1, CleanupIntervalMinutes: 1},
		{Name: "admin-limit", AppliesTo: []string{"Admin"}, RequestsPerHour: 100, WindowMinutes: 120, BlockDurationMinutes: 15, CleanupIntervalMinutes: 30},
	}
	limiter, clock := newTestLimiter(policies)

	limiter.Record("admin-1", "Admin")

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, limiter.Cleanup(), "entry is fresh under its own policy")

	clock.Advance(3 * time.Hour)
	assert.Equal(t, 1, limiter.Cleanup())
}

func TestLimiter_RunStopsOnContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewLimiter(testPolicies(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		limiter.Run(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("limiter did not stop after context cancellation")
	}
}
