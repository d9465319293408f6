// Package ratelimit implements per-user, per-policy fixed-window rate
// limiting with post-limit blocking.
//
// Counting is fixed-window: requests accumulate against a window anchored at
// the first request of the window, and the count resets when the boundary is
// crossed. Exceeding the limit transitions the entry into a blocked state
// that lasts for the policy's block duration, independent of the window's
// natural reset.
package ratelimit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zero71st/farmgate/internal/config"
)

// Status is a point-in-time projection of a caller's rate-limit state. Field
// semantics back the X-RateLimit-* response headers and are an external
// contract.
type Status struct {
	// PolicyName is the applied policy, empty when no policy matched.
	PolicyName string `json:"policy_name,omitempty"`
	// Limit is the allowed request count per window.
	Limit int `json:"limit"`
	// Remaining is max(0, limit - count).
	Remaining int `json:"remaining"`
	// Count is the number of requests recorded in the active window.
	Count int `json:"count"`
	// WindowResetAt is when the active window rolls over.
	WindowResetAt time.Time `json:"window_reset_at"`
	// Blocked reports whether the caller is currently blocked.
	Blocked bool `json:"blocked"`
	// BlockedUntil is set only while Blocked is true.
	BlockedUntil *time.Time `json:"blocked_until,omitempty"`
	// Unlimited is true when no policy applies to the caller's role.
	Unlimited bool `json:"unlimited"`
}

// entry tracks one (user, policy) window. Each entry has its own mutex so
// unrelated callers never contend.
type entry struct {
	mu           sync.Mutex
	windowStart  time.Time
	count        int
	blockedUntil time.Time
	lastSeen     time.Time
}

// Limiter enforces the configured fixed-window policies.
type Limiter struct {
	policies []config.RateLimitPolicy
	entries  sync.Map // map[string]*entry, keyed by userID + ":" + policy name
	logger   *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewLimiter creates a Limiter from the configured policies. Policy order is
// precedence order: the first policy whose AppliesTo contains the requester's
// role applies.
func NewLimiter(policies []config.RateLimitPolicy, logger *slog.Logger) *Limiter {
	return &Limiter{
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// PolicyFor returns the first policy applying to the role, or nil when the
// role is unclassified. A nil result means no limiting is applied; this
// fail-open behavior for unclassified roles is deliberate.
func (l *Limiter) PolicyFor(role string) *config.RateLimitPolicy {
	for i := range l.policies {
		for _, r := range l.policies[i].AppliesTo {
			if r == role {
				return &l.policies[i]
			}
		}
	}
	return nil
}

// Check returns the caller's current status without mutating counters.
func (l *Limiter) Check(userID, role string) Status {
	policy := l.PolicyFor(role)
	if policy == nil {
		return Status{Unlimited: true}
	}

	e := l.entry(userID, policy.Name)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	if e.blocked(now) {
		return l.status(policy, e, now)
	}
	if e.windowElapsed(now, policy.Window()) {
		// Window rolled over since the last record; project a fresh window.
		return Status{
			PolicyName:    policy.Name,
			Limit:         policy.RequestsPerHour,
			Remaining:     policy.RequestsPerHour,
			WindowResetAt: now.Add(policy.Window()),
		}
	}
	return l.status(policy, e, now)
}

// Record atomically counts a request against the caller's active window and
// returns the post-increment status. Crossing the window boundary resets the
// count to 1; exceeding the policy limit enters the blocked state until
// now + block duration, outliving the window's natural reset.
func (l *Limiter) Record(userID, role string) Status {
	policy := l.PolicyFor(role)
	if policy == nil {
		return Status{Unlimited: true}
	}

	e := l.entry(userID, policy.Name)
	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	e.lastSeen = now

	if e.blocked(now) {
		e.count++
		return l.status(policy, e, now)
	}

	// Clear an elapsed block before counting.
	if !e.blockedUntil.IsZero() && !e.blockedUntil.After(now) {
		e.blockedUntil = time.Time{}
		e.count = 0
		e.windowStart = time.Time{}
	}

	if e.windowStart.IsZero() || e.windowElapsed(now, policy.Window()) {
		e.windowStart = now
		e.count = 0
	}
	e.count++

	if e.count > policy.RequestsPerHour {
		e.blockedUntil = now.Add(policy.BlockDuration())
		l.logger.Warn("rate limit exceeded",
			slog.String("user_id", userID),
			slog.String("policy", policy.Name),
			slog.Int("count", e.count),
			slog.Time("blocked_until", e.blockedUntil))
	}

	return l.status(policy, e, now)
}

// Cleanup purges entries whose window and block state are both stale beyond
// each policy's cleanup interval. Returns the number of removed entries.
func (l *Limiter) Cleanup() int {
	now := l.now()
	removed := 0

	l.entries.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		policy := l.policyByEntryKey(key.(string))
		stale := false
		if policy != nil {
			cutoff := now.Add(-policy.Window() - time.Duration(policy.CleanupIntervalMinutes)*time.Minute)
			stale = e.lastSeen.Before(cutoff) && !e.blocked(now)
		}
		e.mu.Unlock()

		if stale {
			l.entries.Delete(key)
			removed++
		}
		return true
	})

	if removed > 0 {
		l.logger.Debug("rate limit cleanup", slog.Int("removed", removed))
	}
	return removed
}

// Run executes Cleanup on the given interval until the context is cancelled.
// Intended to run as a background job, never on the request path.
func (l *Limiter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup()
		}
	}
}

func (l *Limiter) entry(userID, policyName string) *entry {
	key := userID + ":" + policyName
	if val, ok := l.entries.Load(key); ok {
		return val.(*entry)
	}
	val, _ := l.entries.LoadOrStore(key, &entry{})
	return val.(*entry)
}

func (l *Limiter) policyByEntryKey(key string) *config.RateLimitPolicy {
	_, name, ok := strings.Cut(key, ":")
	if !ok {
		return nil
	}
	for i := range l.policies {
		if l.policies[i].Name == name {
			return &l.policies[i]
		}
	}
	return nil
}

// status builds a Status snapshot; caller must hold e.mu.
func (l *Limiter) status(policy *config.RateLimitPolicy, e *entry, now time.Time) Status {
	s := Status{
		PolicyName:    policy.Name,
		Limit:         policy.RequestsPerHour,
		Count:         e.count,
		Remaining:     max(0, policy.RequestsPerHour-e.count),
		WindowResetAt: e.windowStart.Add(policy.Window()),
	}
	if e.windowStart.IsZero() {
		s.WindowResetAt = now.Add(policy.Window())
	}
	if e.blocked(now) {
		blockedUntil := e.blockedUntil
		s.Blocked = true
		s.BlockedUntil = &blockedUntil
		s.Remaining = 0
	}
	return s
}

func (e *entry) blocked(now time.Time) bool {
	return !e.blockedUntil.IsZero() && e.blockedUntil.After(now)
}

func (e *entry) windowElapsed(now time.Time, window time.Duration) bool {
	return !e.windowStart.IsZero() && !now.Before(e.windowStart.Add(window))
}
