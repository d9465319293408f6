// Package session provides in-memory session management layered on top of
// validated API keys.
//
// Sessions carry both a sliding idle expiry and an absolute expiry. Each
// successful validation extends the idle expiry, but never past the absolute
// expiry and never backwards.
package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/zero71st/farmgate/internal/errors"
)

// Session is a short-lived server-side handle created after successful
// credential validation.
type Session struct {
	ID             string
	UserID         uuid.UUID
	Role           string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	IdleExpiresAt  time.Time
	AbsExpiresAt   time.Time
	IsActive       bool
	ClientIP       string
	UserAgent      string
}

// Validation errors. ErrSessionExpired covers both idle and absolute expiry;
// the two are distinguished in log output only.
var (
	ErrSessionNotFound = apperrors.Wrap(apperrors.ErrUnauthorized, "session not found")
	ErrSessionInactive = apperrors.Wrap(apperrors.ErrUnauthorized, "session inactive")
	ErrSessionExpired  = apperrors.Wrap(apperrors.ErrUnauthorized, "session expired")
)

// entry wraps a session with its own mutex so validate-and-refresh is atomic
// per session without serializing unrelated sessions.
type entry struct {
	mu      sync.Mutex
	session Session
}

// Stats summarizes the session table for the status endpoint.
type Stats struct {
	Active int            `json:"active"`
	ByRole map[string]int `json:"by_role"`
}

// Manager tracks sessions in memory.
type Manager struct {
	idleTimeout time.Duration
	maxDuration time.Duration
	sessions    sync.Map // map[string]*entry
	logger      *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewManager creates a session manager with the given idle timeout and
// absolute maximum duration.
func NewManager(idleTimeout, maxDuration time.Duration, logger *slog.Logger) *Manager {
	return &Manager{
		idleTimeout: idleTimeout,
		maxDuration: maxDuration,
		logger:      logger,
		now:         time.Now,
	}
}

// Create allocates a new session for the owner.
func (m *Manager) Create(userID uuid.UUID, role, clientIP, userAgent string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate session id")
	}

	now := m.now()
	s := Session{
		ID:             id,
		UserID:         userID,
		Role:           role,
		CreatedAt:      now,
		LastAccessedAt: now,
		IdleExpiresAt:  now.Add(m.idleTimeout),
		AbsExpiresAt:   now.Add(m.maxDuration),
		IsActive:       true,
		ClientIP:       clientIP,
		UserAgent:      userAgent,
	}
	m.sessions.Store(id, &entry{session: s})

	m.logger.Debug("session created",
		slog.String("session_id", id),
		slog.String("user_id", userID.String()),
		slog.String("role", role))

	copied := s
	return &copied, nil
}

// Validate checks a session and, on success, atomically refreshes its idle
// expiry to min(now + idleTimeout, absolute expiry). The refresh never moves
// the idle expiry backwards, so concurrent validations cannot regress it.
func (m *Manager) Validate(sessionID string) (*Session, error) {
	val, ok := m.sessions.Load(sessionID)
	if !ok {
		return nil, ErrSessionNotFound
	}
	e := val.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := m.now()
	s := &e.session

	if !s.IsActive {
		return nil, ErrSessionInactive
	}
	if !now.Before(s.AbsExpiresAt) {
		s.IsActive = false
		m.logger.Debug("session expired (absolute)", slog.String("session_id", sessionID))
		return nil, ErrSessionExpired
	}
	if !now.Before(s.IdleExpiresAt) {
		s.IsActive = false
		m.logger.Debug("session expired (idle)", slog.String("session_id", sessionID))
		return nil, ErrSessionExpired
	}

	// Sliding refresh, capped at the absolute expiry.
	newIdle := now.Add(m.idleTimeout)
	if newIdle.After(s.AbsExpiresAt) {
		newIdle = s.AbsExpiresAt
	}
	if newIdle.After(s.IdleExpiresAt) {
		s.IdleExpiresAt = newIdle
	}
	if now.After(s.LastAccessedAt) {
		s.LastAccessedAt = now
	}

	copied := *s
	return &copied, nil
}

// Invalidate marks a session inactive. Returns false when the session is
// unknown or already inactive; invalidating twice is a no-op.
func (m *Manager) Invalidate(sessionID string) bool {
	val, ok := m.sessions.Load(sessionID)
	if !ok {
		return false
	}
	e := val.(*entry)

	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.session.IsActive {
		return false
	}
	e.session.IsActive = false

	m.logger.Debug("session invalidated", slog.String("session_id", sessionID))
	return true
}

// Sweep removes sessions past their absolute expiry or already inactive,
// regardless of idle state. Returns the number of removed sessions.
func (m *Manager) Sweep() int {
	now := m.now()
	removed := 0

	m.sessions.Range(func(key, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		gone := !e.session.IsActive || !now.Before(e.session.AbsExpiresAt)
		e.mu.Unlock()

		if gone {
			m.sessions.Delete(key)
			removed++
		}
		return true
	})

	if removed > 0 {
		m.logger.Debug("session sweep", slog.Int("removed", removed))
	}
	return removed
}

// Run executes Sweep on the given interval until the context is cancelled.
// Intended to run as a background job, never on the request path.
func (m *Manager) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Stats returns the count of live sessions and a per-role breakdown.
func (m *Manager) Stats() Stats {
	now := m.now()
	stats := Stats{ByRole: make(map[string]int)}

	m.sessions.Range(func(_, value any) bool {
		e := value.(*entry)
		e.mu.Lock()
		live := e.session.IsActive &&
			now.Before(e.session.IdleExpiresAt) &&
			now.Before(e.session.AbsExpiresAt)
		role := e.session.Role
		e.mu.Unlock()

		if live {
			stats.Active++
			stats.ByRole[role]++
		}
		return true
	})

	return stats
}

// generateSessionID returns 32 random bytes hex-encoded (64 characters).
func generateSessionID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
