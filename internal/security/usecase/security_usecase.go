package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/zero71st/farmgate/internal/authz"
	"github.com/zero71st/farmgate/internal/ratelimit"
	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/session"

	apperrors "github.com/zero71st/farmgate/internal/errors"
)

// SecurityUseCaseImpl evaluates requests through the four-stage pipeline:
// credential, session, rate limit, permission. Stages run in that order and
// the first failing stage short-circuits the rest.
type SecurityUseCaseImpl struct {
	keys           KeyUseCase
	sessions       *session.Manager
	limiter        *ratelimit.Limiter
	authzEngine    *authz.Engine
	recorder       *UsageRecorder
	excludedPaths  map[string]struct{}
	detailedErrors bool
	logger         *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewSecurityUseCase creates a new SecurityUseCaseImpl.
func NewSecurityUseCase(
	keys KeyUseCase,
	sessions *session.Manager,
	limiter *ratelimit.Limiter,
	authzEngine *authz.Engine,
	recorder *UsageRecorder,
	excludedPaths []string,
	detailedErrors bool,
	logger *slog.Logger,
) *SecurityUseCaseImpl {
	excluded := make(map[string]struct{}, len(excludedPaths))
	for _, p := range excludedPaths {
		excluded[p] = struct{}{}
	}

	return &SecurityUseCaseImpl{
		keys:           keys,
		sessions:       sessions,
		limiter:        limiter,
		authzEngine:    authzEngine,
		recorder:       recorder,
		excludedPaths:  excluded,
		detailedErrors: detailedErrors,
		logger:         logger,
		now:            time.Now,
	}
}

// Authorize runs the pipeline for one request. Excluded paths bypass every
// stage. Usage accounting happens only on a fully authorized outcome, so
// denied requests never advance usage counters.
func (uc *SecurityUseCaseImpl) Authorize(ctx context.Context, req *domain.AccessRequest) *domain.Decision {
	if _, ok := uc.excludedPaths[req.Path]; ok {
		return &domain.Decision{Authorized: true}
	}

	// Stage 1: credential.
	if req.APIKey == "" {
		return uc.deny(req, domain.StageCredential, domain.ReasonMissingCredential, "api key header missing")
	}

	keyValidation, err := uc.keys.Validate(ctx, req.APIKey)
	if err != nil {
		return uc.denyFromCredentialError(req, err)
	}

	// Stage 2: session (optional).
	var sessionID string
	if req.SessionID != "" {
		s, err := uc.sessions.Validate(req.SessionID)
		if err != nil {
			return uc.denyFromSessionError(req, err)
		}
		if s.UserID != keyValidation.UserID {
			return uc.deny(req, domain.StageSession, domain.ReasonInvalidSession,
				"session does not belong to the key owner")
		}
		sessionID = s.ID
	}

	// Stage 3: rate limit. Recording happens here so every authenticated
	// request counts against the window, including ones later denied on
	// permission grounds.
	status := uc.limiter.Record(keyValidation.UserID.String(), keyValidation.Role)
	if status.Blocked {
		d := uc.deny(req, domain.StageRateLimit, domain.ReasonRateLimited, "rate limit exceeded")
		d.RateLimit = status
		return d
	}

	// Stage 4: permission.
	if req.RequiredPermission != "" &&
		!uc.authzEngine.HasPermission(keyValidation.Role, req.RequiredPermission) {
		d := uc.deny(req, domain.StagePermission, domain.ReasonInsufficientPermission,
			"role lacks permission "+req.RequiredPermission)
		d.RateLimit = status
		return d
	}

	now := uc.now()
	uc.recorder.Enqueue(keyValidation.Key.ID, now)

	return &domain.Decision{
		Authorized: true,
		RateLimit:  status,
		Context: &domain.SecurityContext{
			UserID:      keyValidation.UserID,
			Role:        keyValidation.Role,
			Permissions: uc.authzEngine.GetPermissions(keyValidation.Role),
			SessionID:   sessionID,
			ClientIP:    req.ClientIP,
			RequestTime: now,
		},
	}
}

// denyFromCredentialError maps key validation failures to denial reasons.
// Storage and timeout failures collapse into an internal-error denial so the
// caller gets a decision either way.
func (uc *SecurityUseCaseImpl) denyFromCredentialError(req *domain.AccessRequest, err error) *domain.Decision {
	switch {
	case apperrors.Is(err, domain.ErrKeyExpired):
		return uc.deny(req, domain.StageCredential, domain.ReasonExpiredCredential, "api key expired")
	case apperrors.Is(err, domain.ErrKeyRevoked):
		return uc.deny(req, domain.StageCredential, domain.ReasonRevokedCredential, "api key revoked")
	case apperrors.Is(err, domain.ErrKeyInactive):
		return uc.deny(req, domain.StageCredential, domain.ReasonRevokedCredential, "api key inactive")
	case apperrors.Is(err, domain.ErrUserInactive):
		return uc.deny(req, domain.StageCredential, domain.ReasonInvalidCredential, "account disabled")
	case apperrors.Is(err, domain.ErrKeyNotFound):
		return uc.deny(req, domain.StageCredential, domain.ReasonInvalidCredential, "api key not recognized")
	default:
		uc.logger.Error("credential validation failed",
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
		return uc.deny(req, domain.StageCredential, domain.ReasonInternalError, "credential check unavailable")
	}
}

// denyFromSessionError maps session validation failures to denial reasons.
func (uc *SecurityUseCaseImpl) denyFromSessionError(req *domain.AccessRequest, err error) *domain.Decision {
	switch {
	case apperrors.Is(err, session.ErrSessionExpired):
		return uc.deny(req, domain.StageSession, domain.ReasonExpiredSession, "session expired")
	case apperrors.Is(err, session.ErrSessionNotFound), apperrors.Is(err, session.ErrSessionInactive):
		return uc.deny(req, domain.StageSession, domain.ReasonInvalidSession, "session not valid")
	default:
		uc.logger.Error("session validation failed",
			slog.String("path", req.Path),
			slog.String("error", err.Error()))
		return uc.deny(req, domain.StageSession, domain.ReasonInternalError, "session check unavailable")
	}
}

// deny builds a denial, logging it and stripping the human-readable message
// unless detailed errors are enabled.
func (uc *SecurityUseCaseImpl) deny(
	req *domain.AccessRequest,
	stage domain.Stage,
	reason domain.Reason,
	message string,
) *domain.Decision {
	uc.logger.Info("request denied",
		slog.String("path", req.Path),
		slog.String("method", req.Method),
		slog.String("client_ip", req.ClientIP),
		slog.String("stage", string(stage)),
		slog.String("reason", string(reason)))

	if !uc.detailedErrors {
		message = ""
	}
	return domain.Deny(stage, reason, message)
}
