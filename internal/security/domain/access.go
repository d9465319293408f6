package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/zero71st/farmgate/internal/ratelimit"
)

// Stage identifies the pipeline stage that produced a decision.
type Stage string

const (
	StageCredential Stage = "credential"
	StageSession    Stage = "session"
	StageRateLimit  Stage = "rate_limit"
	StagePermission Stage = "permission"
)

// Reason is a stable machine-readable denial reason code. These values are an
// external contract surfaced in responses and must not change.
type Reason string

const (
	ReasonMissingCredential      Reason = "missing_credential"
	ReasonInvalidCredential      Reason = "invalid_credential"
	ReasonExpiredCredential      Reason = "expired_credential"
	ReasonRevokedCredential      Reason = "revoked_credential"
	ReasonInvalidSession         Reason = "invalid_session"
	ReasonExpiredSession         Reason = "expired_session"
	ReasonRateLimited            Reason = "rate_limited"
	ReasonInsufficientPermission Reason = "insufficient_permission"
	ReasonInternalError          Reason = "internal_error"
)

// AccessRequest is the transport-agnostic descriptor of an inbound request.
// An adapter at the transport boundary fills it from headers and routing data;
// the pipeline never touches framework types.
type AccessRequest struct {
	// APIKey is the raw credential presented by the caller, empty if absent.
	APIKey string
	// SessionID is the optional session handle presented by the caller.
	SessionID string
	// Path and Method describe the target operation.
	Path   string
	Method string
	// RequiredPermission is derived by the caller (e.g. "write:pigpens" from
	// the HTTP verb and path). Empty means no permission check.
	RequiredPermission string
	ClientIP           string
	UserAgent          string
}

// SecurityContext is the per-request identity bundle produced on successful
// authorization. It is ephemeral and never persisted.
type SecurityContext struct {
	UserID      uuid.UUID
	Role        string
	Permissions []string
	SessionID   string
	ClientIP    string
	RequestTime time.Time
}

// Decision is the unified verdict of the security pipeline.
type Decision struct {
	Authorized bool
	// Context is set when the full pipeline authorized the request. Excluded
	// paths produce an authorized decision with a nil context.
	Context *SecurityContext
	// RateLimit carries quota telemetry for response headers. It is populated
	// whenever the rate-limit stage ran, on both allow and deny outcomes.
	RateLimit ratelimit.Status
	// Stage and Reason identify the failing stage on denial.
	Stage  Stage
	Reason Reason
	// Message is human-readable detail, populated only when detailed errors
	// are enabled in configuration.
	Message string
}

// Deny builds a denial decision for the given stage and reason.
func Deny(stage Stage, reason Reason, message string) *Decision {
	return &Decision{
		Authorized: false,
		Stage:      stage,
		Reason:     reason,
		Message:    message,
	}
}
