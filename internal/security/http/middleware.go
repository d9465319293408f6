package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/zero71st/farmgate/internal/errors"
	"github.com/zero71st/farmgate/internal/httputil"
	"github.com/zero71st/farmgate/internal/ratelimit"
	"github.com/zero71st/farmgate/internal/security/domain"
	"github.com/zero71st/farmgate/internal/security/usecase"
)

// SecurityMiddleware feeds every request through the authorization pipeline.
//
// It builds a transport-agnostic AccessRequest from the configured credential
// headers and the route, asks the pipeline for a decision, and either aborts
// with the matching status code or stores the resulting identity in the
// request context for handlers to consume via GetSecurityContext.
//
// Rate-limit telemetry is attached as X-RateLimit-* headers on every response
// where the rate-limit stage ran, allowed or denied.
func SecurityMiddleware(
	securityUseCase usecase.SecurityUseCase,
	apiKeyHeader, sessionHeader string,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := &domain.AccessRequest{
			APIKey:             c.GetHeader(apiKeyHeader),
			SessionID:          c.GetHeader(sessionHeader),
			Path:               c.Request.URL.Path,
			Method:             c.Request.Method,
			RequiredPermission: PermissionFor(c.Request.Method, c.Request.URL.Path),
			ClientIP:           c.ClientIP(),
			UserAgent:          c.Request.UserAgent(),
		}

		decision := securityUseCase.Authorize(c.Request.Context(), req)

		setRateLimitHeaders(c, decision.RateLimit)

		if !decision.Authorized {
			abortWithDecision(c, decision, logger)
			return
		}

		if decision.Context != nil {
			ctx := WithSecurityContext(c.Request.Context(), decision.Context)
			c.Request = c.Request.WithContext(ctx)
		}

		c.Next()
	}
}

// setRateLimitHeaders writes quota telemetry headers. Unlimited callers and
// stages that never ran produce no headers.
func setRateLimitHeaders(c *gin.Context, status ratelimit.Status) {
	if status.Unlimited || status.PolicyName == "" {
		return
	}

	c.Header("X-RateLimit-Limit", strconv.Itoa(status.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(status.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(status.WindowResetAt.Unix(), 10))

	if status.Blocked && status.BlockedUntil != nil {
		retryAfter := int(time.Until(*status.BlockedUntil).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.Itoa(retryAfter))
	}
}

// abortWithDecision maps a denial to its HTTP status and response body.
func abortWithDecision(c *gin.Context, decision *domain.Decision, logger *slog.Logger) {
	statusCode := statusForDecision(decision)

	body := gin.H{"error": string(decision.Reason)}
	if decision.Message != "" {
		body["message"] = decision.Message
	}

	logger.Debug("request blocked",
		slog.String("path", c.Request.URL.Path),
		slog.Int("status_code", statusCode),
		slog.String("stage", string(decision.Stage)),
		slog.String("reason", string(decision.Reason)))

	c.AbortWithStatusJSON(statusCode, body)
}

func statusForDecision(decision *domain.Decision) int {
	if decision.Reason == domain.ReasonInternalError {
		return http.StatusInternalServerError
	}

	switch decision.Stage {
	case domain.StageCredential, domain.StageSession:
		return http.StatusUnauthorized
	case domain.StageRateLimit:
		return http.StatusTooManyRequests
	case domain.StagePermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// RequireSecurityContext guards handlers that must only run behind the
// security middleware. It aborts with 401 when no identity is present.
func RequireSecurityContext(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := GetSecurityContext(c.Request.Context()); !ok {
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}
		c.Next()
	}
}
