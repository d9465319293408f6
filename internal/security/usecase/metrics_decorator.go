package usecase

import (
	"context"
	"time"

	"github.com/zero71st/farmgate/internal/metrics"
	"github.com/zero71st/farmgate/internal/security/domain"
)

// securityUseCaseWithMetrics decorates SecurityUseCase with metrics instrumentation.
type securityUseCaseWithMetrics struct {
	next    SecurityUseCase
	metrics metrics.DecisionMetrics
}

// NewSecurityUseCaseWithMetrics wraps a SecurityUseCase with decision recording.
func NewSecurityUseCaseWithMetrics(useCase SecurityUseCase, m metrics.DecisionMetrics) SecurityUseCase {
	return &securityUseCaseWithMetrics{
		next:    useCase,
		metrics: m,
	}
}

// Authorize records the decision outcome and pipeline duration.
func (s *securityUseCaseWithMetrics) Authorize(ctx context.Context, req *domain.AccessRequest) *domain.Decision {
	start := time.Now()
	decision := s.next.Authorize(ctx, req)

	s.metrics.RecordDecision(ctx, decision.Authorized, string(decision.Stage), string(decision.Reason))
	s.metrics.RecordPipelineDuration(ctx, decision.Authorized, time.Since(start))

	return decision
}
