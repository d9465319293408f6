package app

import (
	"fmt"
	"sync"

	"github.com/gin-gonic/gin"

	"github.com/zero71st/farmgate/internal/authz"
	"github.com/zero71st/farmgate/internal/http"
	"github.com/zero71st/farmgate/internal/metrics"
	"github.com/zero71st/farmgate/internal/ratelimit"
	securityHTTP "github.com/zero71st/farmgate/internal/security/http"
	securityRepository "github.com/zero71st/farmgate/internal/security/repository"
	"github.com/zero71st/farmgate/internal/security/service"
	securityUsecase "github.com/zero71st/farmgate/internal/security/usecase"
	"github.com/zero71st/farmgate/internal/session"
	userRepository "github.com/zero71st/farmgate/internal/user/repository"
	userUsecase "github.com/zero71st/farmgate/internal/user/usecase"
)

// securityComponents groups the security domain wiring inside the container.
type securityComponents struct {
	userRepo        userUsecase.UserRepository
	keyRepo         securityUsecase.APIKeyRepository
	userUseCase     userUsecase.UseCase
	keyUseCase      *securityUsecase.KeyUseCaseImpl
	sessionManager  *session.Manager
	rateLimiter     *ratelimit.Limiter
	authzEngine     *authz.Engine
	usageRecorder   *securityUsecase.UsageRecorder
	securityUseCase securityUsecase.SecurityUseCase

	userRepoInit        sync.Once
	keyRepoInit         sync.Once
	userUseCaseInit     sync.Once
	keyUseCaseInit      sync.Once
	sessionManagerInit  sync.Once
	rateLimiterInit     sync.Once
	authzEngineInit     sync.Once
	usageRecorderInit   sync.Once
	securityUseCaseInit sync.Once
}

// UserRepository returns the user repository instance.
func (c *Container) UserRepository() (userUsecase.UserRepository, error) {
	c.security.userRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["userRepo"] = fmt.Errorf("failed to get database for user repository: %w", err)
			return
		}

		// modernc.org/sqlite shares the ? placeholder syntax with MySQL.
		switch c.config.DBDriver {
		case "mysql", "sqlite":
			c.security.userRepo = userRepository.NewMySQLUserRepository(db)
		case "postgres":
			c.security.userRepo = userRepository.NewPostgreSQLUserRepository(db)
		default:
			c.initErrors["userRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["userRepo"]; exists {
		return nil, storedErr
	}
	return c.security.userRepo, nil
}

// APIKeyRepository returns the API key repository instance.
func (c *Container) APIKeyRepository() (securityUsecase.APIKeyRepository, error) {
	c.security.keyRepoInit.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.initErrors["keyRepo"] = fmt.Errorf("failed to get database for api key repository: %w", err)
			return
		}

		switch c.config.DBDriver {
		case "mysql", "sqlite":
			c.security.keyRepo = securityRepository.NewMySQLAPIKeyRepository(db)
		case "postgres":
			c.security.keyRepo = securityRepository.NewPostgreSQLAPIKeyRepository(db)
		default:
			c.initErrors["keyRepo"] = fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
		}
	})
	if storedErr, exists := c.initErrors["keyRepo"]; exists {
		return nil, storedErr
	}
	return c.security.keyRepo, nil
}

// UserUseCase returns the user use case instance.
func (c *Container) UserUseCase() (userUsecase.UseCase, error) {
	c.security.userUseCaseInit.Do(func() {
		userRepo, err := c.UserRepository()
		if err != nil {
			c.initErrors["userUseCase"] = fmt.Errorf("failed to get user repository for user use case: %w", err)
			return
		}

		useCase, err := userUsecase.NewUserUseCase(userRepo, c.config.DefaultRole, c.config.RoleHierarchy)
		if err != nil {
			c.initErrors["userUseCase"] = fmt.Errorf("failed to create user use case: %w", err)
			return
		}
		c.security.userUseCase = useCase
	})
	if storedErr, exists := c.initErrors["userUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.userUseCase, nil
}

// KeyUseCase returns the API key lifecycle use case instance.
func (c *Container) KeyUseCase() (*securityUsecase.KeyUseCaseImpl, error) {
	c.security.keyUseCaseInit.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.initErrors["keyUseCase"] = fmt.Errorf("failed to get tx manager for key use case: %w", err)
			return
		}

		keyRepo, err := c.APIKeyRepository()
		if err != nil {
			c.initErrors["keyUseCase"] = fmt.Errorf("failed to get api key repository for key use case: %w", err)
			return
		}

		userRepo, err := c.UserRepository()
		if err != nil {
			c.initErrors["keyUseCase"] = fmt.Errorf("failed to get user repository for key use case: %w", err)
			return
		}

		c.security.keyUseCase = securityUsecase.NewKeyUseCase(
			txManager,
			keyRepo,
			userRepo,
			service.NewKeyService(),
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["keyUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.keyUseCase, nil
}

// SessionManager returns the in-memory session manager.
func (c *Container) SessionManager() *session.Manager {
	c.security.sessionManagerInit.Do(func() {
		c.security.sessionManager = session.NewManager(
			c.config.SessionIdleTimeout,
			c.config.SessionMaxDuration,
			c.Logger(),
		)
	})
	return c.security.sessionManager
}

// RateLimiter returns the fixed-window rate limiter.
func (c *Container) RateLimiter() *ratelimit.Limiter {
	c.security.rateLimiterInit.Do(func() {
		c.security.rateLimiter = ratelimit.NewLimiter(c.config.RateLimitPolicies, c.Logger())
	})
	return c.security.rateLimiter
}

// AuthzEngine returns the role/permission authorization engine.
func (c *Container) AuthzEngine() *authz.Engine {
	c.security.authzEngineInit.Do(func() {
		c.security.authzEngine = authz.NewEngine(c.config.RoleHierarchy, c.config.RolePermissions)
	})
	return c.security.authzEngine
}

// UsageRecorder returns the background key-usage recorder.
func (c *Container) UsageRecorder() (*securityUsecase.UsageRecorder, error) {
	c.security.usageRecorderInit.Do(func() {
		keyRepo, err := c.APIKeyRepository()
		if err != nil {
			c.initErrors["usageRecorder"] = fmt.Errorf("failed to get api key repository for usage recorder: %w", err)
			return
		}
		c.security.usageRecorder = securityUsecase.NewUsageRecorder(
			keyRepo,
			c.config.UsageRecorderBufferSize,
			c.Logger(),
		)
	})
	if storedErr, exists := c.initErrors["usageRecorder"]; exists {
		return nil, storedErr
	}
	return c.security.usageRecorder, nil
}

// SecurityUseCase returns the request authorization pipeline, decorated with
// decision metrics when metrics are enabled.
func (c *Container) SecurityUseCase() (securityUsecase.SecurityUseCase, error) {
	c.security.securityUseCaseInit.Do(func() {
		keyUseCase, err := c.KeyUseCase()
		if err != nil {
			c.initErrors["securityUseCase"] = fmt.Errorf("failed to get key use case for security use case: %w", err)
			return
		}

		recorder, err := c.UsageRecorder()
		if err != nil {
			c.initErrors["securityUseCase"] = fmt.Errorf("failed to get usage recorder for security use case: %w", err)
			return
		}

		pipeline := securityUsecase.NewSecurityUseCase(
			keyUseCase,
			c.SessionManager(),
			c.RateLimiter(),
			c.AuthzEngine(),
			recorder,
			c.config.ExcludedPaths,
			c.config.DetailedErrors,
			c.Logger(),
		)

		decisionMetrics, err := c.decisionMetrics()
		if err != nil {
			c.initErrors["securityUseCase"] = err
			return
		}
		c.security.securityUseCase = securityUsecase.NewSecurityUseCaseWithMetrics(pipeline, decisionMetrics)
	})
	if storedErr, exists := c.initErrors["securityUseCase"]; exists {
		return nil, storedErr
	}
	return c.security.securityUseCase, nil
}

// decisionMetrics resolves the decision metrics implementation for the
// pipeline decorator. Disabled metrics yield a no-op recorder.
func (c *Container) decisionMetrics() (metrics.DecisionMetrics, error) {
	provider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider for decision metrics: %w", err)
	}
	if provider == nil {
		return metrics.NewNoOpDecisionMetrics(), nil
	}

	decisionMetrics, err := metrics.NewDecisionMetrics(provider.MeterProvider(), c.config.MetricsNamespace)
	if err != nil {
		return nil, fmt.Errorf("failed to create decision metrics: %w", err)
	}
	return decisionMetrics, nil
}

// initHTTPServer creates the HTTP server with the full route table wired.
func (c *Container) initHTTPServer() (*http.Server, error) {
	logger := c.Logger()

	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	securityUseCase, err := c.SecurityUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get security use case for http server: %w", err)
	}

	userUseCase, err := c.UserUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get user use case for http server: %w", err)
	}

	keyUseCase, err := c.KeyUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get key use case for http server: %w", err)
	}

	handlers := http.Handlers{
		Auth: securityHTTP.NewAuthHandler(
			userUseCase,
			keyUseCase,
			c.SessionManager(),
			c.config.SessionMaxDuration,
			logger,
		),
		Key:  securityHTTP.NewKeyHandler(keyUseCase, logger),
		User: securityHTTP.NewUserHandler(userUseCase, logger),
		Status: securityHTTP.NewStatusHandler(
			c.SessionManager(),
			c.config.RateLimitPolicies,
			c.config.DetailedErrors,
			logger,
		),
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, logger)
	server.SetupRouter(c.config, securityUseCase, handlers, c.httpMetricsMiddleware())

	return server, nil
}

// httpMetricsMiddleware returns the request metrics middleware, or nil when
// metrics are disabled or the provider failed to initialize.
func (c *Container) httpMetricsMiddleware() gin.HandlerFunc {
	provider, err := c.MetricsProvider()
	if err != nil || provider == nil {
		return nil
	}
	return metrics.HTTPMetricsMiddleware(provider.MeterProvider(), c.config.MetricsNamespace)
}
