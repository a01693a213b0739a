package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/support-service/internal/auth"
	"github.com/spec-kit/support-service/internal/config"
	"github.com/spec-kit/support-service/internal/domain"
	"github.com/spec-kit/support-service/internal/events"
	"github.com/spec-kit/support-service/internal/observability"
	"github.com/spec-kit/support-service/internal/persistence"
	"github.com/spec-kit/support-service/internal/repository"
	"github.com/spec-kit/support-service/internal/repository/memory"
	"github.com/spec-kit/support-service/internal/service"
)

// repositories is the storage backend picked at startup.
type repositories struct {
	tx           repository.TxManager
	users        repository.UserRepository
	sessions     repository.ChatSessionRepository
	messages     repository.ChatMessageRepository
	tickets      repository.TicketRepository
	templates    repository.TicketTemplateRepository
	codes        repository.TicketCodeSequence
	history      repository.TicketHistoryRepository
	supportPlans repository.PriorityTierRepository
	loyaltyRules repository.PriorityTierRepository
	auditLogs    repository.AuditLogRepository
}

func newRepositories(pg *persistence.Postgres, logger *zap.Logger) repositories {
	if pg.Enabled() {
		pool := pg.PoolHandle()
		return repositories{
			tx:           repository.NewTxManager(pool),
			users:        repository.NewUserRepository(pool),
			sessions:     repository.NewChatSessionRepository(pool),
			messages:     repository.NewChatMessageRepository(pool),
			tickets:      repository.NewTicketRepository(pool),
			templates:    repository.NewTicketTemplateRepository(pool),
			codes:        repository.NewTicketCodeSequence(pool),
			history:      repository.NewTicketHistoryRepository(pool),
			supportPlans: repository.NewSupportPlanRepository(pool),
			loyaltyRules: repository.NewLoyaltyRuleRepository(pool),
			auditLogs:    repository.NewAuditLogRepository(pool),
		}
	}

	logger.Warn("POSTGRES_DSN not set; using in-memory storage")
	store := memory.NewStore()
	store.SeedTemplates(domain.DefaultTicketTemplates())
	return repositories{
		tx:           store.TxManager(),
		users:        store.Users(),
		sessions:     store.ChatSessions(),
		messages:     store.ChatMessages(),
		tickets:      store.Tickets(),
		templates:    store.TicketTemplates(),
		codes:        store.TicketCodes(),
		history:      store.TicketHistory(),
		supportPlans: store.SupportPlans(),
		loyaltyRules: store.LoyaltyRules(),
		auditLogs:    store.AuditLogs(),
	}
}

// container holds the wired services shared by the commands.
type container struct {
	cfg        *config.Config
	logger     *zap.Logger
	postgres   *persistence.Postgres
	redis      *persistence.Redis
	metrics    *observability.Metrics
	dispatcher events.Dispatcher
	tokens     *auth.TokenManager
	repos      repositories

	auth        *service.AuthService
	sessions    *service.SupportSessionService
	tickets     *service.TicketService
	assignments *service.AssignmentService
	plans       *service.PriorityTierService
	loyalty     *service.PriorityTierService
	staff       *service.StaffService
}

// bootstrap loads configuration, opens storage and builds every service.
// Redis is optional: when it cannot be reached the auth stores fall back to
// Postgres or process memory and c.redis stays nil.
func bootstrap(ctx context.Context) (*container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			pg.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	c := &container{
		cfg:        cfg,
		logger:     logger,
		postgres:   pg,
		metrics:    observability.NewMetrics(),
		dispatcher: events.NewInMemoryDispatcher(),
		tokens:     auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL()),
		repos:      newRepositories(pg, logger),
	}

	var (
		attempts      auth.AttemptStore
		verifications auth.TokenStore
	)
	if rdb := persistence.NewRedis(ctx, cfg.Redis, logger); rdb.Ping(ctx) == nil {
		c.redis = rdb
		attempts = auth.NewRedisAttemptStore(rdb.Client)
		verifications = auth.NewRedisTokenStore(rdb.Client, "support:email-verify:")
	} else {
		rdb.Close()
		attempts = auth.NewMemoryAttemptStore(nil)
		if pg.Enabled() {
			verifications = auth.NewPostgresTokenStore(pg.PoolHandle())
		} else {
			verifications = auth.NewMemoryTokenStore(nil)
		}
	}

	audit := service.NewAuditLogger(c.repos.auditLogs, nil, logger)
	c.auth = service.NewAuthService(service.AuthDependencies{
		UserRepo:        c.repos.users,
		Tokens:          c.tokens,
		Attempts:        attempts,
		Verifications:   verifications,
		Audit:           audit,
		Dispatcher:      c.dispatcher,
		Logger:          logger,
		BcryptCost:      cfg.Auth.BcryptCost,
		MaxFailedLogins: cfg.Auth.MaxFailedLogins,
		LockoutWindow:   cfg.Auth.LockoutWindow(),
		VerificationTTL: cfg.Auth.EmailVerificationTTL(),
	})
	c.sessions = service.NewSupportSessionService(service.SupportSessionDependencies{
		TxManager:   c.repos.tx,
		SessionRepo: c.repos.sessions,
		MessageRepo: c.repos.messages,
		UserRepo:    c.repos.users,
		Audit:       audit,
		Dispatcher:  c.dispatcher,
		Logger:      logger,
		PreviewMax:  cfg.Support.MessagePreviewMax,
	})
	c.tickets = service.NewTicketService(service.TicketDependencies{
		TxManager:    c.repos.tx,
		TicketRepo:   c.repos.tickets,
		TemplateRepo: c.repos.templates,
		CodeSequence: c.repos.codes,
		HistoryRepo:  c.repos.history,
		UserRepo:     c.repos.users,
		Audit:        audit,
		Dispatcher:   c.dispatcher,
		Logger:       logger,
		CodePrefix:   cfg.Support.TicketCodePrefix,
	})
	c.assignments = service.NewAssignmentService(service.AssignmentDependencies{
		TxManager:   c.repos.tx,
		TicketRepo:  c.repos.tickets,
		UserRepo:    c.repos.users,
		HistoryRepo: c.repos.history,
		Audit:       audit,
		Dispatcher:  c.dispatcher,
		Logger:      logger,
	})
	c.plans = service.NewPriorityTierService(service.PriorityTierDependencies{
		TxManager:  c.repos.tx,
		TierRepo:   c.repos.supportPlans,
		Audit:      audit,
		Dispatcher: c.dispatcher,
		Logger:     logger,
	})
	c.loyalty = service.NewPriorityTierService(service.PriorityTierDependencies{
		TxManager:  c.repos.tx,
		TierRepo:   c.repos.loyaltyRules,
		Audit:      audit,
		Dispatcher: c.dispatcher,
		Logger:     logger,
	})
	c.staff = service.NewStaffService(service.StaffDependencies{
		UserRepo:   c.repos.users,
		Audit:      audit,
		Logger:     logger,
		BcryptCost: cfg.Auth.BcryptCost,
	})
	return c, nil
}

// Close releases connections and flushes the logger.
func (c *container) Close() {
	c.redis.Close()
	c.postgres.Close()
	_ = c.logger.Sync()
}
