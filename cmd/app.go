package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/fieldline/fieldline/internal"
	"github.com/fieldline/fieldline/internal/access"
	"github.com/fieldline/fieldline/internal/auth"
	"github.com/fieldline/fieldline/internal/core/events"
	"github.com/fieldline/fieldline/internal/maintenance"
	"github.com/fieldline/fieldline/internal/membership"
	membershipPostgres "github.com/fieldline/fieldline/internal/membership/postgres"
	"github.com/fieldline/fieldline/internal/project"
	projectPostgres "github.com/fieldline/fieldline/internal/project/postgres"
	"github.com/fieldline/fieldline/internal/role"
	rolePostgres "github.com/fieldline/fieldline/internal/role/postgres"
	"github.com/fieldline/fieldline/internal/scheduler"
	"github.com/fieldline/fieldline/internal/transport"
	"github.com/fieldline/fieldline/internal/transport/middleware"
	"github.com/fieldline/fieldline/internal/transport/rest"
	"github.com/fieldline/fieldline/internal/user"
	userPostgres "github.com/fieldline/fieldline/internal/user/postgres"
)

// Dependencies is the wired application shared by the server and scheduler
// commands.
type Dependencies struct {
	Config    *internal.Config
	Logger    *slog.Logger
	DB        *database
	Cache     accessCache
	EventBus  *events.EventBus
	Checker   *access.Checker
	Router    http.Handler
	Scheduler *scheduler.Scheduler
}

func (d *Dependencies) Close() {
	if err := d.Cache.Close(); err != nil {
		d.Logger.Error("cache close error", "error", err)
	}
	if err := d.DB.Close(); err != nil {
		d.Logger.Error("database close error", "error", err)
	}
}

func initializeDependencies(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (*Dependencies, error) {
	db, err := initDB(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	cache, err := initCache(ctx, cfg.Cache)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}

	eventBus := events.NewEventBus(logger)

	membershipRepo := membershipPostgres.NewMembershipRepository(db.ORM)
	checker := access.NewChecker(membershipRepo, cache, logger)
	checker.RegisterEventHandlers(eventBus)

	userRepo := userPostgres.NewUserRepository(db.ORM)
	roleService := role.NewService(rolePostgres.NewRoleRepository(db.ORM), logger)
	userService := user.NewService(userRepo, roleService, eventBus, cfg.Security.BCryptCost, logger)
	projectService := project.NewService(projectPostgres.NewProjectRepository(db.ORM), eventBus, logger)
	membershipService := membership.NewService(membershipRepo, eventBus, logger)

	tokenGen := auth.NewJWTTokenGenerator(
		cfg.Security.JWTAccessSecret,
		cfg.Security.JWTRefreshSecret,
		cfg.Security.AccessTokenDuration,
		cfg.Security.RefreshTokenDuration,
	)
	authService := auth.NewService(userRepo, tokenGen, logger)

	adminAllow, err := middleware.NewIPAllowlist(cfg.Security.AdminIPAllowlist)
	if err != nil {
		_ = cache.Close()
		_ = db.Close()
		return nil, fmt.Errorf("invalid admin ip allowlist: %w", err)
	}

	base := transport.NewBaseHandler(logger)
	production := cfg.Env == "production"
	router := rest.NewRouter(rest.Handlers{
		Auth:     auth.NewHandler(base, authService, production),
		Guards:   auth.NewGuards(base, checker, cfg.Security.LoginPath, cfg.Security.LandingPath),
		Users:    user.NewHandler(base, userService),
		Roles:    role.NewHandler(base, roleService),
		Projects: project.NewHandler(base, projectService),
		Members:  membership.NewHandler(base, membershipService),
		Health: rest.NewHealthHandler(map[string]rest.Pinger{
			"database": db.SQL,
			"cache":    rest.PingFunc(checker.Cache().Ping),
		}),
		AdminAllow: adminAllow,
		HSTS:       production,
	}, logger)

	sched, err := newScheduler(cfg, db, logger)
	if err != nil {
		_ = cache.Close()
		_ = db.Close()
		return nil, err
	}

	return &Dependencies{
		Config:    cfg,
		Logger:    logger,
		DB:        db,
		Cache:     cache,
		EventBus:  eventBus,
		Checker:   checker,
		Router:    router,
		Scheduler: sched,
	}, nil
}

// newScheduler registers the maintenance tasks. Scheduling can be switched
// off in configuration, in which case the scheduler has no tasks and Start
// is a no-op.
func newScheduler(cfg *internal.Config, db *database, logger *slog.Logger) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.Config{
		PollInterval: cfg.Scheduler.PollInterval,
		StopTimeout:  cfg.Scheduler.StopTimeout,
	}, logger)

	if !cfg.Scheduler.Enabled {
		return sched, nil
	}

	tasks := maintenance.NewTasks(cfg.Scheduler, cfg.Database, db.SQL, logger)
	if err := maintenance.Register(sched, tasks); err != nil {
		return nil, fmt.Errorf("failed to register maintenance tasks: %w", err)
	}
	return sched, nil
}
