package app

import (
	"context"
	"fmt"

	"github.com/upb/access-gate/config"
	"github.com/upb/access-gate/gate"
	"github.com/upb/access-gate/internal/audit"
	"github.com/upb/access-gate/internal/observability"
	"github.com/upb/access-gate/middleware"
	"github.com/upb/access-gate/repositories"
	"github.com/upb/access-gate/repositories/postgres"
	"github.com/upb/access-gate/tokens"
	"go.uber.org/zap"
)

// Route names registered for symbolic denial targets
const (
	RouteLogin = "login"
	RouteHome  = "home"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Directory is nil when no database is configured
	Directory repositories.DirectoryRepository

	// Auth
	Tokens        *tokens.Validator
	Authenticator *middleware.Authenticator

	// Access control
	Routes *gate.Routes
	// Gates redirect denied requests; APIGates answer them with JSON
	Gates    *gate.Registry
	APIGates *gate.Registry

	// Observability
	Metrics *observability.Metrics
	Audit   *audit.Recorder

	stopWorkers context.CancelFunc
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if err := deps.initDatabase(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := deps.initGates(cfg); err != nil {
		deps.closeDatabase()
		return nil, fmt.Errorf("failed to initialize gates: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase opens the user directory when one is configured
func (d *Dependencies) initDatabase(ctx context.Context, cfg *config.Config) error {
	if !cfg.Database.Enabled() {
		d.Logger.Info("no user directory configured, using token claims only")
		return nil
	}

	db, err := postgres.NewDB(cfg.Database, d.Logger)
	if err != nil {
		return err
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = db.Close()
		return err
	}

	d.DB = db
	d.Directory = repositories.NewCachedDirectory(
		repositories.NewBreakerDirectory(
			postgres.NewDirectoryRepository(db, d.Logger),
			repositories.BreakerConfig{
				FailureThreshold: cfg.Database.BreakerFailures,
				Timeout:          cfg.Database.BreakerTimeout,
			},
			d.Logger,
		),
		cfg.Database.CacheSize,
		cfg.Database.CacheTTL,
		repositories.WithNegativeTTL(cfg.Database.CacheNegativeTTL),
		repositories.WithLookupTimeout(cfg.Database.LookupTimeout),
	)
	if cache, ok := d.Directory.(*repositories.CachedDirectory); ok {
		workerCtx, cancel := context.WithCancel(context.Background())
		d.stopWorkers = cancel
		go cache.StartCleanupWorker(workerCtx, cfg.Database.CacheTTL)
		d.Logger.Info("directory cache enabled",
			zap.Int("size", cfg.Database.CacheSize),
			zap.Duration("ttl", cfg.Database.CacheTTL))
	}
	return nil
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("AUTH_JWT_SECRET not set, every request is anonymous")
		d.Authenticator = middleware.NewAuthenticator(nil, d.Directory, d.Logger)
		return nil
	}

	validator, err := tokens.NewValidator(tokens.Config{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
		Leeway:   cfg.Auth.Leeway,
	})
	if err != nil {
		return err
	}

	d.Tokens = validator
	d.Authenticator = middleware.NewAuthenticator(validator, d.Directory, d.Logger)
	d.Logger.Info("token validation enabled",
		zap.String("issuer", cfg.Auth.Issuer),
		zap.Bool("directory", d.Directory != nil))
	return nil
}

func (d *Dependencies) initGates(cfg *config.Config) error {
	d.Routes = gate.NewRoutes()
	d.Routes.Register(RouteLogin, "/login/")
	d.Routes.Register(RouteHome, "/")

	opts := []gate.Option{
		gate.WithDenialTarget(cfg.Gate.DenialTarget),
		gate.WithRedirectField(cfg.Gate.RedirectField),
		gate.WithResolver(d.Routes),
	}

	d.Audit = audit.NewRecorder(d.Logger, true)
	opts = append(opts, gate.WithObserver(d.Audit))

	if cfg.Observability.MetricsEnabled {
		d.Metrics = observability.NewMetrics()
		opts = append(opts, gate.WithObserver(d.Metrics))
	}

	gates, err := gate.NewRegistry(cfg.Gate.Policies, d.Logger, opts...)
	if err != nil {
		return err
	}
	apiOpts := append(append([]gate.Option{}, opts...), gate.WithDeniedHandler(gate.JSONDenied))
	apiGates, err := gate.NewRegistry(cfg.Gate.Policies, d.Logger, apiOpts...)
	if err != nil {
		return err
	}

	d.Gates = gates
	d.APIGates = apiGates
	d.Logger.Info("access gates configured",
		zap.Strings("gates", gates.Names()),
		zap.String("denial_target", cfg.Gate.DenialTarget))
	return nil
}

func (d *Dependencies) closeDatabase() {
	if d.stopWorkers != nil {
		d.stopWorkers()
	}
	if d.DB != nil {
		_ = d.DB.Close()
		d.DB = nil
	}
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.stopWorkers != nil {
		d.stopWorkers()
	}

	if d.DB != nil {
		if err := d.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
