package routes

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/gilandre/emeraude-treasury/internal/activite"
	"github.com/gilandre/emeraude-treasury/internal/alert"
	"github.com/gilandre/emeraude-treasury/internal/audit"
	"github.com/gilandre/emeraude-treasury/internal/cache"
	"github.com/gilandre/emeraude-treasury/internal/config"
	"github.com/gilandre/emeraude-treasury/internal/currency"
	"github.com/gilandre/emeraude-treasury/internal/ledger"
	"github.com/gilandre/emeraude-treasury/internal/marche"
	"github.com/gilandre/emeraude-treasury/internal/middleware"
	"github.com/gilandre/emeraude-treasury/internal/prefinancement"
	"github.com/gilandre/emeraude-treasury/internal/tresorerie"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Redis  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes. Without a
// database or Redis (development only) every store falls back to its
// in-memory implementation.
func Setup(app *fiber.App, d Deps) error {
	if !d.Cfg.IsDev() {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
		if d.Redis == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.AppEnv)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.AccessLog(d.Logger))
	if d.Redis != nil {
		app.Use(middleware.Idempotency(d.Redis, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var (
		store        ledger.Store
		marcheRepo   marche.Repository
		activiteRepo activite.Repository
		prefRepo     prefinancement.Repository
		rateRepo     currency.Repository
		auditor      audit.Recorder
		sideCache    cache.Cache
	)
	if d.DB != nil {
		store = ledger.NewPostgresStore(d.DB)
		marcheRepo = marche.NewPostgresRepository(d.DB)
		activiteRepo = activite.NewPostgresRepository(d.DB)
		prefRepo = prefinancement.NewPostgresRepository(d.DB)
		rateRepo = currency.NewPostgresRepository(d.DB)
		auditor = audit.NewPostgresRecorder(d.DB)
	} else {
		memStore := ledger.NewMemoryStore()
		store = memStore
		marcheRepo = marche.NewMemoryRepository(memStore)
		activiteRepo = activite.NewMemoryRepository(memStore)
		prefRepo = prefinancement.NewMemoryRepository(memStore)
		rateRepo = currency.NewMemoryRepository()
		auditor = audit.NewMemoryRecorder()
	}
	if d.Redis != nil {
		sideCache = cache.NewRedisCache(d.Redis)
	} else {
		sideCache = cache.NewMemoryCache()
	}

	rates := currency.NewService(rateRepo, d.Cfg.RateLookupTimeout)
	alerts := alert.NewLoggerDispatcher(d.Logger)
	engine := ledger.NewEngine(store, rates, auditor, alerts, sideCache, d.Logger)
	projector := tresorerie.NewProjector(store, sideCache, d.Cfg.DashboardCacheTTL, d.Logger)

	marcheSvc := marche.NewService(marcheRepo, rates)
	activiteSvc := activite.NewService(activiteRepo, rates)
	prefSvc := prefinancement.NewService(prefRepo, store, rates)

	api := app.Group("/api/v1")
	RegisterMarcheRoutes(api, marche.NewHandler(marcheSvc))
	RegisterActiviteRoutes(api, activite.NewHandler(activiteSvc))
	RegisterMouvementRoutes(api, ledger.NewHandler(engine))
	RegisterPrefinancementRoutes(api, prefinancement.NewHandler(prefSvc))
	RegisterTresorerieRoutes(api, tresorerie.NewHandler(projector))
	RegisterTauxRoutes(api, currency.NewHandler(rateRepo))

	return nil
}
