package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"crm_intake_backend/internal/events"
	apphttp "crm_intake_backend/internal/http"
	"crm_intake_backend/internal/intake"
	"crm_intake_backend/internal/leads"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/internal/notify"
	"crm_intake_backend/internal/scheduler"
	"crm_intake_backend/internal/sync"
	"crm_intake_backend/platform/config"
	"crm_intake_backend/platform/db"
	"crm_intake_backend/platform/logger"
	"crm_intake_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required: the decision window and aggregation locks live in Redis")
	}
	redisOpt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		panic("invalid REDIS_URL: " + err.Error())
	}
	rdb := redis.NewClient(redisOpt)
	defer rdb.Close()

	store, err := leadstore.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize lead store client", "error", err)
		panic("failed to initialize lead store client: " + err.Error())
	}

	schedClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize decision-timeout scheduler", "error", err)
		panic("failed to initialize decision-timeout scheduler: " + err.Error())
	}
	defer schedClient.Close()

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	alerts := notify.NewSender(cfg, log)

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	leadsModule := leads.NewModule(store, schedClient, rdb, eventBus, cfg, log)
	intakeModule := intake.NewModule(pool, store, alerts, eventBus, val, cfg, log)
	syncModule := sync.NewModule(store, eventBus, log)
	syncModule.RegisterHandlers(eventBus)

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			leadsModule,
			intakeModule,
			syncModule,
		},
	}

	engine := apphttp.NewRouter(app)
	srv := &http.Server{Addr: cfg.GetHTTPAddr(), Handler: engine}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		intakeModule.Bridge().Run(gctx)
		return nil
	})

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.GetHTTPAddr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		panic("server error: " + err.Error())
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
