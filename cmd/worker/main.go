package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"crm_intake_backend/internal/leads"
	"crm_intake_backend/internal/leadstore"
	"crm_intake_backend/internal/scheduler"
	"crm_intake_backend/platform/config"
	"crm_intake_backend/platform/logger"
)

// The worker owns the tail end of the decision window: when a scheduled
// timeout task fires, it decides whether the lead goes into missed-lead
// aggregation. It never presents leads itself.
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting decision-timeout worker", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.GetRedisURL() == "" {
		panic("REDIS_URL is required for the decision-timeout worker")
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

	// No scheduler and no bus: the worker resolves windows, it never opens
	// them, and nothing in this process subscribes to lead events.
	leadsModule := leads.NewModule(store, nil, rdb, nil, cfg, log)

	worker, err := scheduler.NewWorker(cfg, leadsModule.Presenter(), log)
	if err != nil {
		log.Error("failed to initialize worker", "error", err)
		panic("failed to initialize worker: " + err.Error())
	}

	worker.Run(ctx)
	log.Info("worker stopped")
}
