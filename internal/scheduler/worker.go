package scheduler

import (
	"context"
	"fmt"

	"crm_intake_backend/platform/config"
	"crm_intake_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// TimeoutHandler resolves an elapsed decision window for one lead.
type TimeoutHandler interface {
	HandleTimeout(ctx context.Context, leadID string) error
}

type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	timeouts TimeoutHandler
	log      *logger.Logger
}

func NewWorker(cfg config.RedisConfig, timeouts TimeoutHandler, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL)
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		timeouts: timeouts,
		log:      log,
	}

	mux.HandleFunc(TaskLeadDecisionTimeout, w.handleLeadDecisionTimeout)

	return w, nil
}

func (w *Worker) handleLeadDecisionTimeout(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadDecisionTimeoutPayload(task)
	if err != nil {
		return err
	}
	if payload.LeadID == "" {
		return nil
	}
	return w.timeouts.HandleTimeout(ctx, payload.LeadID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
