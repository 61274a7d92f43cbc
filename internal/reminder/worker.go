package reminder

import (
	"context"
	"errors"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/obs"
)

// WorkerConfig collects what the asynq worker needs.
type WorkerConfig struct {
	RedisOpts   asynq.RedisClientOpt
	Logger      zerolog.Logger
	Concurrency int
	Job         *Job
	// Cron schedules a reminder run when non-empty.
	Cron    string
	Payload Payload
}

// Worker wraps the asynq server and the reminder scheduler.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	scheduler *asynq.Scheduler
	log       zerolog.Logger
}

// NewWorker builds the server, registers handlers and the cron entry.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Job == nil {
		return nil, errors.New("reminder worker: job not configured")
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 5
	}
	srv := asynq.NewServer(cfg.RedisOpts, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{QueueDefault: 1},
	})
	mux := asynq.NewServeMux()
	mux.Use(obs.TaskTracing)
	mux.HandleFunc(TaskDueReminder, cfg.Job.Handle)

	var scheduler *asynq.Scheduler
	if cfg.Cron != "" {
		task, err := NewDueReminderTask(cfg.Payload)
		if err != nil {
			return nil, err
		}
		scheduler = asynq.NewScheduler(cfg.RedisOpts, &asynq.SchedulerOpts{Location: time.UTC})
		if _, err := scheduler.Register(cfg.Cron, task, asynq.Queue(QueueDefault)); err != nil {
			return nil, err
		}
	}
	return &Worker{server: srv, mux: mux, scheduler: scheduler, log: cfg.Logger}, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.scheduler != nil {
		if err := w.scheduler.Start(); err != nil {
			return err
		}
		w.log.Info().Msg("reminder scheduler started")
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- w.server.Run(w.mux)
	}()
	select {
	case <-ctx.Done():
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		w.server.Shutdown()
		return ctx.Err()
	case err := <-errCh:
		if w.scheduler != nil {
			w.scheduler.Shutdown()
		}
		return err
	}
}
