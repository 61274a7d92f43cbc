package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/billing"
	"github.com/noah-isme/virtual-office/internal/config"
	"github.com/noah-isme/virtual-office/internal/notify"
	"github.com/noah-isme/virtual-office/internal/obs"
	"github.com/noah-isme/virtual-office/internal/reminder"
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("component", "worker").Logger()
	obs.MustRegisterDomainMetrics("virtual_office", nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OTelEndpoint != "" {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   cfg.OTelServiceName + "-worker",
			Endpoint:      cfg.OTelEndpoint,
			SamplingRatio: cfg.OTelSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisOpts, redisClient := mustInitRedis(ctx, cfg, logger)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()

	job := &reminder.Job{
		Source:   billing.MockSource{},
		Sender:   &notify.Store{Client: redisClient, Prefix: cfg.RedisPrefix, Log: logger},
		Client:   redisClient,
		Prefix:   cfg.RedisPrefix,
		DedupTTL: cfg.ReminderDedupTTL,
		Log:      logger,
	}
	worker, err := reminder.NewWorker(reminder.WorkerConfig{
		RedisOpts:   asynq.RedisClientOpt{Addr: redisOpts.Addr, Username: redisOpts.Username, Password: redisOpts.Password, DB: redisOpts.DB},
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Job:         job,
		Cron:        cfg.ReminderCron,
		Payload:     reminder.Payload{Usernames: []string{cfg.ClientUsername}, WindowDays: cfg.ReminderWindow},
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise worker")
	}

	logger.Info().Str("cron", cfg.ReminderCron).Msg("worker starting")
	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker stopped with error")
	} else {
		logger.Info().Msg("worker shutdown complete")
	}
}

func mustInitRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Options, *redis.Client) {
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}
	return redisOpts, redisClient
}
