package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/virtual-office/internal/audit"
	"github.com/noah-isme/virtual-office/internal/auth"
	"github.com/noah-isme/virtual-office/internal/billing"
	"github.com/noah-isme/virtual-office/internal/cache"
	"github.com/noah-isme/virtual-office/internal/calls"
	"github.com/noah-isme/virtual-office/internal/commission"
	"github.com/noah-isme/virtual-office/internal/common"
	"github.com/noah-isme/virtual-office/internal/config"
	"github.com/noah-isme/virtual-office/internal/health"
	"github.com/noah-isme/virtual-office/internal/lock"
	"github.com/noah-isme/virtual-office/internal/notify"
	"github.com/noah-isme/virtual-office/internal/obs"
	"github.com/noah-isme/virtual-office/internal/payment"
	"github.com/noah-isme/virtual-office/internal/promotion"
	"github.com/noah-isme/virtual-office/internal/ratelimit"
	"github.com/noah-isme/virtual-office/internal/reminder"
	"github.com/noah-isme/virtual-office/internal/security"
)

const (
	metricsNamespace = "virtual_office"
	commissionRows   = 20
	dueClientRows    = 20
)

func main() {
	cfg := config.MustLoad()

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracingEnabled := cfg.OTelEndpoint != ""
	if tracingEnabled {
		shutdown, err := obs.InitTracer(ctx, obs.TracingConfig{
			ServiceName:   cfg.OTelServiceName,
			Endpoint:      cfg.OTelEndpoint,
			SamplingRatio: cfg.OTelSampleRatio,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancel()
		logger.Fatal().Err(err).Msg("ping redis")
	}
	cancel()

	taskClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Username: redisOpts.Username, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := taskClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close task client")
		}
	}()

	locker := lock.Locker{Client: redisClient, Prefix: cfg.RedisPrefix, TTL: cfg.LockTTL}

	authService, err := auth.NewService(auth.Config{
		Secret:         cfg.JWTSecret,
		AccessTokenTTL: cfg.AccessTokenTTL,
		Accounts:       accounts(cfg),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	csrf := security.CSRF{SessionCookie: cfg.AccessCookieName, Secure: cfg.CookieSecure}
	authHandler := &auth.Handler{
		Service:          authService,
		AccessCookieName: cfg.AccessCookieName,
		CookieSecure:     cfg.CookieSecure,
		CookieSameSite:   cfg.CookieSameSite,
		OnLogin:          func(w http.ResponseWriter) { csrf.Issue(w) },
	}
	authMiddleware := auth.Middleware{Service: authService, AccessCookie: cfg.AccessCookieName}
	loginLimit := ratelimit.Handler{
		Limiter: ratelimit.Limiter{Client: redisClient, Prefix: cfg.RedisPrefix},
		Config:  ratelimit.Config{Key: ratelimit.KeyByClientIP("login"), Window: cfg.LoginRateWindow, Max: cfg.LoginRateMax},
		OnError: func(err error) { logger.Warn().Err(err).Msg("login rate limiter unavailable") },
		OnLimited: func(*http.Request) {
			if obs.LoginAttemptsTotal != nil {
				obs.LoginAttemptsTotal.WithLabelValues("rate_limited").Inc()
			}
		},
	}

	cardStore := &payment.Store{Client: redisClient, Locker: locker, Prefix: cfg.RedisPrefix, Log: logger}
	paymentHandler := &payment.Handler{Store: cardStore}
	billingSource := billing.MockSource{}
	billingHandler := &billing.Handler{Svc: &billing.Service{
		Source:    billingSource,
		Processor: payment.MockProcessor{},
		Log:       logger,
	}}
	callsHandler := &calls.Handler{Svc: &calls.Service{
		Cache: &cache.JSON{Client: redisClient, Prefix: cfg.RedisPrefix, TTL: cfg.CallsCacheTTL},
		Log:   logger,
	}}
	notifyStore := &notify.Store{Client: redisClient, Prefix: cfg.RedisPrefix, Log: logger}
	notifyHandler := &notify.Handler{Store: notifyStore}
	promotionHandler := &promotion.Handler{Svc: &promotion.Service{
		Repo:   &promotion.RedisRepository{Client: redisClient, Prefix: cfg.RedisPrefix, Log: logger},
		Locker: locker,
		Log:    logger,
	}}
	commissionHandler := &commission.Handler{Ledger: commission.NewLedger(commission.Mock(commissionRows, time.Now().UTC()))}
	reminderHandler := &reminder.Handler{
		Clients:   func(now time.Time) []reminder.DueClient { return reminder.MockDueClients(now, dueClientRows) },
		Queue:     taskClient,
		Usernames: []string{cfg.ClientUsername},
		Window:    cfg.ReminderWindow,
	}

	auditService := &audit.Service{Client: redisClient, Prefix: cfg.RedisPrefix, Log: logger}
	auditRecorder := audit.HTTPRecorder{
		Service: auditService,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit entry") },
	}

	seed(ctx, logger, cfg, cardStore, notifyStore)

	idem := common.Idempotency{Client: redisClient, Prefix: cfg.RedisPrefix, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if cfg.MetricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Content-Disposition", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	headers := security.Headers{HSTSSubdomains: true}
	if cfg.IsProduction() {
		headers.HSTSMaxAge = 365 * 24 * time.Hour
	}
	r.Use(headers.Middleware)
	r.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	healthHandler := health.Handler{Probes: map[string]health.Probe{"redis": health.RedisProbe(redisClient)}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(csrf.Middleware)

		v.Route("/auth", func(a chi.Router) {
			a.With(loginLimit.Middleware).Post("/login", authHandler.Login)
			a.Post("/logout", authHandler.Logout)
			a.With(authMiddleware.RequireAuth).Get("/me", authHandler.Me)
		})

		v.Group(func(client chi.Router) {
			client.Use(authMiddleware.RequireAuth)

			client.Route("/billing", func(b chi.Router) {
				b.Get("/invoices", billingHandler.ListInvoices)
				b.Get("/invoices/{id}", billingHandler.GetInvoice)
				b.Post("/quote", billingHandler.Quote)
				b.With(idem.Middleware).Post("/pay", billingHandler.Pay)
			})

			client.Route("/calls", func(c chi.Router) {
				c.Get("/", callsHandler.List)
				c.Get("/analytics", callsHandler.Analytics)
				c.Get("/export.csv", callsHandler.Export)
			})

			client.Route("/payment-methods", func(p chi.Router) {
				p.Get("/", paymentHandler.List)
				p.With(idem.Middleware).Post("/", paymentHandler.Add)
				p.Delete("/{id}", paymentHandler.Remove)
				p.Post("/{id}/default", paymentHandler.SetDefault)
			})

			client.Route("/notifications", func(n chi.Router) {
				n.Get("/", notifyHandler.Inbox)
				n.Post("/read-all", notifyHandler.MarkAllRead)
				n.Post("/{id}/read", notifyHandler.MarkRead)
			})
		})

		v.Route("/admin", func(admin chi.Router) {
			admin.Use(authMiddleware.RequireAuth)
			admin.Use(auth.RequireRole(auth.RoleAdmin))
			admin.Use(auditRecorder.Middleware)

			admin.Route("/promotions", func(p chi.Router) {
				p.Get("/", promotionHandler.List)
				p.Post("/", promotionHandler.Create)
				p.Get("/generate-code", promotionHandler.GenerateCode)
				p.Post("/preview", promotionHandler.Preview)
				p.Put("/{id}", promotionHandler.Update)
				p.Delete("/{id}", promotionHandler.Delete)
				p.Post("/{id}/toggle", promotionHandler.Toggle)
			})

			admin.Route("/commissions", func(c chi.Router) {
				c.Get("/", commissionHandler.List)
				c.Get("/export.csv", commissionHandler.Export)
				c.With(idem.Middleware).Post("/pay", commissionHandler.Pay)
				c.Get("/{id}", commissionHandler.Get)
				c.Post("/{id}/unpay", commissionHandler.Unpay)
			})

			admin.Route("/notifications", func(n chi.Router) {
				n.Get("/", notifyHandler.Sent)
				n.With(idem.Middleware).Post("/", notifyHandler.Send)
				n.Delete("/{id}", notifyHandler.Delete)
			})

			admin.Get("/reminders", reminderHandler.List)
			admin.Post("/reminders/run", reminderHandler.Run)
			admin.Get("/audit", audit.Handler{Service: auditService}.List)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("server stopped")
}

func accounts(cfg *config.Config) []auth.Account {
	var out []auth.Account
	if cfg.ClientPasswordHash != "" {
		out = append(out, auth.Account{Username: cfg.ClientUsername, Name: cfg.ClientName, Role: auth.RoleClient, PasswordHash: cfg.ClientPasswordHash})
	}
	if cfg.AdminPasswordHash != "" {
		out = append(out, auth.Account{Username: cfg.AdminUsername, Name: "Administrator", Role: auth.RoleAdmin, PasswordHash: cfg.AdminPasswordHash})
	}
	return out
}

// seed loads demo data on first boot. Existing data is left untouched.
func seed(ctx context.Context, logger zerolog.Logger, cfg *config.Config, cards *payment.Store, notifications *notify.Store) {
	if err := cards.Seed(ctx, cfg.ClientUsername, payment.DemoCards()); err != nil {
		logger.Error().Err(err).Msg("seed payment methods")
	}
	if err := notifications.Seed(ctx, notify.Defaults(time.Now().UTC())); err != nil {
		logger.Error().Err(err).Msg("seed notifications")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	origins := make([]string, 0, len(cfg.CORSAllowedOrigins))
	for _, o := range cfg.CORSAllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	if len(origins) == 0 {
		return []string{"http://localhost:5173"}
	}
	return origins
}
