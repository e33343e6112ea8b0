package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"brpl/internal/backend"
	dashboardhandler "brpl/internal/dashboard/handler"
	dashboardservice "brpl/internal/dashboard/service"
	jwttoken "brpl/internal/jwt_token"
	loginhandler "brpl/internal/login/handler"
	loginservice "brpl/internal/login/service"
	loginstore "brpl/internal/login/store"
	"brpl/internal/payment"
	"brpl/internal/platform/config"
	"brpl/internal/platform/httpserver"
	"brpl/internal/platform/logger"
	"brpl/internal/platform/metrics"
	redisplatform "brpl/internal/platform/redis"
	ratelimitmw "brpl/internal/ratelimit/middleware"
	ratelimitmodels "brpl/internal/ratelimit/models"
	ratelimitstore "brpl/internal/ratelimit/store"
	trackinghandler "brpl/internal/tracking/handler"
	trackingservice "brpl/internal/tracking/service"
	trackingstore "brpl/internal/tracking/store"
	httptransport "brpl/internal/transport/http"
	wizardhandler "brpl/internal/wizard/handler"
	wizardservice "brpl/internal/wizard/service"
	wizardstore "brpl/internal/wizard/store"
	audit "brpl/pkg/platform/audit"
	auditpublisher "brpl/pkg/platform/audit/publisher"
	kafkastore "brpl/pkg/platform/audit/store/kafka"
	auditmemory "brpl/pkg/platform/audit/store/memory"
	"brpl/pkg/platform/circuit"
	"brpl/pkg/platform/middleware/metadata"
)

const (
	sessionAudience  = "brpl-dashboards"
	sweepInterval    = time.Minute
	auditBufferSize  = 1024
	kafkaPartitions  = 3
	kafkaReplication = 1
	startupTimeout   = 15 * time.Second
	shutdownTimeout  = 15 * time.Second
)

// main wires dependencies, exposes the HTTP router and drains background
// work on shutdown. Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server)
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log, m); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics) error {
	startCtx, cancelStart := context.WithTimeout(ctx, startupTimeout)
	defer cancelStart()

	healthChecks := map[string]httptransport.HealthCheck{}

	redisClient, err := redisplatform.New(startCtx, cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthChecks["redis"] = redisClient.Health
		log.Info("redis connected")
	} else {
		log.Info("redis not configured, using in-memory stores")
	}

	auditSink, kafka, err := buildAuditSink(startCtx, cfg.Kafka, log)
	if err != nil {
		return err
	}
	if kafka != nil {
		healthChecks["kafka"] = kafka.Ping
	}
	auditPub := auditpublisher.NewPublisher(auditSink,
		auditpublisher.WithAsyncBuffer(auditBufferSize),
		auditpublisher.WithLogger(log),
	)

	breaker := circuit.New("backend",
		circuit.WithFailureThreshold(cfg.Backend.BreakerThreshold),
		circuit.WithCooldown(cfg.Backend.BreakerCooldown),
	)
	api := backend.New(cfg.Backend.BaseURL,
		backend.WithBreaker(breaker),
		backend.WithMetrics(m),
		backend.WithLogger(log),
	)
	gateway := payment.NewRazorpay(payment.Config{
		KeyID:        cfg.Payment.KeyID,
		ScriptURL:    cfg.Payment.ScriptURL,
		MerchantName: cfg.Payment.MerchantName,
		Description:  cfg.Payment.Description,
		ThemeColor:   cfg.Payment.ThemeColor,
	}, payment.WithLogger(log))

	// Visit tracking
	var visits trackingservice.Store = trackingstore.NewInMemory(cfg.Tracking.TTL)
	if redisClient != nil {
		visits = trackingstore.NewRedis(redisClient.Client, cfg.Tracking.TTL)
	}
	tracking, err := trackingservice.New(visits, api,
		trackingservice.WithLogger(log),
		trackingservice.WithMetrics(m),
		trackingservice.WithAuditPublisher(auditPub),
	)
	if err != nil {
		return err
	}

	// Registration wizard. Sessions hold live checkouts and locks, so they
	// stay in process memory.
	wizards, err := wizardstore.New[*wizardservice.Wizard](cfg.Wizard.SessionTTL,
		wizardstore.WithEvictHook(m.DecrementSessionsActive),
	)
	if err != nil {
		return err
	}
	bgCtx, cancelBg := context.WithCancel(ctx)
	defer cancelBg()
	go wizards.RunSweeper(bgCtx, sweepInterval)

	wizardSvc, err := wizardservice.New(wizards, api, gateway,
		wizardservice.WithLogger(log),
		wizardservice.WithMetrics(m),
		wizardservice.WithAuditPublisher(auditPub),
		wizardservice.WithRequestedAmount(cfg.Payment.RequestedAmount),
	)
	if err != nil {
		return err
	}

	// Partner and admin login
	jwt := jwttoken.NewJWTService(cfg.Session.SigningKey, cfg.Session.Issuer, sessionAudience)
	validator := jwttoken.NewJWTServiceAdapter(jwt)
	var logins loginservice.Store
	if redisClient != nil {
		logins = loginstore.NewRedis(redisClient.Client)
	} else {
		mem := loginstore.NewInMemory()
		go sweepLogins(bgCtx, mem, log)
		logins = mem
	}
	loginSvc, err := loginservice.New(api, jwt, logins,
		loginservice.WithLogger(log),
		loginservice.WithMetrics(m),
		loginservice.WithAuditPublisher(auditPub),
		loginservice.WithSessionTTL(cfg.Session.TTL),
	)
	if err != nil {
		return err
	}
	dashboardSvc, err := dashboardservice.New(api, loginSvc, log)
	if err != nil {
		return err
	}

	trustedProxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	limiter := buildRateLimiter(bgCtx, cfg.RateLimit, redisClient, log, m)
	limit := limiter.RateLimit

	router := httptransport.NewRouter(httptransport.Config{
		Logger:  log,
		Metrics: m,
		Handlers: []httptransport.Registrar{
			httptransport.Limited(
				trackinghandler.New(tracking, log, cfg.Tracking.TTL, cfg.Server.IsProduction()),
				limit(ratelimitmodels.ClassTrack)),
			httptransport.Limited(
				wizardhandler.New(wizardSvc, tracking, log,
					wizardhandler.WithOTPLimiter(limit(ratelimitmodels.ClassOTP))),
				limit(ratelimitmodels.ClassWizard)),
			httptransport.Limited(loginhandler.New(loginSvc, validator, log), limit(ratelimitmodels.ClassLogin)),
			httptransport.Limited(dashboardhandler.New(dashboardSvc, validator, log), limit(ratelimitmodels.ClassAdmin)),
		},
		HealthChecks:   healthChecks,
		TrustedProxies: trustedProxies,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting brpl gateway", "addr", cfg.Server.Addr, "env", cfg.Server.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	cancelBg()
	if err := tracking.Wait(shutdownCtx); err != nil {
		log.Warn("visit forwards still pending at shutdown", "error", err)
	}
	auditPub.Close()
	if kafka != nil {
		if err := kafka.Close(shutdownCtx); err != nil {
			log.Warn("kafka close failed", "error", err)
		}
	}
	return nil
}

// buildAuditSink keeps events in memory and, when brokers are configured,
// also produces them to Kafka.
func buildAuditSink(ctx context.Context, cfg config.KafkaConfig, log *slog.Logger) (audit.Store, *kafkastore.Store, error) {
	mem := auditmemory.NewInMemoryStore()
	if len(cfg.Brokers) == 0 {
		log.Info("kafka not configured, audit events stay in memory")
		return mem, nil, nil
	}
	kafka, err := kafkastore.New(cfg.Brokers, cfg.EventsTopic)
	if err != nil {
		return nil, nil, err
	}
	if err := kafka.EnsureTopic(ctx, kafkaPartitions, kafkaReplication); err != nil {
		log.Warn("kafka topic bootstrap failed", "topic", cfg.EventsTopic, "error", err)
	}
	log.Info("audit events produced to kafka", "topic", cfg.EventsTopic)
	return audit.Tee{mem, kafka}, kafka, nil
}

// buildRateLimiter shares counters through Redis when it is configured so
// every instance enforces the same budget.
func buildRateLimiter(ctx context.Context, cfg config.RateLimitConfig, client *redisplatform.Client, log *slog.Logger, m *metrics.Metrics) *ratelimitmw.Middleware {
	limits := map[ratelimitmodels.EndpointClass]ratelimitmodels.Limit{
		ratelimitmodels.ClassTrack:  {Requests: cfg.TrackLimit, Window: cfg.Window},
		ratelimitmodels.ClassWizard: {Requests: cfg.WizardLimit, Window: cfg.Window},
		ratelimitmodels.ClassOTP:    {Requests: cfg.OTPLimit, Window: cfg.OTPWindow},
		ratelimitmodels.ClassLogin:  {Requests: cfg.LoginLimit, Window: cfg.Window},
		ratelimitmodels.ClassAdmin:  {Requests: cfg.AdminLimit, Window: cfg.Window},
	}
	var store ratelimitmw.Store
	if client != nil {
		store = ratelimitstore.NewRedis(client.Client)
	} else {
		mem := ratelimitstore.NewInMemoryBucketStore()
		go sweepBuckets(ctx, mem, max(cfg.Window, cfg.OTPWindow))
		store = mem
	}
	return ratelimitmw.New(store, limits, log,
		ratelimitmw.WithMetrics(m),
		ratelimitmw.WithDisabled(cfg.Disabled),
	)
}

func sweepBuckets(ctx context.Context, store *ratelimitstore.InMemoryBucketStore, window time.Duration) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			store.Sweep(window)
		}
	}
}

func sweepLogins(ctx context.Context, store *loginstore.InMemoryStore, log *slog.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, _ := store.DeleteExpired(ctx); n > 0 {
				log.Debug("expired login sessions removed", "count", n)
			}
		}
	}
}
