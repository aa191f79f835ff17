package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vetcare/vetcare/libs/auth"
	"github.com/vetcare/vetcare/libs/config"
	"github.com/vetcare/vetcare/libs/db"
	"github.com/vetcare/vetcare/libs/grpcx"
	"github.com/vetcare/vetcare/libs/httpx"
	"github.com/vetcare/vetcare/libs/kafkax"
	otelx "github.com/vetcare/vetcare/libs/otel"
	"github.com/vetcare/vetcare/libs/runtime"
	"github.com/vetcare/vetcare/services/clinic-service/internal/billing"
	"github.com/vetcare/vetcare/services/clinic-service/internal/booking"
	"github.com/vetcare/vetcare/services/clinic-service/internal/catalog"
	"github.com/vetcare/vetcare/services/clinic-service/internal/handlers"
	"github.com/vetcare/vetcare/services/clinic-service/internal/identity"
	"github.com/vetcare/vetcare/services/clinic-service/internal/jobs"
	"github.com/vetcare/vetcare/services/clinic-service/internal/migrations"
	"github.com/vetcare/vetcare/services/clinic-service/internal/notify"
	"github.com/vetcare/vetcare/services/clinic-service/internal/outbox"
	"github.com/vetcare/vetcare/services/clinic-service/internal/payhere"
	"github.com/vetcare/vetcare/services/clinic-service/internal/storage"
)

func main() {
	_ = config.LoadDotEnv()
	service := config.String("SERVICE_NAME", "clinic-service")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	if dsn := strings.TrimSpace(config.String("SENTRY_DSN", "")); dsn != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         dsn,
			Environment: config.String("APP_ENV", "development"),
			ServerName:  service,
		}); err != nil {
			logger.Error("sentry init failed", "err", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	if config.Bool("MIGRATIONS_AUTO", true) {
		if err := db.Migrate(logger, dbURL, migrations.FS, migrations.Dir); err != nil {
			logger.Error("migrations failed", "err", err)
			panic(err)
		}
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()
	store := storage.New(pool)

	jwtSecret, err := config.RequiredString("JWT_SECRET")
	if err != nil {
		panic(err)
	}
	signer, err := auth.NewSigner(jwtSecret, service, config.Duration("ACCESS_TOKEN_TTL", auth.DefaultAccessTTL))
	if err != nil {
		panic(err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := httpx.NewMetrics("vetcare", reg)

	var rdb *redis.Client
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
	}

	var cache catalog.Cache
	if rdb != nil {
		cache = rdb
	}
	clinicCatalog := catalog.New(cache, store, config.Duration("CATALOG_CACHE_TTL", 5*time.Minute), logger)

	renderer, err := notify.NewRenderer()
	if err != nil {
		panic(err)
	}
	baseURL := config.String("PUBLIC_BASE_URL", "http://localhost:"+port)
	dispatcher := notify.NewDispatcher(emailSender(logger), smsSender(logger), renderer, logger, notify.DispatcherConfig{
		Timeout:    config.Duration("NOTIFY_TIMEOUT", 10*time.Second),
		BaseURL:    baseURL,
		Registerer: reg,
	})

	stripeBilling := billing.New(billing.Config{
		SecretKey:     config.String("STRIPE_SECRET_KEY", ""),
		WebhookSecret: config.String("STRIPE_WEBHOOK_SECRET", ""),
		PriceStarter:  config.String("STRIPE_PRICE_STARTER", ""),
		PricePro:      config.String("STRIPE_PRICE_PRO", ""),
		SuccessURL:    config.String("STRIPE_SUCCESS_URL", baseURL+"/dashboard/settings?billing=success"),
		CancelURL:     config.String("STRIPE_CANCEL_URL", baseURL+"/dashboard/settings?billing=cancelled"),
	}, store, logger)

	payhereCfg := payhere.Config{
		MerchantID:     config.String("PAYHERE_MERCHANT_ID", ""),
		MerchantSecret: config.String("PAYHERE_MERCHANT_SECRET", ""),
		CheckoutURL:    config.String("PAYHERE_CHECKOUT_URL", payhere.DefaultCheckoutURL),
		ReturnURL:      config.String("PAYHERE_RETURN_URL", baseURL+"/patient/appointments?payment=return"),
		CancelURL:      config.String("PAYHERE_CANCEL_URL", baseURL+"/patient/appointments?payment=cancelled"),
		NotifyURL:      config.String("PAYHERE_NOTIFY_URL", baseURL+"/api/webhooks/payhere"),
	}
	if !payhereCfg.Enabled() {
		logger.Warn("payhere not configured; bookings will not request payment")
	}

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository(pool)
	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	runner := jobs.NewRunner(logger, time.Minute)
	if err := runner.Add("invitation-sweep", config.String("INVITATION_SWEEP_SPEC", "@every 15m"),
		jobs.InvitationSweep(store, logger, nil)); err != nil {
		panic(err)
	}
	if err := runner.Add("outbox-backlog", config.String("OUTBOX_BACKLOG_SPEC", "@every 1m"),
		jobs.OutboxBacklog(outboxRepo, reg)); err != nil {
		panic(err)
	}
	go runner.Run(ctx)

	h := handlers.New(handlers.Deps{
		Store:    store,
		Booking:  booking.NewService(store, config.Duration("SLOT_STEP", 15*time.Minute)),
		Notifier: dispatcher,
		Catalog:  clinicCatalog,
		Billing:  stripeBilling,
		Tokens:   signer,
		Metrics:  handlers.NewMetrics(reg),
		Logger:   logger,
		Config: handlers.Config{
			RefreshTTL:   config.Duration("REFRESH_TOKEN_TTL", 30*24*time.Hour),
			CookieSecure: config.Bool("COOKIE_SECURE", true),
			PayHere:      payhereCfg,
		},
	})

	readyChecks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if publisher.Enabled() {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		readyChecks = append(readyChecks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(readyChecks...)
	mux.Handle("GET /metrics", httpMetrics.Handler())
	h.Routes(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,PATCH,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id,Idempotency-Key"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", true),
			MaxAge:           config.Duration("CORS_MAX_AGE", 10*time.Minute),
		}),
		httpx.WithSecurityHeaders,
		httpx.WithRequestID,
		identity.Resolve(signer, logger),
		httpx.WithAccessLog(logger, identity.LogAttrs),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 15*time.Second)),
		rateLimiter(rdb, logger),
		identity.Gate,
		httpMetrics.Middleware(handlers.RouteLabel),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if grpcPort := strings.TrimSpace(config.String("GRPC_PORT", "")); grpcPort != "" {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			panic(err)
		}
		hs := grpcx.NewHealthServer(logger, service, db.ReadyCheck(pool), 10*time.Second)
		go func() {
			if err := hs.Serve(ctx, lis); err != nil {
				logger.Error("grpc server error", "err", err)
			}
		}()
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

func rateLimiter(rdb *redis.Client, logger *slog.Logger) httpx.Middleware {
	limit := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if limit <= 0 {
		logger.Info("rate limiting disabled")
		return nil
	}
	if rdb != nil {
		rl := httpx.NewRedisRateLimiter(rdb, limit, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		logger.Info("rate limiting enabled (redis)", "per_minute", limit)
		return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}
	logger.Info("rate limiting enabled (in-memory)", "per_minute", limit)
	return httpx.NewRateLimiter(limit, time.Minute).Middleware()
}

func emailSender(logger *slog.Logger) notify.EmailSender {
	from := config.String("SMTP_FROM", "VetCare <no-reply@vetcare.local>")
	switch strings.ToLower(config.String("EMAIL_PROVIDER", "log")) {
	case "smtp":
		return notify.NewSMTPSender(config.String("SMTP_HOST", "localhost"), config.String("SMTP_PORT", "1025"), from)
	case "api":
		return notify.NewAPISender(config.String("EMAIL_API_URL", ""), config.String("EMAIL_API_KEY", ""), from)
	default:
		return notify.NewLogEmailSender(logger)
	}
}

func smsSender(logger *slog.Logger) notify.SMSSender {
	switch strings.ToLower(config.String("SMS_PROVIDER", "noop")) {
	case "webhook":
		return notify.NewWebhookSender(config.String("SMS_API_URL", ""), config.String("SMS_API_TOKEN", ""))
	default:
		return notify.NewNoopSender(logger)
	}
}
