package main

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/purelife/meetings/libs/config"
	"github.com/purelife/meetings/libs/db"
	"github.com/purelife/meetings/libs/httpx"
	"github.com/purelife/meetings/libs/kafkax"
	otelx "github.com/purelife/meetings/libs/otel"
	"github.com/purelife/meetings/libs/runtime"
	"github.com/purelife/meetings/services/booking-service/internal/calendar"
	"github.com/purelife/meetings/services/booking-service/internal/consumer"
	"github.com/purelife/meetings/services/booking-service/internal/handlers"
	"github.com/purelife/meetings/services/booking-service/internal/inbox"
	"github.com/purelife/meetings/services/booking-service/internal/notify"
	"github.com/purelife/meetings/services/booking-service/internal/outbox"
	"github.com/purelife/meetings/services/booking-service/internal/schedule"
	"github.com/purelife/meetings/services/booking-service/internal/storage"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8082")
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

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, int32(config.Int("DB_MAX_CONNS", 10)))
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	tokenSecret, err := config.RequiredString("AUTH_TOKEN_SECRET")
	if err != nil {
		panic(err)
	}

	var redisClient *redis.Client
	if addr := config.String("REDIS_ADDR", ""); addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
		})
		defer redisClient.Close()
	} else {
		logger.Warn("redis not configured; availability change signals disabled")
	}

	repo := storage.NewBookingRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	notifier := notify.NewNotifier(redisClient, logger)

	scheduleProvider := schedule.NewHTTPProvider(config.String("AVAILABILITY_BASE_URL", "http://availability-service:8081"))

	var busySource calendar.BusySource
	var eventWriter calendar.EventWriter
	googleClient, err := calendar.NewGoogleClient(
		config.String("GOOGLE_CLIENT_ID", ""),
		config.String("GOOGLE_CLIENT_SECRET", ""),
		config.String("GOOGLE_REDIRECT_URL", ""),
		repo,
	)
	if err != nil {
		logger.Warn("google calendar disabled", "err", err)
		noop := calendar.NewNoopClient()
		busySource, eventWriter = noop, noop
	} else {
		busySource, eventWriter = googleClient, googleClient
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: 2 * time.Second,
		BatchSize: 50,
	})
	go outboxPublisher.Run(ctx)

	inboxRepo := inbox.NewRepository(pool)
	syncConsumer := consumer.New(logger, inboxRepo, consumer.Config{
		Brokers: config.String("KAFKA_BROKERS", ""),
		GroupID: config.String("KAFKA_GROUP_ID", "booking-service"),
		Topic:   outbox.TopicCalendarSyncRequested,
	}, consumer.CalendarSyncHandler(logger, eventWriter))
	go syncConsumer.Run(ctx)

	bookingHandler := handlers.NewBookingHandler(repo, outboxRepo, logger, scheduleProvider, busySource, notifier, []byte(tokenSecret))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
		runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(config.String("KAFKA_BROKERS", ""))},
		runtime.ReadyCheck{Name: "redis", Check: notify.ReadyCheck(redisClient)},
	)
	mux.HandleFunc("/api/v1/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/v1/meetings", bookingHandler.List)
	mux.HandleFunc("/api/v1/meetings/book", bookingHandler.Create)
	mux.HandleFunc("/api/v1/meetings/cancel", bookingHandler.Cancel)

	middlewares := []httpx.Middleware{
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   []string{config.String("CONSOLE_ORIGIN", "")},
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "Idempotency-Key"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithBodyLimit(1 << 20),
	}
	if redisClient != nil {
		limiter := httpx.NewRedisRateLimiter(redisClient,
			config.Int("RATE_LIMIT_PER_MINUTE", 120),
			time.Minute,
			service,
		)
		middlewares = append(middlewares, limiter.Middleware(logger, true))
	}
	httpHandler := httpx.Chain(mux, middlewares...)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
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
