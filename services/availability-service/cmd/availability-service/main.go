package main

import (
	"context"
	"net/http"
	"time"

	"github.com/purelife/meetings/libs/config"
	"github.com/purelife/meetings/libs/db"
	"github.com/purelife/meetings/libs/httpx"
	otelx "github.com/purelife/meetings/libs/otel"
	"github.com/purelife/meetings/libs/runtime"
	"github.com/purelife/meetings/services/availability-service/internal/handlers"
	"github.com/purelife/meetings/services/availability-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "availability-service")
	port, err := config.Port("PORT", "8081")
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

	repo := storage.NewRepository(pool)
	handler := handlers.New(repo, logger, []byte(tokenSecret))

	mux := runtime.NewBaseMuxWithReady(
		runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)},
	)
	mux.HandleFunc("/api/v1/host/profile", handler.Profile)
	mux.HandleFunc("/api/v1/host/rules", handler.Rules)
	mux.HandleFunc("/api/v1/host/rules/toggle", handler.ToggleRule)
	mux.HandleFunc("/api/v1/host/rules/delete", handler.DeleteRule)
	mux.HandleFunc("/api/v1/host/exceptions", handler.Exceptions)
	mux.HandleFunc("/api/v1/host/exceptions/delete", handler.DeleteException)
	mux.HandleFunc("/internal/v1/day", handler.Day)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   []string{config.String("CONSOLE_ORIGIN", "")},
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           10 * time.Minute,
		}),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
		httpx.NewRateLimiter(config.Int("RATE_LIMIT_PER_MINUTE", 300), time.Minute).Middleware(),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "availability")
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
