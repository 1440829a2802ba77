package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bryanwahyu/survey-insight/internal/bootstrap"
	"github.com/bryanwahyu/survey-insight/internal/config"
	"github.com/bryanwahyu/survey-insight/internal/infra/httpserver"
	"github.com/bryanwahyu/survey-insight/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := cfg.Logger()
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()

	// init ai client, sekali saja untuk seluruh proses
	client, err := bootstrap.AIClient(cfg)
	if err != nil {
		logger.Fatal("ai client init error", zap.Error(err))
	}

	metrics := middleware.NewMetrics()

	// init pipeline (+ minio archive kalau enabled)
	svc, store, err := bootstrap.Pipeline(ctx, cfg, client, metrics, logger)
	if err != nil {
		logger.Fatal("pipeline init error", zap.Error(err))
	}

	checkers := map[string]middleware.HealthChecker{}
	if store != nil {
		checkers["archive"] = store
	}

	// init router
	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		APIKeys:        cfg.Server.APIKeys,
		RateLimitRPS:   cfg.Server.RateLimit.RPS,
		RateLimitBurst: cfg.Server.RateLimit.Burst,
		Metrics:        metrics,
		Checkers:       checkers,
		Logger:         logger,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// run server
	go func() {
		logger.Info("server listening",
			zap.String("addr", addr),
			zap.String("provider", cfg.AI.Provider),
			zap.Int("concurrency", cfg.Pipeline.Concurrency),
			zap.String("failure_policy", cfg.Pipeline.FailurePolicy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	logger.Info("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
}
