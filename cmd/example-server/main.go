package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/HK-Mattew/go-limits/pkg/limits"
	"github.com/HK-Mattew/go-limits/pkg/storage"
	"github.com/HK-Mattew/go-limits/pkg/strategy"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	storageURI := env("STORAGE_URI", "memory://")
	strategyName := env("STRATEGY", "moving-window")
	rate := env("RATE_LIMIT", "10/minute")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := storage.NewFromURI(ctx, storageURI)
	cancel()
	if err != nil {
		logger.Fatal("storage setup failed", zap.String("uri", storageURI), zap.Error(err))
	}

	registry := prometheus.NewRegistry()
	limiter, err := strategy.New(strategyName, store,
		strategy.WithRecorder(strategy.NewPrometheusRecorder(registry)),
	)
	if err != nil {
		logger.Fatal("strategy setup failed", zap.String("strategy", strategyName), zap.Error(err))
	}

	item, err := limits.Parse(rate)
	if err != nil {
		logger.Fatal("invalid RATE_LIMIT", zap.String("rate", rate), zap.Error(err))
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		admitted, err := limiter.Hit(req.Context(), item, "ip", req.RemoteAddr)
		if err != nil {
			// Fail open: on a backend outage we prefer serving traffic over
			// dropping it.
			logger.Warn("limiter error", zap.Error(err))
		}

		stats, statsErr := limiter.GetWindowStats(req.Context(), item, "ip", req.RemoteAddr)
		if statsErr == nil {
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(item.Amount, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(stats.Remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(stats.Reset.Unix(), 10))
		}

		if err == nil && !admitted {
			if statsErr == nil {
				w.Header().Set("Retry-After", fmt.Sprintf("%.0f", time.Until(stats.Reset).Seconds()))
			}

			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte("Rate limit exceeded\n"))

			return
		}

		w.Write([]byte("Pong!\n"))
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !store.Check(req.Context()) {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:              env("LISTEN_ADDR", ":8080"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("storage", storageURI),
			zap.String("strategy", strategyName),
			zap.String("rate", item.String()),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}
