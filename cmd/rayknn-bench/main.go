// Command rayknn-bench measures k-NN query throughput and ray tracing over a
// tessellated solid. It is configured through RAYKNN_* environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hupe1980/rayknn"
	"github.com/hupe1980/rayknn/observability"
	"github.com/hupe1980/rayknn/resource"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "rayknn-bench:", err)
		os.Exit(1)
	}
}

func newLogger(cfg *Config) *rayknn.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	if cfg.LogFormat == "json" {
		return rayknn.NewJSONLogger(level)
	}
	return rayknn.NewTextLogger(level)
}

func resourceController(cfg *Config) *resource.Controller {
	return resource.NewController(resource.Config{
		MemoryLimitBytes:   cfg.MaxMemory,
		MaxBuildWorkers:    int64(cfg.Workers),
		IOLimitBytesPerSec: cfg.IOLimit,
	})
}

func run() error {
	var cfg Config
	if err := envconfig.Process("RAYKNN", &cfg); err != nil {
		return err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger(&cfg)
	slog.SetDefault(logger.Logger)

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewPrometheusCollector(reg, "rayknn")
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
	}

	opts := []rayknn.Option{
		rayknn.WithLogger(logger),
		rayknn.WithMetricsCollector(metrics),
		rayknn.WithResourceController(resourceController(&cfg)),
		rayknn.WithErrorHandler(func(code rayknn.ErrorCode, msg string) {
			logger.Error("engine error", "code", code.String(), "msg", msg)
		}),
	}

	knn, err := runKnn(ctx, &cfg, opts)
	if err != nil {
		return fmt.Errorf("knn: %w", err)
	}
	logger.Info("knn done",
		"points", knn.Points,
		"build", knn.Build,
		"queries", knn.Queries,
		"qps", fmt.Sprintf("%.0f", knn.QPS()),
		"found", knn.Found,
		"recall", fmt.Sprintf("%.4f", knn.Recall),
	)

	trace, err := runTrace(ctx, &cfg, opts)
	if err != nil {
		return fmt.Errorf("trace: %w", err)
	}
	logger.Info("trace done",
		"triangles", trace.Triangles,
		"build", trace.Build,
		"rays", trace.Stats.NumRays,
		"hits", trace.Stats.NumRayHits,
		"shadow_rays", trace.Stats.NumShadowRays,
		"occluded", trace.Stats.NumOccluded,
		"elapsed", trace.Elapsed,
	)
	return nil
}
