package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crs-prediction-api/config"
	"crs-prediction-api/forecast"
	"crs-prediction-api/logger"
	"crs-prediction-api/metrics"
	"crs-prediction-api/models"
	"crs-prediction-api/services"
	"crs-prediction-api/store"
)

const (
	triggerStartup = "startup"
	triggerTicker  = "ticker"
	triggerDraws   = "draws"
)

type reportSource interface {
	Predict(ctx context.Context) (*models.PredictionReport, error)
}

// reportSink is the part of services.CacheService the worker writes to.
type reportSink interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Publish(ctx context.Context, channel string, message interface{}) error
}

type worker struct {
	svc reportSource
	out reportSink
	ttl time.Duration
	log *logger.Logger
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	loader, closeStore, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatal("store open failed", "driver", cfg.Database.Driver, "error", err)
	}
	defer closeStore()

	// Redis (required: the worker exists to publish)
	cache, err := services.NewCacheService(cfg.Redis, log)
	if err != nil {
		log.Fatal("redis unavailable", "error", err)
	}
	defer cache.Close()
	log.Info("redis connected", "addr", cfg.Redis.Addr())

	var gen forecast.Generator
	if client, err := services.NewGeminiClient(cfg.Forecast); err != nil {
		log.Warn("AI forecasting disabled", "error", err)
	} else {
		gen = services.NewBreakerGenerator(client, log)
	}
	composer := forecast.NewComposer(gen, cfg.Forecast.Timeout, log)

	w := &worker{
		svc: services.NewPredictionService(loader, composer, log),
		out: cache,
		ttl: cfg.Forecast.CacheTTL,
		log: log,
	}

	// HTTP health + metrics
	go serveHTTP(cfg.Metrics.Addr, log)

	pubsub := cache.Subscribe(ctx, services.ChannelDraws)
	defer pubsub.Close()
	draws := pubsub.Channel()

	log.Info("predictor running", "interval", cfg.Predictor.Interval, "store", cfg.Database.Driver, "ai", gen != nil)

	// Run first cycle immediately
	w.runCycle(ctx, triggerStartup)

	ticker := time.NewTicker(cfg.Predictor.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.runCycle(ctx, triggerTicker)
		case msg, ok := <-draws:
			if !ok {
				log.Warn("draws subscription closed")
				draws = nil
				continue
			}
			log.Info("new draws announced", "payload", msg.Payload)
			w.runCycle(ctx, triggerDraws)
			ticker.Reset(cfg.Predictor.Interval)
		case <-ctx.Done():
			log.Info("predictor shutting down")
			return
		}
	}
}

// runCycle computes a fresh report, stores it under the shared key and
// broadcasts it. It reports whether the report was published.
func (w *worker) runCycle(ctx context.Context, trigger string) bool {
	start := time.Now()

	report, err := w.svc.Predict(ctx)
	if err != nil {
		metrics.PredictorCycles.WithLabelValues(trigger, "failed").Inc()
		w.log.Error("prediction cycle failed", "trigger", trigger, "error", err)
		return false
	}

	if err := w.out.Set(ctx, services.PredictionKey, report, w.ttl); err != nil {
		w.log.Warn("store latest report failed", "key", services.PredictionKey, "error", err)
	}
	if err := w.out.Publish(ctx, services.ChannelPredictions, report); err != nil {
		metrics.PredictorCycles.WithLabelValues(trigger, "unpublished").Inc()
		w.log.Error("publish report failed", "channel", services.ChannelPredictions, "error", err)
		return false
	}
	metrics.PredictionsPublished.Inc()
	metrics.PredictorCycles.WithLabelValues(trigger, "published").Inc()

	w.log.Info("prediction cycle completed",
		"trigger", trigger,
		"categories", len(report.Predictions),
		"forecast_source", report.ForecastSource,
		"elapsed", time.Since(start))
	return true
}

func serveHTTP(addr string, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	log.Info("metrics server listening", "addr", addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("metrics server failed", "error", err)
	}
}
