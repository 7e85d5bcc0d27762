package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"crs-prediction-api/config"
	"crs-prediction-api/forecast"
	"crs-prediction-api/handlers"
	"crs-prediction-api/logger"
	"crs-prediction-api/middleware"
	"crs-prediction-api/services"
	"crs-prediction-api/store"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Official data
	loader, closeStore, err := store.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open store", "driver", cfg.Database.Driver, "error", err)
	}
	defer closeStore()

	// Redis is optional for the api: without it responses are not cached
	// and the live socket is disabled.
	cache, err := services.NewCacheService(cfg.Redis, log)
	if err != nil {
		log.Warn("Running without redis", "error", err)
	}
	defer cache.Close()

	composer := forecast.NewComposer(buildGenerator(cfg.Forecast, log), cfg.Forecast.Timeout, log)
	predictions := services.NewPredictionService(loader, composer, log)

	router := newRouter(cfg, predictions, loader, cache, log)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("Starting server", "addr", server.Addr, "store", cfg.Database.Driver, "cache", cache.Available())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown failed", "error", err)
	}
}

// buildGenerator returns nil when no API key is configured; the composer
// then always serves the statistical forecast.
func buildGenerator(cfg config.ForecastConfig, log *logger.Logger) forecast.Generator {
	client, err := services.NewGeminiClient(cfg)
	if err != nil {
		log.Warn("AI forecasting disabled", "error", err)
		return nil
	}
	return services.NewBreakerGenerator(client, log)
}

func newRouter(cfg *config.Config, svc handlers.ReportService, loader store.Loader, cache *services.CacheService, log *logger.Logger) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.SetupCORS(cfg.CORS))

	router.GET("/health", handlers.Health(cache))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	predictionHandler := handlers.NewPredictionHandler(svc, cache, cfg.Forecast.CacheTTL, log)
	drawsHandler := handlers.NewDrawsHandler(loader, cache)

	api := router.Group("/api/v1")
	{
		api.GET("/predictions", predictionHandler.GetPredictions)
		api.GET("/statistics", predictionHandler.GetStatistics)
		api.GET("/draws", drawsHandler.GetDraws)
	}

	router.GET("/ws/predictions", handlers.LivePredictions(cache, log))

	return router
}
