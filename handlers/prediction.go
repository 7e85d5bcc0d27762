package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"crs-prediction-api/logger"
	"crs-prediction-api/models"
	"crs-prediction-api/services"
	"crs-prediction-api/store"
)

// ReportService is what the prediction routes need from
// services.PredictionService.
type ReportService interface {
	Predict(ctx context.Context) (*models.PredictionReport, error)
	Statistics(ctx context.Context) (*models.StatisticsReport, error)
}

type PredictionHandler struct {
	svc   ReportService
	cache *services.CacheService
	ttl   time.Duration
	log   *logger.Logger
}

func NewPredictionHandler(svc ReportService, cache *services.CacheService, ttl time.Duration, log *logger.Logger) *PredictionHandler {
	return &PredictionHandler{svc: svc, cache: cache, ttl: ttl, log: log}
}

// GetPredictions serves the cached report unless refresh=true.
func (h *PredictionHandler) GetPredictions(c *gin.Context) {
	refresh := c.Query("refresh") == "true"

	if !refresh {
		var cached models.PredictionReport
		found, err := h.cache.Get(c.Request.Context(), services.PredictionKey, &cached)
		if err != nil {
			h.log.Warn("prediction cache read failed", "error", err)
		}
		if found && cached.Predictions != nil {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, cached)
			return
		}
	}

	report, err := h.svc.Predict(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}

	go func() {
		if err := h.cache.Set(context.Background(), services.PredictionKey, report, h.ttl); err != nil {
			h.log.Warn("prediction cache write failed", "error", err)
		}
	}()

	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, report)
}

// GetStatistics serves the computed statistics without a forecast.
func (h *PredictionHandler) GetStatistics(c *gin.Context) {
	report, err := h.svc.Statistics(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *PredictionHandler) writeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrDataUnavailable) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	h.log.Error("prediction pipeline failed", "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "prediction failed"})
}
