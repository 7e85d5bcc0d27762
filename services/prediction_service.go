package services

import (
	"context"
	"time"

	"crs-prediction-api/forecast"
	"crs-prediction-api/logger"
	"crs-prediction-api/metrics"
	"crs-prediction-api/models"
	"crs-prediction-api/stats"
	"crs-prediction-api/store"
)

const (
	// RecentDrawsInReport caps recent_draws in the response.
	RecentDrawsInReport = 5
	poolTolerance       = 0.05
)

// PredictionService runs load, compute and forecast for one request.
type PredictionService struct {
	loader   store.Loader
	composer *forecast.Composer
	log      *logger.Logger
	now      func() time.Time
}

func NewPredictionService(loader store.Loader, composer *forecast.Composer, log *logger.Logger) *PredictionService {
	return &PredictionService{loader: loader, composer: composer, log: log, now: time.Now}
}

// Predict returns the full report. The only error is store.ErrDataUnavailable
// (or a context error); forecast failures degrade to the fallback.
func (s *PredictionService) Predict(ctx context.Context) (*models.PredictionReport, error) {
	start := time.Now()
	data, summary, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	res := s.composer.Compose(ctx, forecast.Facts{
		Draws:   data.Draws,
		Pool:    data.Pool,
		Targets: data.Targets,
	}, summary)

	report := &models.PredictionReport{
		GeneratedAt:       s.now().UTC(),
		DataSource:        data.Source,
		ForecastSource:    res.Source,
		ConfidenceNote:    models.ConfidenceNote,
		CurrentConditions: conditions(data, summary),
		Statistics:        summary.View(),
		Predictions:       res.Predictions,
		TrendAnalysis:     res.TrendAnalysis,
		UserGuidance:      res.UserGuidance,
		RecentDraws:       recentDraws(data.Draws),
	}
	metrics.PipelineDuration.Observe(time.Since(start).Seconds())
	s.log.Info("prediction report generated",
		"forecast_source", res.Source,
		"reason", res.Reason,
		"draws", len(data.Draws),
		"elapsed", time.Since(start))
	return report, nil
}

// Statistics returns the computed statistics without calling the forecaster.
func (s *PredictionService) Statistics(ctx context.Context) (*models.StatisticsReport, error) {
	data, summary, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return &models.StatisticsReport{
		GeneratedAt:       s.now().UTC(),
		DataSource:        data.Source,
		ConfidenceNote:    models.ConfidenceNote,
		CurrentConditions: conditions(data, summary),
		Statistics:        summary.View(),
		Confidence:        summary.Confidence,
		RecentDraws:       recentDraws(data.Draws),
		Summary:           stats.Overview(data.Draws, summary.Categories),
	}, nil
}

func (s *PredictionService) load(ctx context.Context) (*models.OfficialData, stats.Summary, error) {
	data, err := s.loader.LoadOfficialData(ctx)
	if err != nil {
		metrics.PipelineFailures.Inc()
		s.log.Error("official data unavailable", "error", err)
		return nil, stats.Summary{}, err
	}
	if !data.Pool.Consistent(poolTolerance) {
		s.log.Warn("pool bands do not add up to reported total",
			"year", data.Pool.Year,
			"total_pool", data.Pool.TotalPool,
			"band_sum", data.Pool.BandSum())
	}
	return data, stats.Compute(data.Draws, data.Pool), nil
}

func conditions(data *models.OfficialData, summary stats.Summary) models.CurrentConditions {
	updated := data.Pool.UpdatedAt
	if updated.IsZero() {
		updated = data.UpdatedAt
	}
	lastUpdated := "unknown"
	if !updated.IsZero() {
		lastUpdated = updated.Format("2006-01-02")
	}
	return models.CurrentConditions{
		PoolSize:           summary.Pressure.PoolSize,
		PoolLastUpdated:    lastUpdated,
		CandidatesAbove500: summary.Pressure.CandidatesAbove500,
		PoolPressure:       summary.Pressure.Percent,
		PoolPressureLevel:  summary.Pressure.Level,
		Trend:              string(summary.Trend.Direction),
		TrendSlope:         summary.Trend.Slope,
	}
}

// recentDraws returns the newest draws with normalized categories.
func recentDraws(draws []models.Draw) []models.Draw {
	recent := stats.RecentFirst(draws)
	if len(recent) > RecentDrawsInReport {
		recent = recent[:RecentDrawsInReport]
	}
	for i := range recent {
		recent[i].Category = stats.NormalizeCategory(recent[i].Category)
	}
	return recent
}
