package forecast

import (
	"context"
	"errors"
	"strings"
	"time"

	"crs-prediction-api/logger"
	"crs-prediction-api/metrics"
	"crs-prediction-api/models"
	"crs-prediction-api/stats"
)

const DefaultTimeout = 60 * time.Second

// Composer asks the generator for a forecast and patches whatever is missing
// from the deterministic fallback. Compose never fails.
type Composer struct {
	gen     Generator
	timeout time.Duration
	log     *logger.Logger
}

// NewComposer accepts a nil generator, in which case every forecast is the
// fallback.
func NewComposer(gen Generator, timeout time.Duration, log *logger.Logger) *Composer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Composer{gen: gen, timeout: timeout, log: log}
}

func (c *Composer) Compose(ctx context.Context, facts Facts, summary stats.Summary) Result {
	res := c.compose(ctx, facts, summary)
	metrics.ForecastOutcomes.WithLabelValues(res.Source, res.Reason).Inc()
	return res
}

func (c *Composer) compose(ctx context.Context, facts Facts, summary stats.Summary) Result {
	fallback := Fallback(summary, facts.Draws)
	if c.gen == nil {
		return Result{Forecast: fallback, Source: SourceFallback, Reason: ReasonNoGenerator}
	}

	prompt, err := BuildPrompt(facts, summary)
	if err != nil {
		c.log.Error("forecast prompt could not be built, using fallback", "error", err)
		return Result{Forecast: fallback, Source: SourceFallback, Reason: ReasonPrompt}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	text, err := c.gen.Generate(callCtx, prompt)
	if err != nil {
		reason := ReasonUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		c.log.Warn("forecast service unavailable, using fallback",
			"reason", reason, "elapsed", time.Since(start), "error", err)
		return Result{Forecast: fallback, Source: SourceFallback, Reason: reason}
	}

	parsed, err := ParseResponse(text)
	if err != nil {
		c.log.Warn("forecast response could not be parsed, using fallback",
			"error", err, "response_bytes", len(text))
		return Result{Forecast: fallback, Source: SourceFallback, Reason: ReasonMalformed}
	}

	filled := fill(parsed, fallback)
	if len(filled) > 0 {
		c.log.Info("forecast completed from fallback", "filled", filled)
		return Result{Forecast: *parsed, Source: SourceAIWithFill, Reason: ReasonPartial}
	}
	return Result{Forecast: *parsed, Source: SourceAI, Reason: ReasonNone}
}

// fill adds tracked categories, trend analysis and guidance bands the model
// left out. Model predictions that are present are never touched. It
// returns the names of the filled fields.
func fill(f *Forecast, fallback Forecast) []string {
	var filled []string
	if f.Predictions == nil {
		f.Predictions = make(map[string]models.Prediction)
	}
	for _, cat := range stats.TrackedCategories {
		if _, ok := f.Predictions[cat]; ok {
			continue
		}
		f.Predictions[cat] = fallback.Predictions[cat]
		filled = append(filled, "predictions."+cat)
	}
	if strings.TrimSpace(f.TrendAnalysis) == "" {
		f.TrendAnalysis = fallback.TrendAnalysis
		filled = append(filled, "trend_analysis")
	}
	if f.UserGuidance == nil {
		f.UserGuidance = make(map[string]string, len(GuidanceBands))
	}
	for _, band := range GuidanceBands {
		if strings.TrimSpace(f.UserGuidance[band]) != "" {
			continue
		}
		f.UserGuidance[band] = fallback.UserGuidance[band]
		filled = append(filled, "user_guidance."+band)
	}
	return filled
}
