// Package forecast turns the computed statistics into per-category draw
// predictions. A generative model is asked first; a deterministic formula
// covers every case the model does not.
package forecast

import (
	"context"
	"errors"

	"crs-prediction-api/models"
)

// ErrMalformedResponse is returned by ParseResponse when the model output
// holds no decodable forecast, even after sanitization.
var ErrMalformedResponse = errors.New("malformed forecast response")

// Generator sends a prompt to a text model and returns the raw reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Forecast sources, as reported in PredictionReport.ForecastSource.
const (
	SourceAI         = "ai"
	SourceAIWithFill = "ai+fallback"
	SourceFallback   = "fallback"
)

// Reasons a forecast is not purely model generated.
const (
	ReasonNone        = "none"
	ReasonNoGenerator = "no_generator"
	ReasonTimeout     = "timeout"
	ReasonUnavailable = "unavailable"
	ReasonMalformed   = "malformed"
	ReasonPartial     = "partial"
	ReasonPrompt      = "prompt"
)

// Guidance bands, keyed as in the response.
const (
	Band520Plus  = "520_plus"
	Band500to519 = "500_519"
	Band450to499 = "450_499"
	BandBelow450 = "below_450"
)

var GuidanceBands = []string{Band520Plus, Band500to519, Band450to499, BandBelow450}

// Facts are the official inputs the prompt quotes. Draws are most recent
// first.
type Facts struct {
	Draws   []models.Draw
	Pool    models.PoolDistribution
	Targets []models.ImmigrationTarget
}

type Forecast struct {
	Predictions   map[string]models.Prediction `json:"predictions"`
	TrendAnalysis string                       `json:"trend_analysis"`
	UserGuidance  map[string]string            `json:"user_guidance"`
}

// Result is a Forecast plus where it came from.
type Result struct {
	Forecast
	Source string
	Reason string
}
