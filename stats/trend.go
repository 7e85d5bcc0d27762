package stats

import (
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"crs-prediction-api/models"
)

type Direction string

const (
	Declining Direction = "declining"
	Stable    Direction = "stable"
	Rising    Direction = "rising"
)

const (
	// TrendWindow is how many General scores feed the regression.
	TrendWindow    = 10
	minTrendPoints = 3
	slopeThreshold = 2.0
)

type TrendEstimate struct {
	Direction Direction `json:"direction"`
	Slope     float64   `json:"slope"`
	Points    int       `json:"points"`
}

// Classify maps a per-draw slope onto a direction. ±2 is still stable.
func Classify(slope float64) Direction {
	switch {
	case slope < -slopeThreshold:
		return Declining
	case slope > slopeThreshold:
		return Rising
	default:
		return Stable
	}
}

// Trend fits y = a + b·x by ordinary least squares over scores given
// oldest first, with x the draw index. The slope is rounded to two decimals
// before classification.
func Trend(scores []float64) TrendEstimate {
	n := len(scores)
	if n < minTrendPoints {
		return TrendEstimate{Direction: Stable, Points: n}
	}
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
	}
	if stat.Variance(xs, nil) == 0 {
		return TrendEstimate{Direction: Stable, Points: n}
	}
	_, beta := stat.LinearRegression(xs, scores, nil, false)
	slope := decimal.NewFromFloat(beta).Round(2).InexactFloat64()
	return TrendEstimate{Direction: Classify(slope), Slope: slope, Points: n}
}

// GeneralTrend runs Trend over the TrendWindow most recent General draws.
// Other categories, PNP in particular, never enter the regression.
func GeneralTrend(draws []models.Draw) TrendEstimate {
	var recent []float64
	for _, d := range RecentFirst(draws) {
		if NormalizeCategory(d.Category) != General {
			continue
		}
		recent = append(recent, float64(d.Score))
		if len(recent) == TrendWindow {
			break
		}
	}
	chronological := make([]float64, len(recent))
	for i, s := range recent {
		chronological[len(recent)-1-i] = s
	}
	return Trend(chronological)
}
