package stats

import (
	"github.com/shopspring/decimal"

	"crs-prediction-api/models"
)

const (
	PressureLow    = "Low"
	PressureMedium = "Medium"
	PressureHigh   = "High"
)

type PoolPressure struct {
	Percent            float64 `json:"percent"`
	Level              string  `json:"level"`
	CandidatesAbove500 int     `json:"candidates_above_500"`
	PoolSize           int     `json:"pool_size"`
}

// ComputePoolPressure is the share of the pool above 500 CRS, as a
// percentage rounded to one decimal.
func ComputePoolPressure(pool models.PoolDistribution) PoolPressure {
	above := pool.Distribution[models.BandTop] + pool.Distribution[models.BandHigh]
	total := pool.Total()
	p := PoolPressure{CandidatesAbove500: above, PoolSize: total}
	if total > 0 {
		p.Percent = decimal.NewFromInt(int64(above)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(total))).
			Round(1).
			InexactFloat64()
	}
	p.Level = PressureLevel(p.Percent)
	return p
}

func PressureLevel(percent float64) string {
	switch {
	case percent < 10:
		return PressureLow
	case percent < 15:
		return PressureMedium
	default:
		return PressureHigh
	}
}
