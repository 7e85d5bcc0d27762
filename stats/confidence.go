package stats

const (
	confidencePerDraw  = 15
	confidenceDrawCap  = 60
	lowPressureBonus   = 15
	stableTrendBonus   = 10
	confidenceCeiling  = 95
	lowPressurePercent = 10.0
)

// Confidence is a simple monotonic score in [0, 95]: up to 60 for sample
// size, +15 when pool pressure is under 10%, +10 when the trend is stable.
// It is not a calibrated probability.
func Confidence(drawCount int, pressurePercent float64, direction Direction) int {
	if drawCount < 0 {
		drawCount = 0
	}
	score := min(drawCount*confidencePerDraw, confidenceDrawCap)
	if pressurePercent < lowPressurePercent {
		score += lowPressureBonus
	}
	if direction == Stable {
		score += stableTrendBonus
	}
	return min(score, confidenceCeiling)
}
