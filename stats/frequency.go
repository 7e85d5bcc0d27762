package stats

import (
	"math"

	"crs-prediction-api/models"
)

// FrequencyWindow is the number of most recent draws the category mix is
// measured over.
const FrequencyWindow = 20

// DrawFrequency returns each category's share of the most recent draws as
// an integer percentage. Each share is rounded on its own, so the values
// need not add up to exactly 100.
func DrawFrequency(draws []models.Draw) map[string]int {
	recent := RecentFirst(draws)
	if len(recent) > FrequencyWindow {
		recent = recent[:FrequencyWindow]
	}
	out := make(map[string]int)
	if len(recent) == 0 {
		return out
	}
	counts := make(map[string]int)
	for _, d := range recent {
		counts[NormalizeCategory(d.Category)]++
	}
	for cat, n := range counts {
		out[cat] = int(math.Round(float64(n) * 100 / float64(len(recent))))
	}
	return out
}

// BoundsWindow is the number of most recent non-PNP draws used for the
// highest/lowest recent cutoff.
const BoundsWindow = 10

// RecentBounds reports the highest and lowest cutoff among recent non-PNP
// draws. PNP cutoffs include the 600 point nomination and would swamp it.
func RecentBounds(draws []models.Draw) models.Bounds {
	var b models.Bounds
	seen := 0
	for _, d := range RecentFirst(draws) {
		if NormalizeCategory(d.Category) == PNP {
			continue
		}
		if seen == 0 {
			b.HighestRecent, b.LowestRecent = d.Score, d.Score
		}
		b.HighestRecent = max(b.HighestRecent, d.Score)
		b.LowestRecent = min(b.LowestRecent, d.Score)
		seen++
		if seen == BoundsWindow {
			break
		}
	}
	return b
}
