package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"crs-prediction-api/models"
)

// AverageWindow is the number of most recent draws per category that feed
// the averages. Older draws only count towards TotalDraws.
const AverageWindow = 5

type CategoryStats struct {
	Average           int `json:"average"`
	Min               int `json:"min"`
	Max               int `json:"max"`
	InvitationAverage int `json:"invitation_average"`
	SampleCount       int `json:"sample_count"`
	TotalDraws        int `json:"total_draws"`
}

// CategoryAverages computes per-category statistics over at most the
// AverageWindow most recent draws of each category.
func CategoryAverages(draws []models.Draw) map[string]CategoryStats {
	out := make(map[string]CategoryStats)
	for cat, group := range partition(RecentFirst(draws)) {
		recent := group
		if len(recent) > AverageWindow {
			recent = recent[:AverageWindow]
		}
		scores := make([]float64, len(recent))
		invitations := make([]float64, len(recent))
		cs := CategoryStats{
			SampleCount: len(recent),
			TotalDraws:  len(group),
			Min:         recent[0].Score,
			Max:         recent[0].Score,
		}
		for i, d := range recent {
			scores[i] = float64(d.Score)
			invitations[i] = float64(d.InvitationsIssued)
			cs.Min = min(cs.Min, d.Score)
			cs.Max = max(cs.Max, d.Score)
		}
		cs.Average = int(math.Round(stat.Mean(scores, nil)))
		cs.InvitationAverage = int(math.Round(stat.Mean(invitations, nil)))
		out[cat] = cs
	}
	return out
}
