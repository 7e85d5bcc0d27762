package stats

import "crs-prediction-api/models"

// Overview builds the headline block from the full history and the
// per-category statistics computed over it.
func Overview(draws []models.Draw, categories map[string]CategoryStats) models.DrawSummary {
	out := models.DrawSummary{
		TotalDrawsTracked: len(draws),
		InvitationsByYear: make(map[int]int),
		CategoryCutoffs:   make(map[string]models.CategoryCutoff),
	}
	for i, d := range RecentFirst(draws) {
		if i == 0 {
			out.LatestDrawDate = d.Date.Format("2006-01-02")
		}
		out.InvitationsByYear[d.Date.Year()] += d.InvitationsIssued

		cat := NormalizeCategory(d.Category)
		if _, seen := out.CategoryCutoffs[cat]; seen {
			continue
		}
		cs := categories[cat]
		out.CategoryCutoffs[cat] = models.CategoryCutoff{
			LastDraw:     d.Score,
			LastDrawDate: d.Date.Format("2006-01-02"),
			Average:      cs.Average,
			Lowest:       cs.Min,
			Highest:      cs.Max,
			TotalDraws:   cs.TotalDraws,
		}
	}
	return out
}
