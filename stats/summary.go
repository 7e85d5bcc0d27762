package stats

import "crs-prediction-api/models"

// Summary bundles every statistic computed for one prediction request.
type Summary struct {
	Categories map[string]CategoryStats `json:"categories"`
	Trend      TrendEstimate            `json:"trend"`
	Pressure   PoolPressure             `json:"pressure"`
	Frequency  map[string]int           `json:"frequency"`
	Bounds     models.Bounds            `json:"bounds"`
	Confidence map[string]int           `json:"confidence"`
}

// Compute derives a Summary from the full draw history and the current
// pool. Tracked categories with no draws get a zero entry so callers can
// tell "no data" apart from "absent".
func Compute(draws []models.Draw, pool models.PoolDistribution) Summary {
	s := Summary{
		Categories: CategoryAverages(draws),
		Trend:      GeneralTrend(draws),
		Pressure:   ComputePoolPressure(pool),
		Frequency:  DrawFrequency(draws),
		Bounds:     RecentBounds(draws),
		Confidence: make(map[string]int),
	}
	for _, cat := range TrackedCategories {
		if _, ok := s.Categories[cat]; !ok {
			s.Categories[cat] = CategoryStats{}
		}
	}
	for cat, cs := range s.Categories {
		s.Confidence[cat] = Confidence(cs.TotalDraws, s.Pressure.Percent, s.Trend.Direction)
	}
	return s
}

// View renders the summary in the response shape.
func (s Summary) View() models.StatisticsView {
	v := models.StatisticsView{
		Averages:      make(map[string]models.CategoryAverageView, len(s.Categories)),
		Bounds:        s.Bounds,
		DrawFrequency: s.Frequency,
	}
	for cat, cs := range s.Categories {
		v.Averages[cat] = models.CategoryAverageView{
			CRS:         cs.Average,
			Invitations: cs.InvitationAverage,
			Count:       cs.TotalDraws,
		}
	}
	return v
}
