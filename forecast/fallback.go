package forecast

import (
	"fmt"
	"time"

	"crs-prediction-api/models"
	"crs-prediction-api/stats"
)

const (
	lowMargin       = 10
	highMargin      = 5
	trendAdjustment = 5

	// PNP cutoffs carry the 600 point nomination bonus, so the range is fixed.
	PNPCutoffLow  = 700
	PNPCutoffHigh = 750

	windowSlackDays = 3

	// InsufficientData is used where a figure cannot be derived.
	InsufficientData = "insufficient data"
)

func adjustment(d stats.Direction) int {
	switch d {
	case stats.Declining:
		return -trendAdjustment
	case stats.Rising:
		return trendAdjustment
	default:
		return 0
	}
}

// Fallback computes a forecast from the statistics alone. draws is the full
// history and only feeds the next draw window.
func Fallback(summary stats.Summary, draws []models.Draw) Forecast {
	f := Forecast{
		Predictions:   make(map[string]models.Prediction, len(summary.Categories)),
		TrendAnalysis: fallbackTrendAnalysis(summary),
		UserGuidance:  fallbackGuidance(summary),
	}
	dates := categoryDates(draws)
	for cat, cs := range summary.Categories {
		f.Predictions[cat] = fallbackPrediction(cat, cs, summary, dates[cat])
	}
	return f
}

func fallbackPrediction(cat string, cs stats.CategoryStats, summary stats.Summary, dates []time.Time) models.Prediction {
	p := models.Prediction{
		Category:           cat,
		Confidence:         summary.Confidence[cat],
		NextExpectedWindow: NextWindow(dates),
		InvitationEstimate: cs.InvitationAverage,
	}
	switch {
	case cat == stats.PNP:
		p.CutoffLow, p.CutoffHigh = PNPCutoffLow, PNPCutoffHigh
		p.InsufficientData = cs.TotalDraws == 0
		p.Reasoning = fmt.Sprintf(
			"PNP cutoffs include the 600 point provincial nomination, so the range is fixed at %d-%d (last %d PNP draws averaged %d).",
			PNPCutoffLow, PNPCutoffHigh, cs.SampleCount, cs.Average)
	case cs.Average == 0:
		p.InsufficientData = true
		p.Reasoning = fmt.Sprintf("No recent %s draws; there is not enough data to forecast a cutoff.", cat)
	default:
		adj := adjustment(summary.Trend.Direction)
		p.CutoffLow = cs.Average - lowMargin + adj
		p.CutoffHigh = cs.Average + highMargin + adj
		p.Reasoning = fmt.Sprintf(
			"Based on the last %d %s draws averaging %d CRS, adjusted for a %s General trend.",
			cs.SampleCount, cat, cs.Average, summary.Trend.Direction)
	}
	return p
}

// categoryDates returns each category's draw dates, most recent first,
// capped at the averaging window.
func categoryDates(draws []models.Draw) map[string][]time.Time {
	out := make(map[string][]time.Time)
	for _, d := range stats.RecentFirst(draws) {
		cat := stats.NormalizeCategory(d.Category)
		if len(out[cat]) < stats.AverageWindow {
			out[cat] = append(out[cat], d.Date)
		}
	}
	return out
}

// NextWindow projects the next draw from the mean gap between recent draw
// dates (most recent first), widened by a few days either side.
func NextWindow(dates []time.Time) string {
	if len(dates) < 2 {
		return InsufficientData
	}
	span := dates[0].Sub(dates[len(dates)-1])
	gapDays := int(span.Hours()/24) / (len(dates) - 1)
	if gapDays <= 0 {
		return InsufficientData
	}
	center := dates[0].AddDate(0, 0, gapDays)
	from := center.AddDate(0, 0, -windowSlackDays)
	to := center.AddDate(0, 0, windowSlackDays)
	return from.Format("2006-01-02") + " to " + to.Format("2006-01-02")
}

func fallbackTrendAnalysis(s stats.Summary) string {
	var trend string
	if s.Trend.Points < 3 {
		trend = "There are too few recent General draws to estimate a trend."
	} else {
		trend = fmt.Sprintf("General draw cutoffs are %s, moving %+.2f points per draw over the last %d General draws.",
			s.Trend.Direction, s.Trend.Slope, s.Trend.Points)
	}
	pool := fmt.Sprintf(" %.1f%% of the %d candidates in the pool score above 500 (%s pool pressure).",
		s.Pressure.Percent, s.Pressure.PoolSize, s.Pressure.Level)
	var bounds string
	if s.Bounds.HighestRecent > 0 {
		bounds = fmt.Sprintf(" Recent non-PNP cutoffs ranged from %d to %d.", s.Bounds.LowestRecent, s.Bounds.HighestRecent)
	}
	return trend + pool + bounds
}

func fallbackGuidance(s stats.Summary) map[string]string {
	general := s.Categories[stats.General].Average
	cec := s.Categories[stats.CEC].Average
	ref := max(general, cec)
	refNote := "recent all-program and CEC cutoffs"
	if ref > 0 {
		refNote = fmt.Sprintf("recent all-program and CEC cutoffs (around %d)", ref)
	}
	return map[string]string{
		Band520Plus:  fmt.Sprintf("Your score is at or above most %s. Keep your profile and documents current so you can accept an invitation quickly.", refNote),
		Band500to519: fmt.Sprintf("You are close to %s. Watch CEC and general draws, and check whether a category-based draw fits your profile.", refNote),
		Band450to499: "General draws have rarely reached this range. Category-based draws (French, Healthcare, STEM, Trade) and a provincial nomination are the most realistic paths.",
		BandBelow450: "Improving language scores, adding French ability or pursuing a provincial nomination (+600) would do the most to raise your chances.",
	}
}
