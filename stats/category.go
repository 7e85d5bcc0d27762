// Package stats turns raw draw history into the aggregates the forecaster
// consumes: category averages, the General trend, pool pressure, draw mix
// and a heuristic confidence.
package stats

import (
	"sort"
	"strings"

	"crs-prediction-api/models"
)

const (
	CEC         = "CEC"
	PNP         = "PNP"
	French      = "French"
	Healthcare  = "Healthcare"
	STEM        = "STEM"
	Trade       = "Trade"
	Transport   = "Transport"
	Agriculture = "Agriculture"
	General     = "General"
)

// TrackedCategories always appear in a prediction report.
var TrackedCategories = []string{CEC, PNP, French, Healthcare}

// categoryKeywords is checked in order; the first substring hit wins.
var categoryKeywords = []struct {
	keyword  string
	category string
}{
	{"experience", CEC},
	{"provincial", PNP},
	{"pnp", PNP},
	{"french", French},
	{"healthcare", Healthcare},
	{"stem", STEM},
	{"trade", Trade},
	{"transport", Transport},
	{"agriculture", Agriculture},
	{"general", General},
	{"no program", General},
}

// NormalizeCategory maps an IRCC draw name onto a short category. Names
// that match no keyword pass through trimmed.
func NormalizeCategory(name string) string {
	lower := strings.ToLower(name)
	for _, kw := range categoryKeywords {
		if strings.Contains(lower, kw.keyword) {
			return kw.category
		}
	}
	return strings.TrimSpace(name)
}

// RecentFirst returns a copy of draws sorted by date, newest first.
// Draws on the same date go highest round number first; draws without a
// number keep their input order after the numbered ones.
func RecentFirst(draws []models.Draw) []models.Draw {
	out := make([]models.Draw, len(draws))
	copy(out, draws)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return CompareNumbers(out[i].Number, out[j].Number) > 0
	})
	return out
}

// CompareNumbers orders round numbers numerically for the all-digit labels
// IRCC uses. An empty number sorts lowest.
func CompareNumbers(a, b string) int {
	if len(a) != len(b) {
		if len(a) < len(b) {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// partition groups draws by normalized category, preserving order.
func partition(draws []models.Draw) map[string][]models.Draw {
	out := make(map[string][]models.Draw)
	for _, d := range draws {
		cat := NormalizeCategory(d.Category)
		out[cat] = append(out[cat], d)
	}
	return out
}
