package forecast

import (
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"crs-prediction-api/models"
	"crs-prediction-api/stats"
)

// PromptDraws is how many recent draws are quoted in the prompt.
const PromptDraws = 10

type promptDraw struct {
	Date        string `json:"date"`
	Category    string `json:"category"`
	Score       int    `json:"score"`
	Invitations int    `json:"invitations"`
}

type promptFacts struct {
	PoolSize        int                        `json:"pool_size"`
	PoolLastUpdated string                     `json:"pool_last_updated"`
	PoolYear        int                        `json:"pool_year"`
	Distribution    map[string]int             `json:"distribution"`
	RecentDraws     []promptDraw               `json:"recent_draws"`
	AnnualTargets   []models.ImmigrationTarget `json:"annual_targets"`
}

type promptTrend struct {
	Direction stats.Direction `json:"direction"`
	Slope     float64         `json:"slope"`
	Points    int             `json:"points"`
}

type promptPressure struct {
	Percent            float64 `json:"percent"`
	Level              string  `json:"level"`
	CandidatesAbove500 int     `json:"candidates_above_500"`
}

type promptStatistics struct {
	Averages      map[string]models.CategoryAverageView `json:"averages"`
	Trend         promptTrend                           `json:"general_trend"`
	Pressure      promptPressure                        `json:"pool_pressure"`
	DrawFrequency map[string]int                        `json:"draw_frequency_percent"`
	Bounds        models.Bounds                         `json:"bounds"`
	Confidence    map[string]int                        `json:"confidence"`
}

const responseSchema = `{
  "predictions": {
    "<category>": {
      "category": "<category>",
      "cutoff_low": <int>,
      "cutoff_high": <int>,
      "confidence": <int 0-100>,
      "next_expected_window": "<YYYY-MM-DD to YYYY-MM-DD>",
      "invitation_estimate": <int>,
      "reasoning": "<one or two sentences>"
    }
  },
  "trend_analysis": "<short paragraph>",
  "user_guidance": {
    "520_plus": "<advice>",
    "500_519": "<advice>",
    "450_499": "<advice>",
    "below_450": "<advice>"
  }
}`

// BuildPrompt renders the official facts and computed statistics into a
// single instruction block asking for JSON only. It fails when a statistic
// cannot be encoded, such as a NaN slope.
func BuildPrompt(facts Facts, summary stats.Summary) (string, error) {
	pf := promptFacts{
		PoolSize:        facts.Pool.Total(),
		PoolLastUpdated: formatDate(facts.Pool.UpdatedAt),
		PoolYear:        facts.Pool.Year,
		Distribution:    facts.Pool.Distribution,
		AnnualTargets:   facts.Targets,
	}
	for i, d := range facts.Draws {
		if i == PromptDraws {
			break
		}
		pf.RecentDraws = append(pf.RecentDraws, promptDraw{
			Date:        d.Date.Format("2006-01-02"),
			Category:    stats.NormalizeCategory(d.Category),
			Score:       d.Score,
			Invitations: d.InvitationsIssued,
		})
	}
	ps := promptStatistics{
		Averages: summary.View().Averages,
		Trend: promptTrend{
			Direction: summary.Trend.Direction,
			Slope:     summary.Trend.Slope,
			Points:    summary.Trend.Points,
		},
		Pressure: promptPressure{
			Percent:            summary.Pressure.Percent,
			Level:              summary.Pressure.Level,
			CandidatesAbove500: summary.Pressure.CandidatesAbove500,
		},
		DrawFrequency: summary.Frequency,
		Bounds:        summary.Bounds,
		Confidence:    summary.Confidence,
	}

	factsJSON, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt facts: %w", err)
	}
	statsJSON, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode prompt statistics: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are forecasting the next Canadian Express Entry draws.\n\n")
	b.WriteString("OFFICIAL FACTS (from IRCC):\n")
	b.Write(factsJSON)
	b.WriteString("\n\nCOMPUTED STATISTICS:\n")
	b.Write(statsJSON)
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- Use only the numbers above. Do not invent scores, dates, pool sizes or invitation counts that cannot be derived from them.\n")
	b.WriteString("- Averages use at most the 5 most recent draws per category. The General trend excludes PNP draws.\n")
	b.WriteString("- PNP cutoffs include the 600 point provincial nomination and are not comparable with other categories.\n")
	b.WriteString("- A category whose average is 0 has no recent draws; say so instead of predicting a cutoff.\n")
	fmt.Fprintf(&b, "- Include at least these categories: %s.\n", strings.Join(stats.TrackedCategories, ", "))
	b.WriteString("- Confidence values should stay close to the supplied confidence figures.\n\n")
	b.WriteString("Respond with ONLY a JSON object matching this schema, no markdown and no commentary:\n")
	b.WriteString(responseSchema)
	b.WriteString("\n")
	return b.String(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown"
	}
	return t.Format("2006-01-02")
}
