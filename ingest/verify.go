package ingest

import (
	"context"
	"fmt"
	"time"

	"crs-prediction-api/store"
)

// StaleAfter flags a store whose newest draw is older than this.
const StaleAfter = 60 * 24 * time.Hour

const poolTolerance = 0.05

type Issue struct {
	Fatal   bool
	Message string
}

// Verify checks that the store holds enough for the prediction pipeline to
// run. Fatal issues mean predictions will fail with data unavailable.
func Verify(ctx context.Context, loader store.Loader, now time.Time) []Issue {
	data, err := loader.LoadOfficialData(ctx)
	if err != nil {
		return []Issue{{Fatal: true, Message: err.Error()}}
	}

	var issues []Issue
	seen := make(map[string]bool, len(data.Draws))
	for _, d := range data.Draws {
		if err := ValidateStoredDraw(d); err != nil {
			issues = append(issues, Issue{Message: err.Error()})
		}
		if d.Number == "" {
			continue
		}
		if seen[d.Number] {
			issues = append(issues, Issue{Message: fmt.Sprintf("duplicate draw number %q", d.Number)})
		}
		seen[d.Number] = true
	}

	if newest := data.Draws[0].Date; now.Sub(newest) > StaleAfter {
		issues = append(issues, Issue{Message: fmt.Sprintf("newest draw is from %s", newest.Format("2006-01-02"))})
	}
	if len(data.Pool.Distribution) == 0 {
		issues = append(issues, Issue{Message: fmt.Sprintf("pool %d has no score bands", data.Pool.Year)})
	} else if !data.Pool.Consistent(poolTolerance) {
		issues = append(issues, Issue{Message: fmt.Sprintf("pool %d bands sum to %d, total is %d",
			data.Pool.Year, data.Pool.BandSum(), data.Pool.TotalPool)})
	}
	if len(data.Targets) == 0 {
		issues = append(issues, Issue{Message: "no immigration targets"})
	}
	return issues
}
