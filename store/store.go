// Package store reads the official draw history, pool distribution and
// immigration targets from either JSON files or SQL tables.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"crs-prediction-api/models"
	"crs-prediction-api/stats"
)

// ErrDataUnavailable means the historical draws could not be read or are
// empty. There is nothing to forecast from, so callers fail fast.
var ErrDataUnavailable = errors.New("official draw data unavailable")

// Loader is the read side used by the prediction pipeline.
type Loader interface {
	LoadOfficialData(ctx context.Context) (*models.OfficialData, error)
	QueryDraws(ctx context.Context, q DrawQuery) ([]models.Draw, error)
}

// DrawQuery selects draws most recent first. Category, when set, is matched
// against the normalized category. Before, when set, keeps only the draws
// listed after that cursor.
type DrawQuery struct {
	Category string
	Before   *Cursor
	Limit    int
}

// Cursor is a position in the draw listing: newest date first, then the
// highest round number within a date.
type Cursor struct {
	Date   time.Time
	Number string
}

// CursorAt positions a cursor on d.
func CursorAt(d models.Draw) Cursor {
	return Cursor{Date: d.Date.UTC(), Number: d.Number}
}

// String encodes the cursor as "<RFC 3339 timestamp>|<round number>".
func (c Cursor) String() string {
	return c.Date.UTC().Format(time.RFC3339Nano) + "|" + c.Number
}

// ParseCursor reads the String form. A bare timestamp or date is accepted
// too and selects draws strictly before it.
func ParseCursor(s string) (Cursor, error) {
	ts, number, _ := strings.Cut(s, "|")
	t, err := ParseTimestamp(ts)
	if err != nil {
		return Cursor{}, err
	}
	return Cursor{Date: t, Number: strings.TrimSpace(number)}, nil
}

// Follows reports whether d is listed after the cursor position.
func (c Cursor) Follows(d models.Draw) bool {
	if !d.Date.Equal(c.Date) {
		return d.Date.Before(c.Date)
	}
	return stats.CompareNumbers(d.Number, c.Number) < 0
}

func unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrDataUnavailable, fmt.Sprintf(format, args...))
}

// latestPool picks the most recent year, falling back to the built-in
// estimates when the store has none.
func latestPool(pools map[int]models.PoolDistribution) models.PoolDistribution {
	if len(pools) == 0 {
		pools = DefaultPoolStats()
	}
	var best models.PoolDistribution
	for year, p := range pools {
		if year >= best.Year {
			p.Year = year
			best = p
		}
	}
	return best
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseTimestamp accepts RFC 3339 and the naive ISO timestamps written by
// the older data updater.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func sortTargets(targets []models.ImmigrationTarget) {
	sort.Slice(targets, func(i, j int) bool { return targets[i].Year < targets[j].Year })
}
