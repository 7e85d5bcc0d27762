package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"crs-prediction-api/models"
	"crs-prediction-api/stats"
)

const (
	DrawsFile   = "draws.json"
	TargetsFile = "immigration_targets.json"

	defaultSource = "IRCC Express Entry Rounds"
	dateLayout    = "2006-01-02"
)

// FileStore keeps the official data as the JSON documents the website
// already publishes: draws.json (draws + pool_stats) and
// immigration_targets.json.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

type drawsDocument struct {
	Draws     []fileDraw          `json:"draws"`
	PoolStats map[string]filePool `json:"pool_stats,omitempty"`
	Source    string              `json:"source,omitempty"`
	Updated   string              `json:"updated,omitempty"`
}

type fileDraw struct {
	Number string `json:"number,omitempty"`
	Date   string `json:"date"`
	Type   string `json:"type"`
	Score  int    `json:"score"`
	ITAs   int    `json:"itas"`
	Year   int    `json:"year,omitempty"`
}

type filePool struct {
	TotalPool    int            `json:"total_pool"`
	AvgScore     int            `json:"avg_score"`
	Distribution map[string]int `json:"distribution"`
	Updated      string         `json:"updated,omitempty"`
}

type targetsDocument struct {
	Targets map[string]models.ImmigrationTarget `json:"targets"`
	Source  string                              `json:"source,omitempty"`
	Updated string                              `json:"updated,omitempty"`
}

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *FileStore) readDraws() (*drawsDocument, error) {
	raw, err := os.ReadFile(s.path(DrawsFile))
	if err != nil {
		return nil, unavailable("read %s: %v", DrawsFile, err)
	}
	var doc drawsDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, unavailable("decode %s: %v", DrawsFile, err)
	}
	return &doc, nil
}

func (s *FileStore) LoadOfficialData(ctx context.Context) (*models.OfficialData, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.readDraws()
	if err != nil {
		return nil, err
	}
	draws := convertDraws(doc.Draws)
	if len(draws) == 0 {
		return nil, unavailable("%s has no usable draws", DrawsFile)
	}

	updated, _ := ParseTimestamp(doc.Updated)
	pool := latestPool(convertPools(doc.PoolStats, updated))
	source := doc.Source
	if source == "" {
		source = defaultSource
	}

	return &models.OfficialData{
		Draws:     draws,
		Pool:      pool,
		Targets:   s.readTargets(),
		Source:    source,
		UpdatedAt: updated,
	}, nil
}

// PoolHistory returns every year of pool_stats in draws.json, or the
// built-in estimates when the document has none.
func (s *FileStore) PoolHistory(ctx context.Context) (map[int]models.PoolDistribution, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.readDraws()
	if err != nil {
		return nil, err
	}
	updated, _ := ParseTimestamp(doc.Updated)
	pools := convertPools(doc.PoolStats, updated)
	if len(pools) == 0 {
		return DefaultPoolStats(), nil
	}
	return pools, nil
}

func (s *FileStore) QueryDraws(ctx context.Context, q DrawQuery) ([]models.Draw, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := s.readDraws()
	if err != nil {
		return nil, err
	}
	var out []models.Draw
	for _, d := range convertDraws(doc.Draws) {
		if q.Category != "" && stats.NormalizeCategory(d.Category) != q.Category {
			continue
		}
		if q.Before != nil && !q.Before.Follows(d) {
			continue
		}
		out = append(out, d)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// readTargets never fails: targets only enrich the prompt, so a missing or
// broken file degrades to the built-in levels plan.
func (s *FileStore) readTargets() []models.ImmigrationTarget {
	raw, err := os.ReadFile(s.path(TargetsFile))
	if err != nil {
		return DefaultTargets()
	}
	var doc targetsDocument
	if err := json.Unmarshal(raw, &doc); err != nil || len(doc.Targets) == 0 {
		return DefaultTargets()
	}
	out := make([]models.ImmigrationTarget, 0, len(doc.Targets))
	for key, t := range doc.Targets {
		year, err := strconv.Atoi(key)
		if err != nil {
			continue
		}
		t.Year = year
		out = append(out, t)
	}
	sortTargets(out)
	return out
}

// SaveDraws merges new draws into draws.json and reports how many were
// not already present. Existing pool_stats are preserved.
func (s *FileStore) SaveDraws(ctx context.Context, draws []models.Draw) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := &drawsDocument{}
	if _, err := os.Stat(s.path(DrawsFile)); err == nil {
		existing, err := s.readDraws()
		if err != nil {
			return 0, err
		}
		doc = existing
	}

	merged := convertDraws(doc.Draws)
	index := make(map[string][]int, len(merged))
	numbers := make(map[string]bool, len(merged))
	for i, d := range merged {
		index[drawKey(d)] = append(index[drawKey(d)], i)
		if d.Number != "" {
			numbers[d.Number] = true
		}
	}
	added := 0
	for _, d := range draws {
		if d.Number != "" && numbers[d.Number] {
			continue
		}
		key := drawKey(d)
		if i := unnumberedMatch(merged, index[key], d); i >= 0 {
			// Site documents carry no round numbers; adopt the fetched one.
			if merged[i].Number == "" && d.Number != "" {
				merged[i].Number = d.Number
				numbers[d.Number] = true
			}
			continue
		}
		index[key] = append(index[key], len(merged))
		if d.Number != "" {
			numbers[d.Number] = true
		}
		merged = append(merged, d)
		added++
	}
	merged = stats.RecentFirst(merged)

	doc.Draws = make([]fileDraw, len(merged))
	for i, d := range merged {
		doc.Draws[i] = fileDraw{
			Number: d.Number,
			Date:   d.Date.Format(dateLayout),
			Type:   d.Category,
			Score:  d.Score,
			ITAs:   d.InvitationsIssued,
			Year:   d.Date.Year(),
		}
	}
	if len(doc.PoolStats) == 0 {
		doc.PoolStats = make(map[string]filePool)
		for year, p := range DefaultPoolStats() {
			doc.PoolStats[strconv.Itoa(year)] = filePool{
				TotalPool:    p.TotalPool,
				AvgScore:     p.AvgScore,
				Distribution: p.Distribution,
			}
		}
	}
	if doc.Source == "" {
		doc.Source = defaultSource
	}
	doc.Updated = time.Now().UTC().Format(time.RFC3339)

	if err := s.writeJSON(DrawsFile, doc); err != nil {
		return 0, err
	}
	return added, nil
}

// writeJSON replaces the file atomically so readers never see a partial
// document.
func (s *FileStore) writeJSON(name string, v interface{}) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), s.path(name))
}

// unnumberedMatch returns the position among candidates of a draw that d
// duplicates, or -1. Two numbered rounds on one day are distinct; a match
// needs one side without a number.
func unnumberedMatch(merged []models.Draw, candidates []int, d models.Draw) int {
	for _, i := range candidates {
		if merged[i].Number == "" || d.Number == "" {
			return i
		}
	}
	return -1
}

// drawKey identifies a draw by day and normalized category, which both the
// site document and the IRCC feed carry.
func drawKey(d models.Draw) string {
	return d.Date.Format(dateLayout) + "|" + stats.NormalizeCategory(d.Category)
}

func convertDraws(in []fileDraw) []models.Draw {
	out := make([]models.Draw, 0, len(in))
	for _, fd := range in {
		date, err := ParseTimestamp(fd.Date)
		if err != nil || fd.Score <= 0 {
			continue
		}
		out = append(out, models.Draw{
			Number:            fd.Number,
			Date:              date,
			Category:          fd.Type,
			Score:             fd.Score,
			InvitationsIssued: fd.ITAs,
		})
	}
	return stats.RecentFirst(out)
}

func convertPools(in map[string]filePool, fallbackUpdated time.Time) map[int]models.PoolDistribution {
	out := make(map[int]models.PoolDistribution, len(in))
	for key, fp := range in {
		year, err := strconv.Atoi(key)
		if err != nil || len(fp.Distribution) == 0 {
			continue
		}
		updated := fallbackUpdated
		if t, err := ParseTimestamp(fp.Updated); err == nil {
			updated = t
		}
		out[year] = models.PoolDistribution{
			Year:         year,
			TotalPool:    fp.TotalPool,
			AvgScore:     fp.AvgScore,
			Distribution: fp.Distribution,
			UpdatedAt:    updated,
		}
	}
	return out
}
