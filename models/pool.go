package models

import (
	"math"
	"sort"
	"time"
)

const (
	BandTop  = "601-1200"
	BandHigh = "501-600"
)

type PoolSnapshot struct {
	Year      int       `gorm:"column:year;primaryKey" json:"year"`
	TotalPool int       `gorm:"column:total_pool" json:"total_pool"`
	AvgScore  int       `gorm:"column:avg_score" json:"avg_score"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (PoolSnapshot) TableName() string { return "pool_snapshots" }

type PoolBand struct {
	Year       int    `gorm:"column:year;primaryKey" json:"year"`
	Band       string `gorm:"column:band;primaryKey" json:"band"`
	Candidates int    `gorm:"column:candidates" json:"candidates"`
}

func (PoolBand) TableName() string { return "pool_bands" }

// PoolDistribution is the candidate pool for one year, bucketed by CRS band.
type PoolDistribution struct {
	Year         int            `json:"year"`
	TotalPool    int            `json:"total_pool"`
	AvgScore     int            `json:"avg_score"`
	Distribution map[string]int `json:"distribution"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (p PoolDistribution) BandSum() int {
	sum := 0
	for _, n := range p.Distribution {
		sum += n
	}
	return sum
}

// Total falls back to the band sum when no total was reported.
func (p PoolDistribution) Total() int {
	if p.TotalPool > 0 {
		return p.TotalPool
	}
	return p.BandSum()
}

// Consistent reports whether the band sum is within tolerance (a fraction,
// e.g. 0.05) of the reported total. Source figures are estimates.
func (p PoolDistribution) Consistent(tolerance float64) bool {
	if p.TotalPool == 0 {
		return true
	}
	diff := math.Abs(float64(p.BandSum() - p.TotalPool))
	return diff <= tolerance*float64(p.TotalPool)
}

// Bands returns band names sorted from highest to lowest lower bound.
func (p PoolDistribution) Bands() []string {
	bands := make([]string, 0, len(p.Distribution))
	for b := range p.Distribution {
		bands = append(bands, b)
	}
	sort.Slice(bands, func(i, j int) bool {
		return bandFloor(bands[i]) > bandFloor(bands[j])
	})
	return bands
}

func bandFloor(band string) int {
	n := 0
	for _, r := range band {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
	}
	return n
}
