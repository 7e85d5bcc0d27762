package models

import "time"

// ConfidenceNote accompanies every report so callers do not read the
// confidence figure as a statistical interval.
const ConfidenceNote = "confidence is a simple monotonic heuristic (sample count, pool pressure, trend stability), not a calibrated probability"

// Prediction is the forecast for one draw category.
type Prediction struct {
	Category           string `json:"category"`
	CutoffLow          int    `json:"cutoff_low"`
	CutoffHigh         int    `json:"cutoff_high"`
	Confidence         int    `json:"confidence"`
	NextExpectedWindow string `json:"next_expected_window"`
	InvitationEstimate int    `json:"invitation_estimate"`
	Reasoning          string `json:"reasoning"`
	InsufficientData   bool   `json:"insufficient_data,omitempty"`
}

type CurrentConditions struct {
	PoolSize           int     `json:"pool_size"`
	PoolLastUpdated    string  `json:"pool_last_updated"`
	CandidatesAbove500 int     `json:"candidates_above_500"`
	PoolPressure       float64 `json:"pool_pressure"`
	PoolPressureLevel  string  `json:"pool_pressure_level"`
	Trend              string  `json:"trend"`
	TrendSlope         float64 `json:"trend_slope"`
}

type CategoryAverageView struct {
	CRS         int `json:"crs"`
	Invitations int `json:"invitations"`
	Count       int `json:"count"`
}

type Bounds struct {
	HighestRecent int `json:"highest_recent"`
	LowestRecent  int `json:"lowest_recent"`
}

type StatisticsView struct {
	Averages      map[string]CategoryAverageView `json:"averages"`
	Bounds        Bounds                         `json:"bounds"`
	DrawFrequency map[string]int                 `json:"draw_frequency"`
}

// PredictionReport is the unified response of the prediction pipeline.
type PredictionReport struct {
	GeneratedAt       time.Time             `json:"generated_at"`
	DataSource        string                `json:"data_source"`
	ForecastSource    string                `json:"forecast_source"`
	ConfidenceNote    string                `json:"confidence_note"`
	CurrentConditions CurrentConditions     `json:"current_conditions"`
	Statistics        StatisticsView        `json:"statistics"`
	Predictions       map[string]Prediction `json:"predictions"`
	TrendAnalysis     string                `json:"trend_analysis"`
	UserGuidance      map[string]string     `json:"user_guidance"`
	RecentDraws       []Draw                `json:"recent_draws"`
}

// StatisticsReport is the report without a forecast.
type StatisticsReport struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	DataSource        string            `json:"data_source"`
	ConfidenceNote    string            `json:"confidence_note"`
	CurrentConditions CurrentConditions `json:"current_conditions"`
	Statistics        StatisticsView    `json:"statistics"`
	Confidence        map[string]int    `json:"confidence"`
	RecentDraws       []Draw            `json:"recent_draws"`
	Summary           DrawSummary       `json:"summary"`
}

// DrawSummary is the dashboard headline: how much history is tracked,
// invitations per calendar year and the latest cutoff per category.
type DrawSummary struct {
	TotalDrawsTracked int                       `json:"total_draws_tracked"`
	LatestDrawDate    string                    `json:"latest_draw_date,omitempty"`
	InvitationsByYear map[int]int               `json:"invitations_by_year"`
	CategoryCutoffs   map[string]CategoryCutoff `json:"category_cutoffs"`
}

type CategoryCutoff struct {
	LastDraw     int    `json:"last_draw"`
	LastDrawDate string `json:"last_draw_date"`
	Average      int    `json:"average"`
	Lowest       int    `json:"lowest"`
	Highest      int    `json:"highest"`
	TotalDraws   int    `json:"total_draws"`
}
