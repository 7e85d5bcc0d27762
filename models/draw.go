package models

import "time"

// Draw is one Express Entry invitation round.
type Draw struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	Number            string    `gorm:"column:draw_number;uniqueIndex" json:"number,omitempty" validate:"required"`
	Date              time.Time `gorm:"column:draw_date;index" json:"date" validate:"required"`
	Category          string    `gorm:"column:category;index" json:"category" validate:"required"`
	Score             int       `gorm:"column:score" json:"score" validate:"gt=0,lte=1200"`
	InvitationsIssued int       `gorm:"column:invitations_issued" json:"invitations_issued" validate:"gte=0"`
	CreatedAt         time.Time `gorm:"column:created_at" json:"-"`
}

func (Draw) TableName() string { return "crs_draws" }

// OfficialData is everything the statistics and forecast layers read.
// Draws are ordered most recent first.
type OfficialData struct {
	Draws     []Draw              `json:"draws"`
	Pool      PoolDistribution    `json:"pool"`
	Targets   []ImmigrationTarget `json:"targets"`
	Source    string              `json:"source"`
	UpdatedAt time.Time           `json:"updated_at"`
}
