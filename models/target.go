package models

// ImmigrationTarget is one year of the federal immigration levels plan.
type ImmigrationTarget struct {
	Year         int `gorm:"column:year;primaryKey" json:"year"`
	Total        int `gorm:"column:total" json:"total"`
	Economic     int `gorm:"column:economic" json:"economic"`
	ExpressEntry int `gorm:"column:express_entry" json:"express_entry"`
	PNP          int `gorm:"column:pnp" json:"pnp"`
	Family       int `gorm:"column:family" json:"family"`
	Refugee      int `gorm:"column:refugee" json:"refugee"`
}

func (ImmigrationTarget) TableName() string { return "immigration_targets" }
