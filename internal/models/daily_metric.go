package models

import "time"

// DailyMetric represents the daily_metrics table: one row per bed per calendar day.
// It outlives bed resets so mobility compliance trends stay historical.
type DailyMetric struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Date             time.Time `gorm:"type:date;not null;uniqueIndex:idx_daily_metrics_date_bed" json:"date"`
	BedNumber        string    `gorm:"size:8;not null;uniqueIndex:idx_daily_metrics_date_bed" json:"bed_number"`
	MobilityTarget   int       `gorm:"column:mobility_target;not null;default:0" json:"mobility_target"`
	MobilityAchieved int       `gorm:"column:mobility_achieved;not null;default:0" json:"mobility_achieved"`
	OnVentilation    bool      `gorm:"column:on_ventilation;not null;default:false" json:"on_ventilation"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// TableName specifies the table name for DailyMetric model
func (DailyMetric) TableName() string {
	return "daily_metrics"
}

// Day truncates t to local midnight
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
