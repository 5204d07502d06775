package models

import "time"

// SettingsRowID is the primary key of the single settings row
const SettingsRowID = 1

// UnitSettings represents the unit_settings table (single row)
type UnitSettings struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	UnitName  string    `gorm:"size:100;not null" json:"unit_name"`
	TotalBeds int       `gorm:"not null" json:"total_beds"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for UnitSettings model
func (UnitSettings) TableName() string {
	return "unit_settings"
}
