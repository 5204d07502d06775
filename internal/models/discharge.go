package models

import "time"

// DischargeRecord represents the discharge_records table.
// Rows are append-only: written once when a bed is cleared and never updated.
type DischargeRecord struct {
	ID                      uint               `gorm:"primaryKey" json:"id"`
	DischargedAt            time.Time          `gorm:"column:discharged_at;not null;index" json:"discharged_at"`
	BedNumber               string             `gorm:"size:8;not null;index" json:"bed_number"` // Historical reference only
	VentilationDurationDays int                `gorm:"column:ventilation_duration_days;not null;default:0" json:"ventilation_duration_days"`
	Extubations             ExtubationCounters `gorm:"embedded;embeddedPrefix:extubation_" json:"extubations"`
	ExtubationTotal         int                `gorm:"column:extubation_total;not null;default:0" json:"extubation_total"`
	CreatedAt               time.Time          `json:"created_at"`
}

// TableName specifies the table name for DischargeRecord model
func (DischargeRecord) TableName() string {
	return "discharge_records"
}
