package models

import "time"

// AuditLog represents the audit_logs table
// Every mutating action on a bed or on the unit settings leaves one row here
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	BedNumber *string   `gorm:"size:8;index" json:"bed_number"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Details   string    `gorm:"type:text" json:"details"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}
