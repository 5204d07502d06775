package models

import (
	"fmt"
	"strconv"
	"time"

	"gorm.io/datatypes"
)

// BedStatus is the clinical state of a bed slot
type BedStatus string

const (
	StatusVacant           BedStatus = "Vago"
	StatusInvasiveVent     BedStatus = "VMI"
	StatusNonInvasiveVent  BedStatus = "VNI"
	StatusWeaning          BedStatus = "Desmame"
	StatusDischargePending BedStatus = "Alta"
)

// VacantInitials is the placeholder shown for an unoccupied bed
const VacantInitials = "-"

// Valid reports whether s is one of the known statuses
func (s BedStatus) Valid() bool {
	switch s {
	case StatusVacant, StatusInvasiveVent, StatusNonInvasiveVent, StatusWeaning, StatusDischargePending:
		return true
	}
	return false
}

// MobilityScale is an IMS assessment: the target score and the score achieved
type MobilityScale struct {
	Target   int `json:"target"`
	Achieved int `json:"achieved"`
}

// Met reports whether the achieved score reached the target
func (m MobilityScale) Met() bool {
	return m.Achieved >= m.Target
}

// Summary renders the assessment for a history entry
func (m MobilityScale) Summary() string {
	return fmt.Sprintf("IMS target: %d / achieved: %d", m.Target, m.Achieved)
}

// ExtubationCounters holds the four extubation outcome counts.
// The derived total is never stored independently of these; see Total.
type ExtubationCounters struct {
	Success    int `gorm:"column:success;not null;default:0" json:"success"`
	Fail       int `gorm:"column:fail;not null;default:0" json:"fail"`
	Accidental int `gorm:"column:accidental;not null;default:0" json:"accidental"`
	Self       int `gorm:"column:self;not null;default:0" json:"self"`
}

// Total is the sum of the four outcome counts
func (c ExtubationCounters) Total() int {
	return c.Success + c.Fail + c.Accidental + c.Self
}

// Add returns the element-wise sum of c and o
func (c ExtubationCounters) Add(o ExtubationCounters) ExtubationCounters {
	return ExtubationCounters{
		Success:    c.Success + o.Success,
		Fail:       c.Fail + o.Fail,
		Accidental: c.Accidental + o.Accidental,
		Self:       c.Self + o.Self,
	}
}

// Clamped replaces negative counts with zero
func (c ExtubationCounters) Clamped() ExtubationCounters {
	return ExtubationCounters{
		Success:    max(c.Success, 0),
		Fail:       max(c.Fail, 0),
		Accidental: max(c.Accidental, 0),
		Self:       max(c.Self, 0),
	}
}

// IsZero reports whether every count is zero
func (c ExtubationCounters) IsZero() bool {
	return c == ExtubationCounters{}
}

// HistoryEntry is one line of a bed's append-only clinical log
type HistoryEntry struct {
	ID             string    `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	Text           string    `json:"text"`
	MetricsSummary string    `json:"metrics_summary,omitempty"`
}

// Bed represents the beds table.
// One row per bed slot; rows are reset in place, never deleted.
type Bed struct {
	BedNumber            string     `gorm:"primaryKey;size:8" json:"bed_number"`
	Status               BedStatus  `gorm:"size:16;not null;default:'Vago'" json:"status"`
	Initials             string     `gorm:"size:32;not null;default:'-'" json:"initials"`
	VentilationStartTime *time.Time `gorm:"column:ventilation_start_time" json:"ventilation_start_time"`

	// Latest IMS assessment; both columns are set together or both are NULL
	MobilityTarget   *int `gorm:"column:mobility_target" json:"mobility_target"`
	MobilityAchieved *int `gorm:"column:mobility_achieved" json:"mobility_achieved"`

	Extubations     ExtubationCounters `gorm:"embedded;embeddedPrefix:extubation_" json:"extubations"`
	ExtubationTotal int                `gorm:"column:extubation_total;not null;default:0" json:"extubation_total"`

	History             datatypes.JSONSlice[HistoryEntry] `gorm:"type:json" json:"history"`
	LastGeneratedRecord *string                           `gorm:"column:last_generated_record;type:text" json:"last_generated_record"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for Bed model
func (Bed) TableName() string {
	return "beds"
}

// Mobility returns the latest IMS assessment, or nil if none was recorded
func (b *Bed) Mobility() *MobilityScale {
	if b.MobilityTarget == nil || b.MobilityAchieved == nil {
		return nil
	}
	return &MobilityScale{Target: *b.MobilityTarget, Achieved: *b.MobilityAchieved}
}

// IsVacant reports whether the bed is an empty slot
func (b *Bed) IsVacant() bool {
	return b.Status == StatusVacant
}

// IsOccupied reports whether the bed holds a stay worth archiving on discharge
func (b *Bed) IsOccupied() bool {
	return b.Status != StatusVacant || b.Initials != VacantInitials
}

// RecentHistory returns up to n history entries, newest first
func (b *Bed) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || n > len(b.History) {
		n = len(b.History)
	}
	out := make([]HistoryEntry, 0, n)
	for i := len(b.History) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, b.History[i])
	}
	return out
}

// VentilationDays is the ceiling of whole days between the ventilation start and now.
// Zero when ventilation never started or the start lies in the future.
func (b *Bed) VentilationDays(now time.Time) int {
	if b.VentilationStartTime == nil {
		return 0
	}
	return CeilDays(now.Sub(*b.VentilationStartTime))
}

// VacantBed returns the vacant defaults for a bed slot
func VacantBed(bedNumber string) Bed {
	return Bed{
		BedNumber: bedNumber,
		Status:    StatusVacant,
		Initials:  VacantInitials,
		History:   datatypes.JSONSlice[HistoryEntry]{},
	}
}

// FormatBedNumber renders a roster position as a zero-padded bed number
func FormatBedNumber(n int) string {
	return fmt.Sprintf("%02d", n)
}

// ParseBedNumber returns the roster position of a bed number, if it has one
func ParseBedNumber(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// CeilDays converts a duration to whole days, rounding up. Negative durations yield 0.
func CeilDays(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	day := 24 * time.Hour
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	return days
}
