package models

import "time"

// Trend is the direction a dashboard indicator is displayed with
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// UnitKPI is the flat dashboard view model for one time window
type UnitKPI struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	VentilationAverage int   `json:"ventilation_average"`
	VentilationSamples int   `json:"ventilation_samples"`
	VentilationTrend   Trend `json:"ventilation_trend"`

	MobilityComplianceRate int   `json:"mobility_compliance_rate"`
	MobilityNotMetRate     int   `json:"mobility_not_met_rate"`
	MobilityAssessments    int   `json:"mobility_assessments"`
	MobilityTrend          Trend `json:"mobility_trend"`

	Extubations        ExtubationCounters `json:"extubations"`
	ExtubationTotal    int                `json:"extubation_total"`
	ExtubationFailRate int                `json:"extubation_fail_rate"`

	ComputedAt time.Time `json:"computed_at"`
}
