// Package extraction talks to the speech-to-text and clinical extraction pipeline.
// The pipeline is an external webhook; this package only transports audio to it
// and validates what comes back.
package extraction

import (
	"context"
	"errors"
	"time"

	"icu-bed-management/internal/models"
)

var (
	// ErrMalformedPayload means the pipeline answered but the answer cannot be trusted.
	// Nothing from such a payload may be applied.
	ErrMalformedPayload = errors.New("malformed extraction payload")
	// ErrExtractionUnavailable covers transport failures, non-2xx answers and an open breaker
	ErrExtractionUnavailable = errors.New("extraction service unavailable")
)

// Result is a normalized extraction payload. Every field is optional; nil means
// the pipeline said nothing about it, which is not the same as zero.
type Result struct {
	FormattedRecord  *string
	HistoryEntry     *string
	Initials         *string
	Status           *models.BedStatus
	VentilationStart *time.Time

	MobilityTarget   *int
	MobilityAchieved *int

	// ExtubationIncrement is added to the bed's counters
	ExtubationIncrement *models.ExtubationCounters
	// ExtubationCounts replaces the bed's counters
	ExtubationCounts *models.ExtubationCounters
	// ReportedTotal is a bare total sent by the pipeline. Totals are always derived
	// from the counters, so it is informational only.
	ReportedTotal *int
}

// Empty reports whether the payload carries nothing actionable
func (r *Result) Empty() bool {
	return r.FormattedRecord == nil &&
		r.HistoryEntry == nil &&
		r.Initials == nil &&
		r.Status == nil &&
		r.VentilationStart == nil &&
		r.MobilityTarget == nil &&
		r.MobilityAchieved == nil &&
		r.ExtubationIncrement == nil &&
		r.ExtubationCounts == nil
}

// Extractor turns a recorded clip into structured clinical fields
type Extractor interface {
	Extract(ctx context.Context, audio []byte, mimeType string, bedNumber string) (*Result, error)
}
