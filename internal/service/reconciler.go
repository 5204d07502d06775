package service

import (
	"strings"
	"time"

	"icu-bed-management/internal/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// UpdateSource identifies where a structured update came from
type UpdateSource string

const (
	SourceManual     UpdateSource = "manual"
	SourceExtraction UpdateSource = "extraction"
)

// BedUpdate is a partial structured update. A nil field is absent and leaves the
// bed untouched; absent is not the same as zero.
type BedUpdate struct {
	Source UpdateSource

	Narrative    *string
	Initials     *string
	Status       *models.BedStatus
	ClinicalNote *string

	VentilationStartTime *time.Time
	// ClearVentilationStart removes the start time; honoured for manual edits only
	ClearVentilationStart bool

	MobilityTarget   *int
	MobilityAchieved *int

	// ExtubationCounts replaces all four counters (manual correction).
	// ExtubationIncrement is added on top of the current counters.
	// Neither carries a total: the total is always derived.
	ExtubationCounts    *models.ExtubationCounters
	ExtubationIncrement *models.ExtubationCounters
}

// IsEmpty reports whether the update carries no recognized field
func (u BedUpdate) IsEmpty() bool {
	return u.Narrative == nil &&
		u.Initials == nil &&
		u.Status == nil &&
		u.ClinicalNote == nil &&
		u.VentilationStartTime == nil &&
		!(u.ClearVentilationStart && u.Source == SourceManual) &&
		u.MobilityTarget == nil &&
		u.MobilityAchieved == nil &&
		u.ExtubationCounts == nil &&
		u.ExtubationIncrement == nil
}

// AbsentFields lists the recognized fields the update does not carry
func (u BedUpdate) AbsentFields() []string {
	var absent []string
	if u.Narrative == nil {
		absent = append(absent, "narrative")
	}
	if u.Status == nil {
		absent = append(absent, "status")
	}
	if u.VentilationStartTime == nil {
		absent = append(absent, "ventilation_start")
	}
	if u.MobilityTarget == nil {
		absent = append(absent, "mobility_target")
	}
	if u.MobilityAchieved == nil {
		absent = append(absent, "mobility_achieved")
	}
	if u.ExtubationCounts == nil && u.ExtubationIncrement == nil {
		absent = append(absent, "extubations")
	}
	if u.ClinicalNote == nil {
		absent = append(absent, "clinical_note")
	}
	return absent
}

// Reconciliation is the outcome of applying an update to a bed
type Reconciliation struct {
	Bed      models.Bed
	Changes  map[string]interface{}
	Admitted bool
	// IgnoredVacate is set when the update asked for status Vago, which only a discharge may do
	IgnoredVacate bool
}

// Changed reports whether anything must be written
func (r Reconciliation) Changed() bool {
	return len(r.Changes) > 0
}

// Reconciler merges structured updates into bed state.
// It is pure: it computes the next state and the column changes, the caller persists them.
type Reconciler struct {
	now   func() time.Time
	newID func() string
}

func NewReconciler() *Reconciler {
	return &Reconciler{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Apply merges u into bed
func (r *Reconciler) Apply(bed models.Bed, u BedUpdate) Reconciliation {
	if u.IsEmpty() {
		return Reconciliation{Bed: bed, Changes: map[string]interface{}{}}
	}

	now := r.now()
	next := bed
	changes := make(map[string]interface{})
	res := Reconciliation{}

	if u.Initials != nil {
		if initials := strings.TrimSpace(*u.Initials); initials != "" {
			next.Initials = initials
			changes["initials"] = initials
		}
	}

	if u.Status != nil {
		if *u.Status == models.StatusVacant {
			res.IgnoredVacate = true
		} else if u.Status.Valid() {
			next.Status = *u.Status
			changes["status"] = next.Status
		}
	}

	// Clearing an unset start is not a change, so it cannot admit a vacant bed
	if u.ClearVentilationStart && u.Source == SourceManual && bed.VentilationStartTime != nil {
		next.VentilationStartTime = nil
		changes["ventilation_start_time"] = nil
	}
	if u.VentilationStartTime != nil {
		start := *u.VentilationStartTime
		next.VentilationStartTime = &start
		changes["ventilation_start_time"] = &start
	}

	var mobility *models.MobilityScale
	if u.MobilityTarget != nil || u.MobilityAchieved != nil {
		merged := models.MobilityScale{}
		if current := bed.Mobility(); current != nil {
			merged = *current
		}
		if u.MobilityTarget != nil {
			merged.Target = max(*u.MobilityTarget, 0)
		}
		if u.MobilityAchieved != nil {
			merged.Achieved = max(*u.MobilityAchieved, 0)
		}
		target, achieved := merged.Target, merged.Achieved
		next.MobilityTarget = &target
		next.MobilityAchieved = &achieved
		changes["mobility_target"] = &target
		changes["mobility_achieved"] = &achieved
		mobility = &merged
	}

	if u.ExtubationCounts != nil || u.ExtubationIncrement != nil {
		counters := next.Extubations
		if u.ExtubationCounts != nil {
			counters = u.ExtubationCounts.Clamped()
		}
		if u.ExtubationIncrement != nil {
			counters = counters.Add(u.ExtubationIncrement.Clamped())
		}
		setExtubations(&next, changes, counters)
	}

	if u.ClinicalNote != nil {
		note := *u.ClinicalNote
		next.LastGeneratedRecord = &note
		changes["last_generated_record"] = &note
	}

	if u.Narrative != nil {
		if text := strings.TrimSpace(*u.Narrative); text != "" {
			entry := models.HistoryEntry{
				ID:        r.newID(),
				Timestamp: now,
				Text:      text,
			}
			if mobility != nil {
				entry.MetricsSummary = mobility.Summary()
			}
			history := make(datatypes.JSONSlice[models.HistoryEntry], 0, len(bed.History)+1)
			history = append(history, bed.History...)
			history = append(history, entry)
			next.History = history
			changes["history"] = history
		}
	}

	if len(changes) == 0 {
		return Reconciliation{Bed: bed, Changes: changes, IgnoredVacate: res.IgnoredVacate}
	}

	// First contact on a vacant bed admits the patient. The start time, once set,
	// keeps this from firing again during the same stay.
	if bed.VentilationStartTime == nil && bed.Status == models.StatusVacant {
		if next.VentilationStartTime == nil {
			start := now
			next.VentilationStartTime = &start
			changes["ventilation_start_time"] = &start
		}
		if next.Status == models.StatusVacant {
			next.Status = models.StatusInvasiveVent
			changes["status"] = next.Status
		}
		res.Admitted = true
	}

	res.Bed = next
	res.Changes = changes
	return res
}

// setExtubations is the single write path for the extubation counters; the total
// always travels with the four sub-counts.
func setExtubations(bed *models.Bed, changes map[string]interface{}, counters models.ExtubationCounters) {
	bed.Extubations = counters
	bed.ExtubationTotal = counters.Total()
	changes["extubation_success"] = counters.Success
	changes["extubation_fail"] = counters.Fail
	changes["extubation_accidental"] = counters.Accidental
	changes["extubation_self"] = counters.Self
	changes["extubation_total"] = bed.ExtubationTotal
}
