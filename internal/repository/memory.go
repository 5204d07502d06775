package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"icu-bed-management/internal/models"

	"gorm.io/datatypes"
)

// MemoryStore keeps every table in process memory behind the same method sets as the
// gorm repositories. It backs DB_DRIVER=memory and the service and handler tests.
type MemoryStore struct {
	mu         sync.RWMutex
	beds       map[string]models.Bed
	discharges []models.DischargeRecord
	metrics    map[string]models.DailyMetric
	settings   *models.UnitSettings
	audit      []models.AuditLog
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		beds:    make(map[string]models.Bed),
		metrics: make(map[string]models.DailyMetric),
		now:     time.Now,
	}
}

// GetBed retrieves a copy of the bed
func (m *MemoryStore) GetBed(ctx context.Context, bedNumber string) (*models.Bed, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bed, ok := m.beds[bedNumber]
	if !ok {
		return nil, ErrBedNotFound
	}
	out := cloneBed(bed)
	return &out, nil
}

// ListBeds retrieves copies of all beds ordered by bed number
func (m *MemoryStore) ListBeds(ctx context.Context) ([]models.Bed, error) {
	return m.listBeds(func(models.Bed) bool { return true }), nil
}

// ListActiveBeds retrieves copies of all non-vacant beds
func (m *MemoryStore) ListActiveBeds(ctx context.Context) ([]models.Bed, error) {
	return m.listBeds(func(b models.Bed) bool { return b.Status != models.StatusVacant }), nil
}

func (m *MemoryStore) listBeds(keep func(models.Bed) bool) []models.Bed {
	m.mu.RLock()
	defer m.mu.RUnlock()

	beds := make([]models.Bed, 0, len(m.beds))
	for _, b := range m.beds {
		if keep(b) {
			beds = append(beds, cloneBed(b))
		}
	}
	sort.Slice(beds, func(i, j int) bool { return beds[i].BedNumber < beds[j].BedNumber })
	return beds
}

// UpdateBed applies a partial column update
func (m *MemoryStore) UpdateBed(ctx context.Context, bedNumber string, updates map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bed, ok := m.beds[bedNumber]
	if !ok {
		return nil
	}
	if err := applyBedColumns(&bed, updates); err != nil {
		return err
	}
	bed.UpdatedAt = m.now()
	m.beds[bedNumber] = bed
	return nil
}

// CreateBedIfNotExists inserts the bed unless the bed number is taken
func (m *MemoryStore) CreateBedIfNotExists(ctx context.Context, bed *models.Bed) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.beds[bed.BedNumber]; ok {
		return false, nil
	}
	now := m.now()
	bed.CreatedAt = now
	bed.UpdatedAt = now
	m.beds[bed.BedNumber] = cloneBed(*bed)
	return true, nil
}

// ArchiveAndReset builds the record from the bed, appends it and resets the bed under one lock
func (m *MemoryStore) ArchiveAndReset(ctx context.Context, bedNumber string, build DischargeBuilder, reset map[string]interface{}) (*models.DischargeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	bed, ok := m.beds[bedNumber]
	if !ok {
		return nil, ErrBedNotFound
	}
	record := build(cloneBed(bed))
	if err := applyBedColumns(&bed, reset); err != nil {
		return nil, fmt.Errorf("failed to reset bed: %w", err)
	}

	record.ID = uint(len(m.discharges) + 1)
	record.CreatedAt = m.now()
	m.discharges = append(m.discharges, record)

	bed.UpdatedAt = m.now()
	m.beds[bedNumber] = bed
	return &record, nil
}

// ListDischarges retrieves discharge records with discharge time in [from, to]
func (m *MemoryStore) ListDischarges(ctx context.Context, from, to time.Time) ([]models.DischargeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.DischargeRecord
	for _, d := range m.discharges {
		if !d.DischargedAt.Before(from) && !d.DischargedAt.After(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

// UpsertDailyMetric stores the snapshot keyed by (date, bed number)
func (m *MemoryStore) UpsertDailyMetric(ctx context.Context, metric *models.DailyMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := metric.Date.Format("2006-01-02") + "/" + metric.BedNumber
	if existing, ok := m.metrics[key]; ok {
		metric.ID = existing.ID
	} else {
		metric.ID = uint(len(m.metrics) + 1)
	}
	metric.UpdatedAt = m.now()
	m.metrics[key] = *metric
	return nil
}

// ListDailyMetrics retrieves snapshots whose calendar day falls in [from, to]
func (m *MemoryStore) ListDailyMetrics(ctx context.Context, from, to time.Time) ([]models.DailyMetric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	lo, hi := from.Format("2006-01-02"), to.Format("2006-01-02")
	var out []models.DailyMetric
	for _, metric := range m.metrics {
		day := metric.Date.Format("2006-01-02")
		if day >= lo && day <= hi {
			out = append(out, metric)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].BedNumber < out[j].BedNumber
	})
	return out, nil
}

// GetSettings retrieves the unit settings
func (m *MemoryStore) GetSettings(ctx context.Context) (*models.UnitSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.settings == nil {
		return nil, ErrSettingsNotFound
	}
	s := *m.settings
	return &s, nil
}

// SaveSettings overwrites the unit settings
func (m *MemoryStore) SaveSettings(ctx context.Context, settings *models.UnitSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	settings.ID = models.SettingsRowID
	settings.UpdatedAt = m.now()
	s := *settings
	m.settings = &s
	return nil
}

// CreateSettingsIfNotExists seeds the settings if absent
func (m *MemoryStore) CreateSettingsIfNotExists(ctx context.Context, defaults *models.UnitSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.settings == nil {
		defaults.ID = models.SettingsRowID
		defaults.UpdatedAt = m.now()
		s := *defaults
		m.settings = &s
	}
	return nil
}

// CreateAuditLog appends an audit entry
func (m *MemoryStore) CreateAuditLog(ctx context.Context, bedNumber *string, action string, details string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.audit = append(m.audit, models.AuditLog{
		ID:        uint(len(m.audit) + 1),
		BedNumber: bedNumber,
		Action:    action,
		Details:   details,
		CreatedAt: m.now(),
	})
	return nil
}

// AuditLogs returns a copy of the audit trail
func (m *MemoryStore) AuditLogs() []models.AuditLog {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.AuditLog(nil), m.audit...)
}

func cloneBed(b models.Bed) models.Bed {
	out := b
	if b.History != nil {
		out.History = append(datatypes.JSONSlice[models.HistoryEntry]{}, b.History...)
	}
	if b.VentilationStartTime != nil {
		t := *b.VentilationStartTime
		out.VentilationStartTime = &t
	}
	if b.MobilityTarget != nil {
		v := *b.MobilityTarget
		out.MobilityTarget = &v
	}
	if b.MobilityAchieved != nil {
		v := *b.MobilityAchieved
		out.MobilityAchieved = &v
	}
	if b.LastGeneratedRecord != nil {
		v := *b.LastGeneratedRecord
		out.LastGeneratedRecord = &v
	}
	return out
}

// applyBedColumns mirrors gorm's map update for the bed columns the services write
func applyBedColumns(b *models.Bed, updates map[string]interface{}) error {
	for col, v := range updates {
		switch col {
		case "status":
			s, ok := v.(models.BedStatus)
			if !ok {
				return fmt.Errorf("column %s: unexpected type %T", col, v)
			}
			b.Status = s
		case "initials":
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("column %s: unexpected type %T", col, v)
			}
			b.Initials = s
		case "ventilation_start_time":
			t, err := timePtr(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", col, err)
			}
			b.VentilationStartTime = t
		case "mobility_target", "mobility_achieved":
			n, err := intPtr(v)
			if err != nil {
				return fmt.Errorf("column %s: %w", col, err)
			}
			if col == "mobility_target" {
				b.MobilityTarget = n
			} else {
				b.MobilityAchieved = n
			}
		case "extubation_success", "extubation_fail", "extubation_accidental", "extubation_self", "extubation_total":
			n, ok := v.(int)
			if !ok {
				return fmt.Errorf("column %s: unexpected type %T", col, v)
			}
			switch col {
			case "extubation_success":
				b.Extubations.Success = n
			case "extubation_fail":
				b.Extubations.Fail = n
			case "extubation_accidental":
				b.Extubations.Accidental = n
			case "extubation_self":
				b.Extubations.Self = n
			default:
				b.ExtubationTotal = n
			}
		case "history":
			h, ok := v.(datatypes.JSONSlice[models.HistoryEntry])
			if !ok {
				return fmt.Errorf("column %s: unexpected type %T", col, v)
			}
			b.History = append(datatypes.JSONSlice[models.HistoryEntry]{}, h...)
		case "last_generated_record":
			switch s := v.(type) {
			case nil:
				b.LastGeneratedRecord = nil
			case *string:
				if s == nil {
					b.LastGeneratedRecord = nil
				} else {
					c := *s
					b.LastGeneratedRecord = &c
				}
			case string:
				b.LastGeneratedRecord = &s
			default:
				return fmt.Errorf("column %s: unexpected type %T", col, v)
			}
		default:
			return fmt.Errorf("unknown bed column %q", col)
		}
	}
	return nil
}

func timePtr(v interface{}) (*time.Time, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case *time.Time:
		if t == nil {
			return nil, nil
		}
		c := *t
		return &c, nil
	case time.Time:
		return &t, nil
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}

func intPtr(v interface{}) (*int, error) {
	switch n := v.(type) {
	case nil:
		return nil, nil
	case *int:
		if n == nil {
			return nil, nil
		}
		c := *n
		return &c, nil
	case int:
		return &n, nil
	}
	return nil, fmt.Errorf("unexpected type %T", v)
}
