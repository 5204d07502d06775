package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"icu-bed-management/internal/cache"
	"icu-bed-management/internal/metrics"
	"icu-bed-management/internal/models"

	"go.uber.org/zap"
)

type BedService struct {
	beds       BedStore
	daily      DailyMetricStore
	audit      AuditStore
	reconciler *Reconciler
	kpiCache   *cache.KPICache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewBedService(
	beds BedStore,
	daily DailyMetricStore,
	audit AuditStore,
	reconciler *Reconciler,
	kpiCache *cache.KPICache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *BedService {
	return &BedService{
		beds:       beds,
		daily:      daily,
		audit:      audit,
		reconciler: reconciler,
		kpiCache:   kpiCache,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// GetBed retrieves a single bed
func (s *BedService) GetBed(ctx context.Context, bedNumber string) (*models.Bed, error) {
	return s.beds.GetBed(ctx, bedNumber)
}

// SaveManual applies a form edit. Besides the bed itself it refreshes today's
// mobility snapshot for the bed so compliance history follows the live value.
func (s *BedService) SaveManual(ctx context.Context, bedNumber string, u BedUpdate) (*models.Bed, error) {
	u.Source = SourceManual
	bed, rec, err := s.apply(ctx, bedNumber, u)
	if err != nil {
		return nil, err
	}
	if rec.Changed() {
		s.snapshotMobility(ctx, bed)
	}
	return bed, nil
}

// ApplyExtraction merges the structured result of a recording into the bed
func (s *BedService) ApplyExtraction(ctx context.Context, bedNumber string, u BedUpdate) (*models.Bed, error) {
	u.Source = SourceExtraction
	bed, _, err := s.apply(ctx, bedNumber, u)
	return bed, err
}

// UpdateClinicalNote replaces the bed's latest formatted clinical record
func (s *BedService) UpdateClinicalNote(ctx context.Context, bedNumber string, note string) (*models.Bed, error) {
	bed, _, err := s.apply(ctx, bedNumber, BedUpdate{Source: SourceManual, ClinicalNote: &note})
	return bed, err
}

func (s *BedService) apply(ctx context.Context, bedNumber string, u BedUpdate) (*models.Bed, Reconciliation, error) {
	current, err := s.beds.GetBed(ctx, bedNumber)
	if err != nil {
		return nil, Reconciliation{}, err
	}

	rec := s.reconciler.Apply(*current, u)
	if rec.IgnoredVacate {
		s.logger.Info("Ignoring vacant status in update; only discharge vacates a bed",
			zap.String("bed_number", bedNumber),
			zap.String("source", string(u.Source)),
		)
	}
	if !rec.Changed() {
		s.metrics.ObserveReconciliation(string(u.Source), false, false)
		return current, rec, nil
	}

	if err := s.beds.UpdateBed(ctx, bedNumber, rec.Changes); err != nil {
		return nil, Reconciliation{}, fmt.Errorf("failed to update bed %s: %w", bedNumber, err)
	}
	s.metrics.ObserveReconciliation(string(u.Source), true, rec.Admitted)
	s.kpiCache.Invalidate(ctx)

	if rec.Admitted {
		s.logger.Info("Admitted patient on first contact",
			zap.String("bed_number", bedNumber),
			zap.String("status", string(rec.Bed.Status)),
		)
		recordAudit(ctx, s.audit, s.logger, bedNumber, "bed_admit",
			fmt.Sprintf("Bed %s admitted with status %s", bedNumber, rec.Bed.Status))
	}
	recordAudit(ctx, s.audit, s.logger, bedNumber, "bed_update_"+string(u.Source),
		fmt.Sprintf("Bed %s updated: %s", bedNumber, changedColumns(rec.Changes)))

	updated, err := s.beds.GetBed(ctx, bedNumber)
	if err != nil {
		return nil, Reconciliation{}, err
	}
	return updated, rec, nil
}

func (s *BedService) snapshotMobility(ctx context.Context, bed *models.Bed) {
	snapshot := &models.DailyMetric{
		Date:          models.Day(s.now()),
		BedNumber:     bed.BedNumber,
		OnVentilation: bed.VentilationStartTime != nil,
	}
	if m := bed.Mobility(); m != nil {
		snapshot.MobilityTarget = m.Target
		snapshot.MobilityAchieved = m.Achieved
	}
	// The bed write already succeeded; a missed snapshot is repaired by the next save.
	if err := s.daily.UpsertDailyMetric(ctx, snapshot); err != nil {
		s.logger.Error("Failed to save daily mobility snapshot",
			zap.String("bed_number", bed.BedNumber),
			zap.Error(err),
		)
	}
}

// Indicators renders the bed's indicator summary as plain text for copying into charts
func (s *BedService) Indicators(ctx context.Context, bedNumber string) (string, error) {
	bed, err := s.beds.GetBed(ctx, bedNumber)
	if err != nil {
		return "", err
	}
	return FormatIndicators(bed, s.now()), nil
}

// FormatIndicators renders the four bedside indicators of a bed
func FormatIndicators(bed *models.Bed, now time.Time) string {
	target, achieved := "-", "-"
	if m := bed.Mobility(); m != nil {
		target = fmt.Sprintf("%d", m.Target)
		achieved = fmt.Sprintf("%d", m.Achieved)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Bed %s (%s)\n", bed.BedNumber, bed.Initials)
	fmt.Fprintf(&b, "Ventilation days: %d\n", bed.VentilationDays(now))
	fmt.Fprintf(&b, "IMS target: %s\n", target)
	fmt.Fprintf(&b, "IMS achieved: %s\n", achieved)
	fmt.Fprintf(&b, "Extubations: %d", bed.ExtubationTotal)
	return b.String()
}

func changedColumns(changes map[string]interface{}) string {
	cols := make([]string, 0, len(changes))
	for _, col := range []string{
		"status", "initials", "ventilation_start_time", "mobility_target", "mobility_achieved",
		"extubation_total", "last_generated_record", "history",
	} {
		if _, ok := changes[col]; ok {
			cols = append(cols, col)
		}
	}
	return strings.Join(cols, ", ")
}
