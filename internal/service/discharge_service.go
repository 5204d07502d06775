package service

import (
	"context"
	"fmt"
	"time"

	"icu-bed-management/internal/cache"
	"icu-bed-management/internal/metrics"
	"icu-bed-management/internal/models"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type DischargeService struct {
	beds       BedStore
	discharges DischargeStore
	audit      AuditStore
	kpiCache   *cache.KPICache
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewDischargeService(
	beds BedStore,
	discharges DischargeStore,
	audit AuditStore,
	kpiCache *cache.KPICache,
	m *metrics.Metrics,
	logger *zap.Logger,
) *DischargeService {
	return &DischargeService{
		beds:       beds,
		discharges: discharges,
		audit:      audit,
		kpiCache:   kpiCache,
		metrics:    m,
		logger:     logger,
		now:        time.Now,
	}
}

// DischargeResult is the bed after discharge and, when a stay was closed, its archive record
type DischargeResult struct {
	Bed    *models.Bed
	Record *models.DischargeRecord
}

// Discharge closes the current stay: the record is built from the bed as read inside the
// archive transaction, then archived and the bed reset. On failure the bed keeps its counters. A bed that is already vacant is
// only reset again; nothing is archived for it.
func (s *DischargeService) Discharge(ctx context.Context, bedNumber string) (*DischargeResult, error) {
	bed, err := s.beds.GetBed(ctx, bedNumber)
	if err != nil {
		return nil, err
	}

	if !bed.IsOccupied() {
		if err := s.beds.UpdateBed(ctx, bedNumber, VacantBedColumns()); err != nil {
			s.metrics.ObserveDischarge("failed")
			return nil, fmt.Errorf("failed to reset bed %s: %w", bedNumber, err)
		}
		s.metrics.ObserveDischarge("already_vacant")
		s.logger.Info("Discharge on vacant bed, defaults re-asserted", zap.String("bed_number", bedNumber))

		refreshed, err := s.beds.GetBed(ctx, bedNumber)
		if err != nil {
			return nil, err
		}
		return &DischargeResult{Bed: refreshed}, nil
	}

	now := s.now()
	record, err := s.discharges.ArchiveAndReset(ctx, bedNumber, func(locked models.Bed) models.DischargeRecord {
		return dischargeRecord(locked, now)
	}, VacantBedColumns())
	if err != nil {
		s.metrics.ObserveDischarge("failed")
		s.logger.Error("Discharge failed, bed left unchanged",
			zap.String("bed_number", bedNumber),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.ObserveDischarge("archived")
	s.kpiCache.Invalidate(ctx)
	s.logger.Info("Discharged patient",
		zap.String("bed_number", bedNumber),
		zap.Int("ventilation_days", record.VentilationDurationDays),
		zap.Int("extubation_total", record.ExtubationTotal),
	)
	recordAudit(ctx, s.audit, s.logger, bedNumber, "bed_discharge",
		fmt.Sprintf("Bed %s discharged after %d ventilation day(s), %d extubation(s)",
			bedNumber, record.VentilationDurationDays, record.ExtubationTotal))

	refreshed, err := s.beds.GetBed(ctx, bedNumber)
	if err != nil {
		return nil, err
	}
	return &DischargeResult{Bed: refreshed, Record: record}, nil
}

// dischargeRecord snapshots a stay as of now
func dischargeRecord(bed models.Bed, now time.Time) models.DischargeRecord {
	return models.DischargeRecord{
		DischargedAt:            now,
		BedNumber:               bed.BedNumber,
		VentilationDurationDays: bed.VentilationDays(now),
		Extubations:             bed.Extubations,
		ExtubationTotal:         bed.Extubations.Total(),
	}
}

// VacantBedColumns is the column set that returns a bed to its vacant defaults
func VacantBedColumns() map[string]interface{} {
	return map[string]interface{}{
		"status":                 models.StatusVacant,
		"initials":               models.VacantInitials,
		"ventilation_start_time": nil,
		"mobility_target":        nil,
		"mobility_achieved":      nil,
		"extubation_success":     0,
		"extubation_fail":        0,
		"extubation_accidental":  0,
		"extubation_self":        0,
		"extubation_total":       0,
		"history":                datatypes.JSONSlice[models.HistoryEntry]{},
		"last_generated_record":  nil,
	}
}
