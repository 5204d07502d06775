package service

import (
	"context"
	"fmt"
	"sort"

	"icu-bed-management/internal/models"

	"go.uber.org/zap"
)

type RosterService struct {
	beds     BedStore
	settings *SettingsService
	audit    AuditStore
	logger   *zap.Logger
}

func NewRosterService(beds BedStore, settings *SettingsService, audit AuditStore, logger *zap.Logger) *RosterService {
	return &RosterService{
		beds:     beds,
		settings: settings,
		audit:    audit,
		logger:   logger,
	}
}

// Roster provisions and returns the beds for the currently configured bed count
func (s *RosterService) Roster(ctx context.Context) ([]models.Bed, error) {
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, err
	}
	return s.EnsureRoster(ctx, settings.TotalBeds)
}

// EnsureRoster creates a vacant bed for every number in 1..targetCount that has no row
// and returns exactly those beds in roster order. Rows above targetCount are kept in
// the store, only hidden, so shrinking the unit can be undone.
func (s *RosterService) EnsureRoster(ctx context.Context, targetCount int) ([]models.Bed, error) {
	if targetCount < 0 {
		targetCount = 0
	}

	existing, err := s.beds.ListBeds(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list beds: %w", err)
	}

	present := make(map[int]bool, len(existing))
	for _, bed := range existing {
		if n, ok := models.ParseBedNumber(bed.BedNumber); ok {
			present[n] = true
		}
	}

	created := 0
	for n := 1; n <= targetCount; n++ {
		if present[n] {
			continue
		}
		bed := models.VacantBed(models.FormatBedNumber(n))
		inserted, err := s.beds.CreateBedIfNotExists(ctx, &bed)
		if err != nil {
			return nil, fmt.Errorf("failed to create bed %s: %w", bed.BedNumber, err)
		}
		if inserted {
			created++
		}
	}

	if created > 0 {
		s.logger.Info("Provisioned vacant beds", zap.Int("created", created), zap.Int("total_beds", targetCount))
		recordAudit(ctx, s.audit, s.logger, "", "roster_provision",
			fmt.Sprintf("Created %d vacant bed(s) for a roster of %d", created, targetCount))

		existing, err = s.beds.ListBeds(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list beds: %w", err)
		}
	}

	return filterRoster(existing, targetCount), nil
}

func filterRoster(beds []models.Bed, targetCount int) []models.Bed {
	roster := make([]models.Bed, 0, targetCount)
	for _, bed := range beds {
		if n, ok := models.ParseBedNumber(bed.BedNumber); ok && n <= targetCount {
			roster = append(roster, bed)
		}
	}
	sort.SliceStable(roster, func(i, j int) bool {
		a, _ := models.ParseBedNumber(roster[i].BedNumber)
		b, _ := models.ParseBedNumber(roster[j].BedNumber)
		return a < b
	})
	return roster
}

// NormalizeBedNumber turns user input such as "5" or "05" into the stored key "05"
func NormalizeBedNumber(raw string) (string, error) {
	n, ok := models.ParseBedNumber(raw)
	if !ok || n > MaxTotalBeds {
		return "", fmt.Errorf("%w: %q", ErrInvalidBedNumber, raw)
	}
	return models.FormatBedNumber(n), nil
}
