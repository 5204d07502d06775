package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"icu-bed-management/internal/models"
	"icu-bed-management/internal/repository"

	"go.uber.org/zap"
)

// MaxTotalBeds keeps bed numbers at two digits
const MaxTotalBeds = 99

type SettingsService struct {
	store    SettingsStore
	audit    AuditStore
	defaults models.UnitSettings
	logger   *zap.Logger
}

func NewSettingsService(store SettingsStore, audit AuditStore, defaults models.UnitSettings, logger *zap.Logger) *SettingsService {
	return &SettingsService{
		store:    store,
		audit:    audit,
		defaults: defaults,
		logger:   logger,
	}
}

// Get returns the unit settings, seeding them from configuration on first use
func (s *SettingsService) Get(ctx context.Context) (*models.UnitSettings, error) {
	settings, err := s.store.GetSettings(ctx)
	if err == nil {
		return settings, nil
	}
	if !errors.Is(err, repository.ErrSettingsNotFound) {
		return nil, err
	}

	seed := s.defaults
	if err := s.store.CreateSettingsIfNotExists(ctx, &seed); err != nil {
		return nil, fmt.Errorf("failed to seed unit settings: %w", err)
	}
	s.logger.Info("Seeded unit settings",
		zap.String("unit_name", seed.UnitName),
		zap.Int("total_beds", seed.TotalBeds),
	)
	return s.store.GetSettings(ctx)
}

// Update replaces the unit name and bed count. The roster follows on its next read.
func (s *SettingsService) Update(ctx context.Context, unitName string, totalBeds int) (*models.UnitSettings, error) {
	unitName = strings.TrimSpace(unitName)
	if unitName == "" {
		return nil, fmt.Errorf("%w: unit name is required", ErrInvalidSettings)
	}
	if totalBeds < 1 || totalBeds > MaxTotalBeds {
		return nil, fmt.Errorf("%w: total beds must be between 1 and %d", ErrInvalidSettings, MaxTotalBeds)
	}

	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	updated := &models.UnitSettings{UnitName: unitName, TotalBeds: totalBeds}
	if err := s.store.SaveSettings(ctx, updated); err != nil {
		return nil, fmt.Errorf("failed to save unit settings: %w", err)
	}

	details := fmt.Sprintf("Settings changed: unit %q -> %q, beds %d -> %d",
		current.UnitName, unitName, current.TotalBeds, totalBeds)
	recordAudit(ctx, s.audit, s.logger, "", "settings_update", details)

	return s.store.GetSettings(ctx)
}
