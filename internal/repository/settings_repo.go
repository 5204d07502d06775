package repository

import (
	"context"
	"errors"

	"icu-bed-management/internal/models"

	"gorm.io/gorm"
)

type SettingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepo(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetSettings retrieves the unit settings row
func (r *SettingsRepository) GetSettings(ctx context.Context) (*models.UnitSettings, error) {
	var settings models.UnitSettings
	err := r.db.WithContext(ctx).Where("id = ?", models.SettingsRowID).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSettingsNotFound
		}
		return nil, err
	}
	return &settings, nil
}

// SaveSettings overwrites the unit settings row
func (r *SettingsRepository) SaveSettings(ctx context.Context, settings *models.UnitSettings) error {
	settings.ID = models.SettingsRowID
	return r.db.WithContext(ctx).Save(settings).Error
}

// CreateSettingsIfNotExists seeds the settings row if it doesn't exist
func (r *SettingsRepository) CreateSettingsIfNotExists(ctx context.Context, defaults *models.UnitSettings) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.UnitSettings{}).Where("id = ?", models.SettingsRowID).Count(&count).Error; err != nil {
		return err
	}

	if count == 0 {
		defaults.ID = models.SettingsRowID
		return r.db.WithContext(ctx).Create(defaults).Error
	}
	return nil
}
