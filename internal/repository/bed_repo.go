package repository

import (
	"context"
	"errors"

	"icu-bed-management/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BedRepository struct {
	db *gorm.DB
}

func NewBedRepo(db *gorm.DB) *BedRepository {
	return &BedRepository{db: db}
}

// GetBed retrieves a single bed by its bed number
func (r *BedRepository) GetBed(ctx context.Context, bedNumber string) (*models.Bed, error) {
	var bed models.Bed
	err := r.db.WithContext(ctx).Where("bed_number = ?", bedNumber).First(&bed).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBedNotFound
		}
		return nil, err
	}
	return &bed, nil
}

// ListBeds retrieves every bed row ordered by bed number, including rows above the configured roster size
func (r *BedRepository) ListBeds(ctx context.Context) ([]models.Bed, error) {
	var beds []models.Bed
	err := r.db.WithContext(ctx).Order("bed_number ASC").Find(&beds).Error
	return beds, err
}

// ListActiveBeds retrieves all beds that are not vacant
func (r *BedRepository) ListActiveBeds(ctx context.Context) ([]models.Bed, error) {
	var beds []models.Bed
	err := r.db.WithContext(ctx).
		Where("status <> ?", models.StatusVacant).
		Order("bed_number ASC").
		Find(&beds).Error
	return beds, err
}

// UpdateBed applies a partial update; only the columns present in updates are written
func (r *BedRepository) UpdateBed(ctx context.Context, bedNumber string, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).
		Model(&models.Bed{}).
		Where("bed_number = ?", bedNumber).
		Updates(updates).Error
}

// CreateBedIfNotExists inserts the bed unless a row with the same bed number exists.
// Safe under concurrent callers: the insert is a no-op on key conflict.
func (r *BedRepository) CreateBedIfNotExists(ctx context.Context, bed *models.Bed) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(bed)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
