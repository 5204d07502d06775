package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"icu-bed-management/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DischargeBuilder turns the bed state read inside the archive transaction into its record
type DischargeBuilder func(bed models.Bed) models.DischargeRecord

type DischargeRepository struct {
	db *gorm.DB
}

func NewDischargeRepo(db *gorm.DB) *DischargeRepository {
	return &DischargeRepository{db: db}
}

// ArchiveAndReset locks the bed row, builds the discharge record from the locked state,
// writes it and resets the bed in one transaction. A write that commits before the lock
// is taken is archived; one that waits on the lock lands on the reset bed.
// If the archive insert fails the bed is left untouched.
func (r *DischargeRepository) ArchiveAndReset(ctx context.Context, bedNumber string, build DischargeBuilder, reset map[string]interface{}) (*models.DischargeRecord, error) {
	var record models.DischargeRecord
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var bed models.Bed
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("bed_number = ?", bedNumber).
			First(&bed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBedNotFound
			}
			return fmt.Errorf("failed to lock bed: %w", err)
		}

		record = build(bed)
		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("failed to archive discharge: %w", err)
		}
		if err := tx.Model(&models.Bed{}).
			Where("bed_number = ?", bedNumber).
			Updates(reset).Error; err != nil {
			return fmt.Errorf("failed to reset bed: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListDischarges retrieves discharge records whose discharge time falls in [from, to]
func (r *DischargeRepository) ListDischarges(ctx context.Context, from, to time.Time) ([]models.DischargeRecord, error) {
	var records []models.DischargeRecord
	err := r.db.WithContext(ctx).
		Where("discharged_at BETWEEN ? AND ?", from, to).
		Order("discharged_at ASC").
		Find(&records).Error
	return records, err
}
