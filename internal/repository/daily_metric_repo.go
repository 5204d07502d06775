package repository

import (
	"context"
	"time"

	"icu-bed-management/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type DailyMetricRepository struct {
	db *gorm.DB
}

func NewDailyMetricRepo(db *gorm.DB) *DailyMetricRepository {
	return &DailyMetricRepository{db: db}
}

// UpsertDailyMetric inserts the snapshot or overwrites the one already stored for (date, bed_number)
func (r *DailyMetricRepository) UpsertDailyMetric(ctx context.Context, metric *models.DailyMetric) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "date"}, {Name: "bed_number"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"mobility_target",
				"mobility_achieved",
				"on_ventilation",
				"updated_at",
			}),
		}).
		Create(metric).Error
}

// ListDailyMetrics retrieves snapshots whose date falls in [from, to] (compared by calendar day)
func (r *DailyMetricRepository) ListDailyMetrics(ctx context.Context, from, to time.Time) ([]models.DailyMetric, error) {
	var metrics []models.DailyMetric
	err := r.db.WithContext(ctx).
		Where("date BETWEEN ? AND ?", from.Format("2006-01-02"), to.Format("2006-01-02")).
		Order("date ASC, bed_number ASC").
		Find(&metrics).Error
	return metrics, err
}
