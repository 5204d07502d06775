package service

import (
	"context"
	"errors"
	"time"

	"icu-bed-management/internal/models"
	"icu-bed-management/internal/repository"
)

var (
	ErrBedNotFound      = repository.ErrBedNotFound
	ErrInvalidBedNumber = errors.New("invalid bed number")
	ErrInvalidWindow    = errors.New("invalid metrics window")
	ErrInvalidSettings  = errors.New("invalid unit settings")
)

// BedStore is the bed table as the services need it
type BedStore interface {
	GetBed(ctx context.Context, bedNumber string) (*models.Bed, error)
	ListBeds(ctx context.Context) ([]models.Bed, error)
	ListActiveBeds(ctx context.Context) ([]models.Bed, error)
	UpdateBed(ctx context.Context, bedNumber string, updates map[string]interface{}) error
	CreateBedIfNotExists(ctx context.Context, bed *models.Bed) (bool, error)
}

// DischargeStore is the append-only discharge archive
type DischargeStore interface {
	ArchiveAndReset(ctx context.Context, bedNumber string, build repository.DischargeBuilder, reset map[string]interface{}) (*models.DischargeRecord, error)
	ListDischarges(ctx context.Context, from, to time.Time) ([]models.DischargeRecord, error)
}

// DailyMetricStore holds the per-day mobility snapshots
type DailyMetricStore interface {
	UpsertDailyMetric(ctx context.Context, metric *models.DailyMetric) error
	ListDailyMetrics(ctx context.Context, from, to time.Time) ([]models.DailyMetric, error)
}

// SettingsStore holds the single unit settings row
type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.UnitSettings, error)
	SaveSettings(ctx context.Context, settings *models.UnitSettings) error
	CreateSettingsIfNotExists(ctx context.Context, defaults *models.UnitSettings) error
}

// AuditStore records mutating actions
type AuditStore interface {
	CreateAuditLog(ctx context.Context, bedNumber *string, action string, details string) error
}
