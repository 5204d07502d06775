package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"icu-bed-management/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return db, mock
}

func TestBedRepo_GetBed_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBedRepo(db)

	mock.ExpectQuery("SELECT \\* FROM `beds` WHERE bed_number = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"bed_number"}))

	_, err := repo.GetBed(context.Background(), "07")

	assert.ErrorIs(t, err, ErrBedNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBedRepo_GetBed_Success(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBedRepo(db)
	start := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"bed_number", "status", "initials", "ventilation_start_time",
		"mobility_target", "mobility_achieved",
		"extubation_success", "extubation_fail", "extubation_accidental", "extubation_self",
		"extubation_total", "history", "last_generated_record",
	}).AddRow(
		"03", "VMI", "J.S.", start,
		4, 2,
		1, 1, 0, 0,
		2, `[{"id":"a","timestamp":"2025-03-10T08:00:00Z","text":"admitted"}]`, nil,
	)
	mock.ExpectQuery("SELECT \\* FROM `beds` WHERE bed_number = \\?").WillReturnRows(rows)

	bed, err := repo.GetBed(context.Background(), "03")
	require.NoError(t, err)

	assert.Equal(t, models.StatusInvasiveVent, bed.Status)
	assert.Equal(t, "J.S.", bed.Initials)
	assert.Equal(t, start, *bed.VentilationStartTime)
	assert.Equal(t, &models.MobilityScale{Target: 4, Achieved: 2}, bed.Mobility())
	assert.Equal(t, models.ExtubationCounters{Success: 1, Fail: 1}, bed.Extubations)
	assert.Equal(t, 2, bed.ExtubationTotal)
	require.Len(t, bed.History, 1)
	assert.Equal(t, "admitted", bed.History[0].Text)
	assert.Nil(t, bed.LastGeneratedRecord)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBedRepo_UpdateBed_WritesOnlyGivenColumns(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBedRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE `beds` SET .*`initials`=\\?.*WHERE bed_number = \\?").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateBed(context.Background(), "03", map[string]interface{}{"initials": "A.B."})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBedRepo_CreateBedIfNotExists(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewBedRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `beds` .*ON DUPLICATE KEY UPDATE").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	bed := models.VacantBed("04")
	created, err := repo.CreateBedIfNotExists(context.Background(), &bed)

	require.NoError(t, err)
	assert.False(t, created)
	require.NoError(t, mock.ExpectationsWereMet())
}

func lockedBedRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"bed_number", "status", "initials", "extubation_success", "extubation_fail", "extubation_total"}).
		AddRow("03", "VMI", "J.S.", 1, 2, 3)
}

func TestDischargeRepo_ArchiveAndReset_BuildsFromLockedRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDischargeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `beds` WHERE bed_number = \\?.*FOR UPDATE").WillReturnRows(lockedBedRows())
	mock.ExpectExec("INSERT INTO `discharge_records`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE `beds` SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	record, err := repo.ArchiveAndReset(context.Background(), "03", func(b models.Bed) models.DischargeRecord {
		return models.DischargeRecord{
			BedNumber:       b.BedNumber,
			DischargedAt:    time.Now(),
			Extubations:     b.Extubations,
			ExtubationTotal: b.Extubations.Total(),
		}
	}, map[string]interface{}{
		"status":   models.StatusVacant,
		"initials": models.VacantInitials,
		"history":  datatypes.JSONSlice[models.HistoryEntry]{},
	})

	require.NoError(t, err)
	assert.Equal(t, uint(1), record.ID)
	assert.Equal(t, models.ExtubationCounters{Success: 1, Fail: 2}, record.Extubations)
	assert.Equal(t, 3, record.ExtubationTotal)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDischargeRepo_ArchiveAndReset_UnknownBed(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDischargeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `beds` WHERE bed_number = \\?.*FOR UPDATE").
		WillReturnRows(sqlmock.NewRows([]string{"bed_number"}))
	mock.ExpectRollback()

	_, err := repo.ArchiveAndReset(context.Background(), "42", func(models.Bed) models.DischargeRecord {
		return models.DischargeRecord{BedNumber: "42"}
	}, nil)

	assert.ErrorIs(t, err, ErrBedNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDischargeRepo_ArchiveAndReset_RollsBackOnArchiveFailure(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDischargeRepo(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `beds` WHERE bed_number = \\?.*FOR UPDATE").WillReturnRows(lockedBedRows())
	mock.ExpectExec("INSERT INTO `discharge_records`").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.ArchiveAndReset(context.Background(), "03", func(b models.Bed) models.DischargeRecord {
		return models.DischargeRecord{BedNumber: b.BedNumber}
	}, map[string]interface{}{"status": models.StatusVacant})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to archive discharge")
	// No UPDATE was expected: the bed reset never ran
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDischargeRepo_ListDischarges(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDischargeRepo(db)
	from := time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	rows := sqlmock.NewRows([]string{"id", "discharged_at", "bed_number", "ventilation_duration_days", "extubation_fail", "extubation_total"}).
		AddRow(1, from.Add(time.Hour), "02", 6, 1, 1)
	mock.ExpectQuery("SELECT \\* FROM `discharge_records` WHERE discharged_at BETWEEN \\? AND \\?").
		WithArgs(from, to).
		WillReturnRows(rows)

	records, err := repo.ListDischarges(context.Background(), from, to)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 6, records[0].VentilationDurationDays)
	assert.Equal(t, 1, records[0].Extubations.Fail)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyMetricRepo_Upsert(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDailyMetricRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `daily_metrics` .*ON DUPLICATE KEY UPDATE .*`mobility_target`=VALUES\\(`mobility_target`\\)").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.UpsertDailyMetric(context.Background(), &models.DailyMetric{
		Date:             models.Day(time.Now()),
		BedNumber:        "03",
		MobilityTarget:   4,
		MobilityAchieved: 4,
		OnVentilation:    true,
	})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDailyMetricRepo_ListComparesCalendarDays(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewDailyMetricRepo(db)
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 23, 59, 59, 0, time.UTC)

	mock.ExpectQuery("SELECT \\* FROM `daily_metrics` WHERE date BETWEEN \\? AND \\?").
		WithArgs("2025-03-01", "2025-03-31").
		WillReturnRows(sqlmock.NewRows([]string{"id", "date", "bed_number", "mobility_target", "mobility_achieved"}))

	metrics, err := repo.ListDailyMetrics(context.Background(), from, to)

	require.NoError(t, err)
	assert.Empty(t, metrics)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_GetSettings_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSettingsRepo(db)

	mock.ExpectQuery("SELECT \\* FROM `unit_settings` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetSettings(context.Background())

	assert.ErrorIs(t, err, ErrSettingsNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepo_CreateSettingsIfNotExists_SkipsExisting(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewSettingsRepo(db)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `unit_settings` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"count(*)"}).AddRow(1))

	err := repo.CreateSettingsIfNotExists(context.Background(), &models.UnitSettings{UnitName: "ICU", TotalBeds: 10})

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_CreateAuditLog(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewAuditRepo(db)
	bed := "03"

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO `audit_logs`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := repo.CreateAuditLog(context.Background(), &bed, "bed_discharge", "Bed 03 discharged")

	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
