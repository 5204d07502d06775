package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"icu-bed-management/internal/cache"
	"icu-bed-management/internal/models"
	"icu-bed-management/internal/repository"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// testEnv wires every service over one in-memory store with a fixed clock
type testEnv struct {
	store     *repository.MemoryStore
	kv        *fakeKV
	settings  *SettingsService
	roster    *RosterService
	beds      *BedService
	discharge *DischargeService
	metrics   *MetricsService
	now       time.Time
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	logger := zap.NewNop()
	store := repository.NewMemoryStore()
	kv := newFakeKV()
	kpiCache := cache.NewKPICache(kv, time.Minute, logger, nil)
	clock := func() time.Time { return now }

	settings := NewSettingsService(store, store, models.UnitSettings{UnitName: "ICU", TotalBeds: 5}, logger)
	roster := NewRosterService(store, settings, store, logger)

	beds := NewBedService(store, store, store, newTestReconciler(now), kpiCache, nil, logger)
	beds.now = clock

	discharge := NewDischargeService(store, store, store, kpiCache, nil, logger)
	discharge.now = clock

	metrics := NewMetricsService(store, store, store, kpiCache, Targets{VentilationDays: 5, MobilityRatePct: 80}, logger)
	metrics.now = clock

	return &testEnv{
		store:     store,
		kv:        kv,
		settings:  settings,
		roster:    roster,
		beds:      beds,
		discharge: discharge,
		metrics:   metrics,
		now:       now,
	}
}

func (e *testEnv) seedBed(t *testing.T, bed models.Bed) {
	t.Helper()
	created, err := e.store.CreateBedIfNotExists(context.Background(), &bed)
	require.NoError(t, err)
	require.True(t, created)
}

func (e *testEnv) bed(t *testing.T, bedNumber string) *models.Bed {
	t.Helper()
	bed, err := e.store.GetBed(context.Background(), bedNumber)
	require.NoError(t, err)
	return bed
}

// fakeKV is an in-memory KVStore for cache behaviour in service tests
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(ctx context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", cache.ErrCacheMiss
	}
	return v, nil
}

func (f *fakeKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value
	return nil
}

func (f *fakeKV) Incr(ctx context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, _ := strconv.ParseInt(f.data[key], 10, 64)
	n++
	f.data[key] = strconv.FormatInt(n, 10)
	return n, nil
}
