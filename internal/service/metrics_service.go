package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"icu-bed-management/internal/cache"
	"icu-bed-management/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Targets are the unit's quality goals the dashboard trends are judged against
type Targets struct {
	VentilationDays int
	MobilityRatePct int
}

type MetricsService struct {
	beds       BedStore
	discharges DischargeStore
	daily      DailyMetricStore
	kpiCache   *cache.KPICache
	targets    Targets
	logger     *zap.Logger
	now        func() time.Time
}

func NewMetricsService(
	beds BedStore,
	discharges DischargeStore,
	daily DailyMetricStore,
	kpiCache *cache.KPICache,
	targets Targets,
	logger *zap.Logger,
) *MetricsService {
	return &MetricsService{
		beds:       beds,
		discharges: discharges,
		daily:      daily,
		kpiCache:   kpiCache,
		targets:    targets,
		logger:     logger,
		now:        time.Now,
	}
}

// Now is the clock the service resolves windows against
func (s *MetricsService) Now() time.Time {
	return s.now()
}

// Targets returns the goals trends are judged against
func (s *MetricsService) Targets() Targets {
	return s.targets
}

// ComputeMetrics aggregates unit KPIs over the window from the discharge archive,
// the daily mobility snapshots and the beds still occupied.
func (s *MetricsService) ComputeMetrics(ctx context.Context, w Window) (*models.UnitKPI, error) {
	if w.Start.After(w.End) {
		return nil, fmt.Errorf("%w: start %s is after end %s", ErrInvalidWindow,
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}

	key, cacheable := s.kpiCache.KeyFor(ctx, w.Start, w.End)
	if cacheable {
		if kpi, ok := s.kpiCache.Get(ctx, key); ok {
			return kpi, nil
		}
	}

	var (
		discharges []models.DischargeRecord
		snapshots  []models.DailyMetric
		active     []models.Bed
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		discharges, err = s.discharges.ListDischarges(gctx, w.Start, w.End)
		if err != nil {
			return fmt.Errorf("failed to list discharges: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		snapshots, err = s.daily.ListDailyMetrics(gctx, w.Start, w.End)
		if err != nil {
			return fmt.Errorf("failed to list daily metrics: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		active, err = s.beds.ListActiveBeds(gctx)
		if err != nil {
			return fmt.Errorf("failed to list active beds: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	kpi := Aggregate(w, s.now(), discharges, snapshots, active, s.targets)
	if cacheable {
		s.kpiCache.Put(ctx, key, &kpi)
	}

	s.logger.Debug("Computed unit KPIs",
		zap.Time("window_start", w.Start),
		zap.Time("window_end", w.End),
		zap.Int("discharges", len(discharges)),
		zap.Int("snapshots", len(snapshots)),
		zap.Int("active_beds", len(active)),
	)
	return &kpi, nil
}

// Aggregate computes the dashboard KPIs. Every ratio with an empty denominator is 0.
func Aggregate(
	w Window,
	now time.Time,
	discharges []models.DischargeRecord,
	snapshots []models.DailyMetric,
	active []models.Bed,
	targets Targets,
) models.UnitKPI {
	kpi := models.UnitKPI{
		WindowStart: w.Start,
		WindowEnd:   w.End,
		ComputedAt:  now,
	}

	// Mean ventilation days over closed stays and running ones
	days, samples := 0, 0
	for _, d := range discharges {
		if d.VentilationDurationDays > 0 {
			days += d.VentilationDurationDays
			samples++
		}
	}
	for i := range active {
		if active[i].VentilationStartTime != nil {
			days += active[i].VentilationDays(now)
			samples++
		}
	}
	kpi.VentilationAverage = roundDiv(days, samples)
	kpi.VentilationSamples = samples
	kpi.VentilationTrend = models.TrendUp
	if kpi.VentilationAverage > targets.VentilationDays {
		kpi.VentilationTrend = models.TrendDown
	}

	// Mobility compliance over the day snapshots that carry a goal
	assessed, met := 0, 0
	for _, m := range snapshots {
		if m.MobilityTarget > 0 {
			assessed++
			if m.MobilityAchieved >= m.MobilityTarget {
				met++
			}
		}
	}
	kpi.MobilityAssessments = assessed
	kpi.MobilityComplianceRate = roundPercent(met, assessed)
	if assessed > 0 {
		kpi.MobilityNotMetRate = 100 - kpi.MobilityComplianceRate
	}
	kpi.MobilityTrend = models.TrendDown
	if kpi.MobilityComplianceRate >= targets.MobilityRatePct {
		kpi.MobilityTrend = models.TrendUp
	}

	// Extubation outcomes over closed stays and running ones
	var counters models.ExtubationCounters
	for _, d := range discharges {
		counters = counters.Add(d.Extubations)
	}
	for i := range active {
		counters = counters.Add(active[i].Extubations)
	}
	kpi.Extubations = counters
	kpi.ExtubationTotal = counters.Total()
	kpi.ExtubationFailRate = roundPercent(counters.Fail, kpi.ExtubationTotal)

	return kpi
}

func roundDiv(num, den int) int {
	if den == 0 {
		return 0
	}
	return int(math.Round(float64(num) / float64(den)))
}

func roundPercent(part, whole int) int {
	if whole == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(whole)))
}
