package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WorkerService keeps the dashboard windows warm in the KPI cache
type WorkerService struct {
	metrics  *MetricsService
	interval time.Duration
	logger   *zap.Logger
}

func NewWorkerService(metrics *MetricsService, interval time.Duration, logger *zap.Logger) *WorkerService {
	return &WorkerService{
		metrics:  metrics,
		interval: interval,
		logger:   logger,
	}
}

// Start recomputes the weekly and monthly KPIs every interval until ctx is done
func (w *WorkerService) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("KPI warm-up worker disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("KPI warm-up worker started", zap.Duration("interval", w.interval))

	w.warm(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("KPI warm-up worker stopped")
			return
		case <-ticker.C:
			w.warm(ctx)
		}
	}
}

func (w *WorkerService) warm(ctx context.Context) {
	now := w.metrics.Now()
	for name, window := range map[string]Window{
		"weekly":  WeeklyWindow(now),
		"monthly": MonthlyWindow(now),
	} {
		if _, err := w.metrics.ComputeMetrics(ctx, window); err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("Failed to warm KPI window", zap.String("period", name), zap.Error(err))
		}
	}
}
