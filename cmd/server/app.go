package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"icu-bed-management/internal/cache"
	"icu-bed-management/internal/config"
	"icu-bed-management/internal/database"
	"icu-bed-management/internal/extraction"
	"icu-bed-management/internal/handler"
	"icu-bed-management/internal/metrics"
	"icu-bed-management/internal/models"
	"icu-bed-management/internal/repository"
	"icu-bed-management/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type stores struct {
	beds       service.BedStore
	discharges service.DischargeStore
	daily      service.DailyMetricStore
	settings   service.SettingsStore
	audit      service.AuditStore
}

type app struct {
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	settingsService  *service.SettingsService
	rosterService    *service.RosterService
	bedService       *service.BedService
	dischargeService *service.DischargeService
	metricsService   *service.MetricsService
	voiceService     *service.VoiceService
	workerService    *service.WorkerService

	closers []func() error
}

// openStores connects the configured persistence backend
func openStores(cfg *config.Config, logger *zap.Logger) (stores, []func() error, error) {
	if cfg.Database.Driver == "memory" {
		logger.Warn("Using in-memory store; data is lost on restart")
		mem := repository.NewMemoryStore()
		return stores{beds: mem, discharges: mem, daily: mem, settings: mem, audit: mem}, nil, nil
	}

	db, err := database.Connect(cfg, logger)
	if err != nil {
		return stores{}, nil, err
	}
	if err := database.Migrate(db); err != nil {
		return stores{}, nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return stores{}, nil, err
	}

	return stores{
		beds:       repository.NewBedRepo(db),
		discharges: repository.NewDischargeRepo(db),
		daily:      repository.NewDailyMetricRepo(db),
		settings:   repository.NewSettingsRepo(db),
		audit:      repository.NewAuditRepo(db),
	}, []func() error{sqlDB.Close}, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	st, closers, err := openStores(cfg, logger)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	var kpiCache *cache.KPICache
	if cfg.Redis.Addr != "" {
		client := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logger.Warn("Redis not reachable at startup; KPI cache will retry per request",
				zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		cancel()
		kpiCache = cache.NewKPICache(cache.NewRedisKVStore(client), cfg.Redis.KPITTL, logger, m)
		closers = append(closers, client.Close)
	} else {
		logger.Info("REDIS_ADDR not set; KPI cache disabled")
	}

	settingsService := service.NewSettingsService(st.settings, st.audit, models.UnitSettings{
		UnitName:  cfg.Unit.Name,
		TotalBeds: cfg.Unit.TotalBeds,
	}, logger)
	rosterService := service.NewRosterService(st.beds, settingsService, st.audit, logger)
	bedService := service.NewBedService(st.beds, st.daily, st.audit, service.NewReconciler(), kpiCache, m, logger)
	dischargeService := service.NewDischargeService(st.beds, st.discharges, st.audit, kpiCache, m, logger)
	metricsService := service.NewMetricsService(st.beds, st.discharges, st.daily, kpiCache, service.Targets{
		VentilationDays: cfg.Dashboard.VentilationTargetDays,
		MobilityRatePct: cfg.Dashboard.MobilityTargetRate,
	}, logger)

	if cfg.Extraction.WebhookURL == "" {
		logger.Warn("EXTRACTION_WEBHOOK_URL not set; voice recordings will fail")
	}
	extractor := extraction.NewWebhookClient(extraction.WebhookConfig{
		URL:          cfg.Extraction.WebhookURL,
		Location:     time.Local,
		MaxFailures:  cfg.Extraction.MaxFailures,
		ResetTimeout: cfg.Extraction.ResetTimeout,
	}, &http.Client{}, logger, m)
	voiceService := service.NewVoiceService(bedService, extractor, cfg.Extraction.Timeout, logger)

	return &app{
		registry:         registry,
		metrics:          m,
		settingsService:  settingsService,
		rosterService:    rosterService,
		bedService:       bedService,
		dischargeService: dischargeService,
		metricsService:   metricsService,
		voiceService:     voiceService,
		workerService:    service.NewWorkerService(metricsService, cfg.Dashboard.WarmInterval, logger),
		closers:          closers,
	}, nil
}

func (a *app) handlers(cfg *config.Config, logger *zap.Logger) (*handler.BedHandler, *handler.DashboardHandler, *handler.SettingsHandler, http.Handler) {
	return handler.NewBedHandler(a.bedService, a.rosterService, a.dischargeService, a.voiceService, cfg.Extraction.MaxAudioBytes, logger),
		handler.NewDashboardHandler(a.metricsService, a.settingsService, logger),
		handler.NewSettingsHandler(a.settingsService, a.rosterService, logger),
		promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
}

func (a *app) Close(logger *zap.Logger) {
	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
}
