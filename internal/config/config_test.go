package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "")
	t.Setenv("TOTAL_BEDS", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := LoadConfig()

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, "icu_beds", cfg.Database.Database)
	assert.Equal(t, 10, cfg.Unit.TotalBeds)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Redis.KPITTL)
	assert.Equal(t, 90*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, uint32(5), cfg.Extraction.MaxFailures)
	assert.Equal(t, int64(25<<20), cfg.Extraction.MaxAudioBytes)
	assert.Equal(t, 5, cfg.Dashboard.VentilationTargetDays)
	assert.Equal(t, 80, cfg.Dashboard.MobilityTargetRate)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("DB_DRIVER", "Memory")
	t.Setenv("UNIT_NAME", "CTI 2")
	t.Setenv("TOTAL_BEDS", "12")
	t.Setenv("EXTRACTION_TIMEOUT", "45s")
	t.Setenv("EXTRACTION_MAX_FAILURES", "3")
	t.Setenv("KPI_WARM_INTERVAL", "0s")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")

	cfg := LoadConfig()

	assert.Equal(t, "memory", cfg.Database.Driver)
	assert.Equal(t, "CTI 2", cfg.Unit.Name)
	assert.Equal(t, 12, cfg.Unit.TotalBeds)
	assert.Equal(t, 45*time.Second, cfg.Extraction.Timeout)
	assert.Equal(t, uint32(3), cfg.Extraction.MaxFailures)
	assert.Zero(t, cfg.Dashboard.WarmInterval)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("TOTAL_BEDS", "many")
	t.Setenv("KPI_CACHE_TTL", "soon")
	t.Setenv("MOBILITY_TARGET_RATE", "-10")

	cfg := LoadConfig()

	assert.Equal(t, 10, cfg.Unit.TotalBeds)
	assert.Equal(t, 5*time.Minute, cfg.Redis.KPITTL)
	assert.Equal(t, 80, cfg.Dashboard.MobilityTargetRate)
}
