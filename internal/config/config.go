package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Database   DatabaseConfig
	Server     ServerConfig
	CORS       CORSConfig
	Unit       UnitConfig
	Redis      RedisConfig
	Extraction ExtractionConfig
	Dashboard  DashboardConfig
	Log        LogConfig
}

type DatabaseConfig struct {
	// Driver is "mysql" or "memory"
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Database string
}

type ServerConfig struct {
	Port    string
	GinMode string
}

type CORSConfig struct {
	AllowedOrigins []string
}

// UnitConfig seeds the unit settings row on first boot
type UnitConfig struct {
	Name      string
	TotalBeds int
}

type RedisConfig struct {
	// Addr empty disables the KPI cache
	Addr     string
	Password string
	DB       int
	KPITTL   time.Duration
}

type ExtractionConfig struct {
	WebhookURL    string
	Timeout       time.Duration
	MaxFailures   uint32
	ResetTimeout  time.Duration
	MaxAudioBytes int64
}

type DashboardConfig struct {
	VentilationTargetDays int
	MobilityTargetRate    int
	WarmInterval          time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func LoadConfig() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	config := &Config{
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("DB_DRIVER", "mysql")),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "icu_beds"),
		},
		Server: ServerConfig{
			Port:    getEnv("PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "debug"),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")),
		},
		Unit: UnitConfig{
			Name:      getEnv("UNIT_NAME", "ICU"),
			TotalBeds: parseInt(getEnv("TOTAL_BEDS", "10"), 10),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
			KPITTL:   parseDuration(getEnv("KPI_CACHE_TTL", "5m"), 5*time.Minute),
		},
		Extraction: ExtractionConfig{
			WebhookURL:    getEnv("EXTRACTION_WEBHOOK_URL", ""),
			Timeout:       parseDuration(getEnv("EXTRACTION_TIMEOUT", "90s"), 90*time.Second),
			MaxFailures:   uint32(parseInt(getEnv("EXTRACTION_MAX_FAILURES", "5"), 5)),
			ResetTimeout:  parseDuration(getEnv("EXTRACTION_RESET_TIMEOUT", "30s"), 30*time.Second),
			MaxAudioBytes: int64(parseInt(getEnv("EXTRACTION_MAX_AUDIO_BYTES", "26214400"), 25<<20)),
		},
		Dashboard: DashboardConfig{
			VentilationTargetDays: parseInt(getEnv("VENTILATION_TARGET_DAYS", "5"), 5),
			MobilityTargetRate:    parseInt(getEnv("MOBILITY_TARGET_RATE", "80"), 80),
			WarmInterval:          parseDuration(getEnv("KPI_WARM_INTERVAL", "1m"), time.Minute),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		fmt.Printf("Warning: Invalid duration format '%s', using default\n", s)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		fmt.Printf("Warning: Invalid integer '%s', using default\n", s)
		return fallback
	}
	return n
}

func parseOrigins(s string) []string {
	origins := []string{}
	for _, origin := range strings.Split(s, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
