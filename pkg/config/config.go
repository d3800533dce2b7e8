package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Cache backends.
const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Grading  GradingConfig
	Cache    CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GradingConfig tunes the grade computation pipeline.
type GradingConfig struct {
	BatchSize               int
	BatchPause              time.Duration
	DefaultPassingThreshold float64
	RequireAllAssessments   bool
	RecomputeWorkers        int
	RecomputeRetries        int
}

// CacheConfig governs the read-path cache for resolved settings and report views.
type CacheConfig struct {
	Enabled    bool
	Backend    string
	TTL        time.Duration
	MaxEntries int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	batchSize := v.GetInt("GRADING_BATCH_SIZE")
	if batchSize <= 0 {
		batchSize = 10
	}
	threshold := v.GetFloat64("GRADING_DEFAULT_PASSING_THRESHOLD")
	if threshold <= 0 {
		threshold = 50
	}
	cfg.Grading = GradingConfig{
		BatchSize:               batchSize,
		BatchPause:              parseDuration(v.GetString("GRADING_BATCH_PAUSE"), 100*time.Millisecond),
		DefaultPassingThreshold: threshold,
		RequireAllAssessments:   v.GetBool("GRADING_REQUIRE_ALL_ASSESSMENTS"),
		RecomputeWorkers:        v.GetInt("GRADING_RECOMPUTE_WORKERS"),
		RecomputeRetries:        v.GetInt("GRADING_RECOMPUTE_RETRIES"),
	}

	backend := strings.ToLower(strings.TrimSpace(v.GetString("GRADE_CACHE_BACKEND")))
	if backend != CacheBackendRedis {
		backend = CacheBackendMemory
	}
	cfg.Cache = CacheConfig{
		Enabled:    v.GetBool("ENABLE_GRADE_CACHE"),
		Backend:    backend,
		TTL:        parseDuration(v.GetString("GRADE_CACHE_TTL"), 5*time.Minute),
		MaxEntries: v.GetInt("GRADE_CACHE_MAX_ENTRIES"),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_grading")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GRADING_BATCH_SIZE", 10)
	v.SetDefault("GRADING_BATCH_PAUSE", "100ms")
	v.SetDefault("GRADING_DEFAULT_PASSING_THRESHOLD", 50)
	v.SetDefault("GRADING_REQUIRE_ALL_ASSESSMENTS", false)
	v.SetDefault("GRADING_RECOMPUTE_WORKERS", 4)
	v.SetDefault("GRADING_RECOMPUTE_RETRIES", 3)

	v.SetDefault("ENABLE_GRADE_CACHE", true)
	v.SetDefault("GRADE_CACHE_BACKEND", CacheBackendMemory)
	v.SetDefault("GRADE_CACHE_TTL", "5m")
	v.SetDefault("GRADE_CACHE_MAX_ENTRIES", 1000)
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
