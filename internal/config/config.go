package config

import (
	"fmt"
	"log"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"whatado/event-service/pkg/db"
)

const (
	DriverMySQL  = "mysql"
	DriverMemory = "memory"
)

type Config struct {
	DB            db.Config
	StorageDriver string

	GRPCPort string
	HTTPPort string

	RedisURL            string
	NotificationChannel string
	JWTSecret           string

	DiscoveryRadius float64
	SuggestedLimit  int
	MaxPageSize     int
	QueryTimeout    time.Duration

	ThrottleMaxRequests int
	ThrottlePeriod      time.Duration

	LogLevel string
}

// LoadEnvFiles loads config.env, falling back to .env. Missing files are not
// an error; the process environment always wins.
func LoadEnvFiles(paths ...string) {
	if len(paths) == 0 {
		paths = []string{"config.env", "./config.env", "../config.env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err == nil {
			return
		}
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: config.env and .env files not found, using environment variables only")
	}
}

// Load reads the configuration from the environment
func Load() (*Config, error) {
	cfg := &Config{
		DB: db.Config{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 3306),
			User:            getEnv("DB_USER", "root"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_DATABASE", "whatado"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		StorageDriver:       getEnv("STORAGE_DRIVER", DriverMySQL),
		GRPCPort:            getEnv("GRPC_PORT", "50061"),
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		RedisURL:            getEnv("REDIS_URL", ""),
		NotificationChannel: getEnv("NOTIFICATION_CHANNEL", "push-notifications"),
		JWTSecret:           getEnv("JWT_SECRET", ""),
		DiscoveryRadius:     getEnvAsFloat("DISCOVERY_RADIUS", 10),
		SuggestedLimit:      getEnvAsInt("SUGGESTED_LIMIT", 10),
		MaxPageSize:         getEnvAsInt("MAX_PAGE_SIZE", 100),
		QueryTimeout:        getEnvAsDuration("QUERY_TIMEOUT", 5*time.Second),
		ThrottleMaxRequests: getEnvAsInt("THROTTLE_MAX_REQUESTS", 60),
		ThrottlePeriod:      getEnvAsDuration("THROTTLE_PERIOD", time.Minute),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StorageDriver {
	case DriverMySQL, DriverMemory:
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.DiscoveryRadius < 0 || math.IsNaN(c.DiscoveryRadius) || math.IsInf(c.DiscoveryRadius, 0) {
		return fmt.Errorf("DISCOVERY_RADIUS must be a finite non-negative number")
	}
	if c.SuggestedLimit < 1 || c.MaxPageSize < 1 {
		return fmt.Errorf("SUGGESTED_LIMIT and MAX_PAGE_SIZE must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("QUERY_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return value
	}
	return defaultValue
}
