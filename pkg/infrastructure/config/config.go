package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/macho715/wh3/pkg/domain/entities"
)

// AppConfig holds the settings read from the environment
type AppConfig struct {
	LogLevel      string
	LogFormat     string
	DBPath        string
	OntologyFile  string
	Granularity   entities.Granularity
	Epsilon       decimal.Decimal
	Workers       int
	DeadStockDays int
}

// Load reads the given env files (".env" when none) and then the process
// environment. Missing env files are not an error; variables already set in
// the environment win over file values.
func Load(envFiles ...string) (*AppConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
		slog.Debug("no env file found, using environment and defaults")
	}

	cfg := &AppConfig{
		LogLevel:     getEnv("WH3_LOG_LEVEL", "info"),
		LogFormat:    getEnv("WH3_LOG_FORMAT", "json"),
		DBPath:       getEnv("WH3_DB_PATH", ""),
		OntologyFile: getEnv("WH3_ONTOLOGY_FILE", ""),
	}

	var err error
	if cfg.Granularity, err = entities.ParseGranularity(getEnv("WH3_GRANULARITY", "monthly")); err != nil {
		return nil, fmt.Errorf("WH3_GRANULARITY: %w", err)
	}
	if cfg.Epsilon, err = decimal.NewFromString(getEnv("WH3_EPSILON", "0")); err != nil {
		return nil, fmt.Errorf("WH3_EPSILON: %w", err)
	}
	if cfg.Epsilon.IsNegative() {
		return nil, fmt.Errorf("WH3_EPSILON cannot be negative, got %s", cfg.Epsilon)
	}
	if cfg.Workers, err = getEnvInt("WH3_WORKERS", 1); err != nil {
		return nil, err
	}
	if cfg.DeadStockDays, err = getEnvInt("WH3_DEAD_STOCK_DAYS", 180); err != nil {
		return nil, err
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, strconv.Itoa(defaultValue))
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	if n < 0 {
		return 0, fmt.Errorf("%s cannot be negative, got %d", key, n)
	}
	return n, nil
}
