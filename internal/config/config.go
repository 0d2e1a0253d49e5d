package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"cohort-analytics-go/internal/models"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	return &models.Config{
		Data: models.DataConfig{
			CashRequestsPath: getEnvString("CASH_REQUESTS_CSV", "project_datasets/cash_requests.csv"),
			FeesPath:         getEnvString("FEES_CSV", "project_datasets/fees.csv"),
			PolicyFile:       getEnvString("DATASET_POLICY_FILE", "policy.yaml"),
			OutputDir:        getEnvString("OUTPUT_DIR", "cohort_outputs"),
		},
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "cohort_metrics.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Identity: models.IdentityConfig{
			ConflictPolicy: getEnvString("IDENTITY_CONFLICT_POLICY", "prefer_user_id"),
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
