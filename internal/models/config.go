package models

import "time"

// Config is the full runtime configuration, loaded from the
// environment by the config package.
type Config struct {
	Data     DataConfig
	Database DatabaseConfig
	Identity IdentityConfig
}

// DataConfig locates the raw extracts, the dataset policy file and the
// directory that receives exported tables.
type DataConfig struct {
	CashRequestsPath string
	FeesPath         string
	PolicyFile       string
	OutputDir        string
}

// DatabaseConfig configures the SQLite metrics mart.
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// IdentityConfig carries the identity-unification policy.
type IdentityConfig struct {
	ConflictPolicy string
}

// Run is a recorded pipeline run in the metrics mart.
type Run struct {
	Id               string
	StartedAt        time.Time
	FinishedAt       time.Time
	CashRequestRows  int
	FeeRows          int
	TransactionRows  int
	CohortCount      int
	DistinctUsers    int
	ConflictPolicy   string
	PolicyFile       string
	CashRequestsPath string
	FeesPath         string
}
