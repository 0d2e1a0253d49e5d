package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"cohort-analytics-go/internal/metrics"
	"cohort-analytics-go/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoRuns is returned when the mart holds no completed runs.
var ErrNoRuns = errors.New("no recorded runs")

// Service is the SQLite metrics mart: a run registry plus one table
// per derived output, written whole per run and read back by the
// report tool.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite metrics mart", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		cash_request_rows INTEGER NOT NULL,
		fee_rows INTEGER NOT NULL,
		transaction_rows INTEGER NOT NULL,
		cohort_count INTEGER NOT NULL,
		distinct_users INTEGER NOT NULL,
		conflict_policy TEXT NOT NULL,
		policy_file TEXT NOT NULL,
		cash_requests_path TEXT NOT NULL,
		fees_path TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_finished_at ON runs(finished_at);

	CREATE TABLE IF NOT EXISTS usage_matrix (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cohort TEXT NOT NULL,
		month TEXT NOT NULL,
		requests INTEGER NOT NULL,
		PRIMARY KEY (run_id, cohort, month)
	);

	CREATE TABLE IF NOT EXISTS retention_matrix (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		kind TEXT NOT NULL,
		cohort TEXT NOT NULL,
		month TEXT NOT NULL,
		rate REAL NOT NULL,
		PRIMARY KEY (run_id, kind, cohort, month)
	);

	CREATE TABLE IF NOT EXISTS incident_rates (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cohort TEXT NOT NULL,
		total_requests INTEGER NOT NULL,
		incident_requests INTEGER NOT NULL,
		rate REAL NOT NULL,
		PRIMARY KEY (run_id, cohort)
	);

	CREATE TABLE IF NOT EXISTS revenue (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cohort TEXT NOT NULL,
		revenue TEXT NOT NULL,
		cumulative_revenue TEXT NOT NULL,
		PRIMARY KEY (run_id, cohort)
	);

	CREATE TABLE IF NOT EXISTS arpu (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cohort TEXT NOT NULL,
		revenue TEXT NOT NULL,
		user_count INTEGER NOT NULL,
		arpu TEXT NOT NULL,
		PRIMARY KEY (run_id, cohort)
	);

	CREATE TABLE IF NOT EXISTS clv (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cohort TEXT NOT NULL,
		arpu TEXT NOT NULL,
		retention_months INTEGER NOT NULL,
		clv TEXT NOT NULL,
		PRIMARY KEY (run_id, cohort)
	);

	CREATE TABLE IF NOT EXISTS cohort_sizes (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		cohort TEXT NOT NULL,
		user_count INTEGER NOT NULL,
		PRIMARY KEY (run_id, cohort)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveRun records a completed pipeline run and all of its derived
// tables in a single transaction, returning the generated run id.
func (s *Service) SaveRun(ctx context.Context, run models.Run, results *metrics.Results) (string, error) {
	runId := uuid.New().String()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("unable to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, queryInsertRun,
		runId, run.StartedAt, run.FinishedAt, run.CashRequestRows, run.FeeRows,
		run.TransactionRows, run.CohortCount, run.DistinctUsers, run.ConflictPolicy,
		run.PolicyFile, run.CashRequestsPath, run.FeesPath)
	if err != nil {
		return "", fmt.Errorf("unable to insert run: %w", err)
	}

	for _, cohort := range results.Usage.Cohorts() {
		for _, month := range results.Usage.Months() {
			if _, err := tx.ExecContext(ctx, queryInsertUsageCell, runId, cohort.String(), month.String(), results.Usage.Value(cohort, month)); err != nil {
				return "", fmt.Errorf("unable to insert usage cell: %w", err)
			}
		}
	}

	if err := insertRetention(ctx, tx, runId, "full", results.Retention); err != nil {
		return "", err
	}
	if err := insertRetention(ctx, tx, runId, "filtered", results.FilteredRetention); err != nil {
		return "", err
	}

	for _, rate := range results.IncidentRates {
		if _, err := tx.ExecContext(ctx, queryInsertIncidentRate, runId, rate.Cohort.String(), rate.TotalRequests, rate.IncidentRequests, rate.Rate); err != nil {
			return "", fmt.Errorf("unable to insert incident rate: %w", err)
		}
	}

	for _, row := range results.CumulativeRevenue {
		if _, err := tx.ExecContext(ctx, queryInsertRevenue, runId, row.Cohort.String(), row.Revenue.String(), row.Cumulative.String()); err != nil {
			return "", fmt.Errorf("unable to insert revenue: %w", err)
		}
	}

	for _, row := range results.Arpu {
		if _, err := tx.ExecContext(ctx, queryInsertArpu, runId, row.Cohort.String(), row.Revenue.String(), row.UserCount, row.Arpu.String()); err != nil {
			return "", fmt.Errorf("unable to insert arpu: %w", err)
		}
	}

	for _, row := range results.Clv {
		if _, err := tx.ExecContext(ctx, queryInsertClv, runId, row.Cohort.String(), row.Arpu.String(), row.RetentionMonths, row.Clv.String()); err != nil {
			return "", fmt.Errorf("unable to insert clv: %w", err)
		}
	}

	for cohort, count := range results.CohortSizes {
		if _, err := tx.ExecContext(ctx, queryInsertCohortSize, runId, cohort.String(), count); err != nil {
			return "", fmt.Errorf("unable to insert cohort size: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("unable to commit run: %w", err)
	}

	zap.L().Info("Run persisted to metrics mart", zap.String("run_id", runId))
	return runId, nil
}

func insertRetention(ctx context.Context, tx *sql.Tx, runId, kind string, matrix *metrics.RetentionMatrix) error {
	for _, cohort := range matrix.Cohorts() {
		for _, month := range matrix.Months() {
			if _, err := tx.ExecContext(ctx, queryInsertRetentionCell, runId, kind, cohort.String(), month.String(), matrix.Value(cohort, month)); err != nil {
				return fmt.Errorf("unable to insert %s retention cell: %w", kind, err)
			}
		}
	}
	return nil
}

// LatestRun returns the most recently finished run.
func (s *Service) LatestRun(ctx context.Context) (*models.Run, error) {
	var run models.Run
	err := s.db.QueryRowContext(ctx, queryLatestRun).Scan(
		&run.Id, &run.StartedAt, &run.FinishedAt, &run.CashRequestRows, &run.FeeRows,
		&run.TransactionRows, &run.CohortCount, &run.DistinctUsers, &run.ConflictPolicy,
		&run.PolicyFile, &run.CashRequestsPath, &run.FeesPath)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("unable to load latest run: %w", err)
	}
	return &run, nil
}

// RetentionCell is one stored retention cell.
type RetentionCell struct {
	Cohort models.Month
	Month  models.Month
	Rate   float64
}

// GetRetention loads one stored retention matrix by kind ("full" or
// "filtered") in cohort-then-month order.
func (s *Service) GetRetention(ctx context.Context, runId, kind string) ([]RetentionCell, error) {
	rows, err := s.db.QueryContext(ctx, queryGetRetention, runId, kind)
	if err != nil {
		return nil, fmt.Errorf("unable to query retention: %w", err)
	}
	defer rows.Close()

	var cells []RetentionCell
	for rows.Next() {
		var cell RetentionCell
		var cohort, month string
		if err := rows.Scan(&cohort, &month, &cell.Rate); err != nil {
			return nil, fmt.Errorf("unable to scan retention cell: %w", err)
		}
		cell.Cohort = models.Month(cohort)
		cell.Month = models.Month(month)
		cells = append(cells, cell)
	}
	return cells, rows.Err()
}

// GetIncidentRates loads the incident-rate table for a run.
func (s *Service) GetIncidentRates(ctx context.Context, runId string) ([]metrics.IncidentRate, error) {
	rows, err := s.db.QueryContext(ctx, queryGetIncidentRates, runId)
	if err != nil {
		return nil, fmt.Errorf("unable to query incident rates: %w", err)
	}
	defer rows.Close()

	var rates []metrics.IncidentRate
	for rows.Next() {
		var rate metrics.IncidentRate
		var cohort string
		if err := rows.Scan(&cohort, &rate.TotalRequests, &rate.IncidentRequests, &rate.Rate); err != nil {
			return nil, fmt.Errorf("unable to scan incident rate: %w", err)
		}
		rate.Cohort = models.Month(cohort)
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}

// GetRevenue loads the revenue table, cumulative column included.
func (s *Service) GetRevenue(ctx context.Context, runId string) ([]metrics.CumulativeRevenueRow, error) {
	rows, err := s.db.QueryContext(ctx, queryGetRevenue, runId)
	if err != nil {
		return nil, fmt.Errorf("unable to query revenue: %w", err)
	}
	defer rows.Close()

	var result []metrics.CumulativeRevenueRow
	for rows.Next() {
		var cohort, revenue, cumulative string
		if err := rows.Scan(&cohort, &revenue, &cumulative); err != nil {
			return nil, fmt.Errorf("unable to scan revenue row: %w", err)
		}
		row := metrics.CumulativeRevenueRow{Cohort: models.Month(cohort)}
		if row.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("stored revenue %q: %w", revenue, err)
		}
		if row.Cumulative, err = decimal.NewFromString(cumulative); err != nil {
			return nil, fmt.Errorf("stored cumulative revenue %q: %w", cumulative, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// GetArpu loads the ARPU table for a run.
func (s *Service) GetArpu(ctx context.Context, runId string) ([]metrics.ArpuRow, error) {
	rows, err := s.db.QueryContext(ctx, queryGetArpu, runId)
	if err != nil {
		return nil, fmt.Errorf("unable to query arpu: %w", err)
	}
	defer rows.Close()

	var result []metrics.ArpuRow
	for rows.Next() {
		var cohort, revenue, arpu string
		var row metrics.ArpuRow
		if err := rows.Scan(&cohort, &revenue, &row.UserCount, &arpu); err != nil {
			return nil, fmt.Errorf("unable to scan arpu row: %w", err)
		}
		row.Cohort = models.Month(cohort)
		if row.Revenue, err = decimal.NewFromString(revenue); err != nil {
			return nil, fmt.Errorf("stored revenue %q: %w", revenue, err)
		}
		if row.Arpu, err = decimal.NewFromString(arpu); err != nil {
			return nil, fmt.Errorf("stored arpu %q: %w", arpu, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// GetClv loads the CLV table for a run.
func (s *Service) GetClv(ctx context.Context, runId string) ([]metrics.ClvRow, error) {
	rows, err := s.db.QueryContext(ctx, queryGetClv, runId)
	if err != nil {
		return nil, fmt.Errorf("unable to query clv: %w", err)
	}
	defer rows.Close()

	var result []metrics.ClvRow
	for rows.Next() {
		var cohort, arpu, clv string
		var row metrics.ClvRow
		if err := rows.Scan(&cohort, &arpu, &row.RetentionMonths, &clv); err != nil {
			return nil, fmt.Errorf("unable to scan clv row: %w", err)
		}
		row.Cohort = models.Month(cohort)
		if row.Arpu, err = decimal.NewFromString(arpu); err != nil {
			return nil, fmt.Errorf("stored arpu %q: %w", arpu, err)
		}
		if row.Clv, err = decimal.NewFromString(clv); err != nil {
			return nil, fmt.Errorf("stored clv %q: %w", clv, err)
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

// GetCohortSizes loads the distinct-user count per cohort for a run.
func (s *Service) GetCohortSizes(ctx context.Context, runId string) (map[models.Month]int, error) {
	rows, err := s.db.QueryContext(ctx, queryGetCohortSizes, runId)
	if err != nil {
		return nil, fmt.Errorf("unable to query cohort sizes: %w", err)
	}
	defer rows.Close()

	sizes := make(map[models.Month]int)
	for rows.Next() {
		var cohort string
		var count int
		if err := rows.Scan(&cohort, &count); err != nil {
			return nil, fmt.Errorf("unable to scan cohort size: %w", err)
		}
		sizes[models.Month(cohort)] = count
	}
	return sizes, rows.Err()
}
