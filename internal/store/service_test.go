package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"cohort-analytics-go/internal/metrics"
	"cohort-analytics-go/internal/models"

	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) *Service {
	t.Helper()
	cfg := models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}
	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(service.Close)
	return service
}

func testResults(t *testing.T) *metrics.Results {
	t.Helper()
	transactions := []models.Transaction{
		feeTx(1, "2020-01", 2020, time.January, "accepted", "5"),
		feeTx(1, "2020-01", 2020, time.February, "accepted", "2.50"),
		feeTx(2, "2020-02", 2020, time.February, "accepted", "3"),
	}
	sizes := map[models.Month]int{"2020-01": 1, "2020-02": 1}
	results, err := metrics.Compute(transactions, sizes, nil)
	if err != nil {
		t.Fatalf("Failed to build test results: %v", err)
	}
	return results
}

var testTxSeq int64

func feeTx(userId int64, cohort models.Month, year int, month time.Month, feeStatus, feeAmount string) models.Transaction {
	testTxSeq++
	status := feeStatus
	amount := decimal.RequireFromString(feeAmount)
	return models.Transaction{
		FinalUserId:   userId,
		CashRequestId: testTxSeq,
		Cohort:        cohort,
		CashCreatedAt: time.Date(year, month, 15, 9, 0, 0, 0, time.UTC),
		FeeStatus:     &status,
		FeeAmount:     &amount,
	}
}

func testRun() models.Run {
	started := time.Date(2024, 12, 1, 8, 0, 0, 0, time.UTC)
	return models.Run{
		StartedAt:        started,
		FinishedAt:       started.Add(2 * time.Second),
		CashRequestRows:  3,
		FeeRows:          3,
		TransactionRows:  3,
		CohortCount:      2,
		DistinctUsers:    2,
		ConflictPolicy:   "prefer_user_id",
		PolicyFile:       "policy.yaml",
		CashRequestsPath: "cash_requests.csv",
		FeesPath:         "fees.csv",
	}
}

func TestNewServiceValidation(t *testing.T) {
	ctx := context.Background()

	if _, err := NewService(ctx, models.DatabaseConfig{MaxOpenConns: 1, MaxIdleConns: 1, PingTimeout: time.Second}); err == nil {
		t.Error("Expected error for empty database path")
	}
	if _, err := NewService(ctx, models.DatabaseConfig{Path: ":memory:", MaxIdleConns: 1, PingTimeout: time.Second}); err == nil {
		t.Error("Expected error for non-positive max open connections")
	}
	if _, err := NewService(ctx, models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: -1, PingTimeout: time.Second}); err == nil {
		t.Error("Expected error for negative max idle connections")
	}
	if _, err := NewService(ctx, models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, MaxIdleConns: 1}); err == nil {
		t.Error("Expected error for missing ping timeout")
	}
}

func TestSaveRunRoundTrip(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()
	results := testResults(t)

	runId, err := service.SaveRun(ctx, testRun(), results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if runId == "" {
		t.Fatal("Expected a generated run id")
	}

	latest, err := service.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest.Id != runId {
		t.Errorf("Expected latest run %s, got %s", runId, latest.Id)
	}
	if latest.CohortCount != 2 || latest.DistinctUsers != 2 {
		t.Errorf("Unexpected run counters: %+v", latest)
	}
	if latest.ConflictPolicy != "prefer_user_id" {
		t.Errorf("Expected conflict policy preserved, got %q", latest.ConflictPolicy)
	}
}

func TestLatestRunPicksMostRecent(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()
	results := testResults(t)

	first := testRun()
	if _, err := service.SaveRun(ctx, first, results); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	second := testRun()
	second.FinishedAt = first.FinishedAt.Add(time.Hour)
	second.CashRequestRows = 99
	secondId, err := service.SaveRun(ctx, second, results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	latest, err := service.LatestRun(ctx)
	if err != nil {
		t.Fatalf("LatestRun failed: %v", err)
	}
	if latest.Id != secondId {
		t.Errorf("Expected most recently finished run %s, got %s", secondId, latest.Id)
	}
	if latest.CashRequestRows != 99 {
		t.Errorf("Expected second run's counters, got %d", latest.CashRequestRows)
	}
}

func TestLatestRunEmpty(t *testing.T) {
	service := setupTestDb(t)

	_, err := service.LatestRun(context.Background())
	if !errors.Is(err, ErrNoRuns) {
		t.Fatalf("Expected ErrNoRuns, got %v", err)
	}
}

func TestGetRetention(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()
	results := testResults(t)

	runId, err := service.SaveRun(ctx, testRun(), results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	for _, kind := range []string{"full", "filtered"} {
		cells, err := service.GetRetention(ctx, runId, kind)
		if err != nil {
			t.Fatalf("GetRetention(%s) failed: %v", kind, err)
		}
		// 2 cohorts x 2 months, dense.
		if len(cells) != 4 {
			t.Fatalf("Expected 4 %s retention cells, got %d", kind, len(cells))
		}
		byKey := make(map[string]float64, len(cells))
		for _, cell := range cells {
			byKey[cell.Cohort.String()+"/"+cell.Month.String()] = cell.Rate
		}
		if byKey["2020-01/2020-01"] != 1.0 {
			t.Errorf("Expected entry-month rate 1.0, got %v", byKey["2020-01/2020-01"])
		}
		if byKey["2020-02/2020-01"] != 0 {
			t.Errorf("Expected pre-entry cell 0, got %v", byKey["2020-02/2020-01"])
		}
	}
}

func TestGetRevenueAndArpu(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()
	results := testResults(t)

	runId, err := service.SaveRun(ctx, testRun(), results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	revenue, err := service.GetRevenue(ctx, runId)
	if err != nil {
		t.Fatalf("GetRevenue failed: %v", err)
	}
	if len(revenue) != 2 {
		t.Fatalf("Expected 2 revenue rows, got %d", len(revenue))
	}
	if !revenue[0].Revenue.Equal(decimal.RequireFromString("7.50")) {
		t.Errorf("Expected 2020-01 revenue 7.50, got %s", revenue[0].Revenue)
	}
	if !revenue[1].Cumulative.Equal(decimal.RequireFromString("10.50")) {
		t.Errorf("Expected cumulative 10.50, got %s", revenue[1].Cumulative)
	}

	arpu, err := service.GetArpu(ctx, runId)
	if err != nil {
		t.Fatalf("GetArpu failed: %v", err)
	}
	if len(arpu) != 2 {
		t.Fatalf("Expected 2 arpu rows, got %d", len(arpu))
	}
	if !arpu[0].Arpu.Equal(decimal.RequireFromString("7.50")) {
		t.Errorf("Expected 2020-01 arpu 7.50, got %s", arpu[0].Arpu)
	}
	if arpu[0].UserCount != 1 {
		t.Errorf("Expected user count 1, got %d", arpu[0].UserCount)
	}
}

func TestGetClvAndIncidentRates(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()
	results := testResults(t)

	runId, err := service.SaveRun(ctx, testRun(), results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	clv, err := service.GetClv(ctx, runId)
	if err != nil {
		t.Fatalf("GetClv failed: %v", err)
	}
	if len(clv) != 2 {
		t.Fatalf("Expected 2 clv rows, got %d", len(clv))
	}
	if clv[0].RetentionMonths != 2 {
		t.Errorf("Expected 2 retention months for 2020-01, got %d", clv[0].RetentionMonths)
	}
	if !clv[0].Clv.Equal(decimal.RequireFromString("15.00")) {
		t.Errorf("Expected CLV 15.00, got %s", clv[0].Clv)
	}

	rates, err := service.GetIncidentRates(ctx, runId)
	if err != nil {
		t.Fatalf("GetIncidentRates failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("Expected 2 incident rows, got %d", len(rates))
	}
	for _, rate := range rates {
		if rate.Rate != 0 {
			t.Errorf("Expected incident-free cohorts, got %v for %s", rate.Rate, rate.Cohort)
		}
	}
}

func TestGetCohortSizes(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()

	runId, err := service.SaveRun(ctx, testRun(), testResults(t))
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	sizes, err := service.GetCohortSizes(ctx, runId)
	if err != nil {
		t.Fatalf("GetCohortSizes failed: %v", err)
	}
	if len(sizes) != 2 || sizes["2020-01"] != 1 || sizes["2020-02"] != 1 {
		t.Errorf("Unexpected cohort sizes: %v", sizes)
	}
}

func TestRunsAreIsolatedByRunId(t *testing.T) {
	service := setupTestDb(t)
	ctx := context.Background()
	results := testResults(t)

	firstId, err := service.SaveRun(ctx, testRun(), results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	secondId, err := service.SaveRun(ctx, testRun(), results)
	if err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	firstRevenue, err := service.GetRevenue(ctx, firstId)
	if err != nil {
		t.Fatalf("GetRevenue failed: %v", err)
	}
	secondRevenue, err := service.GetRevenue(ctx, secondId)
	if err != nil {
		t.Fatalf("GetRevenue failed: %v", err)
	}
	if len(firstRevenue) != 2 || len(secondRevenue) != 2 {
		t.Errorf("Expected each run to read back its own 2 rows, got %d and %d", len(firstRevenue), len(secondRevenue))
	}
}
