package export

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cohort-analytics-go/internal/metrics"
	"cohort-analytics-go/internal/models"

	"github.com/shopspring/decimal"
)

func exportResults(t *testing.T) (*metrics.Results, []metrics.MonthlyActivityRow, []metrics.TransferShareRow) {
	t.Helper()

	accepted := "accepted"
	fee := decimal.RequireFromString("5")
	transactions := []models.Transaction{
		{
			FinalUserId:   1,
			CashRequestId: 1,
			Cohort:        "2020-01",
			CashCreatedAt: time.Date(2020, time.January, 10, 0, 0, 0, 0, time.UTC),
			FeeStatus:     &accepted,
			FeeAmount:     &fee,
		},
		{
			FinalUserId:   1,
			CashRequestId: 2,
			Cohort:        "2020-01",
			CashCreatedAt: time.Date(2020, time.February, 10, 0, 0, 0, 0, time.UTC),
		},
	}
	results, err := metrics.Compute(transactions, map[models.Month]int{"2020-01": 1}, nil)
	if err != nil {
		t.Fatalf("Failed to build test results: %v", err)
	}

	requests := []models.CashRequest{
		{
			FinalUserId:  1,
			Amount:       decimal.RequireFromString("100"),
			TransferType: "instant",
			CreatedAt:    time.Date(2020, time.January, 10, 0, 0, 0, 0, time.UTC),
		},
	}
	return results, metrics.MonthlyActivity(requests), metrics.TransferTypeShare(requests)
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("Failed to open %s: %v", path, err)
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("Failed to parse %s: %v", path, err)
	}
	return records
}

func TestWriteAllProducesEveryTable(t *testing.T) {
	dir := t.TempDir()
	results, activity, shares := exportResults(t)

	if err := WriteAll(dir, results, activity, shares); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	want := []string{
		"cohort_usage_matrix.csv",
		"cohort_retention_matrix.csv",
		"cohort_retention_matrix_filtered.csv",
		"cohort_incident_rate.csv",
		"cohort_revenue.csv",
		"cohort_arpu.csv",
		"cohort_clv.csv",
		"monthly_active_users.csv",
		"transfer_type_share.csv",
	}
	for _, name := range want {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestWriteAllMatrixLayout(t *testing.T) {
	dir := t.TempDir()
	results, activity, shares := exportResults(t)

	if err := WriteAll(dir, results, activity, shares); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	usage := readCSV(t, filepath.Join(dir, "cohort_usage_matrix.csv"))
	if len(usage) != 2 {
		t.Fatalf("Expected header plus 1 cohort row, got %d records", len(usage))
	}
	if usage[0][0] != "cohort" || usage[0][1] != "2020-01" || usage[0][2] != "2020-02" {
		t.Errorf("Unexpected usage header: %v", usage[0])
	}
	if usage[1][0] != "2020-01" || usage[1][1] != "1" || usage[1][2] != "1" {
		t.Errorf("Unexpected usage row: %v", usage[1])
	}

	retention := readCSV(t, filepath.Join(dir, "cohort_retention_matrix.csv"))
	if retention[1][1] != "1.000" || retention[1][2] != "1.000" {
		t.Errorf("Unexpected retention row: %v", retention[1])
	}

	revenue := readCSV(t, filepath.Join(dir, "cohort_revenue.csv"))
	if revenue[1][0] != "2020-01" || revenue[1][1] != "5" || revenue[1][2] != "5" {
		t.Errorf("Unexpected revenue row: %v", revenue[1])
	}
}

func TestWriteAllCreatesOutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	results, activity, shares := exportResults(t)

	if err := WriteAll(dir, results, activity, shares); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cohort_clv.csv")); err != nil {
		t.Errorf("Expected output dir created on demand: %v", err)
	}
}

func TestWriteAllDeterministic(t *testing.T) {
	results, activity, shares := exportResults(t)

	firstDir := t.TempDir()
	secondDir := t.TempDir()
	if err := WriteAll(firstDir, results, activity, shares); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}
	if err := WriteAll(secondDir, results, activity, shares); err != nil {
		t.Fatalf("WriteAll failed: %v", err)
	}

	entries, err := os.ReadDir(firstDir)
	if err != nil {
		t.Fatalf("Failed to list output dir: %v", err)
	}
	for _, entry := range entries {
		first, err := os.ReadFile(filepath.Join(firstDir, entry.Name()))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", entry.Name(), err)
		}
		second, err := os.ReadFile(filepath.Join(secondDir, entry.Name()))
		if err != nil {
			t.Fatalf("Failed to read %s: %v", entry.Name(), err)
		}
		if !bytes.Equal(first, second) {
			t.Errorf("Expected %s to be byte-identical across runs", entry.Name())
		}
	}
}
