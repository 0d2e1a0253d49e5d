package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"cohort-analytics-go/internal/metrics"

	"go.uber.org/zap"
)

// WriteAll exports every derived table of a run as CSV files under
// outputDir. Row and column order follow the tables' own sorted
// orders, so re-running on identical input produces byte-identical
// files.
func WriteAll(outputDir string, results *metrics.Results, activity []metrics.MonthlyActivityRow, shares []metrics.TransferShareRow) error {
	if err := writeUsageMatrix(filepath.Join(outputDir, "cohort_usage_matrix.csv"), results.Usage); err != nil {
		return err
	}
	if err := writeRetentionMatrix(filepath.Join(outputDir, "cohort_retention_matrix.csv"), results.Retention); err != nil {
		return err
	}
	if err := writeRetentionMatrix(filepath.Join(outputDir, "cohort_retention_matrix_filtered.csv"), results.FilteredRetention); err != nil {
		return err
	}
	if err := writeIncidentRates(filepath.Join(outputDir, "cohort_incident_rate.csv"), results.IncidentRates); err != nil {
		return err
	}
	if err := writeRevenue(filepath.Join(outputDir, "cohort_revenue.csv"), results.CumulativeRevenue); err != nil {
		return err
	}
	if err := writeArpu(filepath.Join(outputDir, "cohort_arpu.csv"), results.Arpu); err != nil {
		return err
	}
	if err := writeClv(filepath.Join(outputDir, "cohort_clv.csv"), results.Clv); err != nil {
		return err
	}
	if err := writeMonthlyActivity(filepath.Join(outputDir, "monthly_active_users.csv"), activity); err != nil {
		return err
	}
	if err := writeTransferShares(filepath.Join(outputDir, "transfer_type_share.csv"), shares); err != nil {
		return err
	}

	zap.L().Info("Exported derived tables", zap.String("dir", outputDir))
	return nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("unable to create output folder for %s: %w", path, err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("unable to create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("unable to write %s header: %w", path, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("unable to write %s rows: %w", path, err)
	}
	writer.Flush()
	return writer.Error()
}

func writeUsageMatrix(path string, matrix *metrics.UsageMatrix) error {
	header := []string{"cohort"}
	for _, month := range matrix.Months() {
		header = append(header, month.String())
	}

	rows := make([][]string, 0, len(matrix.Cohorts()))
	for _, cohort := range matrix.Cohorts() {
		row := []string{cohort.String()}
		for _, month := range matrix.Months() {
			row = append(row, strconv.Itoa(matrix.Value(cohort, month)))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

func writeRetentionMatrix(path string, matrix *metrics.RetentionMatrix) error {
	header := []string{"cohort"}
	for _, month := range matrix.Months() {
		header = append(header, month.String())
	}

	rows := make([][]string, 0, len(matrix.Cohorts()))
	for _, cohort := range matrix.Cohorts() {
		row := []string{cohort.String()}
		for _, month := range matrix.Months() {
			row = append(row, strconv.FormatFloat(matrix.Value(cohort, month), 'f', 3, 64))
		}
		rows = append(rows, row)
	}
	return writeCSV(path, header, rows)
}

func writeIncidentRates(path string, rates []metrics.IncidentRate) error {
	rows := make([][]string, len(rates))
	for i, rate := range rates {
		rows[i] = []string{
			rate.Cohort.String(),
			strconv.Itoa(rate.TotalRequests),
			strconv.Itoa(rate.IncidentRequests),
			strconv.FormatFloat(rate.Rate, 'f', 4, 64),
		}
	}
	return writeCSV(path, []string{"cohort", "total_requests", "incident_requests", "incident_rate"}, rows)
}

func writeRevenue(path string, revenue []metrics.CumulativeRevenueRow) error {
	rows := make([][]string, len(revenue))
	for i, row := range revenue {
		rows[i] = []string{row.Cohort.String(), row.Revenue.String(), row.Cumulative.String()}
	}
	return writeCSV(path, []string{"cohort", "cohort_revenue", "cumulative_revenue"}, rows)
}

func writeArpu(path string, arpu []metrics.ArpuRow) error {
	rows := make([][]string, len(arpu))
	for i, row := range arpu {
		rows[i] = []string{row.Cohort.String(), row.Revenue.String(), strconv.Itoa(row.UserCount), row.Arpu.String()}
	}
	return writeCSV(path, []string{"cohort", "cohort_revenue", "user_count", "arpu"}, rows)
}

func writeClv(path string, clv []metrics.ClvRow) error {
	rows := make([][]string, len(clv))
	for i, row := range clv {
		rows[i] = []string{row.Cohort.String(), row.Arpu.String(), strconv.Itoa(row.RetentionMonths), row.Clv.String()}
	}
	return writeCSV(path, []string{"cohort", "arpu", "retention_months", "clv"}, rows)
}

func writeMonthlyActivity(path string, activity []metrics.MonthlyActivityRow) error {
	rows := make([][]string, len(activity))
	for i, row := range activity {
		rows[i] = []string{
			row.Month.String(),
			strconv.Itoa(row.ActiveUsers),
			strconv.Itoa(row.Requests),
			row.TotalAmount.String(),
		}
	}
	return writeCSV(path, []string{"month", "active_users", "cash_requests", "total_amount"}, rows)
}

func writeTransferShares(path string, shares []metrics.TransferShareRow) error {
	rows := make([][]string, len(shares))
	for i, row := range shares {
		rows[i] = []string{
			row.Month.String(),
			strconv.Itoa(row.Instant),
			strconv.Itoa(row.Regular),
			strconv.FormatFloat(row.InstantSharePct, 'f', 3, 64),
		}
	}
	return writeCSV(path, []string{"month", "instant", "regular", "instant_share_percent"}, rows)
}
