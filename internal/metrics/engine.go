package metrics

import (
	"errors"
	"fmt"
	"sort"

	"cohort-analytics-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrNoTransactions is returned when the engine receives an empty
// transaction table.
var ErrNoTransactions = errors.New("no transactions to aggregate")

// ErrUntaggedTransactions is returned when any transaction is missing
// its cohort: the assigner was not run or failed silently upstream.
var ErrUntaggedTransactions = errors.New("transactions without cohort tags")

// IncidentRate is one cohort's share of requests that entered the
// recovery process.
type IncidentRate struct {
	Cohort           models.Month
	TotalRequests    int
	IncidentRequests int
	Rate             float64
}

// RevenueRow is one cohort's collected revenue: accepted fees only.
type RevenueRow struct {
	Cohort  models.Month
	Revenue decimal.Decimal
}

// CumulativeRevenueRow extends a revenue row with the running total
// over chronologically ordered cohorts.
type CumulativeRevenueRow struct {
	Cohort     models.Month
	Revenue    decimal.Decimal
	Cumulative decimal.Decimal
}

// ArpuRow is one cohort's average revenue per user.
type ArpuRow struct {
	Cohort    models.Month
	Revenue   decimal.Decimal
	UserCount int
	Arpu      decimal.Decimal
}

// ClvRow is one cohort's customer lifetime value: ARPU times the
// number of months the cohort showed any activity in the filtered
// retention matrix.
type ClvRow struct {
	Cohort          models.Month
	Arpu            decimal.Decimal
	RetentionMonths int
	Clv             decimal.Decimal
}

// Results bundles every derived table of one pipeline run.
type Results struct {
	Usage             *UsageMatrix
	Retention         *RetentionMatrix
	FilteredRetention *RetentionMatrix
	IncidentRates     []IncidentRate
	Revenue           []RevenueRow
	CumulativeRevenue []CumulativeRevenueRow
	Arpu              []ArpuRow
	Clv               []ClvRow
	CohortSizes       map[models.Month]int
}

// Compute derives all cohort metrics from the cohort-tagged
// transaction table. It is a pure function chain: transactions →
// usage → retention → {incidents, revenue → cumulative → arpu → clv}.
// Malformed input (empty table, untagged rows, empty cohorts) is fatal
// before any output is produced.
func Compute(transactions []models.Transaction, cohortSizes map[models.Month]int, partialMonths map[models.Month]bool) (*Results, error) {
	if len(transactions) == 0 {
		return nil, ErrNoTransactions
	}
	for _, tx := range transactions {
		if tx.Cohort == "" {
			return nil, fmt.Errorf("request %d (user %d): %w", tx.CashRequestId, tx.FinalUserId, ErrUntaggedTransactions)
		}
	}

	usage := BuildUsageMatrix(transactions)
	retention := Retention(usage)
	filteredRetention := Retention(usage.WithoutMonths(partialMonths))

	revenue := RevenueByCohort(transactions)
	arpu, err := Arpu(revenue, cohortSizes)
	if err != nil {
		return nil, err
	}

	results := &Results{
		Usage:             usage,
		Retention:         retention,
		FilteredRetention: filteredRetention,
		IncidentRates:     IncidentRates(transactions),
		Revenue:           revenue,
		CumulativeRevenue: CumulativeRevenue(revenue),
		Arpu:              arpu,
		Clv:               Clv(arpu, filteredRetention, partialMonths),
		CohortSizes:       cohortSizes,
	}

	zap.L().Info("Cohort metrics computed",
		zap.Int("cohorts", len(usage.Cohorts())),
		zap.Int("activity_months", len(usage.Months())),
		zap.Int("revenue_cohorts", len(revenue)),
		zap.Int("clv_cohorts", len(results.Clv)))

	return results, nil
}

// IncidentRates computes each cohort's incident share: transactions
// whose recovery_status is non-null over all transactions, rounded to
// 4 decimals.
func IncidentRates(transactions []models.Transaction) []IncidentRate {
	totals := make(map[models.Month]*IncidentRate)
	for _, tx := range transactions {
		rate, ok := totals[tx.Cohort]
		if !ok {
			rate = &IncidentRate{Cohort: tx.Cohort}
			totals[tx.Cohort] = rate
		}
		rate.TotalRequests++
		if tx.Incident() {
			rate.IncidentRequests++
		}
	}

	rates := make([]IncidentRate, 0, len(totals))
	for _, rate := range totals {
		rate.Rate = round4(float64(rate.IncidentRequests) / float64(rate.TotalRequests))
		rates = append(rates, *rate)
	}
	sort.Slice(rates, func(i, j int) bool { return rates[i].Cohort < rates[j].Cohort })
	return rates
}

// RevenueByCohort sums fee amounts over accepted fees per cohort.
// Fees in any other status (confirmed, rejected, cancelled) contribute
// nothing: only successfully collected money counts as revenue.
func RevenueByCohort(transactions []models.Transaction) []RevenueRow {
	totals := make(map[models.Month]decimal.Decimal)
	for _, tx := range transactions {
		if !tx.AcceptedFee() {
			continue
		}
		totals[tx.Cohort] = totals[tx.Cohort].Add(*tx.FeeAmount)
	}

	rows := make([]RevenueRow, 0, len(totals))
	for cohort, revenue := range totals {
		rows = append(rows, RevenueRow{Cohort: cohort, Revenue: revenue})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Cohort < rows[j].Cohort })
	return rows
}

// CumulativeRevenue adds a running total over cohorts in ascending
// order: a pure prefix sum.
func CumulativeRevenue(revenue []RevenueRow) []CumulativeRevenueRow {
	rows := make([]CumulativeRevenueRow, len(revenue))
	running := decimal.Zero
	for i, row := range revenue {
		running = running.Add(row.Revenue)
		rows[i] = CumulativeRevenueRow{Cohort: row.Cohort, Revenue: row.Revenue, Cumulative: running}
	}
	return rows
}

// Arpu divides each cohort's revenue by its distinct-user count from
// the cohort map, rounded to 2 decimals. User counts come from the
// per-user first-activity mapping, never from transaction rows. A
// revenue cohort with no user count is a data bug upstream and is
// fatal.
func Arpu(revenue []RevenueRow, cohortSizes map[models.Month]int) ([]ArpuRow, error) {
	rows := make([]ArpuRow, len(revenue))
	for i, row := range revenue {
		users := cohortSizes[row.Cohort]
		if users <= 0 {
			return nil, fmt.Errorf("cohort %s has revenue but no users in the cohort map", row.Cohort)
		}
		rows[i] = ArpuRow{
			Cohort:    row.Cohort,
			Revenue:   row.Revenue,
			UserCount: users,
			Arpu:      row.Revenue.Div(decimal.NewFromInt(int64(users))).Round(2),
		}
	}
	return rows, nil
}

// Clv multiplies each cohort's ARPU by its retention duration: the
// count of strictly-positive months in the filtered retention row,
// rounded to 2 decimals. Partial boundary cohorts are excluded
// entirely; their measurement window is truncated and not comparable.
func Clv(arpu []ArpuRow, filtered *RetentionMatrix, partialMonths map[models.Month]bool) []ClvRow {
	rows := make([]ClvRow, 0, len(arpu))
	for _, row := range arpu {
		if partialMonths[row.Cohort] {
			continue
		}
		months := filtered.PositiveMonths(row.Cohort)
		rows = append(rows, ClvRow{
			Cohort:          row.Cohort,
			Arpu:            row.Arpu,
			RetentionMonths: months,
			Clv:             row.Arpu.Mul(decimal.NewFromInt(int64(months))).Round(2),
		})
	}
	return rows
}
