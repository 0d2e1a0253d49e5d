package metrics

import (
	"math"
	"sort"

	"cohort-analytics-go/internal/models"
)

// UsageMatrix is the dense cohort x activity-month request-volume
// matrix. Cells without data are a defined zero, never missing: the
// axes span every observed cohort and month, and Value returns 0 for
// any absent key. Counts are raw transaction rows, so a request with N
// fees contributes N: the matrix measures request volume at the
// granularity of the linked table.
type UsageMatrix struct {
	cohorts []models.Month
	months  []models.Month
	cells   map[models.Month]map[models.Month]int
}

// BuildUsageMatrix groups the cohort-tagged transactions by
// (cohort, activity month).
func BuildUsageMatrix(transactions []models.Transaction) *UsageMatrix {
	cells := make(map[models.Month]map[models.Month]int)
	monthSet := make(map[models.Month]bool)
	for _, tx := range transactions {
		row, ok := cells[tx.Cohort]
		if !ok {
			row = make(map[models.Month]int)
			cells[tx.Cohort] = row
		}
		month := tx.ActivityMonth()
		row[month]++
		monthSet[month] = true
	}

	matrix := &UsageMatrix{cells: cells}
	for cohort := range cells {
		matrix.cohorts = append(matrix.cohorts, cohort)
	}
	for month := range monthSet {
		matrix.months = append(matrix.months, month)
	}
	sortMonths(matrix.cohorts)
	sortMonths(matrix.months)
	return matrix
}

// Cohorts returns the row labels in ascending order.
func (m *UsageMatrix) Cohorts() []models.Month { return m.cohorts }

// Months returns the column labels in ascending order.
func (m *UsageMatrix) Months() []models.Month { return m.months }

// Value returns the request count for a cell, zero when absent.
func (m *UsageMatrix) Value(cohort, month models.Month) int {
	return m.cells[cohort][month]
}

// RowTotal returns the total request count for a cohort.
func (m *UsageMatrix) RowTotal(cohort models.Month) int {
	var total int
	for _, count := range m.cells[cohort] {
		total += count
	}
	return total
}

// WithoutMonths removes the given calendar months from both axes,
// returning a new matrix. Used to exclude partially observed boundary
// months before renormalizing retention.
func (m *UsageMatrix) WithoutMonths(drop map[models.Month]bool) *UsageMatrix {
	filtered := &UsageMatrix{cells: make(map[models.Month]map[models.Month]int)}
	for _, cohort := range m.cohorts {
		if drop[cohort] {
			continue
		}
		filtered.cohorts = append(filtered.cohorts, cohort)
		row := make(map[models.Month]int)
		for month, count := range m.cells[cohort] {
			if !drop[month] {
				row[month] = count
			}
		}
		filtered.cells[cohort] = row
	}
	for _, month := range m.months {
		if !drop[month] {
			filtered.months = append(filtered.months, month)
		}
	}
	return filtered
}

// RetentionMatrix is the row-normalized usage matrix: each cell is the
// cohort's activity that month as a fraction of its entry-month
// activity, rounded to 3 decimals.
type RetentionMatrix struct {
	cohorts []models.Month
	months  []models.Month
	cells   map[models.Month]map[models.Month]float64
}

// Retention normalizes each usage row by its own entry-month value
// U[cohort][cohort]. A cohort whose entry-month value is zero or
// absent is degenerate: its whole row is defined as 0 rather than
// propagating a division by zero.
func Retention(usage *UsageMatrix) *RetentionMatrix {
	matrix := &RetentionMatrix{
		cohorts: usage.Cohorts(),
		months:  usage.Months(),
		cells:   make(map[models.Month]map[models.Month]float64),
	}
	for _, cohort := range matrix.cohorts {
		row := make(map[models.Month]float64, len(matrix.months))
		entry := usage.Value(cohort, cohort)
		if entry > 0 {
			for _, month := range matrix.months {
				row[month] = round3(float64(usage.Value(cohort, month)) / float64(entry))
			}
		}
		matrix.cells[cohort] = row
	}
	return matrix
}

// Cohorts returns the row labels in ascending order.
func (m *RetentionMatrix) Cohorts() []models.Month { return m.cohorts }

// Months returns the column labels in ascending order.
func (m *RetentionMatrix) Months() []models.Month { return m.months }

// Value returns the retention ratio for a cell, zero when absent.
func (m *RetentionMatrix) Value(cohort, month models.Month) float64 {
	return m.cells[cohort][month]
}

// PositiveMonths counts the months, entry month included, in which the
// cohort showed any activity.
func (m *RetentionMatrix) PositiveMonths(cohort models.Month) int {
	var count int
	for _, ratio := range m.cells[cohort] {
		if ratio > 0 {
			count++
		}
	}
	return count
}

func sortMonths(months []models.Month) {
	sort.Slice(months, func(i, j int) bool { return months[i] < months[j] })
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
