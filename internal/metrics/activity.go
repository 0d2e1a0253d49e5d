package metrics

import (
	"sort"

	"cohort-analytics-go/internal/models"

	"github.com/shopspring/decimal"
)

// MonthlyActivityRow summarizes one calendar month of the cleaned
// cash-request table: distinct active users, request volume and total
// requested amount.
type MonthlyActivityRow struct {
	Month       models.Month
	ActiveUsers int
	Requests    int
	TotalAmount decimal.Decimal
}

// MonthlyActivity aggregates the unified cash-request table by the
// month of each request's creation.
func MonthlyActivity(requests []models.CashRequest) []MonthlyActivityRow {
	users := make(map[models.Month]map[int64]bool)
	counts := make(map[models.Month]int)
	amounts := make(map[models.Month]decimal.Decimal)

	for _, request := range requests {
		month := models.MonthOf(request.CreatedAt)
		set, ok := users[month]
		if !ok {
			set = make(map[int64]bool)
			users[month] = set
		}
		set[request.FinalUserId] = true
		counts[month]++
		amounts[month] = amounts[month].Add(request.Amount)
	}

	rows := make([]MonthlyActivityRow, 0, len(counts))
	for month, count := range counts {
		rows = append(rows, MonthlyActivityRow{
			Month:       month,
			ActiveUsers: len(users[month]),
			Requests:    count,
			TotalAmount: amounts[month],
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}

// TransferShareRow is one month's split between instant and regular
// transfers, with the instant share as a percentage.
type TransferShareRow struct {
	Month           models.Month
	Instant         int
	Regular         int
	InstantSharePct float64
}

// TransferTypeShare aggregates transfer types per month from the
// cleaned cash-request table.
func TransferTypeShare(requests []models.CashRequest) []TransferShareRow {
	instant := make(map[models.Month]int)
	regular := make(map[models.Month]int)
	monthSet := make(map[models.Month]bool)

	for _, request := range requests {
		month := models.MonthOf(request.CreatedAt)
		monthSet[month] = true
		switch request.TransferType {
		case "instant":
			instant[month]++
		case "regular":
			regular[month]++
		}
	}

	rows := make([]TransferShareRow, 0, len(monthSet))
	for month := range monthSet {
		row := TransferShareRow{Month: month, Instant: instant[month], Regular: regular[month]}
		if total := row.Instant + row.Regular; total > 0 {
			row.InstantSharePct = round3(float64(row.Instant) / float64(total) * 100)
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Month < rows[j].Month })
	return rows
}
