package clean

import (
	"fmt"
	"strings"
	"time"

	"cohort-analytics-go/internal/common"
	"cohort-analytics-go/internal/ingest"
	"cohort-analytics-go/internal/models"

	"github.com/shopspring/decimal"
)

// CleanFees validates and normalizes the raw fee extract. Fees with a
// null cash_request_id are aborted system artifacts with no recoverable
// linkage and are dropped. Fees whose cash_request_id does not exist in
// the cleaned cash-request table cannot be cohort-tagged; they are
// reported with a sample of offending ids and excluded as well, so the
// retained set satisfies referential integrity by construction.
func CleanFees(table *ingest.Table, policy common.TablePolicy, cutoff time.Time, validRequestIds map[int64]bool) ([]models.Fee, *Report, error) {
	report := &Report{
		Table:     table.Name,
		TotalRows: len(table.Rows),
	}

	if count, sample := duplicateKeys(table); count > 0 {
		return nil, nil, fmt.Errorf("%s: %d rows, sample ids %v: %w", table.Name, count, sample, ErrDuplicateKeys)
	}
	report.DuplicateRows = duplicateFullRows(table)

	parsed := parseDatetimes(table, policy.DatetimeColumns)
	report.FutureDatedRows, report.FutureDatedSample = futureDatedRows(table, parsed, cutoff)
	report.LiteralNaNCells = normalizeCategoricals(table, policy.CategoricalColumns)

	fees := make([]models.Fee, 0, len(table.Rows))
	for i, row := range table.Rows {
		id, err := rowId(row)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", table.Name, i+1, err)
		}

		cashRequestId, err := parseOptionalInt(row["cash_request_id"])
		if err != nil {
			return nil, nil, fmt.Errorf("%s id %d: cash_request_id: %w", table.Name, id, err)
		}
		if cashRequestId == nil {
			report.DroppedNullForeignKey++
			continue
		}
		if !validRequestIds[*cashRequestId] {
			report.UnmatchedForeignKeyRows++
			if len(report.UnmatchedForeignKeySample) < sampleLimit {
				report.UnmatchedForeignKeySample = append(report.UnmatchedForeignKeySample, id)
			}
			continue
		}

		totalAmount, err := decimal.NewFromString(strings.TrimSpace(row["total_amount"]))
		if err != nil {
			return nil, nil, fmt.Errorf("%s id %d: unparseable total_amount %q: %w", table.Name, id, row["total_amount"], err)
		}
		if !totalAmount.IsPositive() {
			report.NonPositiveAmounts++
			if len(report.NonPositiveSample) < sampleLimit {
				report.NonPositiveSample = append(report.NonPositiveSample, id)
			}
		}

		times := parsed[i]
		createdAt := times["created_at"]
		if createdAt == nil {
			return nil, nil, fmt.Errorf("%s id %d: %w", table.Name, id, ErrMissingCreatedAt)
		}

		fees = append(fees, models.Fee{
			Id:            id,
			CashRequestId: *cashRequestId,
			Type:          row["type"],
			Status:        row["status"],
			Category:      row["category"],
			Reason:        row["reason"],
			TotalAmount:   totalAmount,
			ChargeMoment:  row["charge_moment"],
			CreatedAt:     *createdAt,
			UpdatedAt:     times["updated_at"],
			PaidAt:        times["paid_at"],
			FromDate:      times["from_date"],
			ToDate:        times["to_date"],
		})
	}

	report.RetainedRows = len(fees)
	return fees, report, nil
}
