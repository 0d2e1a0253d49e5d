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

// CleanCashRequests validates and normalizes the raw cash-request
// extract into typed records. The input table is consumed as a
// snapshot; categorical normalization rewrites cells in place but no
// rows are removed from it.
func CleanCashRequests(table *ingest.Table, policy common.TablePolicy, cutoff time.Time) ([]models.CashRequest, *Report, error) {
	report := &Report{
		Table:                        table.Name,
		TotalRows:                    len(table.Rows),
		MissingReimbursementByStatus: make(map[string]int),
	}

	if count, sample := duplicateKeys(table); count > 0 {
		return nil, nil, fmt.Errorf("%s: %d rows, sample ids %v: %w", table.Name, count, sample, ErrDuplicateKeys)
	}
	report.DuplicateRows = duplicateFullRows(table)

	parsed := parseDatetimes(table, policy.DatetimeColumns)
	report.FutureDatedRows, report.FutureDatedSample = futureDatedRows(table, parsed, cutoff)
	report.LiteralNaNCells = normalizeCategoricals(table, policy.CategoricalColumns)

	requests := make([]models.CashRequest, 0, len(table.Rows))
	for i, row := range table.Rows {
		id, err := rowId(row)
		if err != nil {
			return nil, nil, fmt.Errorf("%s row %d: %w", table.Name, i+1, err)
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(row["amount"]))
		if err != nil {
			return nil, nil, fmt.Errorf("%s id %d: unparseable amount %q: %w", table.Name, id, row["amount"], err)
		}
		if !amount.IsPositive() {
			report.NonPositiveAmounts++
			if len(report.NonPositiveSample) < sampleLimit {
				report.NonPositiveSample = append(report.NonPositiveSample, id)
			}
		}

		userId, err := parseOptionalInt(row["user_id"])
		if err != nil {
			return nil, nil, fmt.Errorf("%s id %d: user_id: %w", table.Name, id, err)
		}
		deletedAccountId, err := parseOptionalInt(row["deleted_account_id"])
		if err != nil {
			return nil, nil, fmt.Errorf("%s id %d: deleted_account_id: %w", table.Name, id, err)
		}

		times := parsed[i]
		createdAt := times["created_at"]
		if createdAt == nil {
			return nil, nil, fmt.Errorf("%s id %d: %w", table.Name, id, ErrMissingCreatedAt)
		}

		request := models.CashRequest{
			Id:                id,
			UserId:            userId,
			DeletedAccountId:  deletedAccountId,
			Amount:            amount,
			Status:            row["status"],
			TransferType:      row["transfer_type"],
			RecoveryStatus:    optionalString(row["recovery_status"]),
			CreatedAt:         *createdAt,
			UpdatedAt:         times["updated_at"],
			ModeratedAt:       times["moderated_at"],
			ReimbursementDate: times["reimbursement_date"],
			DebitedDate:       times["cash_request_debited_date"],
			ReceivedDate:      times["cash_request_received_date"],
			MoneyBackDate:     times["money_back_date"],
			SendAt:            times["send_at"],
			RecoCreation:      times["reco_creation"],
			RecoLastUpdate:    times["reco_last_update"],
		}

		if request.ReimbursementDate == nil {
			report.MissingReimbursementByStatus[request.Status]++
		}

		requests = append(requests, request)
	}

	report.RetainedRows = len(requests)
	return requests, report, nil
}
