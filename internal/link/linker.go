package link

import (
	"errors"
	"fmt"

	"cohort-analytics-go/internal/models"

	"go.uber.org/zap"
)

// ErrRequestsLost is returned when the join changes the set of cash
// requests. A left join may only fan out; losing a request means the
// join keys are broken.
var ErrRequestsLost = errors.New("join lost cash requests")

// Join associates every fee with its parent cash request: a left outer
// join keyed on cash_request_id. Every request is preserved; a request
// with no fees yields one row with nil fee fields, a request with N
// fees yields N rows. Shared column names (id, status, created_at) are
// already disambiguated by the typed Transaction fields, so nothing is
// silently overwritten.
func Join(requests []models.CashRequest, fees []models.Fee) ([]models.Transaction, error) {
	feesByRequest := make(map[int64][]models.Fee, len(requests))
	for _, fee := range fees {
		feesByRequest[fee.CashRequestId] = append(feesByRequest[fee.CashRequestId], fee)
	}

	transactions := make([]models.Transaction, 0, len(requests))
	var withFees int
	for _, request := range requests {
		base := models.Transaction{
			FinalUserId:    request.FinalUserId,
			CashRequestId:  request.Id,
			Amount:         request.Amount,
			CashStatus:     request.Status,
			TransferType:   request.TransferType,
			RecoveryStatus: request.RecoveryStatus,
			CashCreatedAt:  request.CreatedAt,
		}

		matched := feesByRequest[request.Id]
		if len(matched) == 0 {
			transactions = append(transactions, base)
			continue
		}

		withFees++
		for _, fee := range matched {
			row := base
			feeId := fee.Id
			feeType := fee.Type
			feeStatus := fee.Status
			feeAmount := fee.TotalAmount
			chargeMoment := fee.ChargeMoment
			feeCreatedAt := fee.CreatedAt
			row.FeeId = &feeId
			row.FeeType = &feeType
			row.FeeStatus = &feeStatus
			row.FeeAmount = &feeAmount
			row.ChargeMoment = &chargeMoment
			row.FeeCreatedAt = &feeCreatedAt
			transactions = append(transactions, row)
		}
	}

	if err := checkFanOut(requests, transactions); err != nil {
		return nil, err
	}

	zap.L().Info("Linked fees to cash requests",
		zap.Int("cash_requests", len(requests)),
		zap.Int("fees", len(fees)),
		zap.Int("transaction_rows", len(transactions)),
		zap.Int("requests_with_fees", withFees))

	return transactions, nil
}

// checkFanOut enforces the post-join invariants: the distinct request
// set is preserved and the join only increases row count.
func checkFanOut(requests []models.CashRequest, transactions []models.Transaction) error {
	if len(transactions) < len(requests) {
		return fmt.Errorf("%d requests in, %d rows out: %w", len(requests), len(transactions), ErrRequestsLost)
	}

	distinct := make(map[int64]bool, len(requests))
	for _, tx := range transactions {
		distinct[tx.CashRequestId] = true
	}
	if len(distinct) != len(requests) {
		return fmt.Errorf("%d distinct request ids out of %d requests: %w", len(distinct), len(requests), ErrRequestsLost)
	}
	return nil
}
