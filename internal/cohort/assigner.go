package cohort

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"cohort-analytics-go/internal/models"

	"go.uber.org/zap"
)

// ErrIncompleteAssignment is returned when a transaction's user is
// absent from the first-activity map: a join-key mismatch upstream.
var ErrIncompleteAssignment = errors.New("transactions without a cohort")

// ErrInconsistentCohorts is returned when a user's transactions carry
// more than one distinct cohort.
var ErrInconsistentCohorts = errors.New("users mapped to multiple cohorts")

// UserFirst is one user's entry point into the product.
type UserFirst struct {
	FinalUserId    int64
	FirstRequestAt time.Time
	Cohort         models.Month
}

// FirstActivity computes each user's first-activity month from the
// unified cash-request table: the calendar month of the minimum
// created_at across all of that user's requests.
func FirstActivity(requests []models.CashRequest) map[int64]UserFirst {
	first := make(map[int64]UserFirst)
	for _, request := range requests {
		entry, ok := first[request.FinalUserId]
		if !ok || request.CreatedAt.Before(entry.FirstRequestAt) {
			first[request.FinalUserId] = UserFirst{
				FinalUserId:    request.FinalUserId,
				FirstRequestAt: request.CreatedAt,
				Cohort:         models.MonthOf(request.CreatedAt),
			}
		}
	}
	return first
}

// Tag propagates each user's cohort onto every transaction row. The
// input is not mutated. Any transaction whose user is missing from the
// first-activity map is an integrity failure, surfaced with the
// offending user keys.
func Tag(transactions []models.Transaction, first map[int64]UserFirst) ([]models.Transaction, error) {
	tagged := make([]models.Transaction, len(transactions))
	var missing int
	var missingKeys []int64
	seenMissing := make(map[int64]bool)

	for i, tx := range transactions {
		entry, ok := first[tx.FinalUserId]
		if !ok {
			missing++
			if !seenMissing[tx.FinalUserId] && len(missingKeys) < 5 {
				missingKeys = append(missingKeys, tx.FinalUserId)
				seenMissing[tx.FinalUserId] = true
			}
			tagged[i] = tx
			continue
		}
		tx.Cohort = entry.Cohort
		tagged[i] = tx
	}

	if missing > 0 {
		return nil, fmt.Errorf("%d rows, sample user keys %v: %w", missing, missingKeys, ErrIncompleteAssignment)
	}

	if err := ValidateConsistency(tagged); err != nil {
		return nil, err
	}

	zap.L().Info("Cohort assignment complete",
		zap.Int("transaction_rows", len(tagged)),
		zap.Int("distinct_users", len(first)))

	return tagged, nil
}

// ValidateConsistency checks that every user maps to exactly one
// cohort across all of their transactions. Exposed as a reusable check
// so callers can re-validate derived tables.
func ValidateConsistency(transactions []models.Transaction) error {
	cohorts := make(map[int64]map[models.Month]bool)
	for _, tx := range transactions {
		set, ok := cohorts[tx.FinalUserId]
		if !ok {
			set = make(map[models.Month]bool, 1)
			cohorts[tx.FinalUserId] = set
		}
		set[tx.Cohort] = true
	}

	var offenders []int64
	for userKey, set := range cohorts {
		if len(set) > 1 {
			offenders = append(offenders, userKey)
		}
	}
	if len(offenders) > 0 {
		sort.Slice(offenders, func(i, j int) bool { return offenders[i] < offenders[j] })
		if len(offenders) > 5 {
			offenders = offenders[:5]
		}
		return fmt.Errorf("sample user keys %v: %w", offenders, ErrInconsistentCohorts)
	}
	return nil
}

// Sizes counts distinct users per cohort from the first-activity map.
// Each user counts exactly once regardless of transaction volume.
func Sizes(first map[int64]UserFirst) map[models.Month]int {
	sizes := make(map[models.Month]int)
	for _, entry := range first {
		sizes[entry.Cohort]++
	}
	return sizes
}
