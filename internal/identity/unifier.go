package identity

import (
	"errors"
	"fmt"

	"cohort-analytics-go/internal/models"

	"go.uber.org/zap"
)

// Policy decides which identity wins when a row carries both a user_id
// and a deleted_account_id. The source system replaces a deleted
// account's id with a GDPR surrogate, so the two fields are mutually
// exclusive and a row with both is an inconsistency to resolve, never
// a silent merge.
type Policy string

const (
	// PreferUserId keeps user_id: the account was active when the
	// request was made and the deleted-account marker was added later
	// for compliance tracking.
	PreferUserId Policy = "prefer_user_id"
	// PreferDeletedAccountId keeps the surrogate id instead.
	PreferDeletedAccountId Policy = "prefer_deleted_account_id"
)

// ParsePolicy validates a configured policy name.
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case PreferUserId, PreferDeletedAccountId:
		return Policy(name), nil
	default:
		return "", fmt.Errorf("unknown identity conflict policy %q", name)
	}
}

// ErrMissingUserKey is returned when a row ends up with no identity at
// all. Cohort computation is undefined for an unidentified user, so
// this halts the run.
var ErrMissingUserKey = errors.New("rows with no user identity")

// Result is the unified cash-request table plus the audit trail of
// what the unifier changed.
type Result struct {
	Requests []models.CashRequest

	// Conflicts is the number of rows that violated the mutual
	// exclusivity invariant and were resolved by the policy.
	Conflicts   int
	ConflictIds []int64

	// DeletedAccounts counts distinct surrogate ids that ended up as
	// the final identity; their history stays in the analysis.
	DeletedAccounts int
}

// Unify produces a non-null FinalUserId for every request. The input
// slice is not mutated; the result holds resolved copies.
func Unify(requests []models.CashRequest, policy Policy) (*Result, error) {
	result := &Result{Requests: make([]models.CashRequest, len(requests))}

	deleted := make(map[int64]bool)
	var missing int
	var missingSample []int64

	for i, request := range requests {
		if request.UserId != nil && request.DeletedAccountId != nil {
			result.Conflicts++
			if len(result.ConflictIds) < 5 {
				result.ConflictIds = append(result.ConflictIds, request.Id)
			}
			if policy == PreferUserId {
				request.DeletedAccountId = nil
			} else {
				request.UserId = nil
			}
		}

		switch {
		case request.UserId != nil:
			request.FinalUserId = *request.UserId
		case request.DeletedAccountId != nil:
			request.FinalUserId = *request.DeletedAccountId
			deleted[*request.DeletedAccountId] = true
		default:
			missing++
			if len(missingSample) < 5 {
				missingSample = append(missingSample, request.Id)
			}
		}

		result.Requests[i] = request
	}

	if missing > 0 {
		return nil, fmt.Errorf("%d rows, sample ids %v: %w", missing, missingSample, ErrMissingUserKey)
	}

	result.DeletedAccounts = len(deleted)

	if result.Conflicts > 0 {
		zap.L().Warn("Resolved identity conflicts",
			zap.Int("rows", result.Conflicts),
			zap.Int64s("sample_ids", result.ConflictIds),
			zap.String("policy", string(policy)))
	}
	zap.L().Info("Identity unification complete",
		zap.Int("rows", len(result.Requests)),
		zap.Int("deleted_accounts_retained", result.DeletedAccounts))

	return result, nil
}
