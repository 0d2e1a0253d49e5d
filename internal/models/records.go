package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Month is a calendar month label in "2006-01" form. Labels sort
// chronologically under plain string ordering.
type Month string

// MonthOf returns the calendar month of t.
func MonthOf(t time.Time) Month {
	return Month(t.Format("2006-01"))
}

func (m Month) String() string {
	return string(m)
}

// CashRequest is one cleaned cash-advance request. Optional fields are
// pointers; a nil pointer means the source value was missing or
// unparseable. FinalUserId is zero until identity unification runs.
type CashRequest struct {
	Id                int64
	UserId            *int64
	DeletedAccountId  *int64
	FinalUserId       int64
	Amount            decimal.Decimal
	Status            string
	TransferType      string
	RecoveryStatus    *string
	CreatedAt         time.Time
	UpdatedAt         *time.Time
	ModeratedAt       *time.Time
	ReimbursementDate *time.Time
	DebitedDate       *time.Time
	ReceivedDate      *time.Time
	MoneyBackDate     *time.Time
	SendAt            *time.Time
	RecoCreation      *time.Time
	RecoLastUpdate    *time.Time
}

// Incident reports whether a recovery process was ever opened for this
// request. Absence of a recovery record means no incident occurred.
func (c CashRequest) Incident() bool {
	return c.RecoveryStatus != nil
}

// Fee is one cleaned charge tied to a cash request.
type Fee struct {
	Id            int64
	CashRequestId int64
	Type          string
	Status        string
	Category      string
	Reason        string
	TotalAmount   decimal.Decimal
	ChargeMoment  string
	CreatedAt     time.Time
	UpdatedAt     *time.Time
	PaidAt        *time.Time
	FromDate      *time.Time
	ToDate        *time.Time
}

// FeeStatusAccepted marks the only fee status that counts as collected
// revenue.
const FeeStatusAccepted = "accepted"

// Transaction is one row of the linked cash-request x fee table. A cash
// request with no fees produces exactly one row with nil fee fields; a
// request with N fees produces N rows. Cohort is empty until cohort
// assignment runs.
type Transaction struct {
	FinalUserId    int64
	Cohort         Month
	CashRequestId  int64
	Amount         decimal.Decimal
	CashStatus     string
	TransferType   string
	RecoveryStatus *string
	CashCreatedAt  time.Time

	FeeId        *int64
	FeeType      *string
	FeeStatus    *string
	FeeAmount    *decimal.Decimal
	ChargeMoment *string
	FeeCreatedAt *time.Time
}

// ActivityMonth is the calendar month of the transaction's own
// request creation time.
func (t Transaction) ActivityMonth() Month {
	return MonthOf(t.CashCreatedAt)
}

// Incident reports whether the underlying request had a recovery
// process opened.
func (t Transaction) Incident() bool {
	return t.RecoveryStatus != nil
}

// AcceptedFee reports whether the row carries a fee that was
// successfully collected.
func (t Transaction) AcceptedFee() bool {
	return t.FeeStatus != nil && *t.FeeStatus == FeeStatusAccepted
}
