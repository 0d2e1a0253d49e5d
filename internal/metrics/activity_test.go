package metrics

import (
	"testing"
	"time"

	"cohort-analytics-go/internal/models"

	"github.com/shopspring/decimal"
)

func activityRequest(userId int64, year int, month time.Month, transferType, amount string) models.CashRequest {
	return models.CashRequest{
		FinalUserId:  userId,
		Amount:       decimal.RequireFromString(amount),
		TransferType: transferType,
		CreatedAt:    time.Date(year, month, 12, 8, 0, 0, 0, time.UTC),
	}
}

func TestMonthlyActivity(t *testing.T) {
	requests := []models.CashRequest{
		activityRequest(1, 2020, time.January, "instant", "100"),
		activityRequest(1, 2020, time.January, "regular", "50"),
		activityRequest(2, 2020, time.January, "instant", "25.50"),
		activityRequest(1, 2020, time.February, "regular", "10"),
	}

	rows := MonthlyActivity(requests)

	if len(rows) != 2 {
		t.Fatalf("Expected 2 months, got %d", len(rows))
	}
	january := rows[0]
	if january.Month != "2020-01" {
		t.Errorf("Expected months sorted ascending, got %s first", january.Month)
	}
	// User 1 counted once despite two January requests.
	if january.ActiveUsers != 2 {
		t.Errorf("Expected 2 active users, got %d", january.ActiveUsers)
	}
	if january.Requests != 3 {
		t.Errorf("Expected 3 requests, got %d", january.Requests)
	}
	if !january.TotalAmount.Equal(decimal.RequireFromString("175.50")) {
		t.Errorf("Expected total 175.50, got %s", january.TotalAmount)
	}
}

func TestTransferTypeShare(t *testing.T) {
	requests := []models.CashRequest{
		activityRequest(1, 2020, time.January, "instant", "10"),
		activityRequest(2, 2020, time.January, "instant", "10"),
		activityRequest(3, 2020, time.January, "regular", "10"),
		activityRequest(4, 2020, time.February, "regular", "10"),
	}

	rows := TransferTypeShare(requests)

	if len(rows) != 2 {
		t.Fatalf("Expected 2 months, got %d", len(rows))
	}
	january := rows[0]
	if january.Instant != 2 || january.Regular != 1 {
		t.Errorf("Expected 2 instant and 1 regular, got %d and %d", january.Instant, january.Regular)
	}
	// 2/3 as a percentage rounds to 66.667.
	if january.InstantSharePct != 66.667 {
		t.Errorf("Expected instant share 66.667, got %v", january.InstantSharePct)
	}
	if rows[1].InstantSharePct != 0 {
		t.Errorf("Expected all-regular month share 0, got %v", rows[1].InstantSharePct)
	}
}
