package main

import (
	"context"
	"fmt"

	"cohort-analytics-go/internal/common"
	"cohort-analytics-go/internal/config"
	"cohort-analytics-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	service, err := store.NewService(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open metrics mart", zap.Error(err))
	}
	defer service.Close()

	run, err := service.LatestRun(ctx)
	if err != nil {
		logger.Fatal("No runs available", zap.Error(err))
	}

	fmt.Printf("Run %s (finished %s)\n", run.Id, run.FinishedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("  cash requests: %d   fees: %d   transaction rows: %d\n", run.CashRequestRows, run.FeeRows, run.TransactionRows)
	fmt.Printf("  cohorts: %d   distinct users: %d   conflict policy: %s\n\n", run.CohortCount, run.DistinctUsers, run.ConflictPolicy)

	revenue, err := service.GetRevenue(ctx, run.Id)
	if err != nil {
		logger.Fatal("Failed to load revenue", zap.Error(err))
	}
	fmt.Println("Revenue per cohort:")
	fmt.Printf("  %-10s %14s %14s\n", "cohort", "revenue", "cumulative")
	for _, row := range revenue {
		fmt.Printf("  %-10s %14s %14s\n", row.Cohort, row.Revenue.StringFixed(2), row.Cumulative.StringFixed(2))
	}

	arpu, err := service.GetArpu(ctx, run.Id)
	if err != nil {
		logger.Fatal("Failed to load ARPU", zap.Error(err))
	}
	fmt.Println("\nARPU per cohort:")
	fmt.Printf("  %-10s %10s %10s\n", "cohort", "users", "arpu")
	for _, row := range arpu {
		fmt.Printf("  %-10s %10d %10s\n", row.Cohort, row.UserCount, row.Arpu.StringFixed(2))
	}

	clv, err := service.GetClv(ctx, run.Id)
	if err != nil {
		logger.Fatal("Failed to load CLV", zap.Error(err))
	}
	fmt.Println("\nCLV per cohort (partial cohorts excluded):")
	fmt.Printf("  %-10s %10s %8s %10s\n", "cohort", "arpu", "months", "clv")
	for _, row := range clv {
		fmt.Printf("  %-10s %10s %8d %10s\n", row.Cohort, row.Arpu.StringFixed(2), row.RetentionMonths, row.Clv.StringFixed(2))
	}

	incidents, err := service.GetIncidentRates(ctx, run.Id)
	if err != nil {
		logger.Fatal("Failed to load incident rates", zap.Error(err))
	}
	fmt.Println("\nIncident rate per cohort:")
	fmt.Printf("  %-10s %10s %10s %10s\n", "cohort", "total", "incidents", "rate")
	for _, row := range incidents {
		fmt.Printf("  %-10s %10d %10d %10.4f\n", row.Cohort, row.TotalRequests, row.IncidentRequests, row.Rate)
	}
}
