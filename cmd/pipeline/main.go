package main

import (
	"context"
	"time"

	"cohort-analytics-go/internal/clean"
	"cohort-analytics-go/internal/cohort"
	"cohort-analytics-go/internal/common"
	"cohort-analytics-go/internal/config"
	"cohort-analytics-go/internal/export"
	"cohort-analytics-go/internal/identity"
	"cohort-analytics-go/internal/ingest"
	"cohort-analytics-go/internal/link"
	"cohort-analytics-go/internal/metrics"
	"cohort-analytics-go/internal/models"
	"cohort-analytics-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	startedAt := time.Now().UTC()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	policy, err := common.LoadDatasetPolicy(cfg.Data.PolicyFile)
	if err != nil {
		logger.Fatal("Failed to load dataset policy", zap.Error(err))
	}
	cutoff, err := policy.Cutoff()
	if err != nil {
		logger.Fatal("Invalid analysis cutoff", zap.Error(err))
	}
	conflictPolicy, err := identity.ParsePolicy(cfg.Identity.ConflictPolicy)
	if err != nil {
		logger.Fatal("Invalid identity conflict policy", zap.Error(err))
	}

	cashTable, err := ingest.LoadTable(cfg.Data.CashRequestsPath, "cash_requests")
	if err != nil {
		logger.Fatal("Failed to load cash-request extract", zap.Error(err))
	}
	feeTable, err := ingest.LoadTable(cfg.Data.FeesPath, "fees")
	if err != nil {
		logger.Fatal("Failed to load fee extract", zap.Error(err))
	}

	requests, cashReport, err := clean.CleanCashRequests(cashTable, policy.CashRequests, cutoff)
	if err != nil {
		logger.Fatal("Cash-request cleaning failed", zap.Error(err))
	}
	cashReport.Log()

	validIds := make(map[int64]bool, len(requests))
	for _, request := range requests {
		validIds[request.Id] = true
	}

	fees, feeReport, err := clean.CleanFees(feeTable, policy.Fees, cutoff, validIds)
	if err != nil {
		logger.Fatal("Fee cleaning failed", zap.Error(err))
	}
	feeReport.Log()

	unified, err := identity.Unify(requests, conflictPolicy)
	if err != nil {
		logger.Fatal("Identity unification failed", zap.Error(err))
	}

	transactions, err := link.Join(unified.Requests, fees)
	if err != nil {
		logger.Fatal("Fee linking failed", zap.Error(err))
	}

	first := cohort.FirstActivity(unified.Requests)
	tagged, err := cohort.Tag(transactions, first)
	if err != nil {
		logger.Fatal("Cohort assignment failed", zap.Error(err))
	}

	sizes := cohort.Sizes(first)
	results, err := metrics.Compute(tagged, sizes, policy.PartialMonthSet())
	if err != nil {
		logger.Fatal("Metrics computation failed", zap.Error(err))
	}

	activity := metrics.MonthlyActivity(unified.Requests)
	shares := metrics.TransferTypeShare(unified.Requests)

	if err := export.WriteAll(cfg.Data.OutputDir, results, activity, shares); err != nil {
		logger.Fatal("Export failed", zap.Error(err))
	}

	ctx := context.Background()
	service, err := store.NewService(ctx, cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open metrics mart", zap.Error(err))
	}
	defer service.Close()

	run := models.Run{
		StartedAt:        startedAt,
		FinishedAt:       time.Now().UTC(),
		CashRequestRows:  len(unified.Requests),
		FeeRows:          len(fees),
		TransactionRows:  len(tagged),
		CohortCount:      len(results.Usage.Cohorts()),
		DistinctUsers:    len(first),
		ConflictPolicy:   string(conflictPolicy),
		PolicyFile:       cfg.Data.PolicyFile,
		CashRequestsPath: cfg.Data.CashRequestsPath,
		FeesPath:         cfg.Data.FeesPath,
	}
	runId, err := service.SaveRun(ctx, run, results)
	if err != nil {
		logger.Fatal("Failed to persist run", zap.Error(err))
	}

	logger.Info("Pipeline run complete",
		zap.String("run_id", runId),
		zap.Int("cash_requests", len(unified.Requests)),
		zap.Int("fees", len(fees)),
		zap.Int("transaction_rows", len(tagged)),
		zap.Int("cohorts", len(results.Usage.Cohorts())),
		zap.Duration("elapsed", time.Since(startedAt)))
}
