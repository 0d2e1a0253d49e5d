package store

const (
	// Run registry
	queryInsertRun = `
		INSERT INTO runs (id, started_at, finished_at, cash_request_rows, fee_rows,
			transaction_rows, cohort_count, distinct_users, conflict_policy,
			policy_file, cash_requests_path, fees_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryLatestRun = `
		SELECT id, started_at, finished_at, cash_request_rows, fee_rows,
			transaction_rows, cohort_count, distinct_users, conflict_policy,
			policy_file, cash_requests_path, fees_path
		FROM runs
		ORDER BY finished_at DESC, id DESC
		LIMIT 1`

	// Metric tables
	queryInsertUsageCell = `
		INSERT INTO usage_matrix (run_id, cohort, month, requests)
		VALUES (?, ?, ?, ?)`

	queryInsertRetentionCell = `
		INSERT INTO retention_matrix (run_id, kind, cohort, month, rate)
		VALUES (?, ?, ?, ?, ?)`

	queryGetRetention = `
		SELECT cohort, month, rate
		FROM retention_matrix
		WHERE run_id = ? AND kind = ?
		ORDER BY cohort, month`

	queryInsertIncidentRate = `
		INSERT INTO incident_rates (run_id, cohort, total_requests, incident_requests, rate)
		VALUES (?, ?, ?, ?, ?)`

	queryGetIncidentRates = `
		SELECT cohort, total_requests, incident_requests, rate
		FROM incident_rates
		WHERE run_id = ?
		ORDER BY cohort`

	queryInsertRevenue = `
		INSERT INTO revenue (run_id, cohort, revenue, cumulative_revenue)
		VALUES (?, ?, ?, ?)`

	queryGetRevenue = `
		SELECT cohort, revenue, cumulative_revenue
		FROM revenue
		WHERE run_id = ?
		ORDER BY cohort`

	queryInsertArpu = `
		INSERT INTO arpu (run_id, cohort, revenue, user_count, arpu)
		VALUES (?, ?, ?, ?, ?)`

	queryGetArpu = `
		SELECT cohort, revenue, user_count, arpu
		FROM arpu
		WHERE run_id = ?
		ORDER BY cohort`

	queryInsertClv = `
		INSERT INTO clv (run_id, cohort, arpu, retention_months, clv)
		VALUES (?, ?, ?, ?, ?)`

	queryGetClv = `
		SELECT cohort, arpu, retention_months, clv
		FROM clv
		WHERE run_id = ?
		ORDER BY cohort`

	queryInsertCohortSize = `
		INSERT INTO cohort_sizes (run_id, cohort, user_count)
		VALUES (?, ?, ?)`

	queryGetCohortSizes = `
		SELECT cohort, user_count
		FROM cohort_sizes
		WHERE run_id = ?
		ORDER BY cohort`
)
