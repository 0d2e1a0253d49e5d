package clean

import "go.uber.org/zap"

// Report is the data-quality summary for one cleaned table. Everything
// in it is non-fatal: counts and samples are surfaced for visibility
// and the pipeline continues. Fatal conditions (duplicate keys,
// missing created_at) are returned as errors instead.
type Report struct {
	Table        string
	TotalRows    int
	RetainedRows int

	FutureDatedRows   int
	FutureDatedSample []int64

	DuplicateRows int

	LiteralNaNCells int

	NonPositiveAmounts int
	NonPositiveSample  []int64

	// Fee table only.
	DroppedNullForeignKey     int
	UnmatchedForeignKeyRows   int
	UnmatchedForeignKeySample []int64

	// Cash request table only: expected business nulls, broken down by
	// the status that explains them.
	MissingReimbursementByStatus map[string]int
}

// Log writes the quality summary through the global logger.
func (r *Report) Log() {
	zap.L().Info("Cleaning complete",
		zap.String("table", r.Table),
		zap.Int("total_rows", r.TotalRows),
		zap.Int("retained_rows", r.RetainedRows),
		zap.Int("future_dated_rows", r.FutureDatedRows),
		zap.Int("duplicate_rows", r.DuplicateRows),
		zap.Int("literal_nan_cells", r.LiteralNaNCells),
		zap.Int("non_positive_amounts", r.NonPositiveAmounts),
		zap.Int("dropped_null_fk", r.DroppedNullForeignKey),
		zap.Int("unmatched_fk_rows", r.UnmatchedForeignKeyRows))

	if r.FutureDatedRows > 0 {
		zap.L().Warn("Future-dated rows detected; inspect before trusting time-based metrics",
			zap.String("table", r.Table),
			zap.Int64s("sample_ids", r.FutureDatedSample))
	}
	if r.NonPositiveAmounts > 0 {
		zap.L().Warn("Non-positive monetary amounts detected; flagged for manual handling",
			zap.String("table", r.Table),
			zap.Int64s("sample_ids", r.NonPositiveSample))
	}
	if r.UnmatchedForeignKeyRows > 0 {
		zap.L().Warn("Fees referencing unknown cash requests were excluded",
			zap.Int("rows", r.UnmatchedForeignKeyRows),
			zap.Int64s("sample_ids", r.UnmatchedForeignKeySample))
	}
}
