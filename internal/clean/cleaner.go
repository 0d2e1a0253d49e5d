package clean

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cohort-analytics-go/internal/ingest"
)

// ErrDuplicateKeys is returned when a primary key value appears more
// than once. Every downstream join keys on id, so this halts the run.
var ErrDuplicateKeys = errors.New("duplicate primary key values")

// ErrMissingCreatedAt is returned when a retained row has no parseable
// created_at. Cohort assignment is undefined without one.
var ErrMissingCreatedAt = errors.New("row missing created_at")

const sampleLimit = 5

// timestampLayouts covers the source export formats: zoned and naive,
// with or without a time component. Fractional seconds are accepted by
// the parser regardless of layout.
var timestampLayouts = []string{
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// parseTimestamp coerces a raw cell into a naive timestamp. Zoned
// values are converted to UTC and the zone dropped; already-naive
// values pass through. Unparseable or empty input is missing, never an
// error: the nil result is the validity signal.
func parseTimestamp(value string) *time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			naive := t.UTC()
			return &naive
		}
	}
	return nil
}

// parseDatetimes parses the policy's datetime columns for every row.
// The result is aligned with table.Rows.
func parseDatetimes(table *ingest.Table, columns []string) []map[string]*time.Time {
	parsed := make([]map[string]*time.Time, len(table.Rows))
	for i, row := range table.Rows {
		times := make(map[string]*time.Time, len(columns))
		for _, col := range columns {
			times[col] = parseTimestamp(row[col])
		}
		parsed[i] = times
	}
	return parsed
}

// futureDatedRows counts rows where any datetime column exceeds the
// analysis cutoff, keeping a small sample of row ids for inspection.
// This is a reporting check only; no rows are removed.
func futureDatedRows(table *ingest.Table, parsed []map[string]*time.Time, cutoff time.Time) (int, []int64) {
	var count int
	var sample []int64
	for i, times := range parsed {
		for _, t := range times {
			if t != nil && t.After(cutoff) {
				count++
				if len(sample) < sampleLimit {
					if id, err := rowId(table.Rows[i]); err == nil {
						sample = append(sample, id)
					}
				}
				break
			}
		}
	}
	return count, sample
}

// duplicateFullRows counts rows whose every cell matches an earlier row.
func duplicateFullRows(table *ingest.Table) int {
	seen := make(map[string]bool, len(table.Rows))
	var count int
	for _, row := range table.Rows {
		var b strings.Builder
		for _, col := range table.Columns {
			b.WriteString(row[col])
			b.WriteByte(0x1f)
		}
		key := b.String()
		if seen[key] {
			count++
		}
		seen[key] = true
	}
	return count
}

// duplicateKeys counts repeated values in the id column.
func duplicateKeys(table *ingest.Table) (int, []int64) {
	seen := make(map[string]bool, len(table.Rows))
	var count int
	var sample []int64
	for _, row := range table.Rows {
		id := row["id"]
		if seen[id] {
			count++
			if len(sample) < sampleLimit {
				if parsed, err := rowId(row); err == nil {
					sample = append(sample, parsed)
				}
			}
		}
		seen[id] = true
	}
	return count, sample
}

// normalizeCategoricals lowercases and trims the policy's categorical
// columns in place. The literal string "nan" is a stringification
// artifact of a missing value and is converted back to missing.
func normalizeCategoricals(table *ingest.Table, columns []string) int {
	var nanCells int
	for _, row := range table.Rows {
		for _, col := range columns {
			value := strings.TrimSpace(strings.ToLower(row[col]))
			if value == "nan" {
				value = ""
				nanCells++
			}
			row[col] = value
		}
	}
	return nanCells
}

func rowId(row ingest.Row) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(row["id"]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable id %q: %w", row["id"], err)
	}
	return id, nil
}

func parseOptionalInt(value string) (*int64, error) {
	value = strings.TrimSpace(value)
	if value == "" || strings.EqualFold(value, "nan") {
		return nil, nil
	}
	// Identifier columns can arrive float-formatted ("12345.0") after
	// passing through a stage that mixed them with missing values.
	if dot := strings.IndexByte(value, '.'); dot >= 0 {
		if rest := value[dot+1:]; strings.Trim(rest, "0") == "" {
			value = value[:dot]
		}
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("unparseable identifier %q: %w", value, err)
	}
	return &parsed, nil
}

func optionalString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
