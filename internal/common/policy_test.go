package common

import (
	"os"
	"path/filepath"
	"testing"
)

const validPolicy = `analysis_cutoff: "2024-12-12"
partial_months:
  - "2019-11"
  - "2020-11"
cash_requests:
  datetime_columns: [created_at, updated_at]
  categorical_columns: [status, transfer_type]
fees:
  datetime_columns: [created_at]
  categorical_columns: [type, status]
`

func writePolicy(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to write test policy: %v", err)
	}
	return path
}

func TestLoadDatasetPolicy(t *testing.T) {
	policy, err := LoadDatasetPolicy(writePolicy(t, validPolicy))
	if err != nil {
		t.Fatalf("LoadDatasetPolicy failed: %v", err)
	}

	cutoff, err := policy.Cutoff()
	if err != nil {
		t.Fatalf("Cutoff failed: %v", err)
	}
	if cutoff.Year() != 2024 || cutoff.Month() != 12 || cutoff.Day() != 12 {
		t.Errorf("Unexpected cutoff: %s", cutoff)
	}

	set := policy.PartialMonthSet()
	if !set["2019-11"] || !set["2020-11"] || len(set) != 2 {
		t.Errorf("Unexpected partial month set: %v", set)
	}
	if months := policy.PartialMonthList(); len(months) != 2 || months[0] != "2019-11" {
		t.Errorf("Unexpected partial month list: %v", months)
	}

	if len(policy.CashRequests.DatetimeColumns) != 2 {
		t.Errorf("Unexpected cash_requests datetime columns: %v", policy.CashRequests.DatetimeColumns)
	}
	if policy.Fees.CategoricalColumns[0] != "type" {
		t.Errorf("Unexpected fees categorical columns: %v", policy.Fees.CategoricalColumns)
	}
}

func TestLoadDatasetPolicyMissingFile(t *testing.T) {
	if _, err := LoadDatasetPolicy(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("Expected error for missing policy file")
	}
}

func TestLoadDatasetPolicyValidation(t *testing.T) {
	cases := []struct {
		name     string
		contents string
	}{
		{"missing cutoff", "cash_requests:\n  datetime_columns: [created_at]\nfees:\n  datetime_columns: [created_at]\n"},
		{"bad cutoff", "analysis_cutoff: \"not-a-date\"\ncash_requests:\n  datetime_columns: [created_at]\nfees:\n  datetime_columns: [created_at]\n"},
		{"missing cash datetime columns", "analysis_cutoff: \"2024-12-12\"\nfees:\n  datetime_columns: [created_at]\n"},
		{"missing fee datetime columns", "analysis_cutoff: \"2024-12-12\"\ncash_requests:\n  datetime_columns: [created_at]\n"},
		{"bad partial month", "analysis_cutoff: \"2024-12-12\"\npartial_months: [\"november\"]\ncash_requests:\n  datetime_columns: [created_at]\nfees:\n  datetime_columns: [created_at]\n"},
		{"not yaml", "{{{"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadDatasetPolicy(writePolicy(t, tc.contents)); err == nil {
				t.Errorf("Expected %s to be rejected", tc.name)
			}
		})
	}
}
