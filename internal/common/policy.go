package common

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cohort-analytics-go/internal/models"

	"gopkg.in/yaml.v2"
)

// TablePolicy lists the columns of one raw extract that need
// type-driven cleaning.
type TablePolicy struct {
	DatetimeColumns    []string `yaml:"datetime_columns"`
	CategoricalColumns []string `yaml:"categorical_columns"`
}

// DatasetPolicy is the dataset-level cleaning policy: the analysis
// cutoff for the future-date check, the partially observed boundary
// months, and the per-table column classifications.
type DatasetPolicy struct {
	AnalysisCutoff string      `yaml:"analysis_cutoff"`
	PartialMonths  []string    `yaml:"partial_months"`
	CashRequests   TablePolicy `yaml:"cash_requests"`
	Fees           TablePolicy `yaml:"fees"`
}

func LoadDatasetPolicy(policyFile string) (*DatasetPolicy, error) {
	var policyPath string
	if filepath.IsAbs(policyFile) {
		policyPath = policyFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		policyPath = filepath.Join(wd, policyFile)
	}

	data, err := os.ReadFile(policyPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", policyFile, err)
	}

	var policy DatasetPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", policyFile, err)
	}

	if policy.AnalysisCutoff == "" {
		return nil, fmt.Errorf("%s missing analysis_cutoff", policyFile)
	}
	if _, err := policy.Cutoff(); err != nil {
		return nil, err
	}
	if len(policy.CashRequests.DatetimeColumns) == 0 {
		return nil, fmt.Errorf("%s missing cash_requests datetime_columns", policyFile)
	}
	if len(policy.Fees.DatetimeColumns) == 0 {
		return nil, fmt.Errorf("%s missing fees datetime_columns", policyFile)
	}
	for i, month := range policy.PartialMonths {
		if _, err := time.Parse("2006-01", month); err != nil {
			return nil, fmt.Errorf("partial month at index %d is not a year-month: %q", i, month)
		}
	}

	return &policy, nil
}

// Cutoff parses the analysis cutoff date.
func (p *DatasetPolicy) Cutoff() (time.Time, error) {
	cutoff, err := time.Parse("2006-01-02", p.AnalysisCutoff)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid analysis_cutoff %q: %w", p.AnalysisCutoff, err)
	}
	return cutoff, nil
}

// PartialMonthSet returns the partial boundary months as a lookup set.
func (p *DatasetPolicy) PartialMonthSet() map[models.Month]bool {
	set := make(map[models.Month]bool, len(p.PartialMonths))
	for _, month := range p.PartialMonths {
		set[models.Month(month)] = true
	}
	return set
}

// PartialMonthList returns the partial boundary months as Month values.
func (p *DatasetPolicy) PartialMonthList() []models.Month {
	months := make([]models.Month, len(p.PartialMonths))
	for i, month := range p.PartialMonths {
		months[i] = models.Month(month)
	}
	return months
}
