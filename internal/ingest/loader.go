package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// Row is one raw record keyed by column name. Values are the untouched
// cell strings; an empty string is a missing value.
type Row map[string]string

// Table is one raw extract, fully materialized.
type Table struct {
	Name    string
	Columns []string
	Rows    []Row
}

// LoadTable reads a CSV extract into memory. A missing or unreadable
// file is fatal: the pipeline cannot proceed without its inputs.
func LoadTable(path, name string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s extract %s: %w", name, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("unable to read %s header: %w", name, err)
	}

	table := &Table{Name: name, Columns: header}
	for lineNo := 2; ; lineNo++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("unable to read %s line %d: %w", name, lineNo, err)
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("%s line %d has %d fields, header has %d", name, lineNo, len(record), len(header))
		}
		row := make(Row, len(header))
		for i, col := range header {
			row[col] = record[i]
		}
		table.Rows = append(table.Rows, row)
	}

	zap.L().Info("Loaded extract",
		zap.String("table", name),
		zap.String("path", path),
		zap.Int("rows", len(table.Rows)),
		zap.Int("columns", len(table.Columns)))

	return table, nil
}

// HasColumn reports whether the extract carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, col := range t.Columns {
		if col == name {
			return true
		}
	}
	return false
}
