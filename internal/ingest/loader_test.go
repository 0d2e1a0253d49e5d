package ingest

import (
	"os"
	"path/filepath"
	"testing"
)

func writeExtract(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "extract.csv")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("Failed to write test extract: %v", err)
	}
	return path
}

func TestLoadTable(t *testing.T) {
	path := writeExtract(t, "id,amount,status\n1,100,money_sent\n2,50,rejected\n")

	table, err := LoadTable(path, "cash_requests")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}

	if table.Name != "cash_requests" {
		t.Errorf("Expected table name cash_requests, got %q", table.Name)
	}
	if len(table.Columns) != 3 {
		t.Fatalf("Expected 3 columns, got %d", len(table.Columns))
	}
	if len(table.Rows) != 2 {
		t.Fatalf("Expected 2 rows, got %d", len(table.Rows))
	}
	if table.Rows[0]["id"] != "1" || table.Rows[0]["status"] != "money_sent" {
		t.Errorf("Unexpected first row: %v", table.Rows[0])
	}
	if table.Rows[1]["amount"] != "50" {
		t.Errorf("Expected amount 50, got %q", table.Rows[1]["amount"])
	}
}

func TestLoadTableEmptyCells(t *testing.T) {
	path := writeExtract(t, "id,user_id,deleted_account_id\n1,42,\n2,,77\n")

	table, err := LoadTable(path, "cash_requests")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}

	if table.Rows[0]["deleted_account_id"] != "" {
		t.Errorf("Expected empty cell to read as empty string, got %q", table.Rows[0]["deleted_account_id"])
	}
	if table.Rows[1]["user_id"] != "" {
		t.Errorf("Expected empty cell to read as empty string, got %q", table.Rows[1]["user_id"])
	}
}

func TestLoadTableMissingFile(t *testing.T) {
	_, err := LoadTable(filepath.Join(t.TempDir(), "missing.csv"), "fees")
	if err == nil {
		t.Fatal("Expected error for missing extract")
	}
}

func TestLoadTableRaggedRow(t *testing.T) {
	path := writeExtract(t, "id,amount\n1,100\n2\n")

	_, err := LoadTable(path, "cash_requests")
	if err == nil {
		t.Fatal("Expected error for row with wrong field count")
	}
}

func TestHasColumn(t *testing.T) {
	path := writeExtract(t, "id,created_at\n1,2020-01-01\n")

	table, err := LoadTable(path, "fees")
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if !table.HasColumn("created_at") {
		t.Error("Expected created_at column present")
	}
	if table.HasColumn("updated_at") {
		t.Error("Expected updated_at column absent")
	}
}
