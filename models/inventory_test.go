package models

import (
	"fmt"
	"testing"

	"github.com/xuri/excelize/v2"
)

// buildReferenceBlob writes a small workbook: one title row, then a
// header row [Pallet, Loc, Qty], then data rows.
func buildReferenceBlob(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()
	f.SetSheetName("Sheet1", "Inventory")

	f.SetCellValue("Inventory", "A1", "Cycle Count Reference")
	headers := []string{"Pallet", "Loc", "Qty"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue("Inventory", cell, h)
	}
	for r, row := range rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+3)
			f.SetCellValue("Inventory", cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	return buf.Bytes()
}

func TestReferenceSheetsAndColumns(t *testing.T) {
	s := NewReferenceStore(t.TempDir(), testLogger())

	if got := s.ListSheets(); len(got) != 0 {
		t.Fatalf("expected no sheets before upload, got %v", got)
	}

	blob := buildReferenceBlob(t, [][]interface{}{{"P100", "A-12", 50}})
	if err := s.SaveBlob(blob); err != nil {
		t.Fatalf("save blob: %v", err)
	}

	sheets := s.ListSheets()
	if len(sheets) != 1 || sheets[0] != "Inventory" {
		t.Fatalf("expected [Inventory], got %v", sheets)
	}

	// Header on the second row (0-based index 1).
	table := s.LoadTable("Inventory", 1)
	if len(table.Columns) != 3 || table.Columns[0] != "Pallet" || table.Columns[2] != "Qty" {
		t.Fatalf("unexpected columns %v", table.Columns)
	}
	if len(table.Rows) != 1 || table.Rows[0]["Pallet"] != "P100" || table.Rows[0]["Qty"] != "50" {
		t.Fatalf("unexpected rows %v", table.Rows)
	}
}

func TestReferenceDegradesToEmptyTable(t *testing.T) {
	s := NewReferenceStore(t.TempDir(), testLogger())

	if err := s.SaveBlob([]byte("this is not a workbook")); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	if got := s.ListSheets(); len(got) != 0 {
		t.Fatalf("bad bytes must yield no sheets, got %v", got)
	}
	if table := s.LoadTable("Inventory", 0); !table.Empty() {
		t.Fatalf("bad bytes must yield empty table, got %+v", table)
	}

	blob := buildReferenceBlob(t, [][]interface{}{{"P100", "A-12", 50}})
	if err := s.SaveBlob(blob); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	if table := s.LoadTable("NoSuchSheet", 0); !table.Empty() {
		t.Fatalf("unknown sheet must yield empty table, got %+v", table)
	}
	if table := s.LoadTable("Inventory", 99); !table.Empty() {
		t.Fatalf("out-of-range header row must yield empty table, got %+v", table)
	}
}

func TestReferenceShortRowsFillEmpty(t *testing.T) {
	s := NewReferenceStore(t.TempDir(), testLogger())

	blob := buildReferenceBlob(t, [][]interface{}{
		{"P1", "A-1", 5},
		{"P2"}, // trailing cells missing entirely
	})
	if err := s.SaveBlob(blob); err != nil {
		t.Fatalf("save blob: %v", err)
	}

	table := s.LoadTable("Inventory", 1)
	if len(table.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(table.Rows))
	}
	short := table.Rows[1]
	if short["Pallet"] != "P2" || short["Loc"] != "" || short["Qty"] != "" {
		t.Fatalf("short row must map missing cells to empty strings: %v", short)
	}
}

func TestReferenceBlobStoredVerbatim(t *testing.T) {
	s := NewReferenceStore(t.TempDir(), testLogger())

	var rows [][]interface{}
	for i := 0; i < 10; i++ {
		rows = append(rows, []interface{}{fmt.Sprintf("P%d", i), "A-1", i})
	}
	blob := buildReferenceBlob(t, rows)
	if err := s.SaveBlob(blob); err != nil {
		t.Fatalf("save blob: %v", err)
	}
	if !s.HasBlob() {
		t.Fatal("expected blob present after save")
	}

	table := s.LoadTable("Inventory", 1)
	if len(table.Rows) != 10 {
		t.Fatalf("expected 10 rows re-parsed from stored bytes, got %d", len(table.Rows))
	}
}
