package xlsx

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

func writeWorkbook(t *testing.T, sheet string, rows [][]any) string {
	t.Helper()
	book := excelize.NewFile()
	defer book.Close()

	if sheet != "Sheet1" {
		if err := book.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("SetSheetName() error = %v", err)
		}
	}
	for idx, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, idx+1)
		if err != nil {
			t.Fatalf("CoordinatesToCellName() error = %v", err)
		}
		if err := book.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("SetSheetRow() error = %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "references.xlsx")
	if err := book.SaveAs(path); err != nil {
		t.Fatalf("SaveAs() error = %v", err)
	}
	return path
}

func TestSourceFetchRowsWithinRange(t *testing.T) {
	path := writeWorkbook(t, "Doc refs", [][]any{
		{"Filename", "URL", "Owner"},
		{"dorm-handbook.pdf", "https://vinuni.edu.vn/dorm", "Student Life"},
		{"tuition.pdf", "https://vinuni.edu.vn/tuition", "Finance"},
	})

	source, err := New(path, "'Doc refs'!A:B")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rows, err := source.FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if len(rows[1]) != 2 || rows[1][1] != "https://vinuni.edu.vn/dorm" {
		t.Fatalf("unexpected row: %v", rows[1])
	}
}

func TestSourceRespectsRowBounds(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", [][]any{
		{"title row"},
		{"Filename", "URL"},
		{"a.pdf", "https://a"},
		{"b.pdf", "https://b"},
	})

	source, err := New(path, "Sheet1!A2:B3")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	rows, err := source.FetchRows(context.Background())
	if err != nil {
		t.Fatalf("FetchRows() error = %v", err)
	}
	if len(rows) != 2 || rows[0][0] != "Filename" || rows[1][0] != "a.pdf" {
		t.Fatalf("unexpected rows: %v", rows)
	}
}

func TestSourceMissingWorkbook(t *testing.T) {
	source, err := New(filepath.Join(t.TempDir(), "missing.xlsx"), "")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := source.FetchRows(context.Background()); err == nil {
		t.Fatalf("expected error for missing workbook")
	}
}

func TestParseRange(t *testing.T) {
	got, err := parseRange("Sheet1!B2:C")
	if err != nil {
		t.Fatalf("parseRange() error = %v", err)
	}
	want := cellRange{sheet: "Sheet1", startCol: 2, endCol: 3, startRow: 2}
	if got != want {
		t.Fatalf("parseRange() = %+v, want %+v", got, want)
	}

	if _, err := parseRange("Sheet1!C1:A1"); err == nil {
		t.Fatalf("expected error for inverted range")
	}
	if _, err := New("refs.xlsx", "Sheet1!1A"); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
