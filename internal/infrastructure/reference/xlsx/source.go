// Package xlsx reads the reference table from a spreadsheet export on disk.
package xlsx

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/vinuni-assistant/internal/core/domain"
)

// Source reopens the workbook on every fetch so a replaced export is picked
// up by the next reload.
type Source struct {
	path      string
	readRange cellRange
}

type cellRange struct {
	sheet    string
	startCol int
	endCol   int
	startRow int
	endRow   int // 0 means open-ended
}

func New(path, rng string) (*Source, error) {
	if strings.TrimSpace(path) == "" {
		return nil, domain.WrapError(domain.ErrMissingConfig, "new xlsx source", fmt.Errorf("workbook path is empty"))
	}
	parsed, err := parseRange(rng)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "new xlsx source", err)
	}
	return &Source{path: strings.TrimSpace(path), readRange: parsed}, nil
}

func (s *Source) FetchRows(ctx context.Context) ([][]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	book, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheet := s.readRange.sheet
	if sheet == "" {
		sheet = book.GetSheetName(book.GetActiveSheetIndex())
	}
	all, err := book.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}

	rows := make([][]string, 0, len(all))
	for idx, row := range all {
		rowNum := idx + 1
		if rowNum < s.readRange.startRow {
			continue
		}
		if s.readRange.endRow > 0 && rowNum > s.readRange.endRow {
			break
		}
		rows = append(rows, s.readRange.columns(row))
	}
	return rows, nil
}

func (r cellRange) columns(row []string) []string {
	start := r.startCol - 1
	if start >= len(row) {
		return []string{}
	}
	end := len(row)
	if r.endCol > 0 && r.endCol < end {
		end = r.endCol
	}
	out := make([]string, end-start)
	copy(out, row[start:end])
	return out
}

// parseRange accepts A1 notation such as "Sheet1!A2:B", "'Doc refs'!A:B" or
// "A:B". An empty range reads columns A and B of the active sheet.
func parseRange(raw string) (cellRange, error) {
	raw = strings.TrimSpace(raw)
	out := cellRange{startCol: 1, endCol: 2, startRow: 1}
	if raw == "" {
		return out, nil
	}

	cells := raw
	if idx := strings.LastIndex(raw, "!"); idx >= 0 {
		out.sheet = strings.Trim(raw[:idx], "'")
		cells = raw[idx+1:]
	}
	if cells == "" {
		out.endCol = 0
		return out, nil
	}

	from, to, found := strings.Cut(cells, ":")
	if !found {
		to = from
	}
	startCol, startRow, err := splitCell(from)
	if err != nil {
		return cellRange{}, err
	}
	endCol, endRow, err := splitCell(to)
	if err != nil {
		return cellRange{}, err
	}
	if startCol == 0 {
		startCol = 1
	}
	if startRow == 0 {
		startRow = 1
	}
	if endCol != 0 && endCol < startCol {
		return cellRange{}, fmt.Errorf("range %q ends before it starts", raw)
	}
	out.startCol, out.endCol = startCol, endCol
	out.startRow, out.endRow = startRow, endRow
	return out, nil
}

func splitCell(cell string) (col, row int, err error) {
	cell = strings.ToUpper(strings.TrimSpace(cell))
	split := strings.IndexFunc(cell, func(r rune) bool { return r >= '0' && r <= '9' })
	letters, digits := cell, ""
	if split >= 0 {
		letters, digits = cell[:split], cell[split:]
	}
	if letters != "" {
		col, err = excelize.ColumnNameToNumber(letters)
		if err != nil {
			return 0, 0, fmt.Errorf("parse column %q: %w", letters, err)
		}
	}
	if digits != "" {
		row, err = strconv.Atoi(digits)
		if err != nil || row <= 0 {
			return 0, 0, fmt.Errorf("parse row %q", digits)
		}
	}
	if letters == "" && digits == "" {
		return 0, 0, fmt.Errorf("empty cell reference")
	}
	return col, row, nil
}
