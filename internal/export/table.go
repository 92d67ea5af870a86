// Package export writes extraction results as spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docfields/internal/common"
	"github.com/joseph-ayodele/docfields/internal/schema"
)

const sheetName = "Extraction"

// Row maps a column name to its cell value. Missing columns are blank.
type Row map[string]string

// Columns returns the leading columns followed by the schema's field names.
func Columns(s *schema.Schema, leading ...string) []string {
	cols := append([]string(nil), leading...)
	if s != nil {
		cols = append(cols, s.FieldNames()...)
	}
	return cols
}

// CheckColumns fails when a schema field is named like one of the meta
// columns written next to it.
func CheckColumns(s *schema.Schema, meta ...string) error {
	if s == nil {
		return nil
	}
	for _, name := range s.FieldNames() {
		if slices.Contains(meta, name) {
			return common.NewAppError("COLUMN_CONFLICT",
				fmt.Sprintf("field %q clashes with an export column of the same name", name),
				common.ErrInvalidInput)
		}
	}
	return nil
}

// WriteCSV writes a header row and one line per row.
func WriteCSV(w io.Writer, columns []string, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("csv header: %w", err)
	}
	rec := make([]string, len(columns))
	for i, r := range rows {
		for j, c := range columns {
			rec[j] = r[c]
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("csv row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteXLSX writes a single-sheet workbook with a header row.
func WriteXLSX(w io.Writer, columns []string, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	// rename the default sheet rather than adding a second one
	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("xlsx sheet: %w", err)
	}

	widths := make([]int, len(columns))
	write := func(col, row int, v string) error {
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return err
		}
		if n := utf8.RuneCountInString(v); n > widths[col] {
			widths[col] = n
		}
		return f.SetCellValue(sheetName, cell, v)
	}

	for i, c := range columns {
		if err := write(i, 1, c); err != nil {
			return fmt.Errorf("xlsx header: %w", err)
		}
	}
	for ri, r := range rows {
		for ci, c := range columns {
			if err := write(ci, ri+2, r[c]); err != nil {
				return fmt.Errorf("xlsx row %d: %w", ri+1, err)
			}
		}
	}

	// Widen columns to their content, within limits
	for i, n := range widths {
		name, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		_ = f.SetColWidth(sheetName, name, name, float64(min(max(n+2, 12), 60)))
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
