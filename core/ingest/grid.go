package ingest

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned for files that are neither CSV nor spreadsheets.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// Extensions of the files picked up by the scanner.
var Extensions = []string{".csv", ".xlsx", ".xls"}

// IsCandidate reports whether the file name has one of the supported extensions (case-insensitive).
func IsCandidate(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseGrid parses the first sheet of a file into a Grid, using the file name extension as format hint.
func ParseGrid(name string, b []byte) (Grid, error) {
	if len(b) == 0 {
		return Grid{}, nil
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return parseCSV(b)
	case ".xlsx":
		return parseXLSX(b)
	case ".xls":
		// some .xls files are OOXML with the wrong extension
		g, err := parseXLSX(b)
		if err == nil {
			return g, nil
		}
		g, biffErr := parseXLS(b)
		if biffErr != nil {
			return nil, errors.Wrapf(ErrUnsupportedFormat, "reading .xls: %v; %v", err, biffErr)
		}
		return g, nil
	}
	return nil, ErrUnsupportedFormat
}

func parseCSV(b []byte) (Grid, error) {
	text := DecodeText(b)
	if strings.TrimSpace(text) == "" {
		return Grid{}, nil
	}

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = sniffDelimiter(text)
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	rows, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "reading csv")
	}
	return Grid(rows), nil
}

// sniffDelimiter picks tab when the first line holds one, comma otherwise.
func sniffDelimiter(text string) rune {
	firstLine := text
	if i := strings.IndexAny(text, "\r\n"); i >= 0 {
		firstLine = text[:i]
	}
	if strings.Contains(firstLine, "\t") {
		return '\t'
	}
	return ','
}

func parseXLSX(b []byte) (Grid, error) {
	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "opening workbook")
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Grid{}, nil
	}
	return getFilledGrid(f, sheets[0])
}

// getFilledGrid reads the raw cell values of a sheet (so date serials survive) and copies the value of merged
// ranges into every cell of the range.
func getFilledGrid(f *excelize.File, sheet string) (Grid, error) {
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.Wrap(err, "reading rows")
	}
	if len(rows) == 0 {
		return Grid{}, nil
	}

	maxCol := 0
	for _, row := range rows {
		if len(row) > maxCol {
			maxCol = len(row)
		}
	}

	grid := make(Grid, len(rows))
	for i := range grid {
		grid[i] = make([]string, maxCol)
		copy(grid[i], rows[i])
	}

	merges, err := f.GetMergeCells(sheet)
	if err != nil {
		return nil, errors.Wrap(err, "reading merged cells")
	}
	for _, merge := range merges {
		startCol, startRow, err := excelize.CellNameToCoordinates(merge.GetStartAxis())
		if err != nil {
			continue
		}
		endCol, endRow, err := excelize.CellNameToCoordinates(merge.GetEndAxis())
		if err != nil {
			continue
		}
		val := merge.GetCellValue()
		for r := startRow - 1; r < endRow && r < len(grid); r++ {
			for c := startCol - 1; c < endCol && c < len(grid[r]); c++ {
				grid[r][c] = val
			}
		}
	}
	return grid, nil
}

// maxXLSCols is the column count of a BIFF8 sheet.
const maxXLSCols = 256

// parseXLS reads the first sheet of a legacy BIFF workbook.
func parseXLS(b []byte) (g Grid, err error) {
	defer func() {
		if r := recover(); r != nil {
			g, err = nil, errors.Errorf("reading xls workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(b), "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "opening xls workbook")
	}
	if wb == nil {
		return nil, errors.New("opening xls workbook: no workbook stream")
	}
	if wb.NumSheets() == 0 {
		return Grid{}, nil
	}

	sheet := wb.GetSheet(0)
	rows := make([][]string, int(sheet.MaxRow)+1)
	maxCol := 0
	for i := range rows {
		row := xlsRow(sheet, i)
		if row == nil {
			continue
		}
		width := row.LastCol()
		if width <= 0 || width > maxXLSCols {
			width = maxXLSCols
		}
		cells := make([]string, width)
		for c := row.FirstCol(); c < width; c++ {
			cells[c] = row.Col(c)
		}
		for len(cells) > 0 && cells[len(cells)-1] == "" {
			cells = cells[:len(cells)-1]
		}
		rows[i] = cells
		if len(cells) > maxCol {
			maxCol = len(cells)
		}
	}
	if maxCol == 0 {
		return Grid{}, nil
	}

	g = make(Grid, len(rows))
	for i := range g {
		g[i] = make([]string, maxCol)
		copy(g[i], rows[i])
	}
	return g, nil
}

// xlsRow returns nil for rows the sheet does not hold; WorkSheet.Row panics on them.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}
