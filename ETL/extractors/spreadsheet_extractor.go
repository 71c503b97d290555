package extractors

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/LilVoxy/delivery_analytics/ETL/utils"
)

// SpreadsheetExtractor reads workbook and CSV exports. The first non-empty
// row of each sheet is the header; every later non-empty row is a record.
type SpreadsheetExtractor struct {
	logger *utils.ETLLogger
}

// NewSpreadsheetExtractor creates a new SpreadsheetExtractor
func NewSpreadsheetExtractor(logger *utils.ETLLogger) *SpreadsheetExtractor {
	return &SpreadsheetExtractor{logger: logger}
}

// ReadXLSX reads every sheet. Cells come back unformatted, so dates stay
// Excel serial numbers for the normalizer to convert.
func (e *SpreadsheetExtractor) ReadXLSX(path string) ([]record, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var out []record
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		records := rowsToRecords(sheet, rows)
		e.logger.Debug("sheet read", "sheet", sheet, "records", len(records))
		out = append(out, records...)
	}
	return out, nil
}

// ReadCSV reads a single-table export; comma or semicolon separated
func (e *SpreadsheetExtractor) ReadCSV(path string) ([]record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text := strings.TrimPrefix(string(data), "\ufeff")

	r := csv.NewReader(strings.NewReader(text))
	r.Comma = detectDelimiter(text)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var rows [][]string
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rowsToRecords("", rows), nil
}

// detectDelimiter picks ';' when the header line has more semicolons than commas
func detectDelimiter(text string) rune {
	header, _, _ := strings.Cut(text, "\n")
	if strings.Count(header, ";") > strings.Count(header, ",") {
		return ';'
	}
	return ','
}

func rowsToRecords(container string, rows [][]string) []record {
	headerAt := -1
	for i, row := range rows {
		if !blankRow(row) {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return nil
	}

	header := make([]string, len(rows[headerAt]))
	seen := make(map[string]bool)
	for i, name := range rows[headerAt] {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		header[i] = name
	}

	var out []record
	for i := headerAt + 1; i < len(rows); i++ {
		row := rows[i]
		if blankRow(row) {
			continue
		}
		fields := make(map[string]string, len(header))
		for col, name := range header {
			if name == "" {
				continue
			}
			if col < len(row) {
				fields[name] = row[col]
			} else {
				fields[name] = ""
			}
		}
		out = append(out, record{
			container: container,
			locator:   strconv.Itoa(i + 1), // 1-based sheet row
			fields:    fields,
		})
	}
	return out
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
