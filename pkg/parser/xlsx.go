package parser

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// WorkbookEncoding is reported as RawTable.Encoding for spreadsheet input.
const WorkbookEncoding = "xlsx"

// zipMagic starts every OOXML workbook.
var zipMagic = []byte("PK\x03\x04")

// IsWorkbook reports whether data looks like an .xlsx workbook.
func IsWorkbook(data []byte) bool {
	return bytes.HasPrefix(data, zipMagic)
}

// Parse reads an upload as a workbook or as delimited text, chosen by content.
func Parse(data []byte, opts TableOptions) (*schema.RawTable, error) {
	if IsWorkbook(data) {
		return ParseWorkbook(data, opts.Detect)
	}
	return ParseTable(data, opts)
}

// ParseWorkbook reads the first sheet of an .xlsx workbook into a RawTable.
// Rows are padded to the widest row first, since the workbook reader drops
// trailing empty cells.
func ParseWorkbook(data []byte, opts DetectOptions) (*schema.RawTable, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return &schema.RawTable{Encoding: WorkbookEncoding}, nil
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}
	for i, row := range rows {
		if len(row) < width {
			padded := make([]string, width)
			copy(padded, row)
			rows[i] = padded
		}
	}

	table, err := ParseRows(rows, opts)
	if err != nil {
		return nil, err
	}
	table.Encoding = WorkbookEncoding
	return table, nil
}
