package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// TableOptions configures ParseTable.
type TableOptions struct {
	Detect DetectOptions
	// Delimiter defaults to ','.
	Delimiter rune
	// Encoding forces a named input encoding; empty means auto-detect.
	Encoding string
}

func (o TableOptions) delimiter() rune {
	if o.Delimiter == 0 {
		return ','
	}
	return o.Delimiter
}

// ParseTable turns an uploaded export into a RawTable.
//  1. Decode to UTF-8 (BOM, UTF-16, legacy code pages)
//  2. Split into lines and strip one trailing delimiter per line
//  3. Locate the header row with DetectHeader
//  4. Parse the header and everything below it as CSV
//  5. Pad or truncate ragged rows, drop columns that are empty throughout
//
// Warnings carry the 1-based line number in the decoded input.
func ParseTable(data []byte, opts TableOptions) (*schema.RawTable, error) {
	decoded, enc, err := DecodeAs(data, opts.Encoding)
	if err != nil {
		return nil, fmt.Errorf("encoding detection failed: %w", err)
	}

	delim := opts.delimiter()
	lines := stripTrailingDelimiters(splitLines(string(decoded)), delim)
	if len(lines) == 0 {
		return &schema.RawTable{Encoding: enc}, nil
	}

	header, err := DetectHeader(lines, delim, opts.Detect)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(strings.NewReader(strings.Join(lines[header:], "\n")))
	reader.Comma = delim
	// Allow variable number of fields per record; we handle padding/truncation ourselves.
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return &schema.RawTable{HeaderRow: header, Encoding: enc}, nil
		}
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	var (
		records  [][]string
		lineNos  []int
		warnings []schema.ParseWarning
	)
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				line = pe.Line + header
			}
			warnings = append(warnings, schema.ParseWarning{
				Row:     line,
				Message: fmt.Sprintf("parse error: %v", err),
			})
			continue
		}
		line, _ := reader.FieldPos(0)
		records = append(records, rec)
		lineNos = append(lineNos, line+header)
	}

	table := buildTable(headers, records, lineNos)
	table.HeaderRow = header
	table.Encoding = enc
	table.Warnings = append(warnings, table.Warnings...)
	return table, nil
}

// ParseRows builds a RawTable from rows that were already split into cells,
// for formats that are not delimited text.
func ParseRows(rows [][]string, opts DetectOptions) (*schema.RawTable, error) {
	if len(rows) == 0 {
		return &schema.RawTable{}, nil
	}
	header, err := DetectHeaderRows(rows, opts)
	if err != nil {
		return nil, err
	}

	body := rows[header+1:]
	lineNos := make([]int, len(body))
	for i := range body {
		lineNos[i] = header + i + 2
	}
	table := buildTable(rows[header], body, lineNos)
	table.HeaderRow = header
	return table, nil
}

// buildTable pads or truncates records to the header width, skips blank
// records and drops ghost columns (no header text and no data).
func buildTable(rawHeaders []string, records [][]string, lineNos []int) *schema.RawTable {
	width := len(rawHeaders)
	headers := make([]string, width)
	for i, h := range rawHeaders {
		headers[i] = strings.TrimSpace(h)
	}

	var warnings []schema.ParseWarning
	kept := make([][]string, 0, len(records))
	used := make([]bool, width)
	for i, row := range records {
		if isBlank(row) {
			continue
		}
		if len(row) != width {
			if len(row) < width {
				warnings = append(warnings, schema.ParseWarning{
					Row:     lineNos[i],
					Message: fmt.Sprintf("row has %d columns, expected %d; padding with empty values", len(row), width),
				})
				padded := make([]string, width)
				copy(padded, row)
				row = padded
			} else {
				warnings = append(warnings, schema.ParseWarning{
					Row:     lineNos[i],
					Message: fmt.Sprintf("row has %d columns, expected %d; truncating extra columns", len(row), width),
				})
				row = row[:width]
			}
		}
		for j, cell := range row {
			if strings.TrimSpace(cell) != "" {
				used[j] = true
			}
		}
		kept = append(kept, row)
	}

	var cols []int
	for j, h := range headers {
		if h != "" || used[j] {
			cols = append(cols, j)
		}
	}

	names := uniqueHeaders(headers, cols)
	table := &schema.RawTable{
		Headers:  names,
		Rows:     make([]map[string]string, 0, len(kept)),
		Warnings: warnings,
	}
	for _, row := range kept {
		record := make(map[string]string, len(cols))
		for k, j := range cols {
			record[names[k]] = row[j]
		}
		table.Rows = append(table.Rows, record)
	}
	return table
}

// uniqueHeaders names the selected columns, labelling blank headers by
// position and suffixing repeats so every header is a distinct map key.
func uniqueHeaders(headers []string, cols []int) []string {
	names := make([]string, len(cols))
	seen := make(map[string]int, len(cols))
	for k, j := range cols {
		name := headers[j]
		if name == "" {
			name = fmt.Sprintf("Column %d", j+1)
		}
		seen[name]++
		if n := seen[name]; n > 1 {
			name = fmt.Sprintf("%s (%d)", name, n)
		}
		names[k] = name
	}
	return names
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// splitLines normalizes line endings and drops trailing blank lines.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// stripTrailingDelimiters removes a single trailing delimiter from each line
// that does not end inside a quoted field. Quotes are read the way the lazy
// CSV reader reads them: a quote opens a field only at the start of that
// field, and a quote inside a quoted field closes it only before a delimiter
// or the end of the line.
func stripTrailingDelimiters(lines []string, delim rune) []string {
	out := make([]string, len(lines))
	inQuote := false
	suffix := string(delim)
	for i, line := range lines {
		runes := []rune(line)
		fieldStart := !inQuote
		for j := 0; j < len(runes); j++ {
			r := runes[j]
			if inQuote {
				if r != '"' {
					continue
				}
				switch {
				case j+1 < len(runes) && runes[j+1] == '"':
					j++
				case j+1 == len(runes) || runes[j+1] == delim:
					inQuote = false
				}
				continue
			}
			switch {
			case r == delim:
				fieldStart = true
			case r == '"' && fieldStart:
				inQuote = true
				fieldStart = false
			default:
				fieldStart = false
			}
		}
		if !inQuote && strings.HasSuffix(line, suffix) {
			line = strings.TrimSuffix(line, suffix)
		}
		out[i] = line
	}
	return out
}
