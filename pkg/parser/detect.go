package parser

import (
	"encoding/csv"
	"strings"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

// Default detection bounds.
const (
	DefaultLookahead     = 20
	DefaultSectionWindow = 5
)

// DefaultSectionMarkers label the attendee block of a multi-section report.
var DefaultSectionMarkers = []string{"Attendee Details"}

// DetectOptions controls header row detection.
type DetectOptions struct {
	// Markers must all appear (as substrings of some cell) in the header row.
	Markers []string `json:"markers" yaml:"markers"`
	// SectionMarkers label the block the header follows, if the export has sections.
	SectionMarkers []string `json:"section_markers" yaml:"section_markers"`
	// Lookahead bounds the plain scan when no section marker is present.
	Lookahead int `json:"lookahead" yaml:"lookahead"`
	// SectionWindow bounds how far after a section marker the header may sit.
	SectionWindow int `json:"section_window" yaml:"section_window"`
}

func (o DetectOptions) withDefaults() DetectOptions {
	if o.Lookahead <= 0 {
		o.Lookahead = DefaultLookahead
	}
	if o.SectionWindow <= 0 {
		o.SectionWindow = DefaultSectionWindow
	}
	return o
}

// DetectHeader finds the header row among raw text lines. Each line is split
// on delimiter before the cell tests run; a line that does not parse as a
// record is treated as a single cell.
func DetectHeader(lines []string, delimiter rune, opts DetectOptions) (int, error) {
	rows := make([][]string, len(lines))
	for i, line := range lines {
		rows[i] = splitLine(line, delimiter)
	}
	return DetectHeaderRows(rows, opts)
}

// DetectHeaderRows returns the zero-based index of the header row.
//  1. Empty input, or no markers to look for: row 0 (no scan possible)
//  2. For every row carrying a section marker, search the next SectionWindow
//     rows for one whose cells contain every marker
//  3. With no section marker at all, scan the first Lookahead rows
//  4. A scan that finds nothing is a SchemaDetectionError, never row 0
func DetectHeaderRows(rows [][]string, opts DetectOptions) (int, error) {
	if len(rows) == 0 || len(opts.Markers) == 0 {
		return 0, nil
	}
	opts = opts.withDefaults()

	scanned := 0
	sectionSeen := false
	for i, row := range rows {
		if !containsAny(row, opts.SectionMarkers) {
			continue
		}
		sectionSeen = true
		end := min(i+opts.SectionWindow, len(rows)-1)
		for j := i + 1; j <= end; j++ {
			scanned++
			if containsAll(rows[j], opts.Markers) {
				return j, nil
			}
		}
	}

	if !sectionSeen {
		end := min(opts.Lookahead, len(rows))
		for i := 0; i < end; i++ {
			scanned++
			if containsAll(rows[i], opts.Markers) {
				return i, nil
			}
		}
	}

	return 0, errors.NewSchemaDetectionError(opts.Markers, opts.SectionMarkers, scanned)
}

// containsAll reports whether every token is a substring of at least one cell.
// Tokens are tested independently, so one cell may satisfy several.
func containsAll(row []string, tokens []string) bool {
	for _, tok := range tokens {
		if !cellContains(row, tok) {
			return false
		}
	}
	return true
}

func containsAny(row []string, tokens []string) bool {
	for _, tok := range tokens {
		if cellContains(row, tok) {
			return true
		}
	}
	return false
}

func cellContains(row []string, tok string) bool {
	if tok == "" {
		return true
	}
	for _, cell := range row {
		if strings.Contains(cell, tok) {
			return true
		}
	}
	return false
}

func splitLine(line string, delimiter rune) []string {
	r := csv.NewReader(strings.NewReader(line))
	r.Comma = delimiter
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	rec, err := r.Read()
	if err != nil {
		return []string{line}
	}
	return rec
}
