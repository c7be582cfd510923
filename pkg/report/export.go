package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// MatchedColumns is the header of WriteMatchedCSV.
var MatchedColumns = []string{
	"Salutation", "First Name", "Last Name", "Full Name", "Membership No", "Email",
	"Match Method", "Matched Display Name", "Total Minutes", "Sessions", "Review", "Review Reasons",
}

// UnmatchedColumns is the header of WriteUnmatchedCSV.
var UnmatchedColumns = []string{
	"Name", "Email", "Normalized Email", "Normalized Name", "Reason", "Source Row",
}

// WriteMatchedCSV writes the matched list as CSV.
func WriteMatchedCSV(w io.Writer, rows []MatchedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MatchedColumns); err != nil {
		return fmt.Errorf("failed to write matched header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Salutation,
			r.FirstName,
			r.LastName,
			r.FullName,
			r.MembershipID,
			r.Email,
			string(r.Method),
			r.MatchedDisplayName,
			strconv.FormatFloat(r.TotalMinutes, 'f', -1, 64),
			strconv.Itoa(r.Sessions),
			string(r.Review.Level),
			strings.Join(r.Review.Reasons, "; "),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write matched row %d: %w", r.SourceRow, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteUnmatchedCSV writes the unmatched list as CSV.
func WriteUnmatchedCSV(w io.Writer, rows []UnmatchedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(UnmatchedColumns); err != nil {
		return fmt.Errorf("failed to write unmatched header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Name,
			r.Email,
			r.NormalizedEmail,
			r.NormalizedName,
			r.Reason,
			strconv.Itoa(r.SourceRow),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write unmatched row %d: %w", r.SourceRow, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
