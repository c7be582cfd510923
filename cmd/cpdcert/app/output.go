package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/goccy/go-yaml"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/alexsbc303/CPD-Cert/pkg/certificate"
	"github.com/alexsbc303/CPD-Cert/pkg/metadata"
	"github.com/alexsbc303/CPD-Cert/pkg/pipeline"
)

// Format is an output format.
type Format string

// Output formats.
const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name. Empty means auto-detect.
func ParseFormat(s string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(s)))
	switch format {
	case FormatTable, FormatJSON, FormatYAML, "":
		return format, nil
	}
	return "", fmt.Errorf("invalid format %q: must be one of: table, json, yaml", s)
}

// DetectFormat picks table output for terminals and JSON for pipes.
func DetectFormat(explicit Format) Format {
	if explicit != "" {
		return explicit
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return FormatTable
	}
	return FormatJSON
}

func writeJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func writeYAML(w io.Writer, data any) error {
	out, err := yaml.MarshalWithOptions(data, yaml.Indent(2), yaml.IndentSequence(false))
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// writeStructured handles the json and yaml formats; it reports false for
// table output so the caller can render its own tables.
func writeStructured(w io.Writer, format Format, data any) (bool, error) {
	switch format {
	case FormatJSON:
		return true, writeJSON(w, data)
	case FormatYAML:
		return true, writeYAML(w, data)
	}
	return false, nil
}

func renderTable(w io.Writer, headers []string, rows [][]string, rightAligned ...int) error {
	cfg := tablewriter.Config{}
	if len(rightAligned) > 0 {
		align := make([]tw.Align, len(headers))
		for i := range align {
			align[i] = tw.AlignLeft
		}
		for _, col := range rightAligned {
			align[col] = tw.AlignRight
		}
		cfg.Row.Alignment = tw.CellAlignment{PerColumn: align}
	}

	table := tablewriter.NewTable(w, tablewriter.WithConfig(cfg))
	header := make([]any, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	table.Header(header...)

	for _, row := range rows {
		cells := make([]any, len(row))
		for i, c := range row {
			cells[i] = c
		}
		if err := table.Append(cells...); err != nil {
			return err
		}
	}
	return table.Render()
}

// writeResultTable prints the matched and unmatched registrants and the
// run counts.
func writeResultTable(w io.Writer, res *pipeline.Result) error {
	rep := res.Report

	if len(rep.Matched) > 0 {
		fmt.Fprintf(w, "Matched (%d)\n", len(rep.Matched))
		rows := make([][]string, 0, len(rep.Matched))
		for i, m := range rep.Matched {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				strings.TrimSpace(m.Salutation + " " + m.FullName),
				m.Email,
				m.MembershipID,
				string(m.Method),
				formatMinutes(m.TotalMinutes),
				string(m.Review.Level),
			})
		}
		if err := renderTable(w, []string{"#", "Name", "Email", "Membership No", "Method", "Minutes", "Review"}, rows, 0, 5); err != nil {
			return err
		}
	}

	if len(rep.Unmatched) > 0 {
		fmt.Fprintf(w, "\nUnmatched (%d)\n", len(rep.Unmatched))
		rows := make([][]string, 0, len(rep.Unmatched))
		for _, u := range rep.Unmatched {
			rows = append(rows, []string{strconv.Itoa(u.SourceRow), u.Name, u.Email, u.Reason})
		}
		if err := renderTable(w, []string{"Row", "Name", "Email", "Reason"}, rows, 0); err != nil {
			return err
		}
	}

	fmt.Fprintln(w)
	return writeCounts(w, res)
}

func writeCounts(w io.Writer, res *pipeline.Result) error {
	c := res.Report.Counts
	r := res.Report.Reviews
	rows := [][]string{
		{"Registrants", humanize.Comma(int64(c.TotalRegistrants))},
		{"Attendees", humanize.Comma(int64(c.TotalAttendees))},
		{"Eligible attendees", humanize.Comma(int64(c.EligibleAttendees))},
		{"Matched by email", humanize.Comma(int64(c.ByEmail))},
		{"Matched by name", humanize.Comma(int64(c.ByName))},
		{"Unmatched", humanize.Comma(int64(c.Unmatched))},
		{"Duplicate matches", humanize.Comma(int64(c.DuplicateMatches))},
		{"Review high/medium/low", fmt.Sprintf("%d/%d/%d", r.High, r.Medium, r.Low)},
		{"Attendance header row", strconv.Itoa(res.Attendance.HeaderRow + 1)},
		{"Attendance encoding", res.Attendance.Encoding},
	}
	if err := renderTable(w, []string{"Count", "Value"}, rows, 1); err != nil {
		return err
	}
	return writeNotices(w, res)
}

func writeNotices(w io.Writer, res *pipeline.Result) error {
	var notices []string
	for _, pw := range res.Registration.Warnings {
		notices = append(notices, fmt.Sprintf("registration line %d: %s", pw.Row, pw.Message))
	}
	for _, pw := range res.Attendance.Warnings {
		notices = append(notices, fmt.Sprintf("attendance line %d: %s", pw.Row, pw.Message))
	}
	notices = append(notices, res.Report.Notices...)
	for _, n := range notices {
		if _, err := fmt.Fprintf(w, "warning: %s\n", n); err != nil {
			return err
		}
	}
	return nil
}

func writeArtifactTable(w io.Writer, manifest certificate.Manifest, archive string, archiveSize int64) error {
	rows := make([][]string, 0, len(manifest.Certificates))
	for _, a := range manifest.Certificates {
		rows = append(rows, []string{
			a.FileName,
			string(a.PasswordSource),
			string(a.Review),
			humanize.Bytes(uint64(a.Size)),
		})
	}
	if err := renderTable(w, []string{"File", "Password", "Review", "Size"}, rows, 3); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\nWrote %s certificates to %s (%s), batch %s\n",
		humanize.Comma(int64(len(manifest.Certificates))), archive, humanize.Bytes(uint64(archiveSize)), manifest.BatchID)
	return err
}

func writeEventTable(w io.Writer, ev metadata.Event) error {
	rows := [][]string{
		{"Title", ev.Title},
		{"Details", ev.Details},
		{"URL", ev.URL},
	}
	return renderTable(w, []string{"Property", "Value"}, rows)
}

func formatMinutes(m float64) string {
	return strconv.FormatFloat(m, 'f', -1, 64)
}

// writeCSVFile writes rows with fn to path, replacing any existing file.
func writeCSVFile[T any](path string, rows []T, fn func(io.Writer, []T) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := fn(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
