// Package pipeline runs one reconciliation: it reads the two exports, maps
// them onto canonical records, aggregates attendance and matches every
// registrant.
package pipeline

import (
	"context"

	"github.com/alexsbc303/CPD-Cert/pkg/config"
	"github.com/alexsbc303/CPD-Cert/pkg/engine"
	"github.com/alexsbc303/CPD-Cert/pkg/logging"
	"github.com/alexsbc303/CPD-Cert/pkg/parser"
	"github.com/alexsbc303/CPD-Cert/pkg/report"
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// Input holds the raw bytes of both exports. Each may be delimited text or
// an .xlsx workbook.
type Input struct {
	Registration []byte
	Attendance   []byte
}

// TableSummary describes how one export was read.
type TableSummary struct {
	Encoding  string                `json:"encoding" yaml:"encoding"`
	HeaderRow int                   `json:"headerRow" yaml:"header_row"`
	Headers   []string              `json:"headers" yaml:"headers"`
	Mappings  map[string]string     `json:"mappings" yaml:"mappings"`
	Rows      int                   `json:"rows" yaml:"rows"`
	Warnings  []schema.ParseWarning `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Attendance is the attendance side of a run, ready to be matched against
// any number of registration lists.
type Attendance struct {
	Table   TableSummary
	Index   *engine.AttendeeIndex
	Entries int
}

// Registration is the registration side of a run.
type Registration struct {
	Table       TableSummary
	Registrants []schema.Registrant
}

// Result is a complete reconciliation.
type Result struct {
	Report       *report.Report              `json:"report" yaml:"report"`
	Registration TableSummary                `json:"registration" yaml:"registration"`
	Attendance   TableSummary                `json:"attendance" yaml:"attendance"`
	Stats        engine.IndexStats           `json:"stats" yaml:"stats"`
	Attendees    []engine.AggregatedAttendee `json:"-" yaml:"-"`
}

// Run reconciles one registration export against one attendance export.
// It returns either a complete report or the first fatal error; an empty
// match is reported as a warning on the report.
func Run(ctx context.Context, cfg *config.Config, in Input) (*Result, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	att, err := LoadAttendance(ctx, cfg, in.Attendance)
	if err != nil {
		return nil, err
	}
	reg, err := LoadRegistration(ctx, cfg, in.Registration)
	if err != nil {
		return nil, err
	}

	rep := Reconcile(ctx, cfg, reg.Registrants, att.Index)

	return &Result{
		Report:       rep,
		Registration: reg.Table,
		Attendance:   att.Table,
		Stats:        att.Index.Stats,
		Attendees:    att.Index.Set().Ordered,
	}, nil
}

// LoadAttendance parses, maps and aggregates an attendance export.
//  1. Locate the header row and read the table
//  2. Map columns onto display name, email, duration and status
//  3. Apply the attendance flag only when a status column was found
//  4. Aggregate per person and index the eligible ones
func LoadAttendance(ctx context.Context, cfg *config.Config, data []byte) (*Attendance, error) {
	logger := logging.FromContext(ctx).With().Str("table", "attendance").Logger()

	table, err := parser.Parse(data, cfg.AttendanceTable())
	if err != nil {
		return nil, withTable(err, "attendance")
	}

	mapper := cfg.AttendanceMapper()
	mappings := mapper.InferMappings(table.Headers)
	entries, hasDuration, err := mapper.MapAttendance(table)
	if err != nil {
		return nil, err
	}

	_, hasStatus := mappings[schema.FieldRawStatus]
	n := cfg.Normalizer()
	set := engine.Aggregate(entries, engine.AggregateOptions{
		MinMinutes:  cfg.MinMinutes,
		HasDuration: hasDuration,
		StatusGate:  cfg.RequireAttendedFlag && hasStatus,
		Normalizer:  &n,
	})
	index := engine.BuildAttendeeIndex(set, n)

	summary := summarize(table, mappings)
	logTable(&logger, summary)
	logger.Debug().
		Int("entries", len(entries)).
		Int("attendees", index.Stats.TotalAttendees).
		Int("eligible", index.Stats.EligibleAttendees).
		Int("gated", set.Gated).
		Int("unkeyed", set.Unkeyed).
		Bool("has_duration", hasDuration).
		Msg("Aggregated attendance")
	if !hasDuration {
		logger.Warn().Msg("No duration column; every attendee counts as eligible")
	}

	return &Attendance{Table: summary, Index: index, Entries: len(entries)}, nil
}

// LoadRegistration parses and maps a registration export.
func LoadRegistration(ctx context.Context, cfg *config.Config, data []byte) (*Registration, error) {
	logger := logging.FromContext(ctx).With().Str("table", "registration").Logger()

	table, err := parser.Parse(data, cfg.RegistrationTable())
	if err != nil {
		return nil, withTable(err, "registration")
	}

	mapper := cfg.RegistrationMapper()
	mappings := mapper.InferMappings(table.Headers)
	registrants, err := mapper.MapRegistrants(table)
	if err != nil {
		return nil, err
	}

	summary := summarize(table, mappings)
	logTable(&logger, summary)

	return &Registration{Table: summary, Registrants: registrants}, nil
}

// Reconcile matches registrants against an attendee index and builds the
// report.
func Reconcile(ctx context.Context, cfg *config.Config, registrants []schema.Registrant, index *engine.AttendeeIndex) *report.Report {
	logger := logging.FromContext(ctx)

	results := index.MatchAll(registrants, cfg.MatchWorkers)
	rep := report.Build(results, index.Set())

	logger.Info().
		Int("registrants", rep.Counts.TotalRegistrants).
		Int("matched", rep.Counts.Matched).
		Int("by_email", rep.Counts.ByEmail).
		Int("by_name", rep.Counts.ByName).
		Int("unmatched", rep.Counts.Unmatched).
		Int("duplicate_matches", rep.Counts.DuplicateMatches).
		Msg("Reconciliation complete")
	for _, w := range rep.Warnings {
		logger.Warn().Err(w).Msg("Reconciliation warning")
	}
	return rep
}

func summarize(table *schema.RawTable, mappings map[string]string) TableSummary {
	return TableSummary{
		Encoding:  table.Encoding,
		HeaderRow: table.HeaderRow,
		Headers:   table.Headers,
		Mappings:  mappings,
		Rows:      len(table.Rows),
		Warnings:  table.Warnings,
	}
}
