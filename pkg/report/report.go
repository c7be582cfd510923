package report

import (
	"fmt"
	"strings"

	"github.com/alexsbc303/CPD-Cert/pkg/engine"
	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

// MatchedRow is one registrant who will receive a certificate.
type MatchedRow struct {
	Salutation         string                 `json:"salutation" yaml:"salutation"`
	FirstName          string                 `json:"firstName" yaml:"first_name"`
	LastName           string                 `json:"lastName" yaml:"last_name"`
	FullName           string                 `json:"fullName" yaml:"full_name"`
	MembershipID       string                 `json:"membershipId" yaml:"membership_id"`
	Email              string                 `json:"email" yaml:"email"`
	Method             engine.MatchMethod     `json:"method" yaml:"method"`
	MatchedDisplayName string                 `json:"matchedDisplayName" yaml:"matched_display_name"`
	TotalMinutes       float64                `json:"totalMinutes" yaml:"total_minutes"`
	Sessions           int                    `json:"sessions" yaml:"sessions"`
	Review             engine.Review          `json:"review" yaml:"review"`
	Conflicts          []engine.FieldConflict `json:"conflicts,omitempty" yaml:"conflicts,omitempty"`
	SourceRow          int                    `json:"sourceRow" yaml:"source_row"`
}

// UnmatchedRow is one registrant left out, with the keys that were tried.
type UnmatchedRow struct {
	Name            string `json:"name" yaml:"name"`
	Email           string `json:"email" yaml:"email"`
	NormalizedEmail string `json:"normalizedEmail" yaml:"normalized_email"`
	NormalizedName  string `json:"normalizedName" yaml:"normalized_name"`
	Reason          string `json:"reason" yaml:"reason"`
	SourceRow       int    `json:"sourceRow" yaml:"source_row"`
}

// Counts summarizes a reconciliation run.
type Counts struct {
	TotalRegistrants  int `json:"totalRegistrants" yaml:"total_registrants"`
	TotalAttendees    int `json:"totalAttendees" yaml:"total_attendees"`
	EligibleAttendees int `json:"eligibleAttendees" yaml:"eligible_attendees"`
	Matched           int `json:"matched" yaml:"matched"`
	Unmatched         int `json:"unmatched" yaml:"unmatched"`
	ByEmail           int `json:"byEmail" yaml:"by_email"`
	ByName            int `json:"byName" yaml:"by_name"`
	DuplicateMatches  int `json:"duplicateMatches" yaml:"duplicate_matches"`
}

// ReviewSummary contains counts of matched rows at each review level.
type ReviewSummary struct {
	High   int `json:"high" yaml:"high"`
	Medium int `json:"medium" yaml:"medium"`
	Low    int `json:"low" yaml:"low"`
	None   int `json:"none" yaml:"none"`
}

// Report is the reconciliation artifact handed to certificate generation.
type Report struct {
	Matched   []MatchedRow   `json:"matched" yaml:"matched"`
	Unmatched []UnmatchedRow `json:"unmatched" yaml:"unmatched"`
	Counts    Counts         `json:"counts" yaml:"counts"`
	Reviews   ReviewSummary  `json:"reviews" yaml:"reviews"`
	// Notices mirrors Warnings as text for serialized output.
	Notices []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	// Warnings are non-fatal conditions such as *errors.EmptyResultError.
	Warnings []error `json:"-" yaml:"-"`
}

// Build compiles match results into a Report.
//  1. Matched registrants become MatchedRows with review flags
//  2. Unmatched registrants become UnmatchedRows with a reason taken from the
//     full attendee set (absent, or present but under the threshold)
//  3. Counts come from the results and the attendee set
//  4. An empty matched list adds an EmptyResultError warning
func Build(results []engine.MatchResult, attendees engine.AttendeeSet) *Report {
	report := &Report{
		Matched:   make([]MatchedRow, 0),
		Unmatched: make([]UnmatchedRow, 0),
	}

	claims := engine.Claims(results)
	shortByName := ineligibleByName(attendees)

	for _, r := range results {
		reg := r.Registrant

		if r.Attendee == nil {
			report.Unmatched = append(report.Unmatched, UnmatchedRow{
				Name:            reg.FullName,
				Email:           reg.Email,
				NormalizedEmail: r.Identity.Email,
				NormalizedName:  r.Identity.Name,
				Reason:          unmatchedReason(r, attendees, shortByName),
				SourceRow:       reg.SourceRow,
			})
			continue
		}

		review := engine.ScoreReview(r, claims[r.Attendee.Identity])
		report.Matched = append(report.Matched, MatchedRow{
			Salutation:         reg.Salutation,
			FirstName:          reg.FirstName,
			LastName:           reg.LastName,
			FullName:           reg.FullName,
			MembershipID:       reg.MembershipID,
			Email:              reg.Email,
			Method:             r.Method,
			MatchedDisplayName: r.Attendee.DisplayName,
			TotalMinutes:       r.Attendee.TotalMinutes,
			Sessions:           r.Attendee.Sessions,
			Review:             review,
			Conflicts:          r.Conflicts,
			SourceRow:          reg.SourceRow,
		})
		updateReviewSummary(&report.Reviews, review.Level)
	}

	stats := engine.Summarize(results)
	report.Counts = Counts{
		TotalRegistrants:  len(results),
		TotalAttendees:    len(attendees.Ordered),
		EligibleAttendees: len(attendees.Eligible),
		Matched:           len(report.Matched),
		Unmatched:         len(report.Unmatched),
		ByEmail:           stats.ByEmail,
		ByName:            stats.ByName,
		DuplicateMatches:  stats.DuplicateMatches,
	}

	if len(report.Matched) == 0 {
		report.AddWarning(errors.NewEmptyResultError(len(results), len(attendees.Eligible)))
	}

	return report
}

// AddWarning records a non-fatal condition.
func (r *Report) AddWarning(err error) {
	r.Warnings = append(r.Warnings, err)
	r.Notices = append(r.Notices, err.Error())
}

// Empty reports whether nobody matched.
func (r *Report) Empty() bool {
	return len(r.Matched) == 0
}

func ineligibleByName(set engine.AttendeeSet) map[string]engine.AggregatedAttendee {
	out := make(map[string]engine.AggregatedAttendee)
	for _, a := range set.Ordered {
		if a.Eligible || a.Identity.Name == "" {
			continue
		}
		if _, ok := out[a.Identity.Name]; !ok {
			out[a.Identity.Name] = a
		}
	}
	return out
}

func unmatchedReason(r engine.MatchResult, set engine.AttendeeSet, shortByName map[string]engine.AggregatedAttendee) string {
	if r.Identity.Email != "" {
		if a, ok := set.Lookup(r.Identity.Email); ok && !a.Eligible {
			return belowThreshold(a, set.MinMinutes)
		}
	}
	if a, ok := shortByName[r.Identity.Name]; ok {
		return belowThreshold(a, set.MinMinutes) + " (by name)"
	}
	if r.Identity.Email == "" && r.Identity.Name == "" {
		return "registration has neither email nor name"
	}
	return "no attendance record"
}

func belowThreshold(a engine.AggregatedAttendee, min float64) string {
	return fmt.Sprintf("attended %s of %s minutes", trimFloat(a.TotalMinutes), trimFloat(min))
}

func trimFloat(f float64) string {
	s := fmt.Sprintf("%.2f", f)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// updateReviewSummary increments the appropriate counter in the review summary.
func updateReviewSummary(summary *ReviewSummary, level engine.ReviewLevel) {
	switch level {
	case engine.ReviewHigh:
		summary.High++
	case engine.ReviewMedium:
		summary.Medium++
	case engine.ReviewLow:
		summary.Low++
	default:
		summary.None++
	}
}
