package engine

import (
	"math"
	"strings"

	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// DefaultMinMinutes is the eligibility threshold when none is configured.
const DefaultMinMinutes = 10

// AffirmativeStatuses are the attendance flag values that count as present.
var AffirmativeStatuses = []string{"yes", "y", "true", "attended", "1"}

// AggregatedAttendee is one person in the attendance export after their
// join/leave entries were collapsed.
type AggregatedAttendee struct {
	Identity     schema.Identity `json:"identity"`
	DisplayName  string          `json:"displayName"`
	Email        string          `json:"email"`
	RawStatus    string          `json:"rawStatus,omitempty"`
	TotalMinutes float64         `json:"totalMinutes"`
	Sessions     int             `json:"sessions"`
	Eligible     bool            `json:"eligible"`
}

// AggregateOptions controls Aggregate.
type AggregateOptions struct {
	// MinMinutes is the inclusive eligibility threshold.
	MinMinutes float64
	// HasDuration reports whether the source carried a duration column.
	// Without one every attendee is eligible.
	HasDuration bool
	// StatusGate drops entries whose attendance flag is not affirmative.
	StatusGate bool
	// Normalizer builds identity keys; nil means schema.DefaultNormalizer.
	Normalizer *schema.Normalizer
}

// AttendeeSet is the output of Aggregate.
type AttendeeSet struct {
	// Ordered holds every aggregate in first-seen order.
	Ordered []AggregatedAttendee `json:"ordered"`
	// Eligible is the subset of Ordered that passed the threshold.
	Eligible []AggregatedAttendee `json:"eligible"`
	// ByEmail maps normalized email to its position in Ordered.
	ByEmail     map[string]int `json:"-"`
	HasDuration bool           `json:"hasDuration"`
	MinMinutes  float64        `json:"minMinutes"`
	// Gated counts entries dropped by the attendance flag.
	Gated int `json:"gated"`
	// Unkeyed counts entries with neither an email nor a usable name.
	Unkeyed int `json:"unkeyed"`
}

// Aggregate collapses attendance entries into one record per identity.
//  1. Optionally drop entries whose status flag is not affirmative
//  2. Key each entry by normalized email; entries without one fall back to
//     their normalized display name so they can still match by name
//  3. Sum minutes per key; display name, raw email and status come from the
//     first entry seen
//  4. Mark aggregates eligible when TotalMinutes >= MinMinutes, or always when
//     the source has no duration column
func Aggregate(entries []schema.AttendanceEntry, opts AggregateOptions) AttendeeSet {
	n := schema.DefaultNormalizer()
	if opts.Normalizer != nil {
		n = *opts.Normalizer
	}

	set := AttendeeSet{
		ByEmail:     make(map[string]int),
		HasDuration: opts.HasDuration,
		MinMinutes:  opts.MinMinutes,
	}
	positions := make(map[string]int, len(entries))

	for _, e := range entries {
		if opts.StatusGate && !IsAffirmative(e.RawStatus) {
			set.Gated++
			continue
		}

		id := schema.Identity{Email: n.Email(e.Email), Name: n.Name(e.DisplayName)}
		var key string
		switch {
		case id.Email != "":
			key = "email\x00" + id.Email
		case id.Name != "":
			key = "name\x00" + id.Name
		default:
			set.Unkeyed++
			continue
		}

		pos, ok := positions[key]
		if !ok {
			pos = len(set.Ordered)
			positions[key] = pos
			set.Ordered = append(set.Ordered, AggregatedAttendee{
				Identity:    id,
				DisplayName: e.DisplayName,
				Email:       e.Email,
				RawStatus:   e.RawStatus,
			})
			if id.Email != "" {
				set.ByEmail[id.Email] = pos
			}
		}
		set.Ordered[pos].TotalMinutes = addMinutes(set.Ordered[pos].TotalMinutes, e.DurationMinutes)
		set.Ordered[pos].Sessions++
	}

	for i := range set.Ordered {
		a := &set.Ordered[i]
		a.Eligible = !opts.HasDuration || a.TotalMinutes >= opts.MinMinutes
		if a.Eligible {
			set.Eligible = append(set.Eligible, *a)
		}
	}

	return set
}

// addMinutes sums durations, saturating at math.MaxFloat64 so totals stay
// finite.
func addMinutes(total, d float64) float64 {
	if sum := total + d; !math.IsInf(sum, 0) && !math.IsNaN(sum) {
		return sum
	}
	return math.MaxFloat64
}

// Lookup returns the aggregate for a normalized email, eligible or not.
func (s AttendeeSet) Lookup(email string) (AggregatedAttendee, bool) {
	pos, ok := s.ByEmail[email]
	if !ok {
		return AggregatedAttendee{}, false
	}
	return s.Ordered[pos], true
}

// IsAffirmative reports whether an attendance flag means the person attended.
func IsAffirmative(status string) bool {
	s := strings.ToLower(strings.TrimSpace(status))
	for _, v := range AffirmativeStatuses {
		if s == v {
			return true
		}
	}
	return false
}
