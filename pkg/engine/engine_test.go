package engine

import (
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

func entry(name, email string, minutes float64) schema.AttendanceEntry {
	return schema.AttendanceEntry{DisplayName: name, Email: email, DurationMinutes: minutes}
}

func withDuration(min float64) AggregateOptions {
	return AggregateOptions{MinMinutes: min, HasDuration: true}
}

func TestAggregateFirstSeenNameAndSum(t *testing.T) {
	set := Aggregate([]schema.AttendanceEntry{
		entry("J Smith", "a@x.com", 5),
		entry("John Smith", " A@X.com", 8),
	}, withDuration(DefaultMinMinutes))

	require.Len(t, set.Ordered, 1)
	a := set.Ordered[0]
	assert.Equal(t, "J Smith", a.DisplayName)
	assert.Equal(t, 13.0, a.TotalMinutes)
	assert.Equal(t, 2, a.Sessions)
	assert.True(t, a.Eligible)
	assert.Equal(t, schema.Identity{Email: "a@x.com", Name: "j smith"}, a.Identity)

	got, ok := set.Lookup("a@x.com")
	require.True(t, ok)
	assert.Equal(t, a, got)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	entries := []schema.AttendanceEntry{
		entry("Ada", "ada@x.com", 4),
		entry("Bob", "bob@x.com", 7),
		entry("Ada L", "ada@x.com", 3),
		entry("Bob", "bob@x.com", 2),
		entry("Ada", "ADA@x.com", 6),
	}
	totals := func(set AttendeeSet) map[string]float64 {
		out := make(map[string]float64)
		for _, a := range set.Ordered {
			out[a.Identity.Email] = a.TotalMinutes
		}
		return out
	}

	want := map[string]float64{"ada@x.com": 13, "bob@x.com": 9}
	reversed := make([]schema.AttendanceEntry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}

	assert.Equal(t, want, totals(Aggregate(entries, withDuration(10))))
	assert.Equal(t, want, totals(Aggregate(reversed, withDuration(10))))
}

func TestAggregateThresholdIsInclusive(t *testing.T) {
	set := Aggregate([]schema.AttendanceEntry{
		entry("On Time", "on@x.com", 10),
		entry("Just Short", "short@x.com", 9.99),
	}, withDuration(10))

	require.Len(t, set.Ordered, 2)
	assert.True(t, set.Ordered[0].Eligible)
	assert.False(t, set.Ordered[1].Eligible)
	require.Len(t, set.Eligible, 1)
	assert.Equal(t, "on@x.com", set.Eligible[0].Identity.Email)
}

func TestAggregateMalformedEntryDoesNotZeroSum(t *testing.T) {
	// A malformed cell was coerced to 0 by the mapper; the rest still counts.
	set := Aggregate([]schema.AttendanceEntry{
		entry("Ada", "ada@x.com", 0),
		entry("Ada", "ada@x.com", 12),
	}, withDuration(10))

	assert.Equal(t, 12.0, set.Ordered[0].TotalMinutes)
	assert.True(t, set.Ordered[0].Eligible)
}

func TestAggregateHugeDurationsStaySerializable(t *testing.T) {
	set := Aggregate([]schema.AttendanceEntry{
		entry("Ada", "ada@x.com", 1e308),
		entry("Ada", "ada@x.com", 1e308),
	}, withDuration(10))

	require.Len(t, set.Ordered, 1)
	assert.Equal(t, math.MaxFloat64, set.Ordered[0].TotalMinutes)
	assert.True(t, set.Ordered[0].Eligible)

	data, err := SerializeAttendeeIndex(BuildAttendeeIndex(set, schema.DefaultNormalizer()))
	require.NoError(t, err)
	restored, err := DeserializeAttendeeIndex([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, MatchedByEmail, restored.Match(schema.Registrant{Email: "ada@x.com"}).Method)
}

func TestAggregateWithoutDurationColumn(t *testing.T) {
	set := Aggregate([]schema.AttendanceEntry{
		entry("Ada", "ada@x.com", 0),
		entry("Bob", "bob@x.com", 0),
	}, AggregateOptions{MinMinutes: 10})

	assert.Len(t, set.Eligible, 2)
	assert.False(t, set.HasDuration)
}

func TestAggregateStatusGate(t *testing.T) {
	entries := []schema.AttendanceEntry{
		{DisplayName: "Ada", Email: "ada@x.com", DurationMinutes: 30, RawStatus: "Yes"},
		{DisplayName: "Bob", Email: "bob@x.com", DurationMinutes: 30, RawStatus: "No"},
		{DisplayName: "Cy", Email: "cy@x.com", DurationMinutes: 30, RawStatus: " TRUE "},
	}

	gated := Aggregate(entries, AggregateOptions{MinMinutes: 10, HasDuration: true, StatusGate: true})
	assert.Equal(t, 1, gated.Gated)
	assert.Len(t, gated.Eligible, 2)

	open := Aggregate(entries, withDuration(10))
	assert.Equal(t, 0, open.Gated)
	assert.Len(t, open.Eligible, 3)
}

func TestAggregateKeysMissingEmailByName(t *testing.T) {
	set := Aggregate([]schema.AttendanceEntry{
		entry("Dr. Grace Hopper", "", 6),
		entry("Grace Hopper", " ", 6),
		entry("", "", 30),
	}, withDuration(10))

	require.Len(t, set.Ordered, 1)
	assert.Equal(t, "grace hopper", set.Ordered[0].Identity.Name)
	assert.Equal(t, 12.0, set.Ordered[0].TotalMinutes)
	assert.Equal(t, 1, set.Unkeyed)
	assert.Empty(t, set.ByEmail)
}

func TestIsAffirmative(t *testing.T) {
	for _, v := range []string{"Yes", "y", "TRUE", "Attended", "1"} {
		assert.True(t, IsAffirmative(v), v)
	}
	for _, v := range []string{"", "No", "0", "absent", "yes please"} {
		assert.False(t, IsAffirmative(v), v)
	}
}

func buildIndex(entries ...schema.AttendanceEntry) *AttendeeIndex {
	set := Aggregate(entries, withDuration(DefaultMinMinutes))
	return BuildAttendeeIndex(set, schema.DefaultNormalizer())
}

func TestMatchByEmail(t *testing.T) {
	idx := buildIndex(entry("Ada Lovelace", "ada.l@example.com", 15))

	got := idx.Match(schema.Registrant{FirstName: "Ada", LastName: "Lovelace", Email: "Ada.L@Example.com"})
	assert.Equal(t, MatchedByEmail, got.Method)
	require.NotNil(t, got.Attendee)
	assert.Equal(t, 15.0, got.Attendee.TotalMinutes)
	assert.Empty(t, got.Conflicts)
}

func TestMatchByName(t *testing.T) {
	idx := buildIndex(entry("Dr. Grace Hopper", "grace@navy.mil", 45))

	got := idx.Match(schema.Registrant{FirstName: "Grace", LastName: "Hopper", Email: "x@nomatch.com"})
	assert.Equal(t, MatchedByName, got.Method)
	require.NotNil(t, got.Attendee)
	assert.Equal(t, "Dr. Grace Hopper", got.Attendee.DisplayName)
	assert.Equal(t, []FieldConflict{{
		Field:           schema.FieldEmail,
		RegistrantValue: "x@nomatch.com",
		AttendeeValue:   "grace@navy.mil",
		Resolution:      "registration_wins",
	}}, got.Conflicts)
}

func TestMatchPrefersEmail(t *testing.T) {
	idx := buildIndex(
		entry("Someone Else", "ada@x.com", 20),
		entry("Ada Lovelace", "other@x.com", 20),
	)

	got := idx.Match(schema.Registrant{FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com"})
	assert.Equal(t, MatchedByEmail, got.Method)
	assert.Equal(t, "Someone Else", got.Attendee.DisplayName)
	require.Len(t, got.Conflicts, 1)
	assert.Equal(t, schema.FieldFullName, got.Conflicts[0].Field)
}

func TestMatchIgnoresIneligibleAttendees(t *testing.T) {
	idx := buildIndex(entry("Ada Lovelace", "ada@x.com", 9))

	got := idx.Match(schema.Registrant{FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com"})
	assert.Equal(t, Unmatched, got.Method)
	assert.Nil(t, got.Attendee)
	assert.False(t, got.Matched())
	assert.Equal(t, schema.Identity{Email: "ada@x.com", Name: "ada lovelace"}, got.Identity)
}

func TestMatchEmptyKeysNeverMatch(t *testing.T) {
	idx := buildIndex(entry("", "", 30), entry("Mr.", " ", 30))

	got := idx.Match(schema.Registrant{Email: " "})
	assert.Equal(t, Unmatched, got.Method)
}

func TestMatchDuplicateRegistrations(t *testing.T) {
	idx := buildIndex(entry("Ada Lovelace", "ada@x.com", 30))
	regs := []schema.Registrant{
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com"},
		{FirstName: "Ada", LastName: "Lovelace", Email: "ada.personal@x.com"},
		{FirstName: "Bob", LastName: "Nobody", Email: "bob@x.com"},
	}

	results := idx.MatchAll(regs, 1)
	stats := Summarize(results)
	assert.Equal(t, MatchStats{TotalProcessed: 3, ByEmail: 1, ByName: 1, Unmatched: 1, DuplicateMatches: 1}, stats)
	assert.Same(t, results[0].Attendee, results[1].Attendee)
}

func TestMatchAllParallelPreservesOrder(t *testing.T) {
	var entries []schema.AttendanceEntry
	var regs []schema.Registrant
	for i := 0; i < 200; i++ {
		email := fmt.Sprintf("user%d@x.com", i)
		if i%3 != 0 {
			entries = append(entries, entry(fmt.Sprintf("User %d", i), email, 30))
		}
		regs = append(regs, schema.Registrant{FirstName: "User", LastName: fmt.Sprint(i), Email: email})
	}
	idx := buildIndex(entries...)

	sequential := idx.MatchAll(regs, 1)
	parallel := idx.MatchAll(regs, 8)
	if diff := cmp.Diff(sequential, parallel); diff != "" {
		t.Errorf("MatchAll() parallel mismatch (-sequential +parallel):\n%s", diff)
	}
}

func TestIndexStats(t *testing.T) {
	set := Aggregate([]schema.AttendanceEntry{
		entry("Ada", "a1@x.com", 30),
		entry("Ada", "a2@x.com", 30),
		entry("Short", "s@x.com", 1),
	}, withDuration(10))
	idx := BuildAttendeeIndex(set, schema.DefaultNormalizer())

	assert.Equal(t, IndexStats{
		TotalAttendees:    3,
		EligibleAttendees: 2,
		UniqueEmails:      2,
		UniqueNames:       1,
		NameCollisions:    1,
	}, idx.Stats)
	assert.Equal(t, "a1@x.com", idx.ByName["ada"].Email)
}

func TestScoreReview(t *testing.T) {
	idx := buildIndex(
		entry("Dr. Grace Hopper", "grace@navy.mil", 45),
		entry("Someone Else", "ada@x.com", 20),
	)

	tests := []struct {
		name   string
		reg    schema.Registrant
		claims int
		want   ReviewLevel
		score  int
	}{
		{"clean email match", schema.Registrant{FirstName: "Someone", LastName: "Else", Email: "ada@x.com"}, 1, ReviewNone, 0},
		{"email match with other name", schema.Registrant{FirstName: "Ada", LastName: "Lovelace", Email: "ada@x.com"}, 1, ReviewLow, 20},
		{"shared attendee", schema.Registrant{FirstName: "Someone", LastName: "Else", Email: "ada@x.com"}, 2, ReviewMedium, 50},
		{"name match without email", schema.Registrant{FirstName: "Grace", LastName: "Hopper"}, 1, ReviewMedium, 40},
		{"name match with other email", schema.Registrant{FirstName: "Grace", LastName: "Hopper", Email: "g@x.com"}, 1, ReviewHigh, 80},
		{"unmatched", schema.Registrant{FirstName: "No", LastName: "Body"}, 0, ReviewNone, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ScoreReview(idx.Match(tt.reg), tt.claims)
			assert.Equal(t, tt.want, got.Level)
			assert.Equal(t, tt.score, got.Score)
		})
	}
}

func TestSerializeAttendeeIndex(t *testing.T) {
	custom := schema.NewNormalizer([]string{"sir"})
	set := Aggregate([]schema.AttendanceEntry{
		entry("Sir Tim Berners-Lee", "tim@w3.org", 60),
		entry("Late Comer", "late@x.com", 2),
	}, AggregateOptions{MinMinutes: 10, HasDuration: true, Normalizer: &custom})
	idx := BuildAttendeeIndex(set, custom)

	data, err := SerializeAttendeeIndex(idx)
	require.NoError(t, err)
	restored, err := DeserializeAttendeeIndex([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, idx.Stats, restored.Stats)
	assert.Equal(t, []string{"sir"}, restored.Normalizer().Honorifics())
	if diff := cmp.Diff(idx.Attendees(), restored.Attendees()); diff != "" {
		t.Errorf("attendees mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(set, restored.Set()); diff != "" {
		t.Errorf("attendee set mismatch (-want +got):\n%s", diff)
	}
	late, ok := restored.Set().Lookup("late@x.com")
	require.True(t, ok)
	assert.False(t, late.Eligible)

	got := restored.Match(schema.Registrant{FirstName: "Tim", LastName: "BernersLee"})
	assert.Equal(t, MatchedByName, got.Method)

	_, err = DeserializeAttendeeIndex([]byte("{"))
	assert.Error(t, err)
}
