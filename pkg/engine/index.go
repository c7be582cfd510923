package engine

import (
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// AttendeeIndex provides lookup of eligible attendees by normalized email and
// normalized name. It is read-only once built, so Match may be called from
// several goroutines.
type AttendeeIndex struct {
	ByEmail map[string]*AggregatedAttendee `json:"byEmail"`
	ByName  map[string]*AggregatedAttendee `json:"byName"`
	Stats   IndexStats                     `json:"stats"`

	set        AttendeeSet
	attendees  []AggregatedAttendee
	normalizer schema.Normalizer
}

// IndexStats contains aggregate statistics about the attendee index.
type IndexStats struct {
	TotalAttendees    int `json:"totalAttendees"`
	EligibleAttendees int `json:"eligibleAttendees"`
	UniqueEmails      int `json:"uniqueEmails"`
	UniqueNames       int `json:"uniqueNames"`
	// NameCollisions counts eligible attendees whose normalized name was
	// already taken by an earlier attendee.
	NameCollisions int `json:"nameCollisions"`
}

// BuildAttendeeIndex indexes the eligible attendees of set. Ineligible
// attendees are never indexed, so they cannot satisfy a match. For both maps
// the first attendee seen wins.
func BuildAttendeeIndex(set AttendeeSet, n schema.Normalizer) *AttendeeIndex {
	index := &AttendeeIndex{
		ByEmail:    make(map[string]*AggregatedAttendee, len(set.Eligible)),
		ByName:     make(map[string]*AggregatedAttendee, len(set.Eligible)),
		set:        set,
		attendees:  append([]AggregatedAttendee(nil), set.Eligible...),
		normalizer: n,
	}

	for i := range index.attendees {
		a := &index.attendees[i]

		if a.Identity.Email != "" {
			if _, exists := index.ByEmail[a.Identity.Email]; !exists {
				index.ByEmail[a.Identity.Email] = a
			}
		}

		if a.Identity.Name != "" {
			if _, exists := index.ByName[a.Identity.Name]; exists {
				index.Stats.NameCollisions++
			} else {
				index.ByName[a.Identity.Name] = a
			}
		}
	}

	index.Stats.TotalAttendees = len(set.Ordered)
	index.Stats.EligibleAttendees = len(index.attendees)
	index.Stats.UniqueEmails = len(index.ByEmail)
	index.Stats.UniqueNames = len(index.ByName)

	return index
}

// Attendees returns the indexed attendees in first-seen order.
func (idx *AttendeeIndex) Attendees() []AggregatedAttendee {
	return idx.attendees
}

// Set returns the attendee set the index was built from, including the
// attendees that fell under the threshold.
func (idx *AttendeeIndex) Set() AttendeeSet {
	return idx.set
}

// Normalizer returns the normalizer the index keys were built with.
func (idx *AttendeeIndex) Normalizer() schema.Normalizer {
	return idx.normalizer
}
