package engine

import (
	"encoding/json"
	"fmt"

	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// serializedIndex is the JSON-serializable representation of AttendeeIndex.
// It carries the whole attendee set, ineligible attendees included, plus the
// honorific set; the maps are rebuilt on deserialization.
type serializedIndex struct {
	Attendees   []AggregatedAttendee `json:"attendees"`
	HasDuration bool                 `json:"hasDuration"`
	MinMinutes  float64              `json:"minMinutes"`
	Gated       int                  `json:"gated"`
	Unkeyed     int                  `json:"unkeyed"`
	Honorifics  []string             `json:"honorifics"`
	Stats       IndexStats           `json:"stats"`
}

// SerializeAttendeeIndex converts an AttendeeIndex to a JSON string so the
// attendance side can be aggregated once and matched against several
// registration uploads (the browser build hands it between workers).
func SerializeAttendeeIndex(index *AttendeeIndex) (string, error) {
	si := serializedIndex{
		Attendees:   index.set.Ordered,
		HasDuration: index.set.HasDuration,
		MinMinutes:  index.set.MinMinutes,
		Gated:       index.set.Gated,
		Unkeyed:     index.set.Unkeyed,
		Honorifics:  index.normalizer.Honorifics(),
		Stats:       index.Stats,
	}
	if si.Attendees == nil {
		si.Attendees = []AggregatedAttendee{}
	}

	data, err := json.Marshal(si)
	if err != nil {
		return "", fmt.Errorf("failed to serialize attendee index: %w", err)
	}

	return string(data), nil
}

// DeserializeAttendeeIndex reconstructs an AttendeeIndex from its JSON
// representation.
//  1. Rebuild the attendee set: positions by email and the eligible subset
//     come from the ordered list and each attendee's Eligible flag
//  2. Re-index with the serialized honorifics, using the same first-seen
//     rules as BuildAttendeeIndex
func DeserializeAttendeeIndex(data []byte) (*AttendeeIndex, error) {
	var si serializedIndex
	if err := json.Unmarshal(data, &si); err != nil {
		return nil, fmt.Errorf("failed to deserialize attendee index: %w", err)
	}

	set := AttendeeSet{
		Ordered:     si.Attendees,
		ByEmail:     make(map[string]int, len(si.Attendees)),
		HasDuration: si.HasDuration,
		MinMinutes:  si.MinMinutes,
		Gated:       si.Gated,
		Unkeyed:     si.Unkeyed,
	}
	for i, a := range si.Attendees {
		if a.Identity.Email != "" {
			if _, exists := set.ByEmail[a.Identity.Email]; !exists {
				set.ByEmail[a.Identity.Email] = i
			}
		}
		if a.Eligible {
			set.Eligible = append(set.Eligible, a)
		}
	}

	return BuildAttendeeIndex(set, schema.NewNormalizer(si.Honorifics)), nil
}
