package engine

import (
	"sync"

	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// MatchMethod records the tier that resolved a registrant.
type MatchMethod string

const (
	MatchedByEmail MatchMethod = "email"
	MatchedByName  MatchMethod = "name"
	Unmatched      MatchMethod = "unmatched"
)

// MatchResult is the decision for one registrant.
type MatchResult struct {
	Registrant schema.Registrant   `json:"registrant"`
	Identity   schema.Identity     `json:"identity"`
	Method     MatchMethod         `json:"method"`
	Attendee   *AggregatedAttendee `json:"attendee,omitempty"`
	Conflicts  []FieldConflict     `json:"conflicts,omitempty"`
}

// Matched reports whether the registrant was resolved to an attendee.
func (r MatchResult) Matched() bool {
	return r.Method != Unmatched
}

// MatchStats contains aggregate statistics about a matching run.
type MatchStats struct {
	TotalProcessed int `json:"totalProcessed"`
	ByEmail        int `json:"byEmail"`
	ByName         int `json:"byName"`
	Unmatched      int `json:"unmatched"`
	// DuplicateMatches counts attendees claimed by more than one registrant.
	DuplicateMatches int `json:"duplicateMatches"`
}

// Match resolves one registrant against the index:
//  1. Exact normalized email -> MatchedByEmail
//  2. Exact normalized name (first + last, else full name) -> MatchedByName
//  3. Otherwise Unmatched
//
// An email hit is final; the name tier is never consulted after it.
// Attendees are not consumed, so several registrants may resolve to the same one.
func (idx *AttendeeIndex) Match(r schema.Registrant) MatchResult {
	id := idx.normalizer.Registrant(r)
	result := MatchResult{Registrant: r, Identity: id, Method: Unmatched}

	if id.Email != "" {
		if a, ok := idx.ByEmail[id.Email]; ok {
			result.Method = MatchedByEmail
			result.Attendee = a
			result.Conflicts = DetectConflicts(id, a, MatchedByEmail)
			return result
		}
	}

	if id.Name != "" {
		if a, ok := idx.ByName[id.Name]; ok {
			result.Method = MatchedByName
			result.Attendee = a
			result.Conflicts = DetectConflicts(id, a, MatchedByName)
			return result
		}
	}

	return result
}

// MatchAll resolves every registrant, preserving input order. With workers
// above 1 the registrants are spread over that many goroutines; the index is
// frozen so no locking is needed.
func (idx *AttendeeIndex) MatchAll(registrants []schema.Registrant, workers int) []MatchResult {
	results := make([]MatchResult, len(registrants))
	if workers <= 1 || len(registrants) < 2 {
		for i, r := range registrants {
			results[i] = idx.Match(r)
		}
		return results
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, workers)
	for i := range registrants {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			results[i] = idx.Match(registrants[i])
		}(i)
	}
	wg.Wait()

	return results
}

// Summarize counts match methods and attendees claimed more than once.
func Summarize(results []MatchResult) MatchStats {
	stats := MatchStats{TotalProcessed: len(results)}
	claims := Claims(results)

	for _, r := range results {
		switch r.Method {
		case MatchedByEmail:
			stats.ByEmail++
		case MatchedByName:
			stats.ByName++
		default:
			stats.Unmatched++
		}
	}
	for _, n := range claims {
		if n > 1 {
			stats.DuplicateMatches++
		}
	}

	return stats
}

// Claims counts how many registrants resolved to each attendee.
func Claims(results []MatchResult) map[schema.Identity]int {
	claims := make(map[schema.Identity]int)
	for _, r := range results {
		if r.Attendee != nil {
			claims[r.Attendee.Identity]++
		}
	}
	return claims
}
