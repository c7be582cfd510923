package engine

import (
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// FieldConflict represents a disagreement between the registration and the
// attendance record a registrant was matched to. Conflicts are informational;
// the registration value is always the one used downstream.
type FieldConflict struct {
	Field           string `json:"field"`
	RegistrantValue string `json:"registrantValue"`
	AttendeeValue   string `json:"attendeeValue"`
	Resolution      string `json:"resolution"` // always "registration_wins"
}

const resolutionRegistrationWins = "registration_wins"

// DetectConflicts compares the normalized keys that did not decide the match.
// An email match checks names; a name match checks emails. Blank values on
// either side are not conflicts.
func DetectConflicts(reg schema.Identity, a *AggregatedAttendee, method MatchMethod) []FieldConflict {
	var conflicts []FieldConflict

	switch method {
	case MatchedByEmail:
		if reg.Name != "" && a.Identity.Name != "" && reg.Name != a.Identity.Name {
			conflicts = append(conflicts, FieldConflict{
				Field:           schema.FieldFullName,
				RegistrantValue: reg.Name,
				AttendeeValue:   a.Identity.Name,
				Resolution:      resolutionRegistrationWins,
			})
		}
	case MatchedByName:
		if reg.Email != "" && a.Identity.Email != "" && reg.Email != a.Identity.Email {
			conflicts = append(conflicts, FieldConflict{
				Field:           schema.FieldEmail,
				RegistrantValue: reg.Email,
				AttendeeValue:   a.Identity.Email,
				Resolution:      resolutionRegistrationWins,
			})
		}
	}

	return conflicts
}
