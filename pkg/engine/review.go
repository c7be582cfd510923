package engine

import (
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// ReviewLevel represents how much manual attention a decision deserves.
type ReviewLevel string

const (
	ReviewHigh   ReviewLevel = "HIGH"
	ReviewMedium ReviewLevel = "MEDIUM"
	ReviewLow    ReviewLevel = "LOW"
	ReviewNone   ReviewLevel = "NONE"
)

// Review is the audit verdict for one match decision.
type Review struct {
	Level   ReviewLevel `json:"level"`
	Score   int         `json:"score"`
	Reasons []string    `json:"reasons,omitempty"`
}

// ScoreReview flags match decisions an operator should check before
// certificates go out. claims is the number of registrants resolved to the
// same attendee (see Claims).
//   - name match whose attendee has a different email = HIGH (80)
//   - attendee claimed by several registrants = MEDIUM (50)
//   - name match = MEDIUM (40)
//   - email match with a differing name = LOW (20)
//   - unmatched or clean email match = NONE (0)
//
// The highest applicable level wins; every applicable reason is listed.
func ScoreReview(r MatchResult, claims int) Review {
	review := Review{Level: ReviewNone}
	if r.Attendee == nil {
		return review
	}

	raise := func(level ReviewLevel, score int, reason string) {
		review.Reasons = append(review.Reasons, reason)
		if score > review.Score {
			review.Level = level
			review.Score = score
		}
	}

	if r.Method == MatchedByName {
		raise(ReviewMedium, 40, "matched by name only")
	}
	if claims > 1 {
		raise(ReviewMedium, 50, "attendee matched by several registrants")
	}
	for _, c := range r.Conflicts {
		switch c.Field {
		case schema.FieldEmail:
			raise(ReviewHigh, 80, "attendee joined with a different email")
		default:
			raise(ReviewLow, 20, "attendee joined under a different name")
		}
	}

	return review
}
