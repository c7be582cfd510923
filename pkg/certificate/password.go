package certificate

import (
	"fmt"
	"strings"

	"github.com/alexsbc303/CPD-Cert/pkg/report"
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// PasswordSource names one place a certificate password may come from.
type PasswordSource string

const (
	SourceMembershipID PasswordSource = "membership_id"
	SourceEmail        PasswordSource = "email"
	SourceFallback     PasswordSource = "fallback"
)

// DefaultPasswordFallback is the literal used when no row value is usable.
const DefaultPasswordFallback = "hkie"

// DefaultPasswordSources returns membership id, then email, then the fallback.
func DefaultPasswordSources() []string {
	return []string{string(SourceMembershipID), string(SourceEmail), string(SourceFallback)}
}

// PasswordPolicy picks the password protecting each certificate. Sources are
// tried in order; the first non-empty value wins.
type PasswordPolicy struct {
	Sources  []PasswordSource `json:"sources" yaml:"sources"`
	Fallback string           `json:"fallback" yaml:"fallback"`
}

// NewPasswordPolicy validates a source list. An empty list means the default
// order. A policy that can end without a password is rejected.
func NewPasswordPolicy(sources []string, fallback string) (PasswordPolicy, error) {
	if len(sources) == 0 {
		sources = DefaultPasswordSources()
	}

	p := PasswordPolicy{Fallback: strings.TrimSpace(fallback)}
	seen := make(map[PasswordSource]bool, len(sources))
	for _, s := range sources {
		src := PasswordSource(strings.ToLower(strings.TrimSpace(s)))
		switch src {
		case SourceMembershipID, SourceEmail, SourceFallback:
		default:
			return PasswordPolicy{}, fmt.Errorf("unknown password source %q", s)
		}
		if seen[src] {
			return PasswordPolicy{}, fmt.Errorf("password source %q listed twice", s)
		}
		seen[src] = true
		p.Sources = append(p.Sources, src)
	}

	if seen[SourceFallback] && p.Fallback == "" {
		return PasswordPolicy{}, fmt.Errorf("fallback source requires a non-empty fallback password")
	}
	if !seen[SourceFallback] {
		return PasswordPolicy{}, fmt.Errorf("policy must end in the fallback source so every row gets a password")
	}
	if p.Sources[len(p.Sources)-1] != SourceFallback {
		return PasswordPolicy{}, fmt.Errorf("fallback must be the last password source")
	}

	return p, nil
}

// Password returns the password for a row and the source it came from.
func (p PasswordPolicy) Password(row report.MatchedRow) (string, PasswordSource) {
	for _, src := range p.Sources {
		var v string
		switch src {
		case SourceMembershipID:
			v = row.MembershipID
		case SourceEmail:
			v = row.Email
		case SourceFallback:
			v = p.Fallback
		}
		if src == SourceMembershipID && schema.IsPlaceholder(v) {
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			return v, src
		}
	}
	return p.Fallback, SourceFallback
}
