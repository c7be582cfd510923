package schema

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// DefaultHonorifics are the title tokens removed from names before comparison.
var DefaultHonorifics = []string{"ir", "mr", "ms", "miss", "dr", "prof"}

// placeholders are spreadsheet artifacts standing in for a missing
// membership number. Only identifier cells are checked against them; "Nan" is
// also a given name.
var placeholders = map[string]bool{
	"nan":  true,
	"none": true,
	"null": true,
	"n/a":  true,
	"#n/a": true,
}

// Normalizer produces canonical identity keys. The zero value is not usable;
// construct one with NewNormalizer.
type Normalizer struct {
	honorifics  map[string]bool
	honorificRe *regexp.Regexp
}

var defaultNormalizer = NewNormalizer(DefaultHonorifics)

// DefaultNormalizer returns the Normalizer for DefaultHonorifics.
func DefaultNormalizer() Normalizer { return defaultNormalizer }

// NewNormalizer builds a Normalizer that strips the given honorific tokens.
// Tokens are compared case-insensitively and may carry a trailing period in
// the input.
func NewNormalizer(honorifics []string) Normalizer {
	n := Normalizer{honorifics: make(map[string]bool, len(honorifics))}

	tokens := make([]string, 0, len(honorifics))
	for _, h := range honorifics {
		h = strings.ToLower(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(h), ".")))
		if h == "" || n.honorifics[h] {
			continue
		}
		n.honorifics[h] = true
		tokens = append(tokens, regexp.QuoteMeta(h))
	}

	if len(tokens) > 0 {
		// Longest first so alternation never stops at a shorter prefix.
		sort.Slice(tokens, func(i, j int) bool {
			if len(tokens[i]) != len(tokens[j]) {
				return len(tokens[i]) > len(tokens[j])
			}
			return tokens[i] < tokens[j]
		})
		n.honorificRe = regexp.MustCompile(`\b(?:` + strings.Join(tokens, "|") + `)\b\.?`)
	}
	return n
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeName normalizes a person's name using the default honorific set.
func NormalizeName(name string) string {
	return defaultNormalizer.Name(name)
}

// Name implements the name normalization algorithm:
//  1. ToLower, TrimSpace
//  2. Remove honorific tokens as whole words, with an optional trailing period
//  3. Drop every character that is not a-z or whitespace
//  4. Collapse whitespace and drop any honorific token left standing
//
// Accented letters are dropped in step 3, not folded, so "José" and "Jose"
// stay distinct keys. Step 4 keeps the function idempotent: step 3 can join
// characters such as "d.r" into a token that step 2 never saw.
func (n Normalizer) Name(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	if s == "" {
		return ""
	}

	if n.honorificRe != nil {
		s = n.honorificRe.ReplaceAllString(s, " ")
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, tok := range tokens {
		if !n.honorifics[tok] {
			kept = append(kept, tok)
		}
	}
	return strings.Join(kept, " ")
}

// Honorifics returns the configured honorific tokens in sorted order.
func (n Normalizer) Honorifics() []string {
	out := make([]string, 0, len(n.honorifics))
	for h := range n.honorifics {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Email normalizes an email address; see NormalizeEmail.
func (n Normalizer) Email(email string) string {
	return NormalizeEmail(email)
}

// Registrant returns the identity of a registrant. The name key is built
// from first and last name, falling back to the full name when both parts
// are empty.
func (n Normalizer) Registrant(r Registrant) Identity {
	name := r.FirstName + " " + r.LastName
	if strings.TrimSpace(r.FirstName) == "" && strings.TrimSpace(r.LastName) == "" {
		name = r.FullName
	}
	return Identity{
		Email: NormalizeEmail(r.Email),
		Name:  n.Name(name),
	}
}

// IsPlaceholder reports whether v is a spreadsheet stand-in for a missing
// value, such as "nan" or "#N/A".
func IsPlaceholder(v string) bool {
	return placeholders[strings.ToLower(strings.TrimSpace(v))]
}

// cleanCell trims a raw cell.
func cleanCell(v string) string {
	return strings.TrimSpace(v)
}

// cleanIdentifier trims an identifier cell and blanks placeholder literals.
func cleanIdentifier(v string) string {
	if IsPlaceholder(v) {
		return ""
	}
	return strings.TrimSpace(v)
}
