package schema

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

// AliasGroup lists the case-insensitive header substrings that identify one
// canonical field. Aliases are tried in order, so put specific phrases before
// generic ones.
type AliasGroup struct {
	Field   string   `json:"field" yaml:"field"`
	Aliases []string `json:"aliases" yaml:"aliases"`
}

// AliasTable is a priority-ordered list of alias groups. A column belongs to
// the first group (in table order) with an alias contained in its header.
type AliasTable []AliasGroup

// DefaultRegistrationAliases covers the bilingual sign-up form export.
var DefaultRegistrationAliases = AliasTable{
	{Field: FieldSalutation, Aliases: []string{"salutation", "稱呼", "honorific"}},
	{Field: FieldFirstName, Aliases: []string{"first name", "名字", "given name", "forename"}},
	{Field: FieldLastName, Aliases: []string{"last name", "姓氏", "surname", "family name"}},
	{Field: FieldEmail, Aliases: []string{"contact email", "email", "e-mail", "電郵"}},
	{Field: FieldMembershipID, Aliases: []string{"membership", "會員編號", "member no", "member id"}},
	{Field: FieldFullName, Aliases: []string{"full name", "english name", "姓名"}},
}

// DefaultAttendanceAliases covers Zoom style attendee reports.
var DefaultAttendanceAliases = AliasTable{
	{Field: FieldDisplayName, Aliases: []string{"user name", "name (original name)", "display name", "participant", "姓名", "name"}},
	{Field: FieldEmail, Aliases: []string{"user email", "email", "e-mail", "電郵"}},
	{Field: FieldDurationMinutes, Aliases: []string{"time in session", "duration", "minutes"}},
	{Field: FieldRawStatus, Aliases: []string{"attended", "attendance", "status"}},
}

// DefaultRegistrationRequired are the fields a registration table must carry.
// First and last name are satisfied by a full name column.
var DefaultRegistrationRequired = []string{FieldFirstName, FieldLastName, FieldEmail}

// DefaultAttendanceRequired are the fields an attendance table must carry.
var DefaultAttendanceRequired = []string{FieldDisplayName, FieldEmail}

// FieldMapper renames arbitrarily worded columns onto canonical fields.
type FieldMapper struct {
	// Table names the input in error messages ("registration", "attendance").
	Table string
	// Aliases is the priority-ordered alias table.
	Aliases AliasTable
	// Required fields; a missing one is a hard error.
	Required []string
	// Overrides pins exact source headers to canonical fields ahead of alias inference.
	Overrides map[string]string
}

// NewRegistrationMapper returns a mapper with the default registration aliases.
func NewRegistrationMapper() FieldMapper {
	return FieldMapper{
		Table:    "registration",
		Aliases:  DefaultRegistrationAliases,
		Required: DefaultRegistrationRequired,
	}
}

// NewAttendanceMapper returns a mapper with the default attendance aliases.
func NewAttendanceMapper() FieldMapper {
	return FieldMapper{
		Table:    "attendance",
		Aliases:  DefaultAttendanceAliases,
		Required: DefaultAttendanceRequired,
	}
}

// InferMappings takes a list of headers and returns canonicalField -> header.
//  1. Apply explicit overrides
//  2. Each remaining header is claimed by the first alias group it matches
//  3. Within a group, the header matching the earliest alias wins (ties go to header order)
//  4. Headers whose group is already bound stay unmapped
func (m FieldMapper) InferMappings(headers []string) map[string]string {
	result := make(map[string]string, len(m.Aliases))
	claimed := make(map[string]bool, len(headers))

	for _, header := range headers {
		if field, ok := m.Overrides[header]; ok {
			if _, bound := result[field]; !bound {
				result[field] = header
			}
			claimed[header] = true
		}
	}

	type claim struct {
		header     string
		aliasIndex int
	}
	best := make(map[int]claim)

	for _, header := range headers {
		if claimed[header] {
			continue
		}
		normalized := normalizeHeader(header)
		for gi, group := range m.Aliases {
			ai := aliasIndex(normalized, group.Aliases)
			if ai < 0 {
				continue
			}
			if current, ok := best[gi]; !ok || ai < current.aliasIndex {
				best[gi] = claim{header: header, aliasIndex: ai}
			}
			break
		}
	}

	for gi, group := range m.Aliases {
		c, ok := best[gi]
		if !ok {
			continue
		}
		if _, bound := result[group.Field]; !bound {
			result[group.Field] = c.header
		}
	}

	return result
}

// checkRequired returns a MissingRequiredFieldError for the first required
// field that is neither bound nor derivable.
func (m FieldMapper) checkRequired(bound map[string]string, headers []string) error {
	_, hasFull := bound[FieldFullName]
	for _, field := range m.Required {
		if _, ok := bound[field]; ok {
			continue
		}
		if hasFull && (field == FieldFirstName || field == FieldLastName) {
			continue
		}
		return errors.NewMissingRequiredFieldError(m.Table, field, m.Required, headers)
	}
	return nil
}

// MapRegistrants converts a raw registration table into registrants.
// Missing salutation and membership columns become empty strings; a full
// name column without discrete name columns is split on the first run of
// whitespace.
func (m FieldMapper) MapRegistrants(table *RawTable) ([]Registrant, error) {
	bound := m.InferMappings(table.Headers)
	if err := m.checkRequired(bound, table.Headers); err != nil {
		return nil, err
	}

	_, hasFirst := bound[FieldFirstName]
	_, hasLast := bound[FieldLastName]
	_, hasFull := bound[FieldFullName]

	result := make([]Registrant, 0, len(table.Rows))
	for i, row := range table.Rows {
		get := func(field string) string {
			if header, ok := bound[field]; ok {
				return cleanCell(row[header])
			}
			return ""
		}

		r := Registrant{
			Salutation:   get(FieldSalutation),
			FirstName:    get(FieldFirstName),
			LastName:     get(FieldLastName),
			FullName:     get(FieldFullName),
			Email:        get(FieldEmail),
			MembershipID: cleanIdentifier(get(FieldMembershipID)),
			SourceRow:    i + 1,
		}

		if hasFull && !(hasFirst && hasLast) {
			first, last := SplitFullName(r.FullName)
			if !hasFirst {
				r.FirstName = first
			}
			if !hasLast {
				r.LastName = last
			}
		}
		if r.FullName == "" {
			r.FullName = strings.TrimSpace(r.FirstName + " " + r.LastName)
		}

		result = append(result, r)
	}

	return result, nil
}

// MapAttendance converts a raw attendance table into entries. hasDuration
// reports whether the table carried a duration column at all, which decides
// whether duration gating applies downstream.
func (m FieldMapper) MapAttendance(table *RawTable) (entries []AttendanceEntry, hasDuration bool, err error) {
	bound := m.InferMappings(table.Headers)
	if err := m.checkRequired(bound, table.Headers); err != nil {
		return nil, false, err
	}
	_, hasDuration = bound[FieldDurationMinutes]

	entries = make([]AttendanceEntry, 0, len(table.Rows))
	for i, row := range table.Rows {
		get := func(field string) string {
			if header, ok := bound[field]; ok {
				return cleanCell(row[header])
			}
			return ""
		}

		entries = append(entries, AttendanceEntry{
			DisplayName:     get(FieldDisplayName),
			Email:           get(FieldEmail),
			DurationMinutes: ParseMinutes(get(FieldDurationMinutes)),
			RawStatus:       get(FieldRawStatus),
			SourceRow:       i + 1,
		})
	}

	return entries, hasDuration, nil
}

// SplitFullName splits on the first whitespace run. A single token yields an
// empty last name.
func SplitFullName(full string) (first, last string) {
	full = strings.TrimSpace(full)
	idx := strings.IndexFunc(full, unicode.IsSpace)
	if idx < 0 {
		return full, ""
	}
	return full[:idx], strings.TrimSpace(full[idx:])
}

// ParseMinutes coerces a duration cell to minutes. Anything that is not a
// finite, non-negative number counts as 0.
func ParseMinutes(v string) float64 {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// aliasIndex returns the position of the first alias contained in header, or -1.
func aliasIndex(header string, aliases []string) int {
	for i, alias := range aliases {
		a := normalizeHeader(alias)
		if a != "" && strings.Contains(header, a) {
			return i
		}
	}
	return -1
}

// normalizeHeader lowercases a header, turns underscores and hyphens into
// spaces and collapses whitespace, so "First_Name" and "first  name" compare
// equal to the alias "first name".
func normalizeHeader(header string) string {
	s := strings.ToLower(strings.TrimSpace(header))
	s = headerReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

var headerReplacer = strings.NewReplacer("_", " ", "-", " ")
