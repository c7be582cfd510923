package schema

// Canonical field names shared by the alias tables and the mapped records.
const (
	FieldSalutation   = "salutation"
	FieldFirstName    = "first_name"
	FieldLastName     = "last_name"
	FieldFullName     = "full_name"
	FieldEmail        = "email"
	FieldMembershipID = "membership_id"

	FieldDisplayName     = "display_name"
	FieldDurationMinutes = "duration_minutes"
	FieldRawStatus       = "raw_status"
)

// ParseWarning represents a non-fatal issue encountered while reading a table.
type ParseWarning struct {
	Row     int    `json:"row" yaml:"row"`
	Message string `json:"message" yaml:"message"`
}

// RawTable is an uploaded export after header detection: ordered headers and
// one header→cell mapping per data row, with no type coercion.
type RawTable struct {
	Headers   []string            `json:"headers"`
	Rows      []map[string]string `json:"rows"`
	HeaderRow int                 `json:"headerRow"`
	Encoding  string              `json:"encoding,omitempty"`
	Warnings  []ParseWarning      `json:"warnings,omitempty"`
}

// Registrant is one row of the canonical sign-up list.
type Registrant struct {
	Salutation   string `json:"salutation" yaml:"salutation"`
	FirstName    string `json:"firstName" yaml:"first_name"`
	LastName     string `json:"lastName" yaml:"last_name"`
	FullName     string `json:"fullName" yaml:"full_name"`
	Email        string `json:"email" yaml:"email"`
	MembershipID string `json:"membershipId" yaml:"membership_id"`
	SourceRow    int    `json:"sourceRow" yaml:"source_row"`
}

// AttendanceEntry is one raw attendance row. A person who rejoined a session
// appears as several entries.
type AttendanceEntry struct {
	DisplayName     string  `json:"displayName"`
	Email           string  `json:"email"`
	DurationMinutes float64 `json:"durationMinutes"`
	RawStatus       string  `json:"rawStatus"`
	SourceRow       int     `json:"sourceRow"`
}

// Identity is the normalized (email, name) pair used for equality checks.
type Identity struct {
	Email string `json:"email" yaml:"email"`
	Name  string `json:"name" yaml:"name"`
}
