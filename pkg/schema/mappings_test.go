package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

func TestInferMappingsBilingualRegistration(t *testing.T) {
	headers := []string{
		"Timestamp",
		"Salutation 稱呼",
		"First Name 名字",
		"Last Name 姓氏",
		"Email Address 電郵地址",
		"Membership No. 會員編號 (If Any, 如有)",
	}

	got := NewRegistrationMapper().InferMappings(headers)
	want := map[string]string{
		FieldSalutation:   "Salutation 稱呼",
		FieldFirstName:    "First Name 名字",
		FieldLastName:     "Last Name 姓氏",
		FieldEmail:        "Email Address 電郵地址",
		FieldMembershipID: "Membership No. 會員編號 (If Any, 如有)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("InferMappings() mismatch (-want +got):\n%s", diff)
	}
}

func TestInferMappingsPrefersEarlierAlias(t *testing.T) {
	// "Source Name" and "Approval Status" also hit generic aliases, but the
	// specific "user name" and "attended" aliases rank ahead of them.
	headers := []string{"Source Name", "Approval Status", "User Name (Original Name)", "Attended", "Email"}

	got := NewAttendanceMapper().InferMappings(headers)
	assert.Equal(t, "User Name (Original Name)", got[FieldDisplayName])
	assert.Equal(t, "Attended", got[FieldRawStatus])
	assert.Equal(t, "Email", got[FieldEmail])
	_, ok := got[FieldDurationMinutes]
	assert.False(t, ok)
}

func TestInferMappingsContactEmailBeatsEmail(t *testing.T) {
	m := FieldMapper{
		Aliases: AliasTable{{Field: FieldEmail, Aliases: []string{"contact email", "email"}}},
	}
	got := m.InferMappings([]string{"Login Email", "CONTACT_EMAIL"})
	assert.Equal(t, "CONTACT_EMAIL", got[FieldEmail])
}

func TestInferMappingsFirstGroupWins(t *testing.T) {
	m := FieldMapper{
		Aliases: AliasTable{
			{Field: FieldEmail, Aliases: []string{"email"}},
			{Field: FieldMembershipID, Aliases: []string{"member"}},
		},
	}
	got := m.InferMappings([]string{"Member Email", "Email"})
	// "Member Email" belongs to the email group; it is not reconsidered as membership.
	assert.Equal(t, "Member Email", got[FieldEmail])
	_, ok := got[FieldMembershipID]
	assert.False(t, ok)
}

func TestInferMappingsOverrides(t *testing.T) {
	m := NewAttendanceMapper()
	m.Overrides = map[string]string{"Participant Mail": FieldEmail}

	got := m.InferMappings([]string{"User Name", "Participant Mail", "Email"})
	assert.Equal(t, "Participant Mail", got[FieldEmail])
}

func TestMapRegistrants(t *testing.T) {
	table := &RawTable{
		Headers: []string{"First Name", "Last Name", "Email", "Membership No."},
		Rows: []map[string]string{
			{"First Name": " Ada ", "Last Name": "Lovelace", "Email": "Ada.L@Example.com", "Membership No.": "M-1"},
			{"First Name": "Nan", "Last Name": "Li", "Email": " ", "Membership No.": "NaN"},
		},
	}

	got, err := NewRegistrationMapper().MapRegistrants(table)
	require.NoError(t, err)

	want := []Registrant{
		{FirstName: "Ada", LastName: "Lovelace", FullName: "Ada Lovelace", Email: "Ada.L@Example.com", MembershipID: "M-1", SourceRow: 1},
		{FirstName: "Nan", LastName: "Li", FullName: "Nan Li", Email: "", SourceRow: 2},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("MapRegistrants() mismatch (-want +got):\n%s", diff)
	}
}

func TestMapRegistrantsSplitsFullName(t *testing.T) {
	table := &RawTable{
		Headers: []string{"Full Name", "E-mail", "Membership ID"},
		Rows: []map[string]string{
			{"Full Name": "Alan   Mathison Turing", "E-mail": "alan@bletchley.uk", "Membership ID": "M-1"},
			{"Full Name": "Plato", "E-mail": "plato@academy.gr", "Membership ID": "NaN"},
		},
	}

	got, err := NewRegistrationMapper().MapRegistrants(table)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "Alan", got[0].FirstName)
	assert.Equal(t, "Mathison Turing", got[0].LastName)
	assert.Equal(t, "Alan   Mathison Turing", got[0].FullName)
	assert.Equal(t, "M-1", got[0].MembershipID)

	assert.Equal(t, "Plato", got[1].FirstName)
	assert.Equal(t, "", got[1].LastName)
	assert.Equal(t, "", got[1].MembershipID)
	assert.Equal(t, "", got[1].Salutation)
}

func TestMapRegistrantsMissingEmail(t *testing.T) {
	table := &RawTable{Headers: []string{"First Name", "Last Name", "Phone"}}

	_, err := NewRegistrationMapper().MapRegistrants(table)
	require.Error(t, err)
	assert.True(t, errors.IsMissingRequiredField(err))

	var missing *errors.MissingRequiredFieldError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, FieldEmail, missing.Field)
	assert.Equal(t, []string{"First Name", "Last Name", "Phone"}, missing.Detected)
	assert.Equal(t, "registration", missing.Table)
}

func TestMapAttendance(t *testing.T) {
	table := &RawTable{
		Headers: []string{"User Name", "Email", "Time in Session (minutes)"},
		Rows: []map[string]string{
			{"User Name": "J Smith", "Email": "a@x.com", "Time in Session (minutes)": "5"},
			{"User Name": "John Smith", "Email": "a@x.com", "Time in Session (minutes)": "n/a"},
			{"User Name": "Bob", "Email": "b@x.com", "Time in Session (minutes)": "12.5"},
		},
	}

	got, hasDuration, err := NewAttendanceMapper().MapAttendance(table)
	require.NoError(t, err)
	assert.True(t, hasDuration)
	require.Len(t, got, 3)
	assert.Equal(t, 5.0, got[0].DurationMinutes)
	assert.Equal(t, 0.0, got[1].DurationMinutes)
	assert.Equal(t, 12.5, got[2].DurationMinutes)
	assert.Equal(t, 3, got[2].SourceRow)
}

func TestMapAttendanceWithoutDuration(t *testing.T) {
	table := &RawTable{
		Headers: []string{"Name", "Email"},
		Rows:    []map[string]string{{"Name": "Bob", "Email": "b@x.com"}},
	}
	_, hasDuration, err := NewAttendanceMapper().MapAttendance(table)
	require.NoError(t, err)
	assert.False(t, hasDuration)
}

func TestParseMinutes(t *testing.T) {
	tests := map[string]float64{
		"10":    10,
		" 9.99": 9.99,
		"":      0,
		"abc":   0,
		"NaN":   0,
		"-3":    0,
		"+Inf":  0,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseMinutes(in), "input %q", in)
	}
}

func TestSplitFullName(t *testing.T) {
	first, last := SplitFullName("  Mary \t Ann Evans ")
	assert.Equal(t, "Mary", first)
	assert.Equal(t, "Ann Evans", last)

	first, last = SplitFullName("Cher")
	assert.Equal(t, "Cher", first)
	assert.Equal(t, "", last)
}
