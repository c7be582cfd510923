package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/traditionalchinese"
	"golang.org/x/text/encoding/unicode"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

var zoomMarkers = DetectOptions{
	Markers:        []string{"User Name", "Email"},
	SectionMarkers: DefaultSectionMarkers,
}

const zoomReport = `Attendee Report,
Report Generated:,"05/01/2024 10:00 AM"
Topic,Webinar ID,Actual Start Time
CPD Talk,123 4567 890,05/01/2024 09:00
Host Details,
Attended,User Name (Original Name),Email,Time in Session (minutes)
Yes,Host Person,host@x.com,60

Attendee Details,
Attended,User Name (Original Name),Email,Time in Session (minutes)
Yes,Ada Lovelace,ada@x.com,15
Yes,Dr. Grace Hopper,grace@navy.mil,12
`

func TestDetectHeaderPrefersSection(t *testing.T) {
	lines := strings.Split(zoomReport, "\n")

	idx, err := DetectHeader(lines, ',', zoomMarkers)
	require.NoError(t, err)
	// The host table at line 5 also carries the markers; the attendee section wins.
	assert.Equal(t, 9, idx)
}

func TestDetectHeaderPlainScan(t *testing.T) {
	lines := []string{
		"Report Generated:,2024-05-01",
		"",
		"User Name,Email Address,Duration",
		"Ada,ada@x.com,15",
	}

	idx, err := DetectHeader(lines, ',', zoomMarkers)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
}

func TestDetectHeaderMarkersMaySpanCells(t *testing.T) {
	rows := [][]string{{"Name", "Login"}, {"User Name", "Email"}}

	idx, err := DetectHeaderRows(rows, DetectOptions{Markers: []string{"Name", "Email"}})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestDetectHeaderFailure(t *testing.T) {
	lines := []string{"a,b", "c,d"}

	_, err := DetectHeader(lines, ',', zoomMarkers)
	require.Error(t, err)
	assert.True(t, errors.IsSchemaDetection(err))

	var sde *errors.SchemaDetectionError
	require.True(t, errors.As(err, &sde))
	assert.Equal(t, 2, sde.Scanned)
	assert.Equal(t, []string{"User Name", "Email"}, sde.Tokens)
}

func TestDetectHeaderRespectsLookahead(t *testing.T) {
	lines := []string{"x", "x", "x", "User Name,Email"}

	_, err := DetectHeader(lines, ',', DetectOptions{Markers: []string{"User Name", "Email"}, Lookahead: 3})
	assert.True(t, errors.IsSchemaDetection(err))

	idx, err := DetectHeader(lines, ',', DetectOptions{Markers: []string{"User Name", "Email"}, Lookahead: 4})
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
}

func TestDetectHeaderSectionWindow(t *testing.T) {
	lines := []string{"Attendee Details", "1", "2", "3", "4", "5", "User Name,Email"}

	_, err := DetectHeader(lines, ',', zoomMarkers)
	require.Error(t, err)
	var sde *errors.SchemaDetectionError
	require.True(t, errors.As(err, &sde))
	assert.Equal(t, 5, sde.Scanned)

	opts := zoomMarkers
	opts.SectionWindow = 6
	idx, err := DetectHeader(lines, ',', opts)
	require.NoError(t, err)
	assert.Equal(t, 6, idx)
}

func TestDetectHeaderEmptyInput(t *testing.T) {
	idx, err := DetectHeader(nil, ',', zoomMarkers)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	// Without markers there is nothing to scan for.
	idx, err = DetectHeader([]string{"a,b"}, ',', DetectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
}

func TestParseTableTrailingDelimiter(t *testing.T) {
	data := "User Name,Email,Time in Session (minutes),\n" +
		"Ada Lovelace,ada@x.com,15,\n" +
		"Grace Hopper,grace@navy.mil,12,\n"

	table, err := ParseTable([]byte(data), TableOptions{Detect: zoomMarkers})
	require.NoError(t, err)

	assert.Equal(t, []string{"User Name", "Email", "Time in Session (minutes)"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "15", table.Rows[0]["Time in Session (minutes)"])
	assert.Equal(t, "grace@navy.mil", table.Rows[1]["Email"])
	assert.Empty(t, table.Warnings)
	for _, row := range table.Rows {
		assert.Len(t, row, 3)
	}
}

func TestParseTableZoomReport(t *testing.T) {
	table, err := ParseTable([]byte(zoomReport), TableOptions{Detect: zoomMarkers})
	require.NoError(t, err)

	assert.Equal(t, 9, table.HeaderRow)
	assert.Equal(t, "utf-8", table.Encoding)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "Ada Lovelace", table.Rows[0]["User Name (Original Name)"])
	assert.Equal(t, "Dr. Grace Hopper", table.Rows[1]["User Name (Original Name)"])
}

func TestParseTableGhostColumns(t *testing.T) {
	data := "Name,,Email,,Notes\n" +
		"Ada,,ada@x.com,x,\n" +
		",,,,\n" +
		"Bob,,bob@x.com,,\n"

	table, err := ParseTable([]byte(data), TableOptions{})
	require.NoError(t, err)

	// Column 2 has neither header nor data; column 4 has data but no header;
	// "Notes" is kept because it is labelled.
	assert.Equal(t, []string{"Name", "Email", "Column 4", "Notes"}, table.Headers)
	require.Len(t, table.Rows, 2, "blank rows are skipped")
	assert.Equal(t, "x", table.Rows[0]["Column 4"])
}

func TestParseTableRaggedRows(t *testing.T) {
	data := "Name,Email,Minutes\nAda,ada@x.com\nBob,bob@x.com,3,extra,more\n"

	table, err := ParseTable([]byte(data), TableOptions{})
	require.NoError(t, err)

	require.Len(t, table.Rows, 2)
	assert.Equal(t, "", table.Rows[0]["Minutes"])
	assert.Equal(t, "3", table.Rows[1]["Minutes"])
	require.Len(t, table.Warnings, 2)
	assert.Equal(t, 2, table.Warnings[0].Row)
	assert.Contains(t, table.Warnings[0].Message, "padding")
	assert.Equal(t, 3, table.Warnings[1].Row)
	assert.Contains(t, table.Warnings[1].Message, "truncating")
}

func TestParseTableQuotedNewlineKeepsDelimiter(t *testing.T) {
	data := "Name,Comment\nAda,\"first line,\nsecond line\"\n"

	table, err := ParseTable([]byte(data), TableOptions{})
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, "first line,\nsecond line", table.Rows[0]["Comment"])
}

func TestParseTableStrayQuoteKeepsStripping(t *testing.T) {
	data := "User Name,Email,Time in Session (minutes),\n" +
		"Ada 5\" Lovelace,ada@x.com,15,\n" +
		"Grace Hopper,grace@navy.mil,12,\n" +
		"\"Hopper, Grace\",g2@navy.mil,3,\n"

	table, err := ParseTable([]byte(data), TableOptions{Detect: zoomMarkers})
	require.NoError(t, err)

	assert.Equal(t, []string{"User Name", "Email", "Time in Session (minutes)"}, table.Headers)
	assert.Empty(t, table.Warnings)
	require.Len(t, table.Rows, 3)
	assert.Equal(t, `Ada 5" Lovelace`, table.Rows[0]["User Name"])
	assert.Equal(t, "12", table.Rows[1]["Time in Session (minutes)"])
	assert.Equal(t, "Hopper, Grace", table.Rows[2]["User Name"])
}

func TestParseTableEscapedQuotes(t *testing.T) {
	data := "Name,Comment,\nAda,\"said \"\"hi\"\", then left\",\n"

	table, err := ParseTable([]byte(data), TableOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Name", "Comment"}, table.Headers)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, `said "hi", then left`, table.Rows[0]["Comment"])
	assert.Empty(t, table.Warnings)
}

func TestParseTableDuplicateHeaders(t *testing.T) {
	table, err := ParseTable([]byte("Email,Email\na@x.com,b@x.com\n"), TableOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Email", "Email (2)"}, table.Headers)
	assert.Equal(t, "b@x.com", table.Rows[0]["Email (2)"])
}

func TestParseTableEmpty(t *testing.T) {
	table, err := ParseTable(nil, TableOptions{Detect: zoomMarkers})
	require.NoError(t, err)
	assert.Empty(t, table.Headers)
	assert.Empty(t, table.Rows)
}

func TestParseTableHeaderOnly(t *testing.T) {
	table, err := ParseTable([]byte("User Name,Email\n"), TableOptions{Detect: zoomMarkers})
	require.NoError(t, err)
	assert.Equal(t, []string{"User Name", "Email"}, table.Headers)
	assert.Empty(t, table.Rows)
}

func TestParseTableDetectionError(t *testing.T) {
	_, err := ParseTable([]byte("a,b\n1,2\n"), TableOptions{Detect: zoomMarkers})
	assert.True(t, errors.IsSchemaDetection(err))
}

func TestParseTableSemicolon(t *testing.T) {
	data := "User Name;Email;\nAda;ada@x.com;\n"

	table, err := ParseTable([]byte(data), TableOptions{Detect: zoomMarkers, Delimiter: ';'})
	require.NoError(t, err)
	assert.Equal(t, []string{"User Name", "Email"}, table.Headers)
}

func TestParseRows(t *testing.T) {
	rows := [][]string{
		{"Exported from form", ""},
		{"First Name", "Email", ""},
		{"Ada", "ada@x.com", ""},
		{"Bob"},
	}

	table, err := ParseRows(rows, DetectOptions{Markers: []string{"Email"}})
	require.NoError(t, err)
	assert.Equal(t, 1, table.HeaderRow)
	assert.Equal(t, []string{"First Name", "Email"}, table.Headers)
	require.Len(t, table.Rows, 2)
	require.Len(t, table.Warnings, 1)
	assert.Equal(t, 4, table.Warnings[0].Row)
}

func TestDetectAndDecode(t *testing.T) {
	t.Run("utf-8 bom", func(t *testing.T) {
		out, enc, err := DetectAndDecode([]byte("\xEF\xBB\xBFName"))
		require.NoError(t, err)
		assert.Equal(t, "utf-8-bom", enc)
		assert.Equal(t, "Name", string(out))
	})

	t.Run("utf-16le bom", func(t *testing.T) {
		encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("José,陳"))
		require.NoError(t, err)

		out, enc, err := DetectAndDecode(encoded)
		require.NoError(t, err)
		assert.Equal(t, "utf-16le", enc)
		assert.Equal(t, "José,陳", string(out))
	})

	t.Run("utf-16be bom", func(t *testing.T) {
		encoded, err := unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("Name"))
		require.NoError(t, err)

		out, enc, err := DetectAndDecode(encoded)
		require.NoError(t, err)
		assert.Equal(t, "utf-16be", enc)
		assert.Equal(t, "Name", string(out))
	})

	t.Run("windows-1252 fallback", func(t *testing.T) {
		encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte("Müller"))
		require.NoError(t, err)

		out, enc, err := DetectAndDecode(encoded)
		require.NoError(t, err)
		assert.Equal(t, "windows-1252", enc)
		assert.Equal(t, "Müller", string(out))
	})
}

func TestDecodeAsBig5(t *testing.T) {
	encoded, err := traditionalchinese.Big5.NewEncoder().Bytes([]byte("姓名,電郵\n陳大文,chan@x.com\n"))
	require.NoError(t, err)

	table, err := ParseTable(encoded, TableOptions{Encoding: "big5", Detect: DetectOptions{Markers: []string{"電郵"}}})
	require.NoError(t, err)
	assert.Equal(t, "big5", table.Encoding)
	assert.Equal(t, "陳大文", table.Rows[0]["姓名"])

	_, _, err = DecodeAs(encoded, "no-such-charset")
	assert.Error(t, err)
}
