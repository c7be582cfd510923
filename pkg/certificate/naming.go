package certificate

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/alexsbc303/CPD-Cert/pkg/report"
)

// PrintedName is the name printed on a certificate: salutation, surname in
// capitals, then the given name in title case ("Ir CHAN Tai Man").
func PrintedName(row report.MatchedRow) string {
	parts := []string{
		strings.TrimSpace(row.Salutation),
		cases.Upper(language.Und).String(strings.TrimSpace(row.LastName)),
		cases.Title(language.Und).String(strings.TrimSpace(row.FirstName)),
	}
	if parts[1] == "" && parts[2] == "" {
		parts[2] = strings.TrimSpace(row.FullName)
	}
	return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
}

// FileName turns a printed name into an archive entry name. Path separators
// become hyphens.
func FileName(name, ext string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "certificate"
	}
	name = fileNameReplacer.Replace(name)
	return name + "_CPD_Cert" + ext
}

var fileNameReplacer = strings.NewReplacer("/", "-", `\`, "-", "\x00", "")

// uniqueNames suffixes repeated names with " (2)", " (3)", ... before the
// extension so archive entries never collide.
type uniqueNames map[string]int

func (u uniqueNames) claim(name, ext string) string {
	u[name]++
	if n := u[name]; n > 1 {
		base := strings.TrimSuffix(name, ext)
		return fmt.Sprintf("%s (%d)%s", base, n, ext)
	}
	return name
}
