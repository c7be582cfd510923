// Package config defines the reconciliation settings and loads them from YAML.
package config

import (
	"fmt"
	"os"
	"unicode/utf8"

	"github.com/goccy/go-yaml"

	"github.com/alexsbc303/CPD-Cert/pkg/certificate"
	"github.com/alexsbc303/CPD-Cert/pkg/engine"
	"github.com/alexsbc303/CPD-Cert/pkg/errors"
	"github.com/alexsbc303/CPD-Cert/pkg/parser"
	"github.com/alexsbc303/CPD-Cert/pkg/schema"
)

// Config holds every tunable of a reconciliation run.
type Config struct {
	// Eligibility
	MinMinutes          float64 `yaml:"min_minutes" json:"minMinutes"`
	RequireAttendedFlag bool    `yaml:"require_attended_flag" json:"requireAttendedFlag"`

	// Header detection
	HeaderLookahead     int      `yaml:"header_lookahead" json:"headerLookahead"`
	SectionWindow       int      `yaml:"section_window" json:"sectionWindow"`
	SectionMarkers      []string `yaml:"section_markers" json:"sectionMarkers"`
	AttendanceMarkers   []string `yaml:"attendance_markers" json:"attendanceMarkers"`
	RegistrationMarkers []string `yaml:"registration_markers" json:"registrationMarkers"`
	Encoding            string   `yaml:"encoding" json:"encoding"`
	Delimiter           string   `yaml:"delimiter" json:"delimiter"`

	// Field mapping
	Honorifics                 []string          `yaml:"honorifics" json:"honorifics"`
	RequiredRegistrationFields []string          `yaml:"required_registration_fields" json:"requiredRegistrationFields"`
	RequiredAttendanceFields   []string          `yaml:"required_attendance_fields" json:"requiredAttendanceFields"`
	RegistrationAliases        schema.AliasTable `yaml:"registration_aliases" json:"registrationAliases"`
	AttendanceAliases          schema.AliasTable `yaml:"attendance_aliases" json:"attendanceAliases"`
	RegistrationOverrides      map[string]string `yaml:"registration_overrides,omitempty" json:"registrationOverrides,omitempty"`
	AttendanceOverrides        map[string]string `yaml:"attendance_overrides,omitempty" json:"attendanceOverrides,omitempty"`

	// Matching
	MatchWorkers int `yaml:"match_workers" json:"matchWorkers"`

	// Certificate generation
	PasswordPolicy   []string    `yaml:"password_policy" json:"passwordPolicy"`
	PasswordFallback string      `yaml:"password_fallback" json:"passwordFallback"`
	ScryptWorkFactor int         `yaml:"scrypt_work_factor" json:"scryptWorkFactor"`
	Event            EventConfig `yaml:"event" json:"event"`
}

// EventConfig supplies the free-text event variables, or the page to scrape
// them from.
type EventConfig struct {
	Title   string `yaml:"title" json:"title"`
	Details string `yaml:"details" json:"details"`
	URL     string `yaml:"url" json:"url"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		MinMinutes:                 engine.DefaultMinMinutes,
		RequireAttendedFlag:        true,
		HeaderLookahead:            parser.DefaultLookahead,
		SectionWindow:              parser.DefaultSectionWindow,
		SectionMarkers:             clone(parser.DefaultSectionMarkers),
		AttendanceMarkers:          []string{"User Name", "Email"},
		Delimiter:                  ",",
		Honorifics:                 clone(schema.DefaultHonorifics),
		RequiredRegistrationFields: clone(schema.DefaultRegistrationRequired),
		RequiredAttendanceFields:   clone(schema.DefaultAttendanceRequired),
		RegistrationAliases:        cloneAliases(schema.DefaultRegistrationAliases),
		AttendanceAliases:          cloneAliases(schema.DefaultAttendanceAliases),
		MatchWorkers:               1,
		PasswordPolicy:             certificate.DefaultPasswordSources(),
		PasswordFallback:           certificate.DefaultPasswordFallback,
		ScryptWorkFactor:           certificate.DefaultScryptWorkFactor,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewConfigError("", "failed to read "+path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result. Keys that
// are absent keep their default value.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.NewConfigError("", "invalid YAML", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.MinMinutes < 0 {
		return errors.NewConfigError("min_minutes", "must not be negative", nil)
	}
	if c.HeaderLookahead <= 0 {
		return errors.NewConfigError("header_lookahead", "must be positive", nil)
	}
	if c.SectionWindow <= 0 {
		return errors.NewConfigError("section_window", "must be positive", nil)
	}
	if c.MatchWorkers < 0 {
		return errors.NewConfigError("match_workers", "must not be negative", nil)
	}
	if c.Delimiter != "" && utf8.RuneCountInString(c.Delimiter) != 1 {
		return errors.NewConfigError("delimiter", fmt.Sprintf("must be a single character, got %q", c.Delimiter), nil)
	}
	if err := checkFields("required_registration_fields", c.RequiredRegistrationFields); err != nil {
		return err
	}
	if err := checkFields("required_attendance_fields", c.RequiredAttendanceFields); err != nil {
		return err
	}
	for _, g := range c.RegistrationAliases {
		if err := checkFields("registration_aliases", []string{g.Field}); err != nil {
			return err
		}
	}
	for _, g := range c.AttendanceAliases {
		if err := checkFields("attendance_aliases", []string{g.Field}); err != nil {
			return err
		}
	}
	for header, field := range c.RegistrationOverrides {
		if err := checkFields("registration_overrides."+header, []string{field}); err != nil {
			return err
		}
	}
	for header, field := range c.AttendanceOverrides {
		if err := checkFields("attendance_overrides."+header, []string{field}); err != nil {
			return err
		}
	}
	if _, err := c.Passwords(); err != nil {
		return errors.NewConfigError("password_policy", "invalid policy", err)
	}
	return nil
}

// Normalizer returns the identity normalizer for the configured honorifics.
func (c *Config) Normalizer() schema.Normalizer {
	return schema.NewNormalizer(c.Honorifics)
}

// RegistrationMapper returns the field mapper for registration tables.
func (c *Config) RegistrationMapper() schema.FieldMapper {
	m := schema.NewRegistrationMapper()
	m.Aliases = c.RegistrationAliases
	m.Required = c.RequiredRegistrationFields
	m.Overrides = c.RegistrationOverrides
	return m
}

// AttendanceMapper returns the field mapper for attendance tables.
func (c *Config) AttendanceMapper() schema.FieldMapper {
	m := schema.NewAttendanceMapper()
	m.Aliases = c.AttendanceAliases
	m.Required = c.RequiredAttendanceFields
	m.Overrides = c.AttendanceOverrides
	return m
}

// RegistrationTable returns the parse options for registration exports.
func (c *Config) RegistrationTable() parser.TableOptions {
	return c.tableOptions(c.RegistrationMarkers)
}

// AttendanceTable returns the parse options for attendance exports.
func (c *Config) AttendanceTable() parser.TableOptions {
	return c.tableOptions(c.AttendanceMarkers)
}

func (c *Config) tableOptions(markers []string) parser.TableOptions {
	opts := parser.TableOptions{
		Detect: parser.DetectOptions{
			Markers:        markers,
			SectionMarkers: c.SectionMarkers,
			Lookahead:      c.HeaderLookahead,
			SectionWindow:  c.SectionWindow,
		},
		Encoding: c.Encoding,
	}
	if r, _ := utf8.DecodeRuneInString(c.Delimiter); r != utf8.RuneError {
		opts.Delimiter = r
	}
	return opts
}

// Passwords returns the configured password policy.
func (c *Config) Passwords() (certificate.PasswordPolicy, error) {
	return certificate.NewPasswordPolicy(c.PasswordPolicy, c.PasswordFallback)
}

var knownFields = map[string]bool{
	schema.FieldSalutation:      true,
	schema.FieldFirstName:       true,
	schema.FieldLastName:        true,
	schema.FieldFullName:        true,
	schema.FieldEmail:           true,
	schema.FieldMembershipID:    true,
	schema.FieldDisplayName:     true,
	schema.FieldDurationMinutes: true,
	schema.FieldRawStatus:       true,
}

func checkFields(key string, fields []string) error {
	for _, f := range fields {
		if !knownFields[f] {
			return errors.NewConfigError(key, fmt.Sprintf("unknown field %q", f), nil)
		}
	}
	return nil
}

func clone(s []string) []string {
	return append([]string(nil), s...)
}

func cloneAliases(t schema.AliasTable) schema.AliasTable {
	out := make(schema.AliasTable, len(t))
	for i, g := range t {
		out[i] = schema.AliasGroup{Field: g.Field, Aliases: clone(g.Aliases)}
	}
	return out
}
