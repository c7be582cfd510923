package app

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/alexsbc303/CPD-Cert/pkg/config"
	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

// EnvPrefix prefixes every environment variable the CLI reads, except the
// shared LOG_* variables.
const EnvPrefix = "CPDCERT"

// Config holds the CLI settings: global flags plus where to find the
// reconciliation settings.
type Config struct {
	// Global flags
	Verbose bool
	Quiet   bool
	NoColor bool
	Format  string

	// ConfigFile is the reconciliation settings file; empty means none was
	// given or found.
	ConfigFile string

	// Logging configuration
	LogLevel  string
	LogFormat string
	LogOutput string

	v *viper.Viper
}

// LoadConfig loads configuration from all sources in order of precedence:
//  1. Command-line flags (applied later by UpdateFromFlags)
//  2. CPDCERT_* environment variables
//  3. .env and .env.local
//  4. Config file (--config, CPDCERT_CONFIG, ./cpdcert.yaml, ~/.cpdcert.yaml)
//  5. Defaults
func LoadConfig() (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	cfg := &Config{
		Verbose:    v.GetBool("verbose"),
		Quiet:      v.GetBool("quiet"),
		NoColor:    v.GetBool("no_color") || os.Getenv("NO_COLOR") != "",
		Format:     v.GetString("format"),
		ConfigFile: v.GetString("config"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		LogFormat:  getEnvOrDefault("LOG_FORMAT", "auto"),
		LogOutput:  getEnvOrDefault("LOG_OUTPUT", "stderr"),
		v:          v,
	}

	if cfg.ConfigFile == "" {
		cfg.ConfigFile = findConfigFile()
	}
	return cfg, nil
}

// UpdateFromFlags applies parsed global flags over the loaded values.
func (c *Config) UpdateFromFlags(verbose, quiet, noColor bool, format, logLevel, configFile string) {
	c.Verbose = c.Verbose || verbose
	c.Quiet = c.Quiet || quiet
	c.NoColor = c.NoColor || noColor
	if format != "" {
		c.Format = format
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	if configFile != "" {
		c.ConfigFile = configFile
	}
}

// Settings returns the reconciliation settings: defaults, overlaid by the
// config file, overlaid by CPDCERT_* environment variables.
func (c *Config) Settings() (*config.Config, error) {
	settings := config.Default()
	if c.ConfigFile != "" {
		loaded, err := config.Load(c.ConfigFile)
		if err != nil {
			return nil, err
		}
		settings = loaded
	}

	if err := c.applyEnv(settings); err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// applyEnv copies the scalar settings that have an environment override.
func (c *Config) applyEnv(s *config.Config) error {
	v := c.v
	if v == nil {
		return nil
	}

	var err error
	set := func(key string, apply func()) {
		if err == nil && v.IsSet(key) {
			apply()
		}
	}
	number := func(key string, dst *float64) {
		set(key, func() {
			f, parseErr := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
			if parseErr != nil {
				err = errors.NewConfigError(envName(key), "not a number", parseErr)
				return
			}
			*dst = f
		})
	}
	integer := func(key string, dst *int) {
		set(key, func() {
			n, parseErr := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
			if parseErr != nil {
				err = errors.NewConfigError(envName(key), "not an integer", parseErr)
				return
			}
			*dst = n
		})
	}
	boolean := func(key string, dst *bool) {
		set(key, func() {
			b, parseErr := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
			if parseErr != nil {
				err = errors.NewConfigError(envName(key), "not a boolean", parseErr)
				return
			}
			*dst = b
		})
	}
	text := func(key string, dst *string) {
		set(key, func() { *dst = v.GetString(key) })
	}

	number("min_minutes", &s.MinMinutes)
	integer("match_workers", &s.MatchWorkers)
	integer("header_lookahead", &s.HeaderLookahead)
	integer("section_window", &s.SectionWindow)
	integer("scrypt_work_factor", &s.ScryptWorkFactor)
	text("encoding", &s.Encoding)
	text("delimiter", &s.Delimiter)
	text("password_fallback", &s.PasswordFallback)
	text("event.title", &s.Event.Title)
	text("event.details", &s.Event.Details)
	text("event.url", &s.Event.URL)
	boolean("require_attended_flag", &s.RequireAttendedFlag)

	return err
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// findConfigFile looks for cpdcert.yaml in the working directory, then
// .cpdcert.yaml in the home directory.
func findConfigFile() string {
	candidates := []string{"cpdcert.yaml", "cpdcert.yml"}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".cpdcert.yaml"))
	}
	for _, path := range candidates {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// loadEnvFiles loads .env then .env.local; variables already set win.
func loadEnvFiles() {
	for _, envFile := range []string{".env", ".env.local"} {
		_ = godotenv.Load(envFile)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
