// Package app wires the cpdcert command line: configuration layering,
// logging and the cobra commands that drive the reconciliation pipeline.
package app

import (
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

// App holds the CLI's dependencies.
type App struct {
	version string
	commit  string
	date    string

	config *Config
	logger *zerolog.Logger

	stdout     io.Writer
	stderr     io.Writer
	httpClient *http.Client
	now        func() time.Time
}

// New creates an App with configuration loaded from the environment, .env
// files and the config file search path.
func New(version, commit, date string, opts ...Option) (*App, error) {
	a := &App{
		version:    version,
		commit:     commit,
		date:       date,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}

	config, err := LoadConfig()
	if err != nil {
		return nil, errors.NewConfigError("", "failed to load CLI configuration", err)
	}
	a.config = config

	logger := NewLogger(config)
	a.logger = &logger

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version string.
func (a *App) Version() string { return a.version }

// Config returns the CLI configuration.
func (a *App) Config() *Config { return a.config }

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger { return a.logger }

// Option configures an App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithOutput redirects command output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(a *App) error {
		a.stdout = stdout
		a.stderr = stderr
		return nil
	}
}

// WithHTTPClient sets the client used to fetch event pages.
func WithHTTPClient(client *http.Client) Option {
	return func(a *App) error {
		a.httpClient = client
		return nil
	}
}

// WithClock fixes the time used for archive manifests.
func WithClock(now func() time.Time) Option {
	return func(a *App) error {
		a.now = now
		return nil
	}
}
