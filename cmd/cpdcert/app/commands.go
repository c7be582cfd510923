package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alexsbc303/CPD-Cert/pkg/certificate"
	"github.com/alexsbc303/CPD-Cert/pkg/config"
	"github.com/alexsbc303/CPD-Cert/pkg/errors"
	"github.com/alexsbc303/CPD-Cert/pkg/logging"
	"github.com/alexsbc303/CPD-Cert/pkg/metadata"
	"github.com/alexsbc303/CPD-Cert/pkg/pipeline"
	"github.com/alexsbc303/CPD-Cert/pkg/report"
)

// DefaultArchiveName is the archive written by generate.
const DefaultArchiveName = "cpd_certificates.zip"

// runFlags are the settings overrides shared by reconcile and generate.
type runFlags struct {
	minMinutes     float64
	workers        int
	encoding       string
	ignoreAttended bool
	matchedCSV     string
	unmatchedCSV   string
}

func (f *runFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.minMinutes, "min-minutes", 0, "minimum minutes in session to be eligible (default from settings, 10)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "registrants matched in parallel (default from settings, 1)")
	cmd.Flags().StringVar(&f.encoding, "encoding", "", "force an input encoding such as big5 or windows-1252 (default auto)")
	cmd.Flags().BoolVar(&f.ignoreAttended, "ignore-attended-flag", false, "keep attendance rows whose Attended column is not yes")
	cmd.Flags().StringVar(&f.matchedCSV, "matched-csv", "", "also write matched registrants to this CSV file")
	cmd.Flags().StringVar(&f.unmatchedCSV, "unmatched-csv", "", "also write unmatched registrants to this CSV file")
}

// settings loads the reconciliation settings and applies changed flags.
func (a *App) settings(cmd *cobra.Command, f *runFlags) (*config.Config, error) {
	s, err := a.config.Settings()
	if err != nil {
		return nil, err
	}
	if f == nil {
		return s, nil
	}

	if cmd.Flags().Changed("min-minutes") {
		s.MinMinutes = f.minMinutes
	}
	if cmd.Flags().Changed("workers") {
		s.MatchWorkers = f.workers
	}
	if f.encoding != "" {
		s.Encoding = f.encoding
	}
	if f.ignoreAttended {
		s.RequireAttendedFlag = false
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// reconcile reads both exports and runs the pipeline, writing the optional
// CSV exports.
func (a *App) reconcile(ctx context.Context, s *config.Config, f *runFlags, registration, attendance string) (*pipeline.Result, error) {
	in := pipeline.Input{}
	var err error
	if in.Registration, err = os.ReadFile(registration); err != nil {
		return nil, fmt.Errorf("failed to read registration file: %w", err)
	}
	if in.Attendance, err = os.ReadFile(attendance); err != nil {
		return nil, fmt.Errorf("failed to read attendance file: %w", err)
	}

	ctx = logging.WithField(ctx, "registration", filepath.Base(registration))
	ctx = logging.WithField(ctx, "attendance", filepath.Base(attendance))

	res, err := pipeline.Run(ctx, s, in)
	if err != nil {
		return nil, err
	}

	if f.matchedCSV != "" {
		if err := writeCSVFile(f.matchedCSV, res.Report.Matched, report.WriteMatchedCSV); err != nil {
			return nil, err
		}
	}
	if f.unmatchedCSV != "" {
		if err := writeCSVFile(f.unmatchedCSV, res.Report.Unmatched, report.WriteUnmatchedCSV); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (a *App) newReconcileCommand() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:     "reconcile REGISTRATION ATTENDANCE",
		Short:   "Match registrants against an attendance report",
		GroupID: "core",
		Long: `Reconcile reads the registration export and the attendance export,
aggregates each attendee's sessions, applies the minimum-minutes threshold and
matches every registrant by email, then by name. Either export may be a
delimited text file or an .xlsx workbook (first sheet).`,
		Example: `  cpdcert reconcile registrations.csv zoom_attendee_report.csv
  cpdcert reconcile registrations.xlsx zoom_attendee_report.csv
  cpdcert reconcile reg.csv att.csv --min-minutes 30 -o json
  cpdcert reconcile reg.csv att.csv --matched-csv matched.csv --unmatched-csv unmatched.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.settings(cmd, &flags)
			if err != nil {
				return err
			}
			res, err := a.reconcile(cmd.Context(), s, &flags, args[0], args[1])
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if ok, err := writeStructured(w, a.format(), res); ok {
				return err
			}
			return writeResultTable(w, res)
		},
	}
	flags.register(cmd)
	return cmd
}

func (a *App) newGenerateCommand() *cobra.Command {
	var (
		flags        runFlags
		archive      string
		templatePath string
		event        config.EventConfig
	)
	cmd := &cobra.Command{
		Use:     "generate REGISTRATION ATTENDANCE",
		Short:   "Reconcile and write one protected certificate per matched registrant",
		GroupID: "core",
		Long: `Generate runs the same reconciliation as reconcile, renders a certificate
for every matched registrant, encrypts each with that registrant's password
(membership number, else email, else the fallback) and packs them into a zip
archive with a manifest.

Event title and details come from the flags, the settings file, or are read
from the event page given by --event-url.`,
		Example: `  cpdcert generate reg.csv att.csv --event-url "http://it.hkie.org.hk/en_it_events_inside_Past.aspx?EventID=600"
  cpdcert generate reg.csv att.csv --event-title "BIM Seminar" --event-details "1 May 2024 19:00" --archive may.zip`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := logging.FromContext(ctx)

			s, err := a.settings(cmd, &flags)
			if err != nil {
				return err
			}
			ev, err := a.resolveEvent(ctx, s.Event, event)
			if err != nil {
				return err
			}

			res, err := a.reconcile(ctx, s, &flags, args[0], args[1])
			if err != nil {
				return err
			}
			if res.Report.Reviews.High > 0 {
				logger.Warn().Int("count", res.Report.Reviews.High).Msg("Some matches need review before certificates are sent")
			}

			gen, err := newGenerator(s, templatePath, ev)
			if err != nil {
				return err
			}
			artifacts, err := gen.Generate(ctx, res.Report.Matched)
			if err != nil {
				return err
			}

			manifest := certificate.NewManifest(ev, artifacts, a.now())
			size, err := writeArchiveFile(archive, manifest)
			if err != nil {
				return err
			}
			logger.Info().Str("archive", archive).Int("certificates", len(artifacts)).Msg("Certificates written")

			w := cmd.OutOrStdout()
			if ok, err := writeStructured(w, a.format(), manifest); ok {
				return err
			}
			return writeArtifactTable(w, manifest, archive, size)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&archive, "archive", DefaultArchiveName, "zip archive to write")
	cmd.Flags().StringVar(&templatePath, "template", "", "markdown certificate template (default built-in)")
	cmd.Flags().StringVar(&event.Title, "event-title", "", "event title printed on certificates")
	cmd.Flags().StringVar(&event.Details, "event-details", "", "event date and time printed on certificates")
	cmd.Flags().StringVar(&event.URL, "event-url", "", "event page to read the title and details from")
	return cmd
}

// resolveEvent merges flag and settings event values, fetching the event
// page when a title or details is still missing.
func (a *App) resolveEvent(ctx context.Context, fromSettings, fromFlags config.EventConfig) (certificate.Event, error) {
	pick := func(flag, setting string) string {
		if flag != "" {
			return flag
		}
		return setting
	}
	ev := certificate.Event{
		Title:   pick(fromFlags.Title, fromSettings.Title),
		Details: pick(fromFlags.Details, fromSettings.Details),
	}
	url := pick(fromFlags.URL, fromSettings.URL)

	if (ev.Title == "" || ev.Details == "") && url != "" {
		page, err := metadata.Fetch(ctx, a.httpClient, url)
		if err != nil {
			return certificate.Event{}, err
		}
		if ev.Title == "" {
			ev.Title = page.Title
		}
		if ev.Details == "" {
			ev.Details = page.Details
		}
	}
	if ev.Title == "" {
		return certificate.Event{}, errors.NewConfigError("event.title", "an event title is required; pass --event-title or --event-url", nil)
	}
	return ev, nil
}

func newGenerator(s *config.Config, templatePath string, ev certificate.Event) (certificate.Generator, error) {
	var source string
	if templatePath != "" {
		data, err := os.ReadFile(templatePath)
		if err != nil {
			return certificate.Generator{}, fmt.Errorf("failed to read template: %w", err)
		}
		source = string(data)
	}
	renderer, err := certificate.NewMarkdownRenderer(source)
	if err != nil {
		return certificate.Generator{}, errors.NewCollaboratorError("render", 0, err)
	}
	passwords, err := s.Passwords()
	if err != nil {
		return certificate.Generator{}, errors.NewConfigError("password_policy", "invalid policy", err)
	}
	return certificate.Generator{
		Renderer:  renderer,
		Protector: certificate.AgeProtector{WorkFactor: s.ScryptWorkFactor},
		Passwords: passwords,
		Event:     ev,
	}, nil
}

// writeArchiveFile writes the archive next to its final path and renames it
// into place, returning the archive size.
func writeArchiveFile(path string, m certificate.Manifest) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cpdcert-*.zip")
	if err != nil {
		return 0, errors.NewCollaboratorError("package", 0, err)
	}
	defer os.Remove(tmp.Name())

	if err := certificate.WriteArchive(tmp, m); err != nil {
		tmp.Close()
		return 0, errors.NewCollaboratorError("package", 0, err)
	}
	info, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, errors.NewCollaboratorError("package", 0, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, errors.NewCollaboratorError("package", 0, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return 0, errors.NewCollaboratorError("package", 0, err)
	}
	return info.Size(), nil
}

func (a *App) newFetchEventCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "fetch-event URL",
		Short:   "Read the event title and details from an HKIE event page",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := metadata.Fetch(cmd.Context(), a.httpClient, args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if ok, err := writeStructured(w, a.format(), ev); ok {
				return err
			}
			return writeEventTable(w, ev)
		},
	}
}

func (a *App) newDecryptCommand() *cobra.Command {
	var password, out string
	cmd := &cobra.Command{
		Use:     "decrypt FILE",
		Short:   "Decrypt one certificate from a generated archive",
		GroupID: "util",
		Long: `Decrypt opens a protected certificate with the recipient's password.
The password may also be given in CPDCERT_PASSWORD.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv(EnvPrefix + "_PASSWORD")
			}
			if password == "" {
				return errors.NewConfigError("password", "a password is required; pass --password or set CPDCERT_PASSWORD", nil)
			}

			ciphertext, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			plain, err := certificate.Unprotect(ciphertext, password)
			if err != nil {
				return err
			}

			if out == "" {
				out = strings.TrimSuffix(args[0], certificate.AgeProtector{}.Extension())
				if out == args[0] {
					out += ".decrypted"
				}
			}
			if out == "-" {
				_, err := cmd.OutOrStdout().Write(plain)
				return err
			}
			if err := os.WriteFile(out, plain, 0o600); err != nil {
				return fmt.Errorf("failed to write %s: %w", out, err)
			}
			logging.FromContext(cmd.Context()).Info().Str("file", out).Msg("Decrypted certificate")
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "recipient password")
	cmd.Flags().StringVar(&out, "out", "", "output path, - for stdout (default FILE without .age)")
	return cmd
}

func (a *App) newConfigCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "config",
		Short:   "Print the effective settings",
		GroupID: "util",
		Long: `Config prints the settings after defaults, the settings file and
CPDCERT_* environment variables are applied. The YAML output is a valid
settings file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.settings(cmd, nil)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if f, _ := ParseFormat(a.config.Format); f == FormatJSON {
				return writeJSON(w, s)
			}
			data, err := s.YAML()
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
}

func (a *App) newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   "Show version information",
		GroupID: "util",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "cpdcert version %s\n", a.version)
			fmt.Fprintf(w, "commit: %s\n", a.commit)
			fmt.Fprintf(w, "built: %s\n", a.date)
			fmt.Fprintf(w, "go version: %s\n", runtime.Version())
			fmt.Fprintf(w, "platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
