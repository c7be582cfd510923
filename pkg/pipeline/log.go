package pipeline

import (
	"github.com/rs/zerolog"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
)

func logTable(logger *zerolog.Logger, s TableSummary) {
	logger.Debug().
		Str("encoding", s.Encoding).
		Int("header_row", s.HeaderRow).
		Strs("headers", s.Headers).
		Interface("mappings", s.Mappings).
		Int("rows", s.Rows).
		Msg("Read table")
	for _, w := range s.Warnings {
		logger.Warn().Int("row", w.Row).Msg(w.Message)
	}
}

// withTable names the table in a detection error.
func withTable(err error, table string) error {
	var de *errors.SchemaDetectionError
	if errors.As(err, &de) && de.Table == "" {
		de.Table = table
	}
	return err
}
