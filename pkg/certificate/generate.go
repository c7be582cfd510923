// Package certificate renders, protects and packages one certificate per
// matched registrant.
package certificate

import (
	"context"
	"fmt"

	"github.com/alexsbc303/CPD-Cert/pkg/errors"
	"github.com/alexsbc303/CPD-Cert/pkg/logging"
	"github.com/alexsbc303/CPD-Cert/pkg/report"
)

// Generator turns matched rows into protected certificates.
type Generator struct {
	Renderer  Renderer
	Protector Protector
	Passwords PasswordPolicy
	Event     Event
	// Extension of the rendered document before protection.
	Extension string
}

// Generate renders and protects a certificate per row, in row order.
//  1. Refuse an empty row list; nobody should get an empty archive
//  2. Render the template with the row's variables
//  3. Encrypt with the password chosen by the policy
//  4. Name the file after the printed name, deduplicating collisions
//
// A failing row aborts the batch with a CollaboratorError naming the stage
// and the 1-based row. ctx is checked between rows.
func (g Generator) Generate(ctx context.Context, rows []report.MatchedRow) ([]Artifact, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("nothing to generate: %w", errors.ErrEmptyResult)
	}
	logger := logging.FromContext(ctx)

	ext := g.Extension
	if ext == "" {
		ext = ".html"
	}
	ext += g.Protector.Extension()

	names := make(uniqueNames, len(rows))
	artifacts := make([]Artifact, 0, len(rows))
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		printed := PrintedName(row)
		doc, err := g.Renderer.Render(Variables(row, g.Event))
		if err != nil {
			return nil, errors.NewCollaboratorError("render", i+1, err)
		}

		password, source := g.Passwords.Password(row)
		protected, err := g.Protector.Protect(doc, password)
		if err != nil {
			return nil, errors.NewCollaboratorError("protect", i+1, err)
		}

		a := Artifact{
			FileName:       names.claim(FileName(printed, ext), ext),
			PrintedName:    printed,
			Email:          row.Email,
			MembershipID:   row.MembershipID,
			Method:         row.Method,
			PasswordSource: source,
			Review:         row.Review.Level,
			Size:           len(protected),
			Checksum:       Checksum(protected),
			Data:           protected,
		}
		artifacts = append(artifacts, a)

		logger.Debug().
			Int("row", i+1).
			Str("file", a.FileName).
			Str("password_source", string(source)).
			Msg("Generated certificate")
	}

	return artifacts, nil
}
