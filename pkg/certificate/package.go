package certificate

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/zeebo/blake3"

	"github.com/alexsbc303/CPD-Cert/pkg/engine"
)

// ManifestName is the archive entry describing the batch.
const ManifestName = "manifest.json"

// Artifact is one protected certificate ready for packaging.
type Artifact struct {
	FileName       string             `json:"file"`
	PrintedName    string             `json:"name"`
	Email          string             `json:"email"`
	MembershipID   string             `json:"membershipId,omitempty"`
	Method         engine.MatchMethod `json:"method"`
	PasswordSource PasswordSource     `json:"passwordSource"`
	Review         engine.ReviewLevel `json:"review"`
	Size           int                `json:"size"`
	Checksum       string             `json:"blake3"`
	Data           []byte             `json:"-"`
}

// Manifest lists the certificates of one generation batch. Passwords are
// never recorded, only where each one came from.
type Manifest struct {
	BatchID      string     `json:"batchId"`
	GeneratedAt  time.Time  `json:"generatedAt"`
	Event        Event      `json:"event"`
	Certificates []Artifact `json:"certificates"`
}

// Checksum returns the hex BLAKE3-256 digest of a protected payload.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NewManifest starts a manifest with a fresh batch id.
func NewManifest(ev Event, artifacts []Artifact, now time.Time) Manifest {
	return Manifest{
		BatchID:      uuid.NewString(),
		GeneratedAt:  now.UTC(),
		Event:        ev,
		Certificates: artifacts,
	}
}

// WriteArchive writes the artifacts and the manifest as a zip archive.
// Encrypted payloads are stored, not deflated; the manifest is deflated.
func WriteArchive(w io.Writer, m Manifest) error {
	zw := zip.NewWriter(w)

	for _, a := range m.Certificates {
		f, err := zw.CreateHeader(&zip.FileHeader{
			Name:     a.FileName,
			Method:   zip.Store,
			Modified: m.GeneratedAt,
		})
		if err != nil {
			return fmt.Errorf("creating archive entry %q: %w", a.FileName, err)
		}
		if _, err := f.Write(a.Data); err != nil {
			return fmt.Errorf("writing archive entry %q: %w", a.FileName, err)
		}
	}

	f, err := zw.CreateHeader(&zip.FileHeader{
		Name:     ManifestName,
		Method:   zip.Deflate,
		Modified: m.GeneratedAt,
	})
	if err != nil {
		return fmt.Errorf("creating manifest entry: %w", err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing archive: %w", err)
	}
	return nil
}
