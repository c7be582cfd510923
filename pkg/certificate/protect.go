package certificate

import (
	"bytes"
	"fmt"
	"io"

	"filippo.io/age"
)

// DefaultScryptWorkFactor is the scrypt log2(N) used for certificate
// passwords. age's own default (18) takes about a second per file, which is
// too slow for a batch of a few hundred certificates.
const DefaultScryptWorkFactor = 15

// Protector encrypts a rendered certificate with a password.
type Protector interface {
	Protect(doc []byte, password string) ([]byte, error)
	// Extension is appended to the file name of protected documents.
	Extension() string
}

// AgeProtector encrypts with age passphrase (scrypt) recipients.
type AgeProtector struct {
	// WorkFactor is the scrypt log2(N); zero means DefaultScryptWorkFactor.
	WorkFactor int
}

// Extension implements Protector.
func (p AgeProtector) Extension() string { return ".age" }

// Protect implements Protector.
func (p AgeProtector) Protect(doc []byte, password string) ([]byte, error) {
	if password == "" {
		return nil, fmt.Errorf("empty password")
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt recipient: %w", err)
	}
	wf := p.WorkFactor
	if wf <= 0 {
		wf = DefaultScryptWorkFactor
	}
	recipient.SetWorkFactor(wf)

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipient)
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := writer.Write(doc); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}

	return ciphertext.Bytes(), nil
}

// Unprotect decrypts a document produced by AgeProtector.
func Unprotect(ciphertext []byte, password string) ([]byte, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, fmt.Errorf("creating scrypt identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}

	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted plaintext: %w", err)
	}
	return plaintext, nil
}
