package application

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// credentialBytes is the entropy of a generated credential (192 bits).
const credentialBytes = 24

// CredentialGenerator produces new stream credentials.
type CredentialGenerator func() (string, error)

// NewCredentialGenerator returns a generator reading from r. Pass
// crypto/rand.Reader in production; tests may pass a deterministic reader.
func NewCredentialGenerator(r io.Reader) CredentialGenerator {
	return func() (string, error) {
		buf := make([]byte, credentialBytes)
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("generate credential: %w", err)
		}
		return strings.ToUpper(hex.EncodeToString(buf)), nil
	}
}

// GenerateCredential returns a credential from the system CSPRNG.
func GenerateCredential() (string, error) {
	return NewCredentialGenerator(rand.Reader)()
}
