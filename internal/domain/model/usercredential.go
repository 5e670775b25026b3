package model

import "time"

// UserCredential binds a caller-supplied identity to the stream credential it
// publishes with. Records are written once at issuance and never mutated.
type UserCredential struct {
	ID         string // Opaque record ID (UUID v4).
	Identity   string // Caller-supplied user identifier; unique per store.
	Credential string // Secret stream key presented as the last stream path segment.
	IngestURL  string // Always DeriveURL(Credential) for the configured base.
	CreatedAt  time.Time
}
