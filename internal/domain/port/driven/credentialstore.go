// Package driven defines secondary port interfaces for external adapters.
package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
)

// Sentinel errors returned by CredentialStore implementations.
var (
	// ErrAlreadyExists indicates a record for the identity already exists.
	ErrAlreadyExists = errors.New("user already exists")

	// ErrCredentialCollision indicates the generated credential is already
	// held by another record. Callers may regenerate and retry.
	ErrCredentialCollision = errors.New("credential already in use")

	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrStoreUnavailable wraps connectivity and persistence faults.
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// CredentialStore defines the driven port for user credential persistence.
// Find methods return (nil, nil) when no record matches; only connectivity or
// persistence faults are errors, and those wrap ErrStoreUnavailable.
// Insert must enforce uniqueness of both Identity and Credential so that of
// two racing inserts for one identity exactly one commits.
type CredentialStore interface {
	// Insert persists a new record. Returns ErrAlreadyExists when the identity
	// is taken and ErrCredentialCollision when the credential is taken.
	Insert(ctx context.Context, cred model.UserCredential) error

	FindByID(ctx context.Context, id string) (*model.UserCredential, error)
	FindByIdentity(ctx context.Context, identity string) (*model.UserCredential, error)
	FindByCredential(ctx context.Context, credential string) (*model.UserCredential, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
