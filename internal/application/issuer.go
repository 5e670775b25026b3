// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// ErrInvalidIdentity is returned by Issue when the identity is empty.
var ErrInvalidIdentity = errors.New("identity is required")

// maxCollisionAttempts bounds credential regeneration when the store reports
// the generated credential is already taken.
const maxCollisionAttempts = 3

// CredentialIssuer creates stream credentials for user identities and reads
// issued records back for the admin API. It holds no mutable state; every
// call goes to the store.
type CredentialIssuer struct {
	store    driven.CredentialStore
	urls     URLDeriver
	generate CredentialGenerator
	now      func() time.Time
	logger   *slog.Logger
}

// IssuerOption customizes a CredentialIssuer.
type IssuerOption func(*CredentialIssuer)

// WithCredentialGenerator replaces the CSPRNG-backed generator.
func WithCredentialGenerator(g CredentialGenerator) IssuerOption {
	return func(i *CredentialIssuer) {
		i.generate = g
	}
}

// WithClock replaces time.Now for CreatedAt stamps.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *CredentialIssuer) {
		i.now = now
	}
}

// NewCredentialIssuer creates a CredentialIssuer backed by store.
func NewCredentialIssuer(store driven.CredentialStore, urls URLDeriver, logger *slog.Logger, opts ...IssuerOption) *CredentialIssuer {
	i := &CredentialIssuer{
		store:    store,
		urls:     urls,
		generate: GenerateCredential,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue creates a credential for identity. It returns driven.ErrAlreadyExists
// without writing anything when the identity already holds a credential, and
// wraps driven.ErrStoreUnavailable on persistence faults.
func (i *CredentialIssuer) Issue(ctx context.Context, identity string) (model.UserCredential, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return model.UserCredential{}, ErrInvalidIdentity
	}

	existing, err := i.store.FindByIdentity(ctx, identity)
	if err != nil {
		return model.UserCredential{}, fmt.Errorf("issue credential for %q: %w", identity, err)
	}
	if existing != nil {
		return model.UserCredential{}, fmt.Errorf("issue credential for %q: %w", identity, driven.ErrAlreadyExists)
	}

	for attempt := 1; ; attempt++ {
		credential, err := i.generate()
		if err != nil {
			return model.UserCredential{}, err
		}

		rec := model.UserCredential{
			ID:         uuid.NewString(),
			Identity:   identity,
			Credential: credential,
			IngestURL:  i.urls.Derive(credential),
			CreatedAt:  i.now().UTC(),
		}

		err = i.store.Insert(ctx, rec)
		switch {
		case err == nil:
			i.logger.Info("credential issued", "identity", identity, "id", rec.ID)
			return rec, nil
		case errors.Is(err, driven.ErrCredentialCollision) && attempt < maxCollisionAttempts:
			i.logger.Warn("generated credential collided, regenerating", "identity", identity, "attempt", attempt)
			continue
		default:
			// A concurrent Issue for the same identity surfaces here as
			// ErrAlreadyExists from the store's unique index.
			return model.UserCredential{}, fmt.Errorf("issue credential for %q: %w", identity, err)
		}
	}
}

// Get returns the record with the given ID, or driven.ErrNotFound.
// The returned IngestURL always equals the URL derived from the credential;
// a stored value that disagrees is logged and replaced in the response.
func (i *CredentialIssuer) Get(ctx context.Context, id string) (model.UserCredential, error) {
	rec, err := i.store.FindByID(ctx, id)
	if err != nil {
		return model.UserCredential{}, fmt.Errorf("get user %q: %w", id, err)
	}
	if rec == nil {
		return model.UserCredential{}, fmt.Errorf("get user %q: %w", id, driven.ErrNotFound)
	}

	if want := i.urls.Derive(rec.Credential); rec.IngestURL != want {
		i.logger.Warn("stored ingest url does not match derived url",
			"id", rec.ID,
			"stored", rec.IngestURL,
			"derived", want,
		)
		rec.IngestURL = want
	}

	return *rec, nil
}

// Ping reports whether the backing store is reachable.
func (i *CredentialIssuer) Ping(ctx context.Context) error {
	return i.store.Ping(ctx)
}
