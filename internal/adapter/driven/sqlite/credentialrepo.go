package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Uniqueness of identity and credential is enforced by unique indexes, so a
// losing concurrent insert fails instead of overwriting.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

// Insert stores a new user credential record.
func (r *CredentialRepo) Insert(ctx context.Context, cred model.UserCredential) error {
	const query = `INSERT INTO user_credentials (id, identity, credential, ingest_url, created_at) VALUES (?, ?, ?, ?, ?)`

	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		cred.ID,
		cred.Identity,
		cred.Credential,
		cred.IngestURL,
		createdAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert user credential %q: %w", cred.Identity, classifyInsertError(err))
	}

	return nil
}

// FindByID returns the record with the given ID, or nil, nil if absent.
func (r *CredentialRepo) FindByID(ctx context.Context, id string) (*model.UserCredential, error) {
	return r.findOne(ctx, "id", id)
}

// FindByIdentity returns the record for identity, or nil, nil if absent.
func (r *CredentialRepo) FindByIdentity(ctx context.Context, identity string) (*model.UserCredential, error) {
	return r.findOne(ctx, "identity", identity)
}

// FindByCredential returns the record holding credential, or nil, nil if absent.
func (r *CredentialRepo) FindByCredential(ctx context.Context, credential string) (*model.UserCredential, error) {
	return r.findOne(ctx, "credential", credential)
}

// Ping verifies the reader connection is usable.
func (r *CredentialRepo) Ping(ctx context.Context) error {
	if err := r.db.Reader.PingContext(ctx); err != nil {
		return fmt.Errorf("ping credential store: %w: %w", driven.ErrStoreUnavailable, err)
	}
	return nil
}

// findOne looks up a single record by column. column is never user input.
func (r *CredentialRepo) findOne(ctx context.Context, column, value string) (*model.UserCredential, error) {
	query := `SELECT id, identity, credential, ingest_url, created_at FROM user_credentials WHERE ` + column + ` = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, value))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user credential by %s: %w: %w", column, driven.ErrStoreUnavailable, err)
	}

	return cred, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (*model.UserCredential, error) {
	var cred model.UserCredential
	var createdAt string

	err := s.Scan(&cred.ID, &cred.Identity, &cred.Credential, &cred.IngestURL, &createdAt)
	if err != nil {
		return nil, err
	}

	cred.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &cred, nil
}

// classifyInsertError maps unique index violations onto port sentinels.
// Everything else is a persistence fault.
func classifyInsertError(err error) error {
	msg := err.Error()
	if !strings.Contains(msg, "UNIQUE constraint") {
		return fmt.Errorf("%w: %w", driven.ErrStoreUnavailable, err)
	}
	switch {
	case strings.Contains(msg, "user_credentials.identity"):
		return driven.ErrAlreadyExists
	case strings.Contains(msg, "user_credentials.credential"):
		return driven.ErrCredentialCollision
	default:
		return fmt.Errorf("%w: %w", driven.ErrStoreUnavailable, err)
	}
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
