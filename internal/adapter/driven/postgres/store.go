// Package postgres implements the credential store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver for migrations

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	uniqueViolation      = "23505"
	identityConstraint   = "user_credentials_identity_key"
	credentialConstraint = "user_credentials_credential_key"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialStore)(nil)

// CredentialStore persists user credentials in PostgreSQL, allowing several
// gateway replicas to authorize against the same records.
type CredentialStore struct {
	pool    *pgxpool.Pool
	dsn     string
	timeout time.Duration
}

// Option customizes a CredentialStore.
type Option func(*CredentialStore)

// WithTimeout bounds every query issued by the store.
func WithTimeout(timeout time.Duration) Option {
	return func(s *CredentialStore) {
		s.timeout = timeout
	}
}

// Open connects a pool using dsn and verifies it with a ping.
func Open(ctx context.Context, dsn string, opts ...Option) (*CredentialStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &CredentialStore{pool: pool, dsn: dsn, timeout: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the pool.
func (s *CredentialStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate applies the embedded schema migrations and returns the schema version.
func (s *CredentialStore) Migrate() (uint, error) {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return 0, fmt.Errorf("open migration connection: %w", err)
	}
	defer db.Close()

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return 0, fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return 0, fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		return 0, fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return 0, fmt.Errorf("run migrations: %w", err)
	}
	return schemaVersion(m)
}

type versioner interface {
	Version() (uint, bool, error)
}

// schemaVersion reports the applied version, refusing a dirty schema.
func schemaVersion(m versioner) (uint, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// Insert stores a new record. Unique violations map to ErrAlreadyExists or
// ErrCredentialCollision by constraint name.
func (s *CredentialStore) Insert(ctx context.Context, cred model.UserCredential) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
INSERT INTO user_credentials (id, identity, credential, ingest_url, created_at)
VALUES ($1, $2, $3, $4, $5)
`, cred.ID, cred.Identity, cred.Credential, cred.IngestURL, createdAt.UTC())
	if err != nil {
		return fmt.Errorf("insert user credential %q: %w", cred.Identity, classifyInsertError(err))
	}
	return nil
}

func (s *CredentialStore) FindByID(ctx context.Context, id string) (*model.UserCredential, error) {
	return s.findOne(ctx, `WHERE id = $1`, id)
}

func (s *CredentialStore) FindByIdentity(ctx context.Context, identity string) (*model.UserCredential, error) {
	return s.findOne(ctx, `WHERE identity = $1`, identity)
}

func (s *CredentialStore) FindByCredential(ctx context.Context, credential string) (*model.UserCredential, error) {
	return s.findOne(ctx, `WHERE credential = $1`, credential)
}

// Ping verifies a connection can be acquired.
func (s *CredentialStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping credential store: %w: %w", driven.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *CredentialStore) findOne(ctx context.Context, where string, arg string) (*model.UserCredential, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	row := s.pool.QueryRow(ctx, `SELECT id, identity, credential, ingest_url, created_at FROM user_credentials `+where, arg)

	var cred model.UserCredential
	if err := row.Scan(&cred.ID, &cred.Identity, &cred.Credential, &cred.IngestURL, &cred.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find user credential: %w: %w", driven.ErrStoreUnavailable, err)
	}
	cred.CreatedAt = cred.CreatedAt.UTC()
	return &cred, nil
}

func (s *CredentialStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func classifyInsertError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		switch pgErr.ConstraintName {
		case identityConstraint:
			return driven.ErrAlreadyExists
		case credentialConstraint:
			return driven.ErrCredentialCollision
		}
	}
	return fmt.Errorf("%w: %w", driven.ErrStoreUnavailable, err)
}
