package application_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// --- Mock implementations ---

// memStore is an in-memory CredentialStore that enforces the same uniqueness
// rules as the SQL adapters.
type memStore struct {
	mu         sync.Mutex
	records    []model.UserCredential
	err        error   // returned by every call when set
	insertErrs []error // consumed by successive Insert calls before uniqueness checks
	inserts    int
	lookups    int
}

func (m *memStore) Insert(_ context.Context, cred model.UserCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if len(m.insertErrs) > 0 {
		err := m.insertErrs[0]
		m.insertErrs = m.insertErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, r := range m.records {
		if r.Identity == cred.Identity {
			return fmt.Errorf("insert %q: %w", cred.Identity, driven.ErrAlreadyExists)
		}
		if r.Credential == cred.Credential {
			return fmt.Errorf("insert %q: %w", cred.Identity, driven.ErrCredentialCollision)
		}
	}
	m.inserts++
	m.records = append(m.records, cred)
	return nil
}

func (m *memStore) find(match func(model.UserCredential) bool) (*model.UserCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.err != nil {
		return nil, m.err
	}
	for _, r := range m.records {
		if match(r) {
			rec := r
			return &rec, nil
		}
	}
	return nil, nil
}

func (m *memStore) FindByID(_ context.Context, id string) (*model.UserCredential, error) {
	return m.find(func(r model.UserCredential) bool { return r.ID == id })
}

func (m *memStore) FindByIdentity(_ context.Context, identity string) (*model.UserCredential, error) {
	return m.find(func(r model.UserCredential) bool { return r.Identity == identity })
}

func (m *memStore) FindByCredential(_ context.Context, credential string) (*model.UserCredential, error) {
	return m.find(func(r model.UserCredential) bool { return r.Credential == credential })
}

func (m *memStore) Ping(_ context.Context) error { return m.err }

func (m *memStore) countIdentity(identity string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.records {
		if r.Identity == identity {
			n++
		}
	}
	return n
}

func (m *memStore) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

type mockTerminator struct {
	mu       sync.Mutex
	rejected []string
	err      error
}

func (m *mockTerminator) Reject(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, sessionID)
	return m.err
}

type mockPublisher struct {
	mu      sync.Mutex
	events  []model.SessionEvent
	err     error
	release chan struct{} // when set, Publish blocks until it is closed
}

func (m *mockPublisher) Publish(_ context.Context, ev model.SessionEvent) error {
	if m.release != nil {
		<-m.release
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockPublisher) published() []model.SessionEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.SessionEvent(nil), m.events...)
}

// --- Test helpers ---

var errStoreDown = fmt.Errorf("dial tcp 127.0.0.1:5432: connection refused: %w", driven.ErrStoreUnavailable)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sequenceGenerator returns the given credentials in order.
func sequenceGenerator(creds ...string) func() (string, error) {
	var mu sync.Mutex
	i := 0
	return func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		c := creds[i%len(creds)]
		i++
		return c, nil
	}
}
