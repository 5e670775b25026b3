package httphandler_test

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	httphandler "github.com/ericfisherdev/ingestgate/internal/adapter/driving/http"
	"github.com/ericfisherdev/ingestgate/internal/application"
	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockStore struct {
	mu      sync.Mutex
	records []model.UserCredential
	err     error
}

func (m *mockStore) Insert(_ context.Context, rec model.UserCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, r := range m.records {
		if r.Identity == rec.Identity {
			return driven.ErrAlreadyExists
		}
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *mockStore) find(match func(model.UserCredential) bool) (*model.UserCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
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

func (m *mockStore) FindByID(_ context.Context, id string) (*model.UserCredential, error) {
	return m.find(func(r model.UserCredential) bool { return r.ID == id })
}

func (m *mockStore) FindByIdentity(_ context.Context, identity string) (*model.UserCredential, error) {
	return m.find(func(r model.UserCredential) bool { return r.Identity == identity })
}

func (m *mockStore) FindByCredential(_ context.Context, credential string) (*model.UserCredential, error) {
	return m.find(func(r model.UserCredential) bool { return r.Credential == credential })
}

func (m *mockStore) Ping(_ context.Context) error { return m.err }

type mockTerminator struct {
	mu       sync.Mutex
	rejected []string
}

func (m *mockTerminator) Reject(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejected = append(m.rejected, sessionID)
	return nil
}

var errStoreDown = fmt.Errorf("connection refused: %w", driven.ErrStoreUnavailable)

// --- Test helpers ---

func setupAdminMux(store *mockStore, token string) http.Handler {
	issuer := application.NewCredentialIssuer(store, application.NewURLDeriver("rtmp://localhost/live"), slog.Default())
	h := httphandler.NewHandler(issuer, token, slog.Default())
	return httphandler.NewServeMux(h, slog.Default())
}

func setupHookMux(store *mockStore, term *mockTerminator) http.Handler {
	return setupHookMuxWithToken(store, term, "")
}

func setupHookMuxWithToken(store *mockStore, term *mockTerminator, token string) http.Handler {
	authorizer := application.NewPublishAuthorizer(store, term, 0, slog.Default())
	hooks := application.NewHookService(authorizer, nil, slog.Default())
	return httphandler.NewHookServeMux(httphandler.NewHookHandler(hooks, token, slog.Default()), slog.Default())
}
