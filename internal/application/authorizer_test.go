package application_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/ingestgate/internal/application"
	"github.com/ericfisherdev/ingestgate/internal/domain/model"
)

func newAuthorizer(store *memStore, term *mockTerminator) *application.PublishAuthorizer {
	return application.NewPublishAuthorizer(store, term, time.Second, discardLogger())
}

func storeWith(creds ...string) *memStore {
	store := &memStore{}
	for i, c := range creds {
		store.records = append(store.records, model.UserCredential{
			ID:         string(rune('a' + i)),
			Identity:   "user-" + c,
			Credential: c,
		})
	}
	return store
}

func TestExtractCredential(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		wantOK bool
	}{
		{path: "/live/k1", want: "k1", wantOK: true},
		{path: "app/live/k1", want: "k1", wantOK: true},
		{path: "k1", want: "k1", wantOK: true},
		{path: "/live/k1?token=abc", want: "k1", wantOK: true},
		{path: "", wantOK: false},
		{path: "/", wantOK: false},
		{path: "/live/", wantOK: false},
		{path: "/live/k1/", wantOK: false},
		{path: "/live/?k1", wantOK: false},
		{path: "/live/   ", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := application.ExtractCredential(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name        string
		store       *memStore
		path        string
		want        model.Decision
		wantLookups int
	}{
		{name: "issued credential", store: storeWith("k1"), path: "app/live/k1", want: model.DecisionAccept, wantLookups: 1},
		{name: "unknown credential", store: storeWith("k1"), path: "app/live/wrong", want: model.DecisionReject, wantLookups: 1},
		{name: "credential must be the last segment", store: storeWith("k1"), path: "app/k1/other", want: model.DecisionReject, wantLookups: 1},
		{name: "empty path", store: storeWith("k1"), path: "", want: model.DecisionReject, wantLookups: 0},
		{name: "trailing slash", store: storeWith("k1"), path: "app/live/k1/", want: model.DecisionReject, wantLookups: 0},
		{name: "store unavailable fails closed", store: &memStore{err: errStoreDown}, path: "app/live/k1", want: model.DecisionReject, wantLookups: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authz := newAuthorizer(tt.store, &mockTerminator{})

			got := authz.Authorize(context.Background(), tt.path)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantLookups, tt.store.lookupCount())
		})
	}
}

func TestAuthorize_AllIssuedCredentialsAccepted(t *testing.T) {
	store := &memStore{}
	issuer := newIssuer(store)
	authz := newAuthorizer(store, &mockTerminator{})
	ctx := context.Background()

	for _, identity := range []string{"alice", "bob", "carol", "dave"} {
		rec, err := issuer.Issue(ctx, identity)
		require.NoError(t, err)

		assert.Equal(t, model.DecisionAccept, authz.Authorize(ctx, "live/"+rec.Credential), identity)
		assert.Equal(t, model.DecisionReject, authz.Authorize(ctx, "live/"+rec.Credential+"x"), identity)
	}
}

func TestAuthorizePublish(t *testing.T) {
	tests := []struct {
		name         string
		store        *memStore
		path         string
		termErr      error
		want         model.Decision
		wantRejected []string
	}{
		{name: "accept does not terminate", store: storeWith("k1"), path: "live/k1", want: model.DecisionAccept},
		{name: "reject terminates", store: storeWith("k1"), path: "live/wrong", want: model.DecisionReject, wantRejected: []string{"sess-1"}},
		{name: "malformed path terminates", store: storeWith("k1"), path: "live/", want: model.DecisionReject, wantRejected: []string{"sess-1"}},
		{name: "store outage terminates", store: &memStore{err: errStoreDown}, path: "live/k1", want: model.DecisionReject, wantRejected: []string{"sess-1"}},
		{
			name:         "termination failure still rejects",
			store:        storeWith("k1"),
			path:         "live/wrong",
			termErr:      errors.New("gateway unreachable"),
			want:         model.DecisionReject,
			wantRejected: []string{"sess-1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			term := &mockTerminator{err: tt.termErr}
			authz := newAuthorizer(tt.store, term)

			got := authz.AuthorizePublish(context.Background(), "sess-1", tt.path)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantRejected, term.rejected)
		})
	}
}

func TestAuthorizePublish_NilTerminator(t *testing.T) {
	authz := application.NewPublishAuthorizer(storeWith("k1"), nil, 0, discardLogger())

	assert.Equal(t, model.DecisionReject, authz.AuthorizePublish(context.Background(), "sess-1", "live/nope"))
}

// slowStore blocks lookups until the context is done.
type slowStore struct{ memStore }

func (s *slowStore) FindByCredential(ctx context.Context, _ string) (*model.UserCredential, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestAuthorize_LookupTimeoutFailsClosed(t *testing.T) {
	authz := application.NewPublishAuthorizer(&slowStore{}, &mockTerminator{}, 20*time.Millisecond, discardLogger())

	start := time.Now()
	got := authz.Authorize(context.Background(), "live/k1")

	assert.Equal(t, model.DecisionReject, got)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAuthorize_IngestURLDrift(t *testing.T) {
	tests := []struct {
		name      string
		ingestURL string
		wantWarn  bool
	}{
		{name: "matching url", ingestURL: "rtmp://localhost/live/k1"},
		{name: "drifted url", ingestURL: "rtmp://old-host/live/k1", wantWarn: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := storeWith("k1")
			store.records[0].IngestURL = tt.ingestURL

			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, nil))
			a := application.NewPublishAuthorizer(store, &mockTerminator{}, time.Second, logger,
				application.WithIngestURLCheck(application.NewURLDeriver("rtmp://localhost/live")))

			assert.Equal(t, model.DecisionAccept, a.Authorize(context.Background(), "/live/k1"))
			if tt.wantWarn {
				assert.Contains(t, buf.String(), "stored ingest url does not match derived url")
			} else {
				assert.NotContains(t, buf.String(), "does not match")
			}
		})
	}
}
