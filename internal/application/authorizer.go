package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// DefaultLookupTimeout bounds the credential lookup behind one publish decision.
const DefaultLookupTimeout = 2 * time.Second

// PublishAuthorizer decides whether a publish attempt may proceed. It fails
// closed: anything other than a successful lookup that finds the presented
// credential is a rejection.
type PublishAuthorizer struct {
	store      driven.CredentialStore
	terminator driven.SessionTerminator
	timeout    time.Duration
	logger     *slog.Logger
	urls       *URLDeriver
}

// AuthorizerOption customizes a PublishAuthorizer.
type AuthorizerOption func(*PublishAuthorizer)

// WithIngestURLCheck makes the authorizer verify the ingest URL of every
// record it reads back against d, logging drift. Decisions are unaffected.
func WithIngestURLCheck(d URLDeriver) AuthorizerOption {
	return func(a *PublishAuthorizer) {
		a.urls = &d
	}
}

// NewPublishAuthorizer creates a PublishAuthorizer. A non-positive timeout
// selects DefaultLookupTimeout.
func NewPublishAuthorizer(
	store driven.CredentialStore,
	terminator driven.SessionTerminator,
	timeout time.Duration,
	logger *slog.Logger,
	opts ...AuthorizerOption,
) *PublishAuthorizer {
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	a := &PublishAuthorizer{
		store:      store,
		terminator: terminator,
		timeout:    timeout,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExtractCredential returns the last segment of a slash-delimited stream path.
// Any query string is dropped first. It returns false when the final segment
// is empty.
func ExtractCredential(streamPath string) (string, bool) {
	if i := strings.IndexByte(streamPath, '?'); i >= 0 {
		streamPath = streamPath[:i]
	}
	parts := strings.Split(streamPath, "/")
	candidate := strings.TrimSpace(parts[len(parts)-1])
	if candidate == "" {
		return "", false
	}
	return candidate, true
}

// Authorize looks up the credential presented in streamPath. Malformed paths
// are rejected without touching the store.
func (a *PublishAuthorizer) Authorize(ctx context.Context, streamPath string) model.Decision {
	credential, ok := ExtractCredential(streamPath)
	if !ok {
		a.logger.Warn("publish rejected: malformed stream path", "stream_path", streamPath)
		return model.DecisionReject
	}

	lookupCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rec, err := a.store.FindByCredential(lookupCtx, credential)
	if err != nil {
		a.logger.Error("publish rejected: credential lookup failed", "stream_path", streamPath, "error", err)
		return model.DecisionReject
	}
	if rec == nil {
		a.logger.Info("publish rejected: unknown stream key", "stream_path", streamPath)
		return model.DecisionReject
	}

	if a.urls != nil {
		if want := a.urls.Derive(rec.Credential); rec.IngestURL != want {
			a.logger.Warn("stored ingest url does not match derived url",
				"id", rec.ID,
				"stored", rec.IngestURL,
				"derived", want,
			)
		}
	}

	a.logger.Info("publish accepted", "stream_path", streamPath, "identity", rec.Identity)
	return model.DecisionAccept
}

// AuthorizePublish decides on a publish attempt and, on rejection, tells the
// gateway to terminate the session. A failed termination is logged; the
// decision stays Reject.
func (a *PublishAuthorizer) AuthorizePublish(ctx context.Context, sessionID, streamPath string) model.Decision {
	decision := a.Authorize(ctx, streamPath)
	if decision.Accepted() {
		return decision
	}

	if a.terminator == nil {
		return decision
	}
	if err := a.terminator.Reject(ctx, sessionID); err != nil {
		a.logger.Error("failed to terminate rejected session", "session_id", sessionID, "error", err)
	}
	return decision
}
