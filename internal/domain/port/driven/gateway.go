package driven

import (
	"context"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
)

// SessionTerminator is the Media Ingest Gateway's session-reject primitive.
// The gateway admits a session unless told otherwise, so every rejected
// publish attempt must be reported through Reject.
type SessionTerminator interface {
	Reject(ctx context.Context, sessionID string) error
}

// EventPublisher forwards gateway lifecycle notifications to an external
// observer. Publishing is best-effort and never gates a session.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SessionEvent) error
}
