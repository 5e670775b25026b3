package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/domain/port/driven"
)

// IngestHooks is the interface the Media Ingest Gateway drives, one method per
// session lifecycle point. PrePublish is the only gate: the gateway must wait
// for it before forwarding media. Every other method is observational.
type IngestHooks interface {
	PreConnect(ctx context.Context, ev model.SessionEvent)
	PostConnect(ctx context.Context, ev model.SessionEvent)
	DoneConnect(ctx context.Context, ev model.SessionEvent)
	PrePublish(ctx context.Context, ev model.SessionEvent) model.Decision
	PostPublish(ctx context.Context, ev model.SessionEvent)
	DonePublish(ctx context.Context, ev model.SessionEvent)
	PrePlay(ctx context.Context, ev model.SessionEvent)
	PostPlay(ctx context.Context, ev model.SessionEvent)
	DonePlay(ctx context.Context, ev model.SessionEvent)
}

// Compile-time interface satisfaction check.
var _ IngestHooks = (*HookService)(nil)

// HookService implements IngestHooks on top of a PublishAuthorizer. Lifecycle
// notifications are logged and forwarded to an optional EventPublisher in the
// background, so publishing never delays a hook response.
type HookService struct {
	authorizer *PublishAuthorizer
	publisher  driven.EventPublisher
	logger     *slog.Logger
	inflight   sync.WaitGroup
}

// NewHookService creates a HookService. publisher may be nil.
func NewHookService(authorizer *PublishAuthorizer, publisher driven.EventPublisher, logger *slog.Logger) *HookService {
	return &HookService{
		authorizer: authorizer,
		publisher:  publisher,
		logger:     logger,
	}
}

// Dispatch routes ev to the method for its lifecycle point. Known non-gating
// events report DecisionAccept; an unknown event is rejected.
func (s *HookService) Dispatch(ctx context.Context, ev model.SessionEvent) model.Decision {
	switch ev.Event {
	case model.EventPreConnect:
		s.PreConnect(ctx, ev)
	case model.EventPostConnect:
		s.PostConnect(ctx, ev)
	case model.EventDoneConnect:
		s.DoneConnect(ctx, ev)
	case model.EventPrePublish:
		return s.PrePublish(ctx, ev)
	case model.EventPostPublish:
		s.PostPublish(ctx, ev)
	case model.EventDonePublish:
		s.DonePublish(ctx, ev)
	case model.EventPrePlay:
		s.PrePlay(ctx, ev)
	case model.EventPostPlay:
		s.PostPlay(ctx, ev)
	case model.EventDonePlay:
		s.DonePlay(ctx, ev)
	default:
		s.logger.Warn("unknown lifecycle event", "event", ev.Event, "session_id", ev.SessionID)
		return model.DecisionReject
	}
	return model.DecisionAccept
}

func (s *HookService) PreConnect(ctx context.Context, ev model.SessionEvent)  { s.observe(ctx, ev) }
func (s *HookService) PostConnect(ctx context.Context, ev model.SessionEvent) { s.observe(ctx, ev) }
func (s *HookService) DoneConnect(ctx context.Context, ev model.SessionEvent) { s.observe(ctx, ev) }
func (s *HookService) PostPublish(ctx context.Context, ev model.SessionEvent) { s.observe(ctx, ev) }
func (s *HookService) DonePublish(ctx context.Context, ev model.SessionEvent) { s.observe(ctx, ev) }
func (s *HookService) PrePlay(ctx context.Context, ev model.SessionEvent)     { s.observe(ctx, ev) }
func (s *HookService) PostPlay(ctx context.Context, ev model.SessionEvent)    { s.observe(ctx, ev) }
func (s *HookService) DonePlay(ctx context.Context, ev model.SessionEvent)    { s.observe(ctx, ev) }

// PrePublish authorizes the stream synchronously and terminates the session
// on rejection.
func (s *HookService) PrePublish(ctx context.Context, ev model.SessionEvent) model.Decision {
	decision := s.authorizer.AuthorizePublish(ctx, ev.SessionID, ev.StreamPath)
	s.observe(ctx, ev)
	return decision
}

func (s *HookService) observe(ctx context.Context, ev model.SessionEvent) {
	if ev.ReceivedAt.IsZero() {
		ev.ReceivedAt = time.Now().UTC()
	}

	s.logger.Info("gateway event",
		"event", ev.Event,
		"session_id", ev.SessionID,
		"stream_path", ev.StreamPath,
		"args", ev.Args,
	)

	if s.publisher == nil {
		return
	}

	// Detached from the request so a finished hook response does not cancel it.
	pubCtx := context.WithoutCancel(ctx)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		if err := s.publisher.Publish(pubCtx, ev); err != nil {
			s.logger.Warn("failed to publish gateway event", "event", ev.Event, "session_id", ev.SessionID, "error", err)
		}
	}()
}

// Wait blocks until every background publish has finished.
func (s *HookService) Wait() {
	s.inflight.Wait()
}
