package httphandler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/application"
	"github.com/ericfisherdev/ingestgate/internal/domain/model"
	"github.com/ericfisherdev/ingestgate/internal/logging"
)

// HookHandler serves the lifecycle callbacks of the Media Ingest Gateway.
type HookHandler struct {
	hooks  *application.HookService
	token  string
	logger *slog.Logger
}

// NewHookHandler creates a HookHandler. When token is non-empty every hook
// call must carry it as a bearer token.
func NewHookHandler(hooks *application.HookService, token string, logger *slog.Logger) *HookHandler {
	return &HookHandler{hooks: hooks, token: strings.TrimSpace(token), logger: logger}
}

// NewHookServeMux creates an http.Handler serving POST /hooks/{event}.
func NewHookServeMux(h *HookHandler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("POST /hooks/{event}", requireBearer(h.token, http.HandlerFunc(h.Handle)))
	return wrap(mux, logger)
}

// Handle dispatches one lifecycle callback. Only pre-publish can answer with
// a rejection.
func (h *HookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	event, ok := model.ParseLifecycleEvent(r.PathValue("event"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown hook event")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var req HookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		if event == model.EventPrePublish {
			h.rejectUndecodable(w, r, body, err)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	decision := h.hooks.Dispatch(r.Context(), model.SessionEvent{
		Event:      event,
		SessionID:  req.SessionID,
		StreamPath: req.StreamPath,
		Args:       req.stringArgs(),
		ReceivedAt: time.Now().UTC(),
	})

	if event != model.EventPrePublish {
		writeJSON(w, http.StatusOK, HookResponse{Code: 0})
		return
	}
	writeDecision(w, decision)
}

// rejectUndecodable handles a pre-publish body that does not decode. When the
// session id can still be read, the publish is dispatched without a stream
// path so the session is rejected and terminated.
func (h *HookHandler) rejectUndecodable(w http.ResponseWriter, r *http.Request, body []byte, decodeErr error) {
	var partial struct {
		SessionID string `json:"sessionId"`
	}
	// A type error elsewhere in the body still fills sessionId.
	_ = json.Unmarshal(body, &partial)
	if strings.TrimSpace(partial.SessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	logging.WithContext(r.Context(), h.logger).Warn("pre-publish body undecodable, rejecting session",
		"session_id", partial.SessionID,
		"error", decodeErr,
	)
	writeDecision(w, h.hooks.Dispatch(r.Context(), model.SessionEvent{
		Event:      model.EventPrePublish,
		SessionID:  partial.SessionID,
		ReceivedAt: time.Now().UTC(),
	}))
}

func writeDecision(w http.ResponseWriter, decision model.Decision) {
	if !decision.Accepted() {
		writeJSON(w, http.StatusForbidden, HookResponse{Code: 1, Decision: string(decision)})
		return
	}
	writeJSON(w, http.StatusOK, HookResponse{Code: 0, Decision: string(decision)})
}
