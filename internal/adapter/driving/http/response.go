package httphandler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ericfisherdev/ingestgate/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// CreateUserRequest is the JSON body for the create-user endpoint. UserID is
// the legacy field name and is used only when Identity is empty.
type CreateUserRequest struct {
	Identity string `json:"identity"`
	UserID   string `json:"userId"`
}

func (r CreateUserRequest) identity() string {
	if strings.TrimSpace(r.Identity) != "" {
		return r.Identity
	}
	return r.UserID
}

// UserResponse is the JSON representation of an issued credential.
type UserResponse struct {
	ID         string `json:"id"`
	Identity   string `json:"identity"`
	Credential string `json:"credential"`
	IngestURL  string `json:"ingestURL"`
	CreatedAt  string `json:"createdAt"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// HookRequest is the body the gateway posts to every hook endpoint. Args
// values may be any JSON type.
type HookRequest struct {
	SessionID  string         `json:"sessionId"`
	StreamPath string         `json:"streamPath"`
	Args       map[string]any `json:"args"`
}

// stringArgs flattens Args for logging and event publishing. Non-string
// values keep their JSON encoding.
func (r HookRequest) stringArgs() map[string]string {
	if len(r.Args) == 0 {
		return nil
	}
	out := make(map[string]string, len(r.Args))
	for k, v := range r.Args {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		data, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = string(data)
	}
	return out
}

// HookResponse answers a hook call. Code 0 lets the session proceed.
type HookResponse struct {
	Code     int    `json:"code"`
	Decision string `json:"decision,omitempty"`
}

// toUserResponse converts a domain UserCredential to its JSON representation.
func toUserResponse(c model.UserCredential) UserResponse {
	return UserResponse{
		ID:         c.ID,
		Identity:   c.Identity,
		Credential: c.Credential,
		IngestURL:  c.IngestURL,
		CreatedAt:  c.CreatedAt.UTC().Format(time.RFC3339),
	}
}
