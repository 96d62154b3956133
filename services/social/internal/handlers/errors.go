package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/internal/platform/auth"
	"github.com/example/orbit/internal/platform/httpserver"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/store"
)

const maxJSONBody = 1 << 20

// writeError maps a domain error kind onto the JSON error envelope.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	msg := publicMessage(err)
	switch {
	case errors.Is(err, store.ErrNotFoundOrForbidden):
		api.Forbidden(w, "FORBIDDEN", "not found or not the author", rid)
		return
	case errors.Is(err, store.ErrUsernameTaken):
		api.BadRequest(w, "USERNAME_TAKEN", msg, rid, nil)
		return
	}
	switch domain.KindOf(err) {
	case domain.KindNotFound:
		api.NotFound(w, "NOT_FOUND", msg, rid)
	case domain.KindUnauthorized:
		api.Unauthorized(w, "UNAUTHORIZED", msg, rid)
	case domain.KindValidation:
		api.BadRequest(w, "VALIDATION_FAILED", msg, rid, nil)
	case domain.KindConflict:
		api.Conflict(w, "CONFLICT", msg, rid, nil)
	default:
		api.Internal(w, rid)
	}
}

func publicMessage(err error) string {
	var e *domain.Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return domain.KindOf(err).String()
}

// currentUser returns the authenticated user or writes 401.
func currentUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok || userID == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", httpserver.RequestIDFromContext(r.Context()))
		return "", false
	}
	return userID, true
}

// pathParam returns a required URL parameter or writes 400.
func pathParam(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		api.BadRequest(w, "MISSING_ID", name+" is required", httpserver.RequestIDFromContext(r.Context()), nil)
		return "", false
	}
	return v, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(v); err != nil {
		api.BadRequest(w, "INVALID_JSON", "invalid JSON", httpserver.RequestIDFromContext(r.Context()), nil)
		return false
	}
	return true
}

func pageFromQuery(r *http.Request) domain.Page {
	q := r.URL.Query()
	var p domain.Page
	if v, err := strconv.Atoi(q.Get("offset")); err == nil {
		p.Offset = v
	}
	if v, err := strconv.Atoi(q.Get("limit")); err == nil {
		p.Limit = v
	}
	return p.Normalize()
}

// clientRef picks the optimistic id a create request carries, from the body
// or from an Idempotency-Key that is itself a temporary id.
func clientRef(r *http.Request, fromBody string) string {
	if domain.IsTempID(fromBody) {
		return fromBody
	}
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); domain.IsTempID(key) {
		return key
	}
	return ""
}
