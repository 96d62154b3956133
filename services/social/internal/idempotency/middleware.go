package idempotency

import (
	"bytes"
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/internal/platform/auth"
)

const (
	HeaderKey      = "Idempotency-Key"
	HeaderReplayed = "Idempotent-Replayed"
	maxKeyLength   = 200
)

// Middleware replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the authenticated user. Requests without the header
// pass through. A failing store is logged and bypassed.
func Middleware(s Store, log *zap.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(HeaderKey))
			if raw == "" || s == nil {
				next.ServeHTTP(w, r)
				return
			}
			if len(raw) > maxKeyLength {
				api.BadRequest(w, "INVALID_IDEMPOTENCY_KEY", "Idempotency-Key is too long", "", nil)
				return
			}
			userID, _ := auth.UserIDFromContext(r.Context())
			key := userID + ":" + r.Method + ":" + r.URL.Path + ":" + raw

			prior, claimed, err := s.Claim(r.Context(), key)
			if err != nil {
				log.Warn("idempotency: claim failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}
			if prior != nil {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.Header().Set(HeaderReplayed, "true")
				w.WriteHeader(prior.Status)
				_, _ = w.Write(prior.Body)
				return
			}
			if !claimed {
				api.Conflict(w, "REQUEST_IN_PROGRESS", "a request with this Idempotency-Key is still in progress", "", nil)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			// The request context may already be cancelled; the outcome
			// still has to be recorded.
			ctx := context.WithoutCancel(r.Context())
			if rec.status >= 200 && rec.status < 300 {
				err = s.Complete(ctx, key, Response{Status: rec.status, Body: rec.body.Bytes()})
			} else {
				err = s.Release(ctx, key)
			}
			if err != nil {
				log.Warn("idempotency: store outcome failed", zap.Error(err))
			}
		})
	}
}

type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	body        bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	if !r.wroteHeader {
		r.WriteHeader(http.StatusOK)
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
