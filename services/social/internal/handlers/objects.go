package handlers

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/objects"
)

type uploadResponse struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// UploadObject handles POST /v1/objects/{bucket}. The body is the raw file;
// it is stored under the caller's user id.
func UploadObject(obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		bucket, ok := pathParam(w, r, "bucket")
		if !ok {
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, objects.MaxObjectSize))
		if err != nil {
			writeError(w, r, domain.Invalid("objects.put", "file exceeds %d bytes", objects.MaxObjectSize))
			return
		}
		p, err := obj.Put(r.Context(), bucket, userID, data)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, uploadResponse{Path: p, URL: obj.PublicURL(bucket, p)})
	}
}

// GetObject handles GET /v1/objects/{bucket}/*
func GetObject(obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bucket, ok := pathParam(w, r, "bucket")
		if !ok {
			return
		}
		p := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
		if p == "" {
			api.BadRequest(w, "MISSING_PATH", "object path is required", "", nil)
			return
		}
		o, err := obj.Get(r.Context(), bucket, p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", o.ContentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(o.Data)))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(o.Data)
	}
}
