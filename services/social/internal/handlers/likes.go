package handlers

import (
	"net/http"
	"strings"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/internal/platform/auth"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/store"
)

type likesResponse struct {
	UserID  string   `json:"user_id"`
	PostIDs []string `json:"post_ids"`
}

// ListLikes handles GET /v1/likes?user_id=. Without user_id it lists the
// caller's likes.
func ListLikes(ls store.LikeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
		if userID == "" {
			uid, ok := auth.UserIDFromContext(r.Context())
			if !ok || uid == "" {
				writeError(w, r, domain.Invalid("likes.list", "user_id is required"))
				return
			}
			userID = uid
		}
		ids, err := ls.ListByUser(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, likesResponse{UserID: userID, PostIDs: ids})
	}
}

// AddLike handles PUT /v1/likes/{post_id}. Liking twice is a no-op.
func AddLike(ls store.LikeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		if err := ls.Add(r.Context(), userID, postID); err != nil {
			if err == store.ErrNotFoundOrForbidden {
				api.NotFound(w, "NOT_FOUND", "post not found", "")
				return
			}
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemoveLike handles DELETE /v1/likes/{post_id}
func RemoveLike(ls store.LikeStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		if err := ls.Remove(r.Context(), userID, postID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
