package handlers

import (
	"net/http"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/services/social/internal/store"
)

// FollowCounts handles GET /v1/follows/{user_id}/counts
func FollowCounts(fs store.FollowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathParam(w, r, "user_id")
		if !ok {
			return
		}
		c, err := fs.Counts(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, c)
	}
}

// IsFollower handles GET /v1/follows/{user_id}/followers/{follower_id}:
// 204 when follower_id follows user_id, 404 otherwise.
func IsFollower(fs store.FollowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathParam(w, r, "user_id")
		if !ok {
			return
		}
		followerID, ok := pathParam(w, r, "follower_id")
		if !ok {
			return
		}
		following, err := fs.IsFollowing(r.Context(), followerID, userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if !following {
			api.NotFound(w, "NOT_FOLLOWING", "not following", "")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Follow handles PUT /v1/follows/{user_id}
func Follow(fs store.FollowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := currentUser(w, r)
		if !ok {
			return
		}
		target, ok := pathParam(w, r, "user_id")
		if !ok {
			return
		}
		if err := fs.Follow(r.Context(), me, target); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Unfollow handles DELETE /v1/follows/{user_id}
func Unfollow(fs store.FollowStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, ok := currentUser(w, r)
		if !ok {
			return
		}
		target, ok := pathParam(w, r, "user_id")
		if !ok {
			return
		}
		if err := fs.Unfollow(r.Context(), me, target); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
