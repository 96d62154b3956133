package handlers

import (
	"net/http"
	"strings"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/store"
)

// updateProfileRequest carries the fields to change; nil fields keep their
// stored value.
type updateProfileRequest struct {
	Username  *string `json:"username"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
}

type profileResponse struct {
	domain.Profile
	// AvatarSrc is AvatarURL resolved to something a browser can load.
	AvatarSrc string `json:"avatar_src"`
}

func renderProfile(p domain.Profile, obj objects.Store) profileResponse {
	return profileResponse{Profile: p, AvatarSrc: objects.AvatarURL(obj, p.AvatarURL)}
}

// GetProfile handles GET /v1/profiles/{username}
func GetProfile(prs store.ProfileStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username, ok := pathParam(w, r, "username")
		if !ok {
			return
		}
		p, err := prs.GetByUsername(r.Context(), strings.ToLower(username))
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderProfile(p, obj))
	}
}

// GetUserProfile handles GET /v1/users/{user_id}/profile
func GetUserProfile(prs store.ProfileStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathParam(w, r, "user_id")
		if !ok {
			return
		}
		p, err := prs.Get(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderProfile(p, obj))
	}
}

// GetMe handles GET /v1/me. A user who never picked a username gets 404.
func GetMe(prs store.ProfileStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		p, err := prs.Get(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderProfile(p, obj))
	}
}

// UpdateMe handles PUT /v1/me. The first call must set a username.
func UpdateMe(prs store.ProfileStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "profiles.update"
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req updateProfileRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		p, err := prs.Get(r.Context(), userID)
		switch {
		case domain.KindOf(err) == domain.KindNotFound:
			p = domain.Profile{ID: userID}
		case err != nil:
			writeError(w, r, err)
			return
		}

		if req.Username != nil {
			p.Username = strings.ToLower(strings.TrimSpace(*req.Username))
		}
		if err := domain.ValidateUsername(op, p.Username); err != nil {
			writeError(w, r, err)
			return
		}
		if req.Bio != nil {
			bio, err := domain.CleanBio(op, *req.Bio)
			if err != nil {
				writeError(w, r, err)
				return
			}
			p.Bio = bio
		}
		if req.AvatarURL != nil {
			p.AvatarURL = strings.TrimSpace(*req.AvatarURL)
		}

		saved, err := prs.Upsert(r.Context(), p)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderProfile(saved, obj))
	}
}
