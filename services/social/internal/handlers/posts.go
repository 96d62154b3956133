package handlers

import (
	"net/http"
	"strings"

	"github.com/example/orbit/internal/platform/api"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/richtext"
	"github.com/example/orbit/services/social/internal/store"
)

type createPostRequest struct {
	Content   string `json:"content"`
	ImageURL  string `json:"image_url,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
}

type updatePostRequest struct {
	Content string `json:"content"`
}

type adjustCountersRequest struct {
	CommentDelta int `json:"comment_delta"`
}

type setLikesRequest struct {
	Likes *int `json:"likes"`
}

type postResponse struct {
	domain.Post
	ContentHTML string `json:"content_html"`
}

type postsResponse struct {
	Posts  []postResponse `json:"posts"`
	Offset int            `json:"offset"`
	Limit  int            `json:"limit"`
}

func renderPost(obj objects.Store, p domain.Post) postResponse {
	p.Author = resolveAuthor(obj, p.Author)
	return postResponse{Post: p, ContentHTML: richtext.HTML(p.Content)}
}

// resolveAuthor returns a copy of a with its avatar resolved to a URL a
// browser can load.
func resolveAuthor(obj objects.Store, a *domain.Author) *domain.Author {
	if a == nil {
		return nil
	}
	out := *a
	out.AvatarURL = objects.AvatarURL(obj, a.AvatarURL)
	return &out
}

// ListPosts handles GET /v1/posts?offset=&limit=&user_id=, newest first.
func ListPosts(ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := pageFromQuery(r)
		var (
			list []domain.Post
			err  error
		)
		if author := strings.TrimSpace(r.URL.Query().Get("user_id")); author != "" {
			list, err = ps.ListByAuthor(r.Context(), author, page)
		} else {
			list, err = ps.List(r.Context(), page)
		}
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]postResponse, 0, len(list))
		for _, p := range list {
			out = append(out, renderPost(obj, p))
		}
		api.WriteJSON(w, http.StatusOK, postsResponse{Posts: out, Offset: page.Offset, Limit: page.Limit})
	}
}

type postCountResponse struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count"`
}

// CountPosts handles GET /v1/users/{user_id}/post-count
func CountPosts(ps store.PostStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathParam(w, r, "user_id")
		if !ok {
			return
		}
		n, err := ps.CountByAuthor(r.Context(), userID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, postCountResponse{UserID: userID, Count: n})
	}
}

// GetPost handles GET /v1/posts/{post_id}
func GetPost(ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		p, err := ps.Get(r.Context(), postID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderPost(obj, p))
	}
}

// CreatePost handles POST /v1/posts
func CreatePost(ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "posts.create"
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		var req createPostRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		content, err := domain.CleanContent(op, req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		image := strings.TrimSpace(req.ImageURL)
		if strings.HasPrefix(strings.ToLower(image), "javascript:") {
			writeError(w, r, domain.Invalid(op, "invalid image_url"))
			return
		}

		created, err := ps.Create(r.Context(), domain.Post{
			UserID:    userID,
			Content:   content,
			ImageURL:  image,
			ClientRef: clientRef(r, req.ClientRef),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, renderPost(obj, created))
	}
}

// UpdatePost handles PUT /v1/posts/{post_id}
func UpdatePost(ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		var req updatePostRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		content, err := domain.CleanContent("posts.update", req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		updated, err := ps.UpdateContent(r.Context(), postID, userID, content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderPost(obj, updated))
	}
}

// DeletePost handles DELETE /v1/posts/{post_id}
func DeletePost(ps store.PostStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		if _, err := ps.Delete(r.Context(), postID, userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// AdjustCounters handles PATCH /v1/posts/{post_id}/counters.
// Views call it once per comment they add (+1) or explicitly delete (-1).
func AdjustCounters(ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(w, r); !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		var req adjustCountersRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.CommentDelta != 1 && req.CommentDelta != -1 {
			writeError(w, r, domain.Invalid("posts.counters", "comment_delta must be 1 or -1"))
			return
		}
		p, err := ps.AdjustCommentCount(r.Context(), postID, req.CommentDelta)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderPost(obj, p))
	}
}

// SetLikes handles PUT /v1/posts/{post_id}/likes with the like count the
// client computed from a fresh read. One toggle moves the count by one, so
// values further from the stored count are rejected.
func SetLikes(ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := currentUser(w, r); !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		var req setLikesRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Likes == nil || *req.Likes < 0 {
			writeError(w, r, domain.Invalid("posts.likes", "likes must be a non-negative number"))
			return
		}
		current, err := ps.Get(r.Context(), postID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if d := *req.Likes - current.Likes; d > 1 || d < -1 {
			writeError(w, r, domain.Invalid("posts.likes", "likes may only change by one from %d", current.Likes))
			return
		}
		p, err := ps.SetLikes(r.Context(), postID, *req.Likes)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderPost(obj, p))
	}
}
