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

type createCommentRequest struct {
	Content   string  `json:"content"`
	ParentID  *string `json:"parent_comment_id,omitempty"`
	ClientRef string  `json:"client_ref,omitempty"`
}

type updateCommentRequest struct {
	Content string `json:"content"`
}

type commentResponse struct {
	domain.Comment
	ContentHTML string `json:"content_html"`
}

type commentsResponse struct {
	Comments []commentResponse `json:"comments"`
}

func renderComment(obj objects.Store, c domain.Comment) commentResponse {
	c.Author = resolveAuthor(obj, c.Author)
	return commentResponse{Comment: c, ContentHTML: richtext.HTML(c.Content)}
}

// ListComments handles GET /v1/posts/{post_id}/comments.
// Comments are flat and ordered by created_at ascending.
func ListComments(cs store.CommentStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}
		list, err := cs.ListByPost(r.Context(), postID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		out := make([]commentResponse, 0, len(list))
		for _, c := range list {
			out = append(out, renderComment(obj, c))
		}
		api.WriteJSON(w, http.StatusOK, commentsResponse{Comments: out})
	}
}

// GetComment handles GET /v1/comments/{comment_id}
func GetComment(cs store.CommentStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		commentID, ok := pathParam(w, r, "comment_id")
		if !ok {
			return
		}
		c, err := cs.Get(r.Context(), commentID)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderComment(obj, c))
	}
}

// CreateComment handles POST /v1/posts/{post_id}/comments
func CreateComment(cs store.CommentStore, ps store.PostStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "comments.create"
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		postID, ok := pathParam(w, r, "post_id")
		if !ok {
			return
		}

		var req createCommentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		content, err := domain.CleanContent(op, req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.ParentID != nil {
			pid := strings.TrimSpace(*req.ParentID)
			switch {
			case pid == "":
				req.ParentID = nil
			case domain.IsTempID(pid):
				writeError(w, r, domain.Invalid(op, "cannot reply to a comment that is still being posted"))
				return
			default:
				req.ParentID = &pid
			}
		}

		if _, err := ps.Get(r.Context(), postID); err != nil {
			writeError(w, r, err)
			return
		}

		created, err := cs.Create(r.Context(), domain.Comment{
			PostID:    postID,
			UserID:    userID,
			ParentID:  req.ParentID,
			Content:   content,
			ClientRef: clientRef(r, req.ClientRef),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusCreated, renderComment(obj, created))
	}
}

// UpdateComment handles PUT /v1/comments/{comment_id}
func UpdateComment(cs store.CommentStore, obj objects.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		commentID, ok := pathParam(w, r, "comment_id")
		if !ok {
			return
		}

		var req updateCommentRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		content, err := domain.CleanContent("comments.update", req.Content)
		if err != nil {
			writeError(w, r, err)
			return
		}

		updated, err := cs.UpdateContent(r.Context(), commentID, userID, content)
		if err != nil {
			writeError(w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, renderComment(obj, updated))
	}
}

// DeleteComment handles DELETE /v1/comments/{comment_id}.
// Replies are removed with the comment.
func DeleteComment(cs store.CommentStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := currentUser(w, r)
		if !ok {
			return
		}
		commentID, ok := pathParam(w, r, "comment_id")
		if !ok {
			return
		}

		if _, err := cs.Delete(r.Context(), commentID, userID); err != nil {
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
