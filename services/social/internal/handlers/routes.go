package handlers

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/orbit/internal/platform/auth"
	"github.com/example/orbit/services/social/internal/idempotency"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/store"
)

// Deps are the backends the HTTP API serves.
type Deps struct {
	Stores      store.Stores
	Objects     objects.Store
	Idempotency idempotency.Store
	Verifier    auth.JWTVerifier
	Logger      *zap.Logger
}

// Mount registers the /v1 API on r.
func Mount(r chi.Router, d Deps) {
	st := d.Stores

	// Public reads; a valid token is attached when present.
	r.Group(func(r chi.Router) {
		r.Use(auth.OptionalUser(d.Verifier))
		r.Get("/v1/posts", ListPosts(st.Posts, d.Objects))
		r.Get("/v1/posts/{post_id}", GetPost(st.Posts, d.Objects))
		r.Get("/v1/posts/{post_id}/comments", ListComments(st.Comments, d.Objects))
		r.Get("/v1/comments/{comment_id}", GetComment(st.Comments, d.Objects))
		r.Get("/v1/likes", ListLikes(st.Likes))
		r.Get("/v1/profiles/{username}", GetProfile(st.Profiles, d.Objects))
		r.Get("/v1/users/{user_id}/profile", GetUserProfile(st.Profiles, d.Objects))
		r.Get("/v1/users/{user_id}/post-count", CountPosts(st.Posts))
		r.Get("/v1/follows/{user_id}/counts", FollowCounts(st.Follows))
		r.Get("/v1/follows/{user_id}/followers/{follower_id}", IsFollower(st.Follows))
		r.Get("/v1/objects/{bucket}/*", GetObject(d.Objects))
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(d.Verifier))

		r.Group(func(r chi.Router) {
			r.Use(idempotency.Middleware(d.Idempotency, d.Logger))
			r.Post("/v1/posts", CreatePost(st.Posts, d.Objects))
			r.Post("/v1/posts/{post_id}/comments", CreateComment(st.Comments, st.Posts, d.Objects))
		})

		r.Put("/v1/posts/{post_id}", UpdatePost(st.Posts, d.Objects))
		r.Delete("/v1/posts/{post_id}", DeletePost(st.Posts))
		r.Patch("/v1/posts/{post_id}/counters", AdjustCounters(st.Posts, d.Objects))
		r.Put("/v1/posts/{post_id}/likes", SetLikes(st.Posts, d.Objects))

		r.Put("/v1/comments/{comment_id}", UpdateComment(st.Comments, d.Objects))
		r.Delete("/v1/comments/{comment_id}", DeleteComment(st.Comments))

		r.Put("/v1/likes/{post_id}", AddLike(st.Likes))
		r.Delete("/v1/likes/{post_id}", RemoveLike(st.Likes))

		r.Get("/v1/me", GetMe(st.Profiles, d.Objects))
		r.Put("/v1/me", UpdateMe(st.Profiles, d.Objects))

		r.Put("/v1/follows/{user_id}", Follow(st.Follows))
		r.Delete("/v1/follows/{user_id}", Unfollow(st.Follows))

		r.Post("/v1/objects/{bucket}", UploadObject(d.Objects))
	})
}
