package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Stores groups the backends one service instance uses.
type Stores struct {
	Comments CommentStore
	Posts    PostStore
	Likes    LikeStore
	Profiles ProfileStore
	Follows  FollowStore
}

// NewInMemory wires the in-memory stores so that deleting a post also
// drops its comments and likes, as the Postgres foreign keys do, and posts
// and comments carry their author's profile, as the Postgres joins do.
func NewInMemory() Stores {
	comments := NewInMemoryCommentStore()
	likes := NewInMemoryLikeStore()
	posts := NewInMemoryPostStore()
	profiles := NewInMemoryProfileStore()
	posts.author = profiles.author
	comments.author = profiles.author
	posts.onDelete = func(postID string) {
		comments.DeleteByPost(postID)
		likes.DeleteByPost(postID)
	}
	likes.exists = func(postID string) bool {
		posts.mu.RLock()
		defer posts.mu.RUnlock()
		_, ok := posts.posts[postID]
		return ok
	}
	return Stores{
		Comments: comments,
		Posts:    posts,
		Likes:    likes,
		Profiles: profiles,
		Follows:  NewInMemoryFollowStore(),
	}
}

func NewPostgres(pool *pgxpool.Pool) Stores {
	return Stores{
		Comments: NewPostgresCommentStore(pool),
		Posts:    NewPostgresPostStore(pool),
		Likes:    NewPostgresLikeStore(pool),
		Profiles: NewPostgresProfileStore(pool),
		Follows:  NewPostgresFollowStore(pool),
	}
}

// Schema is applied with db.Migrate on startup.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS posts (
		id            text PRIMARY KEY DEFAULT gen_random_uuid()::text,
		user_id       text NOT NULL,
		content       text NOT NULL,
		image_url     text NOT NULL DEFAULT '',
		created_at    timestamptz NOT NULL DEFAULT now(),
		likes         integer NOT NULL DEFAULT 0 CHECK (likes >= 0),
		comment_count integer NOT NULL DEFAULT 0 CHECK (comment_count >= 0)
	)`,
	`CREATE INDEX IF NOT EXISTS posts_created_idx ON posts (created_at DESC, id DESC)`,
	`CREATE INDEX IF NOT EXISTS posts_user_created_idx ON posts (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id                text PRIMARY KEY DEFAULT gen_random_uuid()::text,
		post_id           text NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		user_id           text NOT NULL,
		parent_comment_id text REFERENCES comments (id) ON DELETE CASCADE,
		content           text NOT NULL,
		created_at        timestamptz NOT NULL DEFAULT clock_timestamp(),
		updated_at        timestamptz
	)`,
	`CREATE INDEX IF NOT EXISTS comments_post_created_idx ON comments (post_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS likes (
		user_id    text NOT NULL,
		post_id    text NOT NULL REFERENCES posts (id) ON DELETE CASCADE,
		created_at timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (user_id, post_id)
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id         text PRIMARY KEY,
		username   text NOT NULL UNIQUE,
		avatar_url text NOT NULL DEFAULT '',
		bio        text NOT NULL DEFAULT '',
		updated_at timestamptz NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS follows (
		follower_id  text NOT NULL,
		following_id text NOT NULL,
		created_at   timestamptz NOT NULL DEFAULT now(),
		PRIMARY KEY (follower_id, following_id),
		CHECK (follower_id <> following_id)
	)`,
	`CREATE TABLE IF NOT EXISTS idempotency_keys (
		key        text PRIMARY KEY,
		response   bytea,
		created_at timestamptz NOT NULL DEFAULT now()
	)`,
}
