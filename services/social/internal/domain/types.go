package domain

import (
	"strings"
	"time"
)

// TempIDPrefix marks ids generated client-side for optimistic records.
const TempIDPrefix = "tmp-"

// IsTempID reports whether id was generated for a record not yet confirmed.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, TempIDPrefix)
}

// Comment is one comment row. Replies are never stored; the thread package
// derives them from ParentID.
type Comment struct {
	ID        string     `json:"id"`
	PostID    string     `json:"post_id"`
	UserID    string     `json:"user_id"`
	ParentID  *string    `json:"parent_comment_id,omitempty"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
	Author    *Author    `json:"author,omitempty"`

	// ClientRef is the temporary id of the optimistic record that produced
	// this row. It travels with the creating request and its realtime echo
	// and is not persisted.
	ClientRef string `json:"client_ref,omitempty"`
}

// Parent returns the parent id or "" for top-level comments.
func (c Comment) Parent() string {
	if c.ParentID == nil {
		return ""
	}
	return *c.ParentID
}

type Post struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Content      string    `json:"content"`
	ImageURL     string    `json:"image_url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Likes        int       `json:"likes"`
	CommentCount int       `json:"comment_count"`
	Author       *Author   `json:"author,omitempty"`

	ClientRef string `json:"client_ref,omitempty"`
}

// Author is the profile shown next to a post or comment. Stores return the
// stored avatar value; the HTTP API resolves it to a loadable URL. It is nil
// when the user has no profile yet.
type Author struct {
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// AuthorOf returns the public part of p.
func AuthorOf(p Profile) *Author {
	return &Author{Username: p.Username, AvatarURL: p.AvatarURL}
}

// Like marks that UserID liked PostID. At most one per pair.
type Like struct {
	UserID string `json:"user_id"`
	PostID string `json:"post_id"`
}

type Profile struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Bio       string `json:"bio,omitempty"`
}

type Follow struct {
	FollowerID  string `json:"follower_id"`
	FollowingID string `json:"following_id"`
}

type FollowCounts struct {
	Followers int `json:"followers"`
	Following int `json:"following"`
}

// User is the authenticated identity behind a session.
type User struct {
	ID string `json:"id"`
}

// Page is an offset window over a sorted result.
type Page struct {
	Offset int
	Limit  int
}

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Normalize clamps the window to sane bounds.
func (p Page) Normalize() Page {
	if p.Offset < 0 {
		p.Offset = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}
