package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/example/orbit/services/social/internal/domain"
)

// HeaderIdempotencyKey is sent with creates; the temp id of the optimistic
// record doubles as the key.
const HeaderIdempotencyKey = "Idempotency-Key"

func escape(id string) string { return url.PathEscape(id) }

func pageQuery(q url.Values, page domain.Page) string {
	page = page.Normalize()
	q.Set("offset", strconv.Itoa(page.Offset))
	q.Set("limit", strconv.Itoa(page.Limit))
	return q.Encode()
}

// Comments implements store.CommentStore.
type Comments struct{ c *Client }

func (s Comments) Get(ctx context.Context, id string) (domain.Comment, error) {
	var out domain.Comment
	err := s.c.doJSON(ctx, "comments.get", http.MethodGet, "/v1/comments/"+escape(id), nil, &out)
	return out, err
}

func (s Comments) ListByPost(ctx context.Context, postID string) ([]domain.Comment, error) {
	var out struct {
		Comments []domain.Comment `json:"comments"`
	}
	err := s.c.doJSON(ctx, "comments.list", http.MethodGet, "/v1/posts/"+escape(postID)+"/comments", nil, &out)
	return out.Comments, err
}

type createCommentRequest struct {
	Content   string  `json:"content"`
	ParentID  *string `json:"parent_comment_id,omitempty"`
	ClientRef string  `json:"client_ref,omitempty"`
}

func (s Comments) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	const op = "comments.create"
	var out domain.Comment
	cl, err := jsonCall(op, http.MethodPost, "/v1/posts/"+escape(c.PostID)+"/comments",
		createCommentRequest{Content: c.Content, ParentID: c.ParentID, ClientRef: c.ClientRef}, &out)
	if err != nil {
		return out, err
	}
	if c.ClientRef != "" {
		cl.headers = map[string]string{HeaderIdempotencyKey: c.ClientRef}
	}
	err = s.c.do(ctx, cl)
	return out, err
}

type contentRequest struct {
	Content string `json:"content"`
}

func (s Comments) UpdateContent(ctx context.Context, id, _ string, content string) (domain.Comment, error) {
	var out domain.Comment
	err := s.c.doJSON(ctx, "comments.update", http.MethodPut, "/v1/comments/"+escape(id), contentRequest{Content: content}, &out)
	return out, err
}

// Delete returns only the id; the API answers 204.
func (s Comments) Delete(ctx context.Context, id, _ string) (domain.Comment, error) {
	err := s.c.doJSON(ctx, "comments.delete", http.MethodDelete, "/v1/comments/"+escape(id), nil, nil)
	return domain.Comment{ID: id}, err
}

// Posts implements store.PostStore.
type Posts struct{ c *Client }

type postsResponse struct {
	Posts []domain.Post `json:"posts"`
}

func (s Posts) List(ctx context.Context, page domain.Page) ([]domain.Post, error) {
	var out postsResponse
	err := s.c.doJSON(ctx, "posts.list", http.MethodGet, "/v1/posts?"+pageQuery(url.Values{}, page), nil, &out)
	return out.Posts, err
}

func (s Posts) ListByAuthor(ctx context.Context, userID string, page domain.Page) ([]domain.Post, error) {
	var out postsResponse
	q := pageQuery(url.Values{"user_id": {userID}}, page)
	err := s.c.doJSON(ctx, "posts.list", http.MethodGet, "/v1/posts?"+q, nil, &out)
	return out.Posts, err
}

func (s Posts) CountByAuthor(ctx context.Context, userID string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := s.c.doJSON(ctx, "posts.count", http.MethodGet, "/v1/users/"+escape(userID)+"/post-count", nil, &out)
	return out.Count, err
}

func (s Posts) Get(ctx context.Context, id string) (domain.Post, error) {
	var out domain.Post
	err := s.c.doJSON(ctx, "posts.get", http.MethodGet, "/v1/posts/"+escape(id), nil, &out)
	return out, err
}

type createPostRequest struct {
	Content   string `json:"content"`
	ImageURL  string `json:"image_url,omitempty"`
	ClientRef string `json:"client_ref,omitempty"`
}

func (s Posts) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	const op = "posts.create"
	var out domain.Post
	cl, err := jsonCall(op, http.MethodPost, "/v1/posts",
		createPostRequest{Content: p.Content, ImageURL: p.ImageURL, ClientRef: p.ClientRef}, &out)
	if err != nil {
		return out, err
	}
	if p.ClientRef != "" {
		cl.headers = map[string]string{HeaderIdempotencyKey: p.ClientRef}
	}
	err = s.c.do(ctx, cl)
	return out, err
}

func (s Posts) UpdateContent(ctx context.Context, id, _ string, content string) (domain.Post, error) {
	var out domain.Post
	err := s.c.doJSON(ctx, "posts.update", http.MethodPut, "/v1/posts/"+escape(id), contentRequest{Content: content}, &out)
	return out, err
}

func (s Posts) Delete(ctx context.Context, id, _ string) (domain.Post, error) {
	err := s.c.doJSON(ctx, "posts.delete", http.MethodDelete, "/v1/posts/"+escape(id), nil, nil)
	return domain.Post{ID: id}, err
}

func (s Posts) AdjustCommentCount(ctx context.Context, id string, delta int) (domain.Post, error) {
	var out domain.Post
	in := struct {
		CommentDelta int `json:"comment_delta"`
	}{delta}
	err := s.c.doJSON(ctx, "posts.counters", http.MethodPatch, "/v1/posts/"+escape(id)+"/counters", in, &out)
	return out, err
}

func (s Posts) SetLikes(ctx context.Context, id string, likes int) (domain.Post, error) {
	var out domain.Post
	in := struct {
		Likes int `json:"likes"`
	}{likes}
	err := s.c.doJSON(ctx, "posts.likes", http.MethodPut, "/v1/posts/"+escape(id)+"/likes", in, &out)
	return out, err
}

// Likes implements store.LikeStore. The API takes the user from the token,
// so userID only selects whose likes ListByUser returns.
type Likes struct{ c *Client }

func (s Likes) Add(ctx context.Context, _, postID string) error {
	return s.c.doJSON(ctx, "likes.add", http.MethodPut, "/v1/likes/"+escape(postID), nil, nil)
}

func (s Likes) Remove(ctx context.Context, _, postID string) error {
	return s.c.doJSON(ctx, "likes.remove", http.MethodDelete, "/v1/likes/"+escape(postID), nil, nil)
}

func (s Likes) ListByUser(ctx context.Context, userID string) ([]string, error) {
	var out struct {
		PostIDs []string `json:"post_ids"`
	}
	q := url.Values{"user_id": {userID}}.Encode()
	err := s.c.doJSON(ctx, "likes.list", http.MethodGet, "/v1/likes?"+q, nil, &out)
	return out.PostIDs, err
}

// Profiles implements store.ProfileStore.
type Profiles struct{ c *Client }

func (s Profiles) Get(ctx context.Context, userID string) (domain.Profile, error) {
	var out domain.Profile
	err := s.c.doJSON(ctx, "profiles.get", http.MethodGet, "/v1/users/"+escape(userID)+"/profile", nil, &out)
	return out, err
}

func (s Profiles) GetByUsername(ctx context.Context, username string) (domain.Profile, error) {
	var out domain.Profile
	err := s.c.doJSON(ctx, "profiles.get", http.MethodGet, "/v1/profiles/"+escape(username), nil, &out)
	return out, err
}

// Upsert writes every field of p for the token's user.
func (s Profiles) Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	var out domain.Profile
	in := struct {
		Username  *string `json:"username"`
		Bio       *string `json:"bio"`
		AvatarURL *string `json:"avatar_url"`
	}{&p.Username, &p.Bio, &p.AvatarURL}
	err := s.c.doJSON(ctx, "profiles.update", http.MethodPut, "/v1/me", in, &out)
	return out, err
}

// Follows implements store.FollowStore for the token's user.
type Follows struct{ c *Client }

func (s Follows) Follow(ctx context.Context, _, followingID string) error {
	return s.c.doJSON(ctx, "follows.follow", http.MethodPut, "/v1/follows/"+escape(followingID), nil, nil)
}

func (s Follows) Unfollow(ctx context.Context, _, followingID string) error {
	return s.c.doJSON(ctx, "follows.unfollow", http.MethodDelete, "/v1/follows/"+escape(followingID), nil, nil)
}

func (s Follows) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	err := s.c.doJSON(ctx, "follows.check", http.MethodGet,
		"/v1/follows/"+escape(followingID)+"/followers/"+escape(followerID), nil, nil)
	if err == nil {
		return true, nil
	}
	if domain.KindOf(err) == domain.KindNotFound {
		return false, nil
	}
	return false, err
}

func (s Follows) Counts(ctx context.Context, userID string) (domain.FollowCounts, error) {
	var out domain.FollowCounts
	err := s.c.doJSON(ctx, "follows.counts", http.MethodGet, "/v1/follows/"+escape(userID)+"/counts", nil, &out)
	return out, err
}
