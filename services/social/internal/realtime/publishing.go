package realtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/store"
)

// Emitter turns store writes into published changes. Publish failures are
// logged and never fail the write. A nil Publisher makes it a no-op.
type Emitter struct {
	Publisher Publisher
	Logger    *zap.Logger
}

func (e Emitter) emit(ctx context.Context, table string, typ ChangeType, row any, keys map[string]string) {
	if e.Publisher == nil {
		return
	}
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}
	c, err := NewChange(table, typ, row, keys)
	if err != nil {
		log.Warn("realtime: encode change failed", zap.String("table", table), zap.Error(err))
		return
	}
	if err := e.Publisher.Publish(ctx, c); err != nil {
		log.Warn("realtime: publish failed", zap.String("table", table), zap.String("type", string(typ)), zap.Error(err))
	}
}

func commentKeys(c domain.Comment) map[string]string {
	return map[string]string{"id": c.ID, "post_id": c.PostID, "user_id": c.UserID}
}

func postKeys(p domain.Post) map[string]string {
	return map[string]string{"id": p.ID, "user_id": p.UserID}
}

// PublishingCommentStore publishes a change for every successful write.
type PublishingCommentStore struct {
	store.CommentStore
	Emitter
}

// Create keeps c.ClientRef on the returned and published row so that the
// author's views can match the echo with their optimistic record.
func (s PublishingCommentStore) Create(ctx context.Context, c domain.Comment) (domain.Comment, error) {
	out, err := s.CommentStore.Create(ctx, c)
	if err != nil {
		return out, err
	}
	out.ClientRef = c.ClientRef
	s.emit(ctx, TableComments, Insert, out, commentKeys(out))
	return out, nil
}

func (s PublishingCommentStore) UpdateContent(ctx context.Context, id, userID, content string) (domain.Comment, error) {
	out, err := s.CommentStore.UpdateContent(ctx, id, userID, content)
	if err != nil {
		return out, err
	}
	s.emit(ctx, TableComments, Update, out, commentKeys(out))
	return out, nil
}

func (s PublishingCommentStore) Delete(ctx context.Context, id, userID string) (domain.Comment, error) {
	out, err := s.CommentStore.Delete(ctx, id, userID)
	if err != nil {
		return out, err
	}
	s.emit(ctx, TableComments, Delete, out, commentKeys(out))
	return out, nil
}

// PublishingPostStore publishes a change for every successful write.
// Counter writes are published as updates.
type PublishingPostStore struct {
	store.PostStore
	Emitter
}

func (s PublishingPostStore) Create(ctx context.Context, p domain.Post) (domain.Post, error) {
	out, err := s.PostStore.Create(ctx, p)
	if err != nil {
		return out, err
	}
	out.ClientRef = p.ClientRef
	s.emit(ctx, TablePosts, Insert, out, postKeys(out))
	return out, nil
}

func (s PublishingPostStore) updated(ctx context.Context, out domain.Post, err error) (domain.Post, error) {
	if err != nil {
		return out, err
	}
	s.emit(ctx, TablePosts, Update, out, postKeys(out))
	return out, nil
}

func (s PublishingPostStore) UpdateContent(ctx context.Context, id, userID, content string) (domain.Post, error) {
	out, err := s.PostStore.UpdateContent(ctx, id, userID, content)
	return s.updated(ctx, out, err)
}

func (s PublishingPostStore) AdjustCommentCount(ctx context.Context, id string, delta int) (domain.Post, error) {
	out, err := s.PostStore.AdjustCommentCount(ctx, id, delta)
	return s.updated(ctx, out, err)
}

func (s PublishingPostStore) SetLikes(ctx context.Context, id string, likes int) (domain.Post, error) {
	out, err := s.PostStore.SetLikes(ctx, id, likes)
	return s.updated(ctx, out, err)
}

func (s PublishingPostStore) Delete(ctx context.Context, id, userID string) (domain.Post, error) {
	out, err := s.PostStore.Delete(ctx, id, userID)
	if err != nil {
		return out, err
	}
	s.emit(ctx, TablePosts, Delete, out, postKeys(out))
	return out, nil
}

// PublishingLikeStore publishes like membership changes.
type PublishingLikeStore struct {
	store.LikeStore
	Emitter
}

func (s PublishingLikeStore) Add(ctx context.Context, userID, postID string) error {
	if err := s.LikeStore.Add(ctx, userID, postID); err != nil {
		return err
	}
	l := domain.Like{UserID: userID, PostID: postID}
	s.emit(ctx, TableLikes, Insert, l, map[string]string{"user_id": userID, "post_id": postID})
	return nil
}

func (s PublishingLikeStore) Remove(ctx context.Context, userID, postID string) error {
	if err := s.LikeStore.Remove(ctx, userID, postID); err != nil {
		return err
	}
	l := domain.Like{UserID: userID, PostID: postID}
	s.emit(ctx, TableLikes, Delete, l, map[string]string{"user_id": userID, "post_id": postID})
	return nil
}

// PublishingFollowStore publishes follow changes.
type PublishingFollowStore struct {
	store.FollowStore
	Emitter
}

func followKeys(f domain.Follow) map[string]string {
	return map[string]string{"follower_id": f.FollowerID, "following_id": f.FollowingID}
}

func (s PublishingFollowStore) Follow(ctx context.Context, followerID, followingID string) error {
	if err := s.FollowStore.Follow(ctx, followerID, followingID); err != nil {
		return err
	}
	f := domain.Follow{FollowerID: followerID, FollowingID: followingID}
	s.emit(ctx, TableFollows, Insert, f, followKeys(f))
	return nil
}

func (s PublishingFollowStore) Unfollow(ctx context.Context, followerID, followingID string) error {
	if err := s.FollowStore.Unfollow(ctx, followerID, followingID); err != nil {
		return err
	}
	f := domain.Follow{FollowerID: followerID, FollowingID: followingID}
	s.emit(ctx, TableFollows, Delete, f, followKeys(f))
	return nil
}

// PublishingProfileStore publishes profile upserts as updates.
type PublishingProfileStore struct {
	store.ProfileStore
	Emitter
}

func (s PublishingProfileStore) Upsert(ctx context.Context, p domain.Profile) (domain.Profile, error) {
	out, err := s.ProfileStore.Upsert(ctx, p)
	if err != nil {
		return out, err
	}
	s.emit(ctx, TableProfiles, Update, out, map[string]string{"id": out.ID, "username": out.Username})
	return out, nil
}

// Publishing wraps every store in st.
func Publishing(st store.Stores, e Emitter) store.Stores {
	return store.Stores{
		Comments: PublishingCommentStore{CommentStore: st.Comments, Emitter: e},
		Posts:    PublishingPostStore{PostStore: st.Posts, Emitter: e},
		Likes:    PublishingLikeStore{LikeStore: st.Likes, Emitter: e},
		Profiles: PublishingProfileStore{ProfileStore: st.Profiles, Emitter: e},
		Follows:  PublishingFollowStore{FollowStore: st.Follows, Emitter: e},
	}
}
