package view

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/orbit/internal/platform/retry"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/realtime"
	"github.com/example/orbit/services/social/internal/reconcile"
)

// FeedView is the home feed: posts newest first, loaded in offset windows.
type FeedView struct {
	base
	limit   int
	tracker *reconcile.Tracker
	likes   *reconcile.LikeToggler

	// guarded by base.mu
	posts []domain.Post
	more  bool
}

// OpenFeed loads the first window of limit posts and follows post changes.
func OpenFeed(ctx context.Context, d Deps, limit int) (*FeedView, error) {
	const op = "feed.open"
	user, err := d.viewer(ctx)
	if err != nil {
		return nil, err
	}
	page := domain.Page{Limit: limit}.Normalize()
	v := &FeedView{base: base{d: d, user: user}, limit: page.Limit, tracker: reconcile.NewTracker()}
	v.likes = reconcile.NewLikeToggler(d.Stores.Likes, d.Stores.Posts, v.tracker)

	var (
		posts []domain.Post
		liked []string
	)
	err = retry.Do(ctx, d.loadPolicy(), func(ctx context.Context) error {
		var err error
		if posts, err = d.Stores.Posts.List(ctx, page); err != nil {
			return err
		}
		if user.ID != "" {
			liked, err = d.Stores.Likes.ListByUser(ctx, user.ID)
		}
		return err
	})
	if err != nil {
		return nil, domain.Wrap(op, err)
	}
	v.posts = posts
	v.more = len(posts) == page.Limit
	v.likes.Reset(liked)

	if err := v.watch(ctx, realtime.TablePosts, nil, nil, v.ApplyChange); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

// Posts returns a copy of the visible posts.
func (v *FeedView) Posts() []domain.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]domain.Post(nil), v.posts...)
}

// HasMore reports whether the last window was full.
func (v *FeedView) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.more
}

func (v *FeedView) Liked(postID string) bool {
	return v.likes.Liked(postID)
}

func (v *FeedView) Pending() int {
	return v.tracker.Len()
}

// LoadMore appends the next window and returns how many posts were new.
// Posts already shown, for example because they arrived in realtime, are
// skipped.
func (v *FeedView) LoadMore(ctx context.Context) (int, error) {
	const op = "feed.more"
	v.mu.Lock()
	offset := 0
	for _, p := range v.posts {
		if !domain.IsTempID(p.ID) {
			offset++
		}
	}
	v.mu.Unlock()

	var posts []domain.Post
	err := retry.Do(ctx, v.d.loadPolicy(), func(ctx context.Context) error {
		var err error
		posts, err = v.d.Stores.Posts.List(ctx, domain.Page{Offset: offset, Limit: v.limit})
		return err
	})
	if err != nil {
		return 0, v.fail(op, err)
	}

	added := 0
	v.update(func() {
		for _, p := range posts {
			if indexOfPost(v.posts, p.ID) < 0 {
				v.posts = append(v.posts, p)
				added++
			}
		}
		v.more = len(posts) == v.limit
	})
	return added, nil
}

func indexOfPost(posts []domain.Post, id string) int {
	for i, p := range posts {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// replacePost swaps the post with id for p, or drops it when p.ID is
// already shown elsewhere.
func replacePost(posts []domain.Post, id string, p domain.Post) []domain.Post {
	i := indexOfPost(posts, id)
	if i < 0 {
		return posts
	}
	out := append([]domain.Post(nil), posts...)
	if p.ID != id && indexOfPost(posts, p.ID) >= 0 {
		return append(out[:i], out[i+1:]...)
	}
	out[i] = p
	return out
}

func removePost(posts []domain.Post, id string) ([]domain.Post, bool) {
	i := indexOfPost(posts, id)
	if i < 0 {
		return posts, false
	}
	out := append([]domain.Post(nil), posts[:i]...)
	return append(out, posts[i+1:]...), true
}

// CreatePost shows the post at the top of the feed at once, uploads the
// optional image and stores the post. On failure the post is removed.
func (v *FeedView) CreatePost(ctx context.Context, content string, image []byte) (domain.Post, error) {
	const op = "post.create"
	if err := v.requireUser(op); err != nil {
		return domain.Post{}, v.fail(op, err)
	}
	content, err := domain.CleanContent(op, content)
	if err != nil {
		return domain.Post{}, v.fail(op, err)
	}
	if len(image) > objects.MaxObjectSize {
		return domain.Post{}, v.fail(op, domain.Invalid(op, "image exceeds %d bytes", objects.MaxObjectSize))
	}
	if len(image) > 0 && v.d.Objects == nil {
		return domain.Post{}, v.fail(op, domain.Invalid(op, "image uploads are not available"))
	}

	tempID := domain.TempIDPrefix + uuid.NewString()
	m, err := v.tracker.Begin(reconcile.PostTarget(tempID), tempID)
	if err != nil {
		return domain.Post{}, v.fail(op, err)
	}
	optimistic := domain.Post{
		ID:        tempID,
		UserID:    v.user.ID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		ClientRef: tempID,
	}
	if !v.update(func() { v.posts = append([]domain.Post{optimistic}, v.posts...) }) {
		_ = m.RollBack()
		return domain.Post{}, domain.Invalid(op, "view is closed")
	}
	v.publish(events.Event{Kind: events.PostCreated, PostID: tempID, Post: &optimistic})

	rollback := func(err error) (domain.Post, error) {
		_ = m.RollBack()
		v.update(func() { v.posts, _ = removePost(v.posts, tempID) })
		v.publish(events.Event{Kind: events.PostDeleted, PostID: tempID})
		return domain.Post{}, v.fail(op, err)
	}

	if len(image) > 0 {
		path, err := v.d.Objects.Put(ctx, objects.BucketPostImages, v.user.ID, image)
		if err != nil {
			return rollback(err)
		}
		optimistic.ImageURL = v.d.Objects.PublicURL(objects.BucketPostImages, path)
	}

	created, err := v.d.Stores.Posts.Create(ctx, optimistic)
	if err != nil {
		return rollback(err)
	}
	_ = m.Confirm()
	v.update(func() { v.posts = replacePost(v.posts, tempID, created) })
	v.publish(events.Event{Kind: events.PostCreated, PostID: created.ID, TempID: tempID, Post: &created})
	return created, nil
}

func (v *FeedView) ownPost(op, id string) error {
	if err := v.requireUser(op); err != nil {
		return err
	}
	if domain.IsTempID(id) {
		return domain.Invalid(op, "post is still being published")
	}
	v.mu.Lock()
	i := indexOfPost(v.posts, id)
	var author string
	if i >= 0 {
		author = v.posts[i].UserID
	}
	v.mu.Unlock()
	if i < 0 {
		return domain.NotFound(op, "post %s not found", id)
	}
	if author != v.user.ID {
		return domain.Unauthorized(op, "only the author can change this post")
	}
	return nil
}

// EditPost stores new content for one of the viewer's posts.
func (v *FeedView) EditPost(ctx context.Context, id, content string) (domain.Post, error) {
	const op = "post.edit"
	content, err := domain.CleanContent(op, content)
	if err != nil {
		return domain.Post{}, v.fail(op, err)
	}
	if err := v.ownPost(op, id); err != nil {
		return domain.Post{}, v.fail(op, err)
	}
	m, err := v.tracker.Begin(reconcile.PostTarget(id), "")
	if err != nil {
		return domain.Post{}, v.fail(op, err)
	}
	updated, err := v.d.Stores.Posts.UpdateContent(ctx, id, v.user.ID, content)
	if err != nil {
		_ = m.RollBack()
		return domain.Post{}, v.fail(op, err)
	}
	_ = m.Confirm()
	v.update(func() { v.posts = replacePost(v.posts, id, updated) })
	v.publish(events.Event{Kind: events.PostEdited, PostID: id, Post: &updated})
	return updated, nil
}

// DeletePost deletes one of the viewer's posts.
func (v *FeedView) DeletePost(ctx context.Context, id string) error {
	const op = "post.delete"
	if err := v.ownPost(op, id); err != nil {
		return v.fail(op, err)
	}
	m, err := v.tracker.Begin(reconcile.PostTarget(id), "")
	if err != nil {
		return v.fail(op, err)
	}
	if _, err := v.d.Stores.Posts.Delete(ctx, id, v.user.ID); err != nil {
		_ = m.RollBack()
		return v.fail(op, err)
	}
	_ = m.Confirm()
	v.update(func() { v.posts, _ = removePost(v.posts, id) })
	v.publish(events.Event{Kind: events.PostDeleted, PostID: id})
	return nil
}

// ToggleLike likes or unlikes a visible post.
func (v *FeedView) ToggleLike(ctx context.Context, postID string) (reconcile.LikeState, error) {
	return toggleLike(ctx, &v.base, v.likes, &v.posts, postID)
}

// toggleLike runs a like toggle against the post list of a view.
func toggleLike(ctx context.Context, b *base, likes *reconcile.LikeToggler, posts *[]domain.Post, postID string) (reconcile.LikeState, error) {
	const op = "like"
	if domain.IsTempID(postID) {
		return reconcile.LikeState{}, b.fail(op, domain.Invalid(op, "post is still being published"))
	}
	b.mu.Lock()
	i := indexOfPost(*posts, postID)
	current := 0
	if i >= 0 {
		current = (*posts)[i].Likes
	}
	b.mu.Unlock()
	if i < 0 {
		return reconcile.LikeState{}, b.fail(op, domain.NotFound(op, "post %s not found", postID))
	}

	st, err := likes.Toggle(ctx, b.user.ID, postID, current, func(s reconcile.LikeState) {
		b.update(func() {
			if j := indexOfPost(*posts, postID); j >= 0 {
				out := append([]domain.Post(nil), (*posts)...)
				out[j].Likes = s.Likes
				*posts = out
			}
		})
		b.publish(events.Event{Kind: events.LikeToggled, PostID: postID, Liked: s.Liked, Likes: s.Likes})
	})
	if err != nil {
		return st, b.fail(op, err)
	}
	return st, nil
}

// ApplyChange merges a realtime post change.
func (v *FeedView) ApplyChange(c realtime.Change) {
	if c.Table != realtime.TablePosts {
		return
	}
	p, ok := decode[domain.Post](&v.base, c)
	if !ok {
		return
	}
	var e *events.Event
	v.update(func() {
		v.posts, e = mergePost(v.posts, c.Type, p, v.tracker, true)
	})
	if e != nil {
		v.publish(*e)
	}
}

// mergePost applies one realtime post change to a newest-first list.
// Inserts go to the top when prepend is set and are dropped otherwise.
func mergePost(posts []domain.Post, typ realtime.ChangeType, p domain.Post, tracker *reconcile.Tracker, prepend bool) ([]domain.Post, *events.Event) {
	switch typ {
	case realtime.Insert:
		if indexOfPost(posts, p.ID) >= 0 {
			return posts, nil
		}
		if p.ClientRef != "" && indexOfPost(posts, p.ClientRef) >= 0 {
			return replacePost(posts, p.ClientRef, p), &events.Event{Kind: events.PostCreated, PostID: p.ID, TempID: p.ClientRef, Post: &p}
		}
		if !prepend {
			return posts, nil
		}
		return append([]domain.Post{p}, posts...), &events.Event{Kind: events.PostCreated, PostID: p.ID, Post: &p}
	case realtime.Update:
		i := indexOfPost(posts, p.ID)
		if i < 0 {
			return posts, nil
		}
		if tracker.Busy(reconcile.LikeTarget(p.ID)) {
			p.Likes = posts[i].Likes
		}
		if posts[i].Author != nil {
			p.Author = posts[i].Author
		}
		return replacePost(posts, p.ID, p), &events.Event{Kind: events.PostEdited, PostID: p.ID, Post: &p}
	case realtime.Delete:
		out, ok := removePost(posts, p.ID)
		if !ok {
			return posts, nil
		}
		return out, &events.Event{Kind: events.PostDeleted, PostID: p.ID}
	}
	return posts, nil
}
