package view

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/example/orbit/internal/platform/retry"
	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/realtime"
	"github.com/example/orbit/services/social/internal/reconcile"
	"github.com/example/orbit/services/social/internal/thread"
)

// PostView is a post with its comment thread.
type PostView struct {
	base
	postID  string
	tracker *reconcile.Tracker
	likes   *reconcile.LikeToggler

	// guarded by base.mu
	post    domain.Post
	forest  thread.Forest
	deleted bool
	// pending is the part of post.CommentCount the backend has not
	// confirmed yet.
	pending int
}

// OpenPost loads the post, its comments and whether the viewer likes it,
// then follows realtime changes to both.
func OpenPost(ctx context.Context, d Deps, postID string) (*PostView, error) {
	const op = "post.open"
	user, err := d.viewer(ctx)
	if err != nil {
		return nil, err
	}
	v := &PostView{base: base{d: d, user: user}, postID: postID, tracker: reconcile.NewTracker()}
	v.likes = reconcile.NewLikeToggler(d.Stores.Likes, d.Stores.Posts, v.tracker)

	var (
		post     domain.Post
		comments []domain.Comment
		liked    []string
	)
	err = retry.Do(ctx, d.loadPolicy(), func(ctx context.Context) error {
		var err error
		if post, err = d.Stores.Posts.Get(ctx, postID); err != nil {
			return err
		}
		if comments, err = d.Stores.Comments.ListByPost(ctx, postID); err != nil {
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
	v.post = post
	v.forest = thread.Build(comments)
	v.likes.Reset(liked)

	if err := v.watch(ctx, realtime.TableComments, nil, realtime.Filter{"post_id": postID}, v.ApplyChange); err != nil {
		v.Close()
		return nil, err
	}
	postChanges := []realtime.ChangeType{realtime.Update, realtime.Delete}
	if err := v.watch(ctx, realtime.TablePosts, postChanges, realtime.Filter{"id": postID}, v.ApplyChange); err != nil {
		v.Close()
		return nil, err
	}
	return v, nil
}

func (v *PostView) Post() domain.Post {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.post
}

// Thread returns the current forest. Forests are never modified in place,
// so the result stays valid.
func (v *PostView) Thread() thread.Forest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.forest
}

func (v *PostView) Liked() bool {
	return v.likes.Liked(v.postID)
}

// Deleted reports whether the post was deleted while the view was open.
func (v *PostView) Deleted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.deleted
}

// Pending reports how many changes await the backend.
func (v *PostView) Pending() int {
	return v.tracker.Len()
}

func (v *PostView) checkOpen(op string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return domain.Invalid(op, "view is closed")
	}
	if v.deleted {
		return domain.NotFound(op, "post was deleted")
	}
	return nil
}

// AddComment shows the comment at once under a temporary id, then stores
// it. On success the temporary record is replaced by the stored one and
// the post's comment counter is incremented; on failure the record is
// removed again.
func (v *PostView) AddComment(ctx context.Context, content string, parentID *string) (domain.Comment, error) {
	const op = "comment.add"
	if err := v.requireUser(op); err != nil {
		return domain.Comment{}, v.fail(op, err)
	}
	content, err := domain.CleanContent(op, content)
	if err != nil {
		return domain.Comment{}, v.fail(op, err)
	}
	if parentID != nil && *parentID == "" {
		parentID = nil
	}
	if parentID != nil {
		if domain.IsTempID(*parentID) {
			return domain.Comment{}, v.fail(op, domain.Invalid(op, "wait for the comment to be posted before replying"))
		}
		v.mu.Lock()
		known := thread.Contains(v.forest, *parentID)
		v.mu.Unlock()
		if !known {
			return domain.Comment{}, v.fail(op, domain.NotFound(op, "comment %s not found", *parentID))
		}
	}
	if err := v.checkOpen(op); err != nil {
		return domain.Comment{}, err
	}

	tempID := domain.TempIDPrefix + uuid.NewString()
	m, err := v.tracker.Begin(reconcile.CommentTarget(tempID), tempID)
	if err != nil {
		return domain.Comment{}, v.fail(op, err)
	}
	optimistic := domain.Comment{
		ID:        tempID,
		PostID:    v.postID,
		UserID:    v.user.ID,
		ParentID:  parentID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
		ClientRef: tempID,
	}
	v.update(func() {
		v.forest = thread.Insert(v.forest, optimistic, parentID)
		v.shiftCount(1)
	})
	v.publish(events.Event{Kind: events.CommentAdded, PostID: v.postID, CommentID: tempID, Comment: &optimistic})

	created, err := v.d.Stores.Comments.Create(ctx, optimistic)
	if err != nil {
		_ = m.RollBack()
		v.update(func() {
			v.forest, _ = thread.Remove(v.forest, tempID)
			v.settleCount(1, nil)
		})
		v.publish(events.Event{Kind: events.CommentRemoved, PostID: v.postID, CommentID: tempID, Removed: 1})
		return domain.Comment{}, v.fail(op, err)
	}

	_ = m.Confirm()
	v.update(func() {
		v.forest = thread.Replace(v.forest, tempID, created)
	})
	v.publish(events.Event{Kind: events.CommentAdded, PostID: v.postID, CommentID: created.ID, TempID: tempID, Comment: &created})

	v.adjustCount(ctx, "comment.count", 1)
	return created, nil
}

// shiftCount applies an unconfirmed change to the comment counter.
// Callers hold base.mu.
func (v *PostView) shiftCount(delta int) {
	v.pending += delta
	v.post.CommentCount = max(v.post.CommentCount+delta, 0)
}

// settleCount resolves an unconfirmed change. With a stored post the count
// becomes the stored one plus whatever is still pending; without one the
// change is undone. Callers hold base.mu.
func (v *PostView) settleCount(delta int, stored *domain.Post) {
	v.pending -= delta
	if stored == nil {
		v.post.CommentCount = max(v.post.CommentCount-delta, 0)
		return
	}
	v.post.CommentCount = max(stored.CommentCount+v.pending, 0)
}

// adjustCount writes delta to the post's comment counter. The local count
// already holds the change as pending.
func (v *PostView) adjustCount(ctx context.Context, op string, delta int) {
	p, err := v.d.Stores.Posts.AdjustCommentCount(ctx, v.postID, delta)
	if err != nil {
		v.update(func() { v.settleCount(delta, nil) })
		_ = v.fail(op, err)
		return
	}
	var (
		changed bool
		cp      domain.Post
	)
	v.update(func() {
		before := v.post.CommentCount
		v.settleCount(delta, &p)
		changed = before != v.post.CommentCount
		cp = v.post
	})
	if changed {
		v.publish(events.Event{Kind: events.PostEdited, PostID: v.postID, Post: &cp})
	}
}

// ownComment returns the comment if the viewer may change it.
func (v *PostView) ownComment(op, id string) (domain.Comment, error) {
	if err := v.requireUser(op); err != nil {
		return domain.Comment{}, err
	}
	if domain.IsTempID(id) {
		return domain.Comment{}, domain.Invalid(op, "comment is still being posted")
	}
	v.mu.Lock()
	n, ok := thread.Find(v.forest, id)
	v.mu.Unlock()
	if !ok {
		return domain.Comment{}, domain.NotFound(op, "comment %s not found", id)
	}
	if n.Comment.UserID != v.user.ID {
		return domain.Comment{}, domain.Unauthorized(op, "only the author can change this comment")
	}
	return n.Comment, nil
}

// EditComment stores new content for one of the viewer's comments and
// shows it once the backend accepted it.
func (v *PostView) EditComment(ctx context.Context, id, content string) (domain.Comment, error) {
	const op = "comment.edit"
	content, err := domain.CleanContent(op, content)
	if err != nil {
		return domain.Comment{}, v.fail(op, err)
	}
	if _, err := v.ownComment(op, id); err != nil {
		return domain.Comment{}, v.fail(op, err)
	}
	m, err := v.tracker.Begin(reconcile.CommentTarget(id), "")
	if err != nil {
		return domain.Comment{}, v.fail(op, err)
	}

	updated, err := v.d.Stores.Comments.UpdateContent(ctx, id, v.user.ID, content)
	if err != nil {
		_ = m.RollBack()
		return domain.Comment{}, v.fail(op, err)
	}
	_ = m.Confirm()

	v.update(func() {
		v.forest = thread.Update(v.forest, id, thread.Patch{Content: &updated.Content, UpdatedAt: updated.UpdatedAt})
	})
	v.publish(events.Event{Kind: events.CommentEdited, PostID: v.postID, CommentID: id, Comment: &updated})
	return updated, nil
}

// DeleteComment deletes one of the viewer's comments with its replies. The
// post's comment counter drops by exactly one, however many replies went
// with it.
func (v *PostView) DeleteComment(ctx context.Context, id string) error {
	const op = "comment.delete"
	if _, err := v.ownComment(op, id); err != nil {
		return v.fail(op, err)
	}
	m, err := v.tracker.Begin(reconcile.CommentTarget(id), "")
	if err != nil {
		return v.fail(op, err)
	}

	if _, err := v.d.Stores.Comments.Delete(ctx, id, v.user.ID); err != nil {
		_ = m.RollBack()
		return v.fail(op, err)
	}
	_ = m.Confirm()

	removed := 0
	v.update(func() {
		v.forest, removed = thread.Remove(v.forest, id)
		v.shiftCount(-1)
	})
	v.publish(events.Event{Kind: events.CommentRemoved, PostID: v.postID, CommentID: id, Removed: removed})

	v.adjustCount(ctx, "comment.count", -1)
	return nil
}

// ToggleLike likes or unlikes the post. A second toggle while the first is
// pending is rejected with reconcile.ErrInFlight.
func (v *PostView) ToggleLike(ctx context.Context) (reconcile.LikeState, error) {
	const op = "like"
	if err := v.checkOpen(op); err != nil {
		return reconcile.LikeState{}, err
	}
	current := v.Post().Likes
	st, err := v.likes.Toggle(ctx, v.user.ID, v.postID, current, func(s reconcile.LikeState) {
		v.update(func() { v.post.Likes = s.Likes })
		v.publish(events.Event{Kind: events.LikeToggled, PostID: v.postID, Liked: s.Liked, Likes: s.Likes})
	})
	if err != nil {
		return st, v.fail(op, err)
	}
	return st, nil
}

// ApplyChange merges a realtime change. Inserts already in the thread are
// ignored; an insert carrying the client_ref of a pending comment takes
// its place.
func (v *PostView) ApplyChange(c realtime.Change) {
	switch c.Table {
	case realtime.TableComments:
		v.applyComment(c)
	case realtime.TablePosts:
		v.applyPost(c)
	}
}

func (v *PostView) applyComment(c realtime.Change) {
	cm, ok := decode[domain.Comment](&v.base, c)
	if !ok || cm.PostID != v.postID {
		return
	}

	var e *events.Event
	v.update(func() {
		switch c.Type {
		case realtime.Insert:
			if thread.Contains(v.forest, cm.ID) {
				return
			}
			if cm.ClientRef != "" && thread.Contains(v.forest, cm.ClientRef) {
				v.forest = thread.Replace(v.forest, cm.ClientRef, cm)
				e = &events.Event{Kind: events.CommentAdded, PostID: v.postID, CommentID: cm.ID, TempID: cm.ClientRef, Comment: &cm}
				return
			}
			v.forest = thread.Insert(v.forest, cm, cm.ParentID)
			e = &events.Event{Kind: events.CommentAdded, PostID: v.postID, CommentID: cm.ID, Comment: &cm}
		case realtime.Update:
			if !thread.Contains(v.forest, cm.ID) {
				return
			}
			v.forest = thread.Update(v.forest, cm.ID, thread.Patch{Content: &cm.Content, UpdatedAt: cm.UpdatedAt})
			e = &events.Event{Kind: events.CommentEdited, PostID: v.postID, CommentID: cm.ID, Comment: &cm}
		case realtime.Delete:
			var n int
			v.forest, n = thread.Remove(v.forest, cm.ID)
			if n > 0 {
				e = &events.Event{Kind: events.CommentRemoved, PostID: v.postID, CommentID: cm.ID, Removed: n}
			}
		}
	})
	if e != nil {
		v.publish(*e)
	}
}

func (v *PostView) applyPost(c realtime.Change) {
	p, ok := decode[domain.Post](&v.base, c)
	if !ok || p.ID != v.postID {
		return
	}
	var e *events.Event
	v.update(func() {
		switch c.Type {
		case realtime.Update:
			v.post.Content = p.Content
			v.post.ImageURL = p.ImageURL
			v.post.CommentCount = max(p.CommentCount+v.pending, 0)
			if !v.tracker.Busy(reconcile.LikeTarget(v.postID)) {
				v.post.Likes = p.Likes
			}
			cp := v.post
			e = &events.Event{Kind: events.PostEdited, PostID: v.postID, Post: &cp}
		case realtime.Delete:
			v.deleted = true
			e = &events.Event{Kind: events.PostDeleted, PostID: v.postID}
		}
	})
	if e != nil {
		v.publish(*e)
	}
}
