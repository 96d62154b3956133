package view

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/example/orbit/services/social/internal/domain"
	"github.com/example/orbit/services/social/internal/events"
	"github.com/example/orbit/services/social/internal/objects"
	"github.com/example/orbit/services/social/internal/realtime"
)

func TestFeed_WindowsNewestFirst(t *testing.T) {
	st := newStores(t)
	var ids []string
	for i := 0; i < 5; i++ {
		ids = append(ids, seedPost(t, st, "author").ID)
	}

	v, err := OpenFeed(context.Background(), newDeps(st, "reader"), 2)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	posts := v.Posts()
	if len(posts) != 2 || posts[0].ID != ids[4] || posts[1].ID != ids[3] || !v.HasMore() {
		t.Fatalf("unexpected first window %+v", posts)
	}
	for v.HasMore() {
		if _, err := v.LoadMore(context.Background()); err != nil {
			t.Fatalf("load more: %v", err)
		}
	}
	posts = v.Posts()
	if len(posts) != 5 || posts[4].ID != ids[0] {
		t.Fatalf("expected all 5 posts oldest last, got %d", len(posts))
	}
}

func TestFeed_CreatePostConfirms(t *testing.T) {
	st := newStores(t)
	seedPost(t, st, "author")

	d := newDeps(st, "author")
	d.Objects = objects.NewMemoryStore("http://cdn.test")
	rec := record(d.Bus)
	v, err := OpenFeed(context.Background(), d, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 16)...)
	created, err := v.CreatePost(context.Background(), "new post", png)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !strings.HasPrefix(created.ImageURL, "http://cdn.test/v1/objects/post-images/author/") {
		t.Fatalf("unexpected image url %q", created.ImageURL)
	}

	list := v.Posts()
	if len(list) != 2 || list[0].ID != created.ID {
		t.Fatalf("expected new post on top, got %+v", list)
	}
	for _, p := range list {
		if domain.IsTempID(p.ID) {
			t.Fatalf("temp post left behind: %+v", p)
		}
	}
	evs := rec.of(events.PostCreated)
	if len(evs) != 2 || evs[1].TempID == "" {
		t.Fatalf("unexpected post.created events %+v", evs)
	}
}

func TestFeed_CreatePostFailureRollsBack(t *testing.T) {
	st := newStores(t)
	st.Posts = &flakyPosts{PostStore: st.Posts, failCreate: true}

	d := newDeps(st, "author")
	rec := record(d.Bus)
	v, err := OpenFeed(context.Background(), d, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	if _, err := v.CreatePost(context.Background(), "new post", nil); domain.KindOf(err) != domain.KindTransient {
		t.Fatalf("expected transient error, got %v", err)
	}
	if len(v.Posts()) != 0 {
		t.Fatalf("expected optimistic post removed, got %+v", v.Posts())
	}
	if len(rec.of(events.MutationFailed)) != 1 {
		t.Fatal("expected a failure notification")
	}
	if _, err := v.CreatePost(context.Background(), "", nil); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestFeed_CreatePostRejectsBadImage(t *testing.T) {
	st := newStores(t)
	d := newDeps(st, "author")
	d.Objects = objects.NewMemoryStore("")
	v, err := OpenFeed(context.Background(), d, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	if _, err := v.CreatePost(context.Background(), "with text file", []byte("hello")); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(v.Posts()) != 0 {
		t.Fatal("expected no post after failed upload")
	}
	list, _ := st.Posts.List(context.Background(), domain.Page{})
	if len(list) != 0 {
		t.Fatal("expected nothing stored")
	}
}

func TestFeed_RealtimeMerge(t *testing.T) {
	st := newStores(t)
	mine := seedPost(t, st, "author")

	v, err := OpenFeed(context.Background(), newDeps(st, "author"), 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	other := domain.Post{ID: "p-other", UserID: "someone", Content: "hi"}
	ins, _ := realtime.NewChange(realtime.TablePosts, realtime.Insert, other, nil)
	v.ApplyChange(ins)
	v.ApplyChange(ins)
	if list := v.Posts(); len(list) != 2 || list[0].ID != "p-other" {
		t.Fatalf("expected one prepended post, got %+v", list)
	}

	mine.Content = "edited elsewhere"
	mine.Likes = 3
	upd, _ := realtime.NewChange(realtime.TablePosts, realtime.Update, mine, nil)
	v.ApplyChange(upd)
	if list := v.Posts(); list[1].Content != "edited elsewhere" || list[1].Likes != 3 {
		t.Fatalf("expected update merged, got %+v", list[1])
	}

	del, _ := realtime.NewChange(realtime.TablePosts, realtime.Delete, other, nil)
	v.ApplyChange(del)
	if list := v.Posts(); len(list) != 1 || list[0].ID != mine.ID {
		t.Fatalf("expected delete merged, got %+v", list)
	}
}

func TestFeed_EchoOfOwnPostReplacesTemp(t *testing.T) {
	mem := newStores(t)
	hub := realtime.NewHub(nil)
	st := realtime.Publishing(mem, realtime.Emitter{Publisher: hub})

	d := newDeps(st, "author")
	d.Realtime = hub
	v, err := OpenFeed(context.Background(), d, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	created, err := v.CreatePost(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	other := seedPost(t, st, "someone")
	waitFor(t, "echo of later post", func() bool { return len(v.Posts()) == 2 })

	list := v.Posts()
	if list[0].ID != other.ID || list[1].ID != created.ID {
		t.Fatalf("expected own post once and the later post on top, got %+v", list)
	}
}

func TestFeed_EditAndDeleteOwnPost(t *testing.T) {
	st := newStores(t)
	mine := seedPost(t, st, "author")
	theirs := seedPost(t, st, "someone")
	ctx := context.Background()

	v, err := OpenFeed(ctx, newDeps(st, "author"), 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	if _, err := v.EditPost(ctx, theirs.ID, "mine now"); domain.KindOf(err) != domain.KindUnauthorized {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	updated, err := v.EditPost(ctx, mine.ID, "edited")
	if err != nil || updated.Content != "edited" {
		t.Fatalf("edit: %+v %v", updated, err)
	}
	if err := v.DeletePost(ctx, mine.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if list := v.Posts(); len(list) != 1 || list[0].ID != theirs.ID {
		t.Fatalf("unexpected posts %+v", list)
	}
	if _, err := st.Posts.Get(ctx, mine.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected stored post deleted, got %v", err)
	}
}

func TestFeed_ToggleLike(t *testing.T) {
	st := newStores(t)
	p := seedPost(t, st, "author")
	ctx := context.Background()

	v, err := OpenFeed(ctx, newDeps(st, "reader"), 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer v.Close()

	s, err := v.ToggleLike(ctx, p.ID)
	if err != nil || !s.Liked || s.Likes != 1 || v.Posts()[0].Likes != 1 || !v.Liked(p.ID) {
		t.Fatalf("like: %+v %v", s, err)
	}
	if _, err := v.ToggleLike(ctx, "missing"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := v.ToggleLike(ctx, "tmp-1"); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for temp post, got %v", err)
	}
}
