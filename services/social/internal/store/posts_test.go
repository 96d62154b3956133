package store

import (
	"context"
	"testing"

	"github.com/example/orbit/services/social/internal/domain"
)

func seedPosts(t *testing.T, s PostStore, n int, userID string) []domain.Post {
	t.Helper()
	out := make([]domain.Post, 0, n)
	for i := 0; i < n; i++ {
		p, err := s.Create(context.Background(), domain.Post{UserID: userID, Content: "post"})
		if err != nil {
			t.Fatalf("create: %v", err)
		}
		out = append(out, p)
	}
	return out
}

func TestInMemoryPostStore_ListNewestFirstWithOffset(t *testing.T) {
	s := NewInMemoryPostStore()
	ctx := context.Background()
	posts := seedPosts(t, s, 5, "user-a")

	page, err := s.List(ctx, domain.Page{Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != posts[4].ID || page[1].ID != posts[3].ID {
		t.Fatal("expected the two newest posts first")
	}

	page, _ = s.List(ctx, domain.Page{Offset: 4, Limit: 2})
	if len(page) != 1 || page[0].ID != posts[0].ID {
		t.Fatalf("expected the oldest post on the last page, got %d", len(page))
	}

	page, _ = s.List(ctx, domain.Page{Offset: 10})
	if len(page) != 0 {
		t.Fatalf("expected empty page past the end, got %d", len(page))
	}
}

func TestInMemoryPostStore_ByAuthor(t *testing.T) {
	s := NewInMemoryPostStore()
	ctx := context.Background()
	seedPosts(t, s, 2, "user-a")
	seedPosts(t, s, 3, "user-b")

	list, _ := s.ListByAuthor(ctx, "user-b", domain.Page{})
	if len(list) != 3 {
		t.Fatalf("expected 3 posts, got %d", len(list))
	}
	n, _ := s.CountByAuthor(ctx, "user-a")
	if n != 2 {
		t.Fatalf("expected 2 posts, got %d", n)
	}
}

func TestInMemoryPostStore_Counters(t *testing.T) {
	s := NewInMemoryPostStore()
	ctx := context.Background()
	p := seedPosts(t, s, 1, "user-a")[0]

	got, err := s.AdjustCommentCount(ctx, p.ID, 1)
	if err != nil || got.CommentCount != 1 {
		t.Fatalf("expected 1 comment, got %d (%v)", got.CommentCount, err)
	}
	got, _ = s.AdjustCommentCount(ctx, p.ID, -5)
	if got.CommentCount != 0 {
		t.Fatalf("expected comment count clamped at 0, got %d", got.CommentCount)
	}

	got, err = s.SetLikes(ctx, p.ID, 7)
	if err != nil || got.Likes != 7 {
		t.Fatalf("expected 7 likes, got %d (%v)", got.Likes, err)
	}
	if _, err := s.SetLikes(ctx, p.ID, -1); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected validation error for negative likes, got %v", err)
	}
	if _, err := s.AdjustCommentCount(ctx, "missing", 1); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestInMemoryPostStore_EditAndDeleteAuthorOnly(t *testing.T) {
	s := NewInMemoryPostStore()
	ctx := context.Background()
	p := seedPosts(t, s, 1, "user-a")[0]

	if _, err := s.UpdateContent(ctx, p.ID, "user-b", "x"); err != ErrNotFoundOrForbidden {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
	edited, err := s.UpdateContent(ctx, p.ID, "user-a", "edited")
	if err != nil || edited.Content != "edited" {
		t.Fatalf("edit: %+v %v", edited, err)
	}
	if _, err := s.Delete(ctx, p.ID, "user-b"); err != ErrNotFoundOrForbidden {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
	if _, err := s.Delete(ctx, p.ID, "user-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get(ctx, p.ID); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func TestNewInMemory_PostDeleteCascades(t *testing.T) {
	st := NewInMemory()
	ctx := context.Background()

	p, _ := st.Posts.Create(ctx, domain.Post{UserID: "user-a", Content: "hello"})
	_, _ = st.Comments.Create(ctx, domain.Comment{PostID: p.ID, UserID: "user-b", Content: "hi"})
	if err := st.Likes.Add(ctx, "user-b", p.ID); err != nil {
		t.Fatalf("like: %v", err)
	}

	if _, err := st.Posts.Delete(ctx, p.ID, "user-a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	comments, _ := st.Comments.ListByPost(ctx, p.ID)
	if len(comments) != 0 {
		t.Fatalf("expected comments to be removed, got %d", len(comments))
	}
	liked, _ := st.Likes.ListByUser(ctx, "user-b")
	if len(liked) != 0 {
		t.Fatalf("expected likes to be removed, got %v", liked)
	}
	if err := st.Likes.Add(ctx, "user-b", p.ID); err != ErrNotFoundOrForbidden {
		t.Fatalf("expected like on deleted post to fail, got %v", err)
	}
}

func TestNewInMemory_AttachesAuthors(t *testing.T) {
	st := NewInMemory()
	ctx := context.Background()

	p, err := st.Posts.Create(ctx, domain.Post{UserID: "user-a", Content: "hello", Author: &domain.Author{Username: "spoofed"}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Author != nil {
		t.Fatalf("expected no author before a profile exists, got %+v", p.Author)
	}

	if _, err := st.Profiles.Upsert(ctx, domain.Profile{ID: "user-a", Username: "ann", AvatarURL: "user-a/face.png"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, _ := st.Posts.Get(ctx, p.ID)
	if got.Author == nil || got.Author.Username != "ann" || got.Author.AvatarURL != "user-a/face.png" {
		t.Fatalf("expected author ann, got %+v", got.Author)
	}
	list, _ := st.Posts.List(ctx, domain.Page{})
	if len(list) != 1 || list[0].Author == nil || list[0].Author.Username != "ann" {
		t.Fatalf("expected author in list, got %+v", list)
	}

	c, err := st.Comments.Create(ctx, domain.Comment{PostID: p.ID, UserID: "user-a", Content: "hi"})
	if err != nil {
		t.Fatalf("comment: %v", err)
	}
	if c.Author == nil || c.Author.Username != "ann" {
		t.Fatalf("expected author on created comment, got %+v", c.Author)
	}

	// Renames show up on later reads.
	_, _ = st.Profiles.Upsert(ctx, domain.Profile{ID: "user-a", Username: "anna"})
	comments, _ := st.Comments.ListByPost(ctx, p.ID)
	if len(comments) != 1 || comments[0].Author.Username != "anna" || comments[0].Author.AvatarURL != "" {
		t.Fatalf("expected renamed author, got %+v", comments[0].Author)
	}
}
