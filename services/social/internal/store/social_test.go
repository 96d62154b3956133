package store

import (
	"context"
	"testing"

	"github.com/example/orbit/services/social/internal/domain"
)

func TestInMemoryLikeStore_Idempotent(t *testing.T) {
	s := NewInMemoryLikeStore()
	ctx := context.Background()

	_ = s.Add(ctx, "user-a", "post-2")
	_ = s.Add(ctx, "user-a", "post-1")
	_ = s.Add(ctx, "user-a", "post-1")

	ids, _ := s.ListByUser(ctx, "user-a")
	if len(ids) != 2 || ids[0] != "post-1" || ids[1] != "post-2" {
		t.Fatalf("unexpected likes %v", ids)
	}

	_ = s.Remove(ctx, "user-a", "post-1")
	_ = s.Remove(ctx, "user-a", "post-1")
	ids, _ = s.ListByUser(ctx, "user-a")
	if len(ids) != 1 {
		t.Fatalf("expected 1 like, got %v", ids)
	}
	ids, _ = s.ListByUser(ctx, "user-b")
	if len(ids) != 0 {
		t.Fatalf("expected no likes for another user, got %v", ids)
	}
}

func TestInMemoryFollowStore(t *testing.T) {
	s := NewInMemoryFollowStore()
	ctx := context.Background()

	if err := s.Follow(ctx, "a", "a"); domain.KindOf(err) != domain.KindValidation {
		t.Fatalf("expected self-follow to be rejected, got %v", err)
	}
	_ = s.Follow(ctx, "a", "b")
	_ = s.Follow(ctx, "a", "b")
	_ = s.Follow(ctx, "c", "b")
	_ = s.Follow(ctx, "b", "a")

	counts, _ := s.Counts(ctx, "b")
	if counts.Followers != 2 || counts.Following != 1 {
		t.Fatalf("unexpected counts %+v", counts)
	}
	ok, _ := s.IsFollowing(ctx, "a", "b")
	if !ok {
		t.Fatal("expected a to follow b")
	}

	_ = s.Unfollow(ctx, "a", "b")
	ok, _ = s.IsFollowing(ctx, "a", "b")
	if ok {
		t.Fatal("expected a to no longer follow b")
	}
}

func TestInMemoryProfileStore_UniqueUsername(t *testing.T) {
	s := NewInMemoryProfileStore()
	ctx := context.Background()

	if _, err := s.Upsert(ctx, domain.Profile{ID: "user-a", Username: "alice"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// Same user may re-save with the same name.
	if _, err := s.Upsert(ctx, domain.Profile{ID: "user-a", Username: "alice", Bio: "hi"}); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	if _, err := s.Upsert(ctx, domain.Profile{ID: "user-b", Username: "alice"}); err != ErrUsernameTaken {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	if domain.KindOf(ErrUsernameTaken) != domain.KindValidation {
		t.Fatal("expected duplicate username to be a validation failure")
	}

	p, err := s.GetByUsername(ctx, "alice")
	if err != nil || p.ID != "user-a" || p.Bio != "hi" {
		t.Fatalf("unexpected profile %+v (%v)", p, err)
	}
	if _, err := s.Get(ctx, "user-b"); domain.KindOf(err) != domain.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}
