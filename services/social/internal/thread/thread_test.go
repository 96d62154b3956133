package thread

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/example/orbit/services/social/internal/domain"
)

func ptr(s string) *string { return &s }

func comment(id, parent string) domain.Comment {
	c := domain.Comment{ID: id, PostID: "post-1", UserID: "user-a", Content: "comment " + id}
	if parent != "" {
		c.ParentID = ptr(parent)
	}
	return c
}

// shape renders a forest as "id[child,child]" for compact assertions.
func shape(f Forest) string {
	s := ""
	for i, n := range f {
		if i > 0 {
			s += ","
		}
		s += n.Comment.ID
		if len(n.Replies) > 0 {
			s += "[" + shape(n.Replies) + "]"
		}
	}
	return s
}

func TestBuild_OrphanPromotedToRoot(t *testing.T) {
	f := Build([]domain.Comment{comment("1", ""), comment("2", "1"), comment("3", "99")})
	if got := shape(f); got != "1[2],3" {
		t.Fatalf("expected 1[2],3, got %s", got)
	}
	if len(f[1].Replies) != 0 {
		t.Fatalf("expected promoted orphan to have no replies")
	}
}

func TestBuild_NestedAndInputOrder(t *testing.T) {
	f := Build([]domain.Comment{
		comment("a", ""),
		comment("b", ""),
		comment("a1", "a"),
		comment("a1x", "a1"),
		comment("a2", "a"),
		comment("b1", "b"),
	})
	if got := shape(f); got != "a[a1[a1x],a2],b[b1]" {
		t.Fatalf("unexpected shape %s", got)
	}
}

func TestBuild_ChildBeforeParentInInput(t *testing.T) {
	f := Build([]domain.Comment{comment("2", "1"), comment("1", "")})
	if got := shape(f); got != "1[2]" {
		t.Fatalf("expected 1[2], got %s", got)
	}
}

func TestBuild_SelfParentAndDuplicates(t *testing.T) {
	first := comment("1", "")
	dup := comment("1", "")
	dup.Content = "second copy"
	f := Build([]domain.Comment{first, comment("2", "2"), dup})
	if got := shape(f); got != "1,2" {
		t.Fatalf("expected 1,2, got %s", got)
	}
	if f[0].Comment.Content != first.Content {
		t.Fatalf("expected first occurrence to win, got %q", f[0].Comment.Content)
	}
}

func TestBuild_CycleBroken(t *testing.T) {
	f := Build([]domain.Comment{comment("c", "a"), comment("a", "b"), comment("b", "a")})
	if Len(f) != 3 {
		t.Fatalf("expected all 3 comments, got %d (%s)", Len(f), shape(f))
	}
	if got := shape(f); got != "a[c,b]" {
		t.Fatalf("expected a[c,b], got %s", got)
	}
}

func TestBuild_Empty(t *testing.T) {
	if f := Build(nil); len(f) != 0 {
		t.Fatalf("expected empty forest, got %d roots", len(f))
	}
}

// randomAcyclic produces n comments where each parent is an earlier comment,
// a dangling id, or nil, then shuffles them.
func randomAcyclic(r *rand.Rand, n int) []domain.Comment {
	out := make([]domain.Comment, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("c%d", i)
		switch k := r.Intn(4); {
		case k == 0 || i == 0:
			out = append(out, comment(id, ""))
		case k == 1:
			out = append(out, comment(id, fmt.Sprintf("missing-%d", i)))
		default:
			out = append(out, comment(id, fmt.Sprintf("c%d", r.Intn(i))))
		}
	}
	r.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

func TestBuild_ContainsEveryCommentExactlyOnce(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 200; round++ {
		flat := randomAcyclic(r, 1+r.Intn(40))
		f := Build(flat)

		seen := make(map[string]int)
		Walk(f, func(n *Node, _ int) bool {
			seen[n.Comment.ID]++
			return true
		})
		if len(seen) != len(flat) {
			t.Fatalf("round %d: expected %d comments, got %d", round, len(flat), len(seen))
		}
		for id, count := range seen {
			if count != 1 {
				t.Fatalf("round %d: comment %s appears %d times", round, id, count)
			}
		}
	}
}

func TestBuild_DanglingParentsAreRoots(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 100; round++ {
		flat := randomAcyclic(r, 2+r.Intn(30))
		f := Build(flat)
		roots := make(map[string]bool)
		for _, n := range f {
			roots[n.Comment.ID] = true
		}
		known := make(map[string]bool)
		for _, c := range flat {
			known[c.ID] = true
		}
		for _, c := range flat {
			if c.ParentID != nil && !known[*c.ParentID] && !roots[c.ID] {
				t.Fatalf("round %d: orphan %s not promoted to root", round, c.ID)
			}
		}
	}
}

func TestInsert_RootAndReply(t *testing.T) {
	f := Build([]domain.Comment{comment("1", ""), comment("2", "1")})
	f = Insert(f, comment("3", ""), nil)
	f = Insert(f, comment("4", "2"), ptr("2"))
	if got := shape(f); got != "1[2[4]],3" {
		t.Fatalf("unexpected shape %s", got)
	}
}

func TestInsert_AppendsAfterExistingSiblings(t *testing.T) {
	f := Build([]domain.Comment{comment("1", ""), comment("2", "1"), comment("3", "1")})
	f = Insert(f, comment("0", "1"), ptr("1"))
	if got := shape(f); got != "1[2,3,0]" {
		t.Fatalf("expected new reply last, got %s", got)
	}
}

func TestInsert_UnknownParentFallsBackToRoot(t *testing.T) {
	f := Build([]domain.Comment{comment("1", "")})
	f = Insert(f, comment("2", "missing"), ptr("missing"))
	if got := shape(f); got != "1,2" {
		t.Fatalf("expected 1,2, got %s", got)
	}
}

func TestInsert_Idempotent(t *testing.T) {
	f := Build([]domain.Comment{comment("1", "")})
	once := Insert(f, comment("c1", "1"), ptr("1"))
	twice := Insert(once, comment("c1", "1"), ptr("1"))
	if shape(once) != shape(twice) {
		t.Fatalf("expected idempotent insert, got %s vs %s", shape(once), shape(twice))
	}
	count := 0
	Walk(twice, func(n *Node, _ int) bool {
		if n.Comment.ID == "c1" {
			count++
		}
		return true
	})
	if count != 1 {
		t.Fatalf("expected exactly one c1, got %d", count)
	}
}

func TestInsert_DoesNotMutateInput(t *testing.T) {
	f := Build([]domain.Comment{comment("1", ""), comment("2", "1")})
	before := shape(f)
	_ = Insert(f, comment("3", "2"), ptr("2"))
	_ = Insert(f, comment("4", ""), nil)
	if shape(f) != before {
		t.Fatalf("input forest changed: %s -> %s", before, shape(f))
	}
}

func TestUpdate_DeepNodeWithStructuralSharing(t *testing.T) {
	f := Build([]domain.Comment{
		comment("a", ""), comment("a1", "a"), comment("a2", "a"), comment("b", ""),
	})
	content := "edited"
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	g := Update(f, "a2", Patch{Content: &content, UpdatedAt: &at})

	n, ok := Find(g, "a2")
	if !ok || n.Comment.Content != "edited" || n.Comment.UpdatedAt == nil || !n.Comment.UpdatedAt.Equal(at) {
		t.Fatalf("expected patched a2, got %+v", n)
	}
	old, _ := Find(f, "a2")
	if old.Comment.Content == "edited" {
		t.Fatal("original forest was modified")
	}
	if g[1] != f[1] {
		t.Fatal("expected untouched root b to be shared")
	}
	if g[0].Replies[0] != f[0].Replies[0] {
		t.Fatal("expected untouched sibling a1 to be shared")
	}
	if g[0] == f[0] {
		t.Fatal("expected root a on the path to be copied")
	}
}

func TestUpdate_UnknownIDNoop(t *testing.T) {
	f := Build([]domain.Comment{comment("1", "")})
	content := "x"
	g := Update(f, "nope", Patch{Content: &content})
	if len(g) != 1 || g[0] != f[0] {
		t.Fatal("expected unchanged forest")
	}
}

func TestRemove_CascadesToDescendants(t *testing.T) {
	f := Build([]domain.Comment{
		comment("1", ""), comment("2", "1"), comment("3", "2"), comment("4", "1"), comment("5", ""),
	})
	g, removed := Remove(f, "2")
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if got := shape(g); got != "1[4],5" {
		t.Fatalf("unexpected shape %s", got)
	}
	for _, id := range []string{"2", "3"} {
		if Contains(g, id) {
			t.Fatalf("expected %s to be gone", id)
		}
		// Rebuilding from what is left must not bring them back either.
		if Contains(Build(Flatten(g)), id) {
			t.Fatalf("expected %s to be gone after rebuild", id)
		}
	}
	if Len(f) != 5 {
		t.Fatal("original forest was modified")
	}
}

func TestRemove_RootAndUnknown(t *testing.T) {
	f := Build([]domain.Comment{comment("1", ""), comment("2", "1"), comment("3", "")})
	g, removed := Remove(f, "1")
	if removed != 2 || shape(g) != "3" {
		t.Fatalf("unexpected result %s removed=%d", shape(g), removed)
	}
	h, removed := Remove(g, "ghost")
	if removed != 0 || shape(h) != "3" {
		t.Fatalf("expected no-op, got %s removed=%d", shape(h), removed)
	}
}

func TestReplace_SwapsTemporaryRecord(t *testing.T) {
	f := Build([]domain.Comment{comment("1", "")})
	f = Insert(f, comment("tmp-1", "1"), ptr("1"))
	f = Replace(f, "tmp-1", comment("42", "1"))
	if got := shape(f); got != "1[42]" {
		t.Fatalf("expected 1[42], got %s", got)
	}
}

func TestReplace_DropsTemporaryWhenRealAlreadyPresent(t *testing.T) {
	f := Build([]domain.Comment{comment("1", "")})
	f = Insert(f, comment("tmp-1", ""), nil)
	f = Insert(f, comment("42", ""), nil)
	f = Replace(f, "tmp-1", comment("42", ""))
	if got := shape(f); got != "1,42" {
		t.Fatalf("expected 1,42, got %s", got)
	}
}

func TestFlattenAndWalkDepth(t *testing.T) {
	f := Build([]domain.Comment{comment("1", ""), comment("2", "1"), comment("3", "2")})
	var depths []int
	Walk(f, func(_ *Node, d int) bool {
		depths = append(depths, d)
		return true
	})
	if fmt.Sprint(depths) != "[0 1 2]" {
		t.Fatalf("unexpected depths %v", depths)
	}
	flat := Flatten(f)
	if len(flat) != 3 || flat[2].ID != "3" {
		t.Fatalf("unexpected flatten %v", flat)
	}
}
