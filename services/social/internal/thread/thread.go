// Package thread keeps the comments of one post as a forest of reply trees.
//
// All functions are pure: they never modify the forest they are given and
// return a forest in which only the nodes on the path to a change are new.
// Unknown ids never fail; updates and removals become no-ops and inserts
// whose parent is unknown are promoted to roots.
package thread

import (
	"time"

	"github.com/example/orbit/services/social/internal/domain"
)

// Node is a comment and its replies in arrival order.
type Node struct {
	Comment domain.Comment `json:"comment"`
	Replies []*Node        `json:"replies"`
}

// Forest is the ordered list of top-level comments.
type Forest []*Node

// Patch lists the fields an edit may change. Nil fields are left alone.
type Patch struct {
	Content   *string
	UpdatedAt *time.Time
}

// Build turns a flat list into a forest. Siblings keep input order, so
// callers pass comments sorted by created_at ascending. Comments whose
// parent is missing from the batch, or that point at themselves, become
// roots; a duplicate id keeps its first occurrence. If parent links form a
// cycle, the first comment of the cycle in input order becomes a root.
func Build(flat []domain.Comment) Forest {
	index := make(map[string]*Node, len(flat))
	order := make([]string, 0, len(flat))
	for _, c := range flat {
		if _, dup := index[c.ID]; dup {
			continue
		}
		index[c.ID] = &Node{Comment: c}
		order = append(order, c.ID)
	}

	parentOf := make(map[string]string, len(order))
	for _, id := range order {
		p := index[id].Comment.Parent()
		if p == id || index[p] == nil {
			p = ""
		}
		parentOf[id] = p
	}
	for _, id := range order {
		seen := map[string]bool{id: true}
		for cur := parentOf[id]; cur != ""; cur = parentOf[cur] {
			if cur == id {
				parentOf[id] = ""
				break
			}
			if seen[cur] {
				break
			}
			seen[cur] = true
		}
	}

	roots := make(Forest, 0)
	for _, id := range order {
		n := index[id]
		if p := parentOf[id]; p != "" {
			parent := index[p]
			parent.Replies = append(parent.Replies, n)
			continue
		}
		roots = append(roots, n)
	}
	return roots
}

// Insert adds c under parentID, or as the last root when parentID is nil,
// empty or not in the forest. Inserting an id that is already present
// returns f unchanged.
func Insert(f Forest, c domain.Comment, parentID *string) Forest {
	if Contains(f, c.ID) {
		return f
	}
	node := &Node{Comment: c}
	if parentID != nil && *parentID != "" {
		out, ok := rewrite(f, *parentID, func(n *Node) *Node {
			cp := *n
			cp.Replies = appendNode(n.Replies, node)
			return &cp
		})
		if ok {
			return out
		}
	}
	return appendNode(f, node)
}

// Update applies patch to the comment with id. Unknown ids are a no-op.
func Update(f Forest, id string, patch Patch) Forest {
	out, _ := rewrite(f, id, func(n *Node) *Node {
		cp := *n
		if patch.Content != nil {
			cp.Comment.Content = *patch.Content
		}
		if patch.UpdatedAt != nil {
			t := *patch.UpdatedAt
			cp.Comment.UpdatedAt = &t
		}
		return &cp
	})
	return out
}

// Remove deletes the comment with id and all of its replies. It returns
// the new forest and how many comments were removed (0 for unknown ids).
func Remove(f Forest, id string) (Forest, int) {
	removed := 0
	out, _ := rewrite(f, id, func(n *Node) *Node {
		removed = subtreeLen(n)
		return nil
	})
	return out, removed
}

// Replace swaps the record stored under oldID for c, keeping the replies.
// If c.ID is already elsewhere in the forest the node under oldID is
// dropped instead, so an id never appears twice.
func Replace(f Forest, oldID string, c domain.Comment) Forest {
	if c.ID != oldID && Contains(f, c.ID) {
		out, _ := Remove(f, oldID)
		return out
	}
	out, _ := rewrite(f, oldID, func(n *Node) *Node {
		cp := *n
		cp.Comment = c
		return &cp
	})
	return out
}

// Find returns the node with id using a depth-first search.
func Find(f Forest, id string) (*Node, bool) {
	var found *Node
	Walk(f, func(n *Node, _ int) bool {
		if n.Comment.ID == id {
			found = n
			return false
		}
		return true
	})
	return found, found != nil
}

func Contains(f Forest, id string) bool {
	_, ok := Find(f, id)
	return ok
}

// Len counts every comment in the forest.
func Len(f Forest) int {
	n := 0
	Walk(f, func(*Node, int) bool { n++; return true })
	return n
}

// Walk visits nodes depth-first in display order until fn returns false.
func Walk(f Forest, fn func(n *Node, depth int) bool) {
	walk(f, 0, fn)
}

func walk(nodes []*Node, depth int, fn func(*Node, int) bool) bool {
	for _, n := range nodes {
		if !fn(n, depth) {
			return false
		}
		if !walk(n.Replies, depth+1, fn) {
			return false
		}
	}
	return true
}

// Flatten lists the comments in display order.
func Flatten(f Forest) []domain.Comment {
	out := make([]domain.Comment, 0)
	Walk(f, func(n *Node, _ int) bool {
		out = append(out, n.Comment)
		return true
	})
	return out
}

func subtreeLen(n *Node) int {
	return 1 + Len(n.Replies)
}

// rewrite finds id at any depth and replaces its node with fn(node); a nil
// result removes it. Only the slices and nodes on the path are copied.
func rewrite(nodes []*Node, id string, fn func(*Node) *Node) ([]*Node, bool) {
	for i, n := range nodes {
		if n.Comment.ID == id {
			out := make([]*Node, 0, len(nodes))
			out = append(out, nodes[:i]...)
			if repl := fn(n); repl != nil {
				out = append(out, repl)
			}
			return append(out, nodes[i+1:]...), true
		}
		if replies, ok := rewrite(n.Replies, id, fn); ok {
			cp := *n
			cp.Replies = replies
			out := make([]*Node, len(nodes))
			copy(out, nodes)
			out[i] = &cp
			return out, true
		}
	}
	return nodes, false
}

func appendNode(nodes []*Node, n *Node) []*Node {
	out := make([]*Node, len(nodes), len(nodes)+1)
	copy(out, nodes)
	return append(out, n)
}
