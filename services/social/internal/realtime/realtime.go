// Package realtime carries row changes from the service to subscribed views.
//
// A change names its table, its type and the row after (or, for deletes,
// before) the change. Subscribers filter by table, type and equality on the
// row's key columns.
package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ChangeType string

const (
	Insert ChangeType = "insert"
	Update ChangeType = "update"
	Delete ChangeType = "delete"
)

const (
	TablePosts    = "posts"
	TableComments = "comments"
	TableLikes    = "likes"
	TableFollows  = "follows"
	TableProfiles = "profiles"
)

// Change is one row change.
type Change struct {
	ID    string     `json:"id"`
	Table string     `json:"table"`
	Type  ChangeType `json:"type"`
	// Keys holds the filterable columns of the row, e.g. id and post_id.
	Keys       map[string]string `json:"keys"`
	Row        json.RawMessage   `json:"row"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// NewChange encodes row into a change.
func NewChange(table string, typ ChangeType, row any, keys map[string]string) (Change, error) {
	data, err := json.Marshal(row)
	if err != nil {
		return Change{}, err
	}
	return Change{
		ID:         uuid.NewString(),
		Table:      table,
		Type:       typ,
		Keys:       keys,
		Row:        data,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// Decode unmarshals the row into v.
func (c Change) Decode(v any) error {
	return json.Unmarshal(c.Row, v)
}

// Filter matches rows whose key columns equal every entry.
type Filter map[string]string

func (f Filter) Match(keys map[string]string) bool {
	for k, v := range f {
		if keys[k] != v {
			return false
		}
	}
	return true
}

// Matches reports whether c belongs to a subscription on table for types
// (all types when empty) and filter.
func (c Change) Matches(table string, types []ChangeType, filter Filter) bool {
	if c.Table != table {
		return false
	}
	if len(types) > 0 {
		ok := false
		for _, t := range types {
			if t == c.Type {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return filter.Match(c.Keys)
}

// Subscription delivers matching changes until Unsubscribe is called or the
// context given to Subscribe ends. The channel is closed afterwards.
type Subscription interface {
	Changes() <-chan Change
	Unsubscribe()
}

type Subscriber interface {
	Subscribe(ctx context.Context, table string, types []ChangeType, filter Filter) (Subscription, error)
}

type Publisher interface {
	Publish(ctx context.Context, c Change) error
}

// subscriptionBuffer bounds the changes queued for one slow subscriber.
// Changes beyond it are dropped.
const subscriptionBuffer = 64

func logDropped(log *zap.Logger, c Change) {
	log.Warn("realtime: subscriber buffer full, change dropped",
		zap.String("table", c.Table), zap.String("type", string(c.Type)))
}
