package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// SubjectPrefix roots every change subject: realtime.<table>.<type>.
const SubjectPrefix = "realtime"

func Subject(table string, t ChangeType) string {
	if t == "" {
		return SubjectPrefix + "." + table + ".*"
	}
	return SubjectPrefix + "." + table + "." + string(t)
}

// Broker publishes and subscribes to changes over NATS core subjects.
// A nil *Broker or one without a connection drops published changes.
type Broker struct {
	nc  *nats.Conn
	log *zap.Logger
}

func NewBroker(nc *nats.Conn, log *zap.Logger) *Broker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Broker{nc: nc, log: log}
}

func (b *Broker) Publish(_ context.Context, c Change) error {
	if b == nil || b.nc == nil {
		return nil
	}
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return b.nc.Publish(Subject(c.Table, c.Type), data)
}

type natsSub struct {
	log    *zap.Logger
	mu     sync.Mutex
	subs   []*nats.Subscription
	ch     chan Change
	done   chan struct{}
	closed bool
}

func (s *natsSub) Changes() <-chan Change { return s.ch }

func (s *natsSub) Unsubscribe() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	close(s.ch)
	close(s.done)
}

func (s *natsSub) deliver(c Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- c:
	default:
		logDropped(s.log, c)
	}
}

func (b *Broker) Subscribe(ctx context.Context, table string, types []ChangeType, filter Filter) (Subscription, error) {
	if b == nil || b.nc == nil {
		return nil, errors.New("realtime: no NATS connection")
	}
	s := &natsSub{log: b.log, ch: make(chan Change, subscriptionBuffer), done: make(chan struct{})}

	subjects := []string{Subject(table, "")}
	if len(types) > 0 {
		subjects = subjects[:0]
		for _, t := range types {
			subjects = append(subjects, Subject(table, t))
		}
	}

	for _, subj := range subjects {
		sub, err := b.nc.Subscribe(subj, func(m *nats.Msg) {
			var c Change
			if err := json.Unmarshal(m.Data, &c); err != nil {
				b.log.Warn("realtime: invalid change", zap.String("subject", m.Subject), zap.Error(err))
				return
			}
			if c.Matches(table, types, filter) {
				s.deliver(c)
			}
		})
		if err != nil {
			s.Unsubscribe()
			return nil, err
		}
		s.mu.Lock()
		s.subs = append(s.subs, sub)
		s.mu.Unlock()
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Unsubscribe()
		case <-s.done:
		}
	}()
	return s, nil
}
