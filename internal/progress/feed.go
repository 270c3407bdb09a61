package progress

import (
	"sync"

	"github.com/pot-code/course-progress/internal/domain"
	"github.com/pot-code/course-progress/internal/infrastructure/uuid"
)

// Subscription receives the snapshots published for one (learner, course).
// Only the latest snapshot is buffered, a slow reader skips stale ones.
type Subscription struct {
	ID string
	C  <-chan domain.ProgressSnapshot

	ch   chan domain.ProgressSnapshot
	key  string
	feed *Feed
	once sync.Once
}

// Close unsubscribe, C is closed afterwards
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.feed.remove(s)
	})
}

// Feed in-process pub/sub of progress snapshots
type Feed struct {
	ids  uuid.Generator
	mu   sync.Mutex
	subs map[string]map[string]*Subscription
}

// NewFeed .
func NewFeed(ids uuid.Generator) *Feed {
	return &Feed{
		ids:  ids,
		subs: make(map[string]map[string]*Subscription),
	}
}

// Subscribe .
func (f *Feed) Subscribe(learnerID, courseID string) (*Subscription, error) {
	id, err := f.ids.Generate()
	if err != nil {
		return nil, err
	}
	ch := make(chan domain.ProgressSnapshot, 1)
	sub := &Subscription{
		ID:   id,
		C:    ch,
		ch:   ch,
		key:  sessionKey(learnerID, courseID),
		feed: f,
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	group, ok := f.subs[sub.key]
	if !ok {
		group = make(map[string]*Subscription)
		f.subs[sub.key] = group
	}
	group[id] = sub
	return sub, nil
}

// Publish delivers snap to every subscriber of (learnerID, courseID) without blocking
func (f *Feed) Publish(learnerID, courseID string, snap domain.ProgressSnapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs[sessionKey(learnerID, courseID)] {
		select {
		case sub.ch <- snap:
			continue
		default:
		}
		// drop the stale snapshot, the buffer then has room
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- snap
	}
}

// Subscribers number of subscribers of (learnerID, courseID)
func (f *Feed) Subscribers(learnerID, courseID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[sessionKey(learnerID, courseID)])
}

func (f *Feed) remove(sub *Subscription) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if group, ok := f.subs[sub.key]; ok {
		delete(group, sub.ID)
		if len(group) == 0 {
			delete(f.subs, sub.key)
		}
	}
	close(sub.ch)
}
