package progress

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// NowFunc current time, replaced in tests
var NowFunc = time.Now

type session struct {
	tracker  *Tracker
	lastSeen time.Time
}

// Registry one shared tracker per (learner, course), every view asks the same instance
type Registry struct {
	idle     time.Duration
	mu       sync.Mutex
	sessions map[string]*session
	opens    singleflight.Group
}

// NewRegistry create a registry evicting trackers idle for longer than idle, 0 keeps them forever
func NewRegistry(idle time.Duration) *Registry {
	return &Registry{
		idle:     idle,
		sessions: make(map[string]*session),
	}
}

func sessionKey(learnerID, courseID string) string {
	return learnerID + "|" + courseID
}

// Get returns the tracker of (learnerID, courseID), calling open once when there is none.
// Concurrent callers wait for the same open.
func (r *Registry) Get(ctx context.Context, learnerID, courseID string, open func(ctx context.Context) (*Tracker, error)) (*Tracker, error) {
	key := sessionKey(learnerID, courseID)
	if t := r.lookup(key); t != nil {
		return t, nil
	}

	v, err, _ := r.opens.Do(key, func() (interface{}, error) {
		if t := r.lookup(key); t != nil {
			return t, nil
		}
		t, err := open(ctx)
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[key] = &session{tracker: t, lastSeen: NowFunc()}
		r.mu.Unlock()
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tracker), nil
}

func (r *Registry) lookup(key string) *Tracker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		s.lastSeen = NowFunc()
		return s.tracker
	}
	return nil
}

// Evict drops the tracker of (learnerID, courseID)
func (r *Registry) Evict(learnerID, courseID string) {
	r.mu.Lock()
	delete(r.sessions, sessionKey(learnerID, courseID))
	r.mu.Unlock()
}

// Sweep evicts idle trackers and returns how many were dropped
func (r *Registry) Sweep() int {
	if r.idle <= 0 {
		return 0
	}
	deadline := NowFunc().Add(-r.idle)

	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, s := range r.sessions {
		if s.lastSeen.Before(deadline) {
			delete(r.sessions, key)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep()
		}
	}
}

// Len number of live trackers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
