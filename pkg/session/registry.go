package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Registry owns the live sessions, keyed by match id. It is the only state
// shared between matches.
type Registry struct {
	defaults Options

	mu       sync.RWMutex
	sessions map[MatchID]*Session
}

// NewRegistry creates a registry. Zero fields of the Options passed to
// Create are filled from defaults, except Target and Practice.
func NewRegistry(defaults Options) *Registry {
	return &Registry{
		defaults: defaults,
		sessions: make(map[MatchID]*Session),
	}
}

// Create starts a new session under a fresh id.
func (r *Registry) Create(opts Options) (*Session, error) {
	if opts.MaxCube == 0 {
		opts.MaxCube = r.defaults.MaxCube
	}
	if opts.QueueSize == 0 {
		opts.QueueSize = r.defaults.QueueSize
	}
	if opts.EventBuffer == 0 {
		opts.EventBuffer = r.defaults.EventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = r.defaults.Logger
	}
	if opts.Saver == nil {
		opts.Saver = r.defaults.Saver
	}
	if opts.Roller == nil {
		opts.Roller = r.defaults.Roller
	}

	s, err := New(MatchID(uuid.New().String()), opts)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.sessions[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Get looks up a session.
func (r *Registry) Get(id MatchID) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove closes and forgets a session. It reports whether it existed.
func (r *Registry) Remove(id MatchID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.Close()
	}
	return ok
}

// List returns the latest snapshot of every session, oldest first.
func (r *Registry) List() []*Snapshot {
	r.mu.RLock()
	out := make([]*Snapshot, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Snapshot())
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Snapshot) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.MatchID < b.MatchID {
			return -1
		}
		if a.MatchID > b.MatchID {
			return 1
		}
		return 0
	})
	return out
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// PruneCompleted closes and removes every session whose match is over and
// that has no subscribers left. It returns how many were removed.
func (r *Registry) PruneCompleted() int {
	r.mu.Lock()
	var stale []*Session
	for id, s := range r.sessions {
		if s.Snapshot().Completed() && s.Subscribers() == 0 {
			stale = append(stale, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Close stops every session.
func (r *Registry) Close() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[MatchID]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
