package telnet

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/cyberinferno/telnetd/idgenerator"
	"github.com/cyberinferno/telnetd/safemap"
	"github.com/cyberinferno/telnetd/safeset"
)

// Registry is the set of live sessions, keyed by session ID. Each socket
// descriptor appears at most once. Mutations happen on the event loop;
// lookups are safe from any goroutine.
type Registry struct {
	ids      *idgenerator.IdGenerator
	sessions *safemap.SafeMap[uint32, *Session]
	fds      *safeset.SafeSet[int]
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		ids:      idgenerator.NewIdGenerator(0),
		sessions: safemap.NewSafeMap[uint32, *Session](),
		fds:      safeset.NewSafeSet[int](),
	}
}

// NextID returns a fresh session ID.
func (r *Registry) NextID() uint32 {
	return r.ids.Id()
}

// Add inserts s.
//
// Returns:
//   - ErrDuplicateSocket if another session owns the same descriptor
//   - ErrDuplicateSession if the ID is taken
func (r *Registry) Add(s *Session) error {
	if !r.fds.Add(s.fd) {
		return fmt.Errorf("fd %d: %w", s.fd, ErrDuplicateSocket)
	}

	if _, loaded := r.sessions.LoadOrStore(s.id, s); loaded {
		r.fds.Remove(s.fd)
		return fmt.Errorf("session %d: %w", s.id, ErrDuplicateSession)
	}

	return nil
}

// Remove unlinks s.
//
// Returns:
//   - true if s was registered
func (r *Registry) Remove(s *Session) bool {
	cur, ok := r.sessions.Load(s.id)
	if !ok || cur != s {
		return false
	}

	r.sessions.Delete(s.id)
	r.fds.Remove(s.fd)
	return true
}

// Get returns the session with the given ID.
func (r *Registry) Get(id uint32) (*Session, bool) {
	return r.sessions.Load(id)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return r.fds.Size()
}

// Sessions returns a snapshot of the live sessions ordered by ID.
func (r *Registry) Sessions() []*Session {
	out := r.sessions.Values()
	slices.SortFunc(out, func(a, b *Session) int { return cmp.Compare(a.id, b.id) })
	return out
}
