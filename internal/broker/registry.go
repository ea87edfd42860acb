package broker

import (
	"time"

	"github.com/BioHazard786/Deskrelay/internal/remote"
)

// Registry is the authoritative session map. It is not safe for concurrent
// use: the hub owns it and calls it from a single goroutine.
type Registry struct {
	sessions   map[string]*Session
	membership map[*Client]string
	now        func() time.Time
	newID      func() string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		membership: make(map[*Client]string),
		now:        time.Now,
		newID:      generateSessionID,
	}
}

// Create starts a new session with m as its first member.
func (r *Registry) Create(m *Client) (*Session, error) {
	if _, ok := r.membership[m]; ok {
		return nil, remote.ErrAlreadyInSession
	}

	id := r.newID()
	for r.sessions[id] != nil {
		id = r.newID()
	}

	s := &Session{ID: id, CreatedAt: r.now(), members: []*Client{m}}
	r.sessions[id] = s
	r.membership[m] = id
	return s, nil
}

// Join admits m as the second member of the session id. It returns the
// member that was already there.
func (r *Registry) Join(m *Client, id string) (*Client, error) {
	if _, ok := r.membership[m]; ok {
		return nil, remote.ErrAlreadyInSession
	}

	s, ok := r.sessions[id]
	if !ok {
		return nil, remote.ErrSessionNotFound
	}
	if s.Size() >= sessionCapacity {
		return nil, remote.ErrSessionFull
	}

	existing := s.other(m)
	s.members = append(s.members, m)
	r.membership[m] = id
	return existing, nil
}

// Peer returns the other member of m's session. ok is false when m is not in
// a session; peer is nil when m is alone.
func (r *Registry) Peer(m *Client) (peer *Client, sessionID string, ok bool) {
	id, ok := r.membership[m]
	if !ok {
		return nil, "", false
	}
	return r.sessions[id].other(m), id, true
}

// Leave removes m from its session. It returns the remaining member, if any,
// and whether the session was destroyed.
func (r *Registry) Leave(m *Client) (remaining *Client, sessionID string, destroyed bool) {
	id, ok := r.membership[m]
	if !ok {
		return nil, "", false
	}
	delete(r.membership, m)

	s := r.sessions[id]
	s.remove(m)
	if s.Size() == 0 {
		delete(r.sessions, id)
		return nil, id, true
	}
	return s.other(m), id, false
}

// Session looks up a session by id.
func (r *Registry) Session(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	return len(r.sessions)
}
