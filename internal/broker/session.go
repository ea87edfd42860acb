package broker

import (
	"crypto/rand"
	"log"
	"math/big"
	"time"
)

// sessionCapacity is the maximum number of members in one session.
const sessionCapacity = 2

const (
	sessionIDPrefix   = "session-"
	sessionIDLength   = 9
	sessionIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
)

// Session pairs at most two member connections.
type Session struct {
	// ID is the broker-generated identifier handed to the creator.
	ID string

	// CreatedAt is when the first member created the session.
	CreatedAt time.Time

	// members in join order.
	members []*Client
}

// Size returns the number of members.
func (s *Session) Size() int {
	return len(s.members)
}

// other returns the member that is not m, or nil.
func (s *Session) other(m *Client) *Client {
	for _, member := range s.members {
		if member != m {
			return member
		}
	}
	return nil
}

func (s *Session) remove(m *Client) {
	for i, member := range s.members {
		if member == m {
			s.members = append(s.members[:i], s.members[i+1:]...)
			return
		}
	}
}

// generateSessionID returns "session-" followed by nine random base-36
// characters.
func generateSessionID() string {
	b := make([]byte, sessionIDLength)
	for i := range b {
		b[i] = sessionIDAlphabet[randomIndex(len(sessionIDAlphabet))]
	}
	return sessionIDPrefix + string(b)
}

// randomIndex returns a cryptographically secure random index for a slice of given length.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		log.Panic("Failed to generate random index:", err)
	}
	return int(n.Int64())
}
