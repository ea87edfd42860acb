package session

import (
	"fmt"
	"sync"
)

// Role is the part a participant plays in a session.
type Role int

const (
	RoleHost Role = iota + 1
	RoleGuest
)

func (r Role) String() string {
	switch r {
	case RoleHost:
		return "host"
	case RoleGuest:
		return "guest"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

// State is a step of the session lifecycle.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateWaitingForPeer
	StateJoining
	StateNegotiating
	StateStreaming
	StateDisconnected
	StateReconnecting
	StateClosed
)

var stateNames = map[State]string{
	StateIdle:           "idle",
	StateConnecting:     "connecting",
	StateWaitingForPeer: "waiting for peer",
	StateJoining:        "joining",
	StateNegotiating:    "negotiating",
	StateStreaming:      "streaming",
	StateDisconnected:   "disconnected",
	StateReconnecting:   "reconnecting",
	StateClosed:         "closed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// transitions lists the legal successors of each state. Closed has none.
var transitions = map[State][]State{
	StateIdle:           {StateConnecting, StateJoining, StateReconnecting},
	StateConnecting:     {StateWaitingForPeer, StateJoining, StateNegotiating, StateIdle, StateDisconnected, StateReconnecting},
	StateWaitingForPeer: {StateNegotiating, StateDisconnected, StateReconnecting},
	StateJoining:        {StateNegotiating, StateIdle, StateDisconnected, StateReconnecting},
	StateNegotiating:    {StateStreaming, StateWaitingForPeer, StateDisconnected, StateReconnecting},
	StateStreaming:      {StateNegotiating, StateDisconnected, StateReconnecting},
	StateDisconnected:   {StateNegotiating, StateWaitingForPeer, StateReconnecting},
	StateReconnecting:   {StateConnecting, StateDisconnected},
}

// Machine guards the lifecycle of one participant. Illegal transitions are
// refused, never panicked on.
type Machine struct {
	role Role

	mu       sync.Mutex
	state    State
	onChange func(from, to State)
}

func NewMachine(role Role, onChange func(from, to State)) *Machine {
	return &Machine{role: role, state: StateIdle, onChange: onChange}
}

func (m *Machine) Role() Role {
	return m.role
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// To moves to next and reports whether the move happened. Staying in the
// current state is not a transition. Any state may close.
func (m *Machine) To(next State) bool {
	m.mu.Lock()
	from := m.state
	if from == next || !m.allowed(from, next) {
		m.mu.Unlock()
		return false
	}
	m.state = next
	m.mu.Unlock()

	if m.onChange != nil {
		m.onChange(from, next)
	}
	return true
}

func (m *Machine) allowed(from, to State) bool {
	if from == StateClosed {
		return false
	}
	if to == StateClosed {
		return true
	}
	// Waiting is a host state, joining a guest one.
	if to == StateWaitingForPeer && m.role != RoleHost {
		return false
	}
	if to == StateJoining && m.role != RoleGuest {
		return false
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
