// Package session runs one participant: it drives the signaling client and
// the peer connection through the lifecycle in state.go.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/control"
	"github.com/BioHazard786/Deskrelay/internal/peer"
	"github.com/BioHazard786/Deskrelay/internal/protocol"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/signaling"
)

const (
	updateBuffer    = 128
	peerEventBuffer = 32
)

// Update is what the controller tells its user interface.
type Update struct {
	State     State
	SessionID string
	Note      string
	Err       error
}

// Options configures a Controller.
type Options struct {
	Role      Role
	SessionID string
	Config    *config.Config

	// Source opens the host's video for each new peer. Nil streams no video.
	Source func() (peer.Source, error)
	// Agent applies the guest's input on the host.
	Agent control.Agent
	// Sink receives the guest's inbound video.
	Sink peer.Sink

	Signaling       signaling.Options
	RestartDebounce time.Duration
}

// Summary describes a finished or running session.
type Summary struct {
	Role          Role
	SessionID     string
	Started       time.Time
	Duration      time.Duration
	ControlEvents uint64
	VideoPackets  uint64
	Reconnects    int
	FinalState    State
}

type peerEventKind int

const (
	peerICE peerEventKind = iota
	peerControlOpen
	peerError
)

type peerEvent struct {
	gen   uint64
	kind  peerEventKind
	state pion.ICEConnectionState
	err   error
}

// Controller owns the signaling client and at most one peer manager.
type Controller struct {
	opts     Options
	machine  *Machine
	client   *signaling.Client
	executor *control.Executor
	updates  chan Update
	events   chan peerEvent
	started  time.Time

	mu        sync.Mutex
	peer      *peer.Manager
	gen       uint64
	sessionID string
	paired    bool
	closed    bool

	sent      atomic.Uint64
	closeOnce sync.Once
	done      chan struct{}
}

// New validates opts and builds a controller. Nothing connects until Run.
func New(opts Options) (*Controller, error) {
	if opts.Config == nil {
		return nil, errors.New("session: config is required")
	}
	switch opts.Role {
	case RoleHost:
		if opts.Agent == nil {
			return nil, errors.New("session: host needs an input agent")
		}
	case RoleGuest:
		if opts.SessionID == "" {
			return nil, errors.New("session: guest needs a session id")
		}
	default:
		return nil, errors.New("session: unknown role")
	}

	sigOpts := opts.Signaling
	sigOpts.Recreate = opts.Role == RoleHost

	c := &Controller{
		opts:    opts,
		client:  signaling.NewClient(opts.Config.WebSocketURL(), sigOpts),
		updates: make(chan Update, updateBuffer),
		events:  make(chan peerEvent, peerEventBuffer),
		done:    make(chan struct{}),
	}
	c.machine = NewMachine(opts.Role, c.stateChanged)
	if opts.Agent != nil {
		c.executor = control.NewExecutor(opts.Agent)
	}
	return c, nil
}

// Updates streams state changes, notes and errors for display.
func (c *Controller) Updates() <-chan Update {
	return c.updates
}

// Done is closed once the controller has shut down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) State() State {
	return c.machine.State()
}

func (c *Controller) Role() Role {
	return c.machine.Role()
}

// SessionID returns the session currently held.
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Run connects and processes events until ctx is done or Close is called.
func (c *Controller) Run(ctx context.Context) error {
	c.started = time.Now()
	c.machine.To(StateConnecting)

	if err := c.client.Connect(ctx); err != nil {
		c.machine.To(StateReconnecting)
		c.notify(Update{Note: "broker unreachable, retrying", Err: remote.NewError("connect", err)})
	}

	for {
		select {
		case <-ctx.Done():
			c.Close()
			return ctx.Err()
		case <-c.done:
			return nil
		case ev := <-c.client.Events():
			c.handleSignaling(ev)
		case ev := <-c.events:
			c.handlePeer(ev)
		}
	}
}

// SendControl forwards a guest input event over the control channel.
func (c *Controller) SendControl(msg control.Message) error {
	c.mu.Lock()
	m := c.peer
	c.mu.Unlock()

	if m == nil {
		return remote.ErrChannelNotOpen
	}
	if err := m.SendControl(msg, binaryFrame(msg.T)); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}

// binaryFrame picks msgpack for the high-rate pointer events. Everything
// else goes out as JSON text.
func binaryFrame(k control.Kind) bool {
	return k == control.KindMove || k == control.KindWheel
}

// Join retries a refused join with a corrected session id. Only an idle
// guest can join again.
func (c *Controller) Join(id string) error {
	if c.opts.Role != RoleGuest {
		return errors.New("session: only a guest can join")
	}
	if id == "" {
		return errors.New("session: empty session id")
	}
	if s := c.machine.State(); s != StateIdle {
		return fmt.Errorf("session: cannot join while %s", s)
	}

	c.setSessionID(id)
	if !c.client.JoinSession(id) {
		c.client.ClearSession()
		c.setSessionID("")
		return remote.ErrNotConnected
	}
	c.machine.To(StateJoining)
	return nil
}

// RetryMedia rebuilds the host's peer after a capture failure while the
// guest is still in the session.
func (c *Controller) RetryMedia() {
	select {
	case c.events <- peerEvent{kind: peerError, err: errRetry}:
	default:
	}
}

var errRetry = errors.New("retry media")

// Close tears everything down: peer, signaling client, timers and the held
// session id. It is safe to call more than once.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.closePeer()
		c.client.Close()

		c.mu.Lock()
		c.sessionID = ""
		c.mu.Unlock()

		c.machine.To(StateClosed)
		close(c.done)
	})
}

// Summary reports what happened in the session so far.
func (c *Controller) Summary() Summary {
	s := Summary{
		Role:       c.opts.Role,
		SessionID:  c.SessionID(),
		Started:    c.started,
		Reconnects: c.client.Reconnects(),
		FinalState: c.State(),
	}
	if !c.started.IsZero() {
		s.Duration = time.Since(c.started)
	}
	if c.executor != nil {
		s.ControlEvents = c.executor.Applied()
	} else {
		s.ControlEvents = c.sent.Load()
	}
	if c.opts.Sink != nil {
		s.VideoPackets = c.opts.Sink.Packets()
	}
	return s
}

func (c *Controller) handleSignaling(ev signaling.Event) {
	switch ev.Kind {
	case signaling.EventConnected:
		c.connected()
	case signaling.EventDisconnected:
		c.machine.To(StateDisconnected)
	case signaling.EventReconnecting:
		c.machine.To(StateReconnecting)
	case signaling.EventMessage:
		c.handleEnvelope(ev.Envelope)
	}
}

// connected sends the first create or join. Later connections are replayed
// by the signaling client itself.
func (c *Controller) connected() {
	if c.machine.State() == StateReconnecting {
		c.machine.To(StateConnecting)
	}

	c.mu.Lock()
	first := !c.paired
	c.paired = true
	c.mu.Unlock()
	if !first {
		return
	}

	switch c.opts.Role {
	case RoleHost:
		c.client.CreateSession()
	case RoleGuest:
		c.setSessionID(c.opts.SessionID)
		c.client.JoinSession(c.opts.SessionID)
		c.machine.To(StateJoining)
	}
}

func (c *Controller) handleEnvelope(env *protocol.Envelope) {
	host := c.opts.Role == RoleHost

	switch env.Type {
	case protocol.TypeSessionCreated:
		if !host {
			return
		}
		c.setSessionID(env.SessionID)
		c.machine.To(StateWaitingForPeer)

	case protocol.TypeJoinSuccess:
		if env.SessionID != "" {
			c.setSessionID(env.SessionID)
		}
		if host {
			// Rejoined after a reconnect. The offer is dropped by the broker
			// if the guest has gone.
			c.machine.To(StateWaitingForPeer)
			c.startHost(true)
			return
		}
		c.machine.To(StateJoining)
		c.startGuest()

	case protocol.TypeSessionJoined:
		c.notify(Update{Note: "peer joined"})
		if host {
			c.startHost(false)
		} else {
			c.startGuest()
		}

	case protocol.TypeSignal:
		c.handleSignal(env)

	case protocol.TypeUserDisconnected:
		c.closePeer()
		c.machine.To(StateDisconnected)
		c.notify(Update{Note: "peer left", Err: remote.ErrPeerDisconnected})

	case protocol.TypeError:
		c.handleBrokerError(remote.FromBroker(env.Message))

	case protocol.TypePong:
	default:
		slog.Debug("ignoring envelope", "type", env.Type)
	}
}

func (c *Controller) handleSignal(env *protocol.Envelope) {
	c.mu.Lock()
	m := c.peer
	c.mu.Unlock()

	if m == nil {
		slog.Debug("signal without a peer", "session", env.SessionID)
		return
	}

	sig, err := env.Signal()
	if err != nil {
		slog.Warn("dropping signal", "error", err)
		return
	}

	if sig.Type != protocol.SignalICECandidate {
		c.machine.To(StateNegotiating)
	}
	if err := m.HandleSignal(sig); err != nil {
		slog.Warn("signal failed", "type", sig.Type, "error", err)
		c.notify(Update{Err: err})
	}
}

func (c *Controller) handleBrokerError(err error) {
	joinRefused := errors.Is(err, remote.ErrSessionNotFound) || errors.Is(err, remote.ErrSessionFull)

	if joinRefused && c.opts.Role == RoleHost {
		slog.Info("session lost, creating a new one", "error", err)
		c.client.ClearSession()
		c.setSessionID("")
		if !c.client.CreateSession() {
			c.notify(Update{Err: remote.NewError("renew session", remote.ErrNotConnected)})
			return
		}
		c.notify(Update{Note: "session renewed"})
		return
	}

	if joinRefused {
		c.client.ClearSession()
		c.setSessionID("")
		c.machine.To(StateIdle)
	}
	c.notify(Update{Err: err})
}

// startHost replaces the peer, attaches video and sends an offer. A capture
// failure is reported and the session stays open. A speculative offer is one
// sent without knowing that the guest is still there.
func (c *Controller) startHost(speculative bool) {
	m, gen, err := c.newPeer(peer.NewHost)
	if err != nil {
		c.notify(Update{Err: err})
		return
	}

	if c.opts.Source != nil {
		src, err := c.opts.Source()
		if err == nil {
			err = m.AttachSource(src)
			if err != nil {
				src.Close()
			}
		}
		if err != nil {
			c.dropPeer(gen)
			c.notify(Update{Note: "press r to retry", Err: remote.WrapError("start media", remote.ErrCaptureUnavailable, err.Error())})
			return
		}
	}

	if err := m.Offer(false); err != nil {
		c.notify(Update{Err: err})
		return
	}
	if !speculative {
		c.machine.To(StateNegotiating)
	}
}

// startGuest replaces the peer and waits for the host's offer.
func (c *Controller) startGuest() {
	if _, _, err := c.newPeer(peer.NewGuest); err != nil {
		c.notify(Update{Err: err})
		return
	}
	c.machine.To(StateNegotiating)
}

type peerFactory func(*config.Config, peer.Signaler, peer.Options) (*peer.Manager, error)

func (c *Controller) newPeer(build peerFactory) (*peer.Manager, uint64, error) {
	c.closePeer()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, 0, remote.ErrClosed
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	opts := peer.Options{
		RestartDebounce: c.opts.RestartDebounce,
		OnICEState: func(s pion.ICEConnectionState) {
			c.queuePeerEvent(peerEvent{gen: gen, kind: peerICE, state: s})
		},
		OnControlOpen: func() {
			c.queuePeerEvent(peerEvent{gen: gen, kind: peerControlOpen})
		},
		OnError: func(err error) {
			c.queuePeerEvent(peerEvent{gen: gen, kind: peerError, err: err})
		},
	}
	if c.executor != nil {
		opts.OnControl = func(data []byte, isString bool) {
			c.executor.HandleFrame(context.Background(), data, isString)
		}
	}
	if sink := c.opts.Sink; sink != nil {
		opts.OnTrack = func(track *pion.TrackRemote) {
			go func() {
				if err := sink.Consume(track); err != nil {
					c.queuePeerEvent(peerEvent{gen: gen, kind: peerError, err: err})
				}
			}()
		}
	}

	m, err := build(c.opts.Config, c.client, opts)
	if err != nil {
		return nil, 0, err
	}

	// Close may have run while the connection was being built.
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		m.Close()
		return nil, 0, remote.ErrClosed
	}
	c.peer = m
	c.mu.Unlock()
	return m, gen, nil
}

// queuePeerEvent hands ev to the run loop without blocking pion.
func (c *Controller) queuePeerEvent(ev peerEvent) {
	select {
	case c.events <- ev:
	default:
		slog.Debug("dropping peer event", "kind", ev.kind)
	}
}

func (c *Controller) handlePeer(ev peerEvent) {
	if errors.Is(ev.err, errRetry) {
		if c.opts.Role == RoleHost && c.peerGen() == 0 && c.machine.State() != StateDisconnected {
			c.startHost(false)
		}
		return
	}

	c.mu.Lock()
	stale := ev.gen != c.gen || c.peer == nil
	c.mu.Unlock()
	if stale {
		return
	}

	switch ev.kind {
	case peerICE:
		switch ev.state {
		case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
			c.machine.To(StateStreaming)
		case pion.ICEConnectionStateDisconnected, pion.ICEConnectionStateFailed:
			c.notify(Update{Note: "connection unstable (" + ev.state.String() + ")"})
		}
	case peerControlOpen:
		if c.executor != nil {
			c.executor.Prime(context.Background())
		}
		c.notify(Update{Note: "control channel open"})
	case peerError:
		c.notify(Update{Err: ev.err})
	}
}

// peerGen is the generation of the live peer, or 0 without one.
func (c *Controller) peerGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.peer == nil {
		return 0
	}
	return c.gen
}

func (c *Controller) dropPeer(gen uint64) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	m := c.peer
	c.peer = nil
	c.mu.Unlock()

	if m != nil {
		m.Close()
	}
}

// closePeer stops media and the peer connection but keeps signaling.
func (c *Controller) closePeer() {
	c.mu.Lock()
	m := c.peer
	c.peer = nil
	c.mu.Unlock()

	if m != nil {
		m.Close()
	}
}

func (c *Controller) setSessionID(id string) {
	c.mu.Lock()
	c.sessionID = id
	c.mu.Unlock()
	c.notify(Update{SessionID: id})
}

func (c *Controller) stateChanged(from, to State) {
	slog.Info("session state", "role", c.opts.Role.String(), "from", from.String(), "to", to.String())
	c.notify(Update{})
}

// notify fills in the current state and session id and never blocks.
func (c *Controller) notify(u Update) {
	u.State = c.machine.State()
	if u.SessionID == "" {
		u.SessionID = c.SessionID()
	}
	select {
	case c.updates <- u:
	default:
		slog.Debug("dropping ui update", "state", u.State.String())
	}
}
