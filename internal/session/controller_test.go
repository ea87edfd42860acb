package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/BioHazard786/Deskrelay/internal/broker"
	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/control"
	"github.com/BioHazard786/Deskrelay/internal/input"
	"github.com/BioHazard786/Deskrelay/internal/peer"
	"github.com/BioHazard786/Deskrelay/internal/protocol"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/signaling"
)

// testBroker runs a real hub and remembers the server side of each
// connection so tests can cut them.
type testBroker struct {
	cfg   *config.Config
	mu    sync.Mutex
	conns []*websocket.Conn
}

func startBroker(t *testing.T) *testBroker {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	hub := broker.NewHub()
	go hub.Run(ctx)

	tb := &testBroker{}
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		tb.mu.Lock()
		tb.conns = append(tb.conns, conn)
		tb.mu.Unlock()
		hub.Attach(conn)
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	tb.cfg = &config.Config{Broker: strings.TrimPrefix(srv.URL, "http://")}
	return tb
}

func (tb *testBroker) cut(i int) {
	tb.mu.Lock()
	conn := tb.conns[i]
	tb.mu.Unlock()
	conn.Close()
}

func fastSignaling() signaling.Options {
	return signaling.Options{Heartbeat: time.Hour, Backoff: 20 * time.Millisecond}
}

func startController(t *testing.T, opts Options) *Controller {
	t.Helper()

	opts.Signaling = fastSignaling()
	opts.RestartDebounce = time.Hour
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(func() {
		cancel()
		c.Close()
	})
	return c
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func waitState(t *testing.T, c *Controller, want State) {
	t.Helper()
	waitFor(t, c.Role().String()+" "+want.String(), func() bool { return c.State() == want })
}

func waitError(t *testing.T, c *Controller, target error) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case u := <-c.Updates():
			if u.Err != nil && errors.Is(u.Err, target) {
				return
			}
		case <-deadline:
			t.Fatalf("Expected %v update, got none", target)
		}
	}
}

func hostOptions(cfg *config.Config) Options {
	return Options{Role: RoleHost, Config: cfg, Agent: input.NewLogAgent(800, 600)}
}

func TestNewValidatesOptions(t *testing.T) {
	cfg := &config.Config{Broker: "localhost:1"}

	tests := []struct {
		name string
		opts Options
	}{
		{"no config", Options{Role: RoleHost, Agent: input.NewLogAgent(1, 1)}},
		{"host without agent", Options{Role: RoleHost, Config: cfg}},
		{"guest without id", Options{Role: RoleGuest, Config: cfg}},
		{"no role", Options{Config: cfg}},
	}
	for _, tt := range tests {
		if _, err := New(tt.opts); err == nil {
			t.Errorf("%s: expected error, got nil", tt.name)
		}
	}
}

func TestHostWaitsWithSessionID(t *testing.T) {
	tb := startBroker(t)
	host := startController(t, hostOptions(tb.cfg))

	waitState(t, host, StateWaitingForPeer)
	if !strings.HasPrefix(host.SessionID(), "session-") {
		t.Errorf("Expected a session id, got %q", host.SessionID())
	}
}

func TestGuestJoinNegotiatesAndLeaves(t *testing.T) {
	tb := startBroker(t)
	host := startController(t, hostOptions(tb.cfg))
	waitState(t, host, StateWaitingForPeer)

	guest := startController(t, Options{Role: RoleGuest, Config: tb.cfg, SessionID: host.SessionID(), Sink: peer.NewIVFSink("")})

	waitState(t, guest, StateNegotiating)
	waitFor(t, "host negotiating", func() bool {
		s := host.State()
		return s == StateNegotiating || s == StateStreaming
	})
	if guest.SessionID() != host.SessionID() {
		t.Errorf("Expected guest in %q, got %q", host.SessionID(), guest.SessionID())
	}

	guest.Close()
	if guest.State() != StateClosed {
		t.Errorf("Expected guest closed, got %s", guest.State())
	}
	if guest.SessionID() != "" {
		t.Errorf("Expected guest session id cleared, got %q", guest.SessionID())
	}

	waitError(t, host, remote.ErrPeerDisconnected)
	waitState(t, host, StateDisconnected)
	if host.peerGen() != 0 {
		t.Error("Expected host peer to be torn down")
	}
	if host.SessionID() == "" {
		t.Error("Expected host to keep its session id")
	}
}

func TestGuestUnknownSessionGoesIdle(t *testing.T) {
	tb := startBroker(t)
	guest := startController(t, Options{Role: RoleGuest, Config: tb.cfg, SessionID: "session-missing00"})

	waitError(t, guest, remote.ErrSessionNotFound)
	waitState(t, guest, StateIdle)
	if guest.SessionID() != "" {
		t.Errorf("Expected session id cleared, got %q", guest.SessionID())
	}
}

func TestHostRecreatesLostSession(t *testing.T) {
	tb := startBroker(t)
	host := startController(t, hostOptions(tb.cfg))
	waitState(t, host, StateWaitingForPeer)
	first := host.SessionID()

	// The host was the only member, so cutting it destroys the session.
	tb.cut(0)

	waitFor(t, "new session id", func() bool {
		id := host.SessionID()
		return id != "" && id != first
	})
	waitState(t, host, StateWaitingForPeer)
	if host.Summary().Reconnects != 1 {
		t.Errorf("Expected 1 reconnect, got %d", host.Summary().Reconnects)
	}
}

func TestGuestSendControlWithoutPeer(t *testing.T) {
	c, err := New(Options{Role: RoleGuest, Config: &config.Config{Broker: "localhost:1"}, SessionID: "session-x"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Close()

	if err := c.SendControl(control.MoveTo(0.1, 0.2)); !errors.Is(err, remote.ErrChannelNotOpen) {
		t.Errorf("Expected ErrChannelNotOpen, got %v", err)
	}
}

func TestCloseIsIdempotentAndTerminal(t *testing.T) {
	tb := startBroker(t)
	host := startController(t, hostOptions(tb.cfg))
	waitState(t, host, StateWaitingForPeer)

	host.Close()
	host.Close()

	select {
	case <-host.Done():
	default:
		t.Fatal("Expected Done to be closed")
	}
	if host.State() != StateClosed {
		t.Errorf("Expected closed, got %s", host.State())
	}
	summary := host.Summary()
	if summary.Role != RoleHost || summary.FinalState != StateClosed {
		t.Errorf("Unexpected summary %+v", summary)
	}
}

func TestHostCaptureFailureKeepsSession(t *testing.T) {
	tb := startBroker(t)
	opts := hostOptions(tb.cfg)
	opts.Source = func() (peer.Source, error) {
		return nil, remote.ErrCaptureUnavailable
	}
	host := startController(t, opts)
	waitState(t, host, StateWaitingForPeer)
	id := host.SessionID()

	startController(t, Options{Role: RoleGuest, Config: tb.cfg, SessionID: id})

	waitError(t, host, remote.ErrCaptureUnavailable)
	if host.SessionID() != id {
		t.Errorf("Expected session %q to stay open, got %q", id, host.SessionID())
	}
	if host.peerGen() != 0 {
		t.Error("Expected no live peer after capture failure")
	}
}

func TestGuestJoinsAgainWithCorrectedID(t *testing.T) {
	tb := startBroker(t)
	host := startController(t, hostOptions(tb.cfg))
	waitState(t, host, StateWaitingForPeer)

	guest := startController(t, Options{Role: RoleGuest, Config: tb.cfg, SessionID: "session-typo00000"})
	waitError(t, guest, remote.ErrSessionNotFound)
	waitState(t, guest, StateIdle)

	if err := host.Join(host.SessionID()); err == nil {
		t.Error("Expected a host to refuse Join")
	}
	if err := guest.Join(""); err == nil {
		t.Error("Expected an empty id to be refused")
	}

	if err := guest.Join(host.SessionID()); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	waitFor(t, "guest negotiating", func() bool {
		s := guest.State()
		return s == StateNegotiating || s == StateStreaming
	})
	if guest.SessionID() != host.SessionID() {
		t.Errorf("Expected guest in %q, got %q", host.SessionID(), guest.SessionID())
	}
	if err := guest.Join(host.SessionID()); err == nil {
		t.Error("Expected Join to be refused outside idle")
	}
}

func TestControlReachesHostAgent(t *testing.T) {
	tb := startBroker(t)
	agent := input.NewLogAgent(1920, 1080)
	host := startController(t, Options{Role: RoleHost, Config: tb.cfg, Agent: agent})
	waitState(t, host, StateWaitingForPeer)

	guest := startController(t, Options{Role: RoleGuest, Config: tb.cfg, SessionID: host.SessionID()})
	waitState(t, host, StateStreaming)
	waitState(t, guest, StateStreaming)

	// The move travels as a msgpack binary frame, the click as JSON text.
	waitFor(t, "control channel", func() bool {
		return guest.SendControl(control.MoveTo(0.5, 0.5)) == nil
	})
	if err := guest.SendControl(control.ClickAt(control.ButtonLeft, 1.5, 1.5)); err != nil {
		t.Fatalf("SendControl failed: %v", err)
	}

	waitFor(t, "host input", func() bool { return len(agent.Actions()) >= 4 })
	if got := strings.Join(agent.Actions(), " "); got != "move move down up" {
		t.Errorf("Expected move move down up, got %q", got)
	}
	waitFor(t, "2 applied events", func() bool { return host.Summary().ControlEvents == 2 })
	if n := guest.Summary().ControlEvents; n != 2 {
		t.Errorf("Expected 2 sent events, got %d", n)
	}
}

func TestPointerEventsUseBinaryFrames(t *testing.T) {
	for _, k := range []control.Kind{control.KindMove, control.KindWheel} {
		if !binaryFrame(k) {
			t.Errorf("Expected %s as a binary frame", k)
		}
	}
	for _, k := range []control.Kind{control.KindClick, control.KindDown, control.KindKeyDown, control.KindType} {
		if binaryFrame(k) {
			t.Errorf("Expected %s as a text frame", k)
		}
	}
}

func TestNoPeerSurvivesClose(t *testing.T) {
	c, err := New(hostOptions(&config.Config{Broker: "localhost:1"}))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	c.Close()

	c.handleEnvelope(&protocol.Envelope{Type: protocol.TypeSessionJoined})
	if c.peerGen() != 0 {
		t.Fatal("Expected no peer to be built after Close")
	}
	if _, _, err := c.newPeer(peer.NewHost); !errors.Is(err, remote.ErrClosed) {
		t.Errorf("Expected ErrClosed, got %v", err)
	}
	if c.State() != StateClosed {
		t.Errorf("Expected closed, got %s", c.State())
	}
}
