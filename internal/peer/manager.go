// Package peer owns the direct connection between host and guest: the
// control data channel, the video transceiver and ICE recovery.
package peer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/control"
	"github.com/BioHazard786/Deskrelay/internal/protocol"
	"github.com/BioHazard786/Deskrelay/internal/remote"
	"github.com/BioHazard786/Deskrelay/internal/timers"
)

// DefaultRestartDebounce is how long connectivity may stay broken before the
// host renegotiates with an ICE restart.
const DefaultRestartDebounce = 1500 * time.Millisecond

const timerRestart timers.Kind = "ice-restart"

// Signaler relays negotiation payloads to the other participant.
type Signaler interface {
	Signal(sig protocol.Signal) bool
}

// Options carries the callbacks a Manager reports through. All callbacks are
// optional and run on pion goroutines.
type Options struct {
	RestartDebounce time.Duration

	// OnControl receives every frame arriving on the control channel.
	OnControl func(data []byte, isString bool)
	// OnControlOpen fires once the control channel is usable.
	OnControlOpen func()
	// OnICEState mirrors the connection's ICE state.
	OnICEState func(pion.ICEConnectionState)
	// OnTrack hands inbound media to the guest's sink.
	OnTrack func(*pion.TrackRemote)
	// OnError reports failures the manager cannot recover from itself.
	OnError func(error)
}

// Manager wraps one pion peer connection for either role.
type Manager struct {
	host     bool
	pc       *pion.PeerConnection
	signaler Signaler
	timers   *timers.Set
	opts     Options
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	control *pion.DataChannel
	senders []*pion.RTPSender
	sources []Source
	closed  bool

	closeOnce sync.Once
}

// NewHost creates the host side: the control channel is opened locally and
// the host drives every offer.
func NewHost(cfg *config.Config, signaler Signaler, opts Options) (*Manager, error) {
	m, err := newManager(true, cfg, signaler, opts)
	if err != nil {
		return nil, err
	}

	dc, err := createControlChannel(m.pc, control.Label)
	if err != nil {
		m.Close()
		return nil, err
	}
	m.bindControl(dc)
	return m, nil
}

// NewGuest creates the guest side. It declares receive-only video before any
// offer arrives and binds the inbound channel labelled "control".
func NewGuest(cfg *config.Config, signaler Signaler, opts Options) (*Manager, error) {
	m, err := newManager(false, cfg, signaler, opts)
	if err != nil {
		return nil, err
	}

	if _, err := m.pc.AddTransceiverFromKind(pion.RTPCodecTypeVideo, pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionRecvonly,
	}); err != nil {
		m.Close()
		return nil, remote.NewError("add video transceiver", err)
	}

	m.pc.OnDataChannel(func(dc *pion.DataChannel) {
		if dc.Label() != control.Label {
			slog.Debug("ignoring data channel", "label", dc.Label())
			return
		}
		m.bindControl(dc)
	})

	m.pc.OnTrack(func(track *pion.TrackRemote, _ *pion.RTPReceiver) {
		slog.Info("inbound track", "codec", track.Codec().MimeType, "kind", track.Kind().String())
		if m.opts.OnTrack != nil {
			m.opts.OnTrack(track)
		}
	})
	return m, nil
}

func newManager(host bool, cfg *config.Config, signaler Signaler, opts Options) (*Manager, error) {
	if opts.RestartDebounce <= 0 {
		opts.RestartDebounce = DefaultRestartDebounce
	}

	pc, err := newPeerConnection(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		host:     host,
		pc:       pc,
		signaler: signaler,
		timers:   timers.NewSet(),
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}

	pc.OnICECandidate(func(c *pion.ICECandidate) {
		if c == nil {
			return
		}
		raw, err := candidateJSON(c)
		if err != nil {
			slog.Debug("encode ICE candidate", "error", err)
			return
		}
		signaler.Signal(protocol.Signal{Type: protocol.SignalICECandidate, Candidate: raw})
	})
	pc.OnICEConnectionStateChange(m.onICEState)
	return m, nil
}

// AttachSource adds src as a send-only video track and starts feeding it.
func (m *Manager) AttachSource(src Source) error {
	if !m.host {
		return remote.WrapError("attach source", remote.ErrUnexpectedSignal, "guest does not send media")
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return remote.ErrClosed
	}
	m.mu.Unlock()

	tr, err := m.pc.AddTransceiverFromTrack(src.Track(), pion.RTPTransceiverInit{
		Direction: pion.RTPTransceiverDirectionSendonly,
	})
	if err != nil {
		return remote.NewError("add video track", err)
	}
	sender := tr.Sender()

	m.mu.Lock()
	m.senders = append(m.senders, sender)
	m.sources = append(m.sources, src)
	m.mu.Unlock()

	// RTCP has to be read for interceptors to run.
	go func() {
		buf := make([]byte, 1500)
		for {
			if _, _, err := sender.Read(buf); err != nil {
				return
			}
		}
	}()

	go func() {
		if err := src.Run(m.ctx); err != nil && m.ctx.Err() == nil {
			slog.Warn("video source stopped", "error", err)
			m.report(remote.WrapError("stream video", remote.ErrCaptureUnavailable, err.Error()))
		}
	}()
	return nil
}

// Offer builds a local offer and sends it through signaling. restart asks for
// fresh ICE credentials.
func (m *Manager) Offer(restart bool) error {
	if m.isClosed() {
		return remote.ErrClosed
	}

	offer, err := m.pc.CreateOffer(&pion.OfferOptions{ICERestart: restart})
	if err != nil {
		return remote.NewError("create offer", err)
	}
	if err := m.pc.SetLocalDescription(offer); err != nil {
		return remote.NewError("set local description", err)
	}

	m.signaler.Signal(protocol.Signal{Type: protocol.SignalOffer, SDP: offer.SDP})
	return nil
}

// HandleSignal applies a negotiation payload received from the other side.
// Candidate failures are logged and dropped.
func (m *Manager) HandleSignal(sig *protocol.Signal) error {
	if m.isClosed() {
		return remote.ErrClosed
	}

	switch sig.Type {
	case protocol.SignalOffer:
		if m.host {
			return remote.WrapError("handle signal", remote.ErrUnexpectedSignal, "host received an offer")
		}
		return m.answer(sig.SDP)

	case protocol.SignalAnswer:
		if !m.host {
			return remote.WrapError("handle signal", remote.ErrUnexpectedSignal, "guest received an answer")
		}
		if err := m.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeAnswer, SDP: sig.SDP}); err != nil {
			return remote.NewError("set remote description", err)
		}
		return nil

	case protocol.SignalICECandidate:
		if len(sig.Candidate) == 0 {
			return nil
		}
		ice, err := parseCandidate(sig.Candidate)
		if err == nil {
			err = m.pc.AddICECandidate(ice)
		}
		if err != nil {
			slog.Debug("ignoring ICE candidate", "error", err)
		}
		return nil
	}
	return remote.WrapError("handle signal", remote.ErrUnexpectedSignal, string(sig.Type))
}

func (m *Manager) answer(sdp string) error {
	if err := m.pc.SetRemoteDescription(pion.SessionDescription{Type: pion.SDPTypeOffer, SDP: sdp}); err != nil {
		return remote.NewError("set remote description", err)
	}
	answer, err := m.pc.CreateAnswer(nil)
	if err != nil {
		return remote.NewError("create answer", err)
	}
	if err := m.pc.SetLocalDescription(answer); err != nil {
		return remote.NewError("set local description", err)
	}

	m.signaler.Signal(protocol.Signal{Type: protocol.SignalAnswer, SDP: answer.SDP})
	return nil
}

// SendControl writes m over the control channel, as msgpack when binary is
// set and JSON otherwise.
func (m *Manager) SendControl(msg control.Message, binary bool) error {
	m.mu.Lock()
	dc := m.control
	m.mu.Unlock()

	if dc == nil || dc.ReadyState() != pion.DataChannelStateOpen {
		return remote.ErrChannelNotOpen
	}
	return control.Send(dc, msg, binary)
}

// ControlOpen reports whether the control channel is bound and open.
func (m *Manager) ControlOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.control != nil && m.control.ReadyState() == pion.DataChannelStateOpen
}

// Close stops local media, closes the connection and clears the control
// channel. Calling it again has no effect.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		senders := m.senders
		sources := m.sources
		m.senders, m.sources = nil, nil
		m.control = nil
		m.mu.Unlock()

		m.timers.Stop()
		m.cancel()

		for _, src := range sources {
			src.Close()
		}
		for _, sender := range senders {
			sender.Stop()
		}
		if cerr := m.pc.Close(); cerr != nil {
			err = remote.NewError("close peer connection", cerr)
		}
	})
	return err
}

func (m *Manager) bindControl(dc *pion.DataChannel) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		dc.Close()
		return
	}
	m.control = dc
	m.mu.Unlock()

	dc.OnOpen(func() {
		slog.Debug("control channel open", "label", dc.Label())
		if m.opts.OnControlOpen != nil {
			m.opts.OnControlOpen()
		}
	})
	dc.OnMessage(func(msg pion.DataChannelMessage) {
		if m.opts.OnControl != nil {
			m.opts.OnControl(msg.Data, msg.IsString)
		}
	})
	dc.OnClose(func() {
		m.mu.Lock()
		if m.control == dc {
			m.control = nil
		}
		m.mu.Unlock()
	})
}

// onICEState debounces broken connectivity. A pending restart is left alone
// when the state flaps between disconnected and failed.
func (m *Manager) onICEState(state pion.ICEConnectionState) {
	slog.Debug("ICE state", "state", state.String(), "host", m.host)

	switch state {
	case pion.ICEConnectionStateDisconnected, pion.ICEConnectionStateFailed:
		if !m.timers.Pending(timerRestart) {
			m.timers.After(timerRestart, m.opts.RestartDebounce, m.restart)
		}
	case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
		m.timers.Cancel(timerRestart)
	}

	if m.opts.OnICEState != nil {
		m.opts.OnICEState(state)
	}
}

func (m *Manager) restart() {
	if !m.host || m.isClosed() {
		return
	}

	slog.Info("restarting ICE")
	if err := m.Offer(true); err != nil {
		m.report(remote.NewError("ICE restart", err))
	}
}

func (m *Manager) report(err error) {
	if m.opts.OnError != nil {
		m.opts.OnError(err)
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
