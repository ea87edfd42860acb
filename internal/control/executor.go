package control

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
)

// maxWheelStep caps the scroll units produced by one wheel event.
const maxWheelStep = 10

// wheelUnit is the number of pixels of wheel delta per scroll unit.
const wheelUnit = 50

// Agent injects input into the host operating system.
type Agent interface {
	ScreenSize(ctx context.Context) (width, height int, err error)
	Move(ctx context.Context, x, y int) error
	Down(ctx context.Context, btn Button) error
	Up(ctx context.Context, btn Button) error
	Click(ctx context.Context, btn Button) error
	Scroll(ctx context.Context, dx, dy int) error
	KeyDown(ctx context.Context, key string) error
	KeyUp(ctx context.Context, key string) error
	TypeText(ctx context.Context, text string) error
}

// Executor applies decoded control messages through an Agent on the host.
// Agent failures are logged and swallowed.
type Executor struct {
	agent Agent

	mu     sync.Mutex
	width  int
	height int
	sized  bool

	applied atomic.Uint64
}

func NewExecutor(agent Agent) *Executor {
	return &Executor{agent: agent}
}

// Prime queries and caches the screen size. It is safe to call more than
// once; only the first successful query is kept.
func (e *Executor) Prime(ctx context.Context) {
	e.screen(ctx)
}

// Applied returns how many messages have been executed.
func (e *Executor) Applied() uint64 {
	return e.applied.Load()
}

// HandleFrame decodes a data channel frame and applies it. Undecodable
// frames are dropped.
func (e *Executor) HandleFrame(ctx context.Context, data []byte, isString bool) {
	m, err := Decode(data, isString)
	if err != nil {
		slog.Debug("dropping control frame", "error", err)
		return
	}
	e.Apply(ctx, m)
}

// Apply executes m. Click and double click are reproduced as a move followed
// by one or two down/up cycles.
func (e *Executor) Apply(ctx context.Context, m Message) {
	btn := ParseButton(m.Btn)

	switch m.T {
	case KindMove:
		e.moveTo(ctx, m)
	case KindDown:
		e.call("down", e.agent.Down(ctx, btn))
	case KindUp:
		e.call("up", e.agent.Up(ctx, btn))
	case KindClick, KindDoubleClick:
		e.moveTo(ctx, m)
		cycles := 1
		if m.T == KindDoubleClick {
			cycles = 2
		}
		for i := 0; i < cycles; i++ {
			e.call("down", e.agent.Down(ctx, btn))
			e.call("up", e.agent.Up(ctx, btn))
		}
	case KindWheel:
		sx, sy := WheelStep(m.DX), WheelStep(m.DY)
		if sx == 0 && sy == 0 {
			break
		}
		e.call("scroll", e.agent.Scroll(ctx, sx, sy))
	case KindKeyDown:
		e.call("keyDown", e.agent.KeyDown(ctx, m.Key))
	case KindKeyUp:
		e.call("keyUp", e.agent.KeyUp(ctx, m.Key))
	case KindType:
		if m.Text != "" {
			e.call("typeText", e.agent.TypeText(ctx, m.Text))
		}
	default:
		slog.Debug("ignoring control message", "t", m.T)
		return
	}
	e.applied.Add(1)
}

func (e *Executor) moveTo(ctx context.Context, m Message) {
	nx, ny, ok := m.Point()
	if !ok {
		return
	}
	w, h, ok := e.screen(ctx)
	if !ok {
		return
	}
	e.call("move", e.agent.Move(ctx, ToPixel(nx, w), ToPixel(ny, h)))
}

func (e *Executor) screen(ctx context.Context) (int, int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.sized {
		return e.width, e.height, true
	}
	w, h, err := e.agent.ScreenSize(ctx)
	if err != nil || w <= 0 || h <= 0 {
		slog.Debug("screen size unavailable", "error", err, "width", w, "height", h)
		return 0, 0, false
	}
	e.width, e.height, e.sized = w, h, true
	return w, h, true
}

func (e *Executor) call(op string, err error) {
	if err != nil {
		slog.Debug("input agent call failed", "op", op, "error", err)
	}
}

// ToPixel converts a screen fraction to a pixel index in [0, dim-1].
func ToPixel(n float64, dim int) int {
	p := int(math.Round(Clamp(n) * float64(dim)))
	if p > dim-1 {
		p = dim - 1
	}
	if p < 0 {
		p = 0
	}
	return p
}

// WheelStep turns a raw wheel delta into a bounded number of scroll units.
func WheelStep(d float64) int {
	if d == 0 || math.IsNaN(d) {
		return 0
	}
	steps := int(math.Min(maxWheelStep, math.Ceil(math.Abs(d)/wheelUnit)))
	if d < 0 {
		return -steps
	}
	return steps
}
