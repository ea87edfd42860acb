package input

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BioHazard786/Deskrelay/internal/control"
)

// LogAgent records every action in the log instead of touching the desktop.
// It is the default on hosts without an input backend.
type LogAgent struct {
	width, height int

	mu      sync.Mutex
	actions []string
}

func NewLogAgent(width, height int) *LogAgent {
	return &LogAgent{width: width, height: height}
}

// Actions returns a copy of what has been performed so far.
func (a *LogAgent) Actions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.actions...)
}

func (a *LogAgent) record(action string, args ...any) {
	a.mu.Lock()
	a.actions = append(a.actions, action)
	a.mu.Unlock()
	slog.Info("input", append([]any{"action", action}, args...)...)
}

func (a *LogAgent) ScreenSize(context.Context) (int, int, error) {
	return a.width, a.height, nil
}

func (a *LogAgent) Move(_ context.Context, x, y int) error {
	a.record("move", "x", x, "y", y)
	return nil
}

func (a *LogAgent) Down(_ context.Context, btn control.Button) error {
	a.record("down", "button", btn)
	return nil
}

func (a *LogAgent) Up(_ context.Context, btn control.Button) error {
	a.record("up", "button", btn)
	return nil
}

func (a *LogAgent) Click(_ context.Context, btn control.Button) error {
	a.record("click", "button", btn)
	return nil
}

func (a *LogAgent) Scroll(_ context.Context, dx, dy int) error {
	a.record("scroll", "dx", dx, "dy", dy)
	return nil
}

func (a *LogAgent) KeyDown(_ context.Context, key string) error {
	a.record("keyDown", "key", key)
	return nil
}

func (a *LogAgent) KeyUp(_ context.Context, key string) error {
	a.record("keyUp", "key", key)
	return nil
}

func (a *LogAgent) TypeText(_ context.Context, text string) error {
	a.record("type", "length", len(text))
	return nil
}
