package input

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/BioHazard786/Deskrelay/internal/control"
)

// X buttons 4 to 7 scroll up, down, left and right.
const (
	wheelUp    = 4
	wheelDown  = 5
	wheelLeft  = 6
	wheelRight = 7
)

type runner func(ctx context.Context, args ...string) ([]byte, error)

// Xdotool drives an X11 desktop through the xdotool binary.
type Xdotool struct {
	run runner
}

func NewXdotool(path string) *Xdotool {
	return &Xdotool{run: func(ctx context.Context, args ...string) ([]byte, error) {
		out, err := exec.CommandContext(ctx, path, args...).Output()
		if err != nil {
			return nil, fmt.Errorf("xdotool %s: %w", args[0], err)
		}
		return out, nil
	}}
}

func (x *Xdotool) exec(ctx context.Context, args ...string) error {
	_, err := x.run(ctx, args...)
	return err
}

// ScreenSize parses `xdotool getdisplaygeometry`, which prints "W H".
func (x *Xdotool) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := x.run(ctx, "getdisplaygeometry")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Fields(string(out))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected display geometry %q", strings.TrimSpace(string(out)))
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, err
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

func (x *Xdotool) Move(ctx context.Context, px, py int) error {
	return x.exec(ctx, "mousemove", strconv.Itoa(px), strconv.Itoa(py))
}

func (x *Xdotool) Down(ctx context.Context, btn control.Button) error {
	return x.exec(ctx, "mousedown", strconv.Itoa(buttonNumber(btn)))
}

func (x *Xdotool) Up(ctx context.Context, btn control.Button) error {
	return x.exec(ctx, "mouseup", strconv.Itoa(buttonNumber(btn)))
}

func (x *Xdotool) Click(ctx context.Context, btn control.Button) error {
	return x.exec(ctx, "click", strconv.Itoa(buttonNumber(btn)))
}

func (x *Xdotool) Scroll(ctx context.Context, dx, dy int) error {
	if err := x.wheel(ctx, dy, wheelDown, wheelUp); err != nil {
		return err
	}
	return x.wheel(ctx, dx, wheelRight, wheelLeft)
}

func (x *Xdotool) wheel(ctx context.Context, steps, positive, negative int) error {
	button := positive
	if steps < 0 {
		button, steps = negative, -steps
	}
	if steps == 0 {
		return nil
	}
	return x.exec(ctx, "click", "--repeat", strconv.Itoa(steps), strconv.Itoa(button))
}

// KeyDown presses key. Keys without a keysym are ignored; the guest sends
// their text separately.
func (x *Xdotool) KeyDown(ctx context.Context, key string) error {
	sym, ok := Keysym(key)
	if !ok {
		return nil
	}
	return x.exec(ctx, "keydown", sym)
}

func (x *Xdotool) KeyUp(ctx context.Context, key string) error {
	sym, ok := Keysym(key)
	if !ok {
		return nil
	}
	return x.exec(ctx, "keyup", sym)
}

func (x *Xdotool) TypeText(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	return x.exec(ctx, "type", "--", text)
}
