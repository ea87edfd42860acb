package control

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"
)

type fakeAgent struct {
	width, height int
	sizeCalls     int
	sizeErr       error
	failAll       bool
	calls         []string
}

func (a *fakeAgent) ScreenSize(ctx context.Context) (int, int, error) {
	a.sizeCalls++
	if a.sizeErr != nil {
		return 0, 0, a.sizeErr
	}
	return a.width, a.height, nil
}

func (a *fakeAgent) record(call string) error {
	a.calls = append(a.calls, call)
	if a.failAll {
		return errors.New("agent failure")
	}
	return nil
}

func (a *fakeAgent) Move(ctx context.Context, x, y int) error {
	return a.record(fmt.Sprintf("move %d %d", x, y))
}

func (a *fakeAgent) Down(ctx context.Context, btn Button) error {
	return a.record("down " + string(btn))
}

func (a *fakeAgent) Up(ctx context.Context, btn Button) error {
	return a.record("up " + string(btn))
}

func (a *fakeAgent) Click(ctx context.Context, btn Button) error {
	return a.record("click " + string(btn))
}

func (a *fakeAgent) Scroll(ctx context.Context, dx, dy int) error {
	return a.record(fmt.Sprintf("scroll %d %d", dx, dy))
}

func (a *fakeAgent) KeyDown(ctx context.Context, key string) error {
	return a.record("keyDown " + key)
}

func (a *fakeAgent) KeyUp(ctx context.Context, key string) error {
	return a.record("keyUp " + key)
}

func (a *fakeAgent) TypeText(ctx context.Context, text string) error {
	return a.record("type " + text)
}

func TestToPixel(t *testing.T) {
	tests := []struct {
		n    float64
		dim  int
		want int
	}{
		{0, 1920, 0},
		{1, 1920, 1919},
		{1.5, 1920, 1919},
		{-0.2, 1080, 0},
		{0.5, 1080, 540},
		{1, 1080, 1079},
	}
	for _, tt := range tests {
		if got := ToPixel(tt.n, tt.dim); got != tt.want {
			t.Errorf("ToPixel(%v, %d): expected %d, got %d", tt.n, tt.dim, tt.want, got)
		}
	}
}

func TestWheelStep(t *testing.T) {
	tests := []struct {
		d    float64
		want int
	}{
		{0, 0},
		{1, 1},
		{50, 1},
		{51, 2},
		{-120, -3},
		{100000, 10},
		{-100000, -10},
	}
	for _, tt := range tests {
		if got := WheelStep(tt.d); got != tt.want {
			t.Errorf("WheelStep(%v): expected %d, got %d", tt.d, tt.want, got)
		}
	}
}

func TestExecutorMoveClampsToScreen(t *testing.T) {
	agent := &fakeAgent{width: 1920, height: 1080}
	e := NewExecutor(agent)

	e.Apply(context.Background(), MoveTo(1.5, 1.0))

	want := []string{"move 1919 1079"}
	if !reflect.DeepEqual(agent.calls, want) {
		t.Errorf("Expected %v, got %v", want, agent.calls)
	}
}

func TestExecutorClickComposites(t *testing.T) {
	agent := &fakeAgent{width: 100, height: 100}
	e := NewExecutor(agent)

	e.Apply(context.Background(), ClickAt(ButtonRight, 0.5, 0.5))
	e.Apply(context.Background(), DoubleClickAt("", 0.1, 0.2))

	want := []string{
		"move 50 50", "down right", "up right",
		"move 10 20", "down left", "up left", "down left", "up left",
	}
	if !reflect.DeepEqual(agent.calls, want) {
		t.Errorf("Expected %v, got %v", want, agent.calls)
	}
}

func TestExecutorCachesScreenSize(t *testing.T) {
	agent := &fakeAgent{width: 800, height: 600}
	e := NewExecutor(agent)

	e.Prime(context.Background())
	e.Apply(context.Background(), MoveTo(0.5, 0.5))
	e.Apply(context.Background(), MoveTo(0.25, 0.25))

	if agent.sizeCalls != 1 {
		t.Errorf("Expected screen size to be queried once, got %d", agent.sizeCalls)
	}
}

func TestExecutorRetriesScreenSizeAfterFailure(t *testing.T) {
	agent := &fakeAgent{width: 800, height: 600, sizeErr: errors.New("no display")}
	e := NewExecutor(agent)

	e.Apply(context.Background(), MoveTo(0.5, 0.5))
	if len(agent.calls) != 0 {
		t.Errorf("Expected no move without a screen size, got %v", agent.calls)
	}

	agent.sizeErr = nil
	e.Apply(context.Background(), MoveTo(0.5, 0.5))
	if len(agent.calls) != 1 || agent.calls[0] != "move 400 300" {
		t.Errorf("Expected move after recovery, got %v", agent.calls)
	}
}

func TestExecutorKeyboardAndWheel(t *testing.T) {
	agent := &fakeAgent{width: 100, height: 100}
	e := NewExecutor(agent)
	ctx := context.Background()

	e.Apply(ctx, KeyDown("a"))
	e.Apply(ctx, TypeText("a"))
	e.Apply(ctx, KeyUp("a"))
	e.Apply(ctx, Scroll(-30, 500))
	e.Apply(ctx, Scroll(0, 0))

	want := []string{"keyDown a", "type a", "keyUp a", "scroll -1 10"}
	if !reflect.DeepEqual(agent.calls, want) {
		t.Errorf("Expected %v, got %v", want, agent.calls)
	}
	if e.Applied() != 5 {
		t.Errorf("Expected 5 applied messages, got %d", e.Applied())
	}
}

func TestExecutorSwallowsAgentErrors(t *testing.T) {
	agent := &fakeAgent{width: 100, height: 100, failAll: true}
	e := NewExecutor(agent)

	e.Apply(context.Background(), DoubleClickAt(ButtonLeft, 0, 0))

	if len(agent.calls) != 5 {
		t.Errorf("Expected every step to run despite failures, got %v", agent.calls)
	}
}

func TestHandleFrameDropsBadFrames(t *testing.T) {
	agent := &fakeAgent{width: 100, height: 100}
	e := NewExecutor(agent)
	ctx := context.Background()

	e.HandleFrame(ctx, []byte(`{"t":"explode"}`), true)
	e.HandleFrame(ctx, []byte(`garbage`), true)
	e.HandleFrame(ctx, []byte(`{"t":"down","btn":"middle"}`), true)

	if len(agent.calls) != 1 || agent.calls[0] != "down middle" {
		t.Errorf("Expected only the valid frame to apply, got %v", agent.calls)
	}
}
