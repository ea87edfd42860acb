package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Deskrelay/internal/control"
)

// wheelDelta is the pixel delta sent for one wheel notch.
const wheelDelta = 50

// namedKeys maps terminal key names onto browser-style key names.
var namedKeys = map[string]string{
	"enter":     "Enter",
	"backspace": "Backspace",
	"tab":       "Tab",
	"esc":       "Escape",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"home":      "Home",
	"end":       "End",
	"pgup":      "PageUp",
	"pgdown":    "PageDown",
	"delete":    "Delete",
	"insert":    "Insert",
	"f1":        "F1",
	"f2":        "F2",
	"f3":        "F3",
	"f4":        "F4",
	"f5":        "F5",
	"f6":        "F6",
	"f7":        "F7",
	"f8":        "F8",
	"f9":        "F9",
	"f10":       "F10",
	"f11":       "F11",
	"f12":       "F12",
}

// KeyMessages translates a terminal key press into control messages.
// Terminals report no key release, so named keys become a down/up pair and
// printable text is sent as a type event.
func KeyMessages(k tea.KeyMsg) []control.Message {
	if k.Paste {
		return textMessages(string(k.Runes))
	}

	s := k.String()
	if name, ok := namedKeys[s]; ok {
		return chord(name)
	}
	if s == "shift+tab" {
		return chord("Shift", "Tab")
	}
	if rest, ok := strings.CutPrefix(s, "ctrl+"); ok {
		if name, ok := namedKeys[rest]; ok {
			return chord("Control", name)
		}
		if len(rest) == 1 {
			return chord("Control", rest)
		}
		return nil
	}

	var text string
	switch k.Type {
	case tea.KeySpace:
		text = " "
	case tea.KeyRunes:
		text = string(k.Runes)
	default:
		return nil
	}

	if k.Alt {
		if len([]rune(text)) == 1 {
			return chord("Alt", text)
		}
		return nil
	}
	return textMessages(text)
}

func textMessages(text string) []control.Message {
	if text == "" {
		return nil
	}
	return []control.Message{control.TypeText(text)}
}

// chord presses keys in order and releases them in reverse.
func chord(keys ...string) []control.Message {
	msgs := make([]control.Message, 0, 2*len(keys))
	for _, k := range keys {
		msgs = append(msgs, control.KeyDown(k))
	}
	for i := len(keys) - 1; i >= 0; i-- {
		msgs = append(msgs, control.KeyUp(keys[i]))
	}
	return msgs
}

// MouseMessages translates a terminal mouse event inside a width x height
// cell grid. held is the button currently down, used for releases that do
// not name their button.
func MouseMessages(ev tea.MouseMsg, width, height int, held *control.Button) []control.Message {
	nx := fraction(ev.X, width)
	ny := fraction(ev.Y, height)

	switch ev.Action {
	case tea.MouseActionMotion:
		return []control.Message{control.MoveTo(nx, ny)}

	case tea.MouseActionPress:
		switch ev.Button {
		case tea.MouseButtonWheelUp:
			return []control.Message{control.Scroll(0, -wheelDelta)}
		case tea.MouseButtonWheelDown:
			return []control.Message{control.Scroll(0, wheelDelta)}
		case tea.MouseButtonWheelLeft:
			return []control.Message{control.Scroll(-wheelDelta, 0)}
		case tea.MouseButtonWheelRight:
			return []control.Message{control.Scroll(wheelDelta, 0)}
		}
		btn, ok := pointerButton(ev.Button)
		if !ok {
			return nil
		}
		*held = btn
		return []control.Message{control.Press(btn, nx, ny)}

	case tea.MouseActionRelease:
		btn, ok := pointerButton(ev.Button)
		if !ok {
			btn = *held
		}
		*held = control.ButtonLeft
		return []control.Message{control.Release(btn, nx, ny)}
	}
	return nil
}

func pointerButton(b tea.MouseButton) (control.Button, bool) {
	switch b {
	case tea.MouseButtonLeft:
		return control.ButtonLeft, true
	case tea.MouseButtonMiddle:
		return control.ButtonMiddle, true
	case tea.MouseButtonRight:
		return control.ButtonRight, true
	}
	return "", false
}

func fraction(pos, size int) float64 {
	if size <= 1 {
		return 0
	}
	return control.Clamp(float64(pos) / float64(size-1))
}
