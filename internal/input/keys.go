package input

import "github.com/BioHazard786/Deskrelay/internal/control"

// keysyms maps browser-style key names onto X keysyms.
var keysyms = map[string]string{
	"Backspace":  "BackSpace",
	"Tab":        "Tab",
	"Enter":      "Return",
	"Return":     "Return",
	"Escape":     "Escape",
	"Esc":        "Escape",
	"Space":      "space",
	" ":          "space",
	"Shift":      "Shift_L",
	"Control":    "Control_L",
	"Ctrl":       "Control_L",
	"Alt":        "Alt_L",
	"Meta":       "Super_L",
	"Win":        "Super_L",
	"ArrowUp":    "Up",
	"ArrowDown":  "Down",
	"ArrowLeft":  "Left",
	"ArrowRight": "Right",
	"Delete":     "Delete",
	"Home":       "Home",
	"End":        "End",
	"PageUp":     "Prior",
	"PageDown":   "Next",
	"Insert":     "Insert",
	"F1":         "F1",
	"F2":         "F2",
	"F3":         "F3",
	"F4":         "F4",
	"F5":         "F5",
	"F6":         "F6",
	"F7":         "F7",
	"F8":         "F8",
	"F9":         "F9",
	"F10":        "F10",
	"F11":        "F11",
	"F12":        "F12",
}

// Keysym resolves a key name. Single letters map to themselves; digits and
// punctuation are left to TypeText and report false.
func Keysym(key string) (string, bool) {
	if sym, ok := keysyms[key]; ok {
		return sym, true
	}
	if len(key) == 1 {
		c := key[0]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return key, true
		}
	}
	return "", false
}

// buttonNumber is the X pointer button for btn.
func buttonNumber(btn control.Button) int {
	switch btn {
	case control.ButtonMiddle:
		return 2
	case control.ButtonRight:
		return 3
	}
	return 1
}
