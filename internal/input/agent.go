// Package input provides the agents that inject remote control events into
// the host.
package input

import (
	"fmt"
	"os/exec"

	"github.com/BioHazard786/Deskrelay/internal/control"
)

const (
	AgentLog     = "log"
	AgentXdotool = "xdotool"
)

// New returns the agent registered under name.
func New(name string) (control.Agent, error) {
	switch name {
	case "", AgentLog:
		return NewLogAgent(1920, 1080), nil
	case AgentXdotool:
		path, err := exec.LookPath("xdotool")
		if err != nil {
			return nil, fmt.Errorf("xdotool agent: %w", err)
		}
		return NewXdotool(path), nil
	}
	return nil, fmt.Errorf("unknown input agent %q", name)
}
