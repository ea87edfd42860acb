package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	pion "github.com/pion/webrtc/v4"
)

// Default configuration values
const (
	DefaultBroker     = "localhost:8080"
	DefaultListenAddr = ":8080"
	DefaultSTUN       = "stun:stun.l.google.com:19302,stun:stun1.l.google.com:19302"
)

var ErrRelayWithoutTURN = errors.New("cannot force relay mode without TURN server configured")

// Config holds application configuration
type Config struct {
	// Broker is the host:port of the session broker
	Broker string

	// Secure selects wss instead of ws
	Secure bool

	// ListenAddr is where the broker listens when serving
	ListenAddr string

	// ICE servers for WebRTC
	STUNServers []string
	TURNServer  string
	TURNUser    string
	TURNPass    string

	// ForceRelay restricts ICE to TURN relay candidates
	ForceRelay bool
}

// Options for loading config with CLI flag overrides
type Options struct {
	Broker     string
	Secure     bool
	ListenAddr string
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Hardcoded defaults - lowest priority
func Load(opts Options) (*Config, error) {
	broker := firstNonEmpty(opts.Broker, os.Getenv("DESKRELAY_BROKER"), DefaultBroker)

	secure := opts.Secure
	if !secure {
		if v := os.Getenv("DESKRELAY_SECURE"); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("invalid DESKRELAY_SECURE %q: %w", v, err)
			}
			secure = parsed
		}
	}

	listenAddr := opts.ListenAddr
	if listenAddr == "" {
		listenAddr = os.Getenv("DESKRELAY_ADDR")
	}
	if listenAddr == "" {
		if port := os.Getenv("PORT"); port != "" {
			listenAddr = ":" + port
		}
	}
	if listenAddr == "" {
		listenAddr = DefaultListenAddr
	}

	stun := firstNonEmpty(opts.STUNServer, os.Getenv("STUN_SERVER"), DefaultSTUN)

	cfg := &Config{
		Broker:      strings.TrimSuffix(broker, "/"),
		Secure:      secure,
		ListenAddr:  listenAddr,
		STUNServers: splitList(stun),
		TURNServer:  firstNonEmpty(opts.TURNServer, os.Getenv("TURN_SERVER")),
		TURNUser:    firstNonEmpty(opts.TURNUser, os.Getenv("TURN_USERNAME")),
		TURNPass:    firstNonEmpty(opts.TURNPass, os.Getenv("TURN_PASSWORD")),
		ForceRelay:  opts.ForceRelay,
	}

	if cfg.ForceRelay && cfg.GetTURNServers() == nil {
		return nil, ErrRelayWithoutTURN
	}

	return cfg, nil
}

// WebSocketURL is the broker endpoint participants dial.
func (c *Config) WebSocketURL() string {
	scheme := "ws"
	if c.Secure {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, c.Broker)
}

// SessionLink returns a shareable link for a session id
func (c *Config) SessionLink(sessionID string) string {
	scheme := "http"
	if c.Secure {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/s/%s", scheme, c.Broker, sessionID)
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// ICEServers builds the pion ICE server list: every STUN server, plus TURN
// when configured.
func (c *Config) ICEServers() []pion.ICEServer {
	var servers []pion.ICEServer
	if len(c.STUNServers) > 0 {
		servers = append(servers, pion.ICEServer{URLs: c.STUNServers})
	}

	if turn := c.GetTURNServers(); turn != nil {
		servers = append(servers, pion.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
