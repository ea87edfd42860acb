package peer

import (
	"encoding/json"

	pion "github.com/pion/webrtc/v4"

	"github.com/BioHazard786/Deskrelay/internal/config"
	"github.com/BioHazard786/Deskrelay/internal/remote"
)

// newPeerConnection allocates a connection using the configured STUN and TURN
// servers. Relay-only mode is selected when asked for or when the local
// network looks like it would block direct paths.
func newPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	policy := pion.ICETransportPolicyAll
	if cfg.GetTURNServers() != nil && (cfg.ForceRelay || ShouldForceRelay()) {
		policy = pion.ICETransportPolicyRelay
	}

	pc, err := pion.NewPeerConnection(pion.Configuration{
		ICEServers:         cfg.ICEServers(),
		ICETransportPolicy: policy,
	})
	if err != nil {
		return nil, remote.NewError("create peer connection", err)
	}
	return pc, nil
}

func createControlChannel(pc *pion.PeerConnection, label string) (*pion.DataChannel, error) {
	ordered := true
	dc, err := pc.CreateDataChannel(label, &pion.DataChannelInit{Ordered: &ordered})
	if err != nil {
		return nil, remote.NewError("create data channel", err)
	}
	return dc, nil
}

func candidateJSON(c *pion.ICECandidate) (json.RawMessage, error) {
	return json.Marshal(c.ToJSON())
}

func parseCandidate(raw json.RawMessage) (pion.ICECandidateInit, error) {
	var ice pion.ICECandidateInit
	if err := json.Unmarshal(raw, &ice); err != nil {
		return ice, remote.NewError("parse ICE candidate", err)
	}
	return ice, nil
}
