package signal

import (
	"github.com/audionoise/jam/internal/protocol"
)

// handleRelay forwards offer, answer and ice-candidate frames to the
// target peer with the sender's identity attached. The SDP/candidate
// bodies are opaque: they are never parsed, only copied. An absent
// target is dropped without error, matching at-most-once delivery.
func (g *Gateway) handleRelay(cl *client, env protocol.Envelope) {
	if !cl.joined {
		g.sendError(cl.conn, "invalid", "not joined")
		return
	}
	if env.Target == "" {
		g.sendError(cl.conn, "invalid", "relay requires a target peer")
		return
	}
	switch env.Type {
	case protocol.TypeOffer, protocol.TypeAnswer:
		if len(env.SDP) == 0 {
			g.sendError(cl.conn, "invalid", "missing sdp payload")
			return
		}
	case protocol.TypeICECandidate:
		if len(env.Candidate) == 0 {
			g.sendError(cl.conn, "invalid", "missing candidate payload")
			return
		}
	}

	frame := protocol.Marshal(protocol.Relay{
		Type:      env.Type,
		From:      cl.peer,
		UserID:    cl.user,
		SDP:       env.SDP,
		Candidate: env.Candidate,
	})
	g.Coord.Relay(cl.session, cl.peer, env.Target, frame)
}
