package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/protocol"
)

const writeWait = 5 * time.Second

// writePump drains the send queue and keeps the heartbeat going. The
// ping is a liveness probe only; cleanup happens when the read side
// notices the broken transport. The write side owns the raw socket
// teardown: after Close the remaining queued frames are flushed
// before the socket goes down, so a termination notice enqueued just
// before Close still reaches the wire.
func (g *Gateway) writePump(c *WsConn) {
	ticker := time.NewTicker(g.PingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()
	for {
		select {
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Debug().Err(err).Str("module", "signal").Msg("writePump ping")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				deadline := time.Now().Add(writeWait)
				msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
				_ = c.conn.WriteControl(websocket.CloseMessage, msg, deadline)
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump reads until the transport dies, then runs the same cleanup
// an explicit leave would. Removal is keyed by peer, so a leave that
// already ran makes this a no-op.
func (g *Gateway) readPump(ctx context.Context, cl *client) {
	defer func() {
		g.disconnect(cl)
		cl.conn.Close()
		log.Info().Str("module", "signal").Str("session", string(cl.session)).Msg("readPump closing")
	}()

	pongWait := g.PingPeriod * 10 / 9
	cl.conn.conn.SetReadLimit(g.ReadLimit)
	_ = cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	cl.conn.conn.SetPongHandler(func(string) error {
		return cl.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := cl.conn.conn.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Str("module", "signal").Str("session", string(cl.session)).Msg("readPump read error")
				return
			}
			g.dispatch(ctx, cl, data)
		}
	}
}

// dispatch routes one inbound frame. Unknown or malformed types get a
// uniform typed error reply; nothing here may take the connection down.
func (g *Gateway) dispatch(ctx context.Context, cl *client, data []byte) {
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Warn().Err(err).Str("module", "signal").Msg("bad json")
		app.MetricSignalMessages.WithLabelValues(metricLabelUnknown).Inc()
		g.sendError(cl.conn, "invalid", "malformed message")
		return
	}
	app.MetricSignalMessages.WithLabelValues(metricTypeLabel(env.Type)).Inc()

	switch env.Type {
	case protocol.TypeJoin:
		g.handleJoin(ctx, cl, env)
	case protocol.TypeLeave:
		g.handleLeave(cl)
	case protocol.TypeOffer, protocol.TypeAnswer, protocol.TypeICECandidate:
		g.handleRelay(cl, env)
	case protocol.TypeMuteState:
		g.handleMuteState(cl, env)
	default:
		log.Warn().Str("module", "signal").Str("type", string(env.Type)).Msg("unknown signal")
		g.sendError(cl.conn, "invalid", "unknown message type")
	}
}

const metricLabelUnknown = "unknown"

// metricTypeLabel keeps the per-type counter cardinality bounded:
// only recognized wire types become label values, everything else is
// folded into a single bucket. The type string comes straight off the
// wire and must never mint metric series.
func metricTypeLabel(t protocol.MsgType) string {
	switch t {
	case protocol.TypeJoin, protocol.TypeLeave, protocol.TypeOffer,
		protocol.TypeAnswer, protocol.TypeICECandidate, protocol.TypeMuteState:
		return string(t)
	default:
		return metricLabelUnknown
	}
}
