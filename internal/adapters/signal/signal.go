// Package signal is the WebSocket gateway: it upgrades connections,
// pumps frames, and drives the join/relay/leave protocol against the
// coordinator.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/core"
	"github.com/audionoise/jam/internal/domain"
	"github.com/audionoise/jam/internal/protocol"
)

var ErrBackpressure = errors.New("backpressure")

type Gateway struct {
	Coord      *app.Coordinator
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewGateway(coord *app.Coordinator, readLimit int64, pingPeriod time.Duration) *Gateway {
	return &Gateway{Coord: coord, ReadLimit: readLimit, PingPeriod: pingPeriod}
}

// WsConn wraps the raw websocket with a bounded send queue. TrySend
// never blocks; a full queue drops the frame.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsConn) TrySend(f core.Frame) error {
	if f == nil {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		app.MetricDeliveriesDropped.Inc()
		return ErrBackpressure
	}
	return nil
}

// Close stops intake and closes the send queue. The raw socket is
// torn down by the write pump once the queue has drained, so frames
// enqueued right before Close (a termination notice, a fatal error
// reply) still reach the wire.
func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

// client is the per-connection protocol state. The session binding
// and the authenticated user are fixed at accept time; peer identity
// exists only while joined. All fields are touched from the read pump
// alone.
type client struct {
	conn    *WsConn
	session domain.SessionID
	user    domain.UserID
	peer    domain.PeerID
	joined  bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the request and runs the connection until it dies.
// The session identifier comes from the URL path and the user from
// the verified principal; both are the single source of truth for
// the connection's binding.
func (g *Gateway) Handle(ctx context.Context, c *gin.Context, user domain.UserID) {
	sid := domain.SessionID(c.Param("id"))
	if _, ok := g.Coord.Store.Get(sid); !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found", "code": "not_found"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	log.Info().Str("module", "signal").Str("session", string(sid)).Msg("new WS connection")

	conn := &WsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	cl := &client{conn: conn, session: sid, user: user}

	ctx, cancel := context.WithCancel(ctx)
	go g.writePump(conn)
	go func() {
		defer cancel()
		g.readPump(ctx, cl)
	}()
}

func (g *Gateway) sendJSON(c *WsConn, v any) {
	_ = c.TrySend(protocol.Marshal(v))
}

func (g *Gateway) sendError(c *WsConn, code, msg string) {
	g.sendJSON(c, protocol.Error{Type: protocol.TypeError, Code: code, Message: msg})
}

// errCode maps the domain taxonomy onto wire error codes.
func errCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuthRequired):
		return "auth_required"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrCapacity):
		return "capacity"
	case errors.Is(err, domain.ErrInvalid):
		return "invalid"
	default:
		return "internal"
	}
}
