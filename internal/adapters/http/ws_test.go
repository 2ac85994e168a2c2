package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/config"
	"github.com/audionoise/jam/internal/domain"
	"github.com/audionoise/jam/internal/protocol"
	"github.com/audionoise/jam/internal/rbac"
)

type wsMessage struct {
	Type         protocol.MsgType `json:"type"`
	Code         string           `json:"code"`
	Peer         domain.PeerID    `json:"peerId"`
	Session      domain.SessionID `json:"sessionId"`
	UserID       domain.UserID    `json:"userId"`
	Username     string           `json:"username"`
	From         domain.PeerID    `json:"from"`
	SDP          json.RawMessage  `json:"sdp"`
	Candidate    json.RawMessage  `json:"candidate"`
	Muted        bool             `json:"muted"`
	Deafened     bool             `json:"deafened"`
	Participants []struct {
		Peer     domain.PeerID `json:"peerId"`
		UserID   domain.UserID `json:"userId"`
		Username string        `json:"username"`
	} `json:"participants"`
}

func dialWS(t *testing.T, srv *httptest.Server, sessionID, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/sessions/" + sessionID
	header := http.Header{"Authorization": []string{bearer(t, user, user)}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readWS(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg wsMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendWS(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func joinWS(t *testing.T, conn *websocket.Conn, user string) domain.PeerID {
	t.Helper()
	sendWS(t, conn, map[string]string{"type": "join", "userId": user, "username": user})
	joined := readWS(t, conn)
	require.Equal(t, protocol.TypeJoined, joined.Type)
	require.NotEmpty(t, joined.Peer)
	list := readWS(t, conn)
	require.Equal(t, protocol.TypeParticipantList, list.Type)
	return joined.Peer
}

func TestGateway_JoinFlowOrdering(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	alice := dialWS(t, srv, id, "alice")
	sendWS(t, alice, map[string]string{"type": "join", "userId": "alice", "username": "alice"})

	joined := readWS(t, alice)
	req.Equal(protocol.TypeJoined, joined.Type)
	req.Equal(sess.Meta().ID, joined.Session)

	list := readWS(t, alice)
	req.Equal(protocol.TypeParticipantList, list.Type)
	req.Empty(list.Participants)

	bob := dialWS(t, srv, id, "bob")
	sendWS(t, bob, map[string]string{"type": "join", "userId": "bob", "username": "bob"})

	bobJoined := readWS(t, bob)
	req.Equal(protocol.TypeJoined, bobJoined.Type)
	bobList := readWS(t, bob)
	req.Equal(protocol.TypeParticipantList, bobList.Type)
	req.Len(bobList.Participants, 1)
	req.Equal(joined.Peer, bobList.Participants[0].Peer)

	// Alice hears about bob only through the broadcast.
	note := readWS(t, alice)
	req.Equal(protocol.TypeParticipantJoined, note.Type)
	req.Equal(bobJoined.Peer, note.Peer)
	req.Equal(domain.UserID("bob"), note.UserID)
}

func TestGateway_RelayVerbatim(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	alice := dialWS(t, srv, id, "alice")
	alicePeer := joinWS(t, alice, "alice")
	bob := dialWS(t, srv, id, "bob")
	bobPeer := joinWS(t, bob, "bob")
	_ = readWS(t, alice) // participant-joined bob

	sdp := `{"type":"offer","sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1"}`
	sendWS(t, alice, map[string]any{
		"type":   "offer",
		"target": bobPeer,
		"sdp":    json.RawMessage(sdp),
	})
	offer := readWS(t, bob)
	req.Equal(protocol.TypeOffer, offer.Type)
	req.Equal(alicePeer, offer.From)
	req.Equal(domain.UserID("alice"), offer.UserID)
	req.JSONEq(sdp, string(offer.SDP))

	cand := `{"candidate":"candidate:1 1 UDP 2122252543 192.168.0.2 56143 typ host","sdpMid":"0"}`
	sendWS(t, bob, map[string]any{
		"type":      "ice-candidate",
		"target":    alicePeer,
		"candidate": json.RawMessage(cand),
	})
	ice := readWS(t, alice)
	req.Equal(protocol.TypeICECandidate, ice.Type)
	req.Equal(bobPeer, ice.From)
	req.JSONEq(cand, string(ice.Candidate))
}

func TestGateway_RelayToMissingPeerIsSilentlyDropped(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().Grant("ws-1", "alice", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)

	alice := dialWS(t, srv, string(sess.Meta().ID), "alice")
	joinWS(t, alice, "alice")

	sendWS(t, alice, map[string]any{
		"type":   "offer",
		"target": "ghost-peer",
		"sdp":    json.RawMessage(`{"sdp":"x"}`),
	})

	// No error comes back and the connection stays usable.
	sendWS(t, alice, map[string]any{"type": "mute-state", "muted": true})
	req.NoError(alice.SetReadDeadline(time.Now().Add(500 * time.Millisecond)))
	_, _, err = alice.ReadMessage()
	req.Error(err) // deadline: nothing was delivered
}

func TestGateway_MuteStateBroadcast(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	alice := dialWS(t, srv, id, "alice")
	alicePeer := joinWS(t, alice, "alice")
	bob := dialWS(t, srv, id, "bob")
	joinWS(t, bob, "bob")
	_ = readWS(t, alice)

	sendWS(t, alice, map[string]any{"type": "mute-state", "muted": true, "deafened": false})
	mute := readWS(t, bob)
	req.Equal(protocol.TypeMuteState, mute.Type)
	req.Equal(alicePeer, mute.Peer)
	req.True(mute.Muted)
	req.False(mute.Deafened)
}

func TestGateway_LeaveAndRejoinMintsFreshPeer(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	alice := dialWS(t, srv, id, "alice")
	alicePeer := joinWS(t, alice, "alice")
	bob := dialWS(t, srv, id, "bob")
	joinWS(t, bob, "bob")
	_ = readWS(t, alice)

	sendWS(t, alice, map[string]string{"type": "leave"})
	left := readWS(t, bob)
	req.Equal(protocol.TypeParticipantLeft, left.Type)
	req.Equal(alicePeer, left.Peer)

	// Same connection, same user: rejoin works and gets a new peer id.
	rejoined := joinWS(t, alice, "alice")
	req.NotEqual(alicePeer, rejoined)
	note := readWS(t, bob)
	req.Equal(protocol.TypeParticipantJoined, note.Type)
	req.Equal(rejoined, note.Peer)
}

func TestGateway_DisconnectActsAsLeave(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	alice := dialWS(t, srv, id, "alice")
	alicePeer := joinWS(t, alice, "alice")
	bob := dialWS(t, srv, id, "bob")
	joinWS(t, bob, "bob")
	_ = readWS(t, alice)

	alice.Close()
	left := readWS(t, bob)
	req.Equal(protocol.TypeParticipantLeft, left.Type)
	req.Equal(alicePeer, left.Peer)

	require.Eventually(t, func() bool {
		return sess.Count() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGateway_JoinErrors(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	// Unknown session: refused before the upgrade.
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws/sessions/missing"
	header := http.Header{"Authorization": []string{bearer(t, "alice", "alice")}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	req.Error(err)
	req.Equal(http.StatusNotFound, resp.StatusCode)

	// No workspace role: rejected in-band, connection survives.
	stranger := dialWS(t, srv, id, "stranger")
	sendWS(t, stranger, map[string]string{"type": "join", "userId": "stranger", "username": "s"})
	msg := readWS(t, stranger)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("forbidden", msg.Code)

	// Duplicate user on a second connection.
	alice := dialWS(t, srv, id, "alice")
	joinWS(t, alice, "alice")
	alice2 := dialWS(t, srv, id, "alice")
	sendWS(t, alice2, map[string]string{"type": "join", "userId": "alice", "username": "alice"})
	msg = readWS(t, alice2)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("conflict", msg.Code)

	// Second join on an already-joined connection.
	sendWS(t, alice, map[string]string{"type": "join", "userId": "alice", "username": "alice"})
	msg = readWS(t, alice)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("conflict", msg.Code)

	// Missing fields.
	sendWS(t, alice2, map[string]string{"type": "join"})
	msg = readWS(t, alice2)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("invalid", msg.Code)

	// Unknown type gets the uniform invalid reply.
	sendWS(t, alice, map[string]string{"type": "interpretive-dance"})
	msg = readWS(t, alice)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("invalid", msg.Code)
}

func TestGateway_DeleteDeliversTerminationNotice(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleAdmin).
		Grant("ws-1", "bob", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	alice := dialWS(t, srv, id, "alice")
	joinWS(t, alice, "alice")
	bob := dialWS(t, srv, id, "bob")
	joinWS(t, bob, "bob")
	_ = readWS(t, alice) // participant-joined bob

	w := do(t, r, http.MethodDelete, "/api/sessions/"+id, bearer(t, "alice", "alice"))
	req.Equal(http.StatusNoContent, w.Code)

	// Both participants read the notice, and only then does the
	// server close the socket.
	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readWS(t, conn)
		req.Equal(protocol.TypeSessionTerminated, msg.Type)
		req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
		_, _, readErr := conn.ReadMessage()
		req.Error(readErr)
	}
	_, ok := coord.Store.Get(sess.Meta().ID)
	req.False(ok)
}

func TestGateway_JoinAsAnotherUserRejected(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic().
		Grant("ws-1", "alice", domain.RoleEditor).
		Grant("ws-1", "mallory", domain.RoleEditor)
	r, coord := testRouter(t, auth)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "alice")
	req.NoError(err)
	id := string(sess.Meta().ID)

	// The token says mallory; the join message claims to be alice.
	mallory := dialWS(t, srv, id, "mallory")
	sendWS(t, mallory, map[string]string{"type": "join", "userId": "alice", "username": "alice"})
	msg := readWS(t, mallory)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("forbidden", msg.Code)
	req.Equal(0, sess.Count())

	// The connection survives and an honest join still works.
	joinWS(t, mallory, "mallory")
	req.Equal(1, sess.Count())
}

func TestGateway_CapacityRejected(t *testing.T) {
	req := require.New(t)
	auth := rbac.NewStatic()
	for _, u := range []string{"u1", "u2", "u3"} {
		auth.Grant("ws-1", domain.UserID(u), domain.RoleEditor)
	}
	cfg := &config.Config{Mode: "release", ReadLimit: 32768, PingPeriod: 54 * time.Second, JWTSecret: testSecret}
	coord := app.NewCoordinator(app.NewSessionStore(), auth, 2)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv := httptest.NewServer(SetupRouter(ctx, cfg, coord))
	t.Cleanup(srv.Close)

	sess, _, err := coord.Create(context.Background(), "ws-1", "u1")
	req.NoError(err)
	id := string(sess.Meta().ID)

	c1 := dialWS(t, srv, id, "u1")
	joinWS(t, c1, "u1")
	c2 := dialWS(t, srv, id, "u2")
	joinWS(t, c2, "u2")
	_ = readWS(t, c1)

	c3 := dialWS(t, srv, id, "u3")
	sendWS(t, c3, map[string]string{"type": "join", "userId": "u3", "username": "u3"})
	msg := readWS(t, c3)
	req.Equal(protocol.TypeError, msg.Type)
	req.Equal("capacity", msg.Code)
	req.Equal(2, sess.Count())
}
