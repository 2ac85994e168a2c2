package signal

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/audionoise/jam/internal/app"
	"github.com/audionoise/jam/internal/core"
	"github.com/audionoise/jam/internal/protocol"
	"github.com/audionoise/jam/internal/rbac"
)

func TestDispatch_UnknownTypesShareOneMetricLabel(t *testing.T) {
	req := require.New(t)
	g := NewGateway(app.NewCoordinator(app.NewSessionStore(), rbac.NewStatic(), 8), 32768, 54*time.Second)
	conn := &WsConn{send: make(chan core.Frame, 8)}
	cl := &client{conn: conn, session: "s-1", user: "alice"}

	unknown := app.MetricSignalMessages.WithLabelValues("unknown")
	before := testutil.ToFloat64(unknown)
	series := testutil.CollectAndCount(app.MetricSignalMessages)

	g.dispatch(context.Background(), cl, []byte(`{"type":"../../etc/passwd"}`))
	g.dispatch(context.Background(), cl, []byte(`{"type":"made-up-type"}`))
	g.dispatch(context.Background(), cl, []byte(`not even json`))

	// All three fold into the fixed bucket; wire-chosen strings never
	// mint new series.
	req.Equal(before+3, testutil.ToFloat64(unknown))
	req.Equal(series, testutil.CollectAndCount(app.MetricSignalMessages))

	// Each got the uniform invalid reply.
	for i := 0; i < 3; i++ {
		select {
		case f := <-conn.send:
			req.Contains(string(f), `"invalid"`)
		default:
			t.Fatalf("missing error reply %d", i)
		}
	}
}

func TestMetricTypeLabel(t *testing.T) {
	req := require.New(t)
	req.Equal("offer", metricTypeLabel(protocol.TypeOffer))
	req.Equal("join", metricTypeLabel(protocol.TypeJoin))
	req.Equal("unknown", metricTypeLabel(protocol.MsgType("session-terminated")))
	req.Equal("unknown", metricTypeLabel(protocol.MsgType("")))
}
