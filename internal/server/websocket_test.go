package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conneroisu/bbcode/internal/logging"
	"github.com/conneroisu/bbcode/internal/monitoring"
)

func allowAll(*http.Request) error { return nil }

func dialHub(t *testing.T, ctx context.Context, hub *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(hub.Handler(allowAll))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestHub_Broadcast(t *testing.T) {
	metrics := monitoring.NewMetrics(prometheus.NewRegistry())
	hub := NewHub(logging.NewNop(), metrics)
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conns := []*websocket.Conn{dialHub(t, ctx, hub), dialHub(t, ctx, hub)}
	require.Eventually(t, func() bool { return hub.Len() == 2 }, 5*time.Second, 10*time.Millisecond)
	expected := `
# HELP bbcode_websocket_clients Connected live preview clients.
# TYPE bbcode_websocket_clients gauge
bbcode_websocket_clients 2
`
	assert.NoError(t, testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "bbcode_websocket_clients"))

	hub.Broadcast(UpdateMessage{Type: "reload", Target: "intro.bb"})

	for _, conn := range conns {
		typ, data, err := conn.Read(ctx)
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)

		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, "reload", msg.Type)
		assert.Equal(t, "intro.bb", msg.Target)
		assert.False(t, msg.Timestamp.IsZero())
	}
}

func TestHub_DisconnectUnregisters(t *testing.T) {
	hub := NewHub(logging.NewNop(), nil)
	defer hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialHub(t, ctx, hub)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn.Close(websocket.StatusNormalClosure, "bye")
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(logging.NewNop(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn := dialHub(t, ctx, hub)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Close()
	assert.Zero(t, hub.Len())

	_, _, err := conn.Read(ctx)
	assert.Error(t, err)

	// Broadcasting to a closed hub is a no-op.
	hub.Broadcast(UpdateMessage{Type: "reload"})
}

func TestCheckOrigin(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name    string
		host    string
		origin  string
		wantErr bool
	}{
		{name: "same origin", host: "localhost:8080", origin: "http://localhost:8080", wantErr: false},
		{name: "configured origin", host: "localhost:8080", origin: "http://allowed.example", wantErr: false},
		{name: "foreign origin", host: "localhost:8080", origin: "http://evil.example", wantErr: true},
		{name: "missing origin", host: "localhost:8080", origin: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			r.Host = tt.host
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			err := env.server.checkOrigin(r)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
