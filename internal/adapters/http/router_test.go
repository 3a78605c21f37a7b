package http

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averel/salon/internal/config"
	"github.com/averel/salon/internal/core"
	"github.com/averel/salon/internal/protocol"
	"github.com/averel/salon/internal/transport/tcp"
)

func testRouterConfig() *config.Config {
	return &config.Config{Mode: "release"}
}

// loginSession connects a client over an in-memory pipe and authenticates it.
func loginSession(t *testing.T, reg *core.Registry, pseudonym string) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	sess := core.NewSession(tcp.NewConn(server, 0), reg, nil)
	go sess.Run(context.Background())
	t.Cleanup(func() {
		client.Close()
		select {
		case <-sess.Done():
		case <-time.After(2 * time.Second):
			t.Error("session did not terminate")
		}
	})

	require.NoError(t, client.SetDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, protocol.WriteFrame(client, protocol.Frame{
		Type:    protocol.TypeLogin,
		Payload: protocol.String(pseudonym),
	}))
	f, err := protocol.ReadFrame(client, 0)
	require.NoError(t, err)
	require.Equal(t, protocol.TypeLoginOK, f.Type)
	return client
}

func TestSnapshotEndpoint(t *testing.T) {
	reg := core.NewRegistry()
	loginSession(t, reg, "Alice")
	router := SetupRouter(context.Background(), testRouterConfig(), reg, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"pseudonym":"Alice"`)
}

func TestKickEndpoint(t *testing.T) {
	reg := core.NewRegistry()
	loginSession(t, reg, "Alice")
	router := SetupRouter(context.Background(), testRouterConfig(), reg, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/Alice/kick", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, reg.Snapshot())

	// Kicking the same pseudonym again finds nothing.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/sessions/Alice/kick", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestKickUnknownPseudonym(t *testing.T) {
	reg := core.NewRegistry()
	router := SetupRouter(context.Background(), testRouterConfig(), reg, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/Ghost/kick", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
