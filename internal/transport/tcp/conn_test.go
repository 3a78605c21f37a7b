package tcp

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/averel/salon/internal/protocol"
)

func TestConnFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(server, 0)
	sent := protocol.Frame{Type: protocol.TypeLogin, Payload: protocol.String("Alice")}

	go func() {
		_, _ = client.Write(sent.Encode())
	}()

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}

func TestConnReadsSplitFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(server, 0)
	sent := protocol.Frame{Type: protocol.TypeMsg, Payload: protocol.String("bonjour")}
	wire := sent.Encode()

	// Deliver the frame byte by byte; the reader must loop until the whole
	// header and payload arrive.
	go func() {
		for _, b := range wire {
			_, _ = client.Write([]byte{b})
		}
	}()

	got, err := c.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}

func TestConnRejectsOversizedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(server, 16)
	big := protocol.Frame{Type: protocol.TypeMsg, Payload: make([]byte, 64)}

	go func() {
		_, _ = client.Write(big.Encode())
	}()

	_, err := c.ReadFrame()
	assert.ErrorIs(t, err, protocol.ErrFrameTooLarge)
}

func TestConnWriteDeadlineOnStuckPeer(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(server, 0)
	c.writeWait = 50 * time.Millisecond

	// Nobody reads from client, so the write parks until the deadline.
	err := c.WriteFrame(protocol.Frame{Type: protocol.TypeMsg, Payload: protocol.String("hello")})
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)
}

func TestConnWriteFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	c := NewConn(server, 0)
	sent := protocol.Frame{Type: protocol.TypeLoginOK}

	go func() {
		_ = c.WriteFrame(sent)
	}()

	got, err := protocol.ReadFrame(client, 0)
	require.NoError(t, err)
	assert.Equal(t, sent, got)
}
