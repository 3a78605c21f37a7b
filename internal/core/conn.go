package core

import "github.com/averel/salon/internal/protocol"

// FrameConn abstracts a framed bidirectional connection so the session
// engine stays identical for TCP and WebSocket transports.
// Owned by the adapter that created it; Close must be safe to call twice.
type FrameConn interface {
	// ReadFrame blocks until one full frame is read or the connection closes.
	ReadFrame() (protocol.Frame, error)

	// WriteFrame writes one frame. Called only from the session's writer loop.
	WriteFrame(protocol.Frame) error

	Close() error

	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string
}
