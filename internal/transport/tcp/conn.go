// Package tcp provides the raw TCP transport: the accept loop and a framed
// connection that reads until each frame is fully consumed.
package tcp

import (
	"bufio"
	"net"
	"time"

	"github.com/averel/salon/internal/protocol"
)

const writeWait = 5 * time.Second

// Conn adapts a net.Conn to the core FrameConn contract. Reads go through a
// buffered reader and io.ReadFull, so short TCP reads never surface as
// truncated frames.
type Conn struct {
	nc         net.Conn
	r          *bufio.Reader
	maxPayload uint32
	writeWait  time.Duration
}

func NewConn(nc net.Conn, maxPayload uint32) *Conn {
	return &Conn{nc: nc, r: bufio.NewReader(nc), maxPayload: maxPayload, writeWait: writeWait}
}

func (c *Conn) ReadFrame() (protocol.Frame, error) {
	return protocol.ReadFrame(c.r, c.maxPayload)
}

// WriteFrame bounds each write with a deadline so a peer that stops reading
// fails the write instead of parking the writer goroutine forever.
func (c *Conn) WriteFrame(f protocol.Frame) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return protocol.WriteFrame(c.nc, f)
}

func (c *Conn) Close() error {
	return c.nc.Close()
}

func (c *Conn) RemoteAddr() string {
	return c.nc.RemoteAddr().String()
}
