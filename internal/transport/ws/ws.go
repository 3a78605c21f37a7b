// Package ws bridges WebSocket clients onto the binary chat protocol: each
// binary WebSocket message carries exactly one frame, and every connection
// runs the same session engine as the TCP transport.
package ws

import (
	"bytes"
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/averel/salon/internal/core"
	"github.com/averel/salon/internal/protocol"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Conn adapts a websocket connection to the core FrameConn contract.
type Conn struct {
	ws         *websocket.Conn
	maxPayload uint32
}

func (c *Conn) ReadFrame() (protocol.Frame, error) {
	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return protocol.Frame{}, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return protocol.ReadFrame(bytes.NewReader(data), c.maxPayload)
	}
}

func (c *Conn) WriteFrame(f protocol.Frame) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.BinaryMessage, f.Encode())
}

func (c *Conn) Close() error {
	return c.ws.Close()
}

func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Handler upgrades requests and runs a session per connection.
type Handler struct {
	reg        *core.Registry
	maxPayload uint32
	limit      rate.Limit
	burst      int
}

func NewHandler(reg *core.Registry, maxPayload uint32, perSecond float64, burst int) *Handler {
	return &Handler{reg: reg, maxPayload: maxPayload, limit: rate.Limit(perSecond), burst: burst}
}

// Handle is the gin endpoint for /ws. It blocks for the lifetime of the
// connection, like any upgraded handler.
func (h *Handler) Handle(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "transport.ws").Msg("upgrade failed")
		return
	}
	var limiter *rate.Limiter
	if h.limit > 0 {
		limiter = rate.NewLimiter(h.limit, h.burst)
	}
	sess := core.NewSession(&Conn{ws: ws, maxPayload: h.maxPayload}, h.reg, limiter)
	sess.Run(ctx)
}
