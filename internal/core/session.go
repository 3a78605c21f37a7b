package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/averel/salon/internal/domain"
	"github.com/averel/salon/internal/protocol"
)

// State is the protocol position of a session. AwaitingFileConfirmation is
// not listed here: it is derived from the room's offer slot under the
// registry lock (see Registry.IsAwaitingConfirmation).
type State uint8

const (
	StateConnected State = iota
	StateAuthenticated
	StateInRoom
)

const outboundQueueSize = 64

// Session is the server-side state for one client connection. The worker
// goroutine running Run owns state, pseudonym and room; other goroutines
// reach the session only through its outbound queue or Close.
type Session struct {
	id      string
	conn    FrameConn
	reg     *Registry
	limiter *rate.Limiter

	send       chan protocol.Frame
	sendMu     sync.RWMutex
	sendClosed bool
	writerDone chan struct{}

	state     State
	pseudonym string
	room      string

	lastAct atomic.Int64 // unix nanos of the last MSG, 0 until the first one

	cleanupOnce sync.Once
	stopped     chan struct{}
}

// NewSession wraps an accepted connection. limiter may be nil to disable
// inbound frame rate limiting.
func NewSession(conn FrameConn, reg *Registry, limiter *rate.Limiter) *Session {
	return &Session{
		id:         uuid.NewString(),
		conn:       conn,
		reg:        reg,
		limiter:    limiter,
		send:       make(chan protocol.Frame, outboundQueueSize),
		writerDone: make(chan struct{}),
		stopped:    make(chan struct{}),
	}
}

func (s *Session) ID() string        { return s.id }
func (s *Session) Pseudonym() string { return s.pseudonym }

// Done is closed once the session has fully terminated and cleaned up.
func (s *Session) Done() <-chan struct{} { return s.stopped }

// trySend enqueues a frame without blocking. A full or closed queue drops
// the frame; the peer is reaped by its own disconnect path.
func (s *Session) trySend(f protocol.Frame) {
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()
	if s.sendClosed {
		return
	}
	select {
	case s.send <- f:
	default:
		log.Warn().Str("module", "core.session").Str("sid", s.id).Str("pseudonym", s.pseudonym).Uint8("type", f.Type).Msg("outbound queue full, frame dropped")
	}
}

// Close flushes the outbound queue and closes the transport. Safe to call
// from any goroutine and more than once; the admin kick path and the
// session's own cleanup may race here.
func (s *Session) Close() {
	s.sendMu.Lock()
	if s.sendClosed {
		s.sendMu.Unlock()
		return
	}
	s.sendClosed = true
	close(s.send)
	s.sendMu.Unlock()

	<-s.writerDone
	_ = s.conn.Close()
}

// abort closes the transport before waiting out the writer, so a write parked
// on an unresponsive peer errors out instead of stalling the caller. Queued
// frames are dropped; the kick path wants the connection gone now.
func (s *Session) abort() {
	_ = s.conn.Close()
	s.Close()
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	var broken bool
	for f := range s.send {
		if broken {
			continue
		}
		if err := s.conn.WriteFrame(f); err != nil {
			log.Debug().Err(err).Str("module", "core.session").Str("sid", s.id).Msg("write failed")
			broken = true
			_ = s.conn.Close()
		}
	}
}

// Run drives the session: a writer goroutine drains the outbound queue while
// this goroutine reads and handles one frame at a time. Each operation runs
// to completion before the next frame is read. Run returns after cleanup.
func (s *Session) Run(ctx context.Context) {
	log.Info().Str("module", "core.session").Str("sid", s.id).Str("addr", s.conn.RemoteAddr()).Msg("connection accepted")
	go s.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopped:
		}
	}()

	for {
		f, err := s.conn.ReadFrame()
		if err != nil {
			log.Info().Str("module", "core.session").Str("sid", s.id).Str("pseudonym", s.pseudonym).Msg("connection closed")
			break
		}
		if s.limiter != nil && !s.limiter.Allow() {
			log.Warn().Str("module", "core.session").Str("sid", s.id).Str("pseudonym", s.pseudonym).Msg("rate limit exceeded, frame dropped")
			continue
		}
		if fatal := s.handleFrame(f); fatal {
			break
		}
	}
	s.terminate()
}

// terminate runs the Terminated cleanup exactly once: room leave if
// applicable, registry removal, transport close.
func (s *Session) terminate() {
	s.cleanupOnce.Do(func() {
		if s.pseudonym != "" {
			s.reg.LeaveRoom(s, ReasonDisconnected)
			s.reg.Unregister(s.pseudonym)
		}
		s.Close()
		close(s.stopped)
	})
}

// handleFrame validates one inbound frame against the current state and
// dispatches it. The returned bool is true when the violation is fatal.
func (s *Session) handleFrame(f protocol.Frame) bool {
	if s.state == StateConnected {
		if f.Type != protocol.TypeLogin {
			s.trySend(loginErrFrame("login required"))
			return true
		}
		return s.handleLogin(f)
	}

	switch f.Type {
	case protocol.TypePing:
		s.trySend(pongFrame())
		return false
	case protocol.TypePong:
		return false
	}

	if s.reg.IsAwaitingConfirmation(s.pseudonym) {
		switch f.Type {
		case protocol.TypeFileAccept, protocol.TypeFileReject:
			// Responses to our own offer are ignored by the registry.
		case protocol.TypeFileOffer:
			s.trySend(errorFrame(protocol.ErrCodeBusy, "file offer already pending"))
			return false
		default:
			s.trySend(errorFrame(protocol.ErrCodeActionBlocked, "awaiting file transfer confirmation"))
			return false
		}
	}

	switch f.Type {
	case protocol.TypeLogin:
		s.trySend(errorFrame(protocol.ErrCodeActionNotAllowed, "already logged in"))
	case protocol.TypeJoin:
		s.handleJoin(f)
	case protocol.TypeLeave:
		s.handleLeave()
	case protocol.TypeMsg:
		s.handleMsg(f)
	case protocol.TypeFileOffer:
		s.handleFileOffer(f)
	case protocol.TypeFileAccept:
		s.handleFileResponse(true)
	case protocol.TypeFileReject:
		s.handleFileResponse(false)
	default:
		s.trySend(errorFrame(protocol.ErrCodeActionNotAllowed, "unknown message type"))
	}
	return false
}

func (s *Session) handleLogin(f protocol.Frame) bool {
	pseudonym, _, err := protocol.ReadString(f.Payload)
	if err != nil {
		s.trySend(loginErrFrame("malformed login"))
		return true
	}
	if err := domain.ValidatePseudonym(pseudonym); err != nil {
		s.trySend(loginErrFrame("invalid nickname"))
		return true
	}
	s.pseudonym = pseudonym
	if err := s.reg.Register(s); err != nil {
		s.pseudonym = ""
		s.trySend(loginErrFrame("nickname already taken"))
		return true
	}
	s.state = StateAuthenticated
	s.trySend(loginOKFrame())
	s.reg.BroadcastGlobal(userConnectedFrame(pseudonym), pseudonym)
	log.Info().Str("module", "core.session").Str("sid", s.id).Str("pseudonym", pseudonym).Msg("login ok")
	return false
}

func (s *Session) handleJoin(f protocol.Frame) {
	name, _, err := protocol.ReadString(f.Payload)
	if err != nil {
		s.trySend(errorFrame(protocol.ErrCodeInvalidRoomName, "malformed join"))
		return
	}
	if err := domain.ValidateRoomName(name); err != nil {
		s.trySend(errorFrame(protocol.ErrCodeInvalidRoomName, err.Error()))
		return
	}

	// Joining the room we already occupy is a no-op: no membership change,
	// no broadcasts, no catch-up roster.
	if s.state == StateInRoom && s.room == name {
		s.trySend(joinOKFrame())
		return
	}

	// Switching rooms is leave-then-join, never a silent move.
	if s.state == StateInRoom {
		s.reg.LeaveRoom(s, ReasonLeft)
		s.room = ""
		s.state = StateAuthenticated
	}

	existing, ok := s.reg.JoinRoom(s, name)
	if !ok {
		// A concurrent kick already unregistered us; the closed transport
		// ends this worker on the next read.
		return
	}
	s.room = name
	s.state = StateInRoom

	s.trySend(joinOKFrame())
	// Catch-up roster from the snapshot taken before we became visible.
	for _, member := range existing {
		s.trySend(roomUpdateFrame(name, member, ActionJoin))
	}
	s.reg.BroadcastGlobal(roomUpdateFrame(name, s.pseudonym, ActionJoin), s.pseudonym)
	s.reg.BroadcastRoom(name, systemTextFrame(s.pseudonym+" joined"), s.pseudonym)
}

func (s *Session) handleLeave() {
	if s.state != StateInRoom {
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
		return
	}
	s.reg.LeaveRoom(s, ReasonLeft)
	s.room = ""
	s.state = StateAuthenticated
	// The protocol has no LEAVE acknowledgement.
}

func (s *Session) handleMsg(f protocol.Frame) {
	if s.state != StateInRoom {
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
		return
	}
	text, _, err := protocol.ReadString(f.Payload)
	if err != nil {
		s.trySend(errorFrame(protocol.ErrCodeEmptyMessage, "malformed message"))
		return
	}
	switch domain.ValidateMessage(text) {
	case domain.ErrMessageEmpty:
		s.trySend(errorFrame(protocol.ErrCodeEmptyMessage, "empty message"))
		return
	case domain.ErrMessageTooLong:
		s.trySend(errorFrame(protocol.ErrCodeMessageTooLong, "message too long"))
		return
	}
	s.lastAct.Store(time.Now().UnixNano())
	if err := s.reg.BroadcastMessage(s, text); err != nil {
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
	}
}

func (s *Session) handleFileOffer(f protocol.Frame) {
	if s.state != StateInRoom {
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
		return
	}
	filename, rest, err := protocol.ReadString(f.Payload)
	if err != nil {
		s.trySend(errorFrame(protocol.ErrCodeActionNotAllowed, "malformed file offer"))
		return
	}
	size, _, err := protocol.ReadUint32(rest)
	if err != nil {
		s.trySend(errorFrame(protocol.ErrCodeActionNotAllowed, "malformed file offer"))
		return
	}
	switch s.reg.OfferFile(s, filename, size) {
	case ErrOfferPending:
		s.trySend(errorFrame(protocol.ErrCodeBusy, "file offer already pending"))
	case ErrNotInRoom:
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
	}
}

func (s *Session) handleFileResponse(accepted bool) {
	if s.state != StateInRoom {
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
		return
	}
	if err := s.reg.RespondFile(s, accepted); err != nil {
		s.trySend(errorFrame(protocol.ErrCodeNotInRoom, "not in a room"))
	}
}

func (s *Session) lastActivity() time.Time {
	n := s.lastAct.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
