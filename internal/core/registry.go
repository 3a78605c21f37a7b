package core

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/averel/salon/internal/protocol"
)

var (
	ErrNicknameTaken = errors.New("nickname already taken")
	ErrNotInRoom     = errors.New("not in a room")
	ErrOfferPending  = errors.New("file offer already pending in room")
)

// LeaveReason parameterizes the system text broadcast to a room when a
// member goes away.
type LeaveReason int

const (
	ReasonLeft LeaveReason = iota
	ReasonDisconnected
	ReasonKicked
)

func (r LeaveReason) text() string {
	switch r {
	case ReasonDisconnected:
		return "disconnected"
	case ReasonKicked:
		return "was kicked"
	default:
		return "left"
	}
}

// SessionInfo is the read-only admin view of one session.
type SessionInfo struct {
	ID           string     `json:"id"`
	Pseudonym    string     `json:"pseudonym"`
	Room         string     `json:"room,omitempty"`
	LastActivity *time.Time `json:"last_activity,omitempty"`
}

type room struct {
	members map[string]*Session
	offer   *FileOffer
}

// Registry is the single source of truth for who is online and who is where.
// One mutex guards sessions, room membership and offer slots together, so a
// join snapshot is atomic with the membership mutation and all registry
// operations are totally ordered. Sends done under the lock are non-blocking
// enqueues onto each session's outbound queue.
type Registry struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	rooms      map[string]*room
	memberRoom map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		sessions:   make(map[string]*Session),
		rooms:      make(map[string]*room),
		memberRoom: make(map[string]string),
	}
}

// Register claims the pseudonym for s. Uniqueness is decided under the lock,
// so two concurrent logins with the same name cannot both succeed.
func (r *Registry) Register(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.pseudonym]; ok {
		return ErrNicknameTaken
	}
	r.sessions[s.pseudonym] = s
	log.Info().Str("module", "core.registry").Str("pseudonym", s.pseudonym).Int("online", len(r.sessions)).Msg("session registered")
	return nil
}

// Unregister removes the pseudonym. Idempotent: the kick path and the
// session's own disconnect path may both call it.
func (r *Registry) Unregister(pseudonym string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[pseudonym]; !ok {
		return
	}
	delete(r.sessions, pseudonym)
	log.Info().Str("module", "core.registry").Str("pseudonym", pseudonym).Int("online", len(r.sessions)).Msg("session unregistered")
}

// JoinRoom adds s to the named room, creating it if absent, and returns the
// pseudonyms that were members before s became visible. The snapshot and the
// mutation happen under one lock acquisition so the caller can send a
// catch-up roster without a duplicate self-notification race. The bool is
// false when no membership was added because s is no longer registered; the
// caller must not acknowledge the join.
func (r *Registry) JoinRoom(s *Session, name string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// A concurrent kick may have unregistered the session already; adding
	// membership for it would leak a room entry with no owner.
	if _, ok := r.sessions[s.pseudonym]; !ok {
		return nil, false
	}

	rm, ok := r.rooms[name]
	if !ok {
		rm = &room{members: make(map[string]*Session)}
		r.rooms[name] = rm
		log.Info().Str("module", "core.registry").Str("room", name).Msg("room created")
	}

	existing := make([]string, 0, len(rm.members))
	for p := range rm.members {
		existing = append(existing, p)
	}

	rm.members[s.pseudonym] = s
	r.memberRoom[s.pseudonym] = name

	// A joiner becomes part of "all other current room members" for an
	// in-flight offer, so it gets the request too.
	if rm.offer != nil {
		s.trySend(fileRequestFrame(rm.offer.Offerer, rm.offer.Filename, rm.offer.Size))
	}

	log.Info().Str("module", "core.registry").Str("room", name).Str("pseudonym", s.pseudonym).Int("members", len(rm.members)).Msg("member joined")
	return existing, true
}

// LeaveRoom removes s from its current room, if any, broadcasting the
// membership change. Returns the room name and whether s was in one.
func (r *Registry) LeaveRoom(s *Session, reason LeaveReason) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.memberRoom[s.pseudonym]
	if !ok {
		return "", false
	}
	r.leaveLocked(s.pseudonym, name, reason)
	return name, true
}

func (r *Registry) leaveLocked(pseudonym, name string, reason LeaveReason) {
	rm := r.rooms[name]
	delete(rm.members, pseudonym)
	delete(r.memberRoom, pseudonym)

	if rm.offer != nil && rm.offer.Offerer == pseudonym {
		rm.offer = nil
	}

	r.broadcastGlobalLocked(roomUpdateFrame(name, pseudonym, ActionLeave), pseudonym)

	if len(rm.members) == 0 {
		delete(r.rooms, name)
		log.Info().Str("module", "core.registry").Str("room", name).Msg("room deleted")
		return
	}

	r.broadcastRoomLocked(rm, systemTextFrame(pseudonym+" "+reason.text()), pseudonym)
	// The departed member may have been the last one holding up an offer.
	r.resolveOfferLocked(rm)
	log.Info().Str("module", "core.registry").Str("room", name).Str("pseudonym", pseudonym).Int("members", len(rm.members)).Msg("member left")
}

// BroadcastMessage fans a chat message from s out to every current member of
// its room, sender included. Fails only if s is not in a room.
func (r *Registry) BroadcastMessage(s *Session, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.memberRoom[s.pseudonym]
	if !ok {
		return ErrNotInRoom
	}
	r.broadcastRoomLocked(r.rooms[name], msgBroadcastFrame(s.pseudonym, text), "")
	return nil
}

// BroadcastRoom enqueues the frame for every current member of the named
// room except the excluded pseudonym. Unknown rooms are a no-op.
func (r *Registry) BroadcastRoom(name string, f protocol.Frame, exclude string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rm, ok := r.rooms[name]
	if !ok {
		return
	}
	r.broadcastRoomLocked(rm, f, exclude)
}

// BroadcastGlobal enqueues the frame for every registered session except the
// excluded pseudonym. Registered implies authenticated.
func (r *Registry) BroadcastGlobal(f protocol.Frame, exclude string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broadcastGlobalLocked(f, exclude)
}

func (r *Registry) broadcastGlobalLocked(f protocol.Frame, exclude string) {
	for p, s := range r.sessions {
		if p == exclude {
			continue
		}
		s.trySend(f)
	}
}

// broadcastRoomLocked is best effort per member: a full or closed outbound
// queue drops the frame for that peer only, which is reaped later by its own
// disconnect path, never by the broadcaster.
func (r *Registry) broadcastRoomLocked(rm *room, f protocol.Frame, exclude string) {
	for p, s := range rm.members {
		if p == exclude {
			continue
		}
		s.trySend(f)
	}
}

// OfferFile installs a file offer in the room's slot and sends FILE_REQUEST
// to every other member. At most one offer may be active per room.
func (r *Registry) OfferFile(s *Session, filename string, size uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.memberRoom[s.pseudonym]
	if !ok {
		return ErrNotInRoom
	}
	rm := r.rooms[name]
	if rm.offer != nil {
		return ErrOfferPending
	}
	rm.offer = newFileOffer(s.pseudonym, filename, size)
	r.broadcastRoomLocked(rm, fileRequestFrame(s.pseudonym, filename, size), s.pseudonym)
	log.Info().Str("module", "core.registry").Str("room", name).Str("offerer", s.pseudonym).Str("filename", filename).Uint32("size", size).Msg("file offer opened")

	// Alone in the room: nothing to wait for.
	r.resolveOfferLocked(rm)
	return nil
}

// RespondFile records s's FILE_ACCEPT or FILE_REJECT against the room's
// pending offer. First rejection wins; responses to a resolved or absent
// offer, and responses from the offerer itself, are ignored.
func (r *Registry) RespondFile(s *Session, accepted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.memberRoom[s.pseudonym]
	if !ok {
		return ErrNotInRoom
	}
	rm := r.rooms[name]
	o := rm.offer
	if o == nil || o.Offerer == s.pseudonym {
		return nil
	}
	if !accepted {
		o.reject(s.pseudonym)
		if off, ok := rm.members[o.Offerer]; ok {
			off.trySend(fileCancelFrame(s.pseudonym + " rejected the transfer"))
		}
		rm.offer = nil
		log.Info().Str("module", "core.registry").Str("room", name).Str("offerer", o.Offerer).Str("rejected_by", s.pseudonym).Msg("file offer canceled")
		return nil
	}
	o.accept(s.pseudonym)
	r.resolveOfferLocked(rm)
	return nil
}

func (r *Registry) resolveOfferLocked(rm *room) {
	o := rm.offer
	if o == nil || !o.complete(rm.members) {
		return
	}
	if off, ok := rm.members[o.Offerer]; ok {
		off.trySend(fileStartFrame())
	}
	rm.offer = nil
	log.Info().Str("module", "core.registry").Str("offerer", o.Offerer).Str("filename", o.Filename).Msg("file offer accepted by all")
}

// IsAwaitingConfirmation reports whether the pseudonym has a file offer
// pending in its room. This is the AwaitingFileConfirmation state; keeping it
// in the room slot lets a responder resolve the offer without touching the
// offerer's session fields.
func (r *Registry) IsAwaitingConfirmation(pseudonym string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.memberRoom[pseudonym]
	if !ok {
		return false
	}
	o := r.rooms[name].offer
	return o != nil && o.Offerer == pseudonym
}

// Snapshot returns a copy of the current session table. Safe to poll
// concurrently at any rate.
func (r *Registry) Snapshot() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]SessionInfo, 0, len(r.sessions))
	for p, s := range r.sessions {
		info := SessionInfo{ID: s.id, Pseudonym: p, Room: r.memberRoom[p]}
		if t := s.lastActivity(); !t.IsZero() {
			info.LastActivity = &t
		}
		out = append(out, info)
	}
	return out
}

// Kick force-removes the pseudonym: room leave with the "kicked" reason,
// registry removal, then transport close. The close makes the session's own
// worker run its Terminated cleanup too; both paths are idempotent so the
// double invocation is harmless. Returns whether a session existed.
func (r *Registry) Kick(pseudonym string) bool {
	r.mu.Lock()
	s, ok := r.sessions[pseudonym]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if name, in := r.memberRoom[pseudonym]; in {
		r.leaveLocked(pseudonym, name, ReasonKicked)
	}
	delete(r.sessions, pseudonym)
	r.mu.Unlock()

	// Abort outside the lock; closing the transport wakes the read loop and
	// fails any write parked on a peer that stopped reading.
	s.abort()
	log.Info().Str("module", "core.registry").Str("pseudonym", pseudonym).Msg("session kicked")
	return true
}
