package room

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/auth"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/cache"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/collab"
)

// Session is a live authenticated connection as the hub sees it. Enqueue
// must never block; slow consumers drop messages, not the room.
type Session interface {
	ID() string
	Identity() auth.Identity
	Enqueue(msg any)
}

// AccessChecker is the external authorization collaborator:
// checkAccess(user, documentId) -> {allowed, role}.
type AccessChecker interface {
	CheckAccess(ctx context.Context, userID uint64, docID string) (allowed bool, role string, err error)
}

// MetadataSource supplies document metadata for the document-state payload.
type MetadataSource interface {
	Metadata(ctx context.Context, docID string) (title string, ownerID uint64, err error)
}

type member struct {
	sess     Session
	user     auth.Identity
	role     string
	cursor   *CursorPos
	isTyping bool
	lastSeen time.Time

	// typing auto-expiry: the timer handle is owned here so leave/disconnect
	// can always cancel it; gen guards against a stale timer firing after a
	// fresh typing-start re-armed it.
	typingTimer *time.Timer
	typingGen   uint64
}

// Hub tracks per-document membership, presence, cursors and typing state.
// It enforces one active room per session and is the broadcast fan-out for
// everything except operation traffic (the ws layer handles that ack path).
type Hub struct {
	mu          sync.Mutex
	rooms       map[string]map[string]*member // docID -> sessionID -> member
	sessionRoom map[string]string             // sessionID -> docID

	state    *collab.StateStore
	access   AccessChecker
	meta     MetadataSource      // optional
	presence cache.PresenceCache // optional mirror into Redis

	typingTTL   time.Duration
	presenceTTL time.Duration
}

func NewHub(state *collab.StateStore, access AccessChecker, meta MetadataSource, presence cache.PresenceCache, typingTTL, presenceTTL time.Duration) *Hub {
	if typingTTL <= 0 {
		typingTTL = 3 * time.Second
	}
	if presenceTTL <= 0 {
		presenceTTL = 600 * time.Second
	}
	return &Hub{
		rooms:       make(map[string]map[string]*member),
		sessionRoom: make(map[string]string),
		state:       state,
		access:      access,
		meta:        meta,
		presence:    presence,
		typingTTL:   typingTTL,
		presenceTTL: presenceTTL,
	}
}

// Join admits a session into a document room. Denied or failed joins leave
// no state behind. On success the joiner gets document-state plus the
// roster, and everyone else gets user-joined.
func (h *Hub) Join(ctx context.Context, sess Session, docID string) error {
	user := sess.Identity()

	allowed, role, err := h.access.CheckAccess(ctx, user.ID, docID)
	if err != nil {
		code := "INTERNAL"
		if errors.Is(err, collab.ErrDocNotFound) {
			code = "NOT_FOUND"
		}
		sess.Enqueue(ErrorEvent{Type: "error", Code: code, Message: err.Error()})
		return err
	}
	if !allowed {
		sess.Enqueue(ErrorEvent{Type: "error", Code: "ACCESS_DENIED", Message: "no access to document"})
		return errors.New("ACCESS_DENIED")
	}

	// hydrate before taking the room lock; Hydrate may hit the gateway
	st, err := h.state.Hydrate(ctx, docID)
	if err != nil {
		code := "INTERNAL"
		if errors.Is(err, collab.ErrDocNotFound) {
			code = "NOT_FOUND"
		}
		sess.Enqueue(ErrorEvent{Type: "error", Code: code, Message: "failed to load document"})
		return err
	}

	var meta DocumentMeta
	if h.meta != nil {
		if title, ownerID, err := h.meta.Metadata(ctx, docID); err == nil {
			meta = DocumentMeta{Title: title, OwnerID: ownerID}
		}
	}

	h.mu.Lock()
	// one active room per session
	if prev, ok := h.sessionRoom[sess.ID()]; ok && prev != docID {
		h.leaveLocked(ctx, sess.ID(), prev)
	}
	if h.rooms[docID] == nil {
		h.rooms[docID] = make(map[string]*member)
	}
	h.rooms[docID][sess.ID()] = &member{
		sess:     sess,
		user:     user,
		role:     role,
		lastSeen: time.Now(),
	}
	h.sessionRoom[sess.ID()] = docID
	roster := h.rosterLocked(docID)
	others := h.othersLocked(docID, sess.ID())
	h.mu.Unlock()

	sess.Enqueue(DocumentStateEvent{Type: "document-state", DocID: docID, Content: st.Content, Version: st.Version, Metadata: meta})
	sess.Enqueue(RosterEvent{Type: "roster", DocID: docID, Members: roster})

	joined := UserJoinedEvent{Type: "user-joined", DocID: docID, User: user, Roster: roster}
	for _, o := range others {
		o.Enqueue(joined)
	}

	if h.presence != nil {
		if err := h.presence.AddMember(ctx, docID, user.ID, user.Name, h.presenceTTL); err != nil {
			log.Printf("presence add member failed (doc=%s user=%d): %v", docID, user.ID, err)
		}
	}
	return nil
}

// Leave removes the session from the room, broadcasting user-left to the
// remaining members. The last member out releases the document state.
func (h *Hub) Leave(ctx context.Context, sess Session, docID string) {
	h.mu.Lock()
	h.leaveLocked(ctx, sess.ID(), docID)
	h.mu.Unlock()
}

// leaveLocked mutates membership under h.mu. Broadcast and release happen
// inline; Enqueue never blocks and Release takes its own locks after we
// recorded the room as empty.
func (h *Hub) leaveLocked(ctx context.Context, sessID, docID string) {
	conns := h.rooms[docID]
	if conns == nil {
		return
	}
	mem, ok := conns[sessID]
	if !ok {
		return
	}
	if mem.typingTimer != nil {
		mem.typingTimer.Stop()
	}
	delete(conns, sessID)
	if h.sessionRoom[sessID] == docID {
		delete(h.sessionRoom, sessID)
	}

	if h.presence != nil {
		if err := h.presence.RemoveMember(ctx, docID, mem.user.ID); err != nil {
			log.Printf("presence remove member failed (doc=%s user=%d): %v", docID, mem.user.ID, err)
		}
	}

	if len(conns) == 0 {
		delete(h.rooms, docID)
		go h.state.Release(context.WithoutCancel(ctx), docID)
		return
	}

	left := UserLeftEvent{Type: "user-left", DocID: docID, User: mem.user, Roster: h.rosterLocked(docID)}
	for _, m := range conns {
		m.sess.Enqueue(left)
	}
}

// Disconnect runs the same cleanup as Leave for every room the session was
// in, then forgets the session.
func (h *Hub) Disconnect(ctx context.Context, sess Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if docID, ok := h.sessionRoom[sess.ID()]; ok {
		h.leaveLocked(ctx, sess.ID(), docID)
	}
}

// UpdateCursor records the member's cursor and fans it out; fire-and-forget.
func (h *Hub) UpdateCursor(ctx context.Context, sess Session, docID string, pos CursorPos) {
	h.mu.Lock()
	mem := h.memberLocked(docID, sess.ID())
	if mem == nil {
		h.mu.Unlock()
		return
	}
	mem.cursor = &pos
	mem.lastSeen = time.Now()
	user := mem.user
	others := h.othersLocked(docID, sess.ID())
	h.mu.Unlock()

	evt := CursorUpdateEvent{Type: "cursor-update", DocID: docID, User: user, Position: pos}
	for _, o := range others {
		o.Enqueue(evt)
	}

	if h.presence != nil {
		if data, err := json.Marshal(pos); err == nil {
			_ = h.presence.SetCursor(ctx, docID, user.ID, data, h.presenceTTL)
		}
	}
}

// SetTyping flips the member's typing flag. typing=true (re)arms the
// auto-stop timer; typing=false stops it and broadcasts the stop now.
func (h *Hub) SetTyping(sess Session, docID string, typing bool) {
	h.mu.Lock()
	mem := h.memberLocked(docID, sess.ID())
	if mem == nil {
		h.mu.Unlock()
		return
	}
	mem.lastSeen = time.Now()

	if typing {
		mem.isTyping = true
		mem.typingGen++
		gen := mem.typingGen
		if mem.typingTimer != nil {
			mem.typingTimer.Stop()
		}
		sessID := sess.ID()
		mem.typingTimer = time.AfterFunc(h.typingTTL, func() {
			h.expireTyping(docID, sessID, gen)
		})
	} else {
		if !mem.isTyping {
			h.mu.Unlock()
			return
		}
		mem.isTyping = false
		if mem.typingTimer != nil {
			mem.typingTimer.Stop()
			mem.typingTimer = nil
		}
	}
	user := mem.user
	others := h.othersLocked(docID, sess.ID())
	h.mu.Unlock()

	kind := "typing-stop"
	if typing {
		kind = "typing-start"
	}
	evt := TypingEvent{Type: kind, DocID: docID, UserID: user.ID, UserName: user.Name}
	for _, o := range others {
		o.Enqueue(evt)
	}
}

// expireTyping fires from the auto-stop timer. The generation check makes
// sure exactly one stop goes out per typing burst.
func (h *Hub) expireTyping(docID, sessID string, gen uint64) {
	h.mu.Lock()
	mem := h.memberLocked(docID, sessID)
	if mem == nil || !mem.isTyping || mem.typingGen != gen {
		h.mu.Unlock()
		return
	}
	mem.isTyping = false
	mem.typingTimer = nil
	user := mem.user
	others := h.othersLocked(docID, sessID)
	h.mu.Unlock()

	evt := TypingEvent{Type: "typing-stop", DocID: docID, UserID: user.ID, UserName: user.Name}
	for _, o := range others {
		o.Enqueue(evt)
	}
}

// Heartbeat refreshes lastSeen and the Redis presence TTL.
func (h *Hub) Heartbeat(ctx context.Context, sess Session, docID string) {
	h.mu.Lock()
	mem := h.memberLocked(docID, sess.ID())
	if mem != nil {
		mem.lastSeen = time.Now()
	}
	h.mu.Unlock()
	if mem == nil {
		return
	}
	if h.presence != nil {
		_ = h.presence.AddMember(ctx, docID, mem.user.ID, mem.user.Name, h.presenceTTL)
	}
}

// Broadcast sends msg to every member of the room except the session with
// id exceptID (empty string sends to everyone). Used by the ws layer for
// operation-applied and document-saved fan-out.
func (h *Hub) Broadcast(docID, exceptID string, msg any) {
	h.mu.Lock()
	var out []Session
	for id, m := range h.rooms[docID] {
		if exceptID != "" && id == exceptID {
			continue
		}
		out = append(out, m.sess)
	}
	h.mu.Unlock()
	for _, s := range out {
		s.Enqueue(msg)
	}
}

// Roster returns a snapshot of the room's membership.
func (h *Hub) Roster(docID string) []RosterMember {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.rosterLocked(docID)
}

// InRoom reports whether the session currently belongs to the room.
func (h *Hub) InRoom(sessID, docID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sessionRoom[sessID] == docID
}

func (h *Hub) memberLocked(docID, sessID string) *member {
	conns := h.rooms[docID]
	if conns == nil {
		return nil
	}
	return conns[sessID]
}

func (h *Hub) othersLocked(docID, exceptID string) []Session {
	var out []Session
	for id, m := range h.rooms[docID] {
		if id == exceptID {
			continue
		}
		out = append(out, m.sess)
	}
	return out
}

func (h *Hub) rosterLocked(docID string) []RosterMember {
	conns := h.rooms[docID]
	out := make([]RosterMember, 0, len(conns))
	for _, m := range conns {
		out = append(out, RosterMember{User: m.user, Role: m.role, Cursor: m.cursor, IsTyping: m.isTyping})
	}
	return out
}
