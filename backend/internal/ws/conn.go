package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/auth"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/collab"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/room"
)

// Conn wraps one websocket connection. Outbound messages go through a
// buffered channel drained by writeLoop; Enqueue drops when the channel is
// full so one slow reader cannot stall a room.
type Conn struct {
	ws       *websocket.Conn
	id       string
	identity auth.Identity

	hub *room.Hub
	svc collab.Service
	sem *collab.SemaphoreControl

	sendMu sync.Mutex
	closed bool
	send   chan any
}

func NewConn(ws *websocket.Conn, id string, identity auth.Identity, hub *room.Hub, svc collab.Service, sem *collab.SemaphoreControl) *Conn {
	return &Conn{
		ws:       ws,
		id:       id,
		identity: identity,
		hub:      hub,
		svc:      svc,
		sem:      sem,
		send:     make(chan any, 32),
	}
}

func (c *Conn) ID() string              { return c.id }
func (c *Conn) Identity() auth.Identity { return c.identity }

// Enqueue never blocks and never panics: a full queue drops the message,
// and the closed flag keeps a straggling broadcast from hitting the send
// channel after closeSend.
func (c *Conn) Enqueue(msg any) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// queue full, drop
	}
}

// closeSend stops writeLoop. Callers must remove the conn from the hub
// first; the flag covers broadcasts that snapshotted the room before that.
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) readLoop(ctx context.Context) {
	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("read json error (user=%d, conn=%s): %v", c.identity.ID, c.id, err)
			return
		}

		switch msg.Type {
		case "join":
			if err := c.hub.Join(ctx, c, msg.DocID); err != nil {
				log.Printf("join failed (user=%d, doc=%s): %v", c.identity.ID, msg.DocID, err)
			}

		case "leave":
			c.hub.Leave(ctx, c, msg.DocID)

		case "cursor-update":
			if msg.Position == nil {
				continue
			}
			c.hub.UpdateCursor(ctx, c, msg.DocID, *msg.Position)

		case "typing-start":
			c.hub.SetTyping(c, msg.DocID, true)

		case "typing-stop":
			c.hub.SetTyping(c, msg.DocID, false)

		case "heartbeat":
			c.hub.Heartbeat(ctx, c, msg.DocID)

		case "operation":
			c.handleOperation(ctx, msg)

		case "catch-up":
			c.handleCatchUp(ctx, msg)

		case "save":
			c.handleSave(ctx, msg.DocID)

		default:
			c.Enqueue(ErrorMessage{Type: "error", Code: "MALFORMED_REQUEST", Message: "unknown message type"})
		}
	}
}

// handleOperation runs the submit path: membership check, bounded
// concurrency, sequencer submit, then ack to the sender and fan-out to the
// rest of the room. Conflicts go back to the sender only.
func (c *Conn) handleOperation(ctx context.Context, msg ClientMessage) {
	if msg.Op == nil {
		c.Enqueue(ErrorMessage{Type: "error", Code: "MALFORMED_OPERATION", Message: "missing op"})
		return
	}
	if !c.hub.InRoom(c.id, msg.DocID) {
		c.Enqueue(ErrorMessage{Type: "error", Code: "ACCESS_DENIED", Message: "not a member of this document"})
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	if err := c.sem.Acquire(submitCtx); err != nil {
		c.Enqueue(ErrorMessage{Type: "error", Code: "BUSY", Message: err.Error()})
		return
	}
	defer c.sem.Release()

	op := *msg.Op
	op.AuthorID = c.identity.ID

	applied, err := c.svc.Submit(submitCtx, msg.DocID, c.identity.ID, msg.ClientID, msg.ClientSeq, op)
	if err != nil {
		switch {
		case errors.Is(err, collab.ErrRevisionConflict):
			st, stErr := c.svc.CurrentState(msg.DocID)
			if stErr != nil {
				c.Enqueue(ErrorMessage{Type: "error", Code: "INTERNAL", Message: stErr.Error()})
				return
			}
			c.Enqueue(VersionConflictMessage{
				Type:            "version-conflict",
				DocID:           msg.DocID,
				ExpectedVersion: op.BaseVersion,
				CurrentVersion:  st.Version,
				CurrentContent:  st.Content,
			})
		case errors.Is(err, operation.ErrMalformed):
			log.Printf("malformed operation ignored (user=%d, doc=%s)", c.identity.ID, msg.DocID)
			c.Enqueue(ErrorMessage{Type: "error", Code: "MALFORMED_OPERATION", Message: "operation out of bounds"})
		case errors.Is(err, collab.ErrDuplicateOrOutOfOrder):
			c.Enqueue(ErrorMessage{Type: "error", Code: "DUPLICATE_OR_OUT_OF_ORDER", Message: err.Error()})
		case errors.Is(err, collab.ErrDocNotFound):
			c.Enqueue(ErrorMessage{Type: "error", Code: "NOT_FOUND", Message: "document not loaded"})
		default:
			c.Enqueue(ErrorMessage{Type: "error", Code: "INTERNAL", Message: err.Error()})
		}
		return
	}

	c.Enqueue(OpAckMessage{Type: "operation-acknowledged", DocID: msg.DocID, NewVersion: applied.Version, ClientSeq: msg.ClientSeq})
	c.hub.Broadcast(msg.DocID, c.id, OpAppliedMessage{
		Type:       "operation-applied",
		DocID:      msg.DocID,
		Op:         op,
		NewVersion: applied.Version,
		AuthorID:   c.identity.ID,
		AuthorName: c.identity.Name,
	})
}

// handleCatchUp replays the operations accepted after the client's version,
// e.g. after a short network drop. If the ring no longer reaches back to
// fromVersion the full document goes out instead.
func (c *Conn) handleCatchUp(ctx context.Context, msg ClientMessage) {
	if !c.hub.InRoom(c.id, msg.DocID) {
		c.Enqueue(ErrorMessage{Type: "error", Code: "ACCESS_DENIED", Message: "not a member of this document"})
		return
	}
	st, err := c.svc.CurrentState(msg.DocID)
	if err != nil {
		c.Enqueue(ErrorMessage{Type: "error", Code: "NOT_FOUND", Message: "document not loaded"})
		return
	}
	if st.Version <= msg.FromVersion {
		c.Enqueue(CatchUpMessage{Type: "catch-up", DocID: msg.DocID, Ops: []CatchUpOp{}})
		return
	}

	ops, err := c.svc.OpsSince(ctx, msg.DocID, msg.FromVersion, 0)
	if err != nil || len(ops) == 0 || ops[0].Version != msg.FromVersion+1 {
		c.Enqueue(room.DocumentStateEvent{
			Type:    "document-state",
			DocID:   msg.DocID,
			Content: st.Content,
			Version: st.Version,
		})
		return
	}

	out := make([]CatchUpOp, 0, len(ops))
	for _, op := range ops {
		out = append(out, CatchUpOp{Op: op.Op, NewVersion: op.Version, AuthorID: op.AuthorID})
	}
	c.Enqueue(CatchUpMessage{Type: "catch-up", DocID: msg.DocID, Ops: out})
}

// handleSave flushes through the persistence gateway and announces the save
// to the whole room. Failures go to the requester only and leave the
// in-memory document untouched.
func (c *Conn) handleSave(ctx context.Context, docID string) {
	if !c.hub.InRoom(c.id, docID) {
		c.Enqueue(ErrorMessage{Type: "error", Code: "ACCESS_DENIED", Message: "not a member of this document"})
		return
	}
	st, err := c.svc.SaveSnapshot(ctx, docID, c.identity.ID)
	if err != nil {
		log.Printf("save failed (user=%d, doc=%s): %v", c.identity.ID, docID, err)
		c.Enqueue(ErrorMessage{Type: "error", Code: "SAVE_FAILED", Message: "save failed, will retry"})
		return
	}
	c.hub.Broadcast(docID, "", room.DocumentSavedEvent{
		Type:      "document-saved",
		DocID:     docID,
		User:      c.identity,
		Version:   st.Version,
		Timestamp: time.Now(),
	})
}

func (c *Conn) writeLoop() {
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}
