package client

import (
	"errors"
	"sync"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
)

// Sender is the outbound half of the connection the pipeline drives.
type Sender interface {
	SendOperation(docID, clientID string, clientSeq uint64, op operation.Operation) error
	SendSave(docID string) error
}

var ErrOutOfBounds = errors.New("edit position out of bounds")

// Pipeline is the client side of the sync protocol. Local edits queue up
// FIFO with at most one operation in flight; acknowledged and remote
// operations advance the local model. Because the server serializes all
// operations per document, remote ops apply directly; there is no transform
// step, and a rejected op forces a resync instead (reject-and-resync end to
// end).
type Pipeline struct {
	mu sync.Mutex

	docID    string
	clientID string
	userID   uint64
	sender   Sender

	content string
	version uint64

	pending   []operation.Operation // head is in flight when inflight is true
	inflight  bool
	clientSeq uint64

	// applying suppresses edit capture while a remote or acknowledged
	// operation mutates the local model, preventing echo loops.
	applying bool

	// OnChange, when set, observes every local-model mutation.
	OnChange func(content string, version uint64)
}

func NewPipeline(docID, clientID string, userID uint64, sender Sender) *Pipeline {
	return &Pipeline{
		docID:    docID,
		clientID: clientID,
		userID:   userID,
		sender:   sender,
	}
}

// SetDocumentState adopts the server's authoritative copy, e.g. from the
// document-state payload on join.
func (p *Pipeline) SetDocumentState(content string, version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.content = content
	p.version = version
	p.notifyLocked()
}

func (p *Pipeline) State() (content string, version uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.content, p.version
}

// PendingCount reports how many local operations have not been acknowledged.
func (p *Pipeline) PendingCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Insert captures a local insertion and schedules it for submission.
func (p *Pipeline) Insert(pos int, text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applying {
		return nil
	}
	if pos < 0 || pos > len([]rune(p.content)) {
		return ErrOutOfBounds
	}
	op := operation.Operation{
		Kind:     operation.KindInsert,
		Position: pos,
		Text:     text,
		AuthorID: p.userID,
	}
	return p.enqueueLocked(op)
}

// Delete captures a local deletion.
func (p *Pipeline) Delete(pos, length int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.applying {
		return nil
	}
	if pos < 0 || pos+length > len([]rune(p.content)) {
		return ErrOutOfBounds
	}
	op := operation.Operation{
		Kind:     operation.KindDelete,
		Position: pos,
		Length:   length,
		AuthorID: p.userID,
	}
	return p.enqueueLocked(op)
}

// enqueueLocked appends op to the pending queue; the head goes out
// immediately when nothing is in flight (strict pipelining, never parallel).
func (p *Pipeline) enqueueLocked(op operation.Operation) error {
	p.pending = append(p.pending, op)
	if p.inflight {
		return nil
	}
	return p.sendHeadLocked()
}

func (p *Pipeline) sendHeadLocked() error {
	if len(p.pending) == 0 {
		return nil
	}
	op := p.pending[0]
	op.BaseVersion = p.version
	p.pending[0] = op
	p.clientSeq++
	p.inflight = true
	return p.sender.SendOperation(p.docID, p.clientID, p.clientSeq, op)
}

// HandleAck processes operation-acknowledged: the in-flight op is applied
// locally, the version advances, and the next pending op (if any) is sent.
func (p *Pipeline) HandleAck(newVersion uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.inflight || len(p.pending) == 0 {
		return nil
	}
	op := p.pending[0]
	p.pending = p.pending[1:]
	p.inflight = false

	p.applyLocked(op)
	p.version = newVersion
	p.notifyLocked()

	return p.sendHeadLocked()
}

// HandleRemote processes operation-applied from another author. Safe to
// apply directly because the server already serialized it; own echoes are
// skipped (they arrive as acks instead).
func (p *Pipeline) HandleRemote(op operation.Operation, newVersion uint64, authorID uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if authorID == p.userID {
		return
	}
	p.applying = true
	p.applyLocked(op)
	p.applying = false
	p.version = newVersion
	p.notifyLocked()
}

// HandleConflict processes version-conflict: the local copy is replaced by
// the server's and the queue is dropped. Re-editing against the new baseline
// is the caller's responsibility; nothing is retried automatically.
func (p *Pipeline) HandleConflict(currentContent string, currentVersion uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = nil
	p.inflight = false
	p.applying = true
	p.content = currentContent
	p.applying = false
	p.version = currentVersion
	p.notifyLocked()
}

// Save asks the server to flush through the persistence gateway and record
// a version-history entry.
func (p *Pipeline) Save() error {
	return p.sender.SendSave(p.docID)
}

func (p *Pipeline) applyLocked(op operation.Operation) {
	r := []rune(p.content)
	switch op.Kind {
	case operation.KindInsert:
		if op.Position < 0 || op.Position > len(r) {
			return
		}
		out := make([]rune, 0, len(r)+len([]rune(op.Text)))
		out = append(out, r[:op.Position]...)
		out = append(out, []rune(op.Text)...)
		out = append(out, r[op.Position:]...)
		p.content = string(out)
	case operation.KindDelete:
		if op.Position < 0 || op.Position > len(r) {
			return
		}
		end := op.Position + op.Length
		if end > len(r) {
			end = len(r)
		}
		p.content = string(r[:op.Position]) + string(r[end:])
	case operation.KindRetain:
		// no content change
	}
}

func (p *Pipeline) notifyLocked() {
	if p.OnChange != nil {
		p.OnChange(p.content, p.version)
	}
}
