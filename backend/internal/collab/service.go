package collab

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
)

// Service is the operation processor: the single sequencer for every hot
// document. Concurrent edits are resolved by version gating, not transforms;
// the first submission to reach Submit wins and the loser gets
// ErrRevisionConflict with the authoritative state to resync from.
type Service interface {
	Submit(ctx context.Context, docID string, authorID uint64,
		clientID string, clientSeq uint64, op operation.Operation) (AppliedOp, error)

	CurrentState(docID string) (DocState, error)

	// OpsSince serves handshake catch-up from the recent-operations ring.
	OpsSince(ctx context.Context, docID string, fromVersion uint64, limit int) ([]AppliedOp, error)

	SaveSnapshot(ctx context.Context, docID string, authorID uint64) (DocState, error)
}

// AppliedOp is one accepted operation as recorded by the sequencer.
type AppliedOp struct {
	OperationID string
	Version     uint64
	AuthorID    uint64
	Op          operation.Operation
	AppliedAt   time.Time
}

type docJournal struct {
	mu              sync.Mutex
	opsRing         []AppliedOp
	lastSeqByClient map[string]uint64
}

type service struct {
	state   *StateStore
	events  *KafkaDispatcher // nil disables event publication
	ringCap int

	mu       sync.Mutex
	journals map[string]*docJournal
}

func NewService(state *StateStore, events *KafkaDispatcher) Service {
	return &service{
		state:    state,
		events:   events,
		ringCap:  1024,
		journals: make(map[string]*docJournal),
	}
}

func (s *service) journal(docID string) *docJournal {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.journals[docID]
	if j == nil {
		j = &docJournal{
			opsRing:         make([]AppliedOp, 0, s.ringCap),
			lastSeqByClient: make(map[string]uint64),
		}
		s.journals[docID] = j
	}
	return j
}

func (s *service) Submit(ctx context.Context, docID string, authorID uint64,
	clientID string, clientSeq uint64, op operation.Operation) (AppliedOp, error) {

	j := s.journal(docID)
	j.mu.Lock()
	defer j.mu.Unlock()

	// per-client dedupe: seq must strictly increase
	if clientID != "" {
		if last := j.lastSeqByClient[clientID]; clientSeq <= last {
			return AppliedOp{}, ErrDuplicateOrOutOfOrder
		}
	}

	res, err := s.state.Apply(docID, op)
	if err != nil {
		return AppliedOp{}, err
	}

	applied := AppliedOp{
		OperationID: uuid.NewString(),
		Version:     res.NewVersion,
		AuthorID:    authorID,
		Op:          op,
		AppliedAt:   time.Now(),
	}

	if cap(j.opsRing) > 0 && len(j.opsRing) == cap(j.opsRing) {
		copy(j.opsRing[0:], j.opsRing[1:])
		j.opsRing = j.opsRing[:len(j.opsRing)-1]
	}
	j.opsRing = append(j.opsRing, applied)
	if clientID != "" {
		j.lastSeqByClient[clientID] = clientSeq
	}

	if s.events != nil {
		evt := DocOpEvent{
			EventType:   "OP_APPLIED",
			DocID:       docID,
			OperationID: applied.OperationID,
			Version:     applied.Version,
			AuthorID:    authorID,
			ClientID:    clientID,
			ClientSeq:   clientSeq,
			BaseVersion: op.BaseVersion,
			Op:          op,
			AppliedAt:   applied.AppliedAt,
		}
		// best effort: the edit is already accepted even if the event drops
		_ = s.events.Enqueue(ctx, evt)
	}

	return applied, nil
}

func (s *service) CurrentState(docID string) (DocState, error) {
	return s.state.Read(docID)
}

func (s *service) OpsSince(ctx context.Context, docID string, fromVersion uint64, limit int) ([]AppliedOp, error) {
	s.mu.Lock()
	j := s.journals[docID]
	s.mu.Unlock()
	if j == nil {
		return nil, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []AppliedOp
	for _, op := range j.opsRing {
		if op.Version > fromVersion {
			out = append(out, op)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *service) SaveSnapshot(ctx context.Context, docID string, authorID uint64) (DocState, error) {
	return s.state.Flush(ctx, docID, authorID)
}
