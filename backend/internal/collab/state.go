package collab

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
)

var (
	ErrRevisionConflict      = errors.New("REVISION_CONFLICT")
	ErrDuplicateOrOutOfOrder = errors.New("DUPLICATE_OR_OUT_OF_ORDER")
	ErrDocNotFound           = errors.New("NOT_FOUND")
)

// PersistenceGateway is the durable side of a document: canonical content
// plus a version-history table. Implemented by store.DocumentStore.
type PersistenceGateway interface {
	Load(ctx context.Context, docID string) (content string, version uint64, err error)
	Save(ctx context.Context, docID string, content string, version uint64, authorID uint64) error
	RecordVersion(ctx context.Context, docID string, version uint64, content string, authorID uint64) error
}

// DocState is a read snapshot of one hot document.
type DocState struct {
	Content     string
	Version     uint64
	LastUpdated time.Time
}

type docEntry struct {
	mu          sync.Mutex
	hydrated    bool
	buf         Buffer
	version     uint64
	lastUpdated time.Time
	dirty       bool // accepted ops since the last flush
}

// StateStore owns the authoritative in-memory copy of every hot document.
// All mutation happens under the per-document mutex; Apply never does I/O.
type StateStore struct {
	mu      sync.RWMutex
	docs    map[string]*docEntry
	gateway PersistenceGateway

	// EvictOnIdle drops a document from memory once its room empties,
	// provided the latest content flushed successfully.
	EvictOnIdle bool
}

func NewStateStore(gateway PersistenceGateway, evictOnIdle bool) *StateStore {
	return &StateStore{
		docs:        make(map[string]*docEntry),
		gateway:     gateway,
		EvictOnIdle: evictOnIdle,
	}
}

func (s *StateStore) entry(docID string) *docEntry {
	s.mu.RLock()
	e := s.docs[docID]
	s.mu.RUnlock()
	if e != nil {
		return e
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if e = s.docs[docID]; e == nil {
		e = &docEntry{}
		s.docs[docID] = e
	}
	return e
}

// Hydrate loads {content, version} from the gateway on first access.
// Concurrent hydrations of the same document collapse into one load: the
// entry mutex is held across the fetch, so late callers find hydrated=true.
func (s *StateStore) Hydrate(ctx context.Context, docID string) (DocState, error) {
	e := s.entry(docID)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hydrated {
		return DocState{Content: e.buf.String(), Version: e.version, LastUpdated: e.lastUpdated}, nil
	}
	content, version, err := s.gateway.Load(ctx, docID)
	if err != nil {
		return DocState{}, err
	}
	e.buf = NewPieceTable(content)
	e.version = version
	e.lastUpdated = time.Now()
	e.hydrated = true
	return DocState{Content: content, Version: version, LastUpdated: e.lastUpdated}, nil
}

// Read returns the in-memory state without touching the gateway.
func (s *StateStore) Read(docID string) (DocState, error) {
	s.mu.RLock()
	e := s.docs[docID]
	s.mu.RUnlock()
	if e == nil {
		return DocState{}, ErrDocNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hydrated {
		return DocState{}, ErrDocNotFound
	}
	return DocState{Content: e.buf.String(), Version: e.version, LastUpdated: e.lastUpdated}, nil
}

// ApplyResult reports the outcome of one Apply. On conflict, CurrentVersion
// and CurrentContent carry the authoritative state the client must adopt.
type ApplyResult struct {
	Accepted       bool
	NewVersion     uint64
	CurrentVersion uint64
	CurrentContent string
}

// Apply validates op against the stored version and splices it in. The whole
// check-and-mutate runs under the entry mutex with no I/O, so acceptance
// order is the total order of the document.
func (s *StateStore) Apply(docID string, op operation.Operation) (ApplyResult, error) {
	s.mu.RLock()
	e := s.docs[docID]
	s.mu.RUnlock()
	if e == nil {
		return ApplyResult{}, ErrDocNotFound
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.hydrated {
		return ApplyResult{}, ErrDocNotFound
	}

	// version gate first: a stale op is always a conflict, even when it is
	// out of bounds for the current content, so the client resyncs instead
	// of stalling on a malformed error
	if op.BaseVersion != e.version {
		return ApplyResult{
			Accepted:       false,
			CurrentVersion: e.version,
			CurrentContent: e.buf.String(),
		}, ErrRevisionConflict
	}
	docLen := e.buf.Len()
	if err := op.Validate(docLen); err != nil {
		return ApplyResult{}, err
	}

	switch op.Kind {
	case operation.KindInsert:
		e.buf.Insert(op.Position, op.Text)
	case operation.KindDelete:
		e.buf.Delete(op.Position, op.ClampedLength(docLen))
	case operation.KindRetain:
		// position bookkeeping only, content untouched
	}

	e.version++
	e.lastUpdated = time.Now()
	e.dirty = true
	return ApplyResult{Accepted: true, NewVersion: e.version}, nil
}

// Flush writes the current content through the gateway and clears the dirty
// flag. In-memory state is never rolled back on failure.
func (s *StateStore) Flush(ctx context.Context, docID string, authorID uint64) (DocState, error) {
	s.mu.RLock()
	e := s.docs[docID]
	s.mu.RUnlock()
	if e == nil {
		return DocState{}, ErrDocNotFound
	}
	e.mu.Lock()
	if !e.hydrated {
		e.mu.Unlock()
		return DocState{}, ErrDocNotFound
	}
	st := DocState{Content: e.buf.String(), Version: e.version, LastUpdated: e.lastUpdated}
	e.mu.Unlock()

	if err := s.gateway.Save(ctx, docID, st.Content, st.Version, authorID); err != nil {
		return DocState{}, err
	}
	if err := s.gateway.RecordVersion(ctx, docID, st.Version, st.Content, authorID); err != nil {
		return DocState{}, err
	}

	e.mu.Lock()
	if e.version == st.Version {
		e.dirty = false
	}
	e.mu.Unlock()
	return st, nil
}

// Release is called when the last room member leaves. Under EvictOnIdle the
// entry is dropped, but only after unsaved content flushed successfully;
// a failed flush keeps the document hot so nothing is lost.
func (s *StateStore) Release(ctx context.Context, docID string) {
	s.mu.RLock()
	e := s.docs[docID]
	s.mu.RUnlock()
	if e == nil {
		return
	}

	e.mu.Lock()
	dirty := e.hydrated && e.dirty
	e.mu.Unlock()

	if dirty {
		if _, err := s.Flush(ctx, docID, 0); err != nil {
			log.Printf("release flush failed, keeping doc hot (doc=%s): %v", docID, err)
			return
		}
	}
	if !s.EvictOnIdle {
		return
	}
	s.mu.Lock()
	delete(s.docs, docID)
	s.mu.Unlock()
}
