package collab

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
)

// fakeGateway is an in-memory PersistenceGateway for tests.
type fakeGateway struct {
	mu      sync.Mutex
	content map[string]string
	version map[string]uint64
	history map[string][]uint64
	loads   int
	saveErr error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		content: make(map[string]string),
		version: make(map[string]uint64),
		history: make(map[string][]uint64),
	}
}

func (g *fakeGateway) Load(ctx context.Context, docID string) (string, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.loads++
	c, ok := g.content[docID]
	if !ok {
		return "", 0, ErrDocNotFound
	}
	return c, g.version[docID], nil
}

func (g *fakeGateway) Save(ctx context.Context, docID string, content string, version uint64, authorID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.content[docID] = content
	g.version[docID] = version
	return nil
}

func (g *fakeGateway) RecordVersion(ctx context.Context, docID string, version uint64, content string, authorID uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.saveErr != nil {
		return g.saveErr
	}
	g.history[docID] = append(g.history[docID], version)
	return nil
}

func seedStore(t *testing.T, content string, version uint64) (*StateStore, *fakeGateway) {
	t.Helper()
	g := newFakeGateway()
	g.content["d1"] = content
	g.version["d1"] = version
	s := NewStateStore(g, true)
	if _, err := s.Hydrate(context.Background(), "d1"); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	return s, g
}

func TestStateStore_HydrateIdempotent(t *testing.T) {
	s, g := seedStore(t, "abc", 1)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Hydrate(context.Background(), "d1"); err != nil {
				t.Errorf("Hydrate() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if g.loads != 1 {
		t.Fatalf("gateway loads = %d, want 1", g.loads)
	}
	st, err := s.Read("d1")
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if st.Content != "abc" || st.Version != 1 {
		t.Fatalf("Read() = {%q, %d}, want {\"abc\", 1}", st.Content, st.Version)
	}
}

func TestStateStore_ApplySequence(t *testing.T) {
	s, _ := seedStore(t, "", 0)

	ops := []operation.Operation{
		{Kind: operation.KindInsert, Position: 0, Text: "Hello", BaseVersion: 0},
		{Kind: operation.KindInsert, Position: 5, Text: " world", BaseVersion: 1},
		{Kind: operation.KindDelete, Position: 0, Length: 6, BaseVersion: 2},
		{Kind: operation.KindRetain, Position: 3, BaseVersion: 3},
	}
	for i, op := range ops {
		res, err := s.Apply("d1", op)
		if err != nil {
			t.Fatalf("op %d: Apply() error = %v", i, err)
		}
		if !res.Accepted || res.NewVersion != uint64(i+1) {
			t.Fatalf("op %d: result = %+v, want accepted version %d", i, res, i+1)
		}
	}

	st, _ := s.Read("d1")
	if st.Content != "world" {
		t.Fatalf("content = %q, want %q", st.Content, "world")
	}
	// version is exactly V0+N after N accepted operations
	if st.Version != 4 {
		t.Fatalf("version = %d, want 4", st.Version)
	}
}

func TestStateStore_ConflictDoesNotMutate(t *testing.T) {
	s, _ := seedStore(t, "abc", 1)

	// A wins the race
	res, err := s.Apply("d1", operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1})
	if err != nil || res.NewVersion != 2 {
		t.Fatalf("Apply(A) = %+v, %v, want version 2", res, err)
	}

	// B submits against the stale base
	res, err = s.Apply("d1", operation.Operation{Kind: operation.KindInsert, Position: 3, Text: "Y", BaseVersion: 1})
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("Apply(B) error = %v, want ErrRevisionConflict", err)
	}
	if res.CurrentVersion != 2 || res.CurrentContent != "Xabc" {
		t.Fatalf("conflict carries {%d, %q}, want {2, \"Xabc\"}", res.CurrentVersion, res.CurrentContent)
	}

	st, _ := s.Read("d1")
	if st.Content != "Xabc" || st.Version != 2 {
		t.Fatalf("store mutated by rejected op: {%q, %d}", st.Content, st.Version)
	}
}

func TestStateStore_StaleOpOutOfBoundsIsConflict(t *testing.T) {
	s, _ := seedStore(t, "abc", 1)

	// the document shrinks to "" at v2
	res, err := s.Apply("d1", operation.Operation{Kind: operation.KindDelete, Position: 0, Length: 3, BaseVersion: 1})
	if err != nil || res.NewVersion != 2 {
		t.Fatalf("Apply(delete) = %+v, %v, want version 2", res, err)
	}

	// a stale op positioned past the current end is a conflict, not malformed:
	// the version gate comes before bounds validation
	res, err = s.Apply("d1", operation.Operation{Kind: operation.KindInsert, Position: 3, Text: "Y", BaseVersion: 1})
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("Apply(stale) error = %v, want ErrRevisionConflict", err)
	}
	if res.CurrentVersion != 2 || res.CurrentContent != "" {
		t.Fatalf("conflict carries {%d, %q}, want {2, \"\"}", res.CurrentVersion, res.CurrentContent)
	}
}

func TestStateStore_MalformedRejected(t *testing.T) {
	s, _ := seedStore(t, "abc", 1)

	cases := []operation.Operation{
		{Kind: operation.KindInsert, Position: 4, Text: "X", BaseVersion: 1},
		{Kind: operation.KindInsert, Position: -1, Text: "X", BaseVersion: 1},
		{Kind: operation.KindInsert, Position: 0, BaseVersion: 1},
		{Kind: operation.KindDelete, Position: 5, Length: 1, BaseVersion: 1},
		{Kind: operation.KindDelete, Position: 0, Length: 0, BaseVersion: 1},
		{Kind: "replace", Position: 0, BaseVersion: 1},
	}
	for i, op := range cases {
		if _, err := s.Apply("d1", op); !errors.Is(err, operation.ErrMalformed) {
			t.Fatalf("case %d: Apply() error = %v, want ErrMalformed", i, err)
		}
	}

	st, _ := s.Read("d1")
	if st.Content != "abc" || st.Version != 1 {
		t.Fatalf("store mutated by malformed op: {%q, %d}", st.Content, st.Version)
	}
}

func TestStateStore_DeleteClampedToBounds(t *testing.T) {
	s, _ := seedStore(t, "abc", 1)

	res, err := s.Apply("d1", operation.Operation{Kind: operation.KindDelete, Position: 1, Length: 10, BaseVersion: 1})
	if err != nil || !res.Accepted {
		t.Fatalf("Apply() = %+v, %v, want accepted", res, err)
	}
	st, _ := s.Read("d1")
	if st.Content != "a" {
		t.Fatalf("content = %q, want %q", st.Content, "a")
	}
}

func TestStateStore_FlushRoundTrip(t *testing.T) {
	s, g := seedStore(t, "abc", 1)
	if _, err := s.Apply("d1", operation.Operation{Kind: operation.KindInsert, Position: 3, Text: "!", BaseVersion: 1}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	st, err := s.Flush(context.Background(), "d1", 42)
	if err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	if st.Content != "abc!" || st.Version != 2 {
		t.Fatalf("Flush() = {%q, %d}, want {\"abc!\", 2}", st.Content, st.Version)
	}

	// save followed by load returns identical {content, version}
	content, version, err := g.Load(context.Background(), "d1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if content != "abc!" || version != 2 {
		t.Fatalf("Load() = {%q, %d}, want {\"abc!\", 2}", content, version)
	}
	if got := g.history["d1"]; len(got) != 1 || got[0] != 2 {
		t.Fatalf("history = %v, want [2]", got)
	}
}

func TestStateStore_ReleaseEvictsAfterFlush(t *testing.T) {
	s, g := seedStore(t, "abc", 1)
	if _, err := s.Apply("d1", operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	s.Release(context.Background(), "d1")

	if _, err := s.Read("d1"); !errors.Is(err, ErrDocNotFound) {
		t.Fatalf("Read() after release error = %v, want ErrDocNotFound", err)
	}
	if g.content["d1"] != "Xabc" {
		t.Fatalf("release dropped unsaved content: gateway has %q", g.content["d1"])
	}
}

func TestStateStore_ReleaseKeepsDocWhenFlushFails(t *testing.T) {
	s, g := seedStore(t, "abc", 1)
	if _, err := s.Apply("d1", operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1}); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	g.saveErr = errors.New("db down")

	s.Release(context.Background(), "d1")

	st, err := s.Read("d1")
	if err != nil {
		t.Fatalf("doc evicted despite failed flush: %v", err)
	}
	if st.Content != "Xabc" {
		t.Fatalf("content = %q, want %q", st.Content, "Xabc")
	}
}

func TestStateStore_ReadUnknownDoc(t *testing.T) {
	s := NewStateStore(newFakeGateway(), true)
	if _, err := s.Read("nope"); !errors.Is(err, ErrDocNotFound) {
		t.Fatalf("Read() error = %v, want ErrDocNotFound", err)
	}
	if _, err := s.Apply("nope", operation.Operation{Kind: operation.KindRetain}); !errors.Is(err, ErrDocNotFound) {
		t.Fatalf("Apply() error = %v, want ErrDocNotFound", err)
	}
}
