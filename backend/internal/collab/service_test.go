package collab

import (
	"context"
	"errors"
	"testing"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
)

func newTestService(t *testing.T, content string, version uint64) (Service, *fakeGateway) {
	t.Helper()
	s, g := seedStore(t, content, version)
	return NewService(s, nil), g
}

func TestService_SubmitAccepted(t *testing.T) {
	svc, _ := newTestService(t, "abc", 1)

	op := operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1}
	applied, err := svc.Submit(context.Background(), "d1", 7, "c1", 1, op)
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if applied.OperationID == "" {
		t.Fatalf("Submit() returned empty operation id")
	}
	if applied.Version != 2 {
		t.Fatalf("Submit() version = %d, want 2", applied.Version)
	}
	if applied.AuthorID != 7 {
		t.Fatalf("Submit() authorID = %d, want 7", applied.AuthorID)
	}

	st, err := svc.CurrentState("d1")
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if st.Content != "Xabc" || st.Version != 2 {
		t.Fatalf("CurrentState() = %q v%d, want %q v2", st.Content, st.Version, "Xabc")
	}
}

func TestService_SubmitStaleBase(t *testing.T) {
	svc, _ := newTestService(t, "abc", 2)

	op := operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1}
	_, err := svc.Submit(context.Background(), "d1", 7, "c1", 1, op)
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("Submit() error = %v, want ErrRevisionConflict", err)
	}

	// the document is untouched and the client can resync from CurrentState
	st, err := svc.CurrentState("d1")
	if err != nil {
		t.Fatalf("CurrentState() error = %v", err)
	}
	if st.Content != "abc" || st.Version != 2 {
		t.Fatalf("CurrentState() = %q v%d, want %q v2", st.Content, st.Version, "abc")
	}
}

func TestService_SubmitDuplicateSeq(t *testing.T) {
	svc, _ := newTestService(t, "abc", 1)

	op := operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1}
	if _, err := svc.Submit(context.Background(), "d1", 7, "c1", 5, op); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	// replay of the same seq and anything below it is rejected
	for _, seq := range []uint64{5, 4} {
		op.BaseVersion = 2
		if _, err := svc.Submit(context.Background(), "d1", 7, "c1", seq, op); !errors.Is(err, ErrDuplicateOrOutOfOrder) {
			t.Fatalf("Submit(seq=%d) error = %v, want ErrDuplicateOrOutOfOrder", seq, err)
		}
	}

	// a different client with the same seq is unaffected
	op.BaseVersion = 2
	if _, err := svc.Submit(context.Background(), "d1", 8, "c2", 5, op); err != nil {
		t.Fatalf("Submit() from second client error = %v", err)
	}
}

func TestService_RejectedOpDoesNotConsumeSeq(t *testing.T) {
	svc, _ := newTestService(t, "abc", 2)

	op := operation.Operation{Kind: operation.KindInsert, Position: 0, Text: "X", BaseVersion: 1}
	if _, err := svc.Submit(context.Background(), "d1", 7, "c1", 1, op); !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("Submit() error = %v, want ErrRevisionConflict", err)
	}

	// resubmitting the same seq after resync must succeed
	op.BaseVersion = 2
	if _, err := svc.Submit(context.Background(), "d1", 7, "c1", 1, op); err != nil {
		t.Fatalf("Submit() after resync error = %v", err)
	}
}

func TestService_OpsSince(t *testing.T) {
	svc, _ := newTestService(t, "", 1)

	for i, text := range []string{"a", "b", "c"} {
		op := operation.Operation{
			Kind:        operation.KindInsert,
			Position:    i,
			Text:        text,
			BaseVersion: uint64(i + 1),
		}
		if _, err := svc.Submit(context.Background(), "d1", 7, "c1", uint64(i+1), op); err != nil {
			t.Fatalf("Submit(%d) error = %v", i, err)
		}
	}

	ops, err := svc.OpsSince(context.Background(), "d1", 2, 0)
	if err != nil {
		t.Fatalf("OpsSince() error = %v", err)
	}
	if len(ops) != 2 || ops[0].Version != 3 || ops[1].Version != 4 {
		t.Fatalf("OpsSince(2) = %d ops, want versions [3 4]", len(ops))
	}

	ops, err = svc.OpsSince(context.Background(), "d1", 0, 1)
	if err != nil {
		t.Fatalf("OpsSince() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Version != 2 {
		t.Fatalf("OpsSince(0, limit 1) = %d ops, want 1 op at version 2", len(ops))
	}

	ops, err = svc.OpsSince(context.Background(), "other", 0, 0)
	if err != nil || ops != nil {
		t.Fatalf("OpsSince(unknown doc) = %v, %v, want nil, nil", ops, err)
	}
}

func TestService_SaveSnapshot(t *testing.T) {
	svc, g := newTestService(t, "abc", 1)

	op := operation.Operation{Kind: operation.KindInsert, Position: 3, Text: "!", BaseVersion: 1}
	if _, err := svc.Submit(context.Background(), "d1", 7, "c1", 1, op); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	st, err := svc.SaveSnapshot(context.Background(), "d1", 7)
	if err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if st.Content != "abc!" || st.Version != 2 {
		t.Fatalf("SaveSnapshot() = %q v%d, want %q v2", st.Content, st.Version, "abc!")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.content["d1"] != "abc!" || g.version["d1"] != 2 {
		t.Fatalf("gateway state = %q v%d, want %q v2", g.content["d1"], g.version["d1"], "abc!")
	}
	if len(g.history["d1"]) != 1 || g.history["d1"][0] != 2 {
		t.Fatalf("gateway history = %v, want [2]", g.history["d1"])
	}
}
