package operation

import (
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		op     Operation
		docLen int
		wantOK bool
	}{
		{"insert at start", Operation{Kind: KindInsert, Position: 0, Text: "x"}, 3, true},
		{"insert at end", Operation{Kind: KindInsert, Position: 3, Text: "x"}, 3, true},
		{"insert past end", Operation{Kind: KindInsert, Position: 4, Text: "x"}, 3, false},
		{"insert negative", Operation{Kind: KindInsert, Position: -1, Text: "x"}, 3, false},
		{"insert empty text", Operation{Kind: KindInsert, Position: 0}, 3, false},
		{"delete in range", Operation{Kind: KindDelete, Position: 1, Length: 2}, 3, true},
		{"delete zero length", Operation{Kind: KindDelete, Position: 1}, 3, false},
		{"delete negative length", Operation{Kind: KindDelete, Position: 1, Length: -1}, 3, false},
		{"delete past end", Operation{Kind: KindDelete, Position: 4, Length: 1}, 3, false},
		{"retain", Operation{Kind: KindRetain, Position: 0}, 3, true},
		{"retain negative", Operation{Kind: KindRetain, Position: -1}, 3, false},
		{"unknown kind", Operation{Kind: Kind("replace"), Position: 0}, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op.Validate(tt.docLen)
			if tt.wantOK && err != nil {
				t.Fatalf("Validate() error = %v, want nil", err)
			}
			if !tt.wantOK && !errors.Is(err, ErrMalformed) {
				t.Fatalf("Validate() error = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestClampedLength(t *testing.T) {
	op := Operation{Kind: KindDelete, Position: 2, Length: 10}
	if got := op.ClampedLength(5); got != 3 {
		t.Fatalf("ClampedLength() = %d, want 3", got)
	}
	op = Operation{Kind: KindDelete, Position: 1, Length: 2}
	if got := op.ClampedLength(5); got != 2 {
		t.Fatalf("ClampedLength() = %d, want 2", got)
	}
	if got := (Operation{Kind: KindInsert, Text: "x"}).ClampedLength(5); got != 0 {
		t.Fatalf("ClampedLength() on insert = %d, want 0", got)
	}
}
