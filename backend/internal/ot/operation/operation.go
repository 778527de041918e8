package operation

import "errors"

type Kind string

const (
	KindInsert Kind = "insert"
	KindDelete Kind = "delete"
	KindRetain Kind = "retain"
)

var ErrMalformed = errors.New("MALFORMED_OPERATION")

// Operation is a single content mutation tagged with the document version it
// was derived from. Positions and lengths are counted in runes.
type Operation struct {
	Kind        Kind   `json:"kind"`               // "insert" / "delete" / "retain"
	Position    int    `json:"position"`           // rune offset into the document
	Text        string `json:"text,omitempty"`     // insert payload
	Length      int    `json:"length,omitempty"`   // delete length
	BaseVersion uint64 `json:"baseVersion"`
	AuthorID    uint64 `json:"authorId,omitempty"`
}

// Validate checks the operation shape against a document of docLen runes.
// It does not look at BaseVersion; version gating is the state store's job.
func (op Operation) Validate(docLen int) error {
	switch op.Kind {
	case KindInsert:
		if op.Position < 0 || op.Position > docLen {
			return ErrMalformed
		}
		if op.Text == "" {
			return ErrMalformed
		}
	case KindDelete:
		if op.Position < 0 || op.Position > docLen {
			return ErrMalformed
		}
		if op.Length <= 0 {
			return ErrMalformed
		}
	case KindRetain:
		if op.Position < 0 {
			return ErrMalformed
		}
	default:
		return ErrMalformed
	}
	return nil
}

// ClampedLength caps a delete so it never runs past the end of the document.
func (op Operation) ClampedLength(docLen int) int {
	if op.Kind != KindDelete {
		return 0
	}
	if op.Position+op.Length > docLen {
		return docLen - op.Position
	}
	return op.Length
}
