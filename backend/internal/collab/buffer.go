package collab

// Buffer is the in-memory document content behind the state store. Insert
// and Delete take rune offsets; callers are responsible for bounds checks.
type Buffer interface {
	Len() int
	Insert(pos int, text string)
	Delete(pos, length int)
	String() string
}
