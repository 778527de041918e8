package auth

import (
	"errors"
	"testing"
)

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	if _, err := r.Lookup("c1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Lookup() before bind error = %v, want ErrNoSession", err)
	}

	r.Bind("c1", Identity{ID: 1, Name: "alice"})
	r.Bind("c2", Identity{ID: 2, Name: "bob"})
	if r.Count() != 2 {
		t.Fatalf("Count() = %d, want 2", r.Count())
	}

	id, err := r.Lookup("c1")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if id.ID != 1 || id.Name != "alice" {
		t.Fatalf("Lookup() = %+v, want alice", id)
	}

	r.Unbind("c1")
	if _, err := r.Lookup("c1"); !errors.Is(err, ErrNoSession) {
		t.Fatalf("Lookup() after unbind error = %v, want ErrNoSession", err)
	}
	if r.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", r.Count())
	}

	// rebinding an id replaces the identity
	r.Bind("c2", Identity{ID: 3, Name: "carol"})
	id, _ = r.Lookup("c2")
	if id.ID != 3 {
		t.Fatalf("rebound identity id = %d, want 3", id.ID)
	}
}
