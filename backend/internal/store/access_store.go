package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/collab"
)

// AccessStore answers checkAccess(user, document): owners get the owner
// role, everyone else needs a document_collaborators row.
type AccessStore struct{ db *sql.DB }

func NewAccessStore(db *sql.DB) *AccessStore {
	return &AccessStore{db: db}
}

func (s *AccessStore) CheckAccess(ctx context.Context, userID uint64, docID string) (bool, string, error) {
	var ownerID uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT owner_id FROM documents WHERE id = ?`,
		docID,
	).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", collab.ErrDocNotFound
	}
	if err != nil {
		return false, "", err
	}
	if ownerID == userID {
		return true, "owner", nil
	}

	var role string
	err = s.db.QueryRowContext(ctx,
		`SELECT role FROM document_collaborators WHERE document_id = ? AND user_id = ?`,
		docID,
		userID,
	).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return false, "", nil
	}
	if err != nil {
		return false, "", err
	}
	return true, role, nil
}
