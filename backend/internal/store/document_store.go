package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/collab"

	"github.com/go-sql-driver/mysql"
)

// DocumentStore is the persistence gateway: canonical content lives in
// documents, every explicit save also appends a document_versions row.
type DocumentStore struct{ db *sql.DB }

func NewDocumentStore(db *sql.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

func (s *DocumentStore) Load(ctx context.Context, docID string) (string, uint64, error) {
	var content string
	var version uint64
	err := s.db.QueryRowContext(ctx,
		`SELECT content, version FROM documents WHERE id = ?`,
		docID,
	).Scan(&content, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, collab.ErrDocNotFound
	}
	if err != nil {
		return "", 0, err
	}
	return content, version, nil
}

func (s *DocumentStore) Save(ctx context.Context, docID string, content string, version uint64, authorID uint64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE documents SET content = ?, version = ?, updated_at = NOW() WHERE id = ?`,
		content,
		version,
		docID,
	)
	return err
}

func (s *DocumentStore) RecordVersion(ctx context.Context, docID string, version uint64, content string, authorID uint64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO document_versions (document_id, version, content, author_id)
		VALUES (?, ?, ?, ?)`,
		docID,
		version,
		content,
		authorID,
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			// same version recorded twice, e.g. save pressed twice; not a fault
			return nil
		}
		return err
	}
	return nil
}

func (s *DocumentStore) Metadata(ctx context.Context, docID string) (title string, ownerID uint64, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT title, owner_id FROM documents WHERE id = ?`,
		docID,
	).Scan(&title, &ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, collab.ErrDocNotFound
	}
	return title, ownerID, err
}
