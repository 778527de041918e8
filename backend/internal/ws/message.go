package ws

import (
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/room"
)

// ClientMessage is the single inbound envelope; Type selects which fields
// are meaningful.
type ClientMessage struct {
	Type        string               `json:"type"`
	DocID       string               `json:"docId"`
	Position    *room.CursorPos      `json:"position,omitempty"`
	ClientID    string               `json:"clientId,omitempty"`
	ClientSeq   uint64               `json:"clientSeq,omitempty"`
	Op          *operation.Operation `json:"op,omitempty"`
	FromVersion uint64               `json:"fromVersion,omitempty"`
}

// WelcomeMessage hands the client its session id; clients reuse it as their
// clientId for submission dedupe.
type WelcomeMessage struct {
	Type      string `json:"type"` // fixed "welcome"
	SessionID string `json:"sessionId"`
}

// OpAppliedMessage is broadcast to every other room member after an
// operation was accepted; receivers apply Op and align to NewVersion.
type OpAppliedMessage struct {
	Type       string              `json:"type"` // fixed "operation-applied"
	DocID      string              `json:"docId"`
	Op         operation.Operation `json:"op"`
	NewVersion uint64              `json:"newVersion"`
	AuthorID   uint64              `json:"authorId"`
	AuthorName string              `json:"authorName"`
}

// OpAckMessage goes to the originator only.
type OpAckMessage struct {
	Type       string `json:"type"` // fixed "operation-acknowledged"
	DocID      string `json:"docId"`
	NewVersion uint64 `json:"newVersion"`
	ClientSeq  uint64 `json:"clientSeq,omitempty"`
}

// VersionConflictMessage tells the originator its base version lost the
// race; CurrentContent/CurrentVersion are the state to resync from.
type VersionConflictMessage struct {
	Type            string `json:"type"` // fixed "version-conflict"
	DocID           string `json:"docId"`
	ExpectedVersion uint64 `json:"expectedVersion"`
	CurrentVersion  uint64 `json:"currentVersion"`
	CurrentContent  string `json:"currentContent"`
}

// CatchUpOp is one replayed operation inside a catch-up response.
type CatchUpOp struct {
	Op         operation.Operation `json:"op"`
	NewVersion uint64              `json:"newVersion"`
	AuthorID   uint64              `json:"authorId"`
}

// CatchUpMessage answers a catch-up request with the operations accepted
// after the client's version. When the recent-operations ring no longer
// covers the gap the server sends a fresh document-state instead.
type CatchUpMessage struct {
	Type  string      `json:"type"` // fixed "catch-up"
	DocID string      `json:"docId"`
	Ops   []CatchUpOp `json:"ops"`
}

type ErrorMessage struct {
	Type    string `json:"type"` // fixed "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}
