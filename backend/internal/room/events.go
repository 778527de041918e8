package room

import (
	"time"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/auth"
)

// CursorPos is a user's caret location, last-write-wins per user.
type CursorPos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// RosterMember is one entry of a roster snapshot.
type RosterMember struct {
	User     auth.Identity `json:"user"`
	Role     string        `json:"role,omitempty"`
	Cursor   *CursorPos    `json:"cursor,omitempty"`
	IsTyping bool          `json:"isTyping,omitempty"`
}

// DocumentMeta rides along with document-state so the joiner can render a
// title without a second fetch.
type DocumentMeta struct {
	Title   string `json:"title,omitempty"`
	OwnerID uint64 `json:"ownerId,omitempty"`
}

type DocumentStateEvent struct {
	Type     string       `json:"type"` // "document-state"
	DocID    string       `json:"docId"`
	Content  string       `json:"content"`
	Version  uint64       `json:"version"`
	Metadata DocumentMeta `json:"metadata"`
}

type RosterEvent struct {
	Type    string         `json:"type"` // "roster"
	DocID   string         `json:"docId"`
	Members []RosterMember `json:"members"`
}

type UserJoinedEvent struct {
	Type   string         `json:"type"` // "user-joined"
	DocID  string         `json:"docId"`
	User   auth.Identity  `json:"user"`
	Roster []RosterMember `json:"roster"`
}

type UserLeftEvent struct {
	Type   string         `json:"type"` // "user-left"
	DocID  string         `json:"docId"`
	User   auth.Identity  `json:"user"`
	Roster []RosterMember `json:"roster"`
}

type CursorUpdateEvent struct {
	Type     string        `json:"type"` // "cursor-update"
	DocID    string        `json:"docId"`
	User     auth.Identity `json:"user"`
	Position CursorPos     `json:"position"`
}

type TypingEvent struct {
	Type     string `json:"type"` // "typing-start" / "typing-stop"
	DocID    string `json:"docId"`
	UserID   uint64 `json:"userId"`
	UserName string `json:"userName"`
}

type DocumentSavedEvent struct {
	Type      string        `json:"type"` // "document-saved"
	DocID     string        `json:"docId"`
	User      auth.Identity `json:"user"`
	Version   uint64        `json:"version"`
	Timestamp time.Time     `json:"timestamp"`
}

type ErrorEvent struct {
	Type    string `json:"type"` // "error"
	Code    string `json:"code"`
	Message string `json:"message"`
}
