package collab

import (
	"time"

	"github.com/devkurtc/prd-tool-project-sub000/backend/internal/ot/operation"
)

// DocOpEvent is published to Kafka for every accepted operation, keyed by
// docID so one document stays in one partition.
type DocOpEvent struct {
	EventType   string              `json:"eventType"` // fixed "OP_APPLIED"
	DocID       string              `json:"docId"`
	OperationID string              `json:"operationId"`
	Version     uint64              `json:"version"`
	AuthorID    uint64              `json:"authorId"`
	ClientID    string              `json:"clientId,omitempty"`
	ClientSeq   uint64              `json:"clientSeq,omitempty"`
	BaseVersion uint64              `json:"baseVersion"`
	Op          operation.Operation `json:"op"`
	AppliedAt   time.Time           `json:"appliedAt"`
}
