package domain

import "time"

type EventType string

const (
	EventDocumentCreated  EventType = "document.created"
	EventDocumentAnalyzed EventType = "document.analyzed"
	EventDocumentFailed   EventType = "document.failed"
	EventDocumentRedacted EventType = "document.redacted"
)

// DocumentEvent is one entry of a document's lifecycle audit trail.
type DocumentEvent struct {
	ID         string         `json:"id"`
	DocumentID string         `json:"document_id"`
	Type       EventType      `json:"type"`
	Status     DocumentStatus `json:"status"`
	Owner      string         `json:"owner"`
	Detail     string         `json:"detail,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}
