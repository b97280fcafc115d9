package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

// EventRepository stores the document lifecycle audit trail. The table is created by
// DocumentRepository.EnsureSchema.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// AppendEvent is idempotent on the event id so that redelivered messages are stored once.
func (r *EventRepository) AppendEvent(ctx context.Context, event domain.DocumentEvent) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO document_events (id, document_id, type, status, owner, detail, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`, event.ID, event.DocumentID, string(event.Type), string(event.Status), event.Owner, event.Detail, event.OccurredAt)
	if err != nil {
		return fmt.Errorf("append document event: %w", err)
	}
	return nil
}

func (r *EventRepository) ListEvents(ctx context.Context, documentID string) ([]domain.DocumentEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_id, type, status, owner, detail, occurred_at
FROM document_events
WHERE document_id = $1
ORDER BY occurred_at ASC
`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list document events: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentEvent, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate document events: %w", err)
	}
	return out, nil
}

func scanEvent(row rowScanner) (domain.DocumentEvent, error) {
	var event domain.DocumentEvent
	var eventType, status string
	err := row.Scan(
		&event.ID,
		&event.DocumentID,
		&eventType,
		&status,
		&event.Owner,
		&event.Detail,
		&event.OccurredAt,
	)
	if err != nil {
		return domain.DocumentEvent{}, fmt.Errorf("scan document event: %w", err)
	}
	event.Type = domain.EventType(eventType)
	event.Status = domain.DocumentStatus(status)
	return event, nil
}
