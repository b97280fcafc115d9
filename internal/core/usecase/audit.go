package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

// AuditTrailUseCase persists consumed lifecycle events. Redelivered events are idempotent
// because the store ignores duplicate ids.
type AuditTrailUseCase struct {
	store  ports.EventStore
	logger *slog.Logger
}

func NewAuditTrailUseCase(store ports.EventStore, logger *slog.Logger) *AuditTrailUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditTrailUseCase{store: store, logger: logger}
}

func (uc *AuditTrailUseCase) Record(ctx context.Context, event domain.DocumentEvent) error {
	if event.ID == "" || event.DocumentID == "" || event.Type == "" {
		return domain.WrapError(domain.ErrInvalidInput, "record event", errors.New("event id, document id and type are required"))
	}
	if err := uc.store.AppendEvent(ctx, event); err != nil {
		return domain.WrapError(domain.ErrTemporary, "record event", err)
	}
	uc.logger.Debug("lifecycle event recorded",
		"event_id", event.ID,
		"document_id", event.DocumentID,
		"type", event.Type,
	)
	return nil
}
