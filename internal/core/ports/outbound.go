package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
)

// DocumentRepository persists and reads document records.
type DocumentRepository interface {
	Create(ctx context.Context, doc domain.Document) (domain.Document, error)
	// Update replaces the mutable part of a record (status, findings, metadata) in one write.
	Update(ctx context.Context, doc domain.Document) (domain.Document, error)
	GetByID(ctx context.Context, id string) (domain.Document, error)
	Filter(ctx context.Context, query domain.DocumentQuery, sort string, limit int) ([]domain.Document, error)
}

// ObjectStorage stores original uploaded bytes.
type ObjectStorage interface {
	Upload(ctx context.Context, key string, data io.Reader) (string, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// IdentityProvider resolves the user behind the current request.
type IdentityProvider interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

// TextExtractor turns a stored file into plain text. Empty text is a valid result.
type TextExtractor interface {
	Extract(ctx context.Context, uri string, kind domain.FileKind) (string, error)
}

// PIIDetector finds personally identifiable information in text.
type PIIDetector interface {
	Detect(ctx context.Context, text string) (domain.Detection, error)
}

// TextRewriter produces a redacted copy of text with every target replaced by a placeholder.
type TextRewriter interface {
	Rewrite(ctx context.Context, text string, targets []domain.RedactionTarget) (domain.Rewrite, error)
}

// EventPublisher publishes/consumes document lifecycle events.
type EventPublisher interface {
	PublishDocumentEvent(ctx context.Context, event domain.DocumentEvent) error
	SubscribeDocumentEvents(ctx context.Context, handler func(context.Context, domain.DocumentEvent) error) error
}

// EventStore keeps the audit trail of lifecycle events.
type EventStore interface {
	AppendEvent(ctx context.Context, event domain.DocumentEvent) error
	ListEvents(ctx context.Context, documentID string) ([]domain.DocumentEvent, error)
}

// ProgressObserver receives every state the pipeline enters.
type ProgressObserver interface {
	Observe(state pipeline.State)
}

// RunStore keeps in-flight and finished pipeline runs for polling and retry.
type RunStore interface {
	Save(run *pipeline.Run)
	Get(id string) (*pipeline.Run, bool)
}
