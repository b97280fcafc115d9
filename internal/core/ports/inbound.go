package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
	"github.com/kirillkom/pii-redactor/internal/core/projection"
)

// DocumentProcessor drives one file through the processing pipeline synchronously.
type DocumentProcessor interface {
	Process(ctx context.Context, file domain.SourceFile, observer ProgressObserver) (domain.Document, error)
}

// PipelineRunner starts pipeline runs in the background and exposes their progress.
type PipelineRunner interface {
	Start(ctx context.Context, file domain.SourceFile) (pipeline.Snapshot, error)
	Retry(ctx context.Context, runID string) (pipeline.Snapshot, error)
	Status(ctx context.Context, runID string) (pipeline.Snapshot, error)
}

// Redactor applies a redaction to the selected findings of an analyzed document.
type Redactor interface {
	Apply(ctx context.Context, documentID string, indices []int) (domain.Document, error)
}

// DocumentReader is the owner-scoped read model.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (domain.Document, error)
	List(ctx context.Context, query domain.DocumentQuery, limit int) ([]domain.Document, error)
	Events(ctx context.Context, id string) ([]domain.DocumentEvent, error)
}

// Downloader serves the original bytes or the redacted text of a document.
type Downloader interface {
	Download(ctx context.Context, id string, view domain.DownloadView) (domain.Artifact, io.ReadCloser, error)
}

// DashboardService derives aggregates over the current user's documents.
type DashboardService interface {
	Dashboard(ctx context.Context, criteria projection.Criteria) (projection.Dashboard, error)
}
