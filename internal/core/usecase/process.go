package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/pipeline"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

type ProcessDocumentUseCase struct {
	storage   ports.ObjectStorage
	identity  ports.IdentityProvider
	repo      ports.DocumentRepository
	extractor ports.TextExtractor
	detector  ports.PIIDetector
	events    ports.EventPublisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewProcessDocumentUseCase(
	storage ports.ObjectStorage,
	identity ports.IdentityProvider,
	repo ports.DocumentRepository,
	extractor ports.TextExtractor,
	detector ports.PIIDetector,
	events ports.EventPublisher,
	logger *slog.Logger,
) *ProcessDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessDocumentUseCase{
		storage:   storage,
		identity:  identity,
		repo:      repo,
		extractor: extractor,
		detector:  detector,
		events:    events,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// pipelineRun carries the state of one attempt between phases.
type pipelineRun struct {
	state    pipeline.State
	observer ports.ProgressObserver
	doc      domain.Document
	created  bool
}

func (r *pipelineRun) advance(event pipeline.Event) error {
	next, err := pipeline.Transition(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	if r.observer != nil {
		r.observer.Observe(next)
	}
	return nil
}

// Process drives one file through upload, record creation, extraction, detection and the final
// commit. On failure the returned document is the last committed record (zero if none was
// created) and the run ends in the error phase.
func (uc *ProcessDocumentUseCase) Process(
	ctx context.Context,
	file domain.SourceFile,
	observer ports.ProgressObserver,
) (domain.Document, error) {
	kind, err := file.Kind()
	if err != nil {
		return domain.Document{}, err
	}

	run := &pipelineRun{state: pipeline.Initial(), observer: observer}
	if err := run.advance(pipeline.Event{Kind: pipeline.EventStart}); err != nil {
		return domain.Document{}, err
	}

	if err := uc.runPhases(ctx, run, file, kind); err != nil {
		if advErr := run.advance(pipeline.Event{Kind: pipeline.EventFailed, Err: err}); advErr != nil {
			return run.doc, fmt.Errorf("%w; record failure: %v", err, advErr)
		}
		if run.created {
			uc.publish(ctx, run.doc, domain.EventDocumentFailed, fmt.Sprintf("%s: %v", run.state.FailedPhase, err))
		}
		return run.doc, err
	}
	return run.doc, nil
}

func (uc *ProcessDocumentUseCase) runPhases(ctx context.Context, run *pipelineRun, file domain.SourceFile, kind domain.FileKind) error {
	uri, err := uc.upload(ctx, file)
	if err != nil {
		return err
	}
	if err := run.advance(pipeline.Event{Kind: pipeline.EventUploaded, SourceURI: uri}); err != nil {
		return err
	}

	doc, err := uc.createRecord(ctx, file, kind, uri)
	if err != nil {
		return err
	}
	run.doc, run.created = doc, true
	uc.publish(ctx, doc, domain.EventDocumentCreated, "")
	if err := run.advance(pipeline.Event{Kind: pipeline.EventRecordCreated, DocumentID: doc.ID}); err != nil {
		return err
	}

	doc, err = uc.extractText(ctx, run.doc)
	if err != nil {
		return err
	}
	run.doc = doc
	if err := run.advance(pipeline.Event{Kind: pipeline.EventExtracted}); err != nil {
		return err
	}

	detection, err := uc.detect(ctx, run.doc.ExtractedText())
	if err != nil {
		return err
	}
	if err := run.advance(pipeline.Event{Kind: pipeline.EventDetected}); err != nil {
		return err
	}

	doc, err = uc.finalize(ctx, run.doc, detection)
	if err != nil {
		return err
	}
	run.doc = doc
	uc.publish(ctx, doc, domain.EventDocumentAnalyzed, fmt.Sprintf("%d findings, risk %s", len(doc.Findings), doc.RiskLevel()))
	return run.advance(pipeline.Event{Kind: pipeline.EventFinalized})
}

func (uc *ProcessDocumentUseCase) upload(ctx context.Context, file domain.SourceFile) (string, error) {
	key := fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(file.Name))
	uri, err := uc.storage.Upload(ctx, key, bytes.NewReader(file.Data))
	if err != nil {
		return "", domain.WrapError(domain.ErrTransport, "upload source file", err)
	}
	if strings.TrimSpace(uri) == "" {
		return "", domain.WrapError(domain.ErrTransport, "upload source file", errors.New("storage returned empty uri"))
	}
	return uri, nil
}

func (uc *ProcessDocumentUseCase) createRecord(ctx context.Context, file domain.SourceFile, kind domain.FileKind, uri string) (domain.Document, error) {
	user, err := uc.identity.CurrentUser(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("resolve current user: %w", err)
	}

	now := uc.now()
	doc, err := uc.repo.Create(ctx, domain.Document{
		ID:        uuid.NewString(),
		Name:      file.Name,
		FileKind:  kind,
		MimeType:  file.MimeType,
		SourceURI: uri,
		Owner:     user.Email,
		Status:    domain.StatusProcessing,
		Findings:  []domain.Finding{},
		Metadata:  domain.PendingMetadata{},
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return domain.Document{}, fmt.Errorf("create document record: %w", err)
	}
	return doc, nil
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc domain.Document) (domain.Document, error) {
	text, err := uc.extractor.Extract(ctx, doc.SourceURI, doc.FileKind)
	if err != nil {
		return domain.Document{}, domain.WrapError(domain.ErrCollaborator, "extract text", err)
	}
	withText, err := doc.WithExtractedText(text, uc.now())
	if err != nil {
		return domain.Document{}, err
	}
	saved, err := uc.repo.Update(ctx, withText)
	if err != nil {
		return domain.Document{}, fmt.Errorf("save extracted text: %w", err)
	}
	return saved, nil
}

func (uc *ProcessDocumentUseCase) detect(ctx context.Context, text string) (domain.Detection, error) {
	detection, err := uc.detector.Detect(ctx, text)
	if err != nil {
		return domain.Detection{}, domain.WrapError(domain.ErrCollaborator, "detect pii", err)
	}
	return detection, nil
}

func (uc *ProcessDocumentUseCase) finalize(ctx context.Context, doc domain.Document, detection domain.Detection) (domain.Document, error) {
	analyzed, err := doc.Analyze(detection, uc.now())
	if err != nil {
		return domain.Document{}, err
	}
	saved, err := uc.repo.Update(ctx, analyzed)
	if err != nil {
		return domain.Document{}, fmt.Errorf("save analysis: %w", err)
	}
	return saved, nil
}

func (uc *ProcessDocumentUseCase) publish(ctx context.Context, doc domain.Document, eventType domain.EventType, detail string) {
	publishEvent(ctx, uc.events, uc.logger, doc, eventType, detail, uc.now())
}

// publishEvent is best effort: a failed publish is logged and never fails the operation.
func publishEvent(
	ctx context.Context,
	events ports.EventPublisher,
	logger *slog.Logger,
	doc domain.Document,
	eventType domain.EventType,
	detail string,
	at time.Time,
) {
	if events == nil {
		return
	}
	event := domain.DocumentEvent{
		ID:         uuid.NewString(),
		DocumentID: doc.ID,
		Type:       eventType,
		Status:     doc.Status,
		Owner:      doc.Owner,
		Detail:     detail,
		OccurredAt: at,
	}
	if err := events.PublishDocumentEvent(ctx, event); err != nil {
		logger.Warn("publish document event failed",
			slog.String("document_id", doc.ID),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()),
		)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
