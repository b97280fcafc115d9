package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

type RedactDocumentUseCase struct {
	repo     ports.DocumentRepository
	identity ports.IdentityProvider
	rewriter ports.TextRewriter
	events   ports.EventPublisher
	logger   *slog.Logger
	now      func() time.Time
}

func NewRedactDocumentUseCase(
	repo ports.DocumentRepository,
	identity ports.IdentityProvider,
	rewriter ports.TextRewriter,
	events ports.EventPublisher,
	logger *slog.Logger,
) *RedactDocumentUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedactDocumentUseCase{
		repo:     repo,
		identity: identity,
		rewriter: rewriter,
		events:   events,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Apply rewrites the extracted text with the selected findings replaced by placeholders and
// commits the result in a single update. Nothing is written when the rewrite fails.
func (uc *RedactDocumentUseCase) Apply(ctx context.Context, documentID string, indices []int) (domain.Document, error) {
	doc, err := loadOwnedDocument(ctx, uc.identity, uc.repo, documentID)
	if err != nil {
		return domain.Document{}, err
	}

	selector, err := uc.selectFindings(doc, indices)
	if err != nil {
		return domain.Document{}, err
	}
	selector.Lock()
	defer selector.Unlock()

	selection := selector.Selection()
	rewrite, err := uc.rewrite(ctx, doc, selection)
	if err != nil {
		return domain.Document{}, err
	}

	redacted, err := doc.Redact(selection, rewrite, uc.now())
	if err != nil {
		return domain.Document{}, err
	}
	saved, err := uc.repo.Update(ctx, redacted)
	if err != nil {
		return domain.Document{}, fmt.Errorf("save redaction: %w", err)
	}

	publishEvent(ctx, uc.events, uc.logger, saved, domain.EventDocumentRedacted,
		fmt.Sprintf("%d of %d findings redacted", len(selection), len(saved.Findings)), uc.now())
	return saved, nil
}

func (uc *RedactDocumentUseCase) selectFindings(doc domain.Document, indices []int) (*Selector, error) {
	selector, err := NewSelector(doc)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if _, dup := seen[idx]; dup {
			continue
		}
		seen[idx] = struct{}{}
		if err := selector.Toggle(idx); err != nil {
			return nil, err
		}
	}
	if selector.Len() == 0 {
		return nil, domain.WrapError(domain.ErrInvalidSelection, "apply redaction", errors.New("no findings selected"))
	}
	return selector, nil
}

func (uc *RedactDocumentUseCase) rewrite(ctx context.Context, doc domain.Document, selection []int) (domain.Rewrite, error) {
	rewrite, err := uc.rewriter.Rewrite(ctx, doc.ExtractedText(), doc.Targets(selection))
	if err != nil {
		return domain.Rewrite{}, domain.WrapError(domain.ErrCollaborator, "rewrite text", err)
	}
	if strings.TrimSpace(rewrite.RedactedText) == "" {
		return domain.Rewrite{}, domain.WrapError(domain.ErrCollaborator, "rewrite text", errors.New("empty redacted text"))
	}
	return rewrite, nil
}

// loadOwnedDocument hides records owned by someone else behind ErrDocumentNotFound.
func loadOwnedDocument(
	ctx context.Context,
	identity ports.IdentityProvider,
	repo ports.DocumentRepository,
	documentID string,
) (domain.Document, error) {
	user, err := identity.CurrentUser(ctx)
	if err != nil {
		return domain.Document{}, fmt.Errorf("resolve current user: %w", err)
	}
	doc, err := repo.GetByID(ctx, documentID)
	if err != nil {
		return domain.Document{}, fmt.Errorf("fetch document by id: %w", err)
	}
	if doc.Owner != user.Email {
		return domain.Document{}, domain.WrapError(domain.ErrDocumentNotFound, "fetch document by id", errors.New(documentID))
	}
	return doc, nil
}
