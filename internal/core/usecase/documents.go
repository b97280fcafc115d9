package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
	"github.com/kirillkom/pii-redactor/internal/core/projection"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// DocumentQueryUseCase serves the owner-scoped read side: single records, listings, the
// lifecycle audit trail and the dashboard.
type DocumentQueryUseCase struct {
	repo        ports.DocumentRepository
	identity    ports.IdentityProvider
	events      ports.EventStore
	recentLimit int
}

func NewDocumentQueryUseCase(
	repo ports.DocumentRepository,
	identity ports.IdentityProvider,
	events ports.EventStore,
	recentLimit int,
) *DocumentQueryUseCase {
	if recentLimit <= 0 {
		recentLimit = defaultListLimit
	}
	return &DocumentQueryUseCase{
		repo:        repo,
		identity:    identity,
		events:      events,
		recentLimit: recentLimit,
	}
}

func (uc *DocumentQueryUseCase) GetByID(ctx context.Context, id string) (domain.Document, error) {
	return loadOwnedDocument(ctx, uc.identity, uc.repo, id)
}

// List returns the current user's documents newest first. The owner in query is always replaced
// by the current user.
func (uc *DocumentQueryUseCase) List(ctx context.Context, query domain.DocumentQuery, limit int) ([]domain.Document, error) {
	user, err := uc.identity.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve current user: %w", err)
	}
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	query.Owner = user.Email

	docs, err := uc.repo.Filter(ctx, query, domain.SortCreatedDesc, limit)
	if err != nil {
		return nil, fmt.Errorf("filter documents: %w", err)
	}
	return docs, nil
}

func (uc *DocumentQueryUseCase) Events(ctx context.Context, id string) ([]domain.DocumentEvent, error) {
	if _, err := loadOwnedDocument(ctx, uc.identity, uc.repo, id); err != nil {
		return nil, err
	}
	events, err := uc.events.ListEvents(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list document events: %w", err)
	}
	return events, nil
}

// Dashboard derives aggregates over the current user's most recent documents. Criteria narrow
// that window in memory, so tiles and the recent list always describe the same documents.
func (uc *DocumentQueryUseCase) Dashboard(ctx context.Context, criteria projection.Criteria) (projection.Dashboard, error) {
	docs, err := uc.List(ctx, domain.DocumentQuery{}, uc.recentLimit)
	if err != nil {
		return projection.Dashboard{}, err
	}
	if !criteria.Empty() {
		docs = projection.Filter(docs, criteria)
	}
	return projection.Build(docs, uc.recentLimit), nil
}
