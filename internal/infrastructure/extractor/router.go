// Package extractor routes text extraction to the extractor registered for a file kind.
package extractor

import (
	"context"
	"fmt"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

type Router struct {
	byKind map[domain.FileKind]ports.TextExtractor
}

func NewRouter() *Router {
	return &Router{byKind: make(map[domain.FileKind]ports.TextExtractor)}
}

// Register binds extractor to kinds, replacing earlier registrations.
func (r *Router) Register(extractor ports.TextExtractor, kinds ...domain.FileKind) *Router {
	for _, kind := range kinds {
		r.byKind[kind] = extractor
	}
	return r
}

func (r *Router) Extract(ctx context.Context, uri string, kind domain.FileKind) (string, error) {
	extractor, ok := r.byKind[kind]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidInput, "extract text", fmt.Errorf("no extractor for %q", kind))
	}
	return extractor.Extract(ctx, uri, kind)
}
