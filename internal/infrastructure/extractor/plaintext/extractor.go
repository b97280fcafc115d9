package plaintext

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/extractor"
)

type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage, maxBytes: extractor.DefaultMaxSourceBytes}
}

// WithMaxBytes sets the largest source the extractor accepts.
func (e *Extractor) WithMaxBytes(n int64) *Extractor {
	if n > 0 {
		e.maxBytes = n
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, uri string, kind domain.FileKind) (string, error) {
	reader, err := e.storage.Open(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := extractor.ReadLimited(reader, e.maxBytes)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}

	if !utf8.Valid(raw) {
		return "", fmt.Errorf("%s source is not valid utf-8 text", kind)
	}
	return strings.TrimSpace(string(raw)), nil
}
