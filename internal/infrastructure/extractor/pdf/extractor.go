package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/extractor"
)

// Extractor reads the text layer of a PDF. Scanned PDFs without a text layer yield empty text.
type Extractor struct {
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage, maxBytes: extractor.DefaultMaxSourceBytes}
}

func (e *Extractor) WithMaxBytes(n int64) *Extractor {
	if n > 0 {
		e.maxBytes = n
	}
	return e
}

func (e *Extractor) Extract(ctx context.Context, uri string, _ domain.FileKind) (string, error) {
	reader, err := e.storage.Open(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := extractor.ReadLimited(reader, e.maxBytes)
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	return plainText(raw)
}

func plainText(raw []byte) (text string, err error) {
	// The parser panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	body, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf strings.Builder
	if _, err := io.Copy(&buf, body); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
