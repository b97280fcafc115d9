package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

type storageFake struct{ data []byte }

func (f storageFake) Upload(context.Context, string, io.Reader) (string, error) { return "", nil }

func (f storageFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func TestPlainTextRejectsGarbage(t *testing.T) {
	if _, err := plainText([]byte("definitely not a pdf")); err == nil {
		t.Fatalf("expected error for non-pdf input")
	}
}

func TestExtractRejectsPDFOverLimit(t *testing.T) {
	e := NewExtractor(storageFake{data: bytes.Repeat([]byte("%PDF"), 64)}).WithMaxBytes(128)
	if _, err := e.Extract(context.Background(), "file:///a.pdf", domain.FileKindPDF); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for oversize pdf, got %v", err)
	}
}
