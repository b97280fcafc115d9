package ollama

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/extractor"
)

// VisionExtractor transcribes text from scanned images with a multimodal model.
type VisionExtractor struct {
	client   *Client
	storage  ports.ObjectStorage
	maxBytes int64
}

func NewVisionExtractor(client *Client, storage ports.ObjectStorage) *VisionExtractor {
	return &VisionExtractor{client: client, storage: storage, maxBytes: extractor.DefaultMaxSourceBytes}
}

// WithMaxBytes sets the largest image sent to the model.
func (v *VisionExtractor) WithMaxBytes(n int64) *VisionExtractor {
	if n > 0 {
		v.maxBytes = n
	}
	return v
}

func (v *VisionExtractor) Extract(ctx context.Context, uri string, kind domain.FileKind) (string, error) {
	if !kind.IsImage() {
		return "", domain.WrapError(domain.ErrInvalidInput, "vision extract", fmt.Errorf("%q is not an image", kind))
	}
	reader, err := v.storage.Open(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("open source image: %w", err)
	}
	defer reader.Close()

	raw, err := extractor.ReadLimited(reader, v.maxBytes)
	if err != nil {
		return "", fmt.Errorf("read source image: %w", err)
	}
	return v.client.generateFromImage(ctx, "ocr", visionPrompt, base64.StdEncoding.EncodeToString(raw))
}
