package usecase

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/core/ports"
)

type DownloadUseCase struct {
	repo     ports.DocumentRepository
	identity ports.IdentityProvider
	storage  ports.ObjectStorage
}

func NewDownloadUseCase(
	repo ports.DocumentRepository,
	identity ports.IdentityProvider,
	storage ports.ObjectStorage,
) *DownloadUseCase {
	return &DownloadUseCase{repo: repo, identity: identity, storage: storage}
}

// Download opens the original upload, or the redacted text once the document has been redacted.
// The caller closes the returned reader.
func (uc *DownloadUseCase) Download(ctx context.Context, id string, view domain.DownloadView) (domain.Artifact, io.ReadCloser, error) {
	doc, err := loadOwnedDocument(ctx, uc.identity, uc.repo, id)
	if err != nil {
		return domain.Artifact{}, nil, err
	}

	switch view {
	case domain.ViewRedacted:
		text, ok := doc.RedactedText()
		if !ok {
			return domain.Artifact{}, nil, domain.WrapError(
				domain.ErrInvalidTransition,
				"download redacted view",
				fmt.Errorf("document %s is %q", doc.ID, doc.Status),
			)
		}
		artifact := domain.Artifact{
			Filename:    domain.RedactedFilename(doc.Name),
			ContentType: "text/plain; charset=utf-8",
		}
		return artifact, io.NopCloser(strings.NewReader(text)), nil

	default:
		body, err := uc.storage.Open(ctx, doc.SourceURI)
		if err != nil {
			return domain.Artifact{}, nil, domain.WrapError(domain.ErrTransport, "open original", err)
		}
		contentType := doc.MimeType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		return domain.Artifact{Filename: doc.Name, ContentType: contentType}, body, nil
	}
}
