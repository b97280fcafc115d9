package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/chunking"
)

const chunkSpace = " \t\r\n"

type Rewriter struct {
	client *Client
}

func NewRewriter(client *Client) *Rewriter {
	return &Rewriter{client: client}
}

// Rewrite redacts text chunk by chunk and joins the rewritten chunks in order. Chunks never cut a
// target value, so every occurrence is seen whole by exactly one model call.
func (r *Rewriter) Rewrite(ctx context.Context, text string, targets []domain.RedactionTarget) (domain.Rewrite, error) {
	keep := make([]string, 0, len(targets))
	for _, t := range targets {
		keep = append(keep, t.Value)
	}
	chunks := chunking.NewSplitter(promptChunkBytes, 0, keep...).Split(text)
	if len(chunks) <= 1 {
		return r.rewriteChunk(ctx, text, targets)
	}

	var (
		out       strings.Builder
		summaries []string
	)
	out.Grow(len(text))
	for _, chunk := range chunks {
		start := len(chunk) - len(strings.TrimLeft(chunk, chunkSpace))
		end := len(strings.TrimRight(chunk, chunkSpace))
		if start >= end {
			out.WriteString(chunk)
			continue
		}
		part, err := r.rewriteChunk(ctx, chunk[start:end], targets)
		if err != nil {
			return domain.Rewrite{}, err
		}
		redacted := strings.Trim(part.RedactedText, chunkSpace)
		if redacted == "" {
			return domain.Rewrite{}, malformed("rewrite", errors.New("empty redacted text for a non-empty chunk"))
		}
		// Models drop surrounding whitespace; the chunk's own line breaks are restored here.
		out.WriteString(chunk[:start])
		out.WriteString(redacted)
		out.WriteString(chunk[end:])
		if s := strings.TrimSpace(part.RedactionSummary); s != "" {
			summaries = append(summaries, s)
		}
	}
	return domain.Rewrite{
		RedactedText:     out.String(),
		RedactionSummary: strings.Join(summaries, "\n"),
	}, nil
}

func (r *Rewriter) rewriteChunk(ctx context.Context, chunk string, targets []domain.RedactionTarget) (domain.Rewrite, error) {
	respText, err := r.client.generateJSON(ctx, "rewrite", buildRewritePrompt(chunk, targets))
	if err != nil {
		return domain.Rewrite{}, err
	}

	var result domain.Rewrite
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.Rewrite{}, malformed("rewrite", err)
	}
	return result, nil
}
