package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

// Document text is sent in chunks of at most promptChunkBytes. Detection chunks overlap so that
// a value cut by one boundary is seen whole by the neighbouring chunk.
const (
	promptChunkBytes      = 12000
	detectionOverlapBytes = 256
)

func buildDetectionPrompt(text string) string {
	return `You detect personally identifiable information (PII) and sensitive data in documents.
Return strict JSON object with keys:
detected_pii (array of objects with keys type, value, confidence, location),
risk_level (one of "low", "medium", "high"),
summary (string).
type is one of: name, email, phone, ssn, address, date_of_birth, credit_card, medical_id, license_number, other.
value is the exact text found. confidence is a number from 0 to 1. location describes where in the document it appears.
Flag potential PII rather than miss it. Return an empty detected_pii array when nothing is found.
No markdown, no extra keys.

Document:
` + text
}

func buildRewritePrompt(text string, targets []domain.RedactionTarget) string {
	var items strings.Builder
	for _, t := range targets {
		items.WriteString(fmt.Sprintf("- %s: %q -> %s\n", t.Kind, t.Value, t.Kind.Placeholder()))
	}

	return fmt.Sprintf(`Create a redacted version of the document text.
Replace every occurrence of each item below with its placeholder. Keep all other text exactly the same, byte for byte.
Return strict JSON object with keys: redacted_text (string), redaction_summary (string).
No markdown, no extra keys.

Items to redact:
%s
Original text:
%s
`, items.String(), text)
}

const visionPrompt = `Transcribe all text visible in this image exactly as written.
Preserve line breaks. Do not add commentary. If there is no text, return an empty response.`
