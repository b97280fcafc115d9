package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func analyzedDoc(t *testing.T) Document {
	t.Helper()
	doc := Document{
		ID:       "doc-1",
		Name:     "contract.pdf",
		Status:   StatusProcessing,
		Metadata: PendingMetadata{},
	}
	withText, err := doc.WithExtractedText("John Smith, john@x.com", time.Now())
	if err != nil {
		t.Fatalf("WithExtractedText() error = %v", err)
	}
	analyzed, err := withText.Analyze(Detection{
		Findings: []Finding{
			{Kind: KindName, Value: "John Smith", Confidence: 0.97},
			{Kind: KindEmail, Value: "john@x.com", Confidence: 1.4},
		},
		RiskLevel: RiskMedium,
		Summary:   "one name, one email",
	}, time.Now())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	return analyzed
}

func TestStatusCanAdvanceOnlyForward(t *testing.T) {
	order := []DocumentStatus{StatusUploaded, StatusProcessing, StatusAnalyzed, StatusRedacted, StatusExported}
	for i, from := range order {
		for j, to := range order {
			want := j > i || (i == j && from == StatusProcessing)
			if got := from.CanAdvanceTo(to); got != want {
				t.Fatalf("%s -> %s: got %v, want %v", from, to, got, want)
			}
		}
	}
	if StatusAnalyzed.CanAdvanceTo("failed") {
		t.Fatalf("unknown status must not be reachable")
	}
}

func TestAnalyzeSetsFindingsAndRisk(t *testing.T) {
	doc := analyzedDoc(t)

	if doc.Status != StatusAnalyzed {
		t.Fatalf("expected analyzed, got %s", doc.Status)
	}
	if len(doc.Findings) != 2 {
		t.Fatalf("expected 2 findings, got %d", len(doc.Findings))
	}
	if doc.Findings[1].Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", doc.Findings[1].Confidence)
	}
	if doc.RiskLevel() != RiskMedium {
		t.Fatalf("expected medium risk, got %s", doc.RiskLevel())
	}
	if doc.ExtractedText() != "John Smith, john@x.com" {
		t.Fatalf("extracted text not carried into analyzed metadata: %q", doc.ExtractedText())
	}
	if _, ok := doc.RedactedText(); ok {
		t.Fatalf("redacted text must be absent before redaction")
	}
}

func TestAnalyzeRejectedOutsideProcessing(t *testing.T) {
	doc := analyzedDoc(t)
	if _, err := doc.Analyze(Detection{}, time.Now()); !IsKind(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRedactFlagsSelectedAndKeepsOriginalUntouched(t *testing.T) {
	doc := analyzedDoc(t)

	redacted, err := doc.Redact([]int{0}, Rewrite{RedactedText: "[REDACTED-NAME], john@x.com", RedactionSummary: "1 item"}, time.Now())
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}
	if redacted.Status != StatusRedacted {
		t.Fatalf("expected redacted status, got %s", redacted.Status)
	}
	if !redacted.Findings[0].Redacted || redacted.Findings[1].Redacted {
		t.Fatalf("unexpected flags: %+v", redacted.Findings)
	}
	if doc.Findings[0].Redacted {
		t.Fatalf("source document must not be mutated")
	}
	text, ok := redacted.RedactedText()
	if !ok || text != "[REDACTED-NAME], john@x.com" {
		t.Fatalf("unexpected redacted text %q (present=%v)", text, ok)
	}
	meta := redacted.Metadata.(RedactedMetadata)
	if len(meta.RedactedItems) != 1 || meta.RedactedItems[0].Value != "John Smith" {
		t.Fatalf("unexpected redacted items: %+v", meta.RedactedItems)
	}
	if redacted.RiskLevel() != RiskMedium {
		t.Fatalf("risk level lost after redaction")
	}
}

func TestRedactValidatesSelection(t *testing.T) {
	doc := analyzedDoc(t)
	if _, err := doc.Redact(nil, Rewrite{}, time.Now()); !IsKind(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection for empty selection, got %v", err)
	}
	if _, err := doc.Redact([]int{2}, Rewrite{}, time.Now()); !IsKind(err, ErrInvalidSelection) {
		t.Fatalf("expected ErrInvalidSelection for out of range index, got %v", err)
	}
}

func TestTargetsPreserveDetectionOrder(t *testing.T) {
	doc := analyzedDoc(t)
	targets := doc.Targets([]int{1, 0})
	if len(targets) != 2 || targets[0].Kind != KindName || targets[1].Kind != KindEmail {
		t.Fatalf("unexpected targets: %+v", targets)
	}
}

func TestDocumentJSONRoundTripKeepsMetadataVariant(t *testing.T) {
	doc := analyzedDoc(t)
	redacted, err := doc.Redact([]int{1}, Rewrite{RedactedText: "John Smith, [REDACTED-EMAIL]"}, time.Now().UTC())
	if err != nil {
		t.Fatalf("Redact() error = %v", err)
	}

	raw, err := json.Marshal(redacted)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	var decoded Document
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if _, ok := decoded.Metadata.(RedactedMetadata); !ok {
		t.Fatalf("expected redacted metadata variant, got %T", decoded.Metadata)
	}
	if err := decoded.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejectsMismatchedStage(t *testing.T) {
	doc := Document{Status: StatusRedacted, Metadata: AnalyzedMetadata{}}
	if err := doc.Validate(); !IsKind(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestFileKindFromMime(t *testing.T) {
	cases := []struct {
		mime, name string
		want       FileKind
		ok         bool
	}{
		{"application/pdf", "a.bin", FileKindPDF, true},
		{"image/jpeg", "scan", FileKindJPEG, true},
		{"", "scan.TIFF", FileKindTIFF, true},
		{"application/octet-stream", "photo.jpg", FileKindJPEG, true},
		{"application/zip", "bundle.zip", "", false},
	}
	for _, tc := range cases {
		got, ok := FileKindFromMime(tc.mime, tc.name)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("FileKindFromMime(%q,%q) = %q,%v; want %q,%v", tc.mime, tc.name, got, ok, tc.want, tc.ok)
		}
	}
}

func TestPlaceholderAndRedactedFilename(t *testing.T) {
	if got := KindCreditCard.Placeholder(); got != "[REDACTED-CREDIT-CARD]" {
		t.Fatalf("unexpected placeholder %q", got)
	}
	if got := KindOther.Placeholder(); got != "[REDACTED]" {
		t.Fatalf("unexpected placeholder %q", got)
	}
	if got := RedactedFilename("q3 report.pdf"); got != "q3 report_REDACTED.txt" {
		t.Fatalf("unexpected filename %q", got)
	}
}
