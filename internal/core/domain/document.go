package domain

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusAnalyzed   DocumentStatus = "analyzed"
	StatusRedacted   DocumentStatus = "redacted"
	StatusExported   DocumentStatus = "exported"
)

var statusRank = map[DocumentStatus]int{
	StatusUploaded:   0,
	StatusProcessing: 1,
	StatusAnalyzed:   2,
	StatusRedacted:   3,
	StatusExported:   4,
}

func (s DocumentStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank orders statuses along the lifecycle. Unknown statuses rank -1.
func (s DocumentStatus) Rank() int {
	rank, ok := statusRank[s]
	if !ok {
		return -1
	}
	return rank
}

// CanAdvanceTo reports whether a record stored in status s may be overwritten by one in status
// next. Only processing records are rewritten in place (to record extracted text); any other
// write must move forward, so a second analysis or redaction of the same record is rejected.
func (s DocumentStatus) CanAdvanceTo(next DocumentStatus) bool {
	if !s.Valid() || !next.Valid() {
		return false
	}
	if s == next {
		return s == StatusProcessing
	}
	return next.Rank() > s.Rank()
}

type FileKind string

const (
	FileKindPDF  FileKind = "pdf"
	FileKindPNG  FileKind = "png"
	FileKindJPEG FileKind = "jpeg"
	FileKindTIFF FileKind = "tiff"
	FileKindText FileKind = "text"
)

func (k FileKind) IsImage() bool {
	return k == FileKindPNG || k == FileKindJPEG || k == FileKindTIFF
}

// FileKindFromMime resolves the file kind from the declared content type, falling back to the
// file extension. ok is false for formats the service does not accept.
func FileKindFromMime(mimeType, filename string) (FileKind, bool) {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if idx := strings.Index(mt, ";"); idx >= 0 {
		mt = strings.TrimSpace(mt[:idx])
	}
	switch {
	case strings.Contains(mt, "pdf"):
		return FileKindPDF, true
	case mt == "image/png":
		return FileKindPNG, true
	case mt == "image/jpeg", mt == "image/jpg":
		return FileKindJPEG, true
	case mt == "image/tiff":
		return FileKindTIFF, true
	case mt == "text/plain":
		return FileKindText, true
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return FileKindPDF, true
	case ".png":
		return FileKindPNG, true
	case ".jpg", ".jpeg":
		return FileKindJPEG, true
	case ".tif", ".tiff":
		return FileKindTIFF, true
	case ".txt":
		return FileKindText, true
	}
	return "", false
}

type User struct {
	Email string `json:"email"`
}

// SourceFile is an uploaded file held in memory for the lifetime of a pipeline run,
// so that a failed run can be retried from the first phase.
type SourceFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// Kind validates the file and resolves its kind.
func (f SourceFile) Kind() (FileKind, error) {
	if strings.TrimSpace(f.Name) == "" {
		return "", WrapError(ErrInvalidInput, "validate source file", fmt.Errorf("file name is required"))
	}
	if len(f.Data) == 0 {
		return "", WrapError(ErrInvalidInput, "validate source file", fmt.Errorf("file %q is empty", f.Name))
	}
	kind, ok := FileKindFromMime(f.MimeType, f.Name)
	if !ok {
		return "", WrapError(ErrInvalidInput, "validate source file", fmt.Errorf("unsupported file type %q", f.MimeType))
	}
	return kind, nil
}

type Document struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	FileKind  FileKind       `json:"file_kind"`
	MimeType  string         `json:"mime_type"`
	SourceURI string         `json:"source_uri"`
	Owner     string         `json:"owner"`
	Status    DocumentStatus `json:"status"`
	Findings  []Finding      `json:"findings"`
	Metadata  Metadata       `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Clone returns a deep copy; transitions build on clones so callers never share mutable state.
func (d Document) Clone() Document {
	out := d
	out.Findings = slices.Clone(d.Findings)
	if d.Metadata != nil {
		out.Metadata = d.Metadata.clone()
	}
	return out
}

func (d Document) ExtractedText() string {
	if d.Metadata == nil {
		return ""
	}
	return d.Metadata.extractedText()
}

// RiskLevel is the detector-reported risk of this document, empty before analysis.
func (d Document) RiskLevel() RiskLevel {
	switch m := d.Metadata.(type) {
	case AnalyzedMetadata:
		return m.RiskLevel
	case RedactedMetadata:
		return m.RiskLevel
	default:
		return ""
	}
}

func (d Document) RedactedText() (string, bool) {
	m, ok := d.Metadata.(RedactedMetadata)
	if !ok {
		return "", false
	}
	return m.RedactedText, true
}

func (d Document) HasFindings() bool {
	return len(d.Findings) > 0
}

// WithExtractedText records the extraction result while the document is still processing.
func (d Document) WithExtractedText(text string, at time.Time) (Document, error) {
	if d.Status != StatusProcessing {
		return Document{}, transitionError("record extracted text", d.Status, StatusProcessing)
	}
	out := d.Clone()
	out.Metadata = PendingMetadata{ExtractedText: text}
	out.UpdatedAt = at
	return out, nil
}

// Analyze moves a processing document to analyzed. Findings are set here and only here.
func (d Document) Analyze(detection Detection, at time.Time) (Document, error) {
	if d.Status != StatusProcessing {
		return Document{}, transitionError("analyze", d.Status, StatusAnalyzed)
	}
	findings := make([]Finding, 0, len(detection.Findings))
	for _, f := range detection.Findings {
		findings = append(findings, f.Normalize())
	}

	out := d.Clone()
	out.Status = StatusAnalyzed
	out.Findings = findings
	out.Metadata = AnalyzedMetadata{
		ExtractedText:   d.ExtractedText(),
		RiskLevel:       ParseRiskLevel(string(detection.RiskLevel)),
		AnalysisSummary: detection.Summary,
		ProcessedAt:     at,
	}
	out.UpdatedAt = at
	return out, nil
}

// Redact marks the selected findings redacted and attaches the rewrite. Flags set by an
// earlier redaction are preserved.
func (d Document) Redact(indices []int, rewrite Rewrite, at time.Time) (Document, error) {
	if d.Status != StatusAnalyzed {
		return Document{}, transitionError("redact", d.Status, StatusRedacted)
	}
	analyzed, ok := d.Metadata.(AnalyzedMetadata)
	if !ok {
		return Document{}, WrapError(ErrInvalidTransition, "redact", fmt.Errorf("metadata stage %q", stageOf(d.Metadata)))
	}
	if len(indices) == 0 {
		return Document{}, WrapError(ErrInvalidSelection, "redact", fmt.Errorf("empty selection"))
	}

	selected := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		if idx < 0 || idx >= len(d.Findings) {
			return Document{}, WrapError(ErrInvalidSelection, "redact", fmt.Errorf("index %d out of range [0,%d)", idx, len(d.Findings)))
		}
		selected[idx] = struct{}{}
	}

	out := d.Clone()
	items := make([]Finding, 0, len(selected))
	for idx := range out.Findings {
		if _, ok := selected[idx]; !ok {
			continue
		}
		items = append(items, d.Findings[idx])
		out.Findings[idx].Redacted = true
	}

	out.Status = StatusRedacted
	out.Metadata = RedactedMetadata{
		AnalyzedMetadata: analyzed,
		RedactedText:     rewrite.RedactedText,
		RedactionSummary: rewrite.RedactionSummary,
		RedactedItems:    items,
		RedactionDate:    at,
	}
	out.UpdatedAt = at
	return out, nil
}

// Targets returns the findings at indices in their original detection order.
func (d Document) Targets(indices []int) []RedactionTarget {
	selected := make(map[int]struct{}, len(indices))
	for _, idx := range indices {
		selected[idx] = struct{}{}
	}
	targets := make([]RedactionTarget, 0, len(selected))
	for idx, f := range d.Findings {
		if _, ok := selected[idx]; ok {
			targets = append(targets, RedactionTarget{Kind: f.Kind, Value: f.Value})
		}
	}
	return targets
}

// Validate checks that status and metadata stage agree.
func (d Document) Validate() error {
	if !d.Status.Valid() {
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("unknown status %q", d.Status))
	}
	want := metadataStageFor(d.Status)
	if got := stageOf(d.Metadata); got != want {
		return WrapError(ErrInvalidInput, "validate document", fmt.Errorf("status %q carries %q metadata", d.Status, got))
	}
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	type alias Document
	meta, err := MarshalMetadata(d.Metadata)
	if err != nil {
		return nil, err
	}
	findings := d.Findings
	if findings == nil {
		findings = []Finding{}
	}
	return json.Marshal(struct {
		alias
		Findings []Finding      `json:"findings"`
		Metadata json.RawMessage `json:"metadata"`
	}{
		alias:    alias(d),
		Findings: findings,
		Metadata: meta,
	})
}

func (d *Document) UnmarshalJSON(data []byte) error {
	type alias Document
	var raw struct {
		alias
		Metadata json.RawMessage `json:"metadata"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	meta, err := UnmarshalMetadata(raw.Metadata)
	if err != nil {
		return err
	}
	*d = Document(raw.alias)
	d.Metadata = meta
	return nil
}

// DocumentQuery filters a record store listing. Zero values match everything.
type DocumentQuery struct {
	Owner     string
	Status    DocumentStatus
	RiskLevel RiskLevel
	FileKind  FileKind
	Search    string
}

const (
	SortCreatedDesc = "-created_at"
	SortCreatedAsc  = "created_at"
)

func transitionError(op string, from, to DocumentStatus) error {
	return WrapError(ErrInvalidTransition, op, fmt.Errorf("status %q cannot move to %q", from, to))
}
