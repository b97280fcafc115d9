package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the stage-specific part of a document. Each lifecycle stage has its own variant
// carrying only the fields valid at that stage.
type Metadata interface {
	Stage() MetadataStage
	extractedText() string
	clone() Metadata
}

type MetadataStage string

const (
	StagePending  MetadataStage = "pending"
	StageAnalyzed MetadataStage = "analyzed"
	StageRedacted MetadataStage = "redacted"
)

// PendingMetadata belongs to uploaded and processing documents.
type PendingMetadata struct {
	ExtractedText string `json:"extracted_text,omitempty"`
}

type AnalyzedMetadata struct {
	ExtractedText   string    `json:"extracted_text"`
	RiskLevel       RiskLevel `json:"risk_level"`
	AnalysisSummary string    `json:"analysis_summary"`
	ProcessedAt     time.Time `json:"processed_at"`
}

type RedactedMetadata struct {
	AnalyzedMetadata
	RedactedText     string    `json:"redacted_text"`
	RedactionSummary string    `json:"redaction_summary"`
	RedactedItems    []Finding `json:"redacted_items"`
	RedactionDate    time.Time `json:"redaction_date"`
}

func (PendingMetadata) Stage() MetadataStage  { return StagePending }
func (AnalyzedMetadata) Stage() MetadataStage { return StageAnalyzed }
func (RedactedMetadata) Stage() MetadataStage { return StageRedacted }

func (m PendingMetadata) extractedText() string  { return m.ExtractedText }
func (m AnalyzedMetadata) extractedText() string { return m.ExtractedText }

func (m PendingMetadata) clone() Metadata  { return m }
func (m AnalyzedMetadata) clone() Metadata { return m }
func (m RedactedMetadata) clone() Metadata {
	if m.RedactedItems != nil {
		m.RedactedItems = append([]Finding(nil), m.RedactedItems...)
	}
	return m
}

func metadataStageFor(status DocumentStatus) MetadataStage {
	switch status {
	case StatusAnalyzed:
		return StageAnalyzed
	case StatusRedacted, StatusExported:
		return StageRedacted
	default:
		return StagePending
	}
}

func stageOf(m Metadata) MetadataStage {
	if m == nil {
		return StagePending
	}
	return m.Stage()
}

// MarshalMetadata encodes metadata as a JSON object tagged with its stage.
func MarshalMetadata(m Metadata) ([]byte, error) {
	if m == nil {
		m = PendingMetadata{}
	}
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s metadata: %w", m.Stage(), err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("reshape %s metadata: %w", m.Stage(), err)
	}
	if fields == nil {
		fields = map[string]json.RawMessage{}
	}
	stage, _ := json.Marshal(m.Stage())
	fields["stage"] = stage
	return json.Marshal(fields)
}

func UnmarshalMetadata(data []byte) (Metadata, error) {
	if len(data) == 0 || string(data) == "null" {
		return PendingMetadata{}, nil
	}
	var envelope struct {
		Stage MetadataStage `json:"stage"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode metadata stage: %w", err)
	}

	switch envelope.Stage {
	case StagePending, "":
		var m PendingMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode pending metadata: %w", err)
		}
		return m, nil
	case StageAnalyzed:
		var m AnalyzedMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode analyzed metadata: %w", err)
		}
		return m, nil
	case StageRedacted:
		var m RedactedMetadata
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode redacted metadata: %w", err)
		}
		return m, nil
	default:
		return nil, WrapError(ErrInvalidInput, "decode metadata", fmt.Errorf("unknown stage %q", envelope.Stage))
	}
}
