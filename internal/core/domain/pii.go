package domain

import "strings"

type PIIKind string

const (
	KindName          PIIKind = "name"
	KindEmail         PIIKind = "email"
	KindPhone         PIIKind = "phone"
	KindSSN           PIIKind = "ssn"
	KindAddress       PIIKind = "address"
	KindCreditCard    PIIKind = "credit_card"
	KindDateOfBirth   PIIKind = "date_of_birth"
	KindMedicalID     PIIKind = "medical_id"
	KindLicenseNumber PIIKind = "license_number"
	KindOther         PIIKind = "other"
)

var knownKinds = map[PIIKind]struct{}{
	KindName:          {},
	KindEmail:         {},
	KindPhone:         {},
	KindSSN:           {},
	KindAddress:       {},
	KindCreditCard:    {},
	KindDateOfBirth:   {},
	KindMedicalID:     {},
	KindLicenseNumber: {},
	KindOther:         {},
}

// ParsePIIKind maps detector output onto the closed kind set; anything unknown becomes KindOther.
func ParsePIIKind(raw string) PIIKind {
	kind := PIIKind(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := knownKinds[kind]; ok {
		return kind
	}
	return KindOther
}

// Placeholder is the marker a rewrite should substitute for a value of this kind.
func (k PIIKind) Placeholder() string {
	if k == "" || k == KindOther {
		return "[REDACTED]"
	}
	return "[REDACTED-" + strings.ToUpper(strings.ReplaceAll(string(k), "_", "-")) + "]"
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func ParseRiskLevel(raw string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(raw))) {
	case RiskHigh:
		return RiskHigh
	case RiskMedium:
		return RiskMedium
	default:
		return RiskLow
	}
}

type Finding struct {
	Kind       PIIKind `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
	Location   string  `json:"location,omitempty"`
	Redacted   bool    `json:"redacted"`
}

// Normalize clamps confidence into [0,1], folds unknown kinds into other and clears the redacted flag.
func (f Finding) Normalize() Finding {
	f.Kind = ParsePIIKind(string(f.Kind))
	switch {
	case f.Confidence < 0:
		f.Confidence = 0
	case f.Confidence > 1:
		f.Confidence = 1
	}
	f.Redacted = false
	return f
}

// Detection is the result returned by a PII detector for one text.
type Detection struct {
	Findings  []Finding `json:"detected_pii"`
	RiskLevel RiskLevel `json:"risk_level"`
	Summary   string    `json:"summary"`
}

// RedactionTarget is one selected finding handed to a text rewriter.
type RedactionTarget struct {
	Kind  PIIKind `json:"type"`
	Value string  `json:"value"`
}

type Rewrite struct {
	RedactedText     string `json:"redacted_text"`
	RedactionSummary string `json:"redaction_summary"`
}
