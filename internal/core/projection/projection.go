// Package projection derives display aggregates from a collection of documents.
// Everything here is a pure function of its input; results are recomputed on every read.
package projection

import (
	"slices"
	"strings"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
)

const (
	highRiskRatio   = 0.7
	mediumRiskRatio = 0.3

	highVolumeFindings     = 50
	moderateVolumeFindings = 20
)

// FleetRisk is the risk level of a whole collection. It is unrelated to the per-document
// risk level reported by the detector.
type FleetRisk string

const (
	FleetRiskLow    FleetRisk = "low"
	FleetRiskMedium FleetRisk = "medium"
	FleetRiskHigh   FleetRisk = "high"
)

type Stats struct {
	Total       int       `json:"total"`
	Processed   int       `json:"processed"`
	PIIDetected int       `json:"pii_detected"`
	RiskLevel   FleetRisk `json:"risk_level"`
}

type KindCount struct {
	Kind       domain.PIIKind `json:"type"`
	Count      int            `json:"count"`
	Percentage float64        `json:"percentage"`
}

type Exposure string

const (
	ExposureHighVolume Exposure = "high_volume"
	ExposureModerate   Exposure = "moderate"
	ExposureManageable Exposure = "manageable"
)

type Dashboard struct {
	Stats         Stats             `json:"stats"`
	Kinds         []KindCount       `json:"pii_by_type"`
	TotalFindings int               `json:"total_findings"`
	Exposure      Exposure          `json:"exposure"`
	Recent        []domain.Document `json:"recent_documents"`
}

// Summarize counts documents, processed documents (analyzed or redacted) and documents with
// at least one finding.
func Summarize(docs []domain.Document) Stats {
	stats := Stats{Total: len(docs)}
	for _, doc := range docs {
		if doc.Status == domain.StatusAnalyzed || doc.Status == domain.StatusRedacted {
			stats.Processed++
		}
		if doc.HasFindings() {
			stats.PIIDetected++
		}
	}
	stats.RiskLevel = ClassifyFleetRisk(stats.Total, stats.PIIDetected)
	return stats
}

// ClassifyFleetRisk buckets the share of documents carrying PII: strictly above 0.7 is high,
// strictly above 0.3 is medium. An empty collection is low.
func ClassifyFleetRisk(total, withPII int) FleetRisk {
	if total <= 0 {
		return FleetRiskLow
	}
	ratio := float64(withPII) / float64(total)
	switch {
	case ratio > highRiskRatio:
		return FleetRiskHigh
	case ratio > mediumRiskRatio:
		return FleetRiskMedium
	default:
		return FleetRiskLow
	}
}

// TallyKinds counts findings by kind across all documents, most frequent first.
// Ties keep the order in which kinds were first encountered.
func TallyKinds(docs []domain.Document) []KindCount {
	var order []domain.PIIKind
	counts := make(map[domain.PIIKind]int)
	total := 0
	for _, doc := range docs {
		for _, f := range doc.Findings {
			if _, seen := counts[f.Kind]; !seen {
				order = append(order, f.Kind)
			}
			counts[f.Kind]++
			total++
		}
	}

	out := make([]KindCount, 0, len(order))
	for _, kind := range order {
		out = append(out, KindCount{
			Kind:       kind,
			Count:      counts[kind],
			Percentage: float64(counts[kind]) / float64(total) * 100,
		})
	}
	slices.SortStableFunc(out, func(a, b KindCount) int {
		return b.Count - a.Count
	})
	return out
}

func TotalFindings(docs []domain.Document) int {
	total := 0
	for _, doc := range docs {
		total += len(doc.Findings)
	}
	return total
}

func ClassifyExposure(totalFindings int) Exposure {
	switch {
	case totalFindings > highVolumeFindings:
		return ExposureHighVolume
	case totalFindings > moderateVolumeFindings:
		return ExposureModerate
	default:
		return ExposureManageable
	}
}

// Criteria narrows a document list. Empty fields match everything.
type Criteria struct {
	Search    string
	Status    domain.DocumentStatus
	RiskLevel domain.RiskLevel
	FileKind  domain.FileKind
}

func (c Criteria) Empty() bool {
	return strings.TrimSpace(c.Search) == "" && c.Status == "" && c.RiskLevel == "" && c.FileKind == ""
}

// Filter keeps documents matching every non-empty criterion; search is a case-insensitive
// substring match on the name.
func Filter(docs []domain.Document, c Criteria) []domain.Document {
	search := strings.ToLower(strings.TrimSpace(c.Search))
	out := make([]domain.Document, 0, len(docs))
	for _, doc := range docs {
		if search != "" && !strings.Contains(strings.ToLower(doc.Name), search) {
			continue
		}
		if c.Status != "" && doc.Status != c.Status {
			continue
		}
		if c.RiskLevel != "" && doc.RiskLevel() != c.RiskLevel {
			continue
		}
		if c.FileKind != "" && doc.FileKind != c.FileKind {
			continue
		}
		out = append(out, doc)
	}
	return out
}

// Build assembles the dashboard view for a collection.
func Build(docs []domain.Document, recent int) Dashboard {
	total := TotalFindings(docs)
	dash := Dashboard{
		Stats:         Summarize(docs),
		Kinds:         TallyKinds(docs),
		TotalFindings: total,
		Exposure:      ClassifyExposure(total),
		Recent:        docs,
	}
	if recent >= 0 && len(docs) > recent {
		dash.Recent = docs[:recent]
	}
	return dash
}
