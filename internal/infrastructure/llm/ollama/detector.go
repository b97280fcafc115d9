package ollama

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kirillkom/pii-redactor/internal/core/domain"
	"github.com/kirillkom/pii-redactor/internal/infrastructure/chunking"
)

type Detector struct {
	client   *Client
	splitter *chunking.Splitter
}

func NewDetector(client *Client) *Detector {
	return &Detector{
		client:   client,
		splitter: chunking.NewSplitter(promptChunkBytes, detectionOverlapBytes),
	}
}

// Detect scans text chunk by chunk and merges the results. A value reported by several chunks is
// kept once with its highest confidence, and the document risk is the highest chunk risk.
func (d *Detector) Detect(ctx context.Context, text string) (domain.Detection, error) {
	chunks := d.splitter.Split(text)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	merged := domain.Detection{Findings: []domain.Finding{}, RiskLevel: domain.RiskLow}
	seen := make(map[string]int)
	var summaries []string
	for _, chunk := range chunks {
		part, err := d.detectChunk(ctx, chunk)
		if err != nil {
			return domain.Detection{}, err
		}
		for _, f := range part.Findings {
			key := strings.ToLower(strings.TrimSpace(string(f.Kind))) + "\x00" + f.Value
			if i, ok := seen[key]; ok {
				if f.Confidence > merged.Findings[i].Confidence {
					merged.Findings[i].Confidence = f.Confidence
				}
				continue
			}
			seen[key] = len(merged.Findings)
			merged.Findings = append(merged.Findings, f)
		}
		if riskRank(part.RiskLevel) > riskRank(merged.RiskLevel) {
			merged.RiskLevel = part.RiskLevel
		}
		if s := strings.TrimSpace(part.Summary); s != "" {
			summaries = append(summaries, s)
		}
	}
	merged.Summary = strings.Join(summaries, "\n")
	return merged, nil
}

func (d *Detector) detectChunk(ctx context.Context, chunk string) (domain.Detection, error) {
	respText, err := d.client.generateJSON(ctx, "detect", buildDetectionPrompt(chunk))
	if err != nil {
		return domain.Detection{}, err
	}

	var result domain.Detection
	if err := json.Unmarshal([]byte(extractJSONObject(respText)), &result); err != nil {
		return domain.Detection{}, malformed("detect", err)
	}
	result.RiskLevel = domain.ParseRiskLevel(string(result.RiskLevel))
	return result, nil
}

func riskRank(level domain.RiskLevel) int {
	switch level {
	case domain.RiskHigh:
		return 2
	case domain.RiskMedium:
		return 1
	default:
		return 0
	}
}
