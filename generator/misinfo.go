package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chronofact/chronofact/domain"
)

const detectMisinformationPrompt = `Assess the following text for misinformation risk: rhetorical red flags,
unverifiable claims, manipulated framing, or known hoax patterns.

Text: %q

Reply with a single JSON object of exactly this shape and nothing else:
{
  "is_suspicious": true,
  "suspicious_patterns": ["string", ...],
  "risk_level": "low|medium|high",
  "recommendation": "string"
}`

type misinfoReply struct {
	IsSuspicious       bool     `json:"is_suspicious"`
	SuspiciousPatterns []string `json:"suspicious_patterns"`
	RiskLevel          string   `json:"risk_level"`
	Recommendation     string   `json:"recommendation"`
}

// DetectMisinformation assesses free text for misinformation risk.
func DetectMisinformation(ctx context.Context, e *Engine, text string) (domain.MisinformationAnalysis, error) {
	prompt := fmt.Sprintf(detectMisinformationPrompt, text)

	return Generate(ctx, e, prompt, parseMisinfo)
}

func parseMisinfo(raw string) (domain.MisinformationAnalysis, error) {
	var reply misinfoReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return domain.MisinformationAnalysis{}, fmt.Errorf("invalid misinformation JSON: %w", err)
	}

	level := domain.RiskLevel(reply.RiskLevel)
	switch level {
	case domain.RiskLow, domain.RiskMedium, domain.RiskHigh:
	default:
		return domain.MisinformationAnalysis{}, fmt.Errorf("invalid risk_level %q", reply.RiskLevel)
	}

	return domain.MisinformationAnalysis{
		IsSuspicious:       reply.IsSuspicious,
		SuspiciousPatterns: reply.SuspiciousPatterns,
		RiskLevel:          level,
		Recommendation:     reply.Recommendation,
	}, nil
}
