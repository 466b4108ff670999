// Package riskai scores the risk of a proposed engineering change using a
// language-model provider. Providers are fronted by circuit breakers and
// tried in order, so a degraded provider is skipped instead of slowing every
// submission down.
package riskai

import (
	"context"

	"github.com/iota-uz/plm-sdk/pkg/serrors"
)

// ChangeSummary is the provider-facing view of a change order.
type ChangeSummary struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Reason          string   `json:"reason"`
	ChangeType      string   `json:"change_type"`
	Priority        string   `json:"priority"`
	AffectedParts   []string `json:"affected_parts"`
	ImpactAnalysis  string   `json:"impact_analysis,omitempty"`
	ComplianceNotes string   `json:"compliance_notes,omitempty"`
}

// RiskResult is the scored assessment of a change.
type RiskResult struct {
	RiskScore      float64  `json:"risk_score"`
	PredictedDelay int      `json:"predicted_delay_days"`
	KeyRisks       []string `json:"key_risks"`
}

// Analyzer produces a risk assessment for a change summary.
type Analyzer interface {
	Analyze(ctx context.Context, summary ChangeSummary) (RiskResult, error)
}

var (
	ErrProviderUnavailable     = serrors.NewError("RISK_PROVIDER_UNAVAILABLE", "risk provider unavailable", "")
	ErrAllProvidersUnavailable = serrors.NewError("RISK_ALL_PROVIDERS_UNAVAILABLE", "all risk providers unavailable", "")
)
