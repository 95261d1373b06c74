package rules

import (
	"context"
	"log/slog"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/telemetry/metrics"
)

// Evaluation is the outcome of running a claim through the active rule set.
type Evaluation struct {
	ClaimType          string         `json:"claim_type"`
	MatchedRules       []MatchedRule  `json:"matched_rules"`
	RecommendedActions map[string]any `json:"recommended_actions"`
	RequiredEvidence   []string       `json:"required_evidence"`
	OptionalEvidence   []string       `json:"optional_evidence"`
}

// MatchedRule identifies a rule that matched during evaluation.
type MatchedRule struct {
	RuleID   string `json:"rule_id"`
	RuleName string `json:"rule_name"`
	RuleType string `json:"rule_type"`
	Priority int    `json:"priority"`
}

// Evaluator runs claims against the rule store.
type Evaluator struct {
	rules   *Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEvaluator creates an evaluator over the given rule store.
func NewEvaluator(rules *Store, m *metrics.Metrics) *Evaluator {
	return &Evaluator{
		rules:   rules,
		logger:  slog.Default().With("component", "rules.evaluator"),
		metrics: m,
	}
}

// EvaluateClaim evaluates claimData against every active rule for the claim
// type and derives the evidence requirements from the evidence mappings.
//
// Matched rules' actions are merged in rule order, priority descending with
// ties broken by store order; a later match overwrites earlier action keys
// of the same name. Evidence requirements are independent of which rules
// matched: every mandatory mapping becomes required evidence and every
// recommended mapping becomes optional evidence.
//
// EvaluateClaim never fails. A degraded rule store yields an evaluation with
// no matches and no evidence, letting the pipeline proceed rather than stall.
func (e *Evaluator) EvaluateClaim(ctx context.Context, claimType string, claimData map[string]any) *Evaluation {
	result := &Evaluation{
		ClaimType:          claimType,
		MatchedRules:       []MatchedRule{},
		RecommendedActions: map[string]any{},
		RequiredEvidence:   []string{},
		OptionalEvidence:   []string{},
	}

	for _, rule := range e.rules.GetClaimRules(ctx, claimType, "") {
		predicates := DecodeConditions(rule.Conditions)
		if !MatchesAll(predicates, claimData) {
			continue
		}
		result.MatchedRules = append(result.MatchedRules, MatchedRule{
			RuleID:   rule.ID,
			RuleName: rule.RuleName,
			RuleType: string(rule.RuleType),
			Priority: rule.Priority,
		})
		for k, v := range rule.Actions {
			result.RecommendedActions[k] = v
		}
	}

	for _, m := range e.rules.GetEvidenceRequirements(ctx, claimType) {
		switch m.RequirementLevel {
		case claims.RequirementMandatory:
			result.RequiredEvidence = append(result.RequiredEvidence, m.EvidenceType)
		case claims.RequirementRecommended:
			result.OptionalEvidence = append(result.OptionalEvidence, m.EvidenceType)
		}
	}

	outcome := "no_match"
	if len(result.MatchedRules) > 0 {
		outcome = "matched"
	}
	e.metrics.EvaluationRun(claimType, outcome, len(result.MatchedRules))
	e.logger.Debug("claim evaluated",
		"claim_type", claimType,
		"matched_rules", len(result.MatchedRules),
	)
	return result
}
