package review

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/rules"
	"clearway/meridian/pkg/telemetry/metrics"
)

// Processor applies analyst corrections back into the rule store and feeds
// them to the learning collaborator.
type Processor struct {
	store   claims.Store
	rules   *rules.Store
	events  events.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithProcessorClock replaces the wall clock for tests.
func WithProcessorClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

// WithProcessorMetrics attaches Prometheus instrumentation.
func WithProcessorMetrics(m *metrics.Metrics) ProcessorOption {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a correction processor.
func NewProcessor(store claims.Store, ruleStore *rules.Store, eventLog events.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:  store,
		rules:  ruleStore,
		events: eventLog,
		logger: slog.Default().With("component", "review.processor"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CorrectionInput is an analyst's correction as submitted by the review UI.
type CorrectionInput struct {
	CorrectionType   claims.CorrectionType
	BeforeState      map[string]any
	AfterState       map[string]any
	Reasoning        string
	ImpactAssessment string
}

// SubmitCorrection persists the correction, completes the review item, and
// then runs the feedback pipeline: dispatch the correction into the rule
// store, mark it applied, emit a learning event, and stamp the review with
// the event id.
//
// The returned boolean covers the correction record and review completion
// only. Feedback failures are logged and leave the correction recorded but
// unapplied or unfed; consistency between "recorded" and "applied" is
// eventual, not atomic.
func (p *Processor) SubmitCorrection(ctx context.Context, reviewID, analystID string, input CorrectionInput) (string, bool) {
	if !input.CorrectionType.Valid() {
		p.logger.Error("unknown correction type",
			"review_id", reviewID,
			"correction_type", input.CorrectionType,
		)
		return "", false
	}

	item, err := p.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		p.logger.Error("failed to load review for correction",
			"review_id", reviewID,
			"error", err,
		)
		return "", false
	}
	if item.Status.Terminal() {
		p.logger.Warn("review already resolved",
			"review_id", reviewID,
			"status", item.Status,
		)
		return "", false
	}

	now := p.now()
	correction := &claims.AnalystCorrection{
		ID:               uuid.New().String(),
		ReviewID:         reviewID,
		AnalystID:        analystID,
		CorrectionType:   input.CorrectionType,
		BeforeState:      input.BeforeState,
		AfterState:       input.AfterState,
		Reasoning:        input.Reasoning,
		ImpactAssessment: input.ImpactAssessment,
		CreatedAt:        now,
	}
	if err := p.store.InsertCorrection(ctx, correction); err != nil {
		p.logger.Error("failed to persist correction",
			"review_id", reviewID,
			"error", err,
		)
		return "", false
	}

	item.Status = claims.StatusCompleted
	item.AnalystCorrection = input.AfterState
	item.CorrectionType = input.CorrectionType
	item.AnalystNotes = input.Reasoning
	item.CompletedAt = &now
	item.UpdatedAt = now
	if err := p.store.UpdateReviewItem(ctx, item); err != nil {
		p.logger.Error("failed to complete review",
			"review_id", reviewID,
			"error", err,
		)
		return "", false
	}

	p.feedBack(ctx, item, correction, analystID)
	return correction.ID, true
}

// feedBack runs the post-commit pipeline. Each step failing is logged and
// skipped; the committed correction is never rolled back.
func (p *Processor) feedBack(ctx context.Context, item *claims.ReviewItem, correction *claims.AnalystCorrection, analystID string) {
	applied := p.applyCorrection(ctx, correction, analystID)
	p.metrics.CorrectionProcessed(string(correction.CorrectionType), applied)

	if err := p.store.MarkCorrectionApplied(ctx, correction.ID); err != nil {
		p.logger.Error("failed to mark correction applied",
			"correction_id", correction.ID,
			"error", err,
		)
	}

	eventID, err := p.events.LogEvent(ctx, events.AgentLearning, events.EventAnalystCorrection, map[string]any{
		"review_id":       item.ID,
		"correction_id":   correction.ID,
		"correction_type": string(correction.CorrectionType),
		"before_state":    correction.BeforeState,
		"after_state":     correction.AfterState,
		"reasoning":       correction.Reasoning,
	})
	if err != nil {
		p.logger.Error("failed to emit learning event",
			"correction_id", correction.ID,
			"error", err,
		)
		return
	}

	item.FedBackToLearning = true
	item.LearningEventID = eventID
	item.UpdatedAt = p.now()
	if err := p.store.UpdateReviewItem(ctx, item); err != nil {
		p.logger.Error("failed to stamp review with learning event",
			"review_id", item.ID,
			"learning_event_id", eventID,
			"error", err,
		)
	}
}

// applyCorrection dispatches a correction into the rule store. Rule and
// evidence corrections mutate the store; threshold adjustments and new
// patterns are operator signals recorded for audit only.
func (p *Processor) applyCorrection(ctx context.Context, c *claims.AnalystCorrection, analystID string) bool {
	switch c.CorrectionType {
	case claims.CorrectionRuleUpdate:
		ruleID, _ := c.AfterState["rule_id"].(string)
		updates, _ := c.AfterState["updates"].(map[string]any)
		if ruleID == "" || updates == nil {
			p.logger.Warn("rule_update correction without rule_id or updates",
				"correction_id", c.ID,
			)
			return false
		}
		return p.rules.UpdateRule(ctx, ruleID, rules.RuleUpdateFromMap(updates), analystID)

	case claims.CorrectionEvidenceMapping:
		claimType, _ := c.AfterState["claim_type"].(string)
		evidenceType, _ := c.AfterState["evidence_type"].(string)
		updates, _ := c.AfterState["updates"].(map[string]any)
		if claimType == "" || evidenceType == "" || updates == nil {
			p.logger.Warn("evidence_mapping correction missing claim_type, evidence_type, or updates",
				"correction_id", c.ID,
			)
			return false
		}
		return p.rules.UpdateEvidenceMapping(ctx, claimType, evidenceType, rules.MappingUpdateFromMap(updates), analystID)

	case claims.CorrectionThresholdAdjustment, claims.CorrectionNewPattern:
		p.logger.Info("correction recorded for audit",
			"correction_id", c.ID,
			"correction_type", c.CorrectionType,
		)
		return true
	}
	return true
}
