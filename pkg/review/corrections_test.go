package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/claims/storage"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/rules"
)

type processorFixture struct {
	processor *Processor
	queue     *Queue
	store     *storage.MemoryStore
	rules     *rules.Store
	events    *events.MemoryLogger
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	mem := storage.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ruleStore := rules.NewStore(mem, rules.WithClock(clock))
	eventLog := events.NewMemoryLogger()
	return &processorFixture{
		processor: NewProcessor(mem, ruleStore, eventLog, WithProcessorClock(clock)),
		queue:     NewQueue(mem, WithQueueClock(clock)),
		store:     mem,
		rules:     ruleStore,
		events:    eventLog,
	}
}

func (f *processorFixture) enqueue(t *testing.T) string {
	t.Helper()
	id, ok := f.queue.Add(context.Background(), "user-1", claims.ReviewTypeEdgeCase, nil, AddOptions{DisputeID: "d-1"})
	if !ok {
		t.Fatal("enqueue failed")
	}
	return id
}

func TestSubmitCorrectionAppliesRuleUpdate(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	ruleID, ok := f.rules.CreateRule(ctx, &claims.ClaimRule{
		RuleName: "r", ClaimType: "ct", RuleType: claims.RuleTypeDetection,
		IsActive: true, Priority: 10,
	}, "seed")
	if !ok {
		t.Fatal("seeding rule failed")
	}
	reviewID := f.enqueue(t)

	correctionID, ok := f.processor.SubmitCorrection(ctx, reviewID, "analyst-1", CorrectionInput{
		CorrectionType: claims.CorrectionRuleUpdate,
		BeforeState:    map[string]any{"priority": 10},
		AfterState: map[string]any{
			"rule_id": ruleID,
			"updates": map[string]any{"priority": 80.0},
		},
		Reasoning: "threshold too lenient",
	})
	if !ok {
		t.Fatal("submit failed")
	}

	rule, err := f.store.GetRule(ctx, ruleID)
	if err != nil {
		t.Fatal(err)
	}
	if rule.Priority != 80 {
		t.Errorf("priority = %d, want 80 after correction", rule.Priority)
	}
	if rule.Version != 2 {
		t.Errorf("version = %d, want 2", rule.Version)
	}
	if rule.UpdatedBy != "analyst-1" {
		t.Errorf("updated_by = %q", rule.UpdatedBy)
	}

	item, err := f.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != claims.StatusCompleted {
		t.Errorf("status = %q, want completed", item.Status)
	}
	if item.CorrectionType != claims.CorrectionRuleUpdate {
		t.Errorf("correction_type = %q", item.CorrectionType)
	}
	if item.AnalystNotes != "threshold too lenient" {
		t.Errorf("analyst_notes = %q", item.AnalystNotes)
	}
	if item.CompletedAt == nil {
		t.Error("completed_at not set")
	}
	if !item.FedBackToLearning || item.LearningEventID == "" {
		t.Errorf("learning feedback missing: fed_back=%v event_id=%q", item.FedBackToLearning, item.LearningEventID)
	}

	corrections, err := f.store.ListCorrections(ctx, reviewID)
	if err != nil {
		t.Fatal(err)
	}
	if len(corrections) != 1 || corrections[0].ID != correctionID {
		t.Fatalf("corrections = %d", len(corrections))
	}
	if !corrections[0].WasApplied {
		t.Error("correction not marked applied")
	}

	evs := f.events.Events()
	if len(evs) != 1 {
		t.Fatalf("learning events = %d, want 1", len(evs))
	}
	if evs[0].Agent != events.AgentLearning || evs[0].EventType != events.EventAnalystCorrection {
		t.Errorf("event = %s/%s", evs[0].Agent, evs[0].EventType)
	}
	if evs[0].Metadata["reasoning"] != "threshold too lenient" {
		t.Errorf("event metadata = %v", evs[0].Metadata)
	}
}

func TestSubmitCorrectionEvidenceMapping(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()

	if _, ok := f.rules.CreateEvidenceMapping(ctx, &claims.EvidenceMapping{
		ClaimType: "ct", EvidenceType: "photo",
		RequirementLevel: claims.RequirementOptional, Weight: 0.5,
	}, "seed"); !ok {
		t.Fatal("seeding mapping failed")
	}
	reviewID := f.enqueue(t)

	_, ok := f.processor.SubmitCorrection(ctx, reviewID, "analyst-1", CorrectionInput{
		CorrectionType: claims.CorrectionEvidenceMapping,
		AfterState: map[string]any{
			"claim_type":    "ct",
			"evidence_type": "photo",
			"updates":       map[string]any{"requirement_level": "mandatory", "weight": 1.0},
		},
		Reasoning: "photos are decisive for this claim type",
	})
	if !ok {
		t.Fatal("submit failed")
	}

	m, err := f.store.GetEvidenceMapping(ctx, "ct", "photo")
	if err != nil {
		t.Fatal(err)
	}
	if m.RequirementLevel != claims.RequirementMandatory || m.Weight != 1.0 {
		t.Errorf("mapping = %q/%v after correction", m.RequirementLevel, m.Weight)
	}
}

func TestSubmitCorrectionAuditOnlyTypes(t *testing.T) {
	for _, ct := range []claims.CorrectionType{
		claims.CorrectionThresholdAdjustment,
		claims.CorrectionNewPattern,
		claims.CorrectionNoAction,
	} {
		f := newProcessorFixture(t)
		ctx := context.Background()
		reviewID := f.enqueue(t)

		_, ok := f.processor.SubmitCorrection(ctx, reviewID, "analyst-1", CorrectionInput{
			CorrectionType: ct,
			AfterState:     map[string]any{"note": "observed new fraud shape"},
			Reasoning:      "signal for operators",
		})
		if !ok {
			t.Fatalf("%s: submit failed", ct)
		}

		corrections, err := f.store.ListCorrections(ctx, reviewID)
		if err != nil {
			t.Fatal(err)
		}
		if len(corrections) != 1 || !corrections[0].WasApplied {
			t.Errorf("%s: correction not recorded and marked", ct)
		}
		if len(f.events.Events()) != 1 {
			t.Errorf("%s: learning event missing", ct)
		}
	}
}

func TestSubmitCorrectionRejectsBadInput(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	reviewID := f.enqueue(t)

	if _, ok := f.processor.SubmitCorrection(ctx, reviewID, "a", CorrectionInput{
		CorrectionType: "mystery",
	}); ok {
		t.Error("unknown correction type must be rejected")
	}
	if _, ok := f.processor.SubmitCorrection(ctx, "no-such-review", "a", CorrectionInput{
		CorrectionType: claims.CorrectionNoAction,
	}); ok {
		t.Error("unknown review must be rejected")
	}

	// Resolve the review, then try to correct it again.
	if _, ok := f.processor.SubmitCorrection(ctx, reviewID, "a", CorrectionInput{
		CorrectionType: claims.CorrectionNoAction,
	}); !ok {
		t.Fatal("first correction failed")
	}
	if _, ok := f.processor.SubmitCorrection(ctx, reviewID, "a", CorrectionInput{
		CorrectionType: claims.CorrectionNoAction,
	}); ok {
		t.Error("correcting a completed review must fail")
	}
}

func TestSubmitCorrectionSurvivesEventLogFailure(t *testing.T) {
	f := newProcessorFixture(t)
	f.events.Err = errors.New("collaborator down")
	ctx := context.Background()
	reviewID := f.enqueue(t)

	correctionID, ok := f.processor.SubmitCorrection(ctx, reviewID, "analyst-1", CorrectionInput{
		CorrectionType: claims.CorrectionNoAction,
		Reasoning:      "nothing to change",
	})
	if !ok {
		t.Fatal("event log failure must not fail the submission")
	}

	item, err := f.store.GetReviewItem(ctx, reviewID)
	if err != nil {
		t.Fatal(err)
	}
	if item.Status != claims.StatusCompleted {
		t.Errorf("status = %q, want completed", item.Status)
	}
	if item.FedBackToLearning || item.LearningEventID != "" {
		t.Error("feedback flags must stay unset when the event log fails")
	}

	corrections, err := f.store.ListCorrections(ctx, reviewID)
	if err != nil {
		t.Fatal(err)
	}
	if len(corrections) != 1 || corrections[0].ID != correctionID {
		t.Fatal("correction row must be committed despite feedback failure")
	}
}

func TestSubmitCorrectionRuleUpdateWithoutRuleID(t *testing.T) {
	f := newProcessorFixture(t)
	ctx := context.Background()
	reviewID := f.enqueue(t)

	// No rule_id in after_state: the dispatch is a no-op but the correction
	// still completes the review and reaches the learning log.
	_, ok := f.processor.SubmitCorrection(ctx, reviewID, "analyst-1", CorrectionInput{
		CorrectionType: claims.CorrectionRuleUpdate,
		AfterState:     map[string]any{"updates": map[string]any{"priority": 1.0}},
		Reasoning:      "analyst forgot the rule reference",
	})
	if !ok {
		t.Fatal("submit failed")
	}
	if len(f.events.Events()) != 1 {
		t.Error("learning event missing")
	}
}
