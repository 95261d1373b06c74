package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/claims/storage"
	"clearway/meridian/pkg/config"
	"clearway/meridian/pkg/drift"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/review"
	"clearway/meridian/pkg/rules"
)

type apiFixture struct {
	handler http.Handler
	store   *storage.MemoryStore
	rules   *rules.Store
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	mem := storage.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ruleStore := rules.NewStore(mem, rules.WithClock(clock))
	eventLog := events.NewMemoryLogger()
	queue := review.NewQueue(mem, review.WithQueueClock(clock))
	differ := drift.NewDiffer(mem, ruleStore, eventLog, drift.WithDifferClock(clock))

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	srv := NewServer(&cfg.Server, &cfg.Telemetry.Metrics, Deps{
		Store:     mem,
		Rules:     ruleStore,
		Evaluator: rules.NewEvaluator(ruleStore, nil),
		Queue:     queue,
		Processor: review.NewProcessor(mem, ruleStore, eventLog, review.WithProcessorClock(clock)),
		Differ:    differ,
	})

	return &apiFixture{
		handler: srv.setupRoutes(),
		store:   mem,
		rules:   ruleStore,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v\n%s", err, rec.Body.String())
	}
}

func TestEvaluateClaimEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "POST", "/v1/rules", map[string]any{
		"rule_name":  "high-value",
		"claim_type": "lost_package",
		"rule_type":  "detection",
		"conditions": map[string]any{"amount_min": 100.0},
		"actions":    map[string]any{"create_claim": true},
		"priority":   80,
		"created_by": "tester",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create rule: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "POST", "/v1/claims/evaluate", map[string]any{
		"claim_type": "lost_package",
		"claim_data": map[string]any{"amount": 250.0},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate: %d %s", rec.Code, rec.Body.String())
	}

	var result rules.Evaluation
	decodeBody(t, rec, &result)
	if len(result.MatchedRules) != 1 {
		t.Errorf("matched = %d, want 1", len(result.MatchedRules))
	}
	if result.RecommendedActions["create_claim"] != true {
		t.Errorf("actions = %v", result.RecommendedActions)
	}
}

func TestEvaluateClaimEndpointValidation(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, "POST", "/v1/claims/evaluate", map[string]any{}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing claim_type: %d", rec.Code)
	}
	req := httptest.NewRequest("POST", "/v1/claims/evaluate", bytes.NewBufferString("{broken"))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed body: %d", rec.Code)
	}
}

func TestRuleUpdateEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	ctx := context.Background()

	id, ok := f.rules.CreateRule(ctx, &claims.ClaimRule{
		RuleName: "r", ClaimType: "ct", RuleType: claims.RuleTypeDetection,
		IsActive: true, Priority: 10,
	}, "seed")
	if !ok {
		t.Fatal("seed failed")
	}

	rec := f.do(t, "PATCH", "/v1/rules/"+id, map[string]any{
		"updates":    map[string]any{"priority": 90.0},
		"updated_by": "analyst-1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}

	rule, err := f.store.GetRule(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if rule.Priority != 90 || rule.Version != 2 {
		t.Errorf("rule = priority %d version %d", rule.Priority, rule.Version)
	}

	rec = f.do(t, "PATCH", "/v1/rules/missing", map[string]any{
		"updates": map[string]any{"priority": 1.0}, "updated_by": "x",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("missing rule update: %d", rec.Code)
	}
}

func TestReviewEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "POST", "/v1/reviews", map[string]any{
		"user_id":     "user-1",
		"dispute_id":  "d-1",
		"review_type": "escalation",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("enqueue: %d %s", rec.Code, rec.Body.String())
	}
	var created map[string]string
	decodeBody(t, rec, &created)
	reviewID := created["id"]

	// Idempotent enqueue returns the same id.
	rec = f.do(t, "POST", "/v1/reviews", map[string]any{
		"user_id":     "user-1",
		"dispute_id":  "d-1",
		"review_type": "escalation",
	})
	var again map[string]string
	decodeBody(t, rec, &again)
	if again["id"] != reviewID {
		t.Errorf("duplicate enqueue returned %q, want %q", again["id"], reviewID)
	}

	rec = f.do(t, "GET", "/v1/reviews?priority=urgent", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}
	var listed struct {
		Reviews []*claims.ReviewItem `json:"reviews"`
	}
	decodeBody(t, rec, &listed)
	if len(listed.Reviews) != 1 || listed.Reviews[0].ID != reviewID {
		t.Fatalf("listed %d reviews", len(listed.Reviews))
	}

	rec = f.do(t, "POST", "/v1/reviews/"+reviewID+"/assign", map[string]any{"analyst_id": "analyst-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "POST", "/v1/reviews/"+reviewID+"/correction", map[string]any{
		"analyst_id":      "analyst-1",
		"correction_type": "no_action",
		"reasoning":       "false positive",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("correction: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "GET", "/v1/reviews/stats", nil)
	var stats review.Stats
	decodeBody(t, rec, &stats)
	if stats.Total != 1 || stats.ByStatus["completed"] != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestSchemaEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, "POST", "/v1/schema/check", map[string]any{
		"api_name": "amazon_orders",
		"schema": map[string]any{
			"endpoints":   []string{"/orders"},
			"fields":      []string{"order_id"},
			"claim_types": []string{"lost_package"},
		},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("check: %d %s", rec.Code, rec.Body.String())
	}
	var checked struct {
		Changes []*claims.SchemaChange `json:"changes"`
	}
	decodeBody(t, rec, &checked)
	if len(checked.Changes) != 1 {
		t.Fatalf("changes = %d, want 1", len(checked.Changes))
	}
	changeID := checked.Changes[0].ID

	rec = f.do(t, "GET", "/v1/schema/changes?api_name=amazon_orders&unacknowledged=true", nil)
	decodeBody(t, rec, &checked)
	if len(checked.Changes) != 1 {
		t.Fatalf("unacknowledged = %d", len(checked.Changes))
	}

	rec = f.do(t, "POST", "/v1/schema/changes/"+changeID+"/ack", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("ack: %d %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, "GET", "/v1/schema/changes?api_name=amazon_orders&unacknowledged=true", nil)
	decodeBody(t, rec, &checked)
	if len(checked.Changes) != 0 {
		t.Errorf("unacknowledged after ack = %d", len(checked.Changes))
	}

	if rec := f.do(t, "POST", "/v1/schema/changes/missing/ack", nil); rec.Code != http.StatusNotFound {
		t.Errorf("ack missing: %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPIFixture(t)

	if rec := f.do(t, "GET", "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz: %d", rec.Code)
	}
	rec := f.do(t, "GET", "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz: %d", rec.Code)
	}
}
