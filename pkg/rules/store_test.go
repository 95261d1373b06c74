package rules

import (
	"context"
	"testing"
	"time"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/claims/storage"
)

func newTestStore(t *testing.T, now *time.Time) (*Store, *storage.MemoryStore) {
	t.Helper()
	mem := storage.NewMemoryStore()
	s := NewStore(mem, WithClock(func() time.Time { return *now }))
	return s, mem
}

func seedRule(t *testing.T, s *Store, rule *claims.ClaimRule) string {
	t.Helper()
	id, ok := s.CreateRule(context.Background(), rule, "seed")
	if !ok {
		t.Fatalf("seeding rule %q failed", rule.RuleName)
	}
	return id
}

func TestGetClaimRulesRespectsEffectiveWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)
	ctx := context.Background()

	until := now.Add(time.Hour)
	seedRule(t, s, &claims.ClaimRule{
		RuleName:       "expiring",
		ClaimType:      "lost_package",
		RuleType:       claims.RuleTypeDetection,
		IsActive:       true,
		EffectiveUntil: &until,
	})

	got := s.GetClaimRules(ctx, "lost_package", "")
	if len(got) != 1 {
		t.Fatalf("got %d rules inside window, want 1", len(got))
	}

	// Advance past the window without touching the cache. The cached entry
	// must be re-filtered, not served as-is.
	now = now.Add(2 * time.Hour)
	if got := s.GetClaimRules(ctx, "lost_package", ""); len(got) != 0 {
		t.Fatalf("got %d rules after window closed, want 0", len(got))
	}
}

func TestGetClaimRulesFiltersInactiveAndType(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)
	ctx := context.Background()

	seedRule(t, s, &claims.ClaimRule{
		RuleName:  "active-detection",
		ClaimType: "shipping_damage",
		RuleType:  claims.RuleTypeDetection,
		IsActive:  true,
	})
	seedRule(t, s, &claims.ClaimRule{
		RuleName:  "inactive",
		ClaimType: "shipping_damage",
		RuleType:  claims.RuleTypeDetection,
		IsActive:  false,
	})
	seedRule(t, s, &claims.ClaimRule{
		RuleName:  "validation",
		ClaimType: "shipping_damage",
		RuleType:  claims.RuleTypeValidation,
		IsActive:  true,
	})

	all := s.GetClaimRules(ctx, "shipping_damage", "")
	if len(all) != 2 {
		t.Fatalf("got %d active rules, want 2", len(all))
	}
	detection := s.GetClaimRules(ctx, "shipping_damage", claims.RuleTypeDetection)
	if len(detection) != 1 || detection[0].RuleName != "active-detection" {
		t.Fatalf("detection filter returned %d rules", len(detection))
	}
}

func TestGetClaimRulesOrderedByPriority(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)
	ctx := context.Background()

	seedRule(t, s, &claims.ClaimRule{
		RuleName: "low", ClaimType: "ct", RuleType: claims.RuleTypeDetection,
		IsActive: true, Priority: 10,
	})
	seedRule(t, s, &claims.ClaimRule{
		RuleName: "high", ClaimType: "ct", RuleType: claims.RuleTypeDetection,
		IsActive: true, Priority: 90,
	})

	got := s.GetClaimRules(ctx, "ct", "")
	if len(got) != 2 || got[0].RuleName != "high" || got[1].RuleName != "low" {
		t.Fatalf("unexpected order: %v", ruleNames(got))
	}
}

func TestCreateRuleInvalidatesCache(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)
	ctx := context.Background()

	seedRule(t, s, &claims.ClaimRule{
		RuleName: "first", ClaimType: "ct", RuleType: claims.RuleTypeDetection, IsActive: true,
	})
	if got := s.GetClaimRules(ctx, "ct", ""); len(got) != 1 {
		t.Fatalf("got %d rules, want 1", len(got))
	}

	// The cache holds "ct" now; a write must flush it so the new rule is
	// visible on the next read.
	seedRule(t, s, &claims.ClaimRule{
		RuleName: "second", ClaimType: "ct", RuleType: claims.RuleTypeDetection, IsActive: true,
	})
	if got := s.GetClaimRules(ctx, "ct", ""); len(got) != 2 {
		t.Fatalf("got %d rules after write, want 2", len(got))
	}
}

func TestUpdateRuleIncrementsVersion(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, mem := newTestStore(t, &now)
	ctx := context.Background()

	id := seedRule(t, s, &claims.ClaimRule{
		RuleName: "r", ClaimType: "ct", RuleType: claims.RuleTypeDetection,
		IsActive: true, Priority: 10,
	})

	p := 42
	if !s.UpdateRule(ctx, id, RuleUpdate{Priority: &p}, "analyst-1") {
		t.Fatal("update failed")
	}

	got, err := mem.GetRule(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want 2", got.Version)
	}
	if got.Priority != 42 {
		t.Errorf("priority = %d, want 42", got.Priority)
	}
	if got.UpdatedBy != "analyst-1" {
		t.Errorf("updated_by = %q, want analyst-1", got.UpdatedBy)
	}
	if got.RuleName != "r" {
		t.Errorf("untouched field changed: rule_name = %q", got.RuleName)
	}
}

// racingStore bumps the rule version between the service's read and its
// compare-and-swap write, simulating a concurrent writer.
type racingStore struct {
	*storage.MemoryStore
	raced bool
}

func (r *racingStore) GetRule(ctx context.Context, id string) (*claims.ClaimRule, error) {
	rule, err := r.MemoryStore.GetRule(ctx, id)
	if err != nil || r.raced {
		return rule, err
	}
	r.raced = true
	competitor, err := r.MemoryStore.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}
	expected := competitor.Version
	competitor.Version = expected + 1
	if err := r.MemoryStore.UpdateRule(ctx, competitor, expected); err != nil {
		return nil, err
	}
	return rule, nil
}

func TestUpdateRuleVersionConflict(t *testing.T) {
	mem := storage.NewMemoryStore()
	ctx := context.Background()
	if err := mem.InsertRule(ctx, &claims.ClaimRule{
		ID: "r-1", RuleName: "r", ClaimType: "ct",
		RuleType: claims.RuleTypeDetection, IsActive: true, Version: 1,
	}); err != nil {
		t.Fatal(err)
	}

	s := NewStore(&racingStore{MemoryStore: mem})
	p := 99
	if s.UpdateRule(ctx, "r-1", RuleUpdate{Priority: &p}, "slow-writer") {
		t.Fatal("update must fail when it loses the version race")
	}

	got, err := mem.GetRule(ctx, "r-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 2 {
		t.Errorf("version = %d, want the competitor's 2", got.Version)
	}
	if got.Priority == 99 {
		t.Error("losing update must not clobber the winner's row")
	}
}

func TestUpdateRuleMissingReturnsFalse(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, _ := newTestStore(t, &now)

	p := 1
	if s.UpdateRule(context.Background(), "no-such-rule", RuleUpdate{Priority: &p}, "x") {
		t.Fatal("update of missing rule must return false")
	}
}

func TestEvidenceMappingLifecycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s, mem := newTestStore(t, &now)
	ctx := context.Background()

	_, ok := s.CreateEvidenceMapping(ctx, &claims.EvidenceMapping{
		ClaimType:        "ct",
		EvidenceType:     "photo",
		RequirementLevel: claims.RequirementOptional,
		Weight:           0.5,
	}, "seed")
	if !ok {
		t.Fatal("create mapping failed")
	}

	got := s.GetEvidenceRequirements(ctx, "ct")
	if len(got) != 1 || got[0].EvidenceType != "photo" {
		t.Fatalf("unexpected mappings: %d", len(got))
	}

	if !s.ElevateEvidenceRequirement(ctx, "ct", "photo", claims.RequirementMandatory, "analyst-1") {
		t.Fatal("elevate failed")
	}

	m, err := mem.GetEvidenceMapping(ctx, "ct", "photo")
	if err != nil {
		t.Fatal(err)
	}
	if m.RequirementLevel != claims.RequirementMandatory {
		t.Errorf("requirement_level = %q, want mandatory", m.RequirementLevel)
	}
	if m.Weight != 1.0 {
		t.Errorf("weight = %v, want 1.0", m.Weight)
	}
	if m.Version != 2 {
		t.Errorf("version = %d, want 2", m.Version)
	}
}

func TestRuleUpdateFromMap(t *testing.T) {
	u := RuleUpdateFromMap(map[string]any{
		"priority":   75.0,
		"is_active":  false,
		"conditions": map[string]any{"amount_min": 10.0},
		"ignored":    "x",
	})
	if u.Priority == nil || *u.Priority != 75 {
		t.Errorf("priority = %v", u.Priority)
	}
	if u.IsActive == nil || *u.IsActive {
		t.Errorf("is_active = %v", u.IsActive)
	}
	if u.Conditions == nil {
		t.Error("conditions missing")
	}
	if u.RuleName != nil {
		t.Error("rule_name should be unset")
	}
}

func ruleNames(rules []*claims.ClaimRule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.RuleName
	}
	return names
}
