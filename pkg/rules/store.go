package rules

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/telemetry/metrics"
)

const (
	// DefaultCacheTTL bounds how stale a cached rule set may get.
	DefaultCacheTTL = 5 * time.Minute

	// DefaultCacheCleanup is the janitor sweep interval for the TTL cache.
	DefaultCacheCleanup = 10 * time.Minute

	ruleCachePrefix     = "rules:"
	evidenceCachePrefix = "evidence:"
)

// Store is the hot-updatable rule and evidence store. It fronts the
// persistent claims.Store with a TTL cache keyed by claim type; any
// successful write flushes the entire cache.
//
// Read paths are fail-open: a degraded store yields empty results and a
// logged error, never a failure surfaced to the caller. Write paths report
// success as a boolean so the review UI can retry or alert; no retries
// happen here.
type Store struct {
	store   claims.Store
	cache   Cache
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithCache replaces the default TTL cache.
func WithCache(c Cache) Option {
	return func(s *Store) { s.cache = c }
}

// WithClock replaces the wall clock, making effective-window checks and
// timestamps deterministic in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger replaces the default component logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a rule store backed by the given persistent store.
func NewStore(store claims.Store, opts ...Option) *Store {
	s := &Store{
		store:  store,
		logger: slog.Default().With("component", "rules.store"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cache == nil {
		s.cache = NewTTLCache(DefaultCacheTTL, DefaultCacheCleanup)
	}
	return s
}

// InvalidateCache drops every cached rule and evidence entry.
func (s *Store) InvalidateCache() {
	s.cache.Flush()
}

// GetClaimRules returns the active rules for a claim type whose effective
// window contains now, ordered by priority descending. When ruleType is
// non-empty only rules of that type are returned. Results are cached per
// claim type; cached entries are re-checked against the effective window so
// a rule never outlives its window by cache staleness.
func (s *Store) GetClaimRules(ctx context.Context, claimType string, ruleType claims.RuleType) []*claims.ClaimRule {
	now := s.now()

	var all []*claims.ClaimRule
	if cached, ok := s.cache.Get(ruleCachePrefix + claimType); ok {
		s.metrics.CacheHit("rules")
		all = cached.([]*claims.ClaimRule)
	} else {
		s.metrics.CacheMiss("rules")

		var err error
		all, err = s.store.ListRules(ctx, claims.RuleFilter{
			ClaimType:   claimType,
			ActiveOnly:  true,
			EffectiveAt: &now,
		})
		if err != nil {
			s.logger.Error("failed to load claim rules",
				"claim_type", claimType,
				"error", err,
			)
			return nil
		}
		s.cache.Set(ruleCachePrefix+claimType, all)
	}

	results := make([]*claims.ClaimRule, 0, len(all))
	for _, r := range all {
		if !r.EffectiveAt(now) {
			continue
		}
		if ruleType != "" && r.RuleType != ruleType {
			continue
		}
		results = append(results, r)
	}
	return results
}

// CreateRule inserts a new rule at version 1 and returns its id.
// A zero-priority, inactive-window rule is legal; the caller owns semantics.
func (s *Store) CreateRule(ctx context.Context, rule *claims.ClaimRule, createdBy string) (string, bool) {
	now := s.now()
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	rule.Version = 1
	rule.UpdatedBy = createdBy
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.store.InsertRule(ctx, rule); err != nil {
		s.logger.Error("failed to create rule",
			"rule_name", rule.RuleName,
			"claim_type", rule.ClaimType,
			"error", err,
		)
		return "", false
	}

	s.cache.Flush()
	s.logger.Info("rule created",
		"rule_id", rule.ID,
		"rule_name", rule.RuleName,
		"claim_type", rule.ClaimType,
	)
	return rule.ID, true
}

// RuleUpdate is a partial update to a claim rule. Nil fields are left
// unchanged.
type RuleUpdate struct {
	RuleName       *string
	Conditions     map[string]any
	Actions        map[string]any
	Priority       *int
	IsActive       *bool
	EffectiveFrom  *time.Time
	EffectiveUntil *time.Time
}

// UpdateRule applies a partial update to a rule, bumping its version by
// exactly one relative to the version read at call start. The write is
// compare-and-swap: losing a race against a concurrent writer surfaces as a
// logged conflict and a false return, never a silently dropped update.
func (s *Store) UpdateRule(ctx context.Context, ruleID string, update RuleUpdate, updatedBy string) bool {
	current, err := s.store.GetRule(ctx, ruleID)
	if err != nil {
		s.logger.Error("failed to read rule for update",
			"rule_id", ruleID,
			"error", err,
		)
		return false
	}

	expected := current.Version
	if update.RuleName != nil {
		current.RuleName = *update.RuleName
	}
	if update.Conditions != nil {
		current.Conditions = update.Conditions
	}
	if update.Actions != nil {
		current.Actions = update.Actions
	}
	if update.Priority != nil {
		current.Priority = *update.Priority
	}
	if update.IsActive != nil {
		current.IsActive = *update.IsActive
	}
	if update.EffectiveFrom != nil {
		current.EffectiveFrom = update.EffectiveFrom
	}
	if update.EffectiveUntil != nil {
		current.EffectiveUntil = update.EffectiveUntil
	}
	current.Version = expected + 1
	current.UpdatedBy = updatedBy
	current.UpdatedAt = s.now()

	if err := s.store.UpdateRule(ctx, current, expected); err != nil {
		if claims.IsVersionConflict(err) {
			s.logger.Warn("rule update lost a version race",
				"rule_id", ruleID,
				"expected_version", expected,
			)
		} else {
			s.logger.Error("failed to update rule",
				"rule_id", ruleID,
				"error", err,
			)
		}
		return false
	}

	s.cache.Flush()
	s.logger.Info("rule updated",
		"rule_id", ruleID,
		"version", current.Version,
		"updated_by", updatedBy,
	)
	return true
}

// GetEvidenceRequirements returns the evidence mappings for a claim type.
// Results are cached per claim type; fail-open on store error.
func (s *Store) GetEvidenceRequirements(ctx context.Context, claimType string) []*claims.EvidenceMapping {
	if cached, ok := s.cache.Get(evidenceCachePrefix + claimType); ok {
		s.metrics.CacheHit("evidence")
		return cached.([]*claims.EvidenceMapping)
	}
	s.metrics.CacheMiss("evidence")

	mappings, err := s.store.ListEvidenceMappings(ctx, claimType)
	if err != nil {
		s.logger.Error("failed to load evidence mappings",
			"claim_type", claimType,
			"error", err,
		)
		return nil
	}

	s.cache.Set(evidenceCachePrefix+claimType, mappings)
	return mappings
}

// CreateEvidenceMapping inserts a new mapping at version 1 and returns its id.
func (s *Store) CreateEvidenceMapping(ctx context.Context, m *claims.EvidenceMapping, createdBy string) (string, bool) {
	now := s.now()
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	m.Version = 1
	m.UpdatedBy = createdBy
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := s.store.InsertEvidenceMapping(ctx, m); err != nil {
		s.logger.Error("failed to create evidence mapping",
			"claim_type", m.ClaimType,
			"evidence_type", m.EvidenceType,
			"error", err,
		)
		return "", false
	}

	s.cache.Flush()
	return m.ID, true
}

// MappingUpdate is a partial update to an evidence mapping. Nil fields are
// left unchanged.
type MappingUpdate struct {
	RequirementLevel *claims.RequirementLevel
	Conditions       map[string]any
	Weight           *float64
	Description      *string
}

// UpdateEvidenceMapping applies a partial update to the mapping for a
// (claim type, evidence type) pair under the same versioning discipline as
// UpdateRule.
func (s *Store) UpdateEvidenceMapping(ctx context.Context, claimType, evidenceType string, update MappingUpdate, updatedBy string) bool {
	current, err := s.store.GetEvidenceMapping(ctx, claimType, evidenceType)
	if err != nil {
		s.logger.Error("failed to read evidence mapping for update",
			"claim_type", claimType,
			"evidence_type", evidenceType,
			"error", err,
		)
		return false
	}

	expected := current.Version
	if update.RequirementLevel != nil {
		current.RequirementLevel = *update.RequirementLevel
	}
	if update.Conditions != nil {
		current.Conditions = update.Conditions
	}
	if update.Weight != nil {
		current.Weight = *update.Weight
	}
	if update.Description != nil {
		current.Description = *update.Description
	}
	current.Version = expected + 1
	current.UpdatedBy = updatedBy
	current.UpdatedAt = s.now()

	if err := s.store.UpdateEvidenceMapping(ctx, current, expected); err != nil {
		if claims.IsVersionConflict(err) {
			s.logger.Warn("evidence mapping update lost a version race",
				"claim_type", claimType,
				"evidence_type", evidenceType,
				"expected_version", expected,
			)
		} else {
			s.logger.Error("failed to update evidence mapping",
				"claim_type", claimType,
				"evidence_type", evidenceType,
				"error", err,
			)
		}
		return false
	}

	s.cache.Flush()
	return true
}

// RuleUpdateFromMap builds a RuleUpdate from a loosely typed update payload
// such as an analyst correction's after-state. Unknown keys are ignored.
func RuleUpdateFromMap(updates map[string]any) RuleUpdate {
	var u RuleUpdate
	if v, ok := updates["rule_name"].(string); ok {
		u.RuleName = &v
	}
	if v, ok := updates["conditions"].(map[string]any); ok {
		u.Conditions = v
	}
	if v, ok := updates["actions"].(map[string]any); ok {
		u.Actions = v
	}
	if f, ok := toFloat(updates["priority"]); ok {
		p := int(f)
		u.Priority = &p
	}
	if v, ok := updates["is_active"].(bool); ok {
		u.IsActive = &v
	}
	return u
}

// MappingUpdateFromMap builds a MappingUpdate from a loosely typed update
// payload. Unknown keys are ignored.
func MappingUpdateFromMap(updates map[string]any) MappingUpdate {
	var u MappingUpdate
	if v, ok := updates["requirement_level"].(string); ok {
		level := claims.RequirementLevel(v)
		if level.Valid() {
			u.RequirementLevel = &level
		}
	}
	if v, ok := updates["conditions"].(map[string]any); ok {
		u.Conditions = v
	}
	if f, ok := toFloat(updates["weight"]); ok {
		u.Weight = &f
	}
	if v, ok := updates["description"].(string); ok {
		u.Description = &v
	}
	return u
}

// ElevateEvidenceRequirement sets the requirement level and its canonical
// weight (mandatory 1.00, recommended 0.85) for a mapping.
func (s *Store) ElevateEvidenceRequirement(ctx context.Context, claimType, evidenceType string, level claims.RequirementLevel, updatedBy string) bool {
	update := MappingUpdate{RequirementLevel: &level}
	if w := level.CanonicalWeight(); w >= 0 {
		update.Weight = &w
	}
	return s.UpdateEvidenceMapping(ctx, claimType, evidenceType, update, updatedBy)
}
