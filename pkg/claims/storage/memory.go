package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"clearway/meridian/pkg/claims"
)

// MemoryStore implements claims.Store using in-memory maps. It is intended
// for testing only and mirrors the SQLite backend's ordering and error
// contracts, including the pending-review uniqueness guard.
type MemoryStore struct {
	mu sync.RWMutex

	rules       []*claims.ClaimRule
	mappings    []*claims.EvidenceMapping
	reviews     []*claims.ReviewItem
	corrections []*claims.AnalystCorrection
	snapshots   []*claims.SchemaSnapshot
	changes     []*claims.SchemaChange
	events      []*claims.LearningEvent
}

// NewMemoryStore creates a new in-memory storage backend.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Close releases resources held by the store (a no-op for memory).
func (s *MemoryStore) Close() error { return nil }

// InsertRule persists a new claim rule.
func (s *MemoryStore) InsertRule(ctx context.Context, rule *claims.ClaimRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *rule
	s.rules = append(s.rules, &copied)
	return nil
}

// GetRule retrieves a claim rule by id.
func (s *MemoryStore) GetRule(ctx context.Context, id string) (*claims.ClaimRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, r := range s.rules {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, claims.NewNotFoundError("claim_rule", id)
}

// ListRules retrieves claim rules matching the filter, priority descending
// with ties in insertion order.
func (s *MemoryStore) ListRules(ctx context.Context, filter claims.RuleFilter) ([]*claims.ClaimRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*claims.ClaimRule
	for _, r := range s.rules {
		if filter.ClaimType != "" && r.ClaimType != filter.ClaimType {
			continue
		}
		if filter.RuleType != "" && r.RuleType != filter.RuleType {
			continue
		}
		if filter.ActiveOnly && !r.IsActive {
			continue
		}
		if filter.EffectiveAt != nil && !r.EffectiveAt(*filter.EffectiveAt) {
			continue
		}
		copied := *r
		results = append(results, &copied)
	}

	// Stable sort keeps insertion order within a priority tier.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Priority > results[j].Priority
	})
	return results, nil
}

// UpdateRule writes a rule row under compare-and-swap.
func (s *MemoryStore) UpdateRule(ctx context.Context, rule *claims.ClaimRule, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.rules {
		if r.ID != rule.ID {
			continue
		}
		if r.Version != expectedVersion {
			return claims.NewVersionConflictError("claim_rule", rule.ID, expectedVersion)
		}
		copied := *rule
		s.rules[i] = &copied
		return nil
	}
	return claims.NewNotFoundError("claim_rule", rule.ID)
}

// InsertEvidenceMapping persists a new evidence mapping.
func (s *MemoryStore) InsertEvidenceMapping(ctx context.Context, m *claims.EvidenceMapping) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.mappings {
		if existing.ClaimType == m.ClaimType && existing.EvidenceType == m.EvidenceType {
			return claims.NewConflictError("evidence_mapping",
				fmt.Sprintf("mapping for (%s, %s) already exists", m.ClaimType, m.EvidenceType))
		}
	}
	copied := *m
	s.mappings = append(s.mappings, &copied)
	return nil
}

// GetEvidenceMapping retrieves the mapping for a (claim type, evidence type) pair.
func (s *MemoryStore) GetEvidenceMapping(ctx context.Context, claimType, evidenceType string) (*claims.EvidenceMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.mappings {
		if m.ClaimType == claimType && m.EvidenceType == evidenceType {
			copied := *m
			return &copied, nil
		}
	}
	return nil, claims.NewNotFoundError("evidence_mapping", claimType+"/"+evidenceType)
}

// ListEvidenceMappings retrieves all mappings for a claim type, weight descending.
func (s *MemoryStore) ListEvidenceMappings(ctx context.Context, claimType string) ([]*claims.EvidenceMapping, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*claims.EvidenceMapping
	for _, m := range s.mappings {
		if m.ClaimType == claimType {
			copied := *m
			results = append(results, &copied)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Weight != results[j].Weight {
			return results[i].Weight > results[j].Weight
		}
		return results[i].EvidenceType < results[j].EvidenceType
	})
	return results, nil
}

// UpdateEvidenceMapping writes a mapping row under compare-and-swap.
func (s *MemoryStore) UpdateEvidenceMapping(ctx context.Context, m *claims.EvidenceMapping, expectedVersion int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.mappings {
		if existing.ID != m.ID {
			continue
		}
		if existing.Version != expectedVersion {
			return claims.NewVersionConflictError("evidence_mapping", m.ID, expectedVersion)
		}
		copied := *m
		s.mappings[i] = &copied
		return nil
	}
	return claims.NewNotFoundError("evidence_mapping", m.ID)
}

// InsertReviewItem persists a new review item, enforcing the single-pending
// invariant per (user, dispute) pair.
func (s *MemoryStore) InsertReviewItem(ctx context.Context, item *claims.ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.Status == claims.StatusPending {
		for _, existing := range s.reviews {
			if existing.Status == claims.StatusPending &&
				existing.UserID == item.UserID && existing.DisputeID == item.DisputeID {
				return claims.NewConflictError("review_item",
					fmt.Sprintf("pending review for user %q dispute %q already exists", item.UserID, item.DisputeID))
			}
		}
	}
	copied := *item
	s.reviews = append(s.reviews, &copied)
	return nil
}

// GetReviewItem retrieves a review item by id.
func (s *MemoryStore) GetReviewItem(ctx context.Context, id string) (*claims.ReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.reviews {
		if item.ID == id {
			copied := *item
			return &copied, nil
		}
	}
	return nil, claims.NewNotFoundError("review_item", id)
}

// FindPendingReview retrieves the pending item for a (user, dispute) pair.
func (s *MemoryStore) FindPendingReview(ctx context.Context, userID, disputeID string) (*claims.ReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, item := range s.reviews {
		if item.Status == claims.StatusPending && item.UserID == userID && item.DisputeID == disputeID {
			copied := *item
			return &copied, nil
		}
	}
	return nil, claims.NewNotFoundError("review_item", userID+"/"+disputeID)
}

// ListReviewItems retrieves review items matching the filter, priority rank
// descending then created_at ascending.
func (s *MemoryStore) ListReviewItems(ctx context.Context, filter claims.ReviewFilter) ([]*claims.ReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*claims.ReviewItem
	for _, item := range s.reviews {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.Priority != "" && item.Priority != filter.Priority {
			continue
		}
		if filter.ReviewType != "" && item.ReviewType != filter.ReviewType {
			continue
		}
		copied := *item
		results = append(results, &copied)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Priority.Rank() != results[j].Priority.Rank() {
			return results[i].Priority.Rank() > results[j].Priority.Rank()
		}
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// UpdateReviewItem writes all mutable review item columns.
func (s *MemoryStore) UpdateReviewItem(ctx context.Context, item *claims.ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.reviews {
		if existing.ID == item.ID {
			copied := *item
			s.reviews[i] = &copied
			return nil
		}
	}
	return claims.NewNotFoundError("review_item", item.ID)
}

// InsertCorrection persists a new analyst correction.
func (s *MemoryStore) InsertCorrection(ctx context.Context, c *claims.AnalystCorrection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *c
	s.corrections = append(s.corrections, &copied)
	return nil
}

// MarkCorrectionApplied flips the was_applied flag.
func (s *MemoryStore) MarkCorrectionApplied(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.corrections {
		if c.ID == id {
			c.WasApplied = true
			return nil
		}
	}
	return claims.NewNotFoundError("analyst_correction", id)
}

// ListCorrections retrieves corrections for a review item, oldest first.
func (s *MemoryStore) ListCorrections(ctx context.Context, reviewID string) ([]*claims.AnalystCorrection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*claims.AnalystCorrection
	for _, c := range s.corrections {
		if c.ReviewID == reviewID {
			copied := *c
			results = append(results, &copied)
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.Before(results[j].CreatedAt)
	})
	return results, nil
}

// LatestSnapshot retrieves the most recent snapshot for an API.
func (s *MemoryStore) LatestSnapshot(ctx context.Context, apiName string) (*claims.SchemaSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *claims.SchemaSnapshot
	for _, snap := range s.snapshots {
		if snap.APIName != apiName {
			continue
		}
		if latest == nil || snap.CreatedAt.After(latest.CreatedAt) || snap.CreatedAt.Equal(latest.CreatedAt) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, claims.NewNotFoundError("schema_snapshot", apiName)
	}
	copied := *latest
	return &copied, nil
}

// SaveSnapshot persists a snapshot; re-saving an existing (api, hash) pair
// is a no-op.
func (s *MemoryStore) SaveSnapshot(ctx context.Context, snap *claims.SchemaSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.snapshots {
		if existing.APIName == snap.APIName && existing.SchemaHash == snap.SchemaHash {
			return nil
		}
	}
	copied := *snap
	s.snapshots = append(s.snapshots, &copied)
	return nil
}

// AppendSchemaChange appends one change to the audit trail.
func (s *MemoryStore) AppendSchemaChange(ctx context.Context, change *claims.SchemaChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *change
	s.changes = append(s.changes, &copied)
	return nil
}

// ListSchemaChanges retrieves audit trail entries, newest first.
func (s *MemoryStore) ListSchemaChanges(ctx context.Context, filter claims.ChangeFilter) ([]*claims.SchemaChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*claims.SchemaChange
	for _, c := range s.changes {
		if filter.APIName != "" && c.APIName != filter.APIName {
			continue
		}
		if filter.Unacknowledged && c.Acknowledged {
			continue
		}
		copied := *c
		results = append(results, &copied)
	}

	// Newest first; insertion order breaks created_at ties (reversed).
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].CreatedAt.After(results[j].CreatedAt)
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// AcknowledgeSchemaChange marks a change as reviewed.
func (s *MemoryStore) AcknowledgeSchemaChange(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.changes {
		if c.ID == id {
			c.Acknowledged = true
			return nil
		}
	}
	return claims.NewNotFoundError("schema_change", id)
}

// InsertLearningEvent appends one entry to the learning event log.
func (s *MemoryStore) InsertLearningEvent(ctx context.Context, ev *claims.LearningEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *ev
	s.events = append(s.events, &copied)
	return nil
}

// LearningEvents returns a copy of the logged events (test helper).
func (s *MemoryStore) LearningEvents() []*claims.LearningEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]*claims.LearningEvent, 0, len(s.events))
	for _, ev := range s.events {
		copied := *ev
		results = append(results, &copied)
	}
	return results
}
