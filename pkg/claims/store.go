package claims

import (
	"context"
	"time"
)

// RuleFilter narrows ListRules results.
type RuleFilter struct {
	// ClaimType restricts to one claim type; empty means all.
	ClaimType string

	// RuleType restricts to one rule type; empty means all.
	RuleType RuleType

	// ActiveOnly restricts to rules with is_active=true.
	ActiveOnly bool

	// EffectiveAt restricts to rules whose validity window contains the
	// given instant; nil disables the window check.
	EffectiveAt *time.Time
}

// ReviewFilter narrows ListReviewItems results.
type ReviewFilter struct {
	// Status restricts to one lifecycle state; empty means all.
	Status ReviewStatus

	// Priority restricts to one priority tier; empty means all.
	Priority ReviewPriority

	// ReviewType restricts to one review type; empty means all.
	ReviewType ReviewType

	// Limit caps the number of returned items; 0 means no cap.
	Limit int
}

// ChangeFilter narrows ListSchemaChanges results.
type ChangeFilter struct {
	// APIName restricts to one upstream API; empty means all.
	APIName string

	// Unacknowledged restricts to changes no operator has reviewed yet.
	Unacknowledged bool

	// Limit caps the number of returned changes; 0 means no cap.
	Limit int
}

// Store is the read/write contract against the persistent store. Meridian
// does not own durable storage; implementations adapt this contract to a
// backing engine (pkg/claims/storage provides SQLite and in-memory ones).
//
// Ordering contracts:
//   - ListRules returns rules ordered by priority descending, ties in
//     insertion order. Action-merge precedence depends on this.
//   - ListReviewItems returns items ordered by priority rank descending,
//     then created_at ascending (FIFO within a tier).
//
// Error contracts:
//   - Get/Latest lookups return *NotFoundError when no row matches.
//   - InsertReviewItem returns *ConflictError when a pending item for the
//     same (user_id, dispute_id) already exists.
//   - UpdateRule and UpdateEvidenceMapping are compare-and-swap: they return
//     *VersionConflictError when the stored version no longer equals
//     expectedVersion.
//   - All other failures are wrapped in *StorageError.
type Store interface {
	// Claim rules
	InsertRule(ctx context.Context, rule *ClaimRule) error
	GetRule(ctx context.Context, id string) (*ClaimRule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]*ClaimRule, error)
	UpdateRule(ctx context.Context, rule *ClaimRule, expectedVersion int) error

	// Evidence mappings
	InsertEvidenceMapping(ctx context.Context, m *EvidenceMapping) error
	GetEvidenceMapping(ctx context.Context, claimType, evidenceType string) (*EvidenceMapping, error)
	ListEvidenceMappings(ctx context.Context, claimType string) ([]*EvidenceMapping, error)
	UpdateEvidenceMapping(ctx context.Context, m *EvidenceMapping, expectedVersion int) error

	// Manual review queue
	InsertReviewItem(ctx context.Context, item *ReviewItem) error
	GetReviewItem(ctx context.Context, id string) (*ReviewItem, error)
	FindPendingReview(ctx context.Context, userID, disputeID string) (*ReviewItem, error)
	ListReviewItems(ctx context.Context, filter ReviewFilter) ([]*ReviewItem, error)
	UpdateReviewItem(ctx context.Context, item *ReviewItem) error

	// Analyst corrections
	InsertCorrection(ctx context.Context, c *AnalystCorrection) error
	MarkCorrectionApplied(ctx context.Context, id string) error
	ListCorrections(ctx context.Context, reviewID string) ([]*AnalystCorrection, error)

	// Schema drift
	LatestSnapshot(ctx context.Context, apiName string) (*SchemaSnapshot, error)
	SaveSnapshot(ctx context.Context, snap *SchemaSnapshot) error
	AppendSchemaChange(ctx context.Context, change *SchemaChange) error
	ListSchemaChanges(ctx context.Context, filter ChangeFilter) ([]*SchemaChange, error)
	AcknowledgeSchemaChange(ctx context.Context, id string) error

	// Learning event log
	InsertLearningEvent(ctx context.Context, ev *LearningEvent) error

	// Close releases resources held by the store.
	Close() error
}
