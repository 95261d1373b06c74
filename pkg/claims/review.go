package claims

import "time"

// ReviewType is the reason a case entered the manual review queue.
type ReviewType string

const (
	ReviewTypeRepeatedRejection ReviewType = "repeated_rejection"
	ReviewTypeLowConfidence     ReviewType = "low_confidence"
	ReviewTypeNewPattern        ReviewType = "new_pattern"
	ReviewTypeEdgeCase          ReviewType = "edge_case"
	ReviewTypeEscalation        ReviewType = "escalation"
	ReviewTypeQualityCheck      ReviewType = "quality_check"
)

// Valid reports whether rt is a known review type.
func (rt ReviewType) Valid() bool {
	switch rt {
	case ReviewTypeRepeatedRejection, ReviewTypeLowConfidence, ReviewTypeNewPattern,
		ReviewTypeEdgeCase, ReviewTypeEscalation, ReviewTypeQualityCheck:
		return true
	}
	return false
}

// ReviewPriority orders items within the review queue.
type ReviewPriority string

const (
	PriorityLow    ReviewPriority = "low"
	PriorityNormal ReviewPriority = "normal"
	PriorityHigh   ReviewPriority = "high"
	PriorityUrgent ReviewPriority = "urgent"
)

// Rank returns the numeric ordering weight of a priority; higher sorts first.
func (p ReviewPriority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	case PriorityLow:
		return 0
	}
	return 0
}

// Valid reports whether p is a known priority.
func (p ReviewPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// ReviewStatus is the review item's position in its lifecycle.
//
// Transitions: pending → assigned → in_review → completed, with archived
// reachable from any non-terminal state.
type ReviewStatus string

const (
	StatusPending   ReviewStatus = "pending"
	StatusAssigned  ReviewStatus = "assigned"
	StatusInReview  ReviewStatus = "in_review"
	StatusCompleted ReviewStatus = "completed"
	StatusArchived  ReviewStatus = "archived"
)

// Terminal reports whether no further transition is allowed from s.
func (s ReviewStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusArchived
}

// Rejection is one entry in a review item's rejection history.
type Rejection struct {
	// Reason is the rejection reason reported by the upstream processor.
	Reason string `json:"reason"`

	// Source identifies which collaborator rejected (e.g. "psp", "filing").
	Source string `json:"source,omitempty"`

	// OccurredAt is when the rejection happened.
	OccurredAt time.Time `json:"occurred_at,omitempty"`
}

// ReviewItem is a queued case requiring human judgment.
//
// Invariant: at most one item with status=pending exists per
// (UserID, DisputeID) pair. The store enforces this with a partial unique
// index; Queue.Add treats a violation as "someone else enqueued first" and
// returns the existing item.
type ReviewItem struct {
	// ID is the item's unique identifier (UUID v4).
	ID string `json:"id"`

	// UserID is the user whose case needs review.
	UserID string `json:"user_id"`

	// DisputeID is the dispute under review; empty when the review is not
	// tied to a specific dispute.
	DisputeID string `json:"dispute_id,omitempty"`

	// ReviewType is the reason the item was queued.
	ReviewType ReviewType `json:"review_type"`

	// Priority orders the item within the queue.
	Priority ReviewPriority `json:"priority"`

	// Status is the item's lifecycle state.
	Status ReviewStatus `json:"status"`

	// Context is free-form structured data handed to the analyst
	// (claim data, detection confidence, detected patterns, ...).
	Context map[string]any `json:"context"`

	// RejectionHistory is the ordered list of rejections that led here.
	RejectionHistory []Rejection `json:"rejection_history,omitempty"`

	// AssignedTo is the analyst the item is assigned to.
	AssignedTo string `json:"assigned_to,omitempty"`

	// AnalystCorrection is the correction's after-state, copied onto the
	// item at completion.
	AnalystCorrection map[string]any `json:"analyst_correction,omitempty"`

	// CorrectionType mirrors the applied correction's type.
	CorrectionType CorrectionType `json:"correction_type,omitempty"`

	// AnalystNotes carries the analyst's reasoning.
	AnalystNotes string `json:"analyst_notes,omitempty"`

	// FedBackToLearning is set once the correction was emitted as a
	// learning event.
	FedBackToLearning bool `json:"fed_back_to_learning"`

	// LearningEventID references the emitted learning event.
	LearningEventID string `json:"learning_event_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CorrectionType is what kind of change an analyst correction encodes.
type CorrectionType string

const (
	CorrectionRuleUpdate          CorrectionType = "rule_update"
	CorrectionEvidenceMapping     CorrectionType = "evidence_mapping"
	CorrectionThresholdAdjustment CorrectionType = "threshold_adjustment"
	CorrectionNewPattern          CorrectionType = "new_pattern"
	CorrectionNoAction            CorrectionType = "no_action"
	CorrectionEscalate            CorrectionType = "escalate"
)

// Valid reports whether ct is a known correction type.
func (ct CorrectionType) Valid() bool {
	switch ct {
	case CorrectionRuleUpdate, CorrectionEvidenceMapping, CorrectionThresholdAdjustment,
		CorrectionNewPattern, CorrectionNoAction, CorrectionEscalate:
		return true
	}
	return false
}

// AnalystCorrection is a human-authored before/after change applied to the
// rule or evidence store. Created once per review resolution; immutable
// after creation except for WasApplied.
type AnalystCorrection struct {
	// ID is the correction's unique identifier (UUID v4).
	ID string `json:"id"`

	// ReviewID references the resolved review item.
	ReviewID string `json:"review_id"`

	// AnalystID identifies the analyst who authored the correction.
	AnalystID string `json:"analyst_id"`

	// CorrectionType selects how the correction is applied.
	CorrectionType CorrectionType `json:"correction_type"`

	// BeforeState captures the state the analyst saw.
	BeforeState map[string]any `json:"before_state"`

	// AfterState is the intended state. For rule_update corrections it
	// carries "rule_id" and "updates"; for evidence_mapping corrections
	// "claim_type", "evidence_type", and "updates".
	AfterState map[string]any `json:"after_state"`

	// Reasoning is the analyst's free-form justification.
	Reasoning string `json:"reasoning"`

	// ImpactAssessment is the analyst's estimate of blast radius.
	ImpactAssessment string `json:"impact_assessment,omitempty"`

	// WasApplied is set after the correction was dispatched to the store.
	WasApplied bool `json:"was_applied"`

	CreatedAt time.Time `json:"created_at"`
}
