package claims

import "time"

// RuleType classifies what a claim rule governs.
type RuleType string

const (
	// RuleTypeDetection marks rules that decide whether a claim is created.
	RuleTypeDetection RuleType = "detection"

	// RuleTypeValidation marks rules that validate claim data before filing.
	RuleTypeValidation RuleType = "validation"

	// RuleTypeEvidenceRequirement marks rules that gate on evidence presence.
	RuleTypeEvidenceRequirement RuleType = "evidence_requirement"

	// RuleTypeThreshold marks rules carrying numeric cutoffs.
	RuleTypeThreshold RuleType = "threshold"

	// RuleTypeFiling marks rules that control how a claim is filed.
	RuleTypeFiling RuleType = "filing"

	// RuleTypeDeadline marks rules that carry filing deadlines.
	RuleTypeDeadline RuleType = "deadline"
)

// Valid reports whether rt is a known rule type.
func (rt RuleType) Valid() bool {
	switch rt {
	case RuleTypeDetection, RuleTypeValidation, RuleTypeEvidenceRequirement,
		RuleTypeThreshold, RuleTypeFiling, RuleTypeDeadline:
		return true
	}
	return false
}

// ClaimRule is a versioned, time-windowed predicate-to-action mapping that
// decides detection, validation, and filing behavior for a claim type.
type ClaimRule struct {
	// ID is the rule's unique identifier (UUID v4).
	ID string `json:"id"`

	// RuleName is the human-readable rule name.
	RuleName string `json:"rule_name"`

	// ClaimType is the claim type this rule applies to.
	ClaimType string `json:"claim_type"`

	// RuleType classifies what the rule governs.
	RuleType RuleType `json:"rule_type"`

	// Conditions maps field names to predicate specs. Keys suffixed "_min"
	// and "_max" carry numeric thresholds; boolean values require strict
	// equality; everything else is exact match. An empty map always matches.
	Conditions map[string]any `json:"conditions"`

	// Actions maps action names to values. The engine treats values as
	// opaque; they are merged across matched rules and handed to the caller.
	Actions map[string]any `json:"actions"`

	// Priority orders evaluation; higher priority rules are evaluated first
	// and their actions are overwritten by later (lower priority) matches.
	Priority int `json:"priority"`

	// IsActive gates the rule without deleting it.
	IsActive bool `json:"is_active"`

	// Version increases by exactly one on every successful update.
	Version int `json:"version"`

	// EffectiveFrom is the inclusive start of the rule's validity window.
	// Nil means no lower bound.
	EffectiveFrom *time.Time `json:"effective_from"`

	// EffectiveUntil is the exclusive end of the validity window.
	// Nil means open-ended.
	EffectiveUntil *time.Time `json:"effective_until"`

	// UpdatedBy records who performed the last mutation.
	UpdatedBy string `json:"updated_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveAt reports whether the rule's validity window contains t.
// The window is [EffectiveFrom, EffectiveUntil) with nil bounds open.
func (r *ClaimRule) EffectiveAt(t time.Time) bool {
	if r.EffectiveFrom != nil && t.Before(*r.EffectiveFrom) {
		return false
	}
	if r.EffectiveUntil != nil && !t.Before(*r.EffectiveUntil) {
		return false
	}
	return true
}

// RequirementLevel expresses how strongly an evidence type is required.
type RequirementLevel string

const (
	RequirementMandatory   RequirementLevel = "mandatory"
	RequirementRecommended RequirementLevel = "recommended"
	RequirementOptional    RequirementLevel = "optional"
	RequirementConditional RequirementLevel = "conditional"
)

// Valid reports whether rl is a known requirement level.
func (rl RequirementLevel) Valid() bool {
	switch rl {
	case RequirementMandatory, RequirementRecommended, RequirementOptional, RequirementConditional:
		return true
	}
	return false
}

// CanonicalWeight returns the conventional weight for a requirement level.
// Mandatory evidence weighs 1.00 and recommended 0.85; other levels keep
// whatever weight they already carry (returned as -1 for "no convention").
func (rl RequirementLevel) CanonicalWeight() float64 {
	switch rl {
	case RequirementMandatory:
		return 1.00
	case RequirementRecommended:
		return 0.85
	}
	return -1
}

// EvidenceMapping is a versioned requirement describing whether an evidence
// type is mandatory, recommended, optional, or conditional for a claim type.
type EvidenceMapping struct {
	// ID is the mapping's unique identifier (UUID v4).
	ID string `json:"id"`

	// ClaimType is the claim type the requirement applies to.
	ClaimType string `json:"claim_type"`

	// EvidenceType names the evidence artifact (e.g. "invoice", "tracking").
	EvidenceType string `json:"evidence_type"`

	// RequirementLevel is how strongly the evidence is required.
	RequirementLevel RequirementLevel `json:"requirement_level"`

	// Conditions optionally scope when the requirement applies, using the
	// same predicate encoding as ClaimRule.Conditions.
	Conditions map[string]any `json:"conditions"`

	// Weight is the requirement's weight; conventionally 1.0 for mandatory.
	Weight float64 `json:"weight"`

	// Description is free-form operator documentation.
	Description string `json:"description"`

	// Version increases by exactly one on every successful update.
	Version int `json:"version"`

	// UpdatedBy records who performed the last mutation.
	UpdatedBy string `json:"updated_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
