// Package claims defines the domain model and persistence contract for the
// Meridian policy engine: versioned claim rules, evidence mappings, the
// manual review queue, analyst corrections, and schema drift records.
//
// # Architecture
//
// The package is intentionally free of behavior. It holds:
//
//  1. Record types - ClaimRule, EvidenceMapping, ReviewItem,
//     AnalystCorrection, SchemaSnapshot, SchemaChange
//  2. Store interface - the read/write contract against the persistent store
//  3. Typed errors - NotFoundError, ConflictError, VersionConflictError,
//     StorageError
//
// Behavior lives in the consumer packages:
//
//   - pkg/claims/storage - SQLite and in-memory Store implementations
//   - pkg/rules          - cached rule store and condition evaluation
//   - pkg/review         - review queue and correction processing
//   - pkg/drift          - schema drift detection and auto-registration
//
// # Versioning discipline
//
// ClaimRule and EvidenceMapping rows are never physically deleted. Mutations
// go through compare-and-swap updates: a writer reads version N and writes
// version N+1 only if the stored version is still N. A lost race surfaces as
// VersionConflictError rather than a silently dropped write.
package claims
