// Package review implements the manual review queue and the analyst
// correction feedback loop.
//
// # Queue
//
// Cases that automation cannot resolve (repeated rejections, low-confidence
// detections, escalations) are enqueued for a human analyst. Enqueueing is
// idempotent per (user, dispute) pair while an item is pending; the store's
// pending-uniqueness constraint is authoritative under concurrent enqueues.
// Items are served priority first, oldest first within a priority tier.
//
// # Corrections
//
// An analyst resolves a review by submitting a before/after correction.
// The Processor persists it, completes the review, and then feeds it back:
// rule and evidence corrections are applied to the rule store, and every
// correction is emitted as a learning event. The feedback steps run after
// the correction is committed and are never rolled back; a failed step is
// logged and leaves the correction recorded but unapplied or unfed.
package review
