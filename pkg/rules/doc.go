// Package rules provides the hot-updatable claim rule store and the claim
// evaluator that the detection pipeline calls on every incoming claim.
//
// # Architecture
//
// The package has three layers:
//
//  1. Store - TTL-cached facade over the persistent claims.Store, with
//     compare-and-swap versioned writes and whole-cache invalidation
//  2. Condition predicates - typed predicates decoded from a rule's
//     persisted condition mapping
//  3. Evaluator - matches a claim against the active rule set and derives
//     evidence requirements from the evidence mappings
//
// # Caching
//
// Rule and evidence reads are cached per claim type for a fixed TTL
// (5 minutes by default). Any successful write flushes the entire cache
// rather than the touched claim type only; correctness over fine-grained
// efficiency. Cached rule sets are re-checked against the effective window
// on every read, so a rule whose window has closed is never served stale.
//
// # Failure Model
//
// Read paths fail open: a degraded persistent store yields empty results
// and a logged error so the claims pipeline keeps moving. Write paths
// return a success boolean and never panic or propagate store errors;
// callers decide whether to retry or alert.
//
// # Basic Usage
//
//	store := rules.NewStore(persistent,
//	    rules.WithMetrics(m),
//	)
//	eval := rules.NewEvaluator(store, m)
//
//	result := eval.EvaluateClaim(ctx, "shipping_damage", claimData)
//	if len(result.RequiredEvidence) > 0 {
//	    // gate filing until the evidence is collected
//	}
package rules
