// Package metrics provides Prometheus instrumentation for the policy core:
// cache effectiveness, claim evaluations, review queue activity, analyst
// corrections, and detected schema changes.
//
// All collectors live under the "meridian" namespace. A nil *Metrics is a
// valid no-op receiver, so services can run uninstrumented in tests without
// guarding every call site.
package metrics
