// Package telemetry provides observability for the policy core.
//
// # Components
//
//   - logging: structured logging via log/slog
//   - metrics: Prometheus metrics collection
//   - health: liveness and readiness checks
package telemetry
