// Meridian is a hot-updatable policy engine for an automated claims pipeline.
//
// It serves claim evaluation over an HTTP API, backed by:
//   - A versioned rule and evidence store with TTL caching
//   - A manual review queue with analyst correction feedback
//   - A schema drift detector for upstream API shapes
//
// Usage:
//
//	# Start the server with default configuration
//	meridian run
//
//	# Start with a custom configuration file
//	meridian run --config /etc/meridian/config.yaml
//
//	# Validate a configuration file without starting
//	meridian validate
//
//	# Run a one-shot schema drift check
//	meridian check --source schemas.yaml
//
//	# Show version information
//	meridian version
package main

func main() {
	Execute()
}
