// Package config defines the service configuration: YAML file based with
// defaults, validation, and MERIDIAN_* environment variable overrides.
//
// Precedence, lowest to highest: built-in defaults, the YAML file,
// environment variables. The final configuration is validated as a whole;
// an invalid value anywhere fails startup rather than degrading silently.
package config
