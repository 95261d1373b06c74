// Package drift detects structural changes in upstream API schemas and keeps
// the rule store in sync with newly appearing claim types.
//
// A schema's shape (endpoints, fields, claim types) is fingerprinted with a
// stable hash; the Differ compares fresh shapes against the latest stored
// snapshot per API and records every difference in an append-only audit
// trail. New claim types are auto-registered with a default detection rule
// and evidence mapping so claims of that type are handled immediately, if
// conservatively, until an analyst tunes the rules.
//
// Checks run on a cron schedule and, when the schema source is a file, on
// file change via a debounced fsnotify watcher. Checks for the same API
// never run concurrently; different APIs are independent.
package drift
