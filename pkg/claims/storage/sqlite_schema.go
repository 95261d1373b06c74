package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the claims database schema.
const Schema = `
-- Claim rules: versioned, time-windowed predicate->action mappings
CREATE TABLE IF NOT EXISTS claim_rules (
    id TEXT PRIMARY KEY,
    rule_name TEXT NOT NULL,
    claim_type TEXT NOT NULL,
    rule_type TEXT NOT NULL,
    conditions TEXT NOT NULL DEFAULT '{}',
    actions TEXT NOT NULL DEFAULT '{}',
    priority INTEGER NOT NULL DEFAULT 0,
    is_active BOOLEAN NOT NULL DEFAULT 1,
    version INTEGER NOT NULL DEFAULT 1,
    effective_from TIMESTAMP,
    effective_until TIMESTAMP,
    updated_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_claim_rules_type ON claim_rules(claim_type, rule_type);
CREATE INDEX IF NOT EXISTS idx_claim_rules_active ON claim_rules(claim_type, is_active);

-- Evidence mappings: per claim type evidence requirements
CREATE TABLE IF NOT EXISTS evidence_mappings (
    id TEXT PRIMARY KEY,
    claim_type TEXT NOT NULL,
    evidence_type TEXT NOT NULL,
    requirement_level TEXT NOT NULL,
    conditions TEXT NOT NULL DEFAULT '{}',
    weight REAL NOT NULL DEFAULT 1.0,
    description TEXT NOT NULL DEFAULT '',
    version INTEGER NOT NULL DEFAULT 1,
    updated_by TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    UNIQUE(claim_type, evidence_type)
);

CREATE INDEX IF NOT EXISTS idx_evidence_mappings_claim ON evidence_mappings(claim_type);

-- Manual review queue
CREATE TABLE IF NOT EXISTS manual_review_queue (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    dispute_id TEXT NOT NULL DEFAULT '',
    review_type TEXT NOT NULL,
    priority TEXT NOT NULL DEFAULT 'normal',
    status TEXT NOT NULL DEFAULT 'pending',
    context TEXT NOT NULL DEFAULT '{}',
    rejection_history TEXT NOT NULL DEFAULT '[]',
    assigned_to TEXT NOT NULL DEFAULT '',
    analyst_correction TEXT,
    correction_type TEXT NOT NULL DEFAULT '',
    analyst_notes TEXT NOT NULL DEFAULT '',
    fed_back_to_learning BOOLEAN NOT NULL DEFAULT 0,
    learning_event_id TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    assigned_at TIMESTAMP,
    completed_at TIMESTAMP
);

-- At most one pending item per (user, dispute). This index is the
-- authoritative dedup guard; the service-level read-then-insert check is
-- only an optimization.
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_pending_dedup
    ON manual_review_queue(user_id, dispute_id) WHERE status = 'pending';

CREATE INDEX IF NOT EXISTS idx_review_status ON manual_review_queue(status, created_at);

-- Analyst corrections: immutable after creation except was_applied
CREATE TABLE IF NOT EXISTS analyst_corrections (
    id TEXT PRIMARY KEY,
    review_id TEXT NOT NULL REFERENCES manual_review_queue(id),
    analyst_id TEXT NOT NULL,
    correction_type TEXT NOT NULL,
    before_state TEXT NOT NULL DEFAULT '{}',
    after_state TEXT NOT NULL DEFAULT '{}',
    reasoning TEXT NOT NULL DEFAULT '',
    impact_assessment TEXT NOT NULL DEFAULT '',
    was_applied BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_corrections_review ON analyst_corrections(review_id);

-- Schema snapshots: one logical row per (api_name, hash)
CREATE TABLE IF NOT EXISTS schema_snapshots (
    api_name TEXT NOT NULL,
    schema_hash TEXT NOT NULL,
    full_schema TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    UNIQUE(api_name, schema_hash)
);

CREATE INDEX IF NOT EXISTS idx_snapshots_api ON schema_snapshots(api_name, created_at DESC);

-- Schema changes: append-only audit trail
CREATE TABLE IF NOT EXISTS schema_changes (
    id TEXT PRIMARY KEY,
    api_name TEXT NOT NULL,
    endpoint TEXT NOT NULL DEFAULT '',
    change_type TEXT NOT NULL,
    field_name TEXT NOT NULL DEFAULT '',
    old_value TEXT,
    new_value TEXT,
    severity TEXT NOT NULL DEFAULT 'info',
    acknowledged BOOLEAN NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_schema_changes_api ON schema_changes(api_name, created_at DESC);

-- Learning event log
CREATE TABLE IF NOT EXISTS learning_events (
    id TEXT PRIMARY KEY,
    agent TEXT NOT NULL,
    event_type TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL
);

-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// InsertSchemaVersion records the schema version (idempotent).
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion retrieves the current schema version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version;`
