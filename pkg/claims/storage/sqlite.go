package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // driver "sqlite3" (cgo)
	_ "modernc.org/sqlite"          // driver "sqlite" (pure Go)

	"clearway/meridian/pkg/claims"
)

// SQLiteConfig contains configuration for the SQLite storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// Driver selects the SQL driver: "sqlite3" (mattn, cgo) or
	// "sqlite" (modernc, pure Go).
	// Default: "sqlite3"
	Driver string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/claims.db",
		Driver:       "sqlite3",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements claims.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite storage backend. It initializes the
// database schema and enables WAL mode if configured.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if config.Driver == "" {
		config.Driver = "sqlite3"
	}

	logger := slog.Default().With("component", "claims.storage.sqlite")

	db, err := sql.Open(config.Driver, config.Path)
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("SQLite store initialized",
		"path", config.Path,
		"driver", config.Driver,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return claims.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return claims.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return claims.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return claims.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return claims.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return claims.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Close releases resources held by the store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return claims.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("SQLite store closed")
	return nil
}

// InsertRule persists a new claim rule.
func (s *SQLiteStore) InsertRule(ctx context.Context, rule *claims.ClaimRule) error {
	conditions, actions := marshalMap(rule.Conditions), marshalMap(rule.Actions)

	query := `
		INSERT INTO claim_rules (
			id, rule_name, claim_type, rule_type, conditions, actions,
			priority, is_active, version, effective_from, effective_until,
			updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rule.ID, rule.RuleName, rule.ClaimType, string(rule.RuleType),
		conditions, actions, rule.Priority, rule.IsActive, rule.Version,
		timePtr(rule.EffectiveFrom), timePtr(rule.EffectiveUntil),
		rule.UpdatedBy, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		return claims.NewStorageError("sqlite", "insert_rule", err)
	}
	return nil
}

// GetRule retrieves a claim rule by id.
func (s *SQLiteStore) GetRule(ctx context.Context, id string) (*claims.ClaimRule, error) {
	query := selectRuleColumns + ` WHERE id = ?`

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, claims.NewNotFoundError("claim_rule", id)
	}
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "get_rule", err)
	}
	return rule, nil
}

// ListRules retrieves claim rules matching the filter, ordered by priority
// descending with ties in insertion order.
func (s *SQLiteStore) ListRules(ctx context.Context, filter claims.RuleFilter) ([]*claims.ClaimRule, error) {
	var conditions []string
	var args []any

	if filter.ClaimType != "" {
		conditions = append(conditions, "claim_type = ?")
		args = append(args, filter.ClaimType)
	}
	if filter.RuleType != "" {
		conditions = append(conditions, "rule_type = ?")
		args = append(args, string(filter.RuleType))
	}
	if filter.ActiveOnly {
		conditions = append(conditions, "is_active = 1")
	}
	if filter.EffectiveAt != nil {
		conditions = append(conditions, "(effective_from IS NULL OR effective_from <= ?)")
		args = append(args, *filter.EffectiveAt)
		conditions = append(conditions, "(effective_until IS NULL OR effective_until > ?)")
		args = append(args, *filter.EffectiveAt)
	}

	query := selectRuleColumns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY priority DESC, created_at ASC, rowid ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "list_rules", err)
	}
	defer rows.Close()

	var rules []*claims.ClaimRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, claims.NewStorageError("sqlite", "scan_rule", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, claims.NewStorageError("sqlite", "list_rules", err)
	}
	return rules, nil
}

// UpdateRule writes a rule row if and only if the stored version still
// equals expectedVersion (compare-and-swap).
func (s *SQLiteStore) UpdateRule(ctx context.Context, rule *claims.ClaimRule, expectedVersion int) error {
	conditions, actions := marshalMap(rule.Conditions), marshalMap(rule.Actions)

	query := `
		UPDATE claim_rules
		SET rule_name = ?, claim_type = ?, rule_type = ?, conditions = ?,
		    actions = ?, priority = ?, is_active = ?, version = ?,
		    effective_from = ?, effective_until = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.RuleName, rule.ClaimType, string(rule.RuleType), conditions,
		actions, rule.Priority, rule.IsActive, rule.Version,
		timePtr(rule.EffectiveFrom), timePtr(rule.EffectiveUntil),
		rule.UpdatedBy, rule.UpdatedAt,
		rule.ID, expectedVersion,
	)
	if err != nil {
		return claims.NewStorageError("sqlite", "update_rule", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return claims.NewStorageError("sqlite", "update_rule", err)
	}
	if affected == 0 {
		return s.versionConflictOrNotFound(ctx, "claim_rules", "claim_rule", rule.ID, expectedVersion)
	}
	return nil
}

// InsertEvidenceMapping persists a new evidence mapping.
func (s *SQLiteStore) InsertEvidenceMapping(ctx context.Context, m *claims.EvidenceMapping) error {
	query := `
		INSERT INTO evidence_mappings (
			id, claim_type, evidence_type, requirement_level, conditions,
			weight, description, version, updated_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID, m.ClaimType, m.EvidenceType, string(m.RequirementLevel),
		marshalMap(m.Conditions), m.Weight, m.Description, m.Version,
		m.UpdatedBy, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return claims.NewConflictError("evidence_mapping",
				fmt.Sprintf("mapping for (%s, %s) already exists", m.ClaimType, m.EvidenceType))
		}
		return claims.NewStorageError("sqlite", "insert_evidence_mapping", err)
	}
	return nil
}

// GetEvidenceMapping retrieves the mapping for a (claim type, evidence type) pair.
func (s *SQLiteStore) GetEvidenceMapping(ctx context.Context, claimType, evidenceType string) (*claims.EvidenceMapping, error) {
	query := selectMappingColumns + ` WHERE claim_type = ? AND evidence_type = ?`

	m, err := scanMapping(s.db.QueryRowContext(ctx, query, claimType, evidenceType))
	if err == sql.ErrNoRows {
		return nil, claims.NewNotFoundError("evidence_mapping", claimType+"/"+evidenceType)
	}
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "get_evidence_mapping", err)
	}
	return m, nil
}

// ListEvidenceMappings retrieves all mappings for a claim type, weight descending.
func (s *SQLiteStore) ListEvidenceMappings(ctx context.Context, claimType string) ([]*claims.EvidenceMapping, error) {
	query := selectMappingColumns + ` WHERE claim_type = ? ORDER BY weight DESC, evidence_type ASC`

	rows, err := s.db.QueryContext(ctx, query, claimType)
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "list_evidence_mappings", err)
	}
	defer rows.Close()

	var mappings []*claims.EvidenceMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, claims.NewStorageError("sqlite", "scan_evidence_mapping", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, claims.NewStorageError("sqlite", "list_evidence_mappings", err)
	}
	return mappings, nil
}

// UpdateEvidenceMapping writes a mapping row under compare-and-swap.
func (s *SQLiteStore) UpdateEvidenceMapping(ctx context.Context, m *claims.EvidenceMapping, expectedVersion int) error {
	query := `
		UPDATE evidence_mappings
		SET requirement_level = ?, conditions = ?, weight = ?, description = ?,
		    version = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(m.RequirementLevel), marshalMap(m.Conditions), m.Weight,
		m.Description, m.Version, m.UpdatedBy, m.UpdatedAt,
		m.ID, expectedVersion,
	)
	if err != nil {
		return claims.NewStorageError("sqlite", "update_evidence_mapping", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return claims.NewStorageError("sqlite", "update_evidence_mapping", err)
	}
	if affected == 0 {
		return s.versionConflictOrNotFound(ctx, "evidence_mappings", "evidence_mapping", m.ID, expectedVersion)
	}
	return nil
}

// InsertReviewItem persists a new review item. A pending duplicate for the
// same (user_id, dispute_id) surfaces as ConflictError via the partial
// unique index.
func (s *SQLiteStore) InsertReviewItem(ctx context.Context, item *claims.ReviewItem) error {
	history, err := json.Marshal(item.RejectionHistory)
	if err != nil {
		return claims.NewStorageError("sqlite", "marshal_rejection_history", err)
	}

	query := `
		INSERT INTO manual_review_queue (
			id, user_id, dispute_id, review_type, priority, status, context,
			rejection_history, assigned_to, analyst_correction, correction_type,
			analyst_notes, fed_back_to_learning, learning_event_id,
			created_at, updated_at, assigned_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		item.ID, item.UserID, item.DisputeID, string(item.ReviewType),
		string(item.Priority), string(item.Status), marshalMap(item.Context),
		string(history), item.AssignedTo, nullableMap(item.AnalystCorrection),
		string(item.CorrectionType), item.AnalystNotes, item.FedBackToLearning,
		item.LearningEventID, item.CreatedAt, item.UpdatedAt,
		timePtr(item.AssignedAt), timePtr(item.CompletedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return claims.NewConflictError("review_item",
				fmt.Sprintf("pending review for user %q dispute %q already exists", item.UserID, item.DisputeID))
		}
		return claims.NewStorageError("sqlite", "insert_review_item", err)
	}
	return nil
}

// GetReviewItem retrieves a review item by id.
func (s *SQLiteStore) GetReviewItem(ctx context.Context, id string) (*claims.ReviewItem, error) {
	query := selectReviewColumns + ` WHERE id = ?`

	item, err := scanReview(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, claims.NewNotFoundError("review_item", id)
	}
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "get_review_item", err)
	}
	return item, nil
}

// FindPendingReview retrieves the pending item for a (user, dispute) pair.
func (s *SQLiteStore) FindPendingReview(ctx context.Context, userID, disputeID string) (*claims.ReviewItem, error) {
	query := selectReviewColumns + ` WHERE user_id = ? AND dispute_id = ? AND status = 'pending'`

	item, err := scanReview(s.db.QueryRowContext(ctx, query, userID, disputeID))
	if err == sql.ErrNoRows {
		return nil, claims.NewNotFoundError("review_item", userID+"/"+disputeID)
	}
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "find_pending_review", err)
	}
	return item, nil
}

// ListReviewItems retrieves review items matching the filter, ordered by
// priority rank descending then created_at ascending (FIFO within a tier).
func (s *SQLiteStore) ListReviewItems(ctx context.Context, filter claims.ReviewFilter) ([]*claims.ReviewItem, error) {
	var conditions []string
	var args []any

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.Priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, string(filter.Priority))
	}
	if filter.ReviewType != "" {
		conditions = append(conditions, "review_type = ?")
		args = append(args, string(filter.ReviewType))
	}

	query := selectReviewColumns
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += `
		ORDER BY CASE priority
			WHEN 'urgent' THEN 3
			WHEN 'high' THEN 2
			WHEN 'normal' THEN 1
			ELSE 0
		END DESC, created_at ASC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "list_review_items", err)
	}
	defer rows.Close()

	var items []*claims.ReviewItem
	for rows.Next() {
		item, err := scanReview(rows)
		if err != nil {
			return nil, claims.NewStorageError("sqlite", "scan_review_item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, claims.NewStorageError("sqlite", "list_review_items", err)
	}
	return items, nil
}

// UpdateReviewItem writes all mutable review item columns.
func (s *SQLiteStore) UpdateReviewItem(ctx context.Context, item *claims.ReviewItem) error {
	history, err := json.Marshal(item.RejectionHistory)
	if err != nil {
		return claims.NewStorageError("sqlite", "marshal_rejection_history", err)
	}

	query := `
		UPDATE manual_review_queue
		SET priority = ?, status = ?, context = ?, rejection_history = ?,
		    assigned_to = ?, analyst_correction = ?, correction_type = ?,
		    analyst_notes = ?, fed_back_to_learning = ?, learning_event_id = ?,
		    updated_at = ?, assigned_at = ?, completed_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(item.Priority), string(item.Status), marshalMap(item.Context),
		string(history), item.AssignedTo, nullableMap(item.AnalystCorrection),
		string(item.CorrectionType), item.AnalystNotes, item.FedBackToLearning,
		item.LearningEventID, item.UpdatedAt,
		timePtr(item.AssignedAt), timePtr(item.CompletedAt),
		item.ID,
	)
	if err != nil {
		return claims.NewStorageError("sqlite", "update_review_item", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return claims.NewStorageError("sqlite", "update_review_item", err)
	}
	if affected == 0 {
		return claims.NewNotFoundError("review_item", item.ID)
	}
	return nil
}

// InsertCorrection persists a new analyst correction.
func (s *SQLiteStore) InsertCorrection(ctx context.Context, c *claims.AnalystCorrection) error {
	query := `
		INSERT INTO analyst_corrections (
			id, review_id, analyst_id, correction_type, before_state,
			after_state, reasoning, impact_assessment, was_applied, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.ReviewID, c.AnalystID, string(c.CorrectionType),
		marshalMap(c.BeforeState), marshalMap(c.AfterState),
		c.Reasoning, c.ImpactAssessment, c.WasApplied, c.CreatedAt,
	)
	if err != nil {
		return claims.NewStorageError("sqlite", "insert_correction", err)
	}
	return nil
}

// MarkCorrectionApplied flips the was_applied flag.
func (s *SQLiteStore) MarkCorrectionApplied(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE analyst_corrections SET was_applied = 1 WHERE id = ?`, id)
	if err != nil {
		return claims.NewStorageError("sqlite", "mark_correction_applied", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return claims.NewStorageError("sqlite", "mark_correction_applied", err)
	}
	if affected == 0 {
		return claims.NewNotFoundError("analyst_correction", id)
	}
	return nil
}

// ListCorrections retrieves corrections for a review item, oldest first.
func (s *SQLiteStore) ListCorrections(ctx context.Context, reviewID string) ([]*claims.AnalystCorrection, error) {
	query := `
		SELECT id, review_id, analyst_id, correction_type, before_state,
		       after_state, reasoning, impact_assessment, was_applied, created_at
		FROM analyst_corrections
		WHERE review_id = ?
		ORDER BY created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, reviewID)
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "list_corrections", err)
	}
	defer rows.Close()

	var corrections []*claims.AnalystCorrection
	for rows.Next() {
		c := &claims.AnalystCorrection{}
		var ctype, before, after string
		err := rows.Scan(&c.ID, &c.ReviewID, &c.AnalystID, &ctype, &before,
			&after, &c.Reasoning, &c.ImpactAssessment, &c.WasApplied, &c.CreatedAt)
		if err != nil {
			return nil, claims.NewStorageError("sqlite", "scan_correction", err)
		}
		c.CorrectionType = claims.CorrectionType(ctype)
		c.BeforeState = unmarshalMap(before)
		c.AfterState = unmarshalMap(after)
		corrections = append(corrections, c)
	}
	if err := rows.Err(); err != nil {
		return nil, claims.NewStorageError("sqlite", "list_corrections", err)
	}
	return corrections, nil
}

// LatestSnapshot retrieves the most recent snapshot for an API.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, apiName string) (*claims.SchemaSnapshot, error) {
	query := `
		SELECT api_name, schema_hash, full_schema, created_at
		FROM schema_snapshots
		WHERE api_name = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`

	snap := &claims.SchemaSnapshot{}
	var fullSchema string
	err := s.db.QueryRowContext(ctx, query, apiName).Scan(
		&snap.APIName, &snap.SchemaHash, &fullSchema, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, claims.NewNotFoundError("schema_snapshot", apiName)
	}
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "latest_snapshot", err)
	}
	if err := json.Unmarshal([]byte(fullSchema), &snap.Schema); err != nil {
		return nil, claims.NewStorageError("sqlite", "unmarshal_snapshot", err)
	}
	return snap, nil
}

// SaveSnapshot persists a snapshot. Re-saving an (api_name, hash) pair that
// already exists is a no-op.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *claims.SchemaSnapshot) error {
	fullSchema, err := json.Marshal(snap.Schema)
	if err != nil {
		return claims.NewStorageError("sqlite", "marshal_snapshot", err)
	}

	query := `
		INSERT OR IGNORE INTO schema_snapshots (api_name, schema_hash, full_schema, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		snap.APIName, snap.SchemaHash, string(fullSchema), snap.CreatedAt)
	if err != nil {
		return claims.NewStorageError("sqlite", "save_snapshot", err)
	}
	return nil
}

// AppendSchemaChange appends one change to the audit trail.
func (s *SQLiteStore) AppendSchemaChange(ctx context.Context, change *claims.SchemaChange) error {
	query := `
		INSERT INTO schema_changes (
			id, api_name, endpoint, change_type, field_name,
			old_value, new_value, severity, acknowledged, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		change.ID, change.APIName, change.Endpoint, string(change.ChangeType),
		change.FieldName, nullableMap(change.OldValue), nullableMap(change.NewValue),
		string(change.Severity), change.Acknowledged, change.CreatedAt,
	)
	if err != nil {
		return claims.NewStorageError("sqlite", "append_schema_change", err)
	}
	return nil
}

// ListSchemaChanges retrieves audit trail entries, newest first.
func (s *SQLiteStore) ListSchemaChanges(ctx context.Context, filter claims.ChangeFilter) ([]*claims.SchemaChange, error) {
	var conditions []string
	var args []any

	if filter.APIName != "" {
		conditions = append(conditions, "api_name = ?")
		args = append(args, filter.APIName)
	}
	if filter.Unacknowledged {
		conditions = append(conditions, "acknowledged = 0")
	}

	query := `
		SELECT id, api_name, endpoint, change_type, field_name,
		       old_value, new_value, severity, acknowledged, created_at
		FROM schema_changes
	`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, claims.NewStorageError("sqlite", "list_schema_changes", err)
	}
	defer rows.Close()

	var changes []*claims.SchemaChange
	for rows.Next() {
		c := &claims.SchemaChange{}
		var ctype, severity string
		var oldVal, newVal sql.NullString
		err := rows.Scan(&c.ID, &c.APIName, &c.Endpoint, &ctype, &c.FieldName,
			&oldVal, &newVal, &severity, &c.Acknowledged, &c.CreatedAt)
		if err != nil {
			return nil, claims.NewStorageError("sqlite", "scan_schema_change", err)
		}
		c.ChangeType = claims.SchemaChangeType(ctype)
		c.Severity = claims.ChangeSeverity(severity)
		if oldVal.Valid {
			c.OldValue = unmarshalMap(oldVal.String)
		}
		if newVal.Valid {
			c.NewValue = unmarshalMap(newVal.String)
		}
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, claims.NewStorageError("sqlite", "list_schema_changes", err)
	}
	return changes, nil
}

// AcknowledgeSchemaChange marks a change as reviewed by an operator.
func (s *SQLiteStore) AcknowledgeSchemaChange(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE schema_changes SET acknowledged = 1 WHERE id = ?`, id)
	if err != nil {
		return claims.NewStorageError("sqlite", "acknowledge_schema_change", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return claims.NewStorageError("sqlite", "acknowledge_schema_change", err)
	}
	if affected == 0 {
		return claims.NewNotFoundError("schema_change", id)
	}
	return nil
}

// InsertLearningEvent appends one entry to the learning event log.
func (s *SQLiteStore) InsertLearningEvent(ctx context.Context, ev *claims.LearningEvent) error {
	query := `
		INSERT INTO learning_events (id, agent, event_type, metadata, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		ev.ID, ev.Agent, ev.EventType, marshalMap(ev.Metadata), ev.CreatedAt)
	if err != nil {
		return claims.NewStorageError("sqlite", "insert_learning_event", err)
	}
	return nil
}

const selectRuleColumns = `
	SELECT id, rule_name, claim_type, rule_type, conditions, actions,
	       priority, is_active, version, effective_from, effective_until,
	       updated_by, created_at, updated_at
	FROM claim_rules
`

const selectMappingColumns = `
	SELECT id, claim_type, evidence_type, requirement_level, conditions,
	       weight, description, version, updated_by, created_at, updated_at
	FROM evidence_mappings
`

const selectReviewColumns = `
	SELECT id, user_id, dispute_id, review_type, priority, status, context,
	       rejection_history, assigned_to, analyst_correction, correction_type,
	       analyst_notes, fed_back_to_learning, learning_event_id,
	       created_at, updated_at, assigned_at, completed_at
	FROM manual_review_queue
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*claims.ClaimRule, error) {
	rule := &claims.ClaimRule{}
	var ruleType, conditions, actions string
	var from, until sql.NullTime

	err := row.Scan(
		&rule.ID, &rule.RuleName, &rule.ClaimType, &ruleType, &conditions,
		&actions, &rule.Priority, &rule.IsActive, &rule.Version,
		&from, &until, &rule.UpdatedBy, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.RuleType = claims.RuleType(ruleType)
	rule.Conditions = unmarshalMap(conditions)
	rule.Actions = unmarshalMap(actions)
	if from.Valid {
		t := from.Time
		rule.EffectiveFrom = &t
	}
	if until.Valid {
		t := until.Time
		rule.EffectiveUntil = &t
	}
	return rule, nil
}

func scanMapping(row rowScanner) (*claims.EvidenceMapping, error) {
	m := &claims.EvidenceMapping{}
	var level, conditions string

	err := row.Scan(
		&m.ID, &m.ClaimType, &m.EvidenceType, &level, &conditions,
		&m.Weight, &m.Description, &m.Version, &m.UpdatedBy,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.RequirementLevel = claims.RequirementLevel(level)
	m.Conditions = unmarshalMap(conditions)
	return m, nil
}

func scanReview(row rowScanner) (*claims.ReviewItem, error) {
	item := &claims.ReviewItem{}
	var reviewType, priority, status, context, history, correctionType string
	var correction sql.NullString
	var assignedAt, completedAt sql.NullTime

	err := row.Scan(
		&item.ID, &item.UserID, &item.DisputeID, &reviewType, &priority,
		&status, &context, &history, &item.AssignedTo, &correction,
		&correctionType, &item.AnalystNotes, &item.FedBackToLearning,
		&item.LearningEventID, &item.CreatedAt, &item.UpdatedAt,
		&assignedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	item.ReviewType = claims.ReviewType(reviewType)
	item.Priority = claims.ReviewPriority(priority)
	item.Status = claims.ReviewStatus(status)
	item.CorrectionType = claims.CorrectionType(correctionType)
	item.Context = unmarshalMap(context)
	if history != "" {
		json.Unmarshal([]byte(history), &item.RejectionHistory)
	}
	if correction.Valid {
		item.AnalystCorrection = unmarshalMap(correction.String)
	}
	if assignedAt.Valid {
		t := assignedAt.Time
		item.AssignedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		item.CompletedAt = &t
	}
	return item, nil
}

// versionConflictOrNotFound disambiguates a zero-row CAS update: the row may
// be missing entirely, or its version may have moved.
func (s *SQLiteStore) versionConflictOrNotFound(ctx context.Context, table, kind, id string, expected int) error {
	var exists int
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE id = ?", table)
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&exists); err != nil {
		return claims.NewStorageError("sqlite", "update_"+kind, err)
	}
	if exists == 0 {
		return claims.NewNotFoundError(kind, id)
	}
	return claims.NewVersionConflictError(kind, id, expected)
}

func marshalMap(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalMap(s string) map[string]any {
	if s == "" {
		return map[string]any{}
	}
	m := map[string]any{}
	json.Unmarshal([]byte(s), &m)
	return m
}

func nullableMap(m map[string]any) any {
	if m == nil {
		return nil
	}
	return marshalMap(m)
}

func timePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// Both drivers surface the SQLite error text; matching on it avoids a
	// hard dependency on either driver's error type.
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}
