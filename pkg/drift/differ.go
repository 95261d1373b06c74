package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/rules"
	"clearway/meridian/pkg/telemetry/metrics"
)

// Differ detects drift in upstream API schemas by comparing fresh schema
// descriptions against the latest stored snapshot per API.
type Differ struct {
	store   claims.Store
	rules   *rules.Store
	events  events.Logger
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time

	// mu guards locks; each API name gets its own mutex so checks for the
	// same API serialize while different APIs run concurrently.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// DifferOption configures a Differ.
type DifferOption func(*Differ)

// WithDifferClock replaces the wall clock for tests.
func WithDifferClock(now func() time.Time) DifferOption {
	return func(d *Differ) { d.now = now }
}

// WithDifferMetrics attaches Prometheus instrumentation.
func WithDifferMetrics(m *metrics.Metrics) DifferOption {
	return func(d *Differ) { d.metrics = m }
}

// NewDiffer creates a schema differ.
func NewDiffer(store claims.Store, ruleStore *rules.Store, eventLog events.Logger, opts ...DifferOption) *Differ {
	d := &Differ{
		store:  store,
		rules:  ruleStore,
		events: eventLog,
		logger: slog.Default().With("component", "drift.differ"),
		now:    time.Now,
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Differ) lockFor(apiName string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[apiName]
	if !ok {
		l = &sync.Mutex{}
		d.locks[apiName] = l
	}
	return l
}

// CheckAPISchema compares a fresh schema description against the latest
// stored snapshot for the API and returns the detected changes.
//
// An unchanged hash returns no changes and writes nothing. A first sighting
// records one informational new_endpoint change. Otherwise the field,
// endpoint, and claim type sets are diffed symmetrically; every added claim
// type is auto-registered into the rule store. On any change the new
// snapshot is persisted and every change is appended to the audit trail.
//
// Checks for the same API serialize; different APIs proceed concurrently.
func (d *Differ) CheckAPISchema(ctx context.Context, apiName string, schema *claims.APISchema) ([]*claims.SchemaChange, error) {
	lock := d.lockFor(apiName)
	lock.Lock()
	defer lock.Unlock()

	hash, err := Fingerprint(schema)
	if err != nil {
		return nil, err
	}

	prior, err := d.store.LatestSnapshot(ctx, apiName)
	if err != nil && !claims.IsNotFound(err) {
		return nil, fmt.Errorf("failed to load latest snapshot for %q: %w", apiName, err)
	}

	if prior != nil && prior.SchemaHash == hash {
		d.logger.Debug("schema unchanged", "api_name", apiName)
		return nil, nil
	}

	var changes []*claims.SchemaChange
	if prior == nil {
		first := d.newChange(apiName, claims.ChangeNewEndpoint, claims.SeverityInfo)
		first.NewValue = map[string]any{"endpoints": schema.Endpoints}
		changes = append(changes, first)
	} else {
		changes = d.diff(apiName, &prior.Schema, schema)
	}

	for _, change := range changes {
		if change.ChangeType == claims.ChangeNewClaimType {
			if !d.AutoRegisterClaimType(ctx, change.FieldName) {
				d.logger.Warn("auto-registration failed",
					"api_name", apiName,
					"claim_type", change.FieldName,
				)
			}
		}
	}

	if err := d.store.SaveSnapshot(ctx, &claims.SchemaSnapshot{
		APIName:    apiName,
		SchemaHash: hash,
		Schema:     *schema,
		CreatedAt:  d.now(),
	}); err != nil {
		return nil, fmt.Errorf("failed to persist snapshot for %q: %w", apiName, err)
	}

	for _, change := range changes {
		if err := d.store.AppendSchemaChange(ctx, change); err != nil {
			d.logger.Error("failed to append schema change",
				"api_name", apiName,
				"change_type", change.ChangeType,
				"error", err,
			)
			continue
		}
		d.metrics.SchemaChangeDetected(apiName, string(change.ChangeType))
	}

	if len(changes) > 0 {
		if _, err := d.events.LogEvent(ctx, events.AgentLearning, events.EventSchemaChange, map[string]any{
			"api_name":     apiName,
			"change_count": len(changes),
			"schema_hash":  hash,
		}); err != nil {
			d.logger.Error("failed to emit schema change event",
				"api_name", apiName,
				"error", err,
			)
		}
	}

	d.logger.Info("schema checked",
		"api_name", apiName,
		"changes", len(changes),
	)
	return changes, nil
}

// diff computes the symmetric differences between two schema descriptions.
func (d *Differ) diff(apiName string, before, after *claims.APISchema) []*claims.SchemaChange {
	var changes []*claims.SchemaChange

	added, removed := diffSets(before.Fields, after.Fields)
	for _, f := range added {
		c := d.newChange(apiName, claims.ChangeNewField, claims.SeverityInfo)
		c.FieldName = f
		changes = append(changes, c)
	}
	for _, f := range removed {
		c := d.newChange(apiName, claims.ChangeDeprecatedField, claims.SeverityWarning)
		c.FieldName = f
		changes = append(changes, c)
	}

	added, removed = diffSets(before.Endpoints, after.Endpoints)
	for _, e := range added {
		c := d.newChange(apiName, claims.ChangeNewEndpoint, claims.SeverityInfo)
		c.Endpoint = e
		changes = append(changes, c)
	}
	for _, e := range removed {
		c := d.newChange(apiName, claims.ChangeDeprecatedEndpoint, claims.SeverityWarning)
		c.Endpoint = e
		changes = append(changes, c)
	}

	added, _ = diffSets(before.ClaimTypes, after.ClaimTypes)
	for _, ct := range added {
		c := d.newChange(apiName, claims.ChangeNewClaimType, claims.SeverityInfo)
		c.FieldName = ct
		changes = append(changes, c)
	}

	return changes
}

func (d *Differ) newChange(apiName string, changeType claims.SchemaChangeType, severity claims.ChangeSeverity) *claims.SchemaChange {
	return &claims.SchemaChange{
		ID:         uuid.New().String(),
		APIName:    apiName,
		ChangeType: changeType,
		Severity:   severity,
		CreatedAt:  d.now(),
	}
}

// AutoRegisterClaimType seeds the rule store for a newly appeared claim
// type: one default detection rule and one mandatory invoice mapping.
// Re-invocation for an already-registered type is a no-op.
func (d *Differ) AutoRegisterClaimType(ctx context.Context, claimType string) bool {
	existing := d.rules.GetClaimRules(ctx, claimType, claims.RuleTypeDetection)
	if len(existing) > 0 {
		d.logger.Debug("claim type already registered", "claim_type", claimType)
		return true
	}

	_, ok := d.rules.CreateRule(ctx, &claims.ClaimRule{
		RuleName:   fmt.Sprintf("auto_detect_%s", claimType),
		ClaimType:  claimType,
		RuleType:   claims.RuleTypeDetection,
		Conditions: map[string]any{},
		Actions:    map[string]any{"create_claim": true, "auto_file": false},
		Priority:   50,
		IsActive:   true,
	}, "schema-differ")
	if !ok {
		return false
	}

	if _, ok := d.rules.CreateEvidenceMapping(ctx, &claims.EvidenceMapping{
		ClaimType:        claimType,
		EvidenceType:     "invoice",
		RequirementLevel: claims.RequirementMandatory,
		Weight:           1.0,
		Description:      "default mapping created on auto-registration",
	}, "schema-differ"); !ok {
		return false
	}

	d.logger.Info("claim type auto-registered", "claim_type", claimType)
	return true
}

// diffSets returns the elements added in after and removed from before,
// preserving the order of the input slices.
func diffSets(before, after []string) (added, removed []string) {
	beforeSet := make(map[string]bool, len(before))
	for _, v := range before {
		beforeSet[v] = true
	}
	afterSet := make(map[string]bool, len(after))
	for _, v := range after {
		afterSet[v] = true
	}

	for _, v := range after {
		if !beforeSet[v] {
			added = append(added, v)
		}
	}
	for _, v := range before {
		if !afterSet[v] {
			removed = append(removed, v)
		}
	}
	return added, removed
}
