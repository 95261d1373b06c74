package drift

import (
	"context"
	"testing"
	"time"

	"clearway/meridian/pkg/claims"
	"clearway/meridian/pkg/claims/storage"
	"clearway/meridian/pkg/events"
	"clearway/meridian/pkg/rules"
)

type differFixture struct {
	differ *Differ
	store  *storage.MemoryStore
	rules  *rules.Store
	events *events.MemoryLogger
}

func newDifferFixture(t *testing.T) *differFixture {
	t.Helper()
	mem := storage.NewMemoryStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	ruleStore := rules.NewStore(mem, rules.WithClock(clock))
	eventLog := events.NewMemoryLogger()
	return &differFixture{
		differ: NewDiffer(mem, ruleStore, eventLog, WithDifferClock(clock)),
		store:  mem,
		rules:  ruleStore,
		events: eventLog,
	}
}

func baseSchema() *claims.APISchema {
	return &claims.APISchema{
		Endpoints:  []string{"/orders"},
		Fields:     []string{"order_id", "amount"},
		ClaimTypes: []string{"lost_package"},
	}
}

func TestCheckAPISchemaFirstSighting(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	changes, err := f.differ.CheckAPISchema(ctx, "amazon_orders", baseSchema())
	if err != nil {
		t.Fatal(err)
	}
	if len(changes) != 1 {
		t.Fatalf("got %d changes, want 1", len(changes))
	}
	if changes[0].ChangeType != claims.ChangeNewEndpoint || changes[0].Severity != claims.SeverityInfo {
		t.Errorf("change = %s/%s, want new_endpoint/info", changes[0].ChangeType, changes[0].Severity)
	}

	snap, err := f.store.LatestSnapshot(ctx, "amazon_orders")
	if err != nil {
		t.Fatal(err)
	}
	if snap.SchemaHash == "" {
		t.Error("snapshot missing hash")
	}

	audit, err := f.store.ListSchemaChanges(ctx, claims.ChangeFilter{APIName: "amazon_orders"})
	if err != nil {
		t.Fatal(err)
	}
	if len(audit) != 1 {
		t.Errorf("audit trail has %d changes, want 1", len(audit))
	}
}

func TestCheckAPISchemaUnchangedHashWritesNothing(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	if _, err := f.differ.CheckAPISchema(ctx, "api", baseSchema()); err != nil {
		t.Fatal(err)
	}
	eventsBefore := len(f.events.Events())

	changes, err := f.differ.CheckAPISchema(ctx, "api", baseSchema())
	if err != nil {
		t.Fatal(err)
	}
	if changes != nil {
		t.Errorf("unchanged schema produced %d changes", len(changes))
	}

	audit, _ := f.store.ListSchemaChanges(ctx, claims.ChangeFilter{APIName: "api"})
	if len(audit) != 1 {
		t.Errorf("audit trail grew to %d on unchanged schema", len(audit))
	}
	if len(f.events.Events()) != eventsBefore {
		t.Error("unchanged schema emitted a learning event")
	}
}

func TestCheckAPISchemaFieldAndEndpointDiffs(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	if _, err := f.differ.CheckAPISchema(ctx, "api", baseSchema()); err != nil {
		t.Fatal(err)
	}

	next := &claims.APISchema{
		Endpoints:  []string{"/orders", "/refunds"},
		Fields:     []string{"order_id", "tracking_number"},
		ClaimTypes: []string{"lost_package"},
	}
	changes, err := f.differ.CheckAPISchema(ctx, "api", next)
	if err != nil {
		t.Fatal(err)
	}

	got := map[claims.SchemaChangeType][]string{}
	severities := map[claims.SchemaChangeType]claims.ChangeSeverity{}
	for _, c := range changes {
		detail := c.FieldName
		if detail == "" {
			detail = c.Endpoint
		}
		got[c.ChangeType] = append(got[c.ChangeType], detail)
		severities[c.ChangeType] = c.Severity
	}

	if want := []string{"tracking_number"}; !equalStrings(got[claims.ChangeNewField], want) {
		t.Errorf("new_field = %v, want %v", got[claims.ChangeNewField], want)
	}
	if want := []string{"amount"}; !equalStrings(got[claims.ChangeDeprecatedField], want) {
		t.Errorf("deprecated_field = %v, want %v", got[claims.ChangeDeprecatedField], want)
	}
	if want := []string{"/refunds"}; !equalStrings(got[claims.ChangeNewEndpoint], want) {
		t.Errorf("new_endpoint = %v, want %v", got[claims.ChangeNewEndpoint], want)
	}
	if severities[claims.ChangeDeprecatedField] != claims.SeverityWarning {
		t.Errorf("deprecated_field severity = %s, want warning", severities[claims.ChangeDeprecatedField])
	}
	if severities[claims.ChangeNewField] != claims.SeverityInfo {
		t.Errorf("new_field severity = %s, want info", severities[claims.ChangeNewField])
	}
}

func TestCheckAPISchemaAutoRegistersNewClaimTypes(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	if _, err := f.differ.CheckAPISchema(ctx, "api", baseSchema()); err != nil {
		t.Fatal(err)
	}

	next := baseSchema()
	next.ClaimTypes = append(next.ClaimTypes, "wrong_item")
	changes, err := f.differ.CheckAPISchema(ctx, "api", next)
	if err != nil {
		t.Fatal(err)
	}

	var sawNewClaimType bool
	for _, c := range changes {
		if c.ChangeType == claims.ChangeNewClaimType && c.FieldName == "wrong_item" {
			sawNewClaimType = true
		}
	}
	if !sawNewClaimType {
		t.Fatal("new_claim_type change missing")
	}

	registered := f.rules.GetClaimRules(ctx, "wrong_item", claims.RuleTypeDetection)
	if len(registered) != 1 {
		t.Fatalf("got %d detection rules for the new type, want 1", len(registered))
	}
	rule := registered[0]
	if rule.Priority != 50 {
		t.Errorf("default rule priority = %d, want 50", rule.Priority)
	}
	if rule.Actions["create_claim"] != true || rule.Actions["auto_file"] != false {
		t.Errorf("default rule actions = %v", rule.Actions)
	}

	mappings := f.rules.GetEvidenceRequirements(ctx, "wrong_item")
	if len(mappings) != 1 || mappings[0].EvidenceType != "invoice" {
		t.Fatalf("default mapping missing: %d", len(mappings))
	}
	if mappings[0].RequirementLevel != claims.RequirementMandatory || mappings[0].Weight != 1.0 {
		t.Errorf("default mapping = %q/%v", mappings[0].RequirementLevel, mappings[0].Weight)
	}
}

func TestAutoRegisterClaimTypeIdempotent(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	if !f.differ.AutoRegisterClaimType(ctx, "late_delivery") {
		t.Fatal("first registration failed")
	}
	if !f.differ.AutoRegisterClaimType(ctx, "late_delivery") {
		t.Fatal("re-registration must be a no-op success")
	}

	registered := f.rules.GetClaimRules(ctx, "late_delivery", claims.RuleTypeDetection)
	if len(registered) != 1 {
		t.Errorf("got %d rules after double registration, want 1", len(registered))
	}
	mappings := f.rules.GetEvidenceRequirements(ctx, "late_delivery")
	if len(mappings) != 1 {
		t.Errorf("got %d mappings after double registration, want 1", len(mappings))
	}
}

func TestCheckAPISchemaEmitsLearningEvent(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	if _, err := f.differ.CheckAPISchema(ctx, "api", baseSchema()); err != nil {
		t.Fatal(err)
	}

	evs := f.events.Events()
	if len(evs) != 1 {
		t.Fatalf("got %d learning events, want 1", len(evs))
	}
	if evs[0].EventType != events.EventSchemaChange {
		t.Errorf("event type = %q", evs[0].EventType)
	}
	if evs[0].Metadata["api_name"] != "api" {
		t.Errorf("event metadata = %v", evs[0].Metadata)
	}
}

func TestCheckAllSchemas(t *testing.T) {
	f := newDifferFixture(t)
	ctx := context.Background()

	source := StaticSource{
		"orders":  baseSchema(),
		"refunds": {Endpoints: []string{"/refunds"}, Fields: []string{"refund_id"}},
	}
	sched := NewScheduler(f.differ, source, "")

	if err := sched.CheckAllSchemas(ctx); err != nil {
		t.Fatal(err)
	}

	for _, api := range []string{"orders", "refunds"} {
		if _, err := f.store.LatestSnapshot(ctx, api); err != nil {
			t.Errorf("no snapshot for %q: %v", api, err)
		}
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
