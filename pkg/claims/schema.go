package claims

import "time"

// APISchema is the observed shape of an upstream API: its endpoints, the
// fields those endpoints expose, and the claim types they carry. In this
// design the shape comes from a static configuration table; in production it
// would come from a live introspection call.
type APISchema struct {
	// Endpoints is the list of endpoint paths the API exposes.
	Endpoints []string `json:"endpoints" yaml:"endpoints"`

	// Fields is the list of field names observed across the endpoints.
	Fields []string `json:"fields" yaml:"fields"`

	// ClaimTypes is the list of claim types the API reports.
	ClaimTypes []string `json:"claim_types" yaml:"claim_types"`
}

// SchemaSnapshot is the last observed shape of an upstream API. One logical
// row exists per (APIName, SchemaHash); re-observing the same hash is a no-op.
type SchemaSnapshot struct {
	// APIName keys the snapshot (e.g. "amazon_orders").
	APIName string `json:"api_name"`

	// SchemaHash is the stable fingerprint of Schema.
	SchemaHash string `json:"schema_hash"`

	// Schema is the full observed shape.
	Schema APISchema `json:"schema"`

	CreatedAt time.Time `json:"created_at"`
}

// SchemaChangeType classifies a detected structural change.
type SchemaChangeType string

const (
	ChangeNewField           SchemaChangeType = "new_field"
	ChangeDeprecatedField    SchemaChangeType = "deprecated_field"
	ChangeNewEndpoint        SchemaChangeType = "new_endpoint"
	ChangeDeprecatedEndpoint SchemaChangeType = "deprecated_endpoint"
	ChangeNewClaimType       SchemaChangeType = "new_claim_type"
	ChangeSchema             SchemaChangeType = "schema_change"
)

// ChangeSeverity grades how much attention a schema change deserves.
type ChangeSeverity string

const (
	SeverityInfo     ChangeSeverity = "info"
	SeverityWarning  ChangeSeverity = "warning"
	SeverityCritical ChangeSeverity = "critical"
)

// SchemaChange is one detected structural drift event. The table is an
// append-only audit trail; rows are never updated except for Acknowledged.
type SchemaChange struct {
	// ID is the change's unique identifier (UUID v4).
	ID string `json:"id"`

	// APIName is the upstream API the change was observed on.
	APIName string `json:"api_name"`

	// Endpoint is the affected endpoint, when the change is endpoint-scoped.
	Endpoint string `json:"endpoint,omitempty"`

	// ChangeType classifies the drift.
	ChangeType SchemaChangeType `json:"change_type"`

	// FieldName is the affected field or claim type, when applicable.
	FieldName string `json:"field_name,omitempty"`

	// OldValue and NewValue hold the relevant schema fragments.
	OldValue map[string]any `json:"old_value,omitempty"`
	NewValue map[string]any `json:"new_value,omitempty"`

	// Severity grades the change.
	Severity ChangeSeverity `json:"severity"`

	// Acknowledged is flipped by an operator once the change was reviewed.
	Acknowledged bool `json:"acknowledged"`

	CreatedAt time.Time `json:"created_at"`
}

// LearningEvent is one entry in the learning event log. The log itself is an
// external collaborator; this record is what gets written when the
// collaborator is backed by the same store.
type LearningEvent struct {
	// ID is the event's unique identifier (UUID v4).
	ID string `json:"id"`

	// Agent names the emitting agent (e.g. "LEARNING").
	Agent string `json:"agent"`

	// EventType names the event (e.g. "ANALYST_CORRECTION").
	EventType string `json:"event_type"`

	// Metadata is the event payload.
	Metadata map[string]any `json:"metadata"`

	CreatedAt time.Time `json:"created_at"`
}
