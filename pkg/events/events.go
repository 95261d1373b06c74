// Package events records learning events emitted by the policy core for the
// downstream learning collaborator.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"clearway/meridian/pkg/claims"
)

const (
	// AgentLearning is the agent recorded on events destined for the
	// learning collaborator.
	AgentLearning = "LEARNING"

	// EventAnalystCorrection is emitted when an analyst correction has been
	// applied back into the rule store.
	EventAnalystCorrection = "ANALYST_CORRECTION"

	// EventSchemaChange is emitted when the schema differ detects drift.
	EventSchemaChange = "SCHEMA_CHANGE"
)

// Logger records learning events. Implementations must tolerate failure
// gracefully; callers treat a failed LogEvent as non-fatal.
type Logger interface {
	LogEvent(ctx context.Context, agent, eventType string, metadata map[string]any) (string, error)
}

// StoreLogger persists learning events through the claims store.
type StoreLogger struct {
	store claims.Store
	now   func() time.Time
}

// NewStoreLogger creates a logger backed by the given store.
func NewStoreLogger(store claims.Store) *StoreLogger {
	return &StoreLogger{store: store, now: time.Now}
}

// LogEvent persists a learning event and returns its id.
func (l *StoreLogger) LogEvent(ctx context.Context, agent, eventType string, metadata map[string]any) (string, error) {
	ev := &claims.LearningEvent{
		ID:        uuid.New().String(),
		Agent:     agent,
		EventType: eventType,
		Metadata:  metadata,
		CreatedAt: l.now(),
	}
	if err := l.store.InsertLearningEvent(ctx, ev); err != nil {
		return "", err
	}
	return ev.ID, nil
}

// MemoryLogger collects events in memory for tests.
type MemoryLogger struct {
	mu     sync.Mutex
	events []*claims.LearningEvent

	// Err, when set, is returned from every LogEvent call.
	Err error
}

// NewMemoryLogger creates an empty in-memory logger.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

func (l *MemoryLogger) LogEvent(ctx context.Context, agent, eventType string, metadata map[string]any) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return "", l.Err
	}
	ev := &claims.LearningEvent{
		ID:        uuid.New().String(),
		Agent:     agent,
		EventType: eventType,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
	l.events = append(l.events, ev)
	return ev.ID, nil
}

// Events returns the recorded events.
func (l *MemoryLogger) Events() []*claims.LearningEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*claims.LearningEvent, len(l.events))
	copy(out, l.events)
	return out
}
