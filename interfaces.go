package tablekit

import (
	"context"

	"github.com/fernandezvara/dbkit"
)

// Database defines the database operations interface for dependency injection
type Database interface {
	dbkit.IDB
}

// AuditSink receives one entry per mutating operation. The built-in sink
// writes to the audit resource's table; custom sinks can forward entries to
// external systems.
type AuditSink interface {
	Log(ctx context.Context, entry *AuditEntry) error
}

// EventHandler processes one emitted event. Handlers subscribed to "before"
// topics can veto the operation by returning an error.
type EventHandler func(ctx context.Context, event *Event) error

// EventBus defines the publish/subscribe surface used for lifecycle events.
// Subscribe patterns use dot-separated segments with "*" and "**" wildcards.
type EventBus interface {
	Subscribe(pattern string, handler EventHandler) error
	Publish(ctx context.Context, event *Event) error
}

// SearchIndexer receives denormalized documents after successful mutations.
// Indexing runs detached from the mutation; failures are logged, never
// surfaced to the caller.
type SearchIndexer interface {
	Index(ctx context.Context, req *IndexRequest) error
	Delete(ctx context.Context, table string, recordID int64) error
}

// QueryMonitor defines the query monitoring interface
type QueryMonitor interface {
	GetQueryMetrics() QueryMetrics
	ResetQueryMetrics()
}
