package port

import "context"

// AuditEntry represents a single auditable validation event.
type AuditEntry struct {
	Tool       string
	Question   string
	SQL        string
	Accepted   bool
	Category   string
	Issues     []string
	DurationMS int64
}

// VerdictAuditor records validation audit events.
type VerdictAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}
