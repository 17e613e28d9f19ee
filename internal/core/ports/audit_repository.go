package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuditFilter narrows an audit trail query. Email is matched case-insensitively.
type AuditFilter struct {
	Email string
	Limit int
}

// AuditRepository persists the append-only audit trail.
type AuditRepository interface {
	Insert(ctx context.Context, event *domain.AuditEvent) error
	// List returns matching events newest first.
	List(ctx context.Context, filter AuditFilter) ([]*domain.AuditEvent, error)
}
