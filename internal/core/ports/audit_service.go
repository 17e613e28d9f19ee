package ports

import (
	"context"

	"github.com/99minutos/identity-service/internal/core/domain"
)

// AuditSink accepts audit events without blocking the caller.
type AuditSink interface {
	Record(event domain.AuditEvent)
}

// AuditQuery carries the parameters of the audit listing endpoint.
type AuditQuery struct {
	Email string
	Limit int
}

// AuditService stores and reads the audit trail.
type AuditService interface {
	Process(ctx context.Context, event domain.AuditEvent) error
	List(ctx context.Context, query AuditQuery) ([]*domain.AuditEvent, error)
}
