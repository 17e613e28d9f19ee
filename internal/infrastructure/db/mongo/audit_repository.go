package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// AuditRepository implements ports.AuditRepository using MongoDB.
type AuditRepository struct {
	coll *mongo.Collection
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(collectionAuditEvents)}
}

var _ ports.AuditRepository = (*AuditRepository)(nil)

type auditDocument struct {
	ID         string    `bson:"_id"`
	Type       string    `bson:"type"`
	Email      string    `bson:"email,omitempty"`
	AccountID  string    `bson:"account_id,omitempty"`
	Success    bool      `bson:"success"`
	Reason     string    `bson:"reason,omitempty"`
	Detail     string    `bson:"detail,omitempty"`
	OccurredAt time.Time `bson:"occurred_at"`
	StoredAt   time.Time `bson:"stored_at"`
}

// Insert persists a single audit event.
func (r *AuditRepository) Insert(ctx context.Context, e *domain.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := auditDocument{
		ID:         e.ID,
		Type:       string(e.Type),
		Email:      e.Email,
		AccountID:  e.AccountID,
		Success:    e.Success,
		Reason:     e.Reason,
		Detail:     e.Detail,
		OccurredAt: e.OccurredAt.UTC(),
		StoredAt:   time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// List returns events newest first, optionally restricted to one email.
func (r *AuditRepository) List(ctx context.Context, f ports.AuditFilter) ([]*domain.AuditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := bson.M{}
	if f.Email != "" {
		filter["email"] = f.Email
	}
	opts := options.Find().SetSort(bson.D{{Key: "occurred_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}

	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer cur.Close(ctx)

	var docs []auditDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode audit events: %w", err)
	}

	out := make([]*domain.AuditEvent, 0, len(docs))
	for _, d := range docs {
		out = append(out, &domain.AuditEvent{
			ID:         d.ID,
			Type:       domain.AuditEventType(d.Type),
			Email:      d.Email,
			AccountID:  d.AccountID,
			Success:    d.Success,
			Reason:     d.Reason,
			Detail:     d.Detail,
			OccurredAt: d.OccurredAt.UTC(),
		})
	}
	return out, nil
}
