package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultTimeout = 10 * time.Second
	indexTimeout   = 30 * time.Second

	collectionUsers       = "users"
	collectionRoles       = "roles"
	collectionAuditEvents = "audit_events"
)

// Config captures the minimal settings required to establish a MongoDB connection.
type Config struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// Connect establishes a MongoDB client, verifies connectivity with a ping, and
// returns both the client and the selected database. A default timeout is
// applied when none is provided.
func Connect(ctx context.Context, cfg Config) (*mongo.Client, *mongo.Database, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(connectCtx)
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}

	return client, client.Database(cfg.Database), nil
}

// EnsureIndexes creates the unique and lookup indexes every collection relies
// on. Uniqueness of emails, usernames and role names is enforced here.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	sets := map[string][]mongo.IndexModel{
		collectionUsers: {
			{Keys: bson.D{{Key: "normalized_email", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "normalized_username", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collectionRoles: {
			{Keys: bson.D{{Key: "normalized_name", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		collectionAuditEvents: {
			{Keys: bson.D{{Key: "email", Value: 1}, {Key: "occurred_at", Value: -1}}},
			{Keys: bson.D{{Key: "occurred_at", Value: -1}}},
		},
	}

	for _, name := range []string{collectionUsers, collectionRoles, collectionAuditEvents} {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, sets[name]); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", name, err)
		}
	}
	return nil
}

func nowUnix() int64 { return time.Now().UTC().Unix() }

func unixToTime(ts int64) time.Time {
	if ts == 0 {
		return time.Time{}
	}
	return time.Unix(ts, 0).UTC()
}
