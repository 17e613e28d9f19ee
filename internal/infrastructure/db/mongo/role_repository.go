package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

// RoleRepository stores role records in "roles" and role membership as a
// roles array on each user document.
type RoleRepository struct {
	roles *mongo.Collection
	users *mongo.Collection
}

func NewRoleRepository(db *mongo.Database) *RoleRepository {
	return &RoleRepository{
		roles: db.Collection(collectionRoles),
		users: db.Collection(collectionUsers),
	}
}

var _ ports.RoleRepository = (*RoleRepository)(nil)

type roleDocument struct {
	ID             string `bson:"_id"`
	Name           string `bson:"name"`
	NormalizedName string `bson:"normalized_name"`
}

func (r *RoleRepository) Exists(ctx context.Context, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	opts := options.FindOne().SetProjection(bson.M{"_id": 1})
	err := r.roles.FindOne(ctx, bson.M{"normalized_name": domain.NormalizeRoleName(name)}, opts).Err()
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, fmt.Errorf("find role: %w", err)
	}
	return true, nil
}

func (r *RoleRepository) Create(ctx context.Context, role *domain.Role) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := roleDocument{ID: role.ID, Name: role.Name, NormalizedName: role.NormalizedName}
	if _, err := r.roles.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrRoleExists
		}
		return fmt.Errorf("insert role: %w", err)
	}
	return nil
}

// AssignToAccount adds the role to the account's role set. Assigning a role
// the account already holds is a no-op.
func (r *RoleRepository) AssignToAccount(ctx context.Context, accountID, roleName string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{
		"$addToSet": bson.M{"roles": roleName},
		"$set":      bson.M{"updated_at": nowUnix()},
	}
	res, err := r.users.UpdateOne(ctx, bson.M{"_id": accountID}, update)
	if err != nil {
		return fmt.Errorf("assign role: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
