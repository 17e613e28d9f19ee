package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/99minutos/identity-service/internal/core/domain"
	"github.com/99minutos/identity-service/internal/core/ports"
)

type AccountRepository struct {
	coll *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{coll: db.Collection(collectionUsers)}
}

var _ ports.AccountRepository = (*AccountRepository)(nil)

type accountDocument struct {
	ID                 string   `bson:"_id"`
	Email              string   `bson:"email"`
	NormalizedEmail    string   `bson:"normalized_email"`
	Username           string   `bson:"username"`
	NormalizedUsername string   `bson:"normalized_username"`
	FullName           string   `bson:"full_name"`
	PasswordHash       string   `bson:"password_hash"`
	Roles              []string `bson:"roles"`
	CreatedAt          int64    `bson:"created_at"`
	UpdatedAt          int64    `bson:"updated_at"`
}

func toAccountDocument(a *domain.Account) accountDocument {
	roles := a.Roles
	if roles == nil {
		roles = []string{}
	}
	return accountDocument{
		ID:                 a.ID,
		Email:              a.Email,
		NormalizedEmail:    a.NormalizedEmail,
		Username:           a.Username,
		NormalizedUsername: a.NormalizedUsername,
		FullName:           a.FullName,
		PasswordHash:       a.PasswordHash,
		Roles:              roles,
		CreatedAt:          a.CreatedAt.Unix(),
		UpdatedAt:          a.UpdatedAt.Unix(),
	}
}

func (d accountDocument) toDomain() *domain.Account {
	return &domain.Account{
		ID:                 d.ID,
		Email:              d.Email,
		NormalizedEmail:    d.NormalizedEmail,
		Username:           d.Username,
		NormalizedUsername: d.NormalizedUsername,
		FullName:           d.FullName,
		PasswordHash:       d.PasswordHash,
		Roles:              d.Roles,
		CreatedAt:          unixToTime(d.CreatedAt),
		UpdatedAt:          unixToTime(d.UpdatedAt),
	}
}

// Create inserts the account. A clash on email or username surfaces as
// domain.ErrUserExists through the unique indexes.
func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if _, err := r.coll.InsertOne(ctx, toAccountDocument(a)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"normalized_email": domain.NormalizeEmail(email)})
}

func (r *AccountRepository) FindByUsername(ctx context.Context, username string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"normalized_username": domain.NormalizeUsername(username)})
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDocument
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"password_hash": hash,
		"updated_at":    nowUnix(),
	}}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

func (r *AccountRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}
