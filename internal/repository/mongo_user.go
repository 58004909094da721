package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mansoorceksport/smmpanel/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoUserRepository implements domain.UserRepository and domain.LedgerRepository
type MongoUserRepository struct {
	collection *mongo.Collection
}

func NewMongoUserRepository(db *mongo.Database) *MongoUserRepository {
	coll := db.Collection("users")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, _ = coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})

	return &MongoUserRepository{
		collection: coll,
	}
}

func (r *MongoUserRepository) Create(ctx context.Context, user *domain.User) error {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.ID == "" {
		user.ID = primitive.NewObjectID().Hex()
	}

	_, err := r.collection.InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.WrapError(domain.KindConflict, "email or username already registered", err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"email": domain.NormalizeEmail(email)})
}

func (r *MongoUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.findOne(ctx, bson.M{"username": username})
}

func (r *MongoUserRepository) findOne(ctx context.Context, filter bson.M) (*domain.User, error) {
	var user domain.User
	err := r.collection.FindOne(ctx, filter).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

// UpdateProfile sets only the allow-listed profile fields present in update
func (r *MongoUserRepository) UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.User, error) {
	set := bson.M{"updated_at": time.Now()}
	if update.FirstName != nil {
		set["first_name"] = *update.FirstName
	}
	if update.LastName != nil {
		set["last_name"] = *update.LastName
	}
	if update.Phone != nil {
		set["phone"] = *update.Phone
	}
	if update.Avatar != nil {
		set["avatar"] = *update.Avatar
	}
	if update.Preferences != nil {
		set["preferences"] = *update.Preferences
	}
	if update.SocialMedia != nil {
		set["social_media"] = *update.SocialMedia
	}

	return r.findOneAndSet(ctx, id, set)
}

func (r *MongoUserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	_, err := r.findOneAndSet(ctx, id, bson.M{"password_hash": passwordHash, "updated_at": time.Now()})
	return err
}

func (r *MongoUserRepository) SetActive(ctx context.Context, id string, active bool) (*domain.User, error) {
	return r.findOneAndSet(ctx, id, bson.M{"is_active": active, "updated_at": time.Now()})
}

func (r *MongoUserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"last_login_at": at}})
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *MongoUserRepository) findOneAndSet(ctx context.Context, id string, set bson.M) (*domain.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user domain.User
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

// List returns users newest first
func (r *MongoUserRepository) List(ctx context.Context, filter domain.UserFilter, page domain.Page) ([]*domain.User, int64, error) {
	query := bson.M{}
	if filter.Role != "" {
		query["role"] = filter.Role
	}
	if filter.IsActive != nil {
		query["is_active"] = *filter.IsActive
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"username": pattern},
			bson.M{"email": pattern},
			bson.M{"first_name": pattern},
			bson.M{"last_name": pattern},
		}
	}

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(page.Skip()).
		SetLimit(page.Limit)

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	defer cursor.Close(ctx)

	var users []*domain.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, 0, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, total, nil
}

// =============================================================================
// Ledger
// =============================================================================

var balanceProjection = options.FindOneAndUpdate().
	SetReturnDocument(options.After).
	SetProjection(bson.M{"balance": 1, "total_spent": 1})

// Debit atomically decrements the balance if it covers amount and the user
// is active. total_spent is left untouched.
func (r *MongoUserRepository) Debit(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	filter := bson.M{
		"_id":       userID,
		"is_active": true,
		"balance":   bson.M{"$gte": amount},
	}
	update := bson.M{
		"$inc": bson.M{"balance": -amount},
		"$set": bson.M{"updated_at": time.Now()},
	}

	var balance domain.Balance
	err := r.collection.FindOneAndUpdate(ctx, filter, update, balanceProjection).Decode(&balance)
	if err == nil {
		return &balance, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to debit balance: %w", err)
	}

	// The condition did not match; find out why
	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.NewError(domain.KindForbidden, "account is deactivated")
	}
	return nil, domain.NewInsufficientFundsError(amount, user.Balance)
}

// Credit atomically increments balance and total_spent
func (r *MongoUserRepository) Credit(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	return r.increment(ctx, userID, bson.M{"balance": amount, "total_spent": amount})
}

// Refund atomically increments balance only
func (r *MongoUserRepository) Refund(ctx context.Context, userID string, amount domain.Money) (*domain.Balance, error) {
	return r.increment(ctx, userID, bson.M{"balance": amount})
}

func (r *MongoUserRepository) increment(ctx context.Context, userID string, inc bson.M) (*domain.Balance, error) {
	update := bson.M{
		"$inc": inc,
		"$set": bson.M{"updated_at": time.Now()},
	}

	var balance domain.Balance
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, update, balanceProjection).Decode(&balance)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to credit balance: %w", err)
	}
	return &balance, nil
}

func (r *MongoUserRepository) GetBalance(ctx context.Context, userID string) (*domain.Balance, error) {
	var balance domain.Balance
	opts := options.FindOne().SetProjection(bson.M{"balance": 1, "total_spent": 1})
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&balance)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}
	return &balance, nil
}
