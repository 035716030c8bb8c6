package repositories

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/liforce/liforce_backend/config"
	"github.com/liforce/liforce_backend/models"
)

// UserRepository wraps the users collection for the lookups and status
// updates shared by the auth, admin and appointment flows.
type UserRepository struct {
	collection *mongo.Collection
}

func NewUserRepository(db *mongo.Client) *UserRepository {
	return &UserRepository{
		collection: config.GetCollection(db, "users"),
	}
}

func (r *UserRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.collection.FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	_, err := r.collection.InsertOne(ctx, user)
	return err
}

func (r *UserRepository) SetVerificationStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"verificationStatus": status,
			"updatedAt":          time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

func (r *UserRepository) SetAccountStatus(ctx context.Context, id primitive.ObjectID, status string) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{
			"accountStatus": status,
			"updatedAt":     time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// RecordDonation bumps the donor's statistics after a completed appointment.
// Each donation is counted as three lives saved, the figure used across the
// donor dashboard.
func (r *UserRepository) RecordDonation(ctx context.Context, donorID primitive.ObjectID, when time.Time) error {
	res, err := r.collection.UpdateOne(ctx, bson.M{"_id": donorID}, bson.M{
		"$inc": bson.M{
			"totalDonations": 1,
			"livesSaved":     3,
		},
		"$set": bson.M{
			"lastDonationDate": when,
			"updatedAt":        time.Now(),
		},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}
