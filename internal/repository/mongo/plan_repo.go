package mongo

import (
	"context"
	"errors"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planCollectionName = "billing_plans"

// mongoPlanRepository implements repository.PlanRepository
type mongoPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanRepository creates a new billing plan repository.
func NewMongoPlanRepository(db *mongo.Database) repository.PlanRepository {
	return &mongoPlanRepository{
		collection: db.Collection(planCollectionName),
	}
}

// Create inserts a new billing plan.
func (r *mongoPlanRepository) Create(ctx context.Context, plan *domain.BillingPlan) (primitive.ObjectID, error) {
	if plan.TrainerID == primitive.NilObjectID || plan.Name == "" {
		return primitive.NilObjectID, errors.New("plan requires trainerId and name")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoPlanRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.BillingPlan, error) {
	return findOne[domain.BillingPlan](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

// List returns the trainer's plans ordered by price.
func (r *mongoPlanRepository) List(ctx context.Context, trainerID primitive.ObjectID, activeOnly bool) ([]domain.BillingPlan, error) {
	filter := bson.M{"trainerId": trainerID}
	if activeOnly {
		filter["active"] = true
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "price", Value: 1}, {Key: "name", Value: 1}})
	return findAll[domain.BillingPlan](ctx, r.collection, filter, findOptions)
}

func (r *mongoPlanRepository) Update(ctx context.Context, plan *domain.BillingPlan) error {
	if plan.ID == primitive.NilObjectID {
		return errors.New("plan ID is required for update")
	}

	filter := bson.M{"_id": plan.ID, "trainerId": plan.TrainerID}
	// TrainerID and CreatedAt never change on update.
	updateDoc := bson.M{
		"$set": bson.M{
			"name":             plan.Name,
			"description":      plan.Description,
			"price":            plan.Price,
			"includedSessions": plan.IncludedSessions,
			"active":           plan.Active,
			"updatedAt":        time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, updateDoc)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoPlanRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

// EnsurePlanIndexes creates necessary indexes. Call during startup.
func EnsurePlanIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index(),
		},
	})
}
