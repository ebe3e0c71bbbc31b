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

const contractCollectionName = "contracts"

type mongoContractRepository struct {
	collection *mongo.Collection
}

func NewMongoContractRepository(db *mongo.Database) repository.ContractRepository {
	return &mongoContractRepository{
		collection: db.Collection(contractCollectionName),
	}
}

func (r *mongoContractRepository) Create(ctx context.Context, c *domain.Contract) (primitive.ObjectID, error) {
	if c.StudentID == primitive.NilObjectID || c.TrainerID == primitive.NilObjectID || c.PlanID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("contract requires studentId, trainerId, and planId")
	}
	c.ID = primitive.NewObjectID()
	c.StartDate = domain.DateOf(c.StartDate)
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, c)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoContractRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error) {
	return findOne[domain.Contract](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

// List returns contracts newest first, optionally for one student.
func (r *mongoContractRepository) List(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Contract, error) {
	filter := bson.M{"trainerId": trainerID}
	if studentID != nil {
		filter["studentId"] = *studentID
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "startDate", Value: -1}})
	return findAll[domain.Contract](ctx, r.collection, filter, findOptions)
}

func (r *mongoContractRepository) Update(ctx context.Context, c *domain.Contract) error {
	if c.ID == primitive.NilObjectID {
		return errors.New("contract ID is required for update")
	}
	c.UpdatedAt = time.Now().UTC()
	return replaceOwned(ctx, r.collection, c.ID, c.TrainerID, c)
}

func (r *mongoContractRepository) CountByPlan(ctx context.Context, trainerID, planID primitive.ObjectID) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{"trainerId": trainerID, "planId": planID})
}

func (r *mongoContractRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoContractRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsureContractIndexes creates necessary indexes. Call during startup.
func EnsureContractIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "studentId", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "planId", Value: 1}},
			Options: options.Index(),
		},
	})
}
