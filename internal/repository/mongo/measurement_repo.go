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

const measurementCollectionName = "body_measurements"

// mongoMeasurementRepository implements repository.MeasurementRepository
type mongoMeasurementRepository struct {
	collection *mongo.Collection
}

func NewMongoMeasurementRepository(db *mongo.Database) repository.MeasurementRepository {
	return &mongoMeasurementRepository{
		collection: db.Collection(measurementCollectionName),
	}
}

// Create inserts a measurement. A second one on the same day returns ErrDuplicate.
func (r *mongoMeasurementRepository) Create(ctx context.Context, m *domain.BodyMeasurement) (primitive.ObjectID, error) {
	if m.StudentID == primitive.NilObjectID || m.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("measurement requires studentId and trainerId")
	}
	m.ID = primitive.NewObjectID()
	m.Date = domain.DateOf(m.Date)
	m.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, m)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoMeasurementRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.BodyMeasurement, error) {
	return findOne[domain.BodyMeasurement](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

func (r *mongoMeasurementRepository) ListByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID, since *time.Time, limit int64) ([]domain.BodyMeasurement, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID}
	if since != nil {
		filter["date"] = bson.M{"$gte": *since}
	}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}
	return findAll[domain.BodyMeasurement](ctx, r.collection, filter, findOptions)
}

func (r *mongoMeasurementRepository) Update(ctx context.Context, m *domain.BodyMeasurement) error {
	if m.ID == primitive.NilObjectID {
		return errors.New("measurement ID is required for update")
	}
	m.Date = domain.DateOf(m.Date)
	return replaceOwned(ctx, r.collection, m.ID, m.TrainerID, m)
}

func (r *mongoMeasurementRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoMeasurementRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsureMeasurementIndexes creates necessary indexes. Call during startup.
func EnsureMeasurementIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			// One measurement per student per day
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "date", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "studentId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	})
}
