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

const monthlyTrackingCollectionName = "monthly_tracking"

type mongoMonthlyTrackingRepository struct {
	collection *mongo.Collection
}

func NewMongoMonthlyTrackingRepository(db *mongo.Database) repository.MonthlyTrackingRepository {
	return &mongoMonthlyTrackingRepository{
		collection: db.Collection(monthlyTrackingCollectionName),
	}
}

func periodFilter(trainerID, studentID primitive.ObjectID, year, month int) bson.M {
	return bson.M{"trainerId": trainerID, "studentId": studentID, "year": year, "month": month}
}

func (r *mongoMonthlyTrackingRepository) Get(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) (*domain.MonthlyTracking, error) {
	return findOne[domain.MonthlyTracking](ctx, r.collection, periodFilter(trainerID, studentID, year, month))
}

// Upsert writes the row for (student, year, month), keeping the original ID
// and creation time when the row already exists.
func (r *mongoMonthlyTrackingRepository) Upsert(ctx context.Context, t *domain.MonthlyTracking) error {
	if t.StudentID == primitive.NilObjectID || t.TrainerID == primitive.NilObjectID {
		return errors.New("monthly tracking requires studentId and trainerId")
	}
	now := time.Now().UTC()
	t.UpdatedAt = now

	filter := periodFilter(t.TrainerID, t.StudentID, t.Year, t.Month)
	existing, err := findOne[domain.MonthlyTracking](ctx, r.collection, filter)
	switch {
	case err == nil:
		t.ID = existing.ID
		t.CreatedAt = existing.CreatedAt
	case errors.Is(err, repository.ErrNotFound):
		t.ID = primitive.NewObjectID()
		t.CreatedAt = now
	default:
		return err
	}

	_, err = r.collection.ReplaceOne(ctx, filter, t, options.Replace().SetUpsert(true))
	return insertErr(err)
}

func (r *mongoMonthlyTrackingRepository) ListByYear(ctx context.Context, trainerID, studentID primitive.ObjectID, year int) ([]domain.MonthlyTracking, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID, "year": year}
	findOptions := options.Find().SetSort(bson.D{{Key: "month", Value: 1}})
	return findAll[domain.MonthlyTracking](ctx, r.collection, filter, findOptions)
}

func (r *mongoMonthlyTrackingRepository) Delete(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) error {
	result, err := r.collection.DeleteOne(ctx, periodFilter(trainerID, studentID, year, month))
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoMonthlyTrackingRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsureMonthlyTrackingIndexes creates necessary indexes. Call during startup.
func EnsureMonthlyTrackingIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "year", Value: 1}, {Key: "month", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}},
			Options: options.Index(),
		},
	})
}
