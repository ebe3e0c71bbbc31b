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

const scheduleSlotCollectionName = "schedule_slots"

type mongoScheduleSlotRepository struct {
	collection *mongo.Collection
}

func NewMongoScheduleSlotRepository(db *mongo.Database) repository.ScheduleSlotRepository {
	return &mongoScheduleSlotRepository{
		collection: db.Collection(scheduleSlotCollectionName),
	}
}

// Create inserts a weekly slot. The same (student, weekday, start) twice returns ErrDuplicate.
func (r *mongoScheduleSlotRepository) Create(ctx context.Context, s *domain.ScheduleSlot) (primitive.ObjectID, error) {
	if s.StudentID == primitive.NilObjectID || s.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("schedule slot requires studentId and trainerId")
	}
	s.ID = primitive.NewObjectID()
	s.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, s)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoScheduleSlotRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduleSlot, error) {
	return findOne[domain.ScheduleSlot](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

var slotOrder = bson.D{{Key: "weekday", Value: 1}, {Key: "start", Value: 1}}

func (r *mongoScheduleSlotRepository) ListByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ScheduleSlot, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID}
	return findAll[domain.ScheduleSlot](ctx, r.collection, filter, options.Find().SetSort(slotOrder))
}

func (r *mongoScheduleSlotRepository) ListActive(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ScheduleSlot, error) {
	filter := bson.M{"trainerId": trainerID, "active": true}
	return findAll[domain.ScheduleSlot](ctx, r.collection, filter, options.Find().SetSort(slotOrder))
}

func (r *mongoScheduleSlotRepository) Update(ctx context.Context, s *domain.ScheduleSlot) error {
	if s.ID == primitive.NilObjectID {
		return errors.New("schedule slot ID is required for update")
	}
	return replaceOwned(ctx, r.collection, s.ID, s.TrainerID, s)
}

func (r *mongoScheduleSlotRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoScheduleSlotRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsureScheduleSlotIndexes creates necessary indexes. Call during startup.
func EnsureScheduleSlotIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "weekday", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "active", Value: 1}},
			Options: options.Index(),
		},
	})
}
