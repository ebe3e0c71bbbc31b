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

const attendanceCollectionName = "attendance"

type mongoAttendanceRepository struct {
	collection *mongo.Collection
}

func NewMongoAttendanceRepository(db *mongo.Database) repository.AttendanceRepository {
	return &mongoAttendanceRepository{
		collection: db.Collection(attendanceCollectionName),
	}
}

func (r *mongoAttendanceRepository) Create(ctx context.Context, a *domain.AttendanceRecord) (primitive.ObjectID, error) {
	if a.StudentID == primitive.NilObjectID || a.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("attendance requires studentId and trainerId")
	}
	a.ID = primitive.NewObjectID()
	a.Date = domain.DateOf(a.Date)
	a.CreatedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, a)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoAttendanceRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.AttendanceRecord, error) {
	return findOne[domain.AttendanceRecord](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

func attendanceFilter(trainerID primitive.ObjectID, f repository.AttendanceFilter) bson.M {
	filter := bson.M{"trainerId": trainerID}
	if f.StudentID != nil {
		filter["studentId"] = *f.StudentID
	}
	if f.Search != "" {
		filter["studentName"] = containsFold(f.Search)
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if cond := dateRange(f.From, f.To); cond != nil {
		filter["date"] = cond
	}
	return filter
}

func (r *mongoAttendanceRepository) List(ctx context.Context, trainerID primitive.ObjectID, f repository.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "start", Value: -1}})
	return findAll[domain.AttendanceRecord](ctx, r.collection, attendanceFilter(trainerID, f), findOptions)
}

func (r *mongoAttendanceRepository) Exists(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, start domain.TimeOfDay) (bool, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID, "date": domain.DateOf(date), "start": start}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoAttendanceRepository) Update(ctx context.Context, a *domain.AttendanceRecord) error {
	if a.ID == primitive.NilObjectID {
		return errors.New("attendance ID is required for update")
	}
	a.Date = domain.DateOf(a.Date)
	return replaceOwned(ctx, r.collection, a.ID, a.TrainerID, a)
}

func (r *mongoAttendanceRepository) CountByStudent(ctx context.Context, trainerID primitive.ObjectID, f repository.AttendanceFilter) (map[primitive.ObjectID]int64, error) {
	return countByStudent(ctx, r.collection, attendanceFilter(trainerID, f))
}

func (r *mongoAttendanceRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoAttendanceRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsureAttendanceIndexes creates necessary indexes. Call during startup.
func EnsureAttendanceIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "date", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
	})
}

func (r *mongoAttendanceRepository) SetStudentName(ctx context.Context, trainerID, studentID primitive.ObjectID, name string) error {
	return setStudentName(ctx, r.collection, trainerID, studentID, name)
}
