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

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

func (r *mongoSessionRepository) Create(ctx context.Context, s *domain.ScheduledSession) (primitive.ObjectID, error) {
	if s.StudentID == primitive.NilObjectID || s.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("session requires studentId and trainerId")
	}
	s.ID = primitive.NewObjectID()
	s.Date = domain.DateOf(s.Date)
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, s)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoSessionRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduledSession, error) {
	return findOne[domain.ScheduledSession](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

func sessionFilter(trainerID primitive.ObjectID, f repository.SessionFilter) bson.M {
	filter := bson.M{"trainerId": trainerID}
	if f.StudentID != nil {
		filter["studentId"] = *f.StudentID
	}
	if f.Search != "" {
		filter["studentName"] = containsFold(f.Search)
	}
	if len(f.Statuses) > 0 {
		filter["status"] = bson.M{"$in": f.Statuses}
	}
	if cond := dateRange(f.From, f.To); cond != nil {
		filter["date"] = cond
	}
	return filter
}

func (r *mongoSessionRepository) List(ctx context.Context, trainerID primitive.ObjectID, f repository.SessionFilter) ([]domain.ScheduledSession, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start", Value: 1}})
	if f.Limit > 0 {
		findOptions.SetLimit(f.Limit)
	}
	return findAll[domain.ScheduledSession](ctx, r.collection, sessionFilter(trainerID, f), findOptions)
}

func (r *mongoSessionRepository) Count(ctx context.Context, trainerID primitive.ObjectID, f repository.SessionFilter) (int64, error) {
	return r.collection.CountDocuments(ctx, sessionFilter(trainerID, f))
}

// Exists reports whether the student already has a session at date and start.
func (r *mongoSessionRepository) Exists(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, start domain.TimeOfDay) (bool, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID, "date": domain.DateOf(date), "start": start}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

func (r *mongoSessionRepository) Update(ctx context.Context, s *domain.ScheduledSession) error {
	if s.ID == primitive.NilObjectID {
		return errors.New("session ID is required for update")
	}
	s.Date = domain.DateOf(s.Date)
	s.UpdatedAt = time.Now().UTC()
	return replaceOwned(ctx, r.collection, s.ID, s.TrainerID, s)
}

func (r *mongoSessionRepository) SetStatus(ctx context.Context, trainerID, id primitive.ObjectID, status domain.SessionStatus) error {
	filter := bson.M{"_id": id, "trainerId": trainerID}
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// CountByStudent groups matching sessions by student.
func (r *mongoSessionRepository) CountByStudent(ctx context.Context, trainerID primitive.ObjectID, f repository.SessionFilter) (map[primitive.ObjectID]int64, error) {
	return countByStudent(ctx, r.collection, sessionFilter(trainerID, f))
}

func (r *mongoSessionRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoSessionRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

func countByStudent(ctx context.Context, collection *mongo.Collection, match bson.M) (map[primitive.ObjectID]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": "$studentId", "n": bson.M{"$sum": 1}}}},
	}
	cursor, err := collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		StudentID primitive.ObjectID `bson:"_id"`
		N         int64              `bson:"n"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	counts := make(map[primitive.ObjectID]int64, len(rows))
	for _, row := range rows {
		counts[row.StudentID] = row.N
	}
	return counts, nil
}

// EnsureSessionIndexes creates necessary indexes. Call during startup.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "date", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "date", Value: 1}, {Key: "start", Value: 1}},
			Options: options.Index(),
		},
	})
}

func (r *mongoSessionRepository) SetStudentName(ctx context.Context, trainerID, studentID primitive.ObjectID, name string) error {
	return setStudentName(ctx, r.collection, trainerID, studentID, name)
}
