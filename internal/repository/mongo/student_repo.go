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

const studentCollectionName = "students"

// mongoStudentRepository implements repository.StudentRepository
type mongoStudentRepository struct {
	collection *mongo.Collection
}

// NewMongoStudentRepository creates a new Student repository backed by MongoDB.
func NewMongoStudentRepository(db *mongo.Database) repository.StudentRepository {
	return &mongoStudentRepository{
		collection: db.Collection(studentCollectionName),
	}
}

// Create inserts a new student. Email clashes within a trainer return ErrDuplicate.
func (r *mongoStudentRepository) Create(ctx context.Context, student *domain.Student) (primitive.ObjectID, error) {
	if student.TrainerID == primitive.NilObjectID || student.Name == "" {
		return primitive.NilObjectID, errors.New("student requires trainerId and name")
	}

	student.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, student)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoStudentRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error) {
	return findOne[domain.Student](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

// List returns the trainer's students ordered by name.
func (r *mongoStudentRepository) List(ctx context.Context, trainerID primitive.ObjectID, f repository.StudentFilter) ([]domain.Student, error) {
	filter := bson.M{"trainerId": trainerID}
	if f.Search != "" {
		re := containsFold(f.Search)
		filter["$or"] = bson.A{
			bson.M{"name": re},
			bson.M{"email": re},
			bson.M{"phone": re},
		}
	}
	if f.Active != nil {
		filter["active"] = *f.Active
	}
	if f.Objective != "" {
		filter["objective"] = containsFold(f.Objective)
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	return findAll[domain.Student](ctx, r.collection, filter, findOptions)
}

// Counts groups the trainer's students by the active flag.
func (r *mongoStudentRepository) Counts(ctx context.Context, trainerID primitive.ObjectID) (repository.StudentCounts, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"trainerId": trainerID}}},
		{{Key: "$group", Value: bson.M{"_id": "$active", "n": bson.M{"$sum": 1}}}},
	}
	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return repository.StudentCounts{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Active bool  `bson:"_id"`
		N      int64 `bson:"n"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return repository.StudentCounts{}, err
	}

	var counts repository.StudentCounts
	for _, row := range rows {
		if row.Active {
			counts.Active = row.N
		} else {
			counts.Inactive = row.N
		}
	}
	counts.Total = counts.Active + counts.Inactive
	return counts, nil
}

// Update replaces the student document. TrainerID and CreatedAt are preserved by the caller.
func (r *mongoStudentRepository) Update(ctx context.Context, student *domain.Student) error {
	if student.ID == primitive.NilObjectID {
		return errors.New("student ID is required for update")
	}
	student.UpdatedAt = time.Now().UTC()
	return replaceOwned(ctx, r.collection, student.ID, student.TrainerID, student)
}

func (r *mongoStudentRepository) SetActive(ctx context.Context, trainerID, id primitive.ObjectID, active bool) error {
	filter := bson.M{"_id": id, "trainerId": trainerID}
	update := bson.M{"$set": bson.M{"active": active, "updatedAt": time.Now().UTC()}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoStudentRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

// EnsureStudentIndexes creates necessary indexes. Call during startup.
func EnsureStudentIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			// Email is unique per trainer, not globally
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "name", Value: 1}},
			Options: options.Index(),
		},
	})
}
