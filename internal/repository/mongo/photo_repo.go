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

const photoCollectionName = "progress_photos"

// mongoPhotoRepository implements repository.PhotoRepository
type mongoPhotoRepository struct {
	collection *mongo.Collection
}

// NewMongoPhotoRepository creates a new photo metadata repository backed by MongoDB.
func NewMongoPhotoRepository(db *mongo.Database) repository.PhotoRepository {
	return &mongoPhotoRepository{
		collection: db.Collection(photoCollectionName),
	}
}

// Create inserts photo metadata after the file has been uploaded to S3.
func (r *mongoPhotoRepository) Create(ctx context.Context, p *domain.ProgressPhoto) (primitive.ObjectID, error) {
	if p.StudentID == primitive.NilObjectID ||
		p.TrainerID == primitive.NilObjectID ||
		p.S3ObjectKey == "" {
		return primitive.NilObjectID, errors.New("photo requires studentId, trainerId, and s3ObjectKey")
	}

	p.ID = primitive.NewObjectID()
	p.Date = domain.DateOf(p.Date)
	p.UploadedAt = time.Now().UTC()

	result, err := r.collection.InsertOne(ctx, p)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoPhotoRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ProgressPhoto, error) {
	return findOne[domain.ProgressPhoto](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

// ListByStudent returns the newest photos first.
func (r *mongoPhotoRepository) ListByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID, limit int64) ([]domain.ProgressPhoto, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID}
	findOptions := options.Find().SetSort(bson.D{{Key: "date", Value: -1}, {Key: "uploadedAt", Value: -1}})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}
	return findAll[domain.ProgressPhoto](ctx, r.collection, filter, findOptions)
}

// Delete removes the metadata only; the caller deletes the S3 object.
func (r *mongoPhotoRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoPhotoRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsurePhotoIndexes creates necessary indexes for the progress_photos collection.
func EnsurePhotoIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "studentId", Value: 1}, {Key: "date", Value: -1}},
			Options: options.Index(),
		},
		{
			// S3 keys are unique within the bucket
			Keys:    bson.D{{Key: "s3ObjectKey", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}
