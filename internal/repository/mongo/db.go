package mongo

import (
	"context"
	"errors"
	"log"
	"regexp"
	"time"

	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connect can succeed against an unresponsive server, so ping.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection. The unique ones
// back the per-period and per-day uniqueness rules, so failures are logged
// loudly. Call once during startup.
func EnsureIndexes(ctx context.Context, db *mongo.Database) {
	EnsureUserIndexes(ctx, db.Collection(userCollectionName))
	EnsureStudentIndexes(ctx, db.Collection(studentCollectionName))
	EnsureMeasurementIndexes(ctx, db.Collection(measurementCollectionName))
	EnsureMonthlyTrackingIndexes(ctx, db.Collection(monthlyTrackingCollectionName))
	EnsurePhotoIndexes(ctx, db.Collection(photoCollectionName))
	EnsureScheduleSlotIndexes(ctx, db.Collection(scheduleSlotCollectionName))
	EnsureSessionIndexes(ctx, db.Collection(sessionCollectionName))
	EnsureAttendanceIndexes(ctx, db.Collection(attendanceCollectionName))
	EnsurePlanIndexes(ctx, db.Collection(planCollectionName))
	EnsureContractIndexes(ctx, db.Collection(contractCollectionName))
	EnsureInvoiceIndexes(ctx, db.Collection(invoiceCollectionName))
	EnsureReportIndexes(ctx, db.Collection(reportCollectionName))
}

func createIndexes(ctx context.Context, collection *mongo.Collection, indexes []mongo.IndexModel) {
	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}

// insertedObjectID asserts the type of the inserted ID.
func insertedObjectID(result *mongo.InsertOneResult) (primitive.ObjectID, error) {
	id, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return id, nil
}

// insertErr translates unique-index violations into repository.ErrDuplicate.
func insertErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrDuplicate
	}
	return err
}

// findOne decodes a single document, mapping ErrNoDocuments to ErrNotFound.
func findOne[T any](ctx context.Context, collection *mongo.Collection, filter bson.M, opts ...*options.FindOneOptions) (*T, error) {
	var doc T
	err := collection.FindOne(ctx, filter, opts...).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &doc, nil
}

// findAll decodes every matching document. An empty result is an empty slice.
func findAll[T any](ctx context.Context, collection *mongo.Collection, filter bson.M, opts ...*options.FindOptions) ([]T, error) {
	cursor, err := collection.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := []T{}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// replaceOwned replaces a document only if it belongs to the trainer.
func replaceOwned(ctx context.Context, collection *mongo.Collection, id, trainerID primitive.ObjectID, doc interface{}) error {
	result, err := collection.ReplaceOne(ctx, bson.M{"_id": id, "trainerId": trainerID}, doc)
	if err != nil {
		return insertErr(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// deleteOwned deletes a document only if it belongs to the trainer.
func deleteOwned(ctx context.Context, collection *mongo.Collection, id, trainerID primitive.ObjectID) error {
	result, err := collection.DeleteOne(ctx, bson.M{"_id": id, "trainerId": trainerID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func deleteByStudent(ctx context.Context, collection *mongo.Collection, trainerID, studentID primitive.ObjectID) error {
	_, err := collection.DeleteMany(ctx, bson.M{"trainerId": trainerID, "studentId": studentID})
	return err
}

// containsFold builds a case-insensitive substring match for user input.
func containsFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

// dateRange builds an inclusive range condition, or nil when both ends are open.
func dateRange(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	cond := bson.M{}
	if from != nil {
		cond["$gte"] = *from
	}
	if to != nil {
		cond["$lte"] = *to
	}
	return cond
}

// setStudentName rewrites the denormalized studentName on a student's records.
func setStudentName(ctx context.Context, collection *mongo.Collection, trainerID, studentID primitive.ObjectID, name string) error {
	_, err := collection.UpdateMany(ctx,
		bson.M{"trainerId": trainerID, "studentId": studentID},
		bson.M{"$set": bson.M{"studentName": name}},
	)
	return err
}
