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

const (
	reportTypeCollectionName = "report_types"
	reportCollectionName     = "reports"
)

// mongoReportTypeRepository implements repository.ReportTypeRepository.
// Report types are shared by all trainers, so there is no trainer filter.
type mongoReportTypeRepository struct {
	collection *mongo.Collection
}

func NewMongoReportTypeRepository(db *mongo.Database) repository.ReportTypeRepository {
	return &mongoReportTypeRepository{
		collection: db.Collection(reportTypeCollectionName),
	}
}

func (r *mongoReportTypeRepository) Create(ctx context.Context, t *domain.ReportType) (primitive.ObjectID, error) {
	if t.Name == "" {
		return primitive.NilObjectID, errors.New("report type name is required")
	}
	t.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	t.CreatedAt = now
	t.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, t)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoReportTypeRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ReportType, error) {
	return findOne[domain.ReportType](ctx, r.collection, bson.M{"_id": id})
}

func (r *mongoReportTypeRepository) List(ctx context.Context, activeOnly bool) ([]domain.ReportType, error) {
	filter := bson.M{}
	if activeOnly {
		filter["active"] = true
	}
	return findAll[domain.ReportType](ctx, r.collection, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
}

func (r *mongoReportTypeRepository) Update(ctx context.Context, t *domain.ReportType) error {
	if t.ID == primitive.NilObjectID {
		return errors.New("report type ID is required for update")
	}
	t.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": t.ID}, t)
	if err != nil {
		return insertErr(err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoReportTypeRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// mongoReportRepository implements repository.ReportRepository
type mongoReportRepository struct {
	collection *mongo.Collection
}

func NewMongoReportRepository(db *mongo.Database) repository.ReportRepository {
	return &mongoReportRepository{
		collection: db.Collection(reportCollectionName),
	}
}

func (r *mongoReportRepository) Create(ctx context.Context, rep *domain.Report) (primitive.ObjectID, error) {
	if rep.StudentID == primitive.NilObjectID || rep.TrainerID == primitive.NilObjectID || rep.TypeID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("report requires studentId, trainerId, and typeId")
	}
	rep.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	rep.CreatedAt = now
	rep.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, rep)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoReportRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error) {
	return findOne[domain.Report](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

func (r *mongoReportRepository) List(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Report, error) {
	filter := bson.M{"trainerId": trainerID}
	if studentID != nil {
		filter["studentId"] = *studentID
	}
	return findAll[domain.Report](ctx, r.collection, filter, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *mongoReportRepository) Update(ctx context.Context, rep *domain.Report) error {
	if rep.ID == primitive.NilObjectID {
		return errors.New("report ID is required for update")
	}
	rep.UpdatedAt = time.Now().UTC()
	return replaceOwned(ctx, r.collection, rep.ID, rep.TrainerID, rep)
}

func (r *mongoReportRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoReportRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

func (r *mongoReportRepository) Recent(ctx context.Context, trainerID primitive.ObjectID, limit int64) ([]domain.Report, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	return findAll[domain.Report](ctx, r.collection, bson.M{"trainerId": trainerID}, opts)
}

// Summarize counts reports per status in one pass.
func (r *mongoReportRepository) Summarize(ctx context.Context, trainerID primitive.ObjectID, monthStart time.Time) (repository.ReportCounts, error) {
	sent := bson.M{"$sum": bson.M{"$cond": bson.A{
		bson.M{"$gt": bson.A{bson.M{"$ifNull": bson.A{"$sentAt", nil}}, nil}}, 1, 0,
	}}}
	thisMonth := bson.M{"$sum": bson.M{"$cond": bson.A{
		bson.M{"$gte": bson.A{"$createdAt", monthStart}}, 1, 0,
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"trainerId": trainerID}}},
		{{Key: "$group", Value: bson.M{
			"_id":        nil,
			"total":      bson.M{"$sum": 1},
			"generating": sumIf(domain.ReportGenerating, 1),
			"ready":      sumIf(domain.ReportReady, 1),
			"failed":     sumIf(domain.ReportFailed, 1),
			"sent":       sent,
			"thisMonth":  thisMonth,
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return repository.ReportCounts{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total      int64 `bson:"total"`
		Generating int64 `bson:"generating"`
		Ready      int64 `bson:"ready"`
		Failed     int64 `bson:"failed"`
		Sent       int64 `bson:"sent"`
		ThisMonth  int64 `bson:"thisMonth"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return repository.ReportCounts{}, err
	}
	if len(rows) == 0 {
		return repository.ReportCounts{}, nil
	}
	row := rows[0]
	return repository.ReportCounts{
		Total:      row.Total,
		Generating: row.Generating,
		Ready:      row.Ready,
		Failed:     row.Failed,
		Sent:       row.Sent,
		ThisMonth:  row.ThisMonth,
	}, nil
}

// EnsureReportIndexes creates indexes for both report collections.
func EnsureReportIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "studentId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	})
	createIndexes(ctx, collection.Database().Collection(reportTypeCollectionName), []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
}
