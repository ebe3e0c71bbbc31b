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

const invoiceCollectionName = "invoices"

// mongoInvoiceRepository implements repository.InvoiceRepository
type mongoInvoiceRepository struct {
	collection *mongo.Collection
}

func NewMongoInvoiceRepository(db *mongo.Database) repository.InvoiceRepository {
	return &mongoInvoiceRepository{
		collection: db.Collection(invoiceCollectionName),
	}
}

// Create inserts an invoice. The unique (studentId, refMonth, refYear) index
// turns a concurrent duplicate into ErrDuplicate.
func (r *mongoInvoiceRepository) Create(ctx context.Context, inv *domain.Invoice) (primitive.ObjectID, error) {
	if inv.StudentID == primitive.NilObjectID || inv.TrainerID == primitive.NilObjectID {
		return primitive.NilObjectID, errors.New("invoice requires studentId and trainerId")
	}
	inv.ID = primitive.NewObjectID()
	inv.DueDate = domain.DateOf(inv.DueDate)
	now := time.Now().UTC()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, inv)
	if err != nil {
		return primitive.NilObjectID, insertErr(err)
	}
	return insertedObjectID(result)
}

func (r *mongoInvoiceRepository) GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error) {
	return findOne[domain.Invoice](ctx, r.collection, bson.M{"_id": id, "trainerId": trainerID})
}

func invoiceFilter(trainerID primitive.ObjectID, f repository.InvoiceFilter) bson.M {
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
	if f.Month > 0 {
		filter["refMonth"] = f.Month
	}
	if f.Year > 0 {
		filter["refYear"] = f.Year
	}
	if cond := dateRange(f.DueFrom, f.DueTo); cond != nil {
		filter["dueDate"] = cond
	}
	return filter
}

func (r *mongoInvoiceRepository) List(ctx context.Context, trainerID primitive.ObjectID, f repository.InvoiceFilter) ([]domain.Invoice, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "dueDate", Value: -1}, {Key: "studentName", Value: 1}})
	if f.Limit > 0 {
		findOptions.SetLimit(f.Limit)
	}
	return findAll[domain.Invoice](ctx, r.collection, invoiceFilter(trainerID, f), findOptions)
}

func sumIf(status, value interface{}) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{bson.M{"$eq": bson.A{"$status", status}}, value, 0}}}
}

// Summarize counts invoices per status and sums amounts in one pass.
func (r *mongoInvoiceRepository) Summarize(ctx context.Context, trainerID primitive.ObjectID, f repository.InvoiceFilter) (repository.InvoiceSummary, error) {
	open := bson.A{domain.InvoicePending, domain.InvoiceOverdue}
	outstanding := bson.M{"$sum": bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{"$status", open}}, "$amount", 0,
	}}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: invoiceFilter(trainerID, f)}},
		{{Key: "$group", Value: bson.M{
			"_id":         nil,
			"count":       bson.M{"$sum": 1},
			"pending":     sumIf(domain.InvoicePending, 1),
			"paid":        sumIf(domain.InvoicePaid, 1),
			"overdue":     sumIf(domain.InvoiceOverdue, 1),
			"total":       bson.M{"$sum": "$amount"},
			"received":    sumIf(domain.InvoicePaid, "$amount"),
			"outstanding": outstanding,
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return repository.InvoiceSummary{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Count       int64   `bson:"count"`
		Pending     int64   `bson:"pending"`
		Paid        int64   `bson:"paid"`
		Overdue     int64   `bson:"overdue"`
		Total       float64 `bson:"total"`
		Received    float64 `bson:"received"`
		Outstanding float64 `bson:"outstanding"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return repository.InvoiceSummary{}, err
	}
	if len(rows) == 0 {
		return repository.InvoiceSummary{}, nil
	}
	row := rows[0]
	return repository.InvoiceSummary{
		Count:       row.Count,
		Pending:     row.Pending,
		Paid:        row.Paid,
		Overdue:     row.Overdue,
		Total:       domain.RoundCents(row.Total),
		Received:    domain.RoundCents(row.Received),
		Outstanding: domain.RoundCents(row.Outstanding),
	}, nil
}

func (r *mongoInvoiceRepository) ExistsForPeriod(ctx context.Context, trainerID, studentID primitive.ObjectID, month, year int, excludeID primitive.ObjectID) (bool, error) {
	filter := bson.M{"trainerId": trainerID, "studentId": studentID, "refMonth": month, "refYear": year}
	if excludeID != primitive.NilObjectID {
		filter["_id"] = bson.M{"$ne": excludeID}
	}
	n, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	return n > 0, err
}

// PaidRevenue sums paid invoices per reference month within [from, to].
// Months without payments are absent from the result.
func (r *mongoInvoiceRepository) PaidRevenue(ctx context.Context, trainerID primitive.ObjectID, fromYear, fromMonth, toYear, toMonth int) ([]repository.MonthlyRevenue, error) {
	// Months since year zero, so a period range is a plain numeric range.
	period := bson.M{"$add": bson.A{bson.M{"$multiply": bson.A{"$refYear", 12}}, "$refMonth"}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"trainerId": trainerID,
			"status":    domain.InvoicePaid,
			"$expr": bson.M{"$and": bson.A{
				bson.M{"$gte": bson.A{period, fromYear*12 + fromMonth}},
				bson.M{"$lte": bson.A{period, toYear*12 + toMonth}},
			}},
		}}},
		{{Key: "$group", Value: bson.M{
			"_id":    bson.M{"year": "$refYear", "month": "$refMonth"},
			"amount": bson.M{"$sum": "$amount"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "_id.year", Value: 1}, {Key: "_id.month", Value: 1}}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		ID struct {
			Year  int `bson:"year"`
			Month int `bson:"month"`
		} `bson:"_id"`
		Amount float64 `bson:"amount"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	revenue := make([]repository.MonthlyRevenue, 0, len(rows))
	for _, row := range rows {
		revenue = append(revenue, repository.MonthlyRevenue{
			Year:   row.ID.Year,
			Month:  row.ID.Month,
			Amount: domain.RoundCents(row.Amount),
		})
	}
	return revenue, nil
}

func (r *mongoInvoiceRepository) Update(ctx context.Context, inv *domain.Invoice) error {
	if inv.ID == primitive.NilObjectID {
		return errors.New("invoice ID is required for update")
	}
	inv.DueDate = domain.DateOf(inv.DueDate)
	inv.UpdatedAt = time.Now().UTC()
	return replaceOwned(ctx, r.collection, inv.ID, inv.TrainerID, inv)
}

func (r *mongoInvoiceRepository) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return deleteOwned(ctx, r.collection, id, trainerID)
}

func (r *mongoInvoiceRepository) DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error {
	return deleteByStudent(ctx, r.collection, trainerID, studentID)
}

// EnsureInvoiceIndexes creates necessary indexes. Call during startup.
func EnsureInvoiceIndexes(ctx context.Context, collection *mongo.Collection) {
	createIndexes(ctx, collection, []mongo.IndexModel{
		{
			// One invoice per student per reference month
			Keys:    bson.D{{Key: "studentId", Value: 1}, {Key: "refMonth", Value: 1}, {Key: "refYear", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "status", Value: 1}, {Key: "dueDate", Value: 1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "trainerId", Value: 1}, {Key: "refYear", Value: 1}, {Key: "refMonth", Value: 1}},
			Options: options.Index(),
		},
	})
}

func (r *mongoInvoiceRepository) SetStudentName(ctx context.Context, trainerID, studentID primitive.ObjectID, name string) error {
	return setStudentName(ctx, r.collection, trainerID, studentID, name)
}
