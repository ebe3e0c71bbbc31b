package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReportType is an admin-managed template controlling which sections a
// progress report contains. Shared across trainers.
type ReportType struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name                string             `bson:"name" json:"name"`
	Description         string             `bson:"description,omitempty" json:"description,omitempty"`
	IncludeCharts       bool               `bson:"includeCharts" json:"includeCharts"`
	IncludePhotos       bool               `bson:"includePhotos" json:"includePhotos"`
	IncludeMeasurements bool               `bson:"includeMeasurements" json:"includeMeasurements"`
	IncludeAttendance   bool               `bson:"includeAttendance" json:"includeAttendance"`
	Active              bool               `bson:"active" json:"active"`
	CreatedAt           time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type ReportStatus string

const (
	ReportGenerating ReportStatus = "generating"
	ReportReady      ReportStatus = "ready"
	ReportFailed     ReportStatus = "failed"
)

// Report is a generated progress document stored in object storage.
type Report struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	StudentID   primitive.ObjectID `bson:"studentId" json:"studentId"`
	TypeID      primitive.ObjectID `bson:"typeId" json:"typeId"`
	Title       string             `bson:"title" json:"title"`
	PeriodStart time.Time          `bson:"periodStart" json:"periodStart"`
	PeriodEnd   time.Time          `bson:"periodEnd" json:"periodEnd"`
	Status      ReportStatus       `bson:"status" json:"status"`
	S3ObjectKey string             `bson:"s3ObjectKey,omitempty" json:"-"`
	Error       string             `bson:"error,omitempty" json:"error,omitempty"`
	SentTo      string             `bson:"sentTo,omitempty" json:"sentTo,omitempty"`
	SentAt      *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}
