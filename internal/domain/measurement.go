package domain

import (
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BodyMeasurement is a dated snapshot of weight and circumferences.
// At most one exists per (student, date).
type BodyMeasurement struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID primitive.ObjectID `bson:"trainerId" json:"trainerId"` // denormalized for tenant filtering
	Date      time.Time          `bson:"date" json:"date"`

	WeightKg   float64  `bson:"weightKg" json:"weightKg"`
	BodyFatPct *float64 `bson:"bodyFatPct,omitempty" json:"bodyFatPct,omitempty"`

	// Circumferences in centimetres
	NeckCm       *float64 `bson:"neckCm,omitempty" json:"neckCm,omitempty"`
	ChestCm      *float64 `bson:"chestCm,omitempty" json:"chestCm,omitempty"`
	WaistCm      *float64 `bson:"waistCm,omitempty" json:"waistCm,omitempty"`
	HipCm        *float64 `bson:"hipCm,omitempty" json:"hipCm,omitempty"`
	RightArmCm   *float64 `bson:"rightArmCm,omitempty" json:"rightArmCm,omitempty"`
	LeftArmCm    *float64 `bson:"leftArmCm,omitempty" json:"leftArmCm,omitempty"`
	RightThighCm *float64 `bson:"rightThighCm,omitempty" json:"rightThighCm,omitempty"`
	LeftThighCm  *float64 `bson:"leftThighCm,omitempty" json:"leftThighCm,omitempty"`

	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// BMI uses the owning student's height; measurements don't carry their own.
func (m *BodyMeasurement) BMI(heightM float64) *float64 {
	return BMI(m.WeightKg, heightM)
}

// MonthlyTracking is the one-per-(student, year, month) check-in. Unlike
// BodyMeasurement its BMI is persisted and recomputed on every save.
type MonthlyTracking struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	Year      int                `bson:"year" json:"year"`
	Month     int                `bson:"month" json:"month"`

	WeightKg   float64  `bson:"weightKg" json:"weightKg"`
	BodyFatPct *float64 `bson:"bodyFatPct,omitempty" json:"bodyFatPct,omitempty"`

	ShoulderCm *float64 `bson:"shoulderCm,omitempty" json:"shoulderCm,omitempty"`
	ChestCm    *float64 `bson:"chestCm,omitempty" json:"chestCm,omitempty"`
	ArmCm      *float64 `bson:"armCm,omitempty" json:"armCm,omitempty"`
	HipCm      *float64 `bson:"hipCm,omitempty" json:"hipCm,omitempty"`
	WaistCm    *float64 `bson:"waistCm,omitempty" json:"waistCm,omitempty"`
	ThighCm    *float64 `bson:"thighCm,omitempty" json:"thighCm,omitempty"`
	CalfCm     *float64 `bson:"calfCm,omitempty" json:"calfCm,omitempty"`

	BMI *float64 `bson:"bmi,omitempty" json:"bmi,omitempty"`

	Notes     string    `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// DeriveBMI recomputes the persisted BMI from the current weight and the
// student's height, rounded to two decimals like the stored column.
// Must be called before every write.
func (t *MonthlyTracking) DeriveBMI(heightM float64) {
	bmi := BMI(t.WeightKg, heightM)
	if bmi == nil {
		t.BMI = nil
		return
	}
	rounded := math.Round(*bmi*100) / 100
	t.BMI = &rounded
}

// Category classifies the persisted BMI.
func (t *MonthlyTracking) Category() BMICategory {
	return ClassifyBMI(t.BMI)
}

// PhotoAngle tags a progress photo.
type PhotoAngle string

const (
	PhotoFront PhotoAngle = "front"
	PhotoSide  PhotoAngle = "side"
	PhotoBack  PhotoAngle = "back"
	PhotoOther PhotoAngle = "other"
)

// Valid reports whether a is one of the known angles.
func (a PhotoAngle) Valid() bool {
	switch a {
	case PhotoFront, PhotoSide, PhotoBack, PhotoOther:
		return true
	}
	return false
}

// ProgressPhoto stores metadata about a photo; the file itself lives in S3.
type ProgressPhoto struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID   primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	Date        time.Time          `bson:"date" json:"date"`
	Angle       PhotoAngle         `bson:"angle" json:"angle"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	S3ObjectKey string             `bson:"s3ObjectKey" json:"-"`
	FileName    string             `bson:"fileName" json:"fileName"`
	ContentType string             `bson:"contentType" json:"contentType"`
	Size        int64              `bson:"size" json:"size"`
	UploadedAt  time.Time          `bson:"uploadedAt" json:"uploadedAt"`
}
