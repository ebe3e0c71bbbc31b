package service

import (
	"context"
	"errors"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrMeasurementExists   = errors.New("a measurement already exists for this student on this date")
	ErrMeasurementNotFound = newNotFound("measurement")
	ErrTrackingNotFound    = newNotFound("monthly tracking")
)

// MeasurementInput carries the editable fields of a body measurement.
type MeasurementInput struct {
	Date         time.Time
	WeightKg     float64
	BodyFatPct   *float64
	NeckCm       *float64
	ChestCm      *float64
	WaistCm      *float64
	HipCm        *float64
	RightArmCm   *float64
	LeftArmCm    *float64
	RightThighCm *float64
	LeftThighCm  *float64
	Notes        string
}

// TrackingInput carries the editable fields of a monthly check-in.
type TrackingInput struct {
	WeightKg   float64
	BodyFatPct *float64
	ShoulderCm *float64
	ChestCm    *float64
	ArmCm      *float64
	HipCm      *float64
	WaistCm    *float64
	ThighCm    *float64
	CalfCm     *float64
	Notes      string
}

type MeasurementService interface {
	Record(ctx context.Context, trainerID, studentID primitive.ObjectID, in MeasurementInput) (*domain.BodyMeasurement, error)
	List(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.BodyMeasurement, error)
	Update(ctx context.Context, trainerID, id primitive.ObjectID, in MeasurementInput) (*domain.BodyMeasurement, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error

	// GetMonthly returns the stored check-in, or an unsaved empty one when
	// the month has none yet (found is false).
	GetMonthly(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) (t *domain.MonthlyTracking, found bool, err error)
	SaveMonthly(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int, in TrackingInput) (*domain.MonthlyTracking, error)
	DeleteMonthly(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) error
}

type measurementService struct {
	repos     Repositories
	publisher events.Publisher
	clock     Clock
}

func NewMeasurementService(repos Repositories, publisher events.Publisher, clock Clock) MeasurementService {
	return &measurementService{repos: repos, publisher: publisher, clock: clock}
}

func nonNegative(field string, values ...*float64) error {
	for _, v := range values {
		if v != nil && *v < 0 {
			return invalid(field, "must not be negative")
		}
	}
	return nil
}

func validateMeasurement(in MeasurementInput, today time.Time) error {
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	if domain.DateOf(in.Date).After(today) {
		return invalid("date", "cannot be in the future")
	}
	if in.WeightKg <= 0 || in.WeightKg > 500 {
		return invalid("weightKg", "must be between 0 and 500 kg")
	}
	if in.BodyFatPct != nil && (*in.BodyFatPct < 0 || *in.BodyFatPct > 100) {
		return invalid("bodyFatPct", "must be between 0 and 100")
	}
	return nonNegative("circumference", in.NeckCm, in.ChestCm, in.WaistCm, in.HipCm,
		in.RightArmCm, in.LeftArmCm, in.RightThighCm, in.LeftThighCm)
}

func applyMeasurement(m *domain.BodyMeasurement, in MeasurementInput) {
	m.Date = domain.DateOf(in.Date)
	m.WeightKg = in.WeightKg
	m.BodyFatPct = in.BodyFatPct
	m.NeckCm = in.NeckCm
	m.ChestCm = in.ChestCm
	m.WaistCm = in.WaistCm
	m.HipCm = in.HipCm
	m.RightArmCm = in.RightArmCm
	m.LeftArmCm = in.LeftArmCm
	m.RightThighCm = in.RightThighCm
	m.LeftThighCm = in.LeftThighCm
	m.Notes = in.Notes
}

func (s *measurementService) Record(ctx context.Context, trainerID, studentID primitive.ObjectID, in MeasurementInput) (*domain.BodyMeasurement, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, studentID)
	if err != nil {
		return nil, err
	}
	if err := validateMeasurement(in, s.clock.Today()); err != nil {
		return nil, err
	}

	m := &domain.BodyMeasurement{StudentID: studentID, TrainerID: trainerID}
	applyMeasurement(m, in)

	id, err := s.repos.Measurements.Create(ctx, m)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrMeasurementExists
		}
		return nil, err
	}
	m.ID = id

	publish(ctx, s.publisher, events.MeasurementRecorded, trainerID, studentID, map[string]interface{}{
		"measurementId": id.Hex(),
		"date":          m.Date.Format(domain.DateLayout),
		"weightKg":      m.WeightKg,
		"bmi":           m.BMI(student.HeightM),
	})
	return m, nil
}

func (s *measurementService) List(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.BodyMeasurement, error) {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, err
	}
	return s.repos.Measurements.ListByStudent(ctx, trainerID, studentID, nil, 0)
}

func (s *measurementService) Update(ctx context.Context, trainerID, id primitive.ObjectID, in MeasurementInput) (*domain.BodyMeasurement, error) {
	m, err := s.repos.Measurements.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrMeasurementNotFound)
	}
	if err := validateMeasurement(in, s.clock.Today()); err != nil {
		return nil, err
	}
	applyMeasurement(m, in)

	if err := s.repos.Measurements.Update(ctx, m); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrMeasurementExists
		}
		return nil, notFound(err, ErrMeasurementNotFound)
	}
	return m, nil
}

func (s *measurementService) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return notFound(s.repos.Measurements.Delete(ctx, trainerID, id), ErrMeasurementNotFound)
}

func validatePeriod(year, month int) error {
	if month < 1 || month > 12 {
		return invalid("month", "must be between 1 and 12")
	}
	if year < 1900 || year > 2200 {
		return invalid("year", "is out of range")
	}
	return nil
}

func (s *measurementService) GetMonthly(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) (*domain.MonthlyTracking, bool, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, false, err
	}
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, false, err
	}

	t, err := s.repos.Monthly.Get(ctx, trainerID, studentID, year, month)
	if errors.Is(err, repository.ErrNotFound) {
		return &domain.MonthlyTracking{StudentID: studentID, TrainerID: trainerID, Year: year, Month: month}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return t, true, nil
}

// SaveMonthly creates or replaces the check-in for the month. BMI is
// recomputed from the student's current height on every save.
func (s *measurementService) SaveMonthly(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int, in TrackingInput) (*domain.MonthlyTracking, error) {
	if err := validatePeriod(year, month); err != nil {
		return nil, err
	}
	student, err := getStudent(ctx, s.repos.Students, trainerID, studentID)
	if err != nil {
		return nil, err
	}
	if in.WeightKg < 0 || in.WeightKg > 500 {
		return nil, invalid("weightKg", "must be between 0 and 500 kg")
	}
	if err := nonNegative("circumference", in.BodyFatPct, in.ShoulderCm, in.ChestCm, in.ArmCm,
		in.HipCm, in.WaistCm, in.ThighCm, in.CalfCm); err != nil {
		return nil, err
	}

	t := &domain.MonthlyTracking{
		StudentID:  studentID,
		TrainerID:  trainerID,
		Year:       year,
		Month:      month,
		WeightKg:   in.WeightKg,
		BodyFatPct: in.BodyFatPct,
		ShoulderCm: in.ShoulderCm,
		ChestCm:    in.ChestCm,
		ArmCm:      in.ArmCm,
		HipCm:      in.HipCm,
		WaistCm:    in.WaistCm,
		ThighCm:    in.ThighCm,
		CalfCm:     in.CalfCm,
		Notes:      in.Notes,
	}
	t.DeriveBMI(student.HeightM)

	if err := s.repos.Monthly.Upsert(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *measurementService) DeleteMonthly(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) error {
	if err := validatePeriod(year, month); err != nil {
		return err
	}
	return notFound(s.repos.Monthly.Delete(ctx, trainerID, studentID, year, month), ErrTrackingNotFound)
}
