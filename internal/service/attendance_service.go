package service

import (
	"context"
	"errors"
	"log"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrAttendanceExists   = errors.New("attendance was already registered for this student at this date and time")
	ErrAttendanceNotFound = newNotFound("attendance record")
)

type AttendanceInput struct {
	StudentID primitive.ObjectID
	Date      time.Time
	Start     domain.TimeOfDay
	End       domain.TimeOfDay
	Status    domain.AttendanceStatus
	Notes     string
}

type AttendanceService interface {
	Create(ctx context.Context, trainerID primitive.ObjectID, in AttendanceInput) (*domain.AttendanceRecord, error)
	Get(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.AttendanceRecord, error)
	List(ctx context.Context, trainerID primitive.ObjectID, filter repository.AttendanceFilter) ([]domain.AttendanceRecord, error)
	Update(ctx context.Context, trainerID, id primitive.ObjectID, in AttendanceInput) (*domain.AttendanceRecord, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	// QuickRegister records the student as present for a session and marks the
	// session completed.
	QuickRegister(ctx context.Context, trainerID, sessionID primitive.ObjectID) (*domain.AttendanceRecord, error)
}

type attendanceService struct {
	repos Repositories
}

func NewAttendanceService(repos Repositories) AttendanceService {
	return &attendanceService{repos: repos}
}

func validateAttendance(in *AttendanceInput) error {
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	in.Date = domain.DateOf(in.Date)
	if in.Start == "" || in.End == "" {
		return invalid("start", "start and end are required")
	}
	if err := normalizeTimes(&in.Start, &in.End); err != nil {
		return err
	}
	if err := domain.ValidateRange(in.Start, in.End); err != nil {
		return err
	}
	if in.Status == "" {
		in.Status = domain.AttendancePresent
	}
	if !in.Status.Valid() {
		return invalid("status", "must be present, absent or excused")
	}
	return nil
}

func (s *attendanceService) Create(ctx context.Context, trainerID primitive.ObjectID, in AttendanceInput) (*domain.AttendanceRecord, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if err := validateAttendance(&in); err != nil {
		return nil, err
	}
	record := &domain.AttendanceRecord{
		StudentID:   student.ID,
		TrainerID:   trainerID,
		StudentName: student.Name,
		Date:        in.Date,
		Start:       in.Start,
		End:         in.End,
		Status:      in.Status,
		Notes:       in.Notes,
	}
	id, err := s.repos.Attendance.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	record.ID = id
	return record, nil
}

func (s *attendanceService) Get(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.AttendanceRecord, error) {
	record, err := s.repos.Attendance.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrAttendanceNotFound)
	}
	return record, nil
}

func (s *attendanceService) List(ctx context.Context, trainerID primitive.ObjectID, filter repository.AttendanceFilter) ([]domain.AttendanceRecord, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, invalid("status", "must be present, absent or excused")
	}
	return s.repos.Attendance.List(ctx, trainerID, filter)
}

func (s *attendanceService) Update(ctx context.Context, trainerID, id primitive.ObjectID, in AttendanceInput) (*domain.AttendanceRecord, error) {
	record, err := s.Get(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if in.StudentID != primitive.NilObjectID && in.StudentID != record.StudentID {
		student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
		if err != nil {
			return nil, err
		}
		record.StudentID = student.ID
		record.StudentName = student.Name
	}
	if err := validateAttendance(&in); err != nil {
		return nil, err
	}
	record.Date = in.Date
	record.Start = in.Start
	record.End = in.End
	record.Status = in.Status
	record.Notes = in.Notes
	if err := s.repos.Attendance.Update(ctx, record); err != nil {
		return nil, notFound(err, ErrAttendanceNotFound)
	}
	return record, nil
}

func (s *attendanceService) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return notFound(s.repos.Attendance.Delete(ctx, trainerID, id), ErrAttendanceNotFound)
}

func (s *attendanceService) QuickRegister(ctx context.Context, trainerID, sessionID primitive.ObjectID) (*domain.AttendanceRecord, error) {
	session, err := s.repos.Sessions.GetByID(ctx, trainerID, sessionID)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}

	exists, err := s.repos.Attendance.Exists(ctx, trainerID, session.StudentID, session.Date, session.Start)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAttendanceExists
	}

	record := &domain.AttendanceRecord{
		StudentID:   session.StudentID,
		TrainerID:   trainerID,
		StudentName: session.StudentName,
		Date:        session.Date,
		Start:       session.Start,
		End:         session.End,
		Status:      domain.AttendancePresent,
	}
	id, err := s.repos.Attendance.Create(ctx, record)
	if err != nil {
		return nil, err
	}
	record.ID = id

	if err := s.repos.Sessions.SetStatus(ctx, trainerID, session.ID, domain.SessionCompleted); err != nil {
		// Remove the record so the registration can be retried.
		log.Printf("ERROR: Session %s not marked completed, removing attendance %s: %v", session.ID.Hex(), id.Hex(), err)
		if delErr := s.repos.Attendance.Delete(context.WithoutCancel(ctx), trainerID, id); delErr != nil {
			log.Printf("ERROR: Failed to remove attendance %s: %v", id.Hex(), delErr)
		}
		return nil, err
	}
	return record, nil
}
