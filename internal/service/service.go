package service

import (
	"context"
	"log"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repositories bundles the persistence layer handed to services.
type Repositories struct {
	Users        repository.UserRepository
	Students     repository.StudentRepository
	Measurements repository.MeasurementRepository
	Monthly      repository.MonthlyTrackingRepository
	Photos       repository.PhotoRepository
	Slots        repository.ScheduleSlotRepository
	Sessions     repository.SessionRepository
	Attendance   repository.AttendanceRepository
	Plans        repository.PlanRepository
	Contracts    repository.ContractRepository
	Invoices     repository.InvoiceRepository
	ReportTypes  repository.ReportTypeRepository
	Reports      repository.ReportRepository
}

// Clock decides what "today" is for due dates, overdue derivation and
// schedule projection.
type Clock struct {
	Now      func() time.Time
	Location *time.Location
}

func SystemClock(loc *time.Location) Clock {
	return Clock{Now: time.Now, Location: loc}
}

func (c Clock) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// Today is the current calendar day in the configured location, as UTC midnight.
func (c Clock) Today() time.Time {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	return domain.Today(now(), c.Location)
}

// publish sends an event and only logs failures; events never fail a request.
func publish(ctx context.Context, p events.Publisher, name string, trainerID, studentID primitive.ObjectID, data interface{}) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, events.New(name, trainerID, studentID, data)); err != nil {
		log.Printf("WARN: Failed to publish %s for student %s: %v", name, studentID.Hex(), err)
	}
}

// getStudent loads a student owned by trainerID.
func getStudent(ctx context.Context, repo repository.StudentRepository, trainerID, studentID primitive.ObjectID) (*domain.Student, error) {
	student, err := repo.GetByID(ctx, trainerID, studentID)
	if err != nil {
		return nil, notFound(err, ErrStudentNotFound)
	}
	return student, nil
}
