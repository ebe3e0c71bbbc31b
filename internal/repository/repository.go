package repository

import (
	"context"
	"time"

	"formafit/trainer-app/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound     = RepositoryError("not found")
	ErrDuplicate    = RepositoryError("duplicate key")
	ErrUpdateFailed = RepositoryError("update failed")
	ErrDeleteFailed = RepositoryError("delete failed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// Every lookup below except users and report types takes the trainer ID
// and filters on it. A record owned by another trainer is reported as
// ErrNotFound.

// UserRepository defines the interface for interacting with trainer accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) (primitive.ObjectID, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.User, error)
}

// StudentFilter narrows a student listing. Zero values mean "any".
type StudentFilter struct {
	Search    string // name, email or phone, case-insensitive
	Active    *bool
	Objective string
}

// StudentCounts are the header numbers of the student list.
type StudentCounts struct {
	Total    int64 `json:"total"`
	Active   int64 `json:"active"`
	Inactive int64 `json:"inactive"`
}

type StudentRepository interface {
	Create(ctx context.Context, student *domain.Student) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error)
	List(ctx context.Context, trainerID primitive.ObjectID, filter StudentFilter) ([]domain.Student, error)
	Counts(ctx context.Context, trainerID primitive.ObjectID) (StudentCounts, error)
	Update(ctx context.Context, student *domain.Student) error
	SetActive(ctx context.Context, trainerID, id primitive.ObjectID, active bool) error
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
}

// MeasurementRepository stores dated body measurements (unique per student and date).
type MeasurementRepository interface {
	Create(ctx context.Context, m *domain.BodyMeasurement) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.BodyMeasurement, error)
	// ListByStudent returns newest first. since is inclusive; limit 0 means no limit.
	ListByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID, since *time.Time, limit int64) ([]domain.BodyMeasurement, error)
	Update(ctx context.Context, m *domain.BodyMeasurement) error
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

// MonthlyTrackingRepository stores one check-in per (student, year, month).
type MonthlyTrackingRepository interface {
	Get(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) (*domain.MonthlyTracking, error)
	// Upsert inserts or replaces the row for the tracking's (student, year, month).
	Upsert(ctx context.Context, t *domain.MonthlyTracking) error
	ListByYear(ctx context.Context, trainerID, studentID primitive.ObjectID, year int) ([]domain.MonthlyTracking, error)
	Delete(ctx context.Context, trainerID, studentID primitive.ObjectID, year, month int) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

type PhotoRepository interface {
	Create(ctx context.Context, p *domain.ProgressPhoto) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ProgressPhoto, error)
	ListByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID, limit int64) ([]domain.ProgressPhoto, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

// ScheduleSlotRepository stores recurring weekly slots (unique per student, weekday, start).
type ScheduleSlotRepository interface {
	Create(ctx context.Context, s *domain.ScheduleSlot) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduleSlot, error)
	ListByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ScheduleSlot, error)
	ListActive(ctx context.Context, trainerID primitive.ObjectID) ([]domain.ScheduleSlot, error)
	Update(ctx context.Context, s *domain.ScheduleSlot) error
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

// SessionFilter narrows session listings. From and To are inclusive dates.
type SessionFilter struct {
	StudentID *primitive.ObjectID
	Search    string // student name
	Statuses  []domain.SessionStatus
	From      *time.Time
	To        *time.Time
	Limit     int64
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.ScheduledSession) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduledSession, error)
	// List orders by date then start time.
	List(ctx context.Context, trainerID primitive.ObjectID, filter SessionFilter) ([]domain.ScheduledSession, error)
	Count(ctx context.Context, trainerID primitive.ObjectID, filter SessionFilter) (int64, error)
	Exists(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, start domain.TimeOfDay) (bool, error)
	Update(ctx context.Context, s *domain.ScheduledSession) error
	SetStatus(ctx context.Context, trainerID, id primitive.ObjectID, status domain.SessionStatus) error
	// CountByStudent groups sessions matching filter by student.
	CountByStudent(ctx context.Context, trainerID primitive.ObjectID, filter SessionFilter) (map[primitive.ObjectID]int64, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	// SetStudentName refreshes the denormalized name after a student is renamed.
	SetStudentName(ctx context.Context, trainerID, studentID primitive.ObjectID, name string) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

// AttendanceFilter narrows attendance listings. From and To are inclusive dates.
type AttendanceFilter struct {
	StudentID *primitive.ObjectID
	Search    string
	Status    domain.AttendanceStatus
	From      *time.Time
	To        *time.Time
}

type AttendanceRepository interface {
	Create(ctx context.Context, a *domain.AttendanceRecord) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.AttendanceRecord, error)
	// List orders newest first.
	List(ctx context.Context, trainerID primitive.ObjectID, filter AttendanceFilter) ([]domain.AttendanceRecord, error)
	Exists(ctx context.Context, trainerID, studentID primitive.ObjectID, date time.Time, start domain.TimeOfDay) (bool, error)
	Update(ctx context.Context, a *domain.AttendanceRecord) error
	CountByStudent(ctx context.Context, trainerID primitive.ObjectID, filter AttendanceFilter) (map[primitive.ObjectID]int64, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	// SetStudentName refreshes the denormalized name after a student is renamed.
	SetStudentName(ctx context.Context, trainerID, studentID primitive.ObjectID, name string) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

type PlanRepository interface {
	Create(ctx context.Context, p *domain.BillingPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.BillingPlan, error)
	List(ctx context.Context, trainerID primitive.ObjectID, activeOnly bool) ([]domain.BillingPlan, error)
	Update(ctx context.Context, p *domain.BillingPlan) error
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
}

type ContractRepository interface {
	Create(ctx context.Context, c *domain.Contract) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error)
	List(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Contract, error)
	Update(ctx context.Context, c *domain.Contract) error
	CountByPlan(ctx context.Context, trainerID, planID primitive.ObjectID) (int64, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

// InvoiceFilter narrows invoice listings. Zero values mean "any".
type InvoiceFilter struct {
	StudentID *primitive.ObjectID
	Search    string // student name
	Statuses  []domain.InvoiceStatus
	Month     int
	Year      int
	DueFrom   *time.Time
	DueTo     *time.Time
	Limit     int64
}

// InvoiceSummary aggregates the invoices matching a filter.
type InvoiceSummary struct {
	Count       int64   `json:"count"`
	Pending     int64   `json:"pending"`
	Paid        int64   `json:"paid"`
	Overdue     int64   `json:"overdue"`
	Total       float64 `json:"total"`
	Received    float64 `json:"received"`
	Outstanding float64 `json:"outstanding"`
}

// MonthlyRevenue is the paid amount for one reference month.
type MonthlyRevenue struct {
	Year   int     `json:"year"`
	Month  int     `json:"month"`
	Amount float64 `json:"amount"`
}

// InvoiceRepository stores invoices (unique per student, refMonth, refYear).
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error)
	// List orders by due date, most recent first.
	List(ctx context.Context, trainerID primitive.ObjectID, filter InvoiceFilter) ([]domain.Invoice, error)
	Summarize(ctx context.Context, trainerID primitive.ObjectID, filter InvoiceFilter) (InvoiceSummary, error)
	// ExistsForPeriod ignores excludeID so an invoice does not collide with itself on edit.
	ExistsForPeriod(ctx context.Context, trainerID, studentID primitive.ObjectID, month, year int, excludeID primitive.ObjectID) (bool, error)
	// PaidRevenue sums paid invoices per reference month, oldest first.
	PaidRevenue(ctx context.Context, trainerID primitive.ObjectID, fromYear, fromMonth, toYear, toMonth int) ([]MonthlyRevenue, error)
	Update(ctx context.Context, inv *domain.Invoice) error
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	// SetStudentName refreshes the denormalized name after a student is renamed.
	SetStudentName(ctx context.Context, trainerID, studentID primitive.ObjectID, name string) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
}

// ReportTypeRepository is global; report types are managed by admins.
type ReportTypeRepository interface {
	Create(ctx context.Context, t *domain.ReportType) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.ReportType, error)
	List(ctx context.Context, activeOnly bool) ([]domain.ReportType, error)
	Update(ctx context.Context, t *domain.ReportType) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

type ReportRepository interface {
	Create(ctx context.Context, r *domain.Report) (primitive.ObjectID, error)
	GetByID(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error)
	List(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Report, error)
	Update(ctx context.Context, r *domain.Report) error
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	DeleteByStudent(ctx context.Context, trainerID, studentID primitive.ObjectID) error
	// Recent returns the newest reports first.
	Recent(ctx context.Context, trainerID primitive.ObjectID, limit int64) ([]domain.Report, error)
	// Summarize counts reports per status; ThisMonth counts those created at
	// or after monthStart.
	Summarize(ctx context.Context, trainerID primitive.ObjectID, monthStart time.Time) (ReportCounts, error)
}

// ReportCounts aggregates a trainer's reports.
type ReportCounts struct {
	Total      int64 `json:"total"`
	Generating int64 `json:"generating"`
	Ready      int64 `json:"ready"`
	Failed     int64 `json:"failed"`
	Sent       int64 `json:"sent"`
	ThisMonth  int64 `json:"thisMonth"`
}
