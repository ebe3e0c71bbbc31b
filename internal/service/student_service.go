package service

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"
	"formafit/trainer-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	detailMeasurements = 10
	detailPhotos       = 6
	detailSessions     = 3
	presenceWindowDays = 30
	weightWindowDays   = 180
	presenceMonths     = 6
)

// StudentInput carries the editable fields of a student.
type StudentInput struct {
	Name            string
	Email           string
	Phone           string
	BirthDate       time.Time
	Sex             domain.Sex
	Address         string
	HeightM         float64
	InitialWeightKg float64
	Objective       string
	Notes           string
	Active          *bool      // defaults to true on create
	StartDate       *time.Time // defaults to today on create
}

// StudentList is a filtered listing plus header counts.
type StudentList struct {
	Students []domain.Student         `json:"students"`
	Counts   repository.StudentCounts `json:"counts"`
}

// MonthlyCell is one month in the tracking grid; Tracking is nil when the
// month has no check-in.
type MonthlyCell struct {
	Month    int                     `json:"month"`
	Tracking *domain.MonthlyTracking `json:"tracking"`
}

// StudentDetail is the student profile page.
type StudentDetail struct {
	Student          *domain.Student           `json:"student"`
	Measurements     []domain.BodyMeasurement  `json:"measurements"`
	Photos           []domain.ProgressPhoto    `json:"photos"`
	RecentPresences  int                       `json:"recentPresences"`
	UpcomingSessions []domain.ScheduledSession `json:"upcomingSessions"`
	OpenInvoices     []domain.Invoice          `json:"openInvoices"`
	Year             int                       `json:"year"`
	MonthlyGrid      []MonthlyCell             `json:"monthlyGrid"`
}

type WeightPoint struct {
	Date     time.Time `json:"date"`
	WeightKg float64   `json:"weightKg"`
	BMI      *float64  `json:"bmi,omitempty"`
}

type MonthCount struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Count int `json:"count"`
}

// StudentStats feeds the progress charts.
type StudentStats struct {
	Weight    []WeightPoint `json:"weight"`
	Presences []MonthCount  `json:"presences"`
}

type StudentService interface {
	List(ctx context.Context, trainerID primitive.ObjectID, filter repository.StudentFilter) (*StudentList, error)
	Create(ctx context.Context, trainerID primitive.ObjectID, in StudentInput) (*domain.Student, error)
	Get(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error)
	Detail(ctx context.Context, trainerID, id primitive.ObjectID, year int) (*StudentDetail, error)
	Update(ctx context.Context, trainerID, id primitive.ObjectID, in StudentInput) (*domain.Student, error)
	ToggleActive(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
	Stats(ctx context.Context, trainerID, id primitive.ObjectID) (*StudentStats, error)
}

type studentService struct {
	repos Repositories
	files storage.FileStorage
	clock Clock
}

func NewStudentService(repos Repositories, files storage.FileStorage, clock Clock) StudentService {
	return &studentService{repos: repos, files: files, clock: clock}
}

// validateStudentInput normalises in and checks every field.
func validateStudentInput(in *StudentInput, today time.Time) error {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Phone = strings.TrimSpace(in.Phone)

	switch {
	case in.Name == "":
		return invalid("name", "is required")
	case in.Email == "":
		return invalid("email", "is required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return invalid("email", "is not a valid address")
	}
	if !domain.ValidPhone(in.Phone) {
		return invalid("phone", "must look like (11) 99999-9999")
	}
	if in.BirthDate.IsZero() || !domain.DateOf(in.BirthDate).Before(today) {
		return invalid("birthDate", "must be in the past")
	}
	if !in.Sex.Valid() {
		return invalid("sex", "must be M, F or O")
	}
	if in.HeightM <= 0 || in.HeightM > 3 {
		return invalid("heightM", "must be between 0 and 3 metres")
	}
	if in.InitialWeightKg <= 0 || in.InitialWeightKg > 500 {
		return invalid("initialWeightKg", "must be between 0 and 500 kg")
	}
	return nil
}

func (s *studentService) List(ctx context.Context, trainerID primitive.ObjectID, filter repository.StudentFilter) (*StudentList, error) {
	students, err := s.repos.Students.List(ctx, trainerID, filter)
	if err != nil {
		return nil, err
	}
	counts, err := s.repos.Students.Counts(ctx, trainerID)
	if err != nil {
		return nil, err
	}
	return &StudentList{Students: students, Counts: counts}, nil
}

func (s *studentService) Create(ctx context.Context, trainerID primitive.ObjectID, in StudentInput) (*domain.Student, error) {
	today := s.clock.Today()
	if err := validateStudentInput(&in, today); err != nil {
		return nil, err
	}

	student := &domain.Student{
		TrainerID:       trainerID,
		Name:            in.Name,
		Email:           in.Email,
		Phone:           in.Phone,
		BirthDate:       domain.DateOf(in.BirthDate),
		Sex:             in.Sex,
		Address:         strings.TrimSpace(in.Address),
		HeightM:         in.HeightM,
		InitialWeightKg: in.InitialWeightKg,
		Objective:       strings.TrimSpace(in.Objective),
		Notes:           in.Notes,
		Active:          true,
		StartDate:       today,
	}
	if in.Active != nil {
		student.Active = *in.Active
	}
	if in.StartDate != nil {
		student.StartDate = domain.DateOf(*in.StartDate)
	}

	id, err := s.repos.Students.Create(ctx, student)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrStudentEmailUsed
		}
		return nil, err
	}
	student.ID = id
	log.Printf("INFO: Trainer %s created student %s", trainerID.Hex(), id.Hex())
	return student, nil
}

func (s *studentService) Get(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error) {
	return getStudent(ctx, s.repos.Students, trainerID, id)
}

func (s *studentService) Detail(ctx context.Context, trainerID, id primitive.ObjectID, year int) (*StudentDetail, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, id)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()
	if year <= 0 {
		year = today.Year()
	}

	detail := &StudentDetail{Student: student, Year: year}

	if detail.Measurements, err = s.repos.Measurements.ListByStudent(ctx, trainerID, id, nil, detailMeasurements); err != nil {
		return nil, err
	}
	if detail.Photos, err = s.repos.Photos.ListByStudent(ctx, trainerID, id, detailPhotos); err != nil {
		return nil, err
	}

	since := today.AddDate(0, 0, -presenceWindowDays)
	presences, err := s.repos.Attendance.List(ctx, trainerID, repository.AttendanceFilter{
		StudentID: &id,
		Status:    domain.AttendancePresent,
		From:      &since,
		To:        &today,
	})
	if err != nil {
		return nil, err
	}
	detail.RecentPresences = len(presences)

	if detail.UpcomingSessions, err = s.repos.Sessions.List(ctx, trainerID, repository.SessionFilter{
		StudentID: &id,
		Statuses:  []domain.SessionStatus{domain.SessionScheduled, domain.SessionConfirmed},
		From:      &today,
		Limit:     detailSessions,
	}); err != nil {
		return nil, err
	}

	if detail.OpenInvoices, err = s.repos.Invoices.List(ctx, trainerID, repository.InvoiceFilter{
		StudentID: &id,
		Statuses:  []domain.InvoiceStatus{domain.InvoicePending, domain.InvoiceOverdue},
	}); err != nil {
		return nil, err
	}

	tracked, err := s.repos.Monthly.ListByYear(ctx, trainerID, id, year)
	if err != nil {
		return nil, err
	}
	detail.MonthlyGrid = monthlyGrid(tracked)
	return detail, nil
}

// monthlyGrid lays out twelve cells, January first.
func monthlyGrid(tracked []domain.MonthlyTracking) []MonthlyCell {
	grid := make([]MonthlyCell, 12)
	for i := range grid {
		grid[i].Month = i + 1
	}
	for i := range tracked {
		if m := tracked[i].Month; m >= 1 && m <= 12 {
			grid[m-1].Tracking = &tracked[i]
		}
	}
	return grid
}

func (s *studentService) Update(ctx context.Context, trainerID, id primitive.ObjectID, in StudentInput) (*domain.Student, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, id)
	if err != nil {
		return nil, err
	}
	if err := validateStudentInput(&in, s.clock.Today()); err != nil {
		return nil, err
	}

	renamed := student.Name != in.Name
	student.Name = in.Name
	student.Email = in.Email
	student.Phone = in.Phone
	student.BirthDate = domain.DateOf(in.BirthDate)
	student.Sex = in.Sex
	student.Address = strings.TrimSpace(in.Address)
	student.HeightM = in.HeightM
	student.InitialWeightKg = in.InitialWeightKg
	student.Objective = strings.TrimSpace(in.Objective)
	student.Notes = in.Notes
	if in.Active != nil {
		student.Active = *in.Active
	}
	if in.StartDate != nil {
		student.StartDate = domain.DateOf(*in.StartDate)
	}

	if err := s.repos.Students.Update(ctx, student); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrStudentEmailUsed
		}
		return nil, notFound(err, ErrStudentNotFound)
	}

	if renamed {
		for _, r := range []interface {
			SetStudentName(context.Context, primitive.ObjectID, primitive.ObjectID, string) error
		}{s.repos.Sessions, s.repos.Attendance, s.repos.Invoices} {
			if err := r.SetStudentName(ctx, trainerID, id, student.Name); err != nil {
				log.Printf("WARN: Failed to propagate new name of student %s: %v", id.Hex(), err)
			}
		}
	}
	return student, nil
}

func (s *studentService) ToggleActive(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Student, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, id)
	if err != nil {
		return nil, err
	}
	student.Active = !student.Active
	if err := s.repos.Students.SetActive(ctx, trainerID, id, student.Active); err != nil {
		return nil, notFound(err, ErrStudentNotFound)
	}
	return student, nil
}

// Delete removes the student and everything hanging off it, including
// stored photos and report files.
func (s *studentService) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, id); err != nil {
		return err
	}

	var keys []string
	photos, err := s.repos.Photos.ListByStudent(ctx, trainerID, id, 0)
	if err != nil {
		return err
	}
	for _, p := range photos {
		keys = append(keys, p.S3ObjectKey)
	}
	reports, err := s.repos.Reports.List(ctx, trainerID, &id)
	if err != nil {
		return err
	}
	for _, r := range reports {
		if r.S3ObjectKey != "" {
			keys = append(keys, r.S3ObjectKey)
		}
	}

	children := []interface {
		DeleteByStudent(context.Context, primitive.ObjectID, primitive.ObjectID) error
	}{
		s.repos.Measurements, s.repos.Monthly, s.repos.Photos, s.repos.Slots, s.repos.Sessions,
		s.repos.Attendance, s.repos.Invoices, s.repos.Contracts, s.repos.Reports,
	}
	for _, child := range children {
		if err := child.DeleteByStudent(ctx, trainerID, id); err != nil {
			return err
		}
	}
	if err := s.repos.Students.Delete(ctx, trainerID, id); err != nil {
		return notFound(err, ErrStudentNotFound)
	}

	// Orphaned objects are harmless, so storage failures are only logged.
	for _, key := range keys {
		if err := s.files.DeleteObject(ctx, key); err != nil {
			log.Printf("WARN: Failed to delete object %s of removed student %s: %v", key, id.Hex(), err)
		}
	}
	log.Printf("INFO: Trainer %s deleted student %s", trainerID.Hex(), id.Hex())
	return nil
}

func (s *studentService) Stats(ctx context.Context, trainerID, id primitive.ObjectID) (*StudentStats, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, id)
	if err != nil {
		return nil, err
	}
	today := s.clock.Today()

	since := today.AddDate(0, 0, -weightWindowDays)
	measurements, err := s.repos.Measurements.ListByStudent(ctx, trainerID, id, &since, 0)
	if err != nil {
		return nil, err
	}
	stats := &StudentStats{Weight: make([]WeightPoint, 0, len(measurements))}
	// Repository returns newest first; charts want oldest first.
	for i := len(measurements) - 1; i >= 0; i-- {
		m := measurements[i]
		stats.Weight = append(stats.Weight, WeightPoint{Date: m.Date, WeightKg: m.WeightKg, BMI: m.BMI(student.HeightM)})
	}

	firstYear, firstMonth := domain.AddMonths(today.Year(), today.Month(), -(presenceMonths - 1))
	from := time.Date(firstYear, firstMonth, 1, 0, 0, 0, 0, time.UTC)
	records, err := s.repos.Attendance.List(ctx, trainerID, repository.AttendanceFilter{
		StudentID: &id,
		Status:    domain.AttendancePresent,
		From:      &from,
		To:        &today,
	})
	if err != nil {
		return nil, err
	}

	stats.Presences = make([]MonthCount, presenceMonths)
	for i := range stats.Presences {
		y, m := domain.AddMonths(firstYear, firstMonth, i)
		stats.Presences[i] = MonthCount{Year: y, Month: int(m)}
	}
	for _, r := range records {
		idx := (r.Date.Year()-firstYear)*12 + int(r.Date.Month()) - int(firstMonth)
		if idx >= 0 && idx < presenceMonths {
			stats.Presences[idx].Count++
		}
	}
	return stats, nil
}
