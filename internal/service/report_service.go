package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/mailer"
	"formafit/trainer-app/internal/report"
	"formafit/trainer-app/internal/repository"
	"formafit/trainer-app/internal/storage"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrReportTypeNotFound = newNotFound("report type")
	ErrReportTypeExists   = errors.New("a report type with this name already exists")
	ErrReportTypeInactive = errors.New("report type is inactive")
	ErrReportNotFound     = newNotFound("report")
	ErrReportNotReady     = errors.New("report is not ready")
	ErrEmailDelivery      = errors.New("report email could not be delivered")
)

// Photo links embedded in a report must outlive the email they travel in.
// Seven days is the SigV4 presign maximum.
const reportPhotoURLExpiry = 7 * 24 * time.Hour

const (
	maxBatchReports = 50
	recentReports   = 5
)

type ReportTypeInput struct {
	Name                string
	Description         string
	IncludeCharts       bool
	IncludePhotos       bool
	IncludeMeasurements bool
	IncludeAttendance   bool
	Active              *bool
}

type ReportInput struct {
	StudentID   primitive.ObjectID
	TypeID      primitive.ObjectID
	Title       string // defaults to "<type> - <student>"
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// BatchReportInput generates the same report type and period for several students.
type BatchReportInput struct {
	StudentIDs  []primitive.ObjectID
	TypeID      primitive.ObjectID
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// BatchResult is the outcome for one student of a batch. Report is set
// whenever a record was stored, including failed renders.
type BatchResult struct {
	StudentID primitive.ObjectID `json:"studentId"`
	Report    *domain.Report     `json:"report,omitempty"`
	Code      ErrorCode          `json:"code,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type ReportDashboard struct {
	Counts      repository.ReportCounts `json:"counts"`
	Recent      []domain.Report         `json:"recent"`
	ActiveTypes int                     `json:"activeTypes"`
}

type ReportService interface {
	CreateType(ctx context.Context, in ReportTypeInput) (*domain.ReportType, error)
	GetType(ctx context.Context, id primitive.ObjectID) (*domain.ReportType, error)
	ListTypes(ctx context.Context, activeOnly bool) ([]domain.ReportType, error)
	UpdateType(ctx context.Context, id primitive.ObjectID, in ReportTypeInput) (*domain.ReportType, error)
	DeleteType(ctx context.Context, id primitive.ObjectID) error

	// Generate stores a new report and renders it. A rendering or storage
	// failure leaves the report in the failed state and is returned.
	Generate(ctx context.Context, trainerID primitive.ObjectID, in ReportInput) (*domain.Report, error)
	// GenerateMany runs Generate for each distinct student and reports the
	// outcome per student. Only a bad type or period fails the whole batch.
	GenerateMany(ctx context.Context, trainerID primitive.ObjectID, in BatchReportInput) ([]BatchResult, error)
	Regenerate(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error)
	Dashboard(ctx context.Context, trainerID primitive.ObjectID) (*ReportDashboard, error)
	Get(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error)
	List(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Report, error)
	DownloadURL(ctx context.Context, trainerID, id primitive.ObjectID) (string, error)
	// Email sends the rendered report. An empty address selects the student's email.
	Email(ctx context.Context, trainerID, id primitive.ObjectID, to string) (*domain.Report, error)
	Delete(ctx context.Context, trainerID, id primitive.ObjectID) error
}

type reportService struct {
	repos     Repositories
	files     storage.FileStorage
	sender    mailer.Sender
	renderer  *report.Renderer
	publisher events.Publisher
	clock     Clock
}

func NewReportService(repos Repositories, files storage.FileStorage, sender mailer.Sender, renderer *report.Renderer, publisher events.Publisher, clock Clock) ReportService {
	return &reportService{
		repos:     repos,
		files:     files,
		sender:    sender,
		renderer:  renderer,
		publisher: publisher,
		clock:     clock,
	}
}

// === Report types ===

func (s *reportService) CreateType(ctx context.Context, in ReportTypeInput) (*domain.ReportType, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	rt := &domain.ReportType{
		Name:                in.Name,
		Description:         strings.TrimSpace(in.Description),
		IncludeCharts:       in.IncludeCharts,
		IncludePhotos:       in.IncludePhotos,
		IncludeMeasurements: in.IncludeMeasurements,
		IncludeAttendance:   in.IncludeAttendance,
		Active:              in.Active == nil || *in.Active,
	}
	id, err := s.repos.ReportTypes.Create(ctx, rt)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrReportTypeExists
		}
		return nil, err
	}
	rt.ID = id
	return rt, nil
}

func (s *reportService) GetType(ctx context.Context, id primitive.ObjectID) (*domain.ReportType, error) {
	rt, err := s.repos.ReportTypes.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrReportTypeNotFound)
	}
	return rt, nil
}

func (s *reportService) ListTypes(ctx context.Context, activeOnly bool) ([]domain.ReportType, error) {
	return s.repos.ReportTypes.List(ctx, activeOnly)
}

func (s *reportService) UpdateType(ctx context.Context, id primitive.ObjectID, in ReportTypeInput) (*domain.ReportType, error) {
	rt, err := s.GetType(ctx, id)
	if err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, invalid("name", "is required")
	}
	rt.Name = in.Name
	rt.Description = strings.TrimSpace(in.Description)
	rt.IncludeCharts = in.IncludeCharts
	rt.IncludePhotos = in.IncludePhotos
	rt.IncludeMeasurements = in.IncludeMeasurements
	rt.IncludeAttendance = in.IncludeAttendance
	if in.Active != nil {
		rt.Active = *in.Active
	}
	if err := s.repos.ReportTypes.Update(ctx, rt); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrReportTypeExists
		}
		return nil, notFound(err, ErrReportTypeNotFound)
	}
	return rt, nil
}

func (s *reportService) DeleteType(ctx context.Context, id primitive.ObjectID) error {
	return notFound(s.repos.ReportTypes.Delete(ctx, id), ErrReportTypeNotFound)
}

// === Reports ===

func (s *reportService) Generate(ctx context.Context, trainerID primitive.ObjectID, in ReportInput) (*domain.Report, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
	if err != nil {
		return nil, err
	}
	rt, err := s.prepare(ctx, &in.TypeID, &in.PeriodStart, &in.PeriodEnd)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, trainerID, student, rt, in)
}

// prepare checks the report type and normalizes the period to whole days.
func (s *reportService) prepare(ctx context.Context, typeID *primitive.ObjectID, start, end *time.Time) (*domain.ReportType, error) {
	rt, err := s.GetType(ctx, *typeID)
	if err != nil {
		return nil, err
	}
	if !rt.Active {
		return nil, ErrReportTypeInactive
	}
	if start.IsZero() || end.IsZero() {
		return nil, invalid("period", "start and end are required")
	}
	*start = domain.DateOf(*start)
	*end = domain.DateOf(*end)
	if end.Before(*start) {
		return nil, invalid("periodEnd", "must not be before periodStart")
	}
	return rt, nil
}

func (s *reportService) create(ctx context.Context, trainerID primitive.ObjectID, student *domain.Student, rt *domain.ReportType, in ReportInput) (*domain.Report, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		in.Title = fmt.Sprintf("%s - %s", rt.Name, student.Name)
	}

	rep := &domain.Report{
		TrainerID:   trainerID,
		StudentID:   student.ID,
		TypeID:      rt.ID,
		Title:       in.Title,
		PeriodStart: in.PeriodStart,
		PeriodEnd:   in.PeriodEnd,
		Status:      domain.ReportGenerating,
	}
	id, err := s.repos.Reports.Create(ctx, rep)
	if err != nil {
		return nil, err
	}
	rep.ID = id

	if err := s.build(ctx, rep, student, rt); err != nil {
		return rep, err
	}
	return rep, nil
}

func (s *reportService) GenerateMany(ctx context.Context, trainerID primitive.ObjectID, in BatchReportInput) ([]BatchResult, error) {
	if len(in.StudentIDs) == 0 {
		return nil, invalid("studentIds", "at least one student is required")
	}
	if len(in.StudentIDs) > maxBatchReports {
		return nil, invalid("studentIds", fmt.Sprintf("at most %d students per batch", maxBatchReports))
	}
	rt, err := s.prepare(ctx, &in.TypeID, &in.PeriodStart, &in.PeriodEnd)
	if err != nil {
		return nil, err
	}

	results := make([]BatchResult, 0, len(in.StudentIDs))
	seen := make(map[primitive.ObjectID]bool, len(in.StudentIDs))
	var ready int
	for _, studentID := range in.StudentIDs {
		if seen[studentID] {
			continue
		}
		seen[studentID] = true

		res := BatchResult{StudentID: studentID}
		student, err := getStudent(ctx, s.repos.Students, trainerID, studentID)
		if err == nil {
			res.Report, err = s.create(ctx, trainerID, student, rt, ReportInput{
				StudentID:   studentID,
				TypeID:      rt.ID,
				PeriodStart: in.PeriodStart,
				PeriodEnd:   in.PeriodEnd,
			})
		}
		if err != nil {
			res.Code = CodeOf(err)
			res.Error = err.Error()
			if res.Code == CodeInternal || res.Code == CodeStorage {
				res.Error = Message(res.Code)
			}
		} else {
			ready++
		}
		results = append(results, res)
	}
	log.Printf("INFO: Batch report for trainer %s: %d of %d ready", trainerID.Hex(), ready, len(results))
	return results, nil
}

func (s *reportService) Dashboard(ctx context.Context, trainerID primitive.ObjectID) (*ReportDashboard, error) {
	today := s.clock.Today()
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)

	counts, err := s.repos.Reports.Summarize(ctx, trainerID, monthStart)
	if err != nil {
		return nil, err
	}
	recent, err := s.repos.Reports.Recent(ctx, trainerID, recentReports)
	if err != nil {
		return nil, err
	}
	types, err := s.repos.ReportTypes.List(ctx, true)
	if err != nil {
		return nil, err
	}
	return &ReportDashboard{Counts: counts, Recent: recent, ActiveTypes: len(types)}, nil
}

func (s *reportService) Regenerate(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error) {
	rep, err := s.Get(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	student, err := getStudent(ctx, s.repos.Students, trainerID, rep.StudentID)
	if err != nil {
		return nil, err
	}
	rt, err := s.GetType(ctx, rep.TypeID)
	if err != nil {
		return nil, err
	}

	previousKey := rep.S3ObjectKey
	rep.Status = domain.ReportGenerating
	rep.Error = ""
	if err := s.repos.Reports.Update(ctx, rep); err != nil {
		return nil, notFound(err, ErrReportNotFound)
	}
	if err := s.build(ctx, rep, student, rt); err != nil {
		return rep, err
	}
	if previousKey != "" && previousKey != rep.S3ObjectKey {
		if err := s.files.DeleteObject(ctx, previousKey); err != nil {
			log.Printf("WARN: Failed to delete previous report object %s: %v", previousKey, err)
		}
	}
	return rep, nil
}

// build renders rep and stores the document, then persists the final status.
func (s *reportService) build(ctx context.Context, rep *domain.Report, student *domain.Student, rt *domain.ReportType) error {
	html, err := s.render(ctx, rep, student, rt)
	if err == nil {
		key := storage.ReportKey(rep.TrainerID.Hex(), rep.StudentID.Hex(), rep.ID.Hex())
		if putErr := s.files.PutObject(ctx, key, "text/html; charset=utf-8", html); putErr != nil {
			err = fmt.Errorf("%w: %v", ErrStorageFailure, putErr)
		} else {
			rep.S3ObjectKey = key
		}
	}

	if err != nil {
		log.Printf("ERROR: Report %s generation failed: %v", rep.ID.Hex(), err)
		rep.Status = domain.ReportFailed
		rep.Error = err.Error()
	} else {
		rep.Status = domain.ReportReady
		rep.Error = ""
	}
	if updErr := s.repos.Reports.Update(ctx, rep); updErr != nil {
		log.Printf("ERROR: Failed to save status of report %s: %v", rep.ID.Hex(), updErr)
		if err == nil {
			err = updErr
		}
	}
	if err != nil {
		return err
	}

	log.Printf("INFO: Report %s ready at %s", rep.ID.Hex(), rep.S3ObjectKey)
	publish(ctx, s.publisher, events.ReportGenerated, rep.TrainerID, rep.StudentID, map[string]string{
		"reportId": rep.ID.Hex(),
		"title":    rep.Title,
	})
	return nil
}

// render gathers the period's data and produces the HTML document.
func (s *reportService) render(ctx context.Context, rep *domain.Report, student *domain.Student, rt *domain.ReportType) ([]byte, error) {
	trainerID, studentID := rep.TrainerID, rep.StudentID
	from, to := rep.PeriodStart, rep.PeriodEnd
	data := report.Data{
		Title:       rep.Title,
		Student:     *student,
		Type:        *rt,
		PeriodStart: from,
		PeriodEnd:   to,
		GeneratedOn: s.clock.Today(),
	}
	if trainer, err := s.repos.Users.GetByID(ctx, trainerID); err == nil {
		data.TrainerName = trainer.Name
	}

	if rt.IncludeMeasurements || rt.IncludeCharts {
		ms, err := s.repos.Measurements.ListByStudent(ctx, trainerID, studentID, &from, 0)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			if !m.Date.After(to) {
				data.Measurements = append(data.Measurements, m)
			}
		}
	}

	if rt.IncludeCharts {
		for year := from.Year(); year <= to.Year(); year++ {
			rows, err := s.repos.Monthly.ListByYear(ctx, trainerID, studentID, year)
			if err != nil {
				return nil, err
			}
			for _, row := range rows {
				period := row.Year*12 + row.Month
				if period >= from.Year()*12+int(from.Month()) && period <= to.Year()*12+int(to.Month()) {
					data.Monthly = append(data.Monthly, row)
				}
			}
		}
	}

	if rt.IncludeAttendance {
		records, err := s.repos.Attendance.List(ctx, trainerID, repository.AttendanceFilter{StudentID: &studentID, From: &from, To: &to})
		if err != nil {
			return nil, err
		}
		data.Attendance = records
		completed, err := s.repos.Sessions.Count(ctx, trainerID, repository.SessionFilter{
			StudentID: &studentID,
			Statuses:  []domain.SessionStatus{domain.SessionCompleted},
			From:      &from,
			To:        &to,
		})
		if err != nil {
			return nil, err
		}
		data.CompletedSessions = int(completed)
	}

	if rt.IncludePhotos {
		photos, err := s.repos.Photos.ListByStudent(ctx, trainerID, studentID, 0)
		if err != nil {
			return nil, err
		}
		for _, p := range photos {
			if p.Date.Before(from) || p.Date.After(to) {
				continue
			}
			url, err := s.files.GeneratePresignedDownloadURL(ctx, p.S3ObjectKey, reportPhotoURLExpiry)
			if err != nil {
				log.Printf("WARN: Leaving photo %s out of report %s: %v", p.ID.Hex(), rep.ID.Hex(), err)
				continue
			}
			data.Photos = append(data.Photos, report.Photo{Date: p.Date, Angle: p.Angle, Description: p.Description, URL: url})
		}
	}

	return s.renderer.Render(data)
}

func (s *reportService) Get(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Report, error) {
	rep, err := s.repos.Reports.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrReportNotFound)
	}
	return rep, nil
}

func (s *reportService) List(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Report, error) {
	return s.repos.Reports.List(ctx, trainerID, studentID)
}

func (s *reportService) DownloadURL(ctx context.Context, trainerID, id primitive.ObjectID) (string, error) {
	rep, err := s.Get(ctx, trainerID, id)
	if err != nil {
		return "", err
	}
	if rep.Status != domain.ReportReady || rep.S3ObjectKey == "" {
		return "", ErrReportNotReady
	}
	url, err := s.files.GeneratePresignedDownloadURL(ctx, rep.S3ObjectKey, storage.DefaultPresignedURLExpiry)
	if err != nil {
		log.Printf("ERROR: Failed to presign report %s: %v", rep.ID.Hex(), err)
		return "", ErrStorageFailure
	}
	return url, nil
}

func (s *reportService) Email(ctx context.Context, trainerID, id primitive.ObjectID, to string) (*domain.Report, error) {
	rep, err := s.Get(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if rep.Status != domain.ReportReady || rep.S3ObjectKey == "" {
		return nil, ErrReportNotReady
	}
	to = strings.TrimSpace(to)
	if to == "" {
		student, err := getStudent(ctx, s.repos.Students, trainerID, rep.StudentID)
		if err != nil {
			return nil, err
		}
		to = student.Email
	}

	body, err := s.files.GetObject(ctx, rep.S3ObjectKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrReportNotReady
		}
		return nil, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}

	if _, err := s.sender.Send(ctx, mailer.Message{
		To:      to,
		Subject: rep.Title,
		HTML:    string(body),
		Attachment: &mailer.Attachment{
			Filename:    path.Base(rep.S3ObjectKey),
			ContentType: "text/html",
			Content:     body,
		},
		Tags: map[string]string{"report_id": rep.ID.Hex()},
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}

	now := s.clock.now()
	rep.SentTo = to
	rep.SentAt = &now
	if err := s.repos.Reports.Update(ctx, rep); err != nil {
		log.Printf("WARN: Report %s emailed but delivery not recorded: %v", rep.ID.Hex(), err)
	}
	return rep, nil
}

func (s *reportService) Delete(ctx context.Context, trainerID, id primitive.ObjectID) error {
	rep, err := s.Get(ctx, trainerID, id)
	if err != nil {
		return err
	}
	if err := s.repos.Reports.Delete(ctx, trainerID, id); err != nil {
		return notFound(err, ErrReportNotFound)
	}
	if rep.S3ObjectKey != "" {
		if err := s.files.DeleteObject(ctx, rep.S3ObjectKey); err != nil {
			log.Printf("WARN: Failed to delete report object %s: %v", rep.S3ObjectKey, err)
		}
	}
	return nil
}
