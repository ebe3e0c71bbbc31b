package service

import (
	"context"
	"errors"
	"log"
	"sort"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrSlotExists      = errors.New("a slot already exists for this student at this weekday and time")
	ErrSlotNotFound    = newNotFound("schedule slot")
	ErrSessionNotFound = newNotFound("session")
)

const (
	agendaUpcomingDays  = 7
	agendaUpcomingLimit = 10
	agendaTopStudents   = 5
)

type SlotInput struct {
	Weekday domain.Weekday
	Start   domain.TimeOfDay
	End     domain.TimeOfDay
	Active  *bool
}

type SessionInput struct {
	StudentID    primitive.ObjectID
	Date         time.Time
	Start        domain.TimeOfDay
	End          domain.TimeOfDay
	Status       domain.SessionStatus
	TrainingType string
	Notes        string
}

// CalendarDay groups one day's sessions in the month view.
type CalendarDay struct {
	Date     time.Time                 `json:"date"`
	Sessions []domain.ScheduledSession `json:"sessions"`
}

// AttendanceRank is a student's attendance percentage for the current month.
type AttendanceRank struct {
	StudentID   primitive.ObjectID `json:"studentId"`
	StudentName string             `json:"studentName"`
	Present     int64              `json:"present"`
	Completed   int64              `json:"completed"`
	Percentage  float64            `json:"percentage"`
}

// Agenda is the scheduling dashboard.
type Agenda struct {
	Today         []domain.ScheduledSession `json:"today"`
	Upcoming      []domain.ScheduledSession `json:"upcoming"`
	WeekCount     int64                     `json:"weekCount"`
	TopAttendance []AttendanceRank          `json:"topAttendance"`
}

type ScheduleService interface {
	CreateSlot(ctx context.Context, trainerID, studentID primitive.ObjectID, in SlotInput) (*domain.ScheduleSlot, error)
	ListSlots(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ScheduleSlot, error)
	UpdateSlot(ctx context.Context, trainerID, id primitive.ObjectID, in SlotInput) (*domain.ScheduleSlot, error)
	DeleteSlot(ctx context.Context, trainerID, id primitive.ObjectID) error
	// GenerateFromSlots creates sessions for every active slot over the next
	// weeks starting next Monday, skipping sessions that already exist.
	GenerateFromSlots(ctx context.Context, trainerID primitive.ObjectID, weeks int) (int, error)

	CreateSession(ctx context.Context, trainerID primitive.ObjectID, in SessionInput) (*domain.ScheduledSession, error)
	GetSession(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduledSession, error)
	ListSessions(ctx context.Context, trainerID primitive.ObjectID, filter repository.SessionFilter) ([]domain.ScheduledSession, error)
	UpdateSession(ctx context.Context, trainerID, id primitive.ObjectID, in SessionInput) (*domain.ScheduledSession, error)
	SetSessionStatus(ctx context.Context, trainerID, id primitive.ObjectID, status domain.SessionStatus) (*domain.ScheduledSession, error)
	DeleteSession(ctx context.Context, trainerID, id primitive.ObjectID) error

	Calendar(ctx context.Context, trainerID primitive.ObjectID, year int, month time.Month) ([]CalendarDay, error)
	Agenda(ctx context.Context, trainerID primitive.ObjectID) (*Agenda, error)
}

type scheduleService struct {
	repos          Repositories
	clock          Clock
	sessionMinutes int
}

func NewScheduleService(repos Repositories, clock Clock, sessionMinutes int) ScheduleService {
	if sessionMinutes <= 0 {
		sessionMinutes = 60
	}
	return &scheduleService{repos: repos, clock: clock, sessionMinutes: sessionMinutes}
}

// === Weekly slots ===

// normalizeTimes rewrites each time to zero-padded HH:MM. Empty values are
// left for the caller to default.
func normalizeTimes(times ...*domain.TimeOfDay) error {
	for _, t := range times {
		if *t == "" {
			continue
		}
		parsed, err := domain.ParseTimeOfDay(string(*t))
		if err != nil {
			return err
		}
		*t = parsed
	}
	return nil
}

func validateSlot(in *SlotInput) error {
	if !in.Weekday.Valid() {
		return domain.ErrInvalidWeekday
	}
	if in.Start == "" || in.End == "" {
		return invalid("start", "start and end are required")
	}
	if err := normalizeTimes(&in.Start, &in.End); err != nil {
		return err
	}
	return domain.ValidateRange(in.Start, in.End)
}

func (s *scheduleService) CreateSlot(ctx context.Context, trainerID, studentID primitive.ObjectID, in SlotInput) (*domain.ScheduleSlot, error) {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, err
	}
	if err := validateSlot(&in); err != nil {
		return nil, err
	}
	slot := &domain.ScheduleSlot{
		StudentID: studentID,
		TrainerID: trainerID,
		Weekday:   in.Weekday,
		Start:     in.Start,
		End:       in.End,
		Active:    in.Active == nil || *in.Active,
	}
	id, err := s.repos.Slots.Create(ctx, slot)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSlotExists
		}
		return nil, err
	}
	slot.ID = id
	return slot, nil
}

func (s *scheduleService) ListSlots(ctx context.Context, trainerID, studentID primitive.ObjectID) ([]domain.ScheduleSlot, error) {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, studentID); err != nil {
		return nil, err
	}
	return s.repos.Slots.ListByStudent(ctx, trainerID, studentID)
}

func (s *scheduleService) UpdateSlot(ctx context.Context, trainerID, id primitive.ObjectID, in SlotInput) (*domain.ScheduleSlot, error) {
	slot, err := s.repos.Slots.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrSlotNotFound)
	}
	if err := validateSlot(&in); err != nil {
		return nil, err
	}
	slot.Weekday = in.Weekday
	slot.Start = in.Start
	slot.End = in.End
	if in.Active != nil {
		slot.Active = *in.Active
	}
	if err := s.repos.Slots.Update(ctx, slot); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrSlotExists
		}
		return nil, notFound(err, ErrSlotNotFound)
	}
	return slot, nil
}

func (s *scheduleService) DeleteSlot(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return notFound(s.repos.Slots.Delete(ctx, trainerID, id), ErrSlotNotFound)
}

func (s *scheduleService) GenerateFromSlots(ctx context.Context, trainerID primitive.ObjectID, weeks int) (int, error) {
	if weeks <= 0 || weeks > 12 {
		return 0, invalid("weeks", "must be between 1 and 12")
	}
	slots, err := s.repos.Slots.ListActive(ctx, trainerID)
	if err != nil {
		return 0, err
	}

	names := map[primitive.ObjectID]string{}
	monday := domain.NextMonday(s.clock.Today())
	created := 0
	for _, slot := range slots {
		name, ok := names[slot.StudentID]
		if !ok {
			student, err := s.repos.Students.GetByID(ctx, trainerID, slot.StudentID)
			if err != nil {
				log.Printf("WARN: Skipping slot %s: student %s not loadable: %v", slot.ID.Hex(), slot.StudentID.Hex(), err)
				continue
			}
			if !student.Active {
				names[slot.StudentID] = ""
				continue
			}
			name = student.Name
			names[slot.StudentID] = name
		}
		if name == "" {
			continue
		}

		for week := 0; week < weeks; week++ {
			date := monday.AddDate(0, 0, week*7+int(slot.Weekday))
			exists, err := s.repos.Sessions.Exists(ctx, trainerID, slot.StudentID, date, slot.Start)
			if err != nil {
				return created, err
			}
			if exists {
				continue
			}
			session := &domain.ScheduledSession{
				StudentID:    slot.StudentID,
				TrainerID:    trainerID,
				StudentName:  name,
				Date:         date,
				Start:        slot.Start,
				End:          slot.End,
				Status:       domain.SessionScheduled,
				TrainingType: domain.DefaultTrainingType,
			}
			if _, err := s.repos.Sessions.Create(ctx, session); err != nil {
				return created, err
			}
			created++
		}
	}
	log.Printf("INFO: Generated %d sessions from %d slots for trainer %s", created, len(slots), trainerID.Hex())
	return created, nil
}

// === Sessions ===

func (s *scheduleService) validateSession(in *SessionInput) error {
	if in.Date.IsZero() {
		return invalid("date", "is required")
	}
	in.Date = domain.DateOf(in.Date)
	if in.Start == "" {
		return invalid("start", "is required")
	}
	if err := normalizeTimes(&in.Start, &in.End); err != nil {
		return err
	}
	if in.End == "" {
		end, err := in.Start.Add(s.sessionMinutes)
		if err != nil {
			return err
		}
		in.End = end
	}
	if err := domain.ValidateRange(in.Start, in.End); err != nil {
		return err
	}
	if in.Status == "" {
		in.Status = domain.SessionScheduled
	}
	if !in.Status.Valid() {
		return invalid("status", "is not a valid session status")
	}
	in.TrainingType = strings.TrimSpace(in.TrainingType)
	return nil
}

func (s *scheduleService) CreateSession(ctx context.Context, trainerID primitive.ObjectID, in SessionInput) (*domain.ScheduledSession, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if err := s.validateSession(&in); err != nil {
		return nil, err
	}
	session := &domain.ScheduledSession{
		StudentID:    student.ID,
		TrainerID:    trainerID,
		StudentName:  student.Name,
		Date:         in.Date,
		Start:        in.Start,
		End:          in.End,
		Status:       in.Status,
		TrainingType: in.TrainingType,
		Notes:        in.Notes,
	}
	id, err := s.repos.Sessions.Create(ctx, session)
	if err != nil {
		return nil, err
	}
	session.ID = id
	return session, nil
}

func (s *scheduleService) GetSession(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.ScheduledSession, error) {
	session, err := s.repos.Sessions.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	return session, nil
}

func (s *scheduleService) ListSessions(ctx context.Context, trainerID primitive.ObjectID, filter repository.SessionFilter) ([]domain.ScheduledSession, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, invalid("status", "is not a valid session status")
		}
	}
	return s.repos.Sessions.List(ctx, trainerID, filter)
}

func (s *scheduleService) UpdateSession(ctx context.Context, trainerID, id primitive.ObjectID, in SessionInput) (*domain.ScheduledSession, error) {
	session, err := s.GetSession(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if in.StudentID != primitive.NilObjectID && in.StudentID != session.StudentID {
		student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
		if err != nil {
			return nil, err
		}
		session.StudentID = student.ID
		session.StudentName = student.Name
	}
	if err := s.validateSession(&in); err != nil {
		return nil, err
	}
	session.Date = in.Date
	session.Start = in.Start
	session.End = in.End
	session.Status = in.Status
	session.TrainingType = in.TrainingType
	session.Notes = in.Notes

	if err := s.repos.Sessions.Update(ctx, session); err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	return session, nil
}

func (s *scheduleService) SetSessionStatus(ctx context.Context, trainerID, id primitive.ObjectID, status domain.SessionStatus) (*domain.ScheduledSession, error) {
	if !status.Valid() {
		return nil, invalid("status", "is not a valid session status")
	}
	session, err := s.GetSession(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repos.Sessions.SetStatus(ctx, trainerID, id, status); err != nil {
		return nil, notFound(err, ErrSessionNotFound)
	}
	session.Status = status
	return session, nil
}

func (s *scheduleService) DeleteSession(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return notFound(s.repos.Sessions.Delete(ctx, trainerID, id), ErrSessionNotFound)
}

// Calendar returns every day of the month, each with its sessions in start order.
func (s *scheduleService) Calendar(ctx context.Context, trainerID primitive.ObjectID, year int, month time.Month) ([]CalendarDay, error) {
	if err := validatePeriod(year, int(month)); err != nil {
		return nil, err
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(year, month, domain.DaysIn(year, month), 0, 0, 0, 0, time.UTC)

	sessions, err := s.repos.Sessions.List(ctx, trainerID, repository.SessionFilter{From: &first, To: &last})
	if err != nil {
		return nil, err
	}

	days := make([]CalendarDay, domain.DaysIn(year, month))
	for i := range days {
		days[i] = CalendarDay{Date: first.AddDate(0, 0, i), Sessions: []domain.ScheduledSession{}}
	}
	for _, session := range sessions {
		if idx := session.Date.Day() - 1; idx >= 0 && idx < len(days) {
			days[idx].Sessions = append(days[idx].Sessions, session)
		}
	}
	return days, nil
}

func (s *scheduleService) Agenda(ctx context.Context, trainerID primitive.ObjectID) (*Agenda, error) {
	today := s.clock.Today()
	agenda := &Agenda{}
	var err error

	if agenda.Today, err = s.repos.Sessions.List(ctx, trainerID, repository.SessionFilter{From: &today, To: &today}); err != nil {
		return nil, err
	}

	tomorrow := today.AddDate(0, 0, 1)
	horizon := today.AddDate(0, 0, agendaUpcomingDays)
	if agenda.Upcoming, err = s.repos.Sessions.List(ctx, trainerID, repository.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionScheduled, domain.SessionConfirmed},
		From:     &tomorrow,
		To:       &horizon,
		Limit:    agendaUpcomingLimit,
	}); err != nil {
		return nil, err
	}

	weekStart := today.AddDate(0, 0, -int(domain.WeekdayOf(today)))
	weekEnd := weekStart.AddDate(0, 0, 6)
	if agenda.WeekCount, err = s.repos.Sessions.Count(ctx, trainerID, repository.SessionFilter{From: &weekStart, To: &weekEnd}); err != nil {
		return nil, err
	}

	if agenda.TopAttendance, err = s.topAttendance(ctx, trainerID, today); err != nil {
		return nil, err
	}
	return agenda, nil
}

// topAttendance ranks active students by present records over completed
// sessions in the current month.
func (s *scheduleService) topAttendance(ctx context.Context, trainerID primitive.ObjectID, today time.Time) ([]AttendanceRank, error) {
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := time.Date(today.Year(), today.Month(), domain.DaysIn(today.Year(), today.Month()), 0, 0, 0, 0, time.UTC)

	completed, err := s.repos.Sessions.CountByStudent(ctx, trainerID, repository.SessionFilter{
		Statuses: []domain.SessionStatus{domain.SessionCompleted},
		From:     &monthStart,
		To:       &monthEnd,
	})
	if err != nil {
		return nil, err
	}
	present, err := s.repos.Attendance.CountByStudent(ctx, trainerID, repository.AttendanceFilter{
		Status: domain.AttendancePresent,
		From:   &monthStart,
		To:     &monthEnd,
	})
	if err != nil {
		return nil, err
	}

	active := true
	students, err := s.repos.Students.List(ctx, trainerID, repository.StudentFilter{Active: &active})
	if err != nil {
		return nil, err
	}

	ranks := []AttendanceRank{}
	for _, st := range students {
		done := completed[st.ID]
		if done == 0 {
			continue
		}
		p := present[st.ID]
		pct := float64(p) / float64(done) * 100
		if pct > 100 {
			pct = 100
		}
		ranks = append(ranks, AttendanceRank{
			StudentID:   st.ID,
			StudentName: st.Name,
			Present:     p,
			Completed:   done,
			Percentage:  domain.RoundCents(pct),
		})
	}
	sort.SliceStable(ranks, func(i, j int) bool { return ranks[i].Percentage > ranks[j].Percentage })
	if len(ranks) > agendaTopStudents {
		ranks = ranks[:agendaTopStudents]
	}
	return ranks, nil
}
