package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrEnrollmentFailed = errors.New("enrollment failed and was rolled back")

// EnrollmentDefaults are the configured projection sizes.
type EnrollmentDefaults struct {
	Weeks          int
	SessionMinutes int
	DueDay         int
	Months         int
}

// EnrollmentInput registers a student together with their weekly schedule
// and billing. Sessions are projected only when Weekdays and Start are both
// given; contract and invoices only when PlanID is given.
type EnrollmentInput struct {
	Student     StudentInput
	Weekdays    []domain.Weekday
	Start       domain.TimeOfDay
	PlanID      *primitive.ObjectID
	CustomPrice *float64
	DueDay      int
	Months      int
}

type EnrollmentResult struct {
	Student  *domain.Student           `json:"student"`
	Slots    []domain.ScheduleSlot     `json:"slots"`
	Sessions []domain.ScheduledSession `json:"sessions"`
	Contract *domain.Contract          `json:"contract,omitempty"`
	Invoices []domain.Invoice          `json:"invoices"`
}

type EnrollmentService interface {
	// Enroll is all-or-nothing: when any step fails, the records created so
	// far are deleted in reverse order and ErrEnrollmentFailed is returned.
	Enroll(ctx context.Context, trainerID primitive.ObjectID, in EnrollmentInput) (*EnrollmentResult, error)
}

type enrollmentService struct {
	repos     Repositories
	publisher events.Publisher
	clock     Clock
	defaults  EnrollmentDefaults
}

func NewEnrollmentService(repos Repositories, publisher events.Publisher, clock Clock, defaults EnrollmentDefaults) EnrollmentService {
	if defaults.Weeks <= 0 {
		defaults.Weeks = 4
	}
	if defaults.SessionMinutes <= 0 {
		defaults.SessionMinutes = 60
	}
	if defaults.DueDay < 1 || defaults.DueDay > 31 {
		defaults.DueDay = 5
	}
	if defaults.Months <= 0 {
		defaults.Months = 3
	}
	return &enrollmentService{repos: repos, publisher: publisher, clock: clock, defaults: defaults}
}

// undoStack collects deletions for records created during an enrollment.
type undoStack []func(context.Context) error

func (u *undoStack) push(fn func(context.Context) error) { *u = append(*u, fn) }

func (u undoStack) run(ctx context.Context) {
	// The request context may already be cancelled.
	ctx = context.WithoutCancel(ctx)
	for i := len(u) - 1; i >= 0; i-- {
		if err := u[i](ctx); err != nil {
			log.Printf("ERROR: Enrollment rollback step failed: %v", err)
		}
	}
}

func (s *enrollmentService) validate(in *EnrollmentInput) error {
	if err := validateStudentInput(&in.Student, s.clock.Today()); err != nil {
		return err
	}
	if len(in.Weekdays) > 0 || in.Start != "" {
		if len(in.Weekdays) == 0 {
			return invalid("weekdays", "are required when a start time is given")
		}
		if in.Start == "" {
			return invalid("start", "is required when weekdays are given")
		}
		start, err := domain.ParseTimeOfDay(string(in.Start))
		if err != nil {
			return err
		}
		if _, err := start.Add(s.defaults.SessionMinutes); err != nil {
			return err
		}
		in.Start = start
		seen := map[domain.Weekday]bool{}
		for _, wd := range in.Weekdays {
			if !wd.Valid() {
				return domain.ErrInvalidWeekday
			}
			if seen[wd] {
				return invalid("weekdays", "must not repeat")
			}
			seen[wd] = true
		}
	}
	if in.DueDay == 0 {
		in.DueDay = s.defaults.DueDay
	}
	if err := domain.ValidateDueDay(in.DueDay); err != nil {
		return err
	}
	if in.Months == 0 {
		in.Months = s.defaults.Months
	}
	if in.Months < 0 || in.Months > 24 {
		return invalid("months", "must be between 1 and 24")
	}
	if in.CustomPrice != nil && *in.CustomPrice < 0 {
		return domain.ErrNegativeAmount
	}
	return nil
}

func (s *enrollmentService) Enroll(ctx context.Context, trainerID primitive.ObjectID, in EnrollmentInput) (*EnrollmentResult, error) {
	if err := s.validate(&in); err != nil {
		return nil, err
	}
	today := s.clock.Today()

	var plan *domain.BillingPlan
	if in.PlanID != nil {
		p, err := s.repos.Plans.GetByID(ctx, trainerID, *in.PlanID)
		if err != nil {
			return nil, notFound(err, ErrPlanNotFound)
		}
		if !p.Active {
			return nil, ErrPlanInactive
		}
		plan = p
	}

	var undo undoStack
	res, err := s.enroll(ctx, trainerID, in, plan, today, &undo)
	if err != nil {
		log.Printf("WARN: Enrollment for trainer %s failed, rolling back %d records: %v", trainerID.Hex(), len(undo), err)
		undo.run(ctx)
		if errors.Is(err, ErrStudentEmailUsed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEnrollmentFailed, err)
	}

	for i := range res.Invoices {
		publish(ctx, s.publisher, events.InvoiceCreated, trainerID, res.Student.ID, res.Invoices[i])
	}
	publish(ctx, s.publisher, events.StudentEnrolled, trainerID, res.Student.ID, map[string]int{
		"sessions": len(res.Sessions),
		"invoices": len(res.Invoices),
	})
	log.Printf("INFO: Enrolled student %s with %d sessions and %d invoices", res.Student.ID.Hex(), len(res.Sessions), len(res.Invoices))
	return res, nil
}

func (s *enrollmentService) enroll(ctx context.Context, trainerID primitive.ObjectID, in EnrollmentInput, plan *domain.BillingPlan, today time.Time, undo *undoStack) (*EnrollmentResult, error) {
	st := in.Student
	student := &domain.Student{
		TrainerID:       trainerID,
		Name:            st.Name,
		Email:           st.Email,
		Phone:           st.Phone,
		BirthDate:       domain.DateOf(st.BirthDate),
		Sex:             st.Sex,
		Address:         strings.TrimSpace(st.Address),
		HeightM:         st.HeightM,
		InitialWeightKg: st.InitialWeightKg,
		Objective:       strings.TrimSpace(st.Objective),
		Notes:           st.Notes,
		Active:          true,
		StartDate:       today,
	}
	if st.StartDate != nil {
		student.StartDate = domain.DateOf(*st.StartDate)
	}
	id, err := s.repos.Students.Create(ctx, student)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrStudentEmailUsed
		}
		return nil, fmt.Errorf("create student: %w", err)
	}
	student.ID = id
	undo.push(func(ctx context.Context) error { return s.repos.Students.Delete(ctx, trainerID, id) })

	res := &EnrollmentResult{
		Student:  student,
		Slots:    []domain.ScheduleSlot{},
		Sessions: []domain.ScheduledSession{},
		Invoices: []domain.Invoice{},
	}

	if len(in.Weekdays) > 0 && in.Start != "" {
		sessions, err := domain.ProjectSessions(domain.SessionProjection{
			StudentID:   student.ID,
			TrainerID:   trainerID,
			StudentName: student.Name,
			Weekdays:    in.Weekdays,
			Start:       in.Start,
			Minutes:     s.defaults.SessionMinutes,
			Weeks:       s.defaults.Weeks,
		}, today)
		if err != nil {
			return nil, err
		}
		end, _ := in.Start.Add(s.defaults.SessionMinutes)

		for _, wd := range in.Weekdays {
			slot := domain.ScheduleSlot{
				StudentID: student.ID,
				TrainerID: trainerID,
				Weekday:   wd,
				Start:     in.Start,
				End:       end,
				Active:    true,
			}
			slotID, err := s.repos.Slots.Create(ctx, &slot)
			if err != nil {
				return nil, fmt.Errorf("create slot: %w", err)
			}
			slot.ID = slotID
			res.Slots = append(res.Slots, slot)
			undo.push(func(ctx context.Context) error { return s.repos.Slots.Delete(ctx, trainerID, slotID) })
		}

		for _, session := range sessions {
			session.Notes = "automatic"
			sessionID, err := s.repos.Sessions.Create(ctx, &session)
			if err != nil {
				return nil, fmt.Errorf("create session: %w", err)
			}
			session.ID = sessionID
			res.Sessions = append(res.Sessions, session)
			undo.push(func(ctx context.Context) error { return s.repos.Sessions.Delete(ctx, trainerID, sessionID) })
		}
	}

	if plan == nil {
		return res, nil
	}

	contract := &domain.Contract{
		StudentID:   student.ID,
		TrainerID:   trainerID,
		PlanID:      plan.ID,
		CustomPrice: in.CustomPrice,
		DueDay:      in.DueDay,
		Active:      true,
		StartDate:   today,
	}
	contractID, err := s.repos.Contracts.Create(ctx, contract)
	if err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	contract.ID = contractID
	res.Contract = contract
	undo.push(func(ctx context.Context) error { return s.repos.Contracts.Delete(ctx, trainerID, contractID) })

	// Events go out only after the whole enrollment succeeded.
	invoices, err := issueInvoices(ctx, s.repos.Invoices, nil, today, domain.InvoiceProjection{
		StudentID:   student.ID,
		TrainerID:   trainerID,
		StudentName: student.Name,
		ContractID:  &contract.ID,
		DueDay:      contract.DueDay,
		Months:      in.Months,
		Amount:      contract.EffectivePrice(plan),
	})
	for _, inv := range invoices {
		invoiceID := inv.ID
		undo.push(func(ctx context.Context) error { return s.repos.Invoices.Delete(ctx, trainerID, invoiceID) })
	}
	if err != nil {
		return nil, fmt.Errorf("create invoices: %w", err)
	}
	res.Invoices = invoices
	return res, nil
}
