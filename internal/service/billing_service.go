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

var (
	ErrPlanNotFound     = newNotFound("billing plan")
	ErrPlanInUse        = errors.New("billing plan is referenced by contracts")
	ErrContractNotFound = newNotFound("contract")
	ErrContractInactive = errors.New("contract is inactive")
	ErrPlanInactive     = errors.New("billing plan is inactive")
	ErrInvoiceNotFound  = newNotFound("invoice")
	ErrDuplicateInvoice = errors.New("an invoice already exists for this student and reference month")
)

const (
	revenueMonths = 6
	dueSoonDays   = 7
)

type PlanInput struct {
	Name             string
	Description      string
	Price            float64
	IncludedSessions int
	Active           *bool
}

type ContractInput struct {
	StudentID   primitive.ObjectID
	PlanID      primitive.ObjectID
	CustomPrice *float64
	DueDay      int // 0 selects the configured default
	StartDate   time.Time
}

type InvoiceInput struct {
	StudentID  primitive.ObjectID
	ContractID *primitive.ObjectID
	RefMonth   int
	RefYear    int
	Amount     float64
	DueDate    time.Time // zero derives it from the contract or default due day
	Status     domain.InvoiceStatus
	Notes      string
}

// InvoiceList is a filtered listing with its aggregate numbers.
type InvoiceList struct {
	Invoices []domain.Invoice          `json:"invoices"`
	Summary  repository.InvoiceSummary `json:"summary"`
}

// BillingDashboard is the financial overview for the current month.
type BillingDashboard struct {
	Year     int                         `json:"year"`
	Month    int                         `json:"month"`
	Current  repository.InvoiceSummary   `json:"current"`
	DueToday []domain.Invoice            `json:"dueToday"`
	Overdue  []domain.Invoice            `json:"overdue"`
	DueSoon  []domain.Invoice            `json:"dueSoon"`
	Revenue  []repository.MonthlyRevenue `json:"revenue"`
}

type BillingService interface {
	CreatePlan(ctx context.Context, trainerID primitive.ObjectID, in PlanInput) (*domain.BillingPlan, error)
	GetPlan(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.BillingPlan, error)
	ListPlans(ctx context.Context, trainerID primitive.ObjectID, activeOnly bool) ([]domain.BillingPlan, error)
	UpdatePlan(ctx context.Context, trainerID, id primitive.ObjectID, in PlanInput) (*domain.BillingPlan, error)
	DeletePlan(ctx context.Context, trainerID, id primitive.ObjectID) error

	CreateContract(ctx context.Context, trainerID primitive.ObjectID, in ContractInput) (*domain.Contract, error)
	GetContract(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error)
	ListContracts(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Contract, error)
	DeactivateContract(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error)
	// GenerateInvoices issues invoices for the next months of a contract,
	// skipping reference months that already have one.
	GenerateInvoices(ctx context.Context, trainerID, contractID primitive.ObjectID, months int) ([]domain.Invoice, error)

	CreateInvoice(ctx context.Context, trainerID primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error)
	GetInvoice(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, trainerID primitive.ObjectID, filter repository.InvoiceFilter) (*InvoiceList, error)
	UpdateInvoice(ctx context.Context, trainerID, id primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error)
	DeleteInvoice(ctx context.Context, trainerID, id primitive.ObjectID) error

	Dashboard(ctx context.Context, trainerID primitive.ObjectID) (*BillingDashboard, error)
}

type billingService struct {
	repos         Repositories
	publisher     events.Publisher
	clock         Clock
	defaultDueDay int
	defaultMonths int
}

func NewBillingService(repos Repositories, publisher events.Publisher, clock Clock, defaultDueDay, defaultMonths int) BillingService {
	if defaultDueDay < 1 || defaultDueDay > 31 {
		defaultDueDay = 5
	}
	if defaultMonths <= 0 {
		defaultMonths = 3
	}
	return &billingService{
		repos:         repos,
		publisher:     publisher,
		clock:         clock,
		defaultDueDay: defaultDueDay,
		defaultMonths: defaultMonths,
	}
}

// === Plans ===

func validatePlan(in *PlanInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return invalid("name", "is required")
	}
	if in.Price < 0 {
		return domain.ErrNegativeAmount
	}
	if in.IncludedSessions < 0 {
		return invalid("includedSessions", "must not be negative")
	}
	return nil
}

func (s *billingService) CreatePlan(ctx context.Context, trainerID primitive.ObjectID, in PlanInput) (*domain.BillingPlan, error) {
	if err := validatePlan(&in); err != nil {
		return nil, err
	}
	plan := &domain.BillingPlan{
		TrainerID:        trainerID,
		Name:             in.Name,
		Description:      in.Description,
		Price:            domain.RoundCents(in.Price),
		IncludedSessions: in.IncludedSessions,
		Active:           in.Active == nil || *in.Active,
	}
	id, err := s.repos.Plans.Create(ctx, plan)
	if err != nil {
		return nil, err
	}
	plan.ID = id
	return plan, nil
}

func (s *billingService) GetPlan(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.BillingPlan, error) {
	plan, err := s.repos.Plans.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	return plan, nil
}

func (s *billingService) ListPlans(ctx context.Context, trainerID primitive.ObjectID, activeOnly bool) ([]domain.BillingPlan, error) {
	return s.repos.Plans.List(ctx, trainerID, activeOnly)
}

func (s *billingService) UpdatePlan(ctx context.Context, trainerID, id primitive.ObjectID, in PlanInput) (*domain.BillingPlan, error) {
	plan, err := s.GetPlan(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if err := validatePlan(&in); err != nil {
		return nil, err
	}
	plan.Name = in.Name
	plan.Description = in.Description
	plan.Price = domain.RoundCents(in.Price)
	plan.IncludedSessions = in.IncludedSessions
	if in.Active != nil {
		plan.Active = *in.Active
	}
	if err := s.repos.Plans.Update(ctx, plan); err != nil {
		return nil, notFound(err, ErrPlanNotFound)
	}
	return plan, nil
}

func (s *billingService) DeletePlan(ctx context.Context, trainerID, id primitive.ObjectID) error {
	if _, err := s.GetPlan(ctx, trainerID, id); err != nil {
		return err
	}
	inUse, err := s.repos.Contracts.CountByPlan(ctx, trainerID, id)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrPlanInUse
	}
	return notFound(s.repos.Plans.Delete(ctx, trainerID, id), ErrPlanNotFound)
}

// === Contracts ===

func (s *billingService) CreateContract(ctx context.Context, trainerID primitive.ObjectID, in ContractInput) (*domain.Contract, error) {
	if _, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID); err != nil {
		return nil, err
	}
	plan, err := s.GetPlan(ctx, trainerID, in.PlanID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}
	if in.DueDay == 0 {
		in.DueDay = s.defaultDueDay
	}
	if err := domain.ValidateDueDay(in.DueDay); err != nil {
		return nil, err
	}
	if in.CustomPrice != nil {
		if *in.CustomPrice < 0 {
			return nil, domain.ErrNegativeAmount
		}
		price := domain.RoundCents(*in.CustomPrice)
		in.CustomPrice = &price
	}
	if in.StartDate.IsZero() {
		in.StartDate = s.clock.Today()
	}

	contract := &domain.Contract{
		StudentID:   in.StudentID,
		TrainerID:   trainerID,
		PlanID:      in.PlanID,
		CustomPrice: in.CustomPrice,
		DueDay:      in.DueDay,
		Active:      true,
		StartDate:   domain.DateOf(in.StartDate),
	}
	id, err := s.repos.Contracts.Create(ctx, contract)
	if err != nil {
		return nil, err
	}
	contract.ID = id
	return contract, nil
}

func (s *billingService) GetContract(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error) {
	contract, err := s.repos.Contracts.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}
	return contract, nil
}

func (s *billingService) ListContracts(ctx context.Context, trainerID primitive.ObjectID, studentID *primitive.ObjectID) ([]domain.Contract, error) {
	return s.repos.Contracts.List(ctx, trainerID, studentID)
}

func (s *billingService) DeactivateContract(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Contract, error) {
	contract, err := s.GetContract(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if !contract.Active {
		return contract, nil
	}
	contract.Active = false
	if err := s.repos.Contracts.Update(ctx, contract); err != nil {
		return nil, notFound(err, ErrContractNotFound)
	}
	return contract, nil
}

func (s *billingService) GenerateInvoices(ctx context.Context, trainerID, contractID primitive.ObjectID, months int) ([]domain.Invoice, error) {
	if months == 0 {
		months = s.defaultMonths
	}
	if months < 0 || months > 24 {
		return nil, invalid("months", "must be between 1 and 24")
	}
	contract, err := s.GetContract(ctx, trainerID, contractID)
	if err != nil {
		return nil, err
	}
	if !contract.Active {
		return nil, ErrContractInactive
	}
	student, err := getStudent(ctx, s.repos.Students, trainerID, contract.StudentID)
	if err != nil {
		return nil, err
	}
	plan, err := s.GetPlan(ctx, trainerID, contract.PlanID)
	if err != nil {
		return nil, err
	}
	return issueInvoices(ctx, s.repos.Invoices, s.publisher, s.clock.Today(), domain.InvoiceProjection{
		StudentID:   student.ID,
		TrainerID:   trainerID,
		StudentName: student.Name,
		ContractID:  &contract.ID,
		DueDay:      contract.DueDay,
		Months:      months,
		Amount:      contract.EffectivePrice(plan),
	})
}

// issueInvoices stores the projected invoices. Months that already have an
// invoice, or that lose an insert race on the unique index, are skipped.
func issueInvoices(ctx context.Context, repo repository.InvoiceRepository, publisher events.Publisher, today time.Time, p domain.InvoiceProjection) ([]domain.Invoice, error) {
	var lookupErr error
	exists := func(month, year int) bool {
		if lookupErr != nil {
			return true
		}
		found, err := repo.ExistsForPeriod(ctx, p.TrainerID, p.StudentID, month, year, primitive.NilObjectID)
		if err != nil {
			lookupErr = err
			return true
		}
		return found
	}
	projected := domain.ProjectInvoices(p, today, exists)
	if lookupErr != nil {
		return nil, lookupErr
	}

	created := make([]domain.Invoice, 0, len(projected))
	for i := range projected {
		inv := projected[i]
		id, err := repo.Create(ctx, &inv)
		if errors.Is(err, repository.ErrDuplicate) {
			log.Printf("INFO: Invoice for student %s %02d/%d already exists, skipping", p.StudentID.Hex(), inv.RefMonth, inv.RefYear)
			continue
		}
		if err != nil {
			return created, err
		}
		inv.ID = id
		created = append(created, inv)
		publish(ctx, publisher, events.InvoiceCreated, p.TrainerID, p.StudentID, inv)
	}
	return created, nil
}

// === Invoices ===

func (s *billingService) validateInvoice(ctx context.Context, trainerID primitive.ObjectID, in *InvoiceInput) error {
	if err := validatePeriod(in.RefYear, in.RefMonth); err != nil {
		return err
	}
	if in.Amount < 0 {
		return domain.ErrNegativeAmount
	}
	in.Amount = domain.RoundCents(in.Amount)
	if in.Status == "" {
		in.Status = domain.InvoicePending
	}
	if !in.Status.Valid() {
		return invalid("status", "must be pending, paid or overdue")
	}
	if in.DueDate.IsZero() {
		dueDay := s.defaultDueDay
		if in.ContractID != nil {
			contract, err := s.GetContract(ctx, trainerID, *in.ContractID)
			if err != nil {
				return err
			}
			dueDay = contract.DueDay
		}
		in.DueDate = domain.DueDate(in.RefYear, time.Month(in.RefMonth), dueDay)
	}
	in.DueDate = domain.DateOf(in.DueDate)
	return nil
}

func (s *billingService) CreateInvoice(ctx context.Context, trainerID primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error) {
	student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
	if err != nil {
		return nil, err
	}
	if err := s.validateInvoice(ctx, trainerID, &in); err != nil {
		return nil, err
	}
	dup, err := s.repos.Invoices.ExistsForPeriod(ctx, trainerID, student.ID, in.RefMonth, in.RefYear, primitive.NilObjectID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateInvoice
	}

	inv := &domain.Invoice{
		StudentID:   student.ID,
		TrainerID:   trainerID,
		StudentName: student.Name,
		ContractID:  in.ContractID,
		RefMonth:    in.RefMonth,
		RefYear:     in.RefYear,
		Amount:      in.Amount,
		DueDate:     in.DueDate,
		Status:      in.Status,
		Notes:       in.Notes,
	}
	if inv.Status == domain.InvoicePaid {
		now := s.clock.now()
		inv.PaidAt = &now
	}
	inv.Derive(s.clock.Today())

	id, err := s.repos.Invoices.Create(ctx, inv)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateInvoice
		}
		return nil, err
	}
	inv.ID = id
	publish(ctx, s.publisher, events.InvoiceCreated, trainerID, inv.StudentID, inv)
	return inv, nil
}

func (s *billingService) GetInvoice(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error) {
	inv, err := s.repos.Invoices.GetByID(ctx, trainerID, id)
	if err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	return inv, nil
}

func (s *billingService) ListInvoices(ctx context.Context, trainerID primitive.ObjectID, filter repository.InvoiceFilter) (*InvoiceList, error) {
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return nil, invalid("status", "must be pending, paid or overdue")
		}
	}
	if filter.Month != 0 && (filter.Month < 1 || filter.Month > 12) {
		return nil, invalid("month", "must be between 1 and 12")
	}
	invoices, err := s.repos.Invoices.List(ctx, trainerID, filter)
	if err != nil {
		return nil, err
	}
	summaryFilter := filter
	summaryFilter.Limit = 0
	summary, err := s.repos.Invoices.Summarize(ctx, trainerID, summaryFilter)
	if err != nil {
		return nil, err
	}
	return &InvoiceList{Invoices: invoices, Summary: summary}, nil
}

func (s *billingService) UpdateInvoice(ctx context.Context, trainerID, id primitive.ObjectID, in InvoiceInput) (*domain.Invoice, error) {
	inv, err := s.GetInvoice(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if in.StudentID != primitive.NilObjectID && in.StudentID != inv.StudentID {
		student, err := getStudent(ctx, s.repos.Students, trainerID, in.StudentID)
		if err != nil {
			return nil, err
		}
		inv.StudentID = student.ID
		inv.StudentName = student.Name
	}
	if in.Status == "" {
		in.Status = inv.Status
	}
	if err := s.validateInvoice(ctx, trainerID, &in); err != nil {
		return nil, err
	}
	if !domain.CanTransition(inv.Status, in.Status) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidStatusTransition, inv.Status, in.Status)
	}
	dup, err := s.repos.Invoices.ExistsForPeriod(ctx, trainerID, inv.StudentID, in.RefMonth, in.RefYear, inv.ID)
	if err != nil {
		return nil, err
	}
	if dup {
		return nil, ErrDuplicateInvoice
	}

	wasPaid := inv.Status == domain.InvoicePaid
	inv.ContractID = in.ContractID
	inv.RefMonth = in.RefMonth
	inv.RefYear = in.RefYear
	inv.Amount = in.Amount
	inv.DueDate = in.DueDate
	inv.Status = in.Status
	inv.Notes = in.Notes
	if inv.Status == domain.InvoicePaid && inv.PaidAt == nil {
		now := s.clock.now()
		inv.PaidAt = &now
	}
	inv.Derive(s.clock.Today())

	if err := s.repos.Invoices.Update(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateInvoice
		}
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	if !wasPaid && inv.Status == domain.InvoicePaid {
		publish(ctx, s.publisher, events.InvoicePaid, trainerID, inv.StudentID, inv)
	}
	return inv, nil
}

func (s *billingService) MarkPaid(ctx context.Context, trainerID, id primitive.ObjectID) (*domain.Invoice, error) {
	inv, err := s.GetInvoice(ctx, trainerID, id)
	if err != nil {
		return nil, err
	}
	if inv.Status == domain.InvoicePaid {
		return inv, nil
	}
	if !domain.CanTransition(inv.Status, domain.InvoicePaid) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidStatusTransition, inv.Status, domain.InvoicePaid)
	}
	now := s.clock.now()
	inv.Status = domain.InvoicePaid
	inv.PaidAt = &now
	if err := s.repos.Invoices.Update(ctx, inv); err != nil {
		return nil, notFound(err, ErrInvoiceNotFound)
	}
	log.Printf("INFO: Invoice %s marked paid", inv.ID.Hex())
	publish(ctx, s.publisher, events.InvoicePaid, trainerID, inv.StudentID, inv)
	return inv, nil
}

func (s *billingService) DeleteInvoice(ctx context.Context, trainerID, id primitive.ObjectID) error {
	return notFound(s.repos.Invoices.Delete(ctx, trainerID, id), ErrInvoiceNotFound)
}

func (s *billingService) Dashboard(ctx context.Context, trainerID primitive.ObjectID) (*BillingDashboard, error) {
	today := s.clock.Today()
	open := []domain.InvoiceStatus{domain.InvoicePending, domain.InvoiceOverdue}
	d := &BillingDashboard{Year: today.Year(), Month: int(today.Month())}
	var err error

	if d.Current, err = s.repos.Invoices.Summarize(ctx, trainerID, repository.InvoiceFilter{
		Month: d.Month,
		Year:  d.Year,
	}); err != nil {
		return nil, err
	}

	if d.DueToday, err = s.repos.Invoices.List(ctx, trainerID, repository.InvoiceFilter{
		Statuses: open,
		DueFrom:  &today,
		DueTo:    &today,
	}); err != nil {
		return nil, err
	}

	yesterday := today.AddDate(0, 0, -1)
	if d.Overdue, err = s.repos.Invoices.List(ctx, trainerID, repository.InvoiceFilter{
		Statuses: open,
		DueTo:    &yesterday,
	}); err != nil {
		return nil, err
	}
	// Stored status may still read pending; both panels report what it is today.
	for i := range d.Overdue {
		inv := &d.Overdue[i]
		stale := inv.Status == domain.InvoicePending
		inv.Derive(today)
		if stale && inv.Status == domain.InvoiceOverdue && inv.RefYear == d.Year && inv.RefMonth == d.Month {
			d.Current.Pending--
			d.Current.Overdue++
		}
	}

	tomorrow := today.AddDate(0, 0, 1)
	horizon := today.AddDate(0, 0, dueSoonDays)
	if d.DueSoon, err = s.repos.Invoices.List(ctx, trainerID, repository.InvoiceFilter{
		Statuses: open,
		DueFrom:  &tomorrow,
		DueTo:    &horizon,
	}); err != nil {
		return nil, err
	}

	if d.Revenue, err = s.revenueSeries(ctx, trainerID, today); err != nil {
		return nil, err
	}
	return d, nil
}

// revenueSeries returns paid totals for the last six reference months
// including the current one, oldest first, with empty months as zero.
func (s *billingService) revenueSeries(ctx context.Context, trainerID primitive.ObjectID, today time.Time) ([]repository.MonthlyRevenue, error) {
	fromYear, fromMonth := domain.AddMonths(today.Year(), today.Month(), -(revenueMonths - 1))
	rows, err := s.repos.Invoices.PaidRevenue(ctx, trainerID, fromYear, int(fromMonth), today.Year(), int(today.Month()))
	if err != nil {
		return nil, err
	}
	byPeriod := make(map[int]float64, len(rows))
	for _, r := range rows {
		byPeriod[r.Year*12+r.Month] = r.Amount
	}
	series := make([]repository.MonthlyRevenue, 0, revenueMonths)
	for i := 0; i < revenueMonths; i++ {
		y, m := domain.AddMonths(fromYear, fromMonth, i)
		series = append(series, repository.MonthlyRevenue{
			Year:   y,
			Month:  int(m),
			Amount: domain.RoundCents(byPeriod[y*12+int(m)]),
		})
	}
	return series, nil
}
