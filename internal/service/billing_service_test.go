package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"formafit/trainer-app/internal/domain"
	"formafit/trainer-app/internal/events"
	"formafit/trainer-app/internal/repository"
)

func newBilling(f *fixture) BillingService {
	return NewBillingService(f.repos, f.publisher, f.clock, 5, 3)
}

func TestGenerateInvoicesIsIdempotent(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	plan := f.addPlan(180)

	custom := 150.0
	contract, err := svc.CreateContract(ctx, f.trainer, ContractInput{StudentID: student.ID, PlanID: plan.ID, CustomPrice: &custom, DueDay: 31})
	if err != nil {
		t.Fatal(err)
	}

	invoices, err := svc.GenerateInvoices(ctx, f.trainer, contract.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(invoices) != 3 {
		t.Fatalf("generated %d invoices, want 3", len(invoices))
	}
	wantDue := []time.Time{
		time.Date(2024, time.March, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.April, 30, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.May, 31, 0, 0, 0, 0, time.UTC),
	}
	for i, inv := range invoices {
		if !inv.DueDate.Equal(wantDue[i]) {
			t.Errorf("invoice %d due %v, want %v", i, inv.DueDate, wantDue[i])
		}
		if inv.Amount != 150 || inv.Status != domain.InvoicePending {
			t.Errorf("invoice %d = %+v", i, inv)
		}
	}

	again, err := svc.GenerateInvoices(ctx, f.trainer, contract.ID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 1 || again[0].RefMonth != 6 {
		t.Errorf("second run = %+v, want only June", again)
	}
	if n := f.invoices.count(); n != 4 {
		t.Errorf("stored invoices = %d, want 4", n)
	}
}

func TestGeneratedInvoicePastDueIsOverdue(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	plan := f.addPlan(200)

	contract, err := svc.CreateContract(ctx, f.trainer, ContractInput{StudentID: student.ID, PlanID: plan.ID})
	if err != nil {
		t.Fatal(err)
	}
	if contract.DueDay != 5 {
		t.Errorf("default due day = %d", contract.DueDay)
	}
	invoices, err := svc.GenerateInvoices(ctx, f.trainer, contract.ID, 2)
	if err != nil {
		t.Fatal(err)
	}
	if invoices[0].Status != domain.InvoiceOverdue || invoices[1].Status != domain.InvoicePending {
		t.Errorf("statuses = %q, %q", invoices[0].Status, invoices[1].Status)
	}
	if invoices[0].Amount != 200 {
		t.Errorf("amount = %v, want plan price", invoices[0].Amount)
	}
}

func TestCreateInvoiceDuplicatePeriod(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")

	in := InvoiceInput{StudentID: student.ID, RefMonth: 4, RefYear: 2024, Amount: 99.999}
	first, err := svc.CreateInvoice(ctx, f.trainer, in)
	if err != nil {
		t.Fatal(err)
	}
	if first.Amount != 100 || !first.DueDate.Equal(time.Date(2024, time.April, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("invoice = %+v", first)
	}

	_, err = svc.CreateInvoice(ctx, f.trainer, in)
	if !errors.Is(err, ErrDuplicateInvoice) || CodeOf(err) != CodeDuplicateInvoice {
		t.Fatalf("duplicate: err = %v code = %q", err, CodeOf(err))
	}

	// Editing an invoice without changing its period must not collide with itself.
	in.Notes = "adjusted"
	if _, err := svc.UpdateInvoice(ctx, f.trainer, first.ID, in); err != nil {
		t.Fatalf("self update: %v", err)
	}

	other, err := svc.CreateInvoice(ctx, f.trainer, InvoiceInput{StudentID: student.ID, RefMonth: 5, RefYear: 2024, Amount: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.UpdateInvoice(ctx, f.trainer, other.ID, in); !errors.Is(err, ErrDuplicateInvoice) {
		t.Errorf("moving onto a taken period: %v", err)
	}
}

func TestInvoiceStatusTransitions(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")

	// Due March 5, today is March 13: derived overdue on save.
	inv, err := svc.CreateInvoice(ctx, f.trainer, InvoiceInput{StudentID: student.ID, RefMonth: 3, RefYear: 2024, Amount: 120})
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != domain.InvoiceOverdue {
		t.Fatalf("status = %q, want overdue", inv.Status)
	}

	back := InvoiceInput{StudentID: student.ID, RefMonth: 3, RefYear: 2024, Amount: 120, Status: domain.InvoicePending}
	if _, err := svc.UpdateInvoice(ctx, f.trainer, inv.ID, back); !errors.Is(err, domain.ErrInvalidStatusTransition) {
		t.Errorf("overdue to pending: %v", err)
	}

	paid, err := svc.MarkPaid(ctx, f.trainer, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if paid.Status != domain.InvoicePaid || paid.PaidAt == nil {
		t.Fatalf("paid = %+v", paid)
	}

	back.Status = domain.InvoiceOverdue
	_, err = svc.UpdateInvoice(ctx, f.trainer, inv.ID, back)
	if !errors.Is(err, domain.ErrInvalidStatusTransition) || CodeOf(err) != CodeInvalidTransition {
		t.Errorf("paid to overdue: err = %v code = %q", err, CodeOf(err))
	}

	// Paying twice is a no-op.
	if _, err := svc.MarkPaid(ctx, f.trainer, inv.ID); err != nil {
		t.Errorf("second MarkPaid: %v", err)
	}

	var paidEvents int
	for _, name := range f.publisher.names() {
		if name == events.InvoicePaid {
			paidEvents++
		}
	}
	if paidEvents != 1 {
		t.Errorf("invoice.paid published %d times", paidEvents)
	}
}

func TestInvoiceTenantIsolation(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	inv, err := svc.CreateInvoice(ctx, f.trainer, InvoiceInput{StudentID: student.ID, RefMonth: 4, RefYear: 2024, Amount: 10})
	if err != nil {
		t.Fatal(err)
	}
	intruder := newFixture().trainer

	if _, err := svc.MarkPaid(ctx, intruder, inv.ID); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("MarkPaid: %v", err)
	}
	if err := svc.DeleteInvoice(ctx, intruder, inv.ID); !errors.Is(err, ErrInvoiceNotFound) {
		t.Errorf("Delete: %v", err)
	}
	if _, err := svc.CreateInvoice(ctx, intruder, InvoiceInput{StudentID: student.ID, RefMonth: 6, RefYear: 2024}); !errors.Is(err, ErrStudentNotFound) {
		t.Errorf("create for foreign student: %v", err)
	}
	list, err := svc.ListInvoices(ctx, intruder, repository.InvoiceFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Invoices) != 0 || list.Summary.Count != 0 {
		t.Errorf("intruder sees %d invoices", len(list.Invoices))
	}
}

func TestDeletePlanInUse(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	plan := f.addPlan(100)
	unused := f.addPlan(50)

	if _, err := svc.CreateContract(ctx, f.trainer, ContractInput{StudentID: student.ID, PlanID: plan.ID}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeletePlan(ctx, f.trainer, plan.ID); !errors.Is(err, ErrPlanInUse) {
		t.Errorf("in-use plan: %v", err)
	}
	if err := svc.DeletePlan(ctx, f.trainer, unused.ID); err != nil {
		t.Errorf("unused plan: %v", err)
	}
}

func TestContractValidation(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	plan := f.addPlan(100)
	negative := -1.0

	tests := []struct {
		name    string
		in      ContractInput
		wantErr error
	}{
		{"due day 32", ContractInput{StudentID: student.ID, PlanID: plan.ID, DueDay: 32}, domain.ErrInvalidDueDay},
		{"negative price", ContractInput{StudentID: student.ID, PlanID: plan.ID, CustomPrice: &negative}, domain.ErrNegativeAmount},
		{"unknown plan", ContractInput{StudentID: student.ID, PlanID: student.ID}, ErrPlanNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.CreateContract(ctx, f.trainer, tt.in); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	contract, _ := svc.CreateContract(ctx, f.trainer, ContractInput{StudentID: student.ID, PlanID: plan.ID})
	if _, err := svc.DeactivateContract(ctx, f.trainer, contract.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GenerateInvoices(ctx, f.trainer, contract.ID, 1); !errors.Is(err, ErrContractInactive) {
		t.Errorf("inactive contract: %v", err)
	}
}

func TestBillingDashboard(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	other := f.addStudent(f.trainer, "Bruno Reis")

	put := func(st *domain.Student, month, year int, due time.Time, status domain.InvoiceStatus, amount float64) {
		f.invoices.Create(ctx, &domain.Invoice{
			TrainerID: f.trainer, StudentID: st.ID, StudentName: st.Name,
			RefMonth: month, RefYear: year, DueDate: due, Status: status, Amount: amount,
		})
	}
	put(student, 1, 2024, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), domain.InvoicePaid, 100)
	put(student, 10, 2023, time.Date(2023, 10, 5, 0, 0, 0, 0, time.UTC), domain.InvoicePaid, 80)
	// outside the window
	put(student, 9, 2023, time.Date(2023, 9, 5, 0, 0, 0, 0, time.UTC), domain.InvoicePaid, 999)
	// due today
	put(student, 3, 2024, fixedToday, domain.InvoicePending, 150)
	// stale pending
	put(other, 3, 2024, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), domain.InvoicePending, 120)
	put(other, 2, 2024, time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), domain.InvoicePaid, 120)
	// due soon
	put(student, 4, 2024, time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC), domain.InvoicePending, 150)

	d, err := svc.Dashboard(ctx, f.trainer)
	if err != nil {
		t.Fatal(err)
	}
	if d.Year != 2024 || d.Month != 3 {
		t.Errorf("period = %d/%d", d.Month, d.Year)
	}
	if d.Current.Count != 2 || d.Current.Total != 270 || d.Current.Outstanding != 270 {
		t.Errorf("current = %+v", d.Current)
	}
	if d.Current.Pending != 1 || d.Current.Overdue != 1 {
		t.Errorf("current counts disagree with the overdue panel: %+v", d.Current)
	}
	if len(d.DueToday) != 1 || d.DueToday[0].Amount != 150 {
		t.Errorf("due today = %+v", d.DueToday)
	}
	if len(d.Overdue) != 1 || d.Overdue[0].StudentID != other.ID || d.Overdue[0].Status != domain.InvoiceOverdue {
		t.Errorf("overdue = %+v", d.Overdue)
	}
	if len(d.DueSoon) != 1 || d.DueSoon[0].RefMonth != 4 {
		t.Errorf("due soon = %+v", d.DueSoon)
	}

	if len(d.Revenue) != 6 {
		t.Fatalf("revenue points = %d", len(d.Revenue))
	}
	want := []float64{80, 0, 0, 100, 120, 0}
	for i, point := range d.Revenue {
		if point.Amount != want[i] {
			t.Errorf("revenue[%d] = %+v, want %v", i, point, want[i])
		}
	}
	if d.Revenue[0].Year != 2023 || d.Revenue[0].Month != 10 || d.Revenue[5].Month != 3 {
		t.Errorf("revenue range = %+v .. %+v", d.Revenue[0], d.Revenue[5])
	}
}

func TestCreateContractRejectsInactivePlan(t *testing.T) {
	f := newFixture()
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")
	plan := f.addPlan(250)

	inactive := false
	if _, err := svc.UpdatePlan(ctx, f.trainer, plan.ID, PlanInput{Name: plan.Name, Price: plan.Price, IncludedSessions: plan.IncludedSessions, Active: &inactive}); err != nil {
		t.Fatal(err)
	}

	_, err := svc.CreateContract(ctx, f.trainer, ContractInput{StudentID: student.ID, PlanID: plan.ID})
	if !errors.Is(err, ErrPlanInactive) || CodeOf(err) != CodeValidation {
		t.Fatalf("err = %v code = %q", err, CodeOf(err))
	}
	if n := f.contracts.count(); n != 0 {
		t.Errorf("contracts stored = %d", n)
	}
}

func TestPendingInvoiceBecomesOverdueOnlyWhenSaved(t *testing.T) {
	f := newFixture()
	now := fixedToday.Add(10 * time.Hour)
	f.clock.Now = func() time.Time { return now }
	svc := newBilling(f)
	ctx := context.Background()
	student := f.addStudent(f.trainer, "Ana Lima")

	in := InvoiceInput{StudentID: student.ID, RefMonth: 3, RefYear: 2024, Amount: 120, DueDate: fixedToday.AddDate(0, 0, 2)}
	inv, err := svc.CreateInvoice(ctx, f.trainer, in)
	if err != nil {
		t.Fatal(err)
	}
	if inv.Status != domain.InvoicePending {
		t.Fatalf("status = %q, want pending", inv.Status)
	}

	now = now.AddDate(0, 0, 10)

	got, err := svc.GetInvoice(ctx, f.trainer, inv.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.InvoicePending {
		t.Errorf("read after due date: status = %q, want pending", got.Status)
	}
	list, err := svc.ListInvoices(ctx, f.trainer, repository.InvoiceFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list.Invoices) != 1 || list.Invoices[0].Status != domain.InvoicePending {
		t.Errorf("listing after due date = %+v", list.Invoices)
	}

	in.Notes = "reminder sent"
	saved, err := svc.UpdateInvoice(ctx, f.trainer, inv.ID, in)
	if err != nil {
		t.Fatal(err)
	}
	if saved.Status != domain.InvoiceOverdue {
		t.Errorf("after save: status = %q, want overdue", saved.Status)
	}
}
