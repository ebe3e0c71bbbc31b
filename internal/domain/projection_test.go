package domain

import (
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNextMonday(t *testing.T) {
	tests := []struct {
		today time.Time
		want  time.Time
	}{
		{date(2024, time.January, 1), date(2024, time.January, 8)}, // Monday -> a week later
		{date(2024, time.January, 3), date(2024, time.January, 8)},
		{date(2024, time.January, 7), date(2024, time.January, 8)}, // Sunday
		{date(2024, time.December, 31), date(2025, time.January, 6)},
	}
	for _, tt := range tests {
		if got := NextMonday(tt.today); !got.Equal(tt.want) {
			t.Errorf("NextMonday(%s) = %s, want %s", tt.today.Format(DateLayout), got.Format(DateLayout), tt.want.Format(DateLayout))
		}
	}
}

func TestProjectSessionsMondayWednesday(t *testing.T) {
	p := SessionProjection{
		StudentID: primitive.NewObjectID(),
		TrainerID: primitive.NewObjectID(),
		Weekdays:  []Weekday{Wednesday, Monday},
		Start:     "07:00",
		Minutes:   60,
		Weeks:     4,
	}
	sessions, err := ProjectSessions(p, date(2024, time.January, 3))
	if err != nil {
		t.Fatalf("ProjectSessions: %v", err)
	}
	if len(sessions) != 8 {
		t.Fatalf("got %d sessions, want 8", len(sessions))
	}

	wantDays := []int{8, 10, 15, 17, 22, 24, 29, 31}
	for i, s := range sessions {
		if wd := WeekdayOf(s.Date); wd != Monday && wd != Wednesday {
			t.Errorf("session %d on weekday %d", i, wd)
		}
		if s.Date.Day() != wantDays[i] || s.Date.Month() != time.January {
			t.Errorf("session %d date = %s", i, s.Date.Format(DateLayout))
		}
		if s.Start != "07:00" || s.End != "08:00" {
			t.Errorf("session %d times = %s-%s", i, s.Start, s.End)
		}
		if s.Status != SessionScheduled || s.TrainingType != DefaultTrainingType {
			t.Errorf("session %d status/type = %s/%s", i, s.Status, s.TrainingType)
		}
		if s.StudentID != p.StudentID || s.TrainerID != p.TrainerID {
			t.Errorf("session %d not linked to student/trainer", i)
		}
	}
}

func TestProjectSessionsRejectsLateStart(t *testing.T) {
	p := SessionProjection{Weekdays: []Weekday{Friday}, Start: "23:30", Minutes: 60, Weeks: 1}
	if _, err := ProjectSessions(p, date(2024, time.January, 3)); err != ErrCrossesMidnight {
		t.Fatalf("err = %v, want ErrCrossesMidnight", err)
	}
}

func TestProjectSessionsRejectsBadWeekday(t *testing.T) {
	p := SessionProjection{Weekdays: []Weekday{7}, Start: "10:00", Minutes: 60, Weeks: 1}
	if _, err := ProjectSessions(p, date(2024, time.January, 3)); err != ErrInvalidWeekday {
		t.Fatalf("err = %v, want ErrInvalidWeekday", err)
	}
}

func TestProjectInvoicesRollsOverYear(t *testing.T) {
	p := InvoiceProjection{DueDay: 31, Months: 3, Amount: 199.999}
	invoices := ProjectInvoices(p, date(2024, time.November, 20), nil)
	if len(invoices) != 3 {
		t.Fatalf("got %d invoices, want 3", len(invoices))
	}
	want := []time.Time{
		date(2024, time.November, 30),
		date(2024, time.December, 31),
		date(2025, time.January, 31),
	}
	for i, inv := range invoices {
		if !inv.DueDate.Equal(want[i]) {
			t.Errorf("invoice %d due %s, want %s", i, inv.DueDate.Format(DateLayout), want[i].Format(DateLayout))
		}
		if inv.RefMonth != int(want[i].Month()) || inv.RefYear != want[i].Year() {
			t.Errorf("invoice %d period %d/%d", i, inv.RefMonth, inv.RefYear)
		}
		if inv.Status != InvoicePending {
			t.Errorf("invoice %d status %s, want pending", i, inv.Status)
		}
		if inv.Amount != 200 {
			t.Errorf("invoice %d amount %v, want 200", i, inv.Amount)
		}
	}
}

func TestProjectInvoicesPastDueDayIsOverdue(t *testing.T) {
	p := InvoiceProjection{DueDay: 5, Months: 2, Amount: 100}
	invoices := ProjectInvoices(p, date(2024, time.March, 20), nil)
	if invoices[0].Status != InvoiceOverdue {
		t.Errorf("current month status = %s, want overdue", invoices[0].Status)
	}
	if invoices[1].Status != InvoicePending {
		t.Errorf("next month status = %s, want pending", invoices[1].Status)
	}
}

func TestProjectInvoicesSkipsExisting(t *testing.T) {
	p := InvoiceProjection{DueDay: 10, Months: 3, Amount: 100}
	existing := map[[2]int]bool{{4, 2024}: true}
	exists := func(month, year int) bool { return existing[[2]int{month, year}] }

	invoices := ProjectInvoices(p, date(2024, time.March, 1), exists)
	if len(invoices) != 2 {
		t.Fatalf("got %d invoices, want 2", len(invoices))
	}
	for _, inv := range invoices {
		if inv.RefMonth == 4 {
			t.Error("April already existed and should have been skipped")
		}
		existing[[2]int{inv.RefMonth, inv.RefYear}] = true
	}

	if again := ProjectInvoices(p, date(2024, time.March, 1), exists); len(again) != 0 {
		t.Errorf("second run produced %d invoices, want 0", len(again))
	}
}
