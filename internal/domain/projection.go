package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DefaultTrainingType labels sessions created by enrollment.
const DefaultTrainingType = "Regular training"

// NextMonday returns the Monday strictly after today. When today is Monday
// the result is a week later.
func NextMonday(today time.Time) time.Time {
	today = DateOf(today)
	days := (7 - int(WeekdayOf(today))) % 7
	if days == 0 {
		days = 7
	}
	return today.AddDate(0, 0, days)
}

// SessionProjection describes the sessions to create for a new student.
type SessionProjection struct {
	StudentID   primitive.ObjectID
	TrainerID   primitive.ObjectID
	StudentName string
	Weekdays    []Weekday
	Start       TimeOfDay
	Minutes     int // session length
	Weeks       int
}

// ProjectSessions expands weekdays into dated sessions for Weeks weeks
// starting at the Monday after today. Output is ordered by date.
func ProjectSessions(p SessionProjection, today time.Time) ([]ScheduledSession, error) {
	end, err := p.Start.Add(p.Minutes)
	if err != nil {
		return nil, err
	}
	if err := ValidateRange(p.Start, end); err != nil {
		return nil, err
	}

	selected := make(map[Weekday]bool, len(p.Weekdays))
	for _, wd := range p.Weekdays {
		if !wd.Valid() {
			return nil, ErrInvalidWeekday
		}
		selected[wd] = true
	}

	monday := NextMonday(today)
	var sessions []ScheduledSession
	for week := 0; week < p.Weeks; week++ {
		for wd := Monday; wd <= Sunday; wd++ {
			if !selected[wd] {
				continue
			}
			sessions = append(sessions, ScheduledSession{
				StudentID:    p.StudentID,
				TrainerID:    p.TrainerID,
				StudentName:  p.StudentName,
				Date:         monday.AddDate(0, 0, week*7+int(wd)),
				Start:        p.Start,
				End:          end,
				Status:       SessionScheduled,
				TrainingType: DefaultTrainingType,
			})
		}
	}
	return sessions, nil
}

// InvoiceProjection describes the invoices to create for a contract.
type InvoiceProjection struct {
	StudentID   primitive.ObjectID
	TrainerID   primitive.ObjectID
	StudentName string
	ContractID  *primitive.ObjectID
	DueDay      int
	Months      int
	Amount      float64
}

// ProjectInvoices produces one pending invoice per month starting with the
// month of today. exists is consulted per (month, year) and matching periods
// are skipped, which makes repeated runs idempotent. Status is derived
// against today, so a due date already in the past comes out overdue.
func ProjectInvoices(p InvoiceProjection, today time.Time, exists func(month, year int) bool) []Invoice {
	today = DateOf(today)
	var invoices []Invoice
	for i := 0; i < p.Months; i++ {
		year, month := AddMonths(today.Year(), today.Month(), i)
		if exists != nil && exists(int(month), year) {
			continue
		}
		inv := Invoice{
			StudentID:   p.StudentID,
			TrainerID:   p.TrainerID,
			StudentName: p.StudentName,
			ContractID:  p.ContractID,
			RefMonth:    int(month),
			RefYear:     year,
			Amount:      RoundCents(p.Amount),
			DueDate:     DueDate(year, month, p.DueDay),
			Status:      InvoicePending,
		}
		inv.Derive(today)
		invoices = append(invoices, inv)
	}
	return invoices
}
