package domain

import (
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidDueDay           = errors.New("due day must be between 1 and 31")
	ErrInvalidStatusTransition = errors.New("invoice status transition not allowed")
	ErrNegativeAmount          = errors.New("amount must not be negative")
)

// BillingPlan is a priced offering a contract can reference.
type BillingPlan struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TrainerID        primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	Name             string             `bson:"name" json:"name"`
	Description      string             `bson:"description,omitempty" json:"description,omitempty"`
	Price            float64            `bson:"price" json:"price"`
	IncludedSessions int                `bson:"includedSessions" json:"includedSessions"` // per month
	Active           bool               `bson:"active" json:"active"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt        time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Contract binds a student to a plan with an optional price override.
type Contract struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID   primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	PlanID      primitive.ObjectID `bson:"planId" json:"planId"`
	CustomPrice *float64           `bson:"customPrice,omitempty" json:"customPrice,omitempty"`
	DueDay      int                `bson:"dueDay" json:"dueDay"`
	Active      bool               `bson:"active" json:"active"`
	StartDate   time.Time          `bson:"startDate" json:"startDate"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// EffectivePrice is the custom price when set, otherwise the plan price.
func (c *Contract) EffectivePrice(plan *BillingPlan) float64 {
	if c.CustomPrice != nil {
		return *c.CustomPrice
	}
	if plan == nil {
		return 0
	}
	return plan.Price
}

// ValidateDueDay checks the 1..31 range. Short months are handled by DueDate.
func ValidateDueDay(day int) error {
	if day < 1 || day > 31 {
		return ErrInvalidDueDay
	}
	return nil
}

// InvoiceStatus is the billing state of an invoice.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceOverdue InvoiceStatus = "overdue"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoicePending, InvoicePaid, InvoiceOverdue:
		return true
	}
	return false
}

// IsOpen reports whether money is still owed.
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoicePending || s == InvoiceOverdue
}

// Invoice is a monthly charge. At most one exists per (student, refMonth, refYear).
type Invoice struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	StudentID   primitive.ObjectID  `bson:"studentId" json:"studentId"`
	TrainerID   primitive.ObjectID  `bson:"trainerId" json:"trainerId"`
	StudentName string              `bson:"studentName" json:"studentName"` // denormalized for search
	ContractID  *primitive.ObjectID `bson:"contractId,omitempty" json:"contractId,omitempty"`
	RefMonth    int                 `bson:"refMonth" json:"refMonth"` // 1..12
	RefYear     int                 `bson:"refYear" json:"refYear"`
	Amount      float64             `bson:"amount" json:"amount"`
	DueDate     time.Time           `bson:"dueDate" json:"dueDate"`
	Status      InvoiceStatus       `bson:"status" json:"status"`
	Notes       string              `bson:"notes,omitempty" json:"notes,omitempty"`
	PaidAt      *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// DueDate builds the due date for a reference month, clamping the day to the
// last day of that month (31 in February becomes 28 or 29).
func DueDate(year int, month time.Month, day int) time.Time {
	if last := DaysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DeriveInvoiceStatus applies the on-save rule: a pending invoice whose due
// date has passed becomes overdue. Any other status is returned unchanged.
func DeriveInvoiceStatus(status InvoiceStatus, dueDate, today time.Time) InvoiceStatus {
	if status == InvoicePending && DateOf(dueDate).Before(DateOf(today)) {
		return InvoiceOverdue
	}
	return status
}

// Derive updates Status in place for the given day.
func (inv *Invoice) Derive(today time.Time) {
	inv.Status = DeriveInvoiceStatus(inv.Status, inv.DueDate, today)
}

// CanTransition reports whether an explicit status change is allowed.
// Re-saving the current status is always allowed; the pending<->overdue
// direction is only ever reached through DeriveInvoiceStatus.
func CanTransition(from, to InvoiceStatus) bool {
	if from == to {
		return true
	}
	switch from {
	case InvoicePending:
		return to == InvoicePaid || to == InvoiceOverdue
	case InvoiceOverdue:
		return to == InvoicePaid
	}
	return false
}

// RoundCents rounds a currency amount to two decimals.
func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
