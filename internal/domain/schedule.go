package domain

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrInvalidTimeOfDay = errors.New("time must be in HH:MM format")
	ErrEndNotAfterStart = errors.New("end time must be after start time")
	ErrCrossesMidnight  = errors.New("session cannot cross midnight")
	ErrInvalidWeekday   = errors.New("weekday must be between 0 (Monday) and 6 (Sunday)")
)

// TimeOfDay is a wall-clock time stored as zero-padded "HH:MM", so plain
// string comparison orders it correctly.
type TimeOfDay string

// ParseTimeOfDay validates and normalises "H:MM"/"HH:MM" input.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return "", ErrInvalidTimeOfDay
	}
	return TimeOfDay(t.Format("15:04")), nil
}

// Minutes since midnight.
func (t TimeOfDay) Minutes() int {
	parsed, err := time.Parse("15:04", string(t))
	if err != nil {
		return 0
	}
	return parsed.Hour()*60 + parsed.Minute()
}

// Add returns t shifted by the given minutes. It refuses to wrap past midnight.
func (t TimeOfDay) Add(minutes int) (TimeOfDay, error) {
	total := t.Minutes() + minutes
	if total >= 24*60 || total < 0 {
		return "", ErrCrossesMidnight
	}
	return TimeOfDay(fmt.Sprintf("%02d:%02d", total/60, total%60)), nil
}

// ValidateRange enforces end > start.
func ValidateRange(start, end TimeOfDay) error {
	if end <= start {
		return ErrEndNotAfterStart
	}
	return nil
}

// Weekday numbers days Monday=0 .. Sunday=6.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

func (w Weekday) Valid() bool { return w >= Monday && w <= Sunday }

// WeekdayOf converts a date to the Monday-based numbering.
func WeekdayOf(t time.Time) Weekday {
	return Weekday((int(t.Weekday()) + 6) % 7)
}

// ScheduleSlot is a recurring weekly template for a student's training time.
// Unique per (student, weekday, start).
type ScheduleSlot struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	Weekday   Weekday            `bson:"weekday" json:"weekday"`
	Start     TimeOfDay          `bson:"start" json:"start"`
	End       TimeOfDay          `bson:"end" json:"end"`
	Active    bool               `bson:"active" json:"active"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

// SessionStatus tracks a concrete session.
type SessionStatus string

const (
	SessionScheduled SessionStatus = "scheduled"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case SessionScheduled, SessionConfirmed, SessionCompleted, SessionCancelled:
		return true
	}
	return false
}

// IsUpcoming reports whether the session still counts as "on the agenda".
func (s SessionStatus) IsUpcoming() bool {
	return s == SessionScheduled || s == SessionConfirmed
}

// ScheduledSession is one concrete dated occurrence.
type ScheduledSession struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID    primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID    primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	StudentName  string             `bson:"studentName" json:"studentName"` // denormalized for agenda search
	Date         time.Time          `bson:"date" json:"date"`
	Start        TimeOfDay          `bson:"start" json:"start"`
	End          TimeOfDay          `bson:"end" json:"end"`
	Status       SessionStatus      `bson:"status" json:"status"`
	TrainingType string             `bson:"trainingType,omitempty" json:"trainingType,omitempty"`
	Notes        string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// AttendanceStatus is the actual presence outcome.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendancePresent, AttendanceAbsent, AttendanceExcused:
		return true
	}
	return false
}

// AttendanceRecord is independent of the schedule: it can exist for a date
// that never had a session.
type AttendanceRecord struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	StudentID   primitive.ObjectID `bson:"studentId" json:"studentId"`
	TrainerID   primitive.ObjectID `bson:"trainerId" json:"trainerId"`
	StudentName string             `bson:"studentName" json:"studentName"`
	Date        time.Time          `bson:"date" json:"date"`
	Start       TimeOfDay          `bson:"start" json:"start"`
	End         TimeOfDay          `bson:"end,omitempty" json:"end,omitempty"`
	Status      AttendanceStatus   `bson:"status" json:"status"`
	Notes       string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}
