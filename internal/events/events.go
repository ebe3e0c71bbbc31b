// Package events publishes domain events after successful writes.
// Delivery is best effort: callers log publish errors and carry on.
package events

import (
	"context"
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event names
const (
	MeasurementRecorded = "measurement.recorded"
	InvoiceCreated      = "invoice.created"
	InvoicePaid         = "invoice.paid"
	ReportGenerated     = "report.generated"
	StudentEnrolled     = "student.enrolled"
)

// Event is the JSON envelope written to the broker.
type Event struct {
	Name       string             `json:"name"`
	TrainerID  primitive.ObjectID `json:"trainerId"`
	StudentID  primitive.ObjectID `json:"studentId"`
	OccurredAt time.Time          `json:"occurredAt"`
	Data       interface{}        `json:"data,omitempty"`
}

// New stamps an event with the current time.
func New(name string, trainerID, studentID primitive.ObjectID, data interface{}) Event {
	return Event{
		Name:       name,
		TrainerID:  trainerID,
		StudentID:  studentID,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher sends events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error { return nil }
func (NoopPublisher) Close() error                        { return nil }
