package mailer

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNoRecipient = errors.New("message has no recipient")

// Attachment is a file delivered with a message, such as a rendered report.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Message is one outgoing email to a single student or trainer address.
type Message struct {
	To         string
	Subject    string
	HTML       string
	Attachment *Attachment
	// Tags are passed to the provider for delivery tracking (e.g. report_id).
	Tags map[string]string
}

// Receipt identifies a message the provider accepted.
type Receipt struct {
	ID     string
	SentAt time.Time
}

// Sender delivers email through an external provider.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

func checkMessage(msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return nil
}
