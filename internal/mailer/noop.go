package mailer

import (
	"context"
	"fmt"
	"log"
	"time"
)

// NoopSender logs messages instead of delivering them. main falls back to it
// when mail.resend_api_key is empty.
type NoopSender struct{}

func NewNoopSender() *NoopSender {
	return &NoopSender{}
}

func (s *NoopSender) Send(_ context.Context, msg Message) (Receipt, error) {
	if err := checkMessage(msg); err != nil {
		return Receipt{}, err
	}
	attached := ""
	if msg.Attachment != nil {
		attached = msg.Attachment.Filename
	}
	log.Printf("INFO: Mail delivery disabled, dropping %q for %s (attachment %q)", msg.Subject, msg.To, attached)
	return Receipt{
		ID:     fmt.Sprintf("noop-%d", time.Now().UnixNano()),
		SentAt: time.Now(),
	}, nil
}
