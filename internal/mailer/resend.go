package mailer

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/resend/resend-go/v2"
)

// ResendSender delivers report emails through the Resend API from a single
// configured address (mail.from).
type ResendSender struct {
	client *resend.Client
	from   string
}

func NewResendSender(apiKey, from string) *ResendSender {
	return &ResendSender{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (s *ResendSender) Send(ctx context.Context, msg Message) (Receipt, error) {
	params, err := emailRequest(s.from, msg)
	if err != nil {
		return Receipt{}, err
	}

	sent, err := s.client.Emails.SendWithContext(ctx, params)
	if err != nil {
		log.Printf("ERROR: Resend rejected %q for %s: %v", msg.Subject, msg.To, err)
		return Receipt{}, fmt.Errorf("resend: %w", err)
	}
	log.Printf("INFO: Resend accepted %q for %s as %s", msg.Subject, msg.To, sent.Id)
	return Receipt{ID: sent.Id, SentAt: time.Now()}, nil
}

// emailRequest converts msg into the Resend payload. Tags are sorted by name.
func emailRequest(from string, msg Message) (*resend.SendEmailRequest, error) {
	if err := checkMessage(msg); err != nil {
		return nil, err
	}
	params := &resend.SendEmailRequest{
		From:    from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	}
	if a := msg.Attachment; a != nil {
		params.Attachments = []*resend.Attachment{{
			Filename:    a.Filename,
			ContentType: a.ContentType,
			Content:     a.Content,
		}}
	}
	if len(msg.Tags) > 0 {
		names := make([]string, 0, len(msg.Tags))
		for name := range msg.Tags {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			params.Tags = append(params.Tags, resend.Tag{Name: name, Value: msg.Tags[name]})
		}
	}
	return params, nil
}
