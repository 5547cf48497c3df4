// Package mail wraps the outbound email delivery collaborator.
package mail

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"
)

// Attachment is one file carried by an outgoing message.
type Attachment struct {
	Filename string
	Data     []byte
}

// Message is one outbound email.
type Message struct {
	From        string
	To          string
	CC          []string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Mailer is the boundary contract the invoice send flow consumes.
type Mailer interface {
	Send(ctx context.Context, msg Message) (messageID string, err error)
}

// SMTPMailer delivers messages over SMTP.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPMailer builds an SMTP-backed mailer.
func NewSMTPMailer(host string, port int, username, password, from string) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(host, port, username, password),
		from:   from,
	}
}

// Send delivers the message and returns the assigned message id.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	from := msg.From
	if from == "" {
		from = m.from
	}
	messageID := fmt.Sprintf("<%s@meridian>", uuid.NewString())

	gm := gomail.NewMessage()
	gm.SetHeader("From", from)
	gm.SetHeader("To", msg.To)
	if len(msg.CC) > 0 {
		gm.SetHeader("Cc", msg.CC...)
	}
	gm.SetHeader("Subject", msg.Subject)
	gm.SetHeader("Message-ID", messageID)
	gm.SetBody("text/plain", msg.Body)

	for _, att := range msg.Attachments {
		data := att.Data
		gm.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		}))
	}

	if err := m.dialer.DialAndSend(gm); err != nil {
		return "", fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return messageID, nil
}
