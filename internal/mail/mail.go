// Package mail renders account e-mails and hands them to a delivery transport.
package mail

import (
	"context"

	"github.com/arzan03/tourbook/internal/logging"
)

// Message is a rendered plain-text e-mail.
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

// Sender delivers a message. Implementations must honour ctx cancellation.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them. Used in development.
type LogSender struct {
	Log logging.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Log.Info(ctx, "mail not delivered, log transport",
		"id", msg.ID, "to", msg.To, "subject", msg.Subject, "text", msg.Text)
	return nil
}
