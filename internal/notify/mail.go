package notify

import (
	"context"
	"fmt"
	"strings"

	"gopkg.in/gomail.v2"

	"github.com/DeafMist/news-collector/internal/config"
)

// Subject is the fixed subject of the run notification.
const Subject = "[News Collector] collection run completed"

// Summary describes a finished collection run.
type Summary struct {
	Keywords   []string
	OutputPath string
	Fetched    int
	Stored     int
}

// Notifier announces a completed run.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

type sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer sends the run summary as a plain-text email through an
// authenticated SMTP submission relay. The dialer upgrades the connection
// with STARTTLS before authenticating.
type Mailer struct {
	from   string
	to     string
	dialer sender
}

// NewMailer builds a Mailer from mail settings.
func NewMailer(cfg config.Mail) *Mailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{from: cfg.Username, to: cfg.To, dialer: d}
}

// Notify composes and delivers the message. The connection is closed before returning.
func (m *Mailer) Notify(ctx context.Context, s Summary) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", m.to)
	msg.SetHeader("Subject", Subject)
	msg.SetBody("text/plain", Body(s))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send notification to %s: %w", m.to, err)
	}
	return nil
}

// Body renders the fixed notification text.
func Body(s Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "News collection finished for keywords: %s\n", strings.Join(s.Keywords, ", "))
	fmt.Fprintf(&b, "Rows fetched this run: %d\n", s.Fetched)
	fmt.Fprintf(&b, "Rows in dataset: %d\n", s.Stored)
	fmt.Fprintf(&b, "Dataset: %s\n", s.OutputPath)
	return b.String()
}
