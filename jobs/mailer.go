package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers queued transactional emails over SMTP.
type Mailer struct {
	Addr   string
	From   string
	Auth   smtp.Auth
	Logger *slog.Logger

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer constructs a Mailer. Auth may be nil for unauthenticated relays.
func NewMailer(addr, from string, auth smtp.Auth, logger *slog.Logger) *Mailer {
	return &Mailer{Addr: addr, From: from, Auth: auth, Logger: logger, send: smtp.SendMail}
}

// Handle processes TaskTypeSendEmail tasks.
func (m *Mailer) Handle(ctx context.Context, t *asynq.Task) error {
	if m == nil || m.Addr == "" {
		return errors.New("mailer: not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.To == "" {
		return asynq.SkipRetry
	}

	msg := m.compose(payload)
	if err := m.send(m.Addr, m.Auth, m.From, []string{payload.To}, msg); err != nil {
		m.logger().Error("send email",
			slog.String("to", payload.To),
			slog.Any("error", err))
		return err
	}
	m.logger().Info("email sent",
		slog.String("to", payload.To),
		slog.String("subject", payload.Subject))
	return nil
}

func (m *Mailer) compose(payload SendEmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", m.From)
	fmt.Fprintf(&b, "To: %s\r\n", payload.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", payload.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(payload.Body)
	return []byte(b.String())
}

func (m *Mailer) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}
