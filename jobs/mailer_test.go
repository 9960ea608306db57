package jobs

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	addr string
	from string
	to   []string
	msg  []byte
}

func newTestMailer() (*Mailer, *[]sentMail) {
	var sent []sentMail
	m := NewMailer("smtp.test:25", "no-reply@invoiceapp.test", nil, nil)
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sent = append(sent, sentMail{addr: addr, from: from, to: to, msg: msg})
		return nil
	}
	return m, &sent
}

func TestMailerSendsComposedMessage(t *testing.T) {
	m, sent := newTestMailer()

	task, err := NewSendEmailTask(SendEmailPayload{
		To:      "billing@acme.test",
		Subject: "Invoice U0001-2026-0001",
		Body:    "Hello",
	})
	require.NoError(t, err)

	require.NoError(t, m.Handle(context.Background(), task))
	require.Len(t, *sent, 1)

	mail := (*sent)[0]
	require.Equal(t, "smtp.test:25", mail.addr)
	require.Equal(t, "no-reply@invoiceapp.test", mail.from)
	require.Equal(t, []string{"billing@acme.test"}, mail.to)

	msg := string(mail.msg)
	require.Contains(t, msg, "To: billing@acme.test\r\n")
	require.Contains(t, msg, "Subject: Invoice U0001-2026-0001\r\n")
	require.True(t, strings.HasSuffix(msg, "\r\nHello"))
}

func TestMailerSkipsRetryOnBadPayload(t *testing.T) {
	m, sent := newTestMailer()

	err := m.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.Empty(t, *sent)
}

func TestMailerSkipsRetryOnMissingRecipient(t *testing.T) {
	m, sent := newTestMailer()

	task, err := NewSendEmailTask(SendEmailPayload{Subject: "no recipient"})
	require.NoError(t, err)

	require.ErrorIs(t, m.Handle(context.Background(), task), asynq.SkipRetry)
	require.Empty(t, *sent)
}

func TestMailerPropagatesSendFailure(t *testing.T) {
	m, _ := newTestMailer()
	sendErr := errors.New("connection refused")
	m.send = func(string, smtp.Auth, string, []string, []byte) error { return sendErr }

	task, err := NewSendEmailTask(SendEmailPayload{To: "billing@acme.test"})
	require.NoError(t, err)

	require.ErrorIs(t, m.Handle(context.Background(), task), sendErr)
}
