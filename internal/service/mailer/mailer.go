package mailer

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/nkiryanov/todo/internal/logger"
)

const defaultTimeout = 10 * time.Second

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTP mailer
// Every Send dials the server, there is no connection kept between calls
type SMTPMailer struct {
	from   string
	client *mail.Client
	logger logger.Logger
}

func NewSMTPMailer(cfg Config, l logger.Logger) (*SMTPMailer, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(defaultTimeout),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create smtp client: %w", err)
	}

	return &SMTPMailer{from: cfg.From, client: client, logger: l}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, to string, subject string, body string) error {
	msg, err := newMessage(m.from, to, subject, body)
	if err != nil {
		return err
	}

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		m.logger.Error("Failed to send email", "subject", subject, "error", err)
		return fmt.Errorf("failed to send email: %w", err)
	}

	m.logger.Info("Email sent", "subject", subject)
	return nil
}

func newMessage(from string, to string, subject string, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// Mailer that only writes emails to log
// Used when SMTP is not configured. Body is never logged since it carries the reset token
type LogMailer struct {
	logger logger.Logger
}

func NewLogMailer(l logger.Logger) *LogMailer {
	return &LogMailer{logger: l}
}

func (m *LogMailer) Send(_ context.Context, to string, subject string, body string) error {
	m.logger.Info("Email is not sent, SMTP is not configured", "to", to, "subject", subject, "body_len", len(body))
	return nil
}
