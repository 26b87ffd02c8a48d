// Package mail delivers one-time login codes to agents.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"support-chat-backend/internal/config"

	gomail "github.com/wneessen/go-mail"
)

const (
	DriverSMTP = "smtp"
	DriverLog  = "log"
)

type Message struct {
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

func New(cfg config.MailConfig, logger *slog.Logger) (Mailer, error) {
	switch cfg.Driver {
	case DriverSMTP:
		return NewSMTPMailer(cfg), nil
	case DriverLog, "":
		return NewLogMailer(logger), nil
	default:
		return nil, fmt.Errorf("mail: unknown driver %q", cfg.Driver)
	}
}

func OTPMessage(to, code string, ttl time.Duration) Message {
	return Message{
		To:      to,
		Subject: "Your support console login code",
		Body: fmt.Sprintf(
			"Your login code is %s.\n\nIt expires in %d minutes. If you did not request it you can ignore this email.\n",
			code, int(ttl.Minutes()),
		),
	}
}

type SMTPMailer struct {
	cfg config.MailConfig
}

func NewSMTPMailer(cfg config.MailConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	out := gomail.NewMsg()
	if err := out.From(m.cfg.From); err != nil {
		return fmt.Errorf("mail: from address: %w", err)
	}
	if err := out.To(msg.To); err != nil {
		return fmt.Errorf("mail: to address: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(gomail.TypeTextPlain, msg.Body)

	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if m.cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(m.cfg.Username),
			gomail.WithPassword(m.cfg.Password),
		)
	}

	client, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail: smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("mail: send to %s: %w", msg.To, err)
	}
	return nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logger *slog.Logger
}

func NewLogMailer(logger *slog.Logger) *LogMailer {
	return &LogMailer{logger: logger.With("component", "mail")}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.Info("mail not sent, log driver", "to", msg.To, "subject", msg.Subject, "body", msg.Body)
	return nil
}
