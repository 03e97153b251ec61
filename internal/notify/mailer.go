package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, m *Message) error
	// Kind names the delivery channel for the delivery status.
	Kind() string
}

// SMTPConfig stores SMTP delivery settings.
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"-"`
	From     string `mapstructure:"from"`
	// InsecureSkipStartTLS allows plain connections to servers without STARTTLS.
	InsecureSkipStartTLS bool `mapstructure:"insecure-skip-starttls"`
}

func (c SMTPConfig) Configured() bool {
	return strings.TrimSpace(c.Host) != ""
}

// SMTPMailer sends mail through an SMTP relay with STARTTLS.
type SMTPMailer struct {
	cfg    SMTPConfig
	logger *zap.Logger
	now    func() time.Time
}

func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) (*SMTPMailer, error) {
	if !cfg.Configured() {
		return nil, errors.New("smtp host is required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("invalid smtp sender %q: %w", cfg.From, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SMTPMailer{cfg: cfg, logger: logger, now: time.Now}, nil
}

func (s *SMTPMailer) Kind() string { return "smtp" }

func (s *SMTPMailer) Send(ctx context.Context, m *Message) error {
	msg := *m
	if msg.From == "" {
		msg.From = s.cfg.From
	}
	data, err := Build(&msg, s.now())
	if err != nil {
		return err
	}

	from, _ := mail.ParseAddress(msg.From)
	to, _ := mail.ParseAddress(msg.To)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: s.cfg.Host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	} else if !s.cfg.InsecureSkipStartTLS {
		return errors.New("smtp server does not support STARTTLS")
	}

	if s.cfg.Username != "" {
		auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(from.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(to.Address); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}

	s.logger.Info("email sent", zap.String("to", to.Address), zap.Int("attachments", len(m.Attachments)))
	return client.Quit()
}

// LogMailer only logs what would have been sent.
type LogMailer struct {
	logger *zap.Logger
}

func NewLogMailer(logger *zap.Logger) *LogMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogMailer{logger: logger}
}

func (l *LogMailer) Kind() string { return "log" }

func (l *LogMailer) Send(_ context.Context, m *Message) error {
	if err := m.Validate(); err != nil {
		return err
	}

	names := make([]string, 0, len(m.Attachments))
	for _, a := range m.Attachments {
		names = append(names, a.Name)
	}
	l.logger.Info("email delivery skipped, smtp is not configured",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
		zap.Strings("attachments", names),
	)
	return nil
}
