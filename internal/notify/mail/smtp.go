// Package mail delivers notification emails over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobalert-crawler/internal/posting"
)

const defaultFromName = "Notify"

// Config describes the SMTP relay and sender.
type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	// TLS is one of "mandatory", "opportunistic" or "none".
	TLS     string
	Timeout time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
}

// Channel implements posting.MailChannel.
type Channel struct {
	cfg    Config
	client sender
	logger *zap.Logger
}

// New builds an SMTP client from cfg.
func New(cfg Config, logger *zap.Logger) (*Channel, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("mail.host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("mail.from is required")
	}
	opts := []gomail.Option{gomail.WithTLSPolicy(tlsPolicy(cfg.TLS))}
	if cfg.Port > 0 {
		opts = append(opts, gomail.WithPort(cfg.Port))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return NewWithSender(cfg, client, logger), nil
}

// NewWithSender constructs a Channel over an existing client (primarily for testing).
func NewWithSender(cfg Config, client sender, logger *zap.Logger) *Channel {
	if cfg.FromName == "" {
		cfg.FromName = defaultFromName
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Channel{cfg: cfg, client: client, logger: logger}
}

// Send delivers one message with a plain text body and an optional HTML
// alternative. Failures are wrapped in posting.ErrChannel.
func (c *Channel) Send(ctx context.Context, to, subject, text, html string) error {
	msg, err := c.message(to, subject, text, html)
	if err != nil {
		return errors.Join(posting.ErrChannel, err)
	}
	if err := c.client.DialAndSendWithContext(ctx, msg); err != nil {
		return errors.Join(posting.ErrChannel, fmt.Errorf("send mail: %w", err))
	}
	c.logger.Debug("mail sent", zap.String("subject", subject))
	return nil
}

func (c *Channel) message(to, subject, text, html string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(c.cfg.FromName, c.cfg.From); err != nil {
		return nil, fmt.Errorf("set from: %w", err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextPlain, text)
	if html != "" {
		msg.AddAlternativeString(gomail.TypeTextHTML, html)
	}
	return msg, nil
}

func tlsPolicy(s string) gomail.TLSPolicy {
	switch strings.ToLower(s) {
	case "none":
		return gomail.NoTLS
	case "mandatory":
		return gomail.TLSMandatory
	default:
		return gomail.TLSOpportunistic
	}
}
