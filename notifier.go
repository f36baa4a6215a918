package authcore

import (
	"context"
	"fmt"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/mailgun/mailgun-go/v4"
)

const verificationPath = "/verify-email/"

// MailgunConfig holds the configuration for the Mailgun sender.
type MailgunConfig struct {
	Key     string
	Domain  string
	From    string
	BaseURL string
}

func (c MailgunConfig) validate() error {
	if c.Key == "" || c.Domain == "" || c.From == "" {
		return goerrors.New("mailgun key, domain, and from address are required", goerrors.CategoryBadInput)
	}
	if c.BaseURL == "" {
		return goerrors.New("mailgun base url is required to build verification links", goerrors.CategoryBadInput)
	}
	return nil
}

// MailgunSender delivers verification emails through Mailgun.
type MailgunSender struct {
	config MailgunConfig
	mg     mailgun.Mailgun
	logger Logger
}

// NewMailgunSender validates the config and returns a sender.
func NewMailgunSender(cfg MailgunConfig, logger Logger) (*MailgunSender, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = defLogger{}
	}

	return &MailgunSender{
		config: cfg,
		mg:     mailgun.NewMailgun(cfg.Domain, cfg.Key),
		logger: logger,
	}, nil
}

// SendVerification emails the verification link for token to email.
func (s *MailgunSender) SendVerification(ctx context.Context, email, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	url := s.verificationURL(token)
	body := fmt.Sprintf("Welcome! Please verify your email address by visiting:\n\n%s\n\nThe link expires in 24 hours.", url)

	message := s.mg.NewMessage(s.config.From, "Verify your email address", body)
	if err := message.AddRecipient(email); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid recipient address").
			WithTextCode(TextCodeNotificationFailed)
	}

	_, id, err := s.mg.Send(ctx, message)
	if err != nil {
		s.logger.Error("MailgunSender delivery error", "email", email, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "verification email delivery failed").
			WithTextCode(TextCodeNotificationFailed)
	}

	s.logger.Debug("MailgunSender queued verification email", "id", id)
	return nil
}

func (s *MailgunSender) verificationURL(token string) string {
	return strings.TrimRight(s.config.BaseURL, "/") + verificationPath + token
}

var _ NotificationSender = (*MailgunSender)(nil)

// LogSender is a development NotificationSender that writes the verification
// link to the logger instead of delivering it.
type LogSender struct {
	BaseURL string
	Logger  Logger
}

func (s LogSender) SendVerification(_ context.Context, email, token string) error {
	logger := s.Logger
	if logger == nil {
		logger = defLogger{}
	}
	url := strings.TrimRight(s.BaseURL, "/") + verificationPath + token
	logger.Info("verification email (dev sender)", "email", email, "url", url)
	return nil
}

var _ NotificationSender = (LogSender{})
