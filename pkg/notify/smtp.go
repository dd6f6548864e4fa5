package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wneessen/go-mail"

	"booksphere/pkg/domain"
)

const defaultSMTPTimeout = 10 * time.Second

// SMTPConfig holds mail account settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	// To defaults to Username, so the account mails itself.
	To      string
	Timeout time.Duration
}

// SMTPNotifier sends feedback mails over STARTTLS with plain auth.
type SMTPNotifier struct {
	cfg SMTPConfig
}

// NewSMTPNotifier validates cfg and fills defaults.
func NewSMTPNotifier(cfg SMTPConfig) (*SMTPNotifier, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	cfg.Username = strings.TrimSpace(cfg.Username)
	cfg.To = strings.TrimSpace(cfg.To)
	if cfg.Host == "" {
		return nil, errors.New("smtp host required")
	}
	if cfg.Username == "" || cfg.Password == "" {
		return nil, errors.New("smtp credentials required")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	if cfg.To == "" {
		cfg.To = cfg.Username
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMTPTimeout
	}
	return &SMTPNotifier{cfg: cfg}, nil
}

// NotifyFeedback mails the feedback to the configured mailbox.
func (n *SMTPNotifier) NotifyFeedback(ctx context.Context, f domain.Feedback) error {
	msg, err := n.buildMessage(f)
	if err != nil {
		return err
	}
	client, err := mail.NewClient(n.cfg.Host,
		mail.WithPort(n.cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.cfg.Username),
		mail.WithPassword(n.cfg.Password),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(n.cfg.Timeout),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, n.cfg.Timeout)
	defer cancel()
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send feedback mail: %w", err)
	}
	return nil
}

func (n *SMTPNotifier) buildMessage(f domain.Feedback) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(n.cfg.Username); err != nil {
		return nil, fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(n.cfg.To); err != nil {
		return nil, fmt.Errorf("mail to: %w", err)
	}
	if f.Email != "" {
		if err := msg.ReplyTo(f.Email); err != nil {
			return nil, fmt.Errorf("mail reply-to: %w", err)
		}
	}
	msg.Subject(FeedbackSubject(f))
	msg.SetBodyString(mail.TypeTextPlain, FeedbackBody(f))
	return msg, nil
}
