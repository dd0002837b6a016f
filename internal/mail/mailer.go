package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"golang.org/x/time/rate"

	"github.com/giftforyoube/giftipie/internal/notification"
)

// Config holds SMTP settings for the notification mailer
type Config struct {
	From     string
	Password string
	Host     string
	Port     string
	// RateLimit caps outgoing mails per second so a large sweep cannot
	// hammer the relay
	RateLimit int
}

// Mailer delivers notification emails over SMTP. It is the one-way trigger
// invoked after push fan-out; callers treat failures as reportable, not
// retryable.
type Mailer struct {
	cfg     Config
	limiter *rate.Limiter
}

// New creates a rate-limited SMTP mailer
func New(cfg Config) *Mailer {
	if cfg.RateLimit < 1 {
		cfg.RateLimit = 10
	}
	return &Mailer{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
	}
}

// SendNotificationEmail sends the notification content to the recipient's
// address
func (m *Mailer) SendNotificationEmail(ctx context.Context, to string, n *notification.Notification) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter interrupted: %w", err)
	}

	msg := buildMessage(m.cfg.From, to, subjectFor(n.Type), n)

	auth := smtp.PlainAuth("", m.cfg.From, m.cfg.Password, m.cfg.Host)
	if err := smtp.SendMail(m.cfg.Host+":"+m.cfg.Port, auth, m.cfg.From, []string{to}, msg); err != nil {
		return fmt.Errorf("failed to send mail to %s: %w", to, err)
	}
	return nil
}

func subjectFor(t notification.Type) string {
	switch t {
	case notification.TypeDonation:
		return "[Giftipie] You received a donation"
	case notification.TypeFundingSuccess:
		return "[Giftipie] Your funding reached its goal"
	case notification.TypeFundingTimeOut:
		return "[Giftipie] Your funding has ended"
	default:
		return "[Giftipie] New notification"
	}
}

func buildMessage(from, to, subject string, n *notification.Notification) []byte {
	body := n.Content
	if n.URL != "" {
		body += "\r\n\r\n" + n.URL
	}

	msg := "From: " + from + "\r\n" +
		"To: " + to + "\r\n" +
		"Subject: " + subject + "\r\n" +
		"Content-Type: text/plain; charset=UTF-8\r\n" +
		"\r\n" +
		body + "\r\n"

	return []byte(msg)
}
