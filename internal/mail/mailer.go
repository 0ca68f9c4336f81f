package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	KindVerification  = "verification"
	KindPasswordReset = "password_reset"

	verificationSubject  = "Verify your Account - AI LMS"
	passwordResetSubject = "Reset Your Password - AI LMS"
)

// Enqueuer accepts messages for background delivery.
type Enqueuer interface {
	Enqueue(msg Message) bool
}

// Mailer builds the account emails that carry verification and reset links.
type Mailer struct {
	queue           Enqueuer
	frontendBaseURL string
	verificationTTL time.Duration
	resetTTL        time.Duration
}

func NewMailer(queue Enqueuer, frontendBaseURL string, verificationTTL, resetTTL time.Duration) *Mailer {
	return &Mailer{
		queue:           queue,
		frontendBaseURL: strings.TrimRight(frontendBaseURL, "/"),
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
	}
}

// SendVerification queues the verification email for address. Rendering
// errors are returned; delivery happens later and is never reported here.
func (m *Mailer) SendVerification(_ context.Context, address, token string) error {
	link := m.link("/verify-email", token)
	body, err := RenderVerification(link, token, humanDuration(m.verificationTTL))
	if err != nil {
		return err
	}
	m.queue.Enqueue(Message{To: []string{address}, Subject: verificationSubject, HTML: body, Kind: KindVerification})
	return nil
}

// SendPasswordReset queues the password reset email for address.
func (m *Mailer) SendPasswordReset(_ context.Context, address, token string) error {
	link := m.link("/reset-password", token)
	body, err := RenderPasswordReset(link, humanDuration(m.resetTTL))
	if err != nil {
		return err
	}
	m.queue.Enqueue(Message{To: []string{address}, Subject: passwordResetSubject, HTML: body, Kind: KindPasswordReset})
	return nil
}

func (m *Mailer) link(path, token string) string {
	return m.frontendBaseURL + path + "?token=" + url.QueryEscape(token)
}

func humanDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "a short time"
	case d%time.Hour == 0:
		return plural(int(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int(d/time.Minute), "minute")
	default:
		return d.String()
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
