package mailer

import (
	"crypto/tls"
	"fmt"
	"net/smtp"

	"github.com/domodwyer/mailyak/v3"
)

// Mailer sends transactional mail over SMTP with implicit TLS.
type Mailer struct {
	addr string
	auth smtp.Auth
	from string
	tls  *tls.Config
}

// New creates a mailer for the given SMTP endpoint.
func New(host string, port int, user, pass, from string) *Mailer {
	return &Mailer{
		addr: fmt.Sprintf("%s:%d", host, port),
		auth: smtp.PlainAuth("", user, pass, host),
		from: from,
		tls:  &tls.Config{ServerName: host},
	}
}

// SendOTP mails a password-reset code. There is no retry; a failure here
// fails the whole reset request.
func (m *Mailer) SendOTP(to, name, code string) error {
	mail, err := mailyak.NewWithTLS(m.addr, m.auth, m.tls)
	if err != nil {
		return fmt.Errorf("smtp connect failed: %w", err)
	}
	mail.From(m.from)
	mail.FromName("No-Reply")
	mail.To(to)
	mail.Subject("Password Reset OTP")
	mail.HTML().Set(fmt.Sprintf(`
		<p>Hello %s,</p>
		<p>We received a request to reset your password. Your OTP is: <strong>%s</strong></p>
		<p>The OTP is valid for only <strong>10 minutes</strong>.</p>
		<p>If you did not request a password reset, please ignore this email.</p>
		<p>Thank you,<br>The Support Team</p>
	`, name, code))
	if err := mail.Send(); err != nil {
		return fmt.Errorf("send mail failed: %w", err)
	}
	return nil
}
