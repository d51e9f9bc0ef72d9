package dispatch

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"github.com/gomarkdown/markdown"

	"github.com/ocochard/monit/internal/model"
)

// SMTPConfig is the outgoing relay a Mailer hands every message to. No
// library in the retrieved corpus covers SMTP transport, so this uses
// net/smtp directly (see DESIGN.md).
type SMTPConfig struct {
	Addr     string // host:port
	Username string
	Password string
}

// Mailer renders a Mail template's Markdown body to HTML and delivers it
// over SMTP, satisfying event.AlertSink.
type Mailer struct {
	SMTP SMTPConfig
	Send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer builds a Mailer whose Send defaults to smtp.SendMail.
func NewMailer(cfg SMTPConfig) *Mailer {
	return &Mailer{SMTP: cfg, Send: smtp.SendMail}
}

// Send renders recipient's Markdown message template against ev and
// delivers it, spec.md §4.E step 4's "HandlerAlert" path.
func (m *Mailer) Send(svc *model.Service, recipient model.Mail, ev model.Event) error {
	subject := recipient.Subject
	if subject == "" {
		subject = fmt.Sprintf("monit alert: %s %s", svc.Name, ev.EventKind)
	}
	body := expandTemplate(recipient.Message, svc, ev)
	html := markdown.ToHTML([]byte(body), nil, nil)

	var auth smtp.Auth
	if m.SMTP.Username != "" {
		auth = smtp.PlainAuth("", m.SMTP.Username, m.SMTP.Password, hostOf(m.SMTP.Addr))
	}

	from := recipient.From
	var headers strings.Builder
	fmt.Fprintf(&headers, "From: %s\r\n", from)
	fmt.Fprintf(&headers, "To: %s\r\n", recipient.To)
	if recipient.ReplyTo != "" {
		fmt.Fprintf(&headers, "Reply-To: %s\r\n", recipient.ReplyTo)
	}
	fmt.Fprintf(&headers, "Subject: %s\r\n", subject)
	headers.WriteString("MIME-Version: 1.0\r\n")
	headers.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg := append([]byte(headers.String()), html...)

	if err := m.Send(m.SMTP.Addr, auth, from, []string{recipient.To}, msg); err != nil {
		return fmt.Errorf("dispatch: send mail to %s: %w", recipient.To, err)
	}
	return nil
}

// expandTemplate substitutes the handful of placeholders the original
// monitrc mail-format directive supports.
func expandTemplate(tmpl string, svc *model.Service, ev model.Event) string {
	if tmpl == "" {
		tmpl = "Service **$SERVICE** $EVENT: $DESCRIPTION\n\nAt $DATE."
	}
	r := strings.NewReplacer(
		"$SERVICE", svc.Name,
		"$EVENT", ev.EventKind.String(),
		"$DESCRIPTION", ev.Message,
		"$DATE", time.Unix(ev.CollectedAt, 0).UTC().Format(time.RFC1123),
		"$STATUS", ev.State.String(),
	)
	return r.Replace(tmpl)
}

func hostOf(addr string) string {
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		return addr[:i]
	}
	return addr
}
