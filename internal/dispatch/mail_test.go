package dispatch

import (
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/ocochard/monit/internal/model"
)

func TestMailerSendRendersTemplateAndCallsSMTPSend(t *testing.T) {
	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte

	m := &Mailer{
		SMTP: SMTPConfig{Addr: "mail.example.com:25"},
		Send: func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
			gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
			return nil
		},
	}

	svc := &model.Service{Name: "nginx"}
	recipient := model.Mail{To: "ops@example.com", From: "monitd@example.com", Message: "$SERVICE is $EVENT"}
	ev := model.Event{EventKind: model.KindNonexist, State: model.StateFailed, CollectedAt: time.Now().Unix()}

	if err := m.Send(svc, recipient, ev); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotAddr != "mail.example.com:25" {
		t.Fatalf("addr = %q", gotAddr)
	}
	if gotFrom != "monitd@example.com" {
		t.Fatalf("from = %q", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ops@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	if !strings.Contains(string(gotMsg), "nginx") {
		t.Fatalf("message does not mention the service name: %s", gotMsg)
	}
}

func TestHostOfStripsPort(t *testing.T) {
	if got := hostOf("mail.example.com:587"); got != "mail.example.com" {
		t.Fatalf("hostOf = %q", got)
	}
	if got := hostOf("mail.example.com"); got != "mail.example.com" {
		t.Fatalf("hostOf = %q", got)
	}
}
