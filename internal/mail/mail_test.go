package mail

import (
	"context"
	"strings"
	"testing"
)

func TestWelcomeMessage(t *testing.T) {
	msg, err := WelcomeMessage("ada@example.com", "Ada", "0123456789abcdef", "https://example.com/login")
	if err != nil {
		t.Fatalf("WelcomeMessage: %v", err)
	}
	if len(msg.To) != 1 || msg.To[0] != "ada@example.com" {
		t.Errorf("To = %v", msg.To)
	}
	for _, want := range []string{"Ada", "0123456789abcdef", "https://example.com/login"} {
		if !strings.Contains(msg.HTML, want) {
			t.Errorf("body missing %q", want)
		}
	}
}

func TestPasswordResetMessageEscapesHTML(t *testing.T) {
	msg, err := PasswordResetMessage("x@example.com", "<script>", "pw", "")
	if err != nil {
		t.Fatalf("PasswordResetMessage: %v", err)
	}
	if strings.Contains(msg.HTML, "<script>") {
		t.Error("first name should be HTML-escaped")
	}
	if strings.Contains(msg.HTML, "Sign in</a>") {
		t.Error("login link should be omitted without a URL")
	}
}

func TestBuildMessage(t *testing.T) {
	raw := string(buildMessage("Francis Legacy", "noreply@example.com", Message{
		To:      []string{"a@example.com", "b@example.com"},
		Subject: "Hello",
		HTML:    "<p>Hi</p>",
	}))

	for _, want := range []string{
		"From: Francis Legacy <noreply@example.com>\r\n",
		"To: a@example.com, b@example.com\r\n",
		"Subject: Hello\r\n",
		"Content-Type: text/html; charset=UTF-8\r\n",
		"\r\n\r\n<p>Hi</p>",
	} {
		if !strings.Contains(raw, want) {
			t.Errorf("message missing %q\n%s", want, raw)
		}
	}
}

func TestSendersRejectEmptyRecipients(t *testing.T) {
	ctx := context.Background()
	if err := (LogSender{}).Send(ctx, Message{Subject: "x"}); err == nil {
		t.Error("LogSender: expected error for missing recipient")
	}
	if err := NewSMTPSender(SMTPConfig{Host: "localhost", Port: 25}).Send(ctx, Message{}); err == nil {
		t.Error("SMTPSender: expected error for missing recipient")
	}
	if err := (LogSender{}).Send(ctx, Message{To: []string{"a@example.com"}}); err != nil {
		t.Errorf("LogSender: %v", err)
	}
}

func TestNewSMTPSenderEncryption(t *testing.T) {
	tests := map[string]Encryption{
		"none":     EncNone,
		"ssl/tls":  EncSSLTLS,
		"STARTTLS": EncStartTLS,
		"bogus":    EncStartTLS,
		"":         EncStartTLS,
	}
	for in, want := range tests {
		if got := NewSMTPSender(SMTPConfig{Encryption: in}).enc; got != want {
			t.Errorf("encryption %q = %q, want %q", in, got, want)
		}
	}
}
