package email

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type recordingSender struct {
	msgs []Message
	err  error
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.err != nil {
		return s.err
	}
	s.msgs = append(s.msgs, msg)
	return nil
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))

	if err := sender.Send(context.Background(), Message{To: "alice@example.com", Subject: "Hello", TextBody: "Hi"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "alice@example.com") || !strings.Contains(out, "Hello") {
		t.Errorf("log output missing message fields: %s", out)
	}
}

func TestLogSenderMissingRecipient(t *testing.T) {
	sender := NewLogSender(slog.New(slog.DiscardHandler))
	if err := sender.Send(context.Background(), Message{Subject: "Hello"}); err == nil {
		t.Fatal("expected error for missing recipient")
	}
}

func TestSendTest(t *testing.T) {
	sender := &recordingSender{}

	if err := SendTest(context.Background(), sender, "alice@example.com"); err != nil {
		t.Fatalf("send test: %v", err)
	}
	if len(sender.msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.msgs))
	}
	if sender.msgs[0].Subject != "Jobtrack - Test Email" {
		t.Errorf("subject = %q", sender.msgs[0].Subject)
	}
}

func TestSendTestPropagatesError(t *testing.T) {
	boom := errors.New("smtp down")
	sender := &recordingSender{err: boom}

	if err := SendTest(context.Background(), sender, "alice@example.com"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
}
