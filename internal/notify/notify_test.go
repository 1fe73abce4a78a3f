package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeChannel struct {
	name string
	sent []Notification
	err  error
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(_ context.Context, n Notification) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, n)
	return nil
}

func TestDispatcher_RoutesToRequestedChannels(t *testing.T) {
	push := &fakeChannel{name: "push"}
	email := &fakeChannel{name: "email"}

	d := NewDispatcher(nil)
	d.Register(push)
	d.Register(email)

	n := Notification{TenantID: "alice", Title: "Daily Brief", Body: "# Markets\n"}
	if err := d.Send(context.Background(), []string{"push"}, n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if len(push.sent) != 1 {
		t.Errorf("push got %d notifications", len(push.sent))
	}
	if len(email.sent) != 0 {
		t.Errorf("email got %d notifications, want 0", len(email.sent))
	}
}

func TestDispatcher_UnknownChannelSkipped(t *testing.T) {
	push := &fakeChannel{name: "push"}
	d := NewDispatcher(nil)
	d.Register(push)

	err := d.Send(context.Background(), []string{"sms", "push"}, Notification{TenantID: "bob"})
	if err != nil {
		t.Fatalf("unknown channel should be skipped, got %v", err)
	}
	if len(push.sent) != 1 {
		t.Errorf("push got %d notifications", len(push.sent))
	}
}

func TestDispatcher_FailureDoesNotBlockOthers(t *testing.T) {
	broken := &fakeChannel{name: "push", err: errors.New("broker down")}
	email := &fakeChannel{name: "email"}

	d := NewDispatcher(nil)
	d.Register(broken)
	d.Register(email)

	err := d.Send(context.Background(), []string{"push", "email"}, Notification{TenantID: "carol"})
	if err == nil {
		t.Fatal("expected joined error from failed channel")
	}
	if len(email.sent) != 1 {
		t.Errorf("email should still deliver, got %d", len(email.sent))
	}
}

func TestComposeMessage(t *testing.T) {
	msg, err := composeMessage(
		"MarketBrief <brief@example.com>",
		"alice@example.com",
		"Daily Brief 2026-09-01",
		"# Markets\n\n**NVDA** rose [4%](https://example.com/nvda).",
	)
	if err != nil {
		t.Fatalf("composeMessage: %v", err)
	}

	s := string(msg)
	for _, want := range []string{
		"brief@example.com",
		"alice@example.com",
		"Subject: Daily Brief",
		"multipart/alternative",
		"text/plain",
		"text/html",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("message missing %q", want)
		}
	}
}

func TestMarkdownToPlain(t *testing.T) {
	md := "# Brief\n\n**bold** and *italic* and `code` and [link](https://x.test)\n\n```go\ncode block\n```"
	got := MarkdownToPlain(md)

	for _, banned := range []string{"#", "**", "`", "]("} {
		if strings.Contains(got, banned) {
			t.Errorf("plain text still contains %q:\n%s", banned, got)
		}
	}
	if !strings.Contains(got, "link (https://x.test)") {
		t.Errorf("link not converted: %s", got)
	}
	if !strings.Contains(got, "code block") {
		t.Errorf("code block content lost: %s", got)
	}
}

func TestMarkdownToHTML(t *testing.T) {
	html, err := MarkdownToHTML("# Brief\n\nSome **bold** text.")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"<h1>", "<strong>bold</strong>", "<!DOCTYPE html>"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}
