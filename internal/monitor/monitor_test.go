package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"wasend/internal/kit"
	"wasend/pkg/logx"
)

type pollMessenger struct {
	unread  []kit.InboundMessage
	sent    []kit.InboundMessage // SenderID + Text of auto-replies
	sendErr error
}

func (p *pollMessenger) Ping(ctx context.Context) error { return nil }

func (p *pollMessenger) OpenChat(ctx context.Context, recipient string) (kit.ChatHandle, error) {
	return kit.ChatHandle{ID: recipient}, nil
}

func (p *pollMessenger) SendText(ctx context.Context, to kit.ChatHandle, text string) error {
	p.sent = append(p.sent, kit.InboundMessage{SenderID: to.ID, Text: text})
	return p.sendErr
}

func (p *pollMessenger) FetchUnread(ctx context.Context) ([]kit.InboundMessage, error) {
	return p.unread, nil
}

func (p *pollMessenger) Close(ctx context.Context) error { return nil }

func newTestService(m kit.Messenger) *Service {
	cfg := Config{
		Interval:        time.Second,
		Keywords:        []string{"help", "urgent"},
		AutoReply:       "We'll contact you shortly!",
		ReplyRatePerSec: 1000, // keep tests fast
	}
	return New(cfg, m, nil, nil, logx.Nop())
}

func TestMatchKeyword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{text: "I have an Urgent issue", want: "urgent", ok: true},
		{text: "HELP ME", want: "help", ok: true},
		{text: "urgently needed", want: "urgent", ok: true}, // substring match
		{text: "all good here", ok: false},
		{text: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := matchKeyword(tt.text, []string{"help", "urgent"})
		if ok != tt.ok || got != tt.want {
			t.Fatalf("matchKeyword(%q) = %q, %v; want %q, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestPollRepliesOnce(t *testing.T) {
	t.Parallel()
	m := &pollMessenger{unread: []kit.InboundMessage{
		{ID: "m1", SenderID: "alice", Text: "need HELP now"},
		{ID: "m2", SenderID: "bob", Text: "hello there"},
	}}
	s := newTestService(m)
	ctx := context.Background()

	s.pollOnce(ctx)
	if len(m.sent) != 1 || m.sent[0].SenderID != "alice" {
		t.Fatalf("sent = %+v, want one reply to alice", m.sent)
	}

	// Same unread batch returned again: no duplicate reply.
	s.pollOnce(ctx)
	s.pollOnce(ctx)
	if len(m.sent) != 1 {
		t.Fatalf("sent %d replies across polls, want 1", len(m.sent))
	}
}

func TestPollMarksHandledOnSendFailure(t *testing.T) {
	t.Parallel()
	m := &pollMessenger{
		unread:  []kit.InboundMessage{{ID: "m1", SenderID: "alice", Text: "urgent!"}},
		sendErr: errors.New("sender unreachable"),
	}
	s := newTestService(m)
	ctx := context.Background()

	s.pollOnce(ctx)
	s.pollOnce(ctx)
	// One attempt only: the failed message must not cause a retry storm.
	if len(m.sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(m.sent))
	}
}

func TestPollUsesConfiguredReply(t *testing.T) {
	t.Parallel()
	m := &pollMessenger{unread: []kit.InboundMessage{{ID: "m1", SenderID: "alice", Text: "problem?"}}}
	s := newTestService(m)
	s.Apply(Config{
		Interval:        time.Second,
		Keywords:        []string{"problem"},
		AutoReply:       "custom reply",
		ReplyRatePerSec: 1000,
	})

	s.pollOnce(context.Background())
	if len(m.sent) != 1 || m.sent[0].Text != "custom reply" {
		t.Fatalf("sent = %+v, want the configured reply text", m.sent)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()
	m := &pollMessenger{}
	s := newTestService(m)
	s.Apply(Config{Interval: 10 * time.Millisecond, Keywords: []string{"x"}, AutoReply: "y", ReplyRatePerSec: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
