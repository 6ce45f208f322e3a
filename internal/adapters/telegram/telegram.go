// Package telegram implements the Messenger capability on top of a
// Telegram bot, so small outreach runs can target Telegram chats instead
// of the WhatsApp gateway. Recipients are numeric chat ids.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"wasend/internal/kit"
	"wasend/pkg/logx"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Messenger struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot

	// unread buffers incoming texts between FetchUnread calls.
	unread chan kit.InboundMessage
	// dropped counts messages lost because the buffer was full; logged
	// on Close instead of per message.
	dropped atomic.Uint64

	pollOnce sync.Once
	stopOnce sync.Once
}

func New(cfg Config, log logx.Logger) (*Messenger, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		// The campaign core drives sends itself; synchronous handlers keep
		// inbound ordering stable.
		Synchronous: true,
	})
	if err != nil {
		return nil, err
	}
	return &Messenger{
		cfg:    cfg,
		log:    log,
		bot:    b,
		unread: make(chan kit.InboundMessage, 256),
	}, nil
}

// Ping verifies the bot token against the Telegram API.
func (m *Messenger) Ping(ctx context.Context) error {
	_ = ctx // telebot's Raw has no context hook; bounded by its HTTP client
	_, err := m.bot.Raw("getMe", nil)
	return err
}

// OpenChat validates that the recipient is a numeric Telegram chat id.
// There is no per-chat session to establish, so the handle is the id.
func (m *Messenger) OpenChat(ctx context.Context, recipient string) (kit.ChatHandle, error) {
	_ = ctx
	r := strings.TrimSpace(recipient)
	r = strings.TrimPrefix(r, "+")
	if _, err := strconv.ParseInt(r, 10, 64); err != nil {
		return kit.ChatHandle{}, fmt.Errorf("telegram recipient %q is not a chat id", recipient)
	}
	return kit.ChatHandle{ID: r}, nil
}

func (m *Messenger) SendText(ctx context.Context, to kit.ChatHandle, text string) error {
	_ = ctx
	id, err := strconv.ParseInt(to.ID, 10, 64)
	if err != nil {
		return fmt.Errorf("bad chat handle %q: %w", to.ID, err)
	}
	_, err = m.bot.Send(&tele.Chat{ID: id}, text)
	return err
}

// FetchUnread drains the messages buffered since the previous call.
// The long-poller is started lazily on first use so send-only runs never
// open a getUpdates stream.
func (m *Messenger) FetchUnread(ctx context.Context) ([]kit.InboundMessage, error) {
	m.pollOnce.Do(m.startPolling)

	var out []kit.InboundMessage
	for {
		select {
		case <-ctx.Done():
			return out, ctx.Err()
		case msg := <-m.unread:
			out = append(out, msg)
		default:
			return out, nil
		}
	}
}

func (m *Messenger) startPolling() {
	m.bot.Handle(tele.OnText, func(c tele.Context) error {
		msg := c.Message()
		if msg == nil || msg.Sender == nil {
			return nil
		}
		in := kit.InboundMessage{
			ID:       strconv.FormatInt(msg.Chat.ID, 10) + ":" + strconv.Itoa(msg.ID),
			SenderID: strconv.FormatInt(msg.Chat.ID, 10),
			Text:     msg.Text,
			At:       msg.Time(),
		}
		select {
		case m.unread <- in:
		default:
			m.dropped.Add(1)
		}
		return nil
	})
	go func() {
		m.log.Info("telegram polling started")
		m.bot.Start() // blocks until Stop
	}()
}

func (m *Messenger) Close(ctx context.Context) error {
	_ = ctx
	m.stopOnce.Do(func() {
		if n := m.dropped.Load(); n > 0 {
			m.log.Warn("inbound messages dropped (buffer full)", logx.Int64("count", int64(n)))
		}
		// Stop is a no-op if polling never started.
		go m.bot.Stop()
	})
	return nil
}
