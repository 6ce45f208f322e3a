// Package monitor polls the messaging session for unread messages and
// auto-replies to the ones matching configured keywords, exactly once per
// message.
package monitor

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"wasend/internal/eventbus"
	"wasend/internal/kit"
	"wasend/internal/storage"
	"wasend/pkg/logx"
)

// Config tunes the polling loop.
type Config struct {
	Interval time.Duration
	// Keywords must be lowercase; matching is case-insensitive substring.
	Keywords  []string
	AutoReply string
	// ReplyRatePerSec caps auto-reply sends within a poll cycle.
	ReplyRatePerSec int
}

// Event types published on the bus.
const (
	EventReply     = "monitor.reply"
	EventPollError = "monitor.poll_error"
)

// ReplyEvent is the Data payload of an EventReply event.
type ReplyEvent struct {
	MessageID string
	SenderID  string
	Keyword   string
	Err       string
}

// PollErrorEvent is the Data payload of an EventPollError event.
type PollErrorEvent struct {
	Err string
}

// Service owns the handled-message set: once a message id is recorded,
// no second auto-reply is ever sent for it, across any number of poll
// cycles (and across restarts when a store is configured).
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	m     kit.Messenger
	bus   eventbus.Bus
	store storage.Store
	log   logx.Logger

	handled map[string]struct{}
}

func New(cfg Config, m kit.Messenger, bus eventbus.Bus, store storage.Store, log logx.Logger) *Service {
	s := &Service{
		m:       m,
		bus:     bus,
		store:   store,
		log:     log,
		handled: map[string]struct{}{},
	}
	s.applyLocked(cfg)
	return s
}

// Apply updates interval, keywords and reply text. Takes effect from the
// next poll cycle.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	rps := cfg.ReplyRatePerSec
	if rps <= 0 {
		rps = 1
	}
	s.cfg = cfg
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
}

func (s *Service) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// Run polls until ctx is cancelled. Cancellation is observed at poll
// boundaries, never mid-send. Poll failures are reported and retried on
// the next cycle; Run itself only returns on cancellation.
func (s *Service) Run(ctx context.Context) error {
	cfg, _ := s.snapshot()
	s.log.Info("reply monitor started",
		logx.Duration("interval", cfg.Interval),
		logx.Int("keywords", len(cfg.Keywords)))

	for {
		s.pollOnce(ctx)

		cfg, _ = s.snapshot()
		t := time.NewTimer(cfg.Interval)
		select {
		case <-ctx.Done():
			t.Stop()
			s.log.Info("reply monitor stopped")
			return nil
		case <-t.C:
		}
	}
}

func (s *Service) pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, lim := s.snapshot()

	msgs, err := s.m.FetchUnread(ctx)
	if err != nil {
		s.log.Warn("fetching unread failed", logx.Err(err))
		s.publish(EventPollError, PollErrorEvent{Err: err.Error()})
		return
	}

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return
		}
		if s.isHandled(ctx, msg.ID) {
			continue
		}
		kw, ok := matchKeyword(msg.Text, cfg.Keywords)
		if !ok {
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return
		}

		sendErr := s.m.SendText(ctx, kit.ChatHandle{ID: msg.SenderID}, cfg.AutoReply)
		// Mark handled regardless of the send outcome so an unreachable
		// sender cannot cause a retry storm.
		s.markHandled(ctx, msg.ID)

		ev := ReplyEvent{MessageID: msg.ID, SenderID: msg.SenderID, Keyword: kw}
		if sendErr != nil {
			ev.Err = sendErr.Error()
			s.log.Warn("auto-reply failed",
				logx.String("sender", msg.SenderID),
				logx.String("keyword", kw),
				logx.Err(sendErr))
		} else {
			s.log.Info("auto-reply sent",
				logx.String("sender", msg.SenderID),
				logx.String("keyword", kw))
		}
		s.publish(EventReply, ev)
	}
}

// matchKeyword reports the first keyword contained in text,
// case-insensitively.
func matchKeyword(text string, keywords []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if kw != "" && strings.Contains(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

func (s *Service) isHandled(ctx context.Context, id string) bool {
	s.mu.Lock()
	_, ok := s.handled[id]
	s.mu.Unlock()
	if ok {
		return true
	}
	if s.store != nil {
		was, err := s.store.WasHandled(ctx, id)
		if err != nil {
			s.log.Warn("handled lookup failed", logx.String("id", id), logx.Err(err))
			return false
		}
		return was
	}
	return false
}

func (s *Service) markHandled(ctx context.Context, id string) {
	s.mu.Lock()
	s.handled[id] = struct{}{}
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.PutHandled(ctx, id, time.Now()); err != nil {
			s.log.Warn("handled entry not persisted", logx.String("id", id), logx.Err(err))
		}
	}
}

func (s *Service) publish(typ string, data any) {
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}
