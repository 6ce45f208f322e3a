// Package report renders dispatch and monitor events for the operator.
package report

import (
	"context"
	"fmt"
	"io"
	"os"

	"wasend/internal/dispatch"
	"wasend/internal/eventbus"
	"wasend/internal/monitor"
	"wasend/pkg/logx"
)

type Config struct {
	// Bell rings the terminal bell after each dispatch outcome, as an
	// audible cue during long unattended runs.
	Bell bool
}

// Console consumes the event bus and logs a human-facing line per event.
type Console struct {
	cfg  Config
	bus  eventbus.Bus
	log  logx.Logger
	bell io.Writer
}

func New(cfg Config, bus eventbus.Bus, log logx.Logger) *Console {
	return &Console{cfg: cfg, bus: bus, log: log, bell: os.Stdout}
}

// Run consumes events until ctx is done. Events arriving while the
// reporter is busy may be dropped by the bus; reporting is best-effort
// feedback, never backpressure on the dispatch engine.
func (c *Console) Run(ctx context.Context) error {
	ch, unsub := c.bus.Subscribe(64)
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			c.render(ev)
		}
	}
}

func (c *Console) render(ev eventbus.Event) {
	switch ev.Type {
	case dispatch.EventResult:
		d, ok := ev.Data.(dispatch.ResultEvent)
		if !ok {
			return
		}
		switch d.Status {
		case dispatch.StatusSent:
			c.log.Info("message sent",
				logx.String("name", d.Name),
				logx.String("phone", d.Phone),
				logx.Int("attempts", d.Attempts))
		case dispatch.StatusFailed:
			c.log.Error("message failed",
				logx.String("name", d.Name),
				logx.String("phone", d.Phone),
				logx.Int("attempts", d.Attempts),
				logx.String("err", d.Err))
		}
		c.ring()

	case dispatch.EventSkip:
		d, ok := ev.Data.(dispatch.SkipEvent)
		if !ok {
			return
		}
		c.log.Warn("row skipped",
			logx.Int("row", d.Row),
			logx.String("phone", d.Phone),
			logx.String("reason", d.Reason))

	case monitor.EventReply:
		d, ok := ev.Data.(monitor.ReplyEvent)
		if !ok {
			return
		}
		if d.Err != "" {
			c.log.Warn("auto-reply not delivered",
				logx.String("sender", d.SenderID),
				logx.String("keyword", d.Keyword),
				logx.String("err", d.Err))
		} else {
			c.log.Info("auto-reply delivered",
				logx.String("sender", d.SenderID),
				logx.String("keyword", d.Keyword))
		}

	case monitor.EventPollError:
		d, ok := ev.Data.(monitor.PollErrorEvent)
		if !ok {
			return
		}
		c.log.Warn("poll cycle failed", logx.String("err", d.Err))
	}
}

func (c *Console) ring() {
	if c.cfg.Bell && c.bell != nil {
		fmt.Fprint(c.bell, "\a")
	}
}
