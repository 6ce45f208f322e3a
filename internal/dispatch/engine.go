// Package dispatch drives the per-contact send loop: randomized delay,
// open chat, send, bounded retry, outcome tracking.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"wasend/internal/contacts"
	"wasend/internal/eventbus"
	"wasend/internal/kit"
	"wasend/internal/storage"
	"wasend/pkg/logx"
)

// Source yields contacts in input order. Next returns io.EOF at the end
// and *contacts.RowError for rows that failed validation; any other error
// aborts the pass. contacts.Reader implements Source.
type Source interface {
	Next() (contacts.Contact, error)
}

// Engine consumes a contact source and drives the Messenger, one contact
// at a time. Failures are local to a contact: the engine always advances.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	m     kit.Messenger
	bus   eventbus.Bus
	store storage.Store
	log   logx.Logger

	rng *rand.Rand
	// sleep is swappable so tests can record delays instead of waiting.
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config, m kit.Messenger, bus eventbus.Bus, store storage.Store, log logx.Logger) *Engine {
	return &Engine{
		cfg:   cfg,
		m:     m,
		bus:   bus,
		store: store,
		log:   log,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep: sleepCtx,
	}
}

// Apply updates retry and delay bounds. Safe to call while Run is active;
// the new bounds take effect from the next attempt.
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg
	e.mu.Unlock()
}

func (e *Engine) snapshot() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Per-contact attempt states. Attempting loops back on itself until the
// attempt budget is exhausted.
type contactState int

const (
	statePending contactState = iota
	stateAttempting
	stateSent
	stateFailed
)

// Run processes the whole source. It returns the summary so far plus a
// context error if the operator interrupted the pass; any other error is
// a broken source. Interrupts are observed between attempts, never during
// an in-flight Messenger call.
func (e *Engine) Run(ctx context.Context, src Source) (Summary, error) {
	var sum Summary
	e.log.Info("dispatch pass started")

	for {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		c, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		var rowErr *contacts.RowError
		if errors.As(err, &rowErr) {
			sum.Skipped++
			e.log.Warn("contact row skipped",
				logx.Int("row", rowErr.Row),
				logx.String("phone", rowErr.Phone),
				logx.Err(rowErr.Reason))
			e.publish(EventSkip, SkipEvent{Row: rowErr.Row, Phone: rowErr.Phone, Reason: rowErr.Reason.Error()})
			if e.store != nil {
				entry := storage.ResultEntry{
					At:     time.Now(),
					Phone:  rowErr.Phone,
					Status: string(StatusSkipped),
					Error:  rowErr.Reason.Error(),
				}
				if err := e.store.AppendResult(ctx, entry); err != nil {
					e.log.Warn("skip not persisted", logx.Int("row", rowErr.Row), logx.Err(err))
				}
			}
			continue
		}
		if err != nil {
			return sum, fmt.Errorf("reading contacts: %w", err)
		}

		res, err := e.dispatchOne(ctx, c)
		if err != nil {
			return sum, err
		}
		sum.add(res)
		e.record(ctx, res)
	}

	e.log.Info("dispatch pass finished",
		logx.Int("sent", sum.Sent),
		logx.Int("failed", sum.Failed),
		logx.Int("skipped", sum.Skipped))
	return sum, nil
}

// dispatchOne runs the bounded attempt state machine for a single contact.
// The returned error is only ever a context error.
func (e *Engine) dispatchOne(ctx context.Context, c contacts.Contact) (Result, error) {
	start := time.Now()
	state := statePending
	attempts := 0
	var last error

	for {
		switch state {
		case statePending:
			state = stateAttempting

		case stateAttempting:
			cfg := e.snapshot()
			if err := e.pause(ctx, cfg); err != nil {
				return Result{}, err
			}
			attempts++
			if err := e.attempt(ctx, c); err != nil {
				last = err
				e.log.Warn("send attempt failed",
					logx.String("phone", c.Phone),
					logx.Int("attempt", attempts),
					logx.Err(err))
				if attempts >= cfg.RetryLimit+1 {
					state = stateFailed
				}
				continue
			}
			state = stateSent

		case stateSent:
			return Result{Contact: c, Status: StatusSent, Attempts: attempts, Took: time.Since(start)}, nil

		case stateFailed:
			return Result{Contact: c, Status: StatusFailed, Attempts: attempts, Err: last, Took: time.Since(start)}, nil
		}
	}
}

// attempt performs one open+send against the Messenger. Any failure,
// including a backend timeout, counts as one failed attempt.
func (e *Engine) attempt(ctx context.Context, c contacts.Contact) error {
	h, err := e.m.OpenChat(ctx, c.Phone)
	if err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	if err := e.m.SendText(ctx, h, c.Message); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// pause sleeps for a duration drawn uniformly from [MinDelay, MaxDelay].
func (e *Engine) pause(ctx context.Context, cfg Config) error {
	d := cfg.MinDelay
	if span := cfg.MaxDelay - cfg.MinDelay; span > 0 {
		e.mu.Lock()
		jitter := time.Duration(e.rng.Int63n(int64(span) + 1))
		e.mu.Unlock()
		d += jitter
	}
	return e.sleep(ctx, d)
}

func (e *Engine) record(ctx context.Context, r Result) {
	e.log.Debug("dispatch result",
		logx.String("phone", r.Contact.Phone),
		logx.String("status", string(r.Status)),
		logx.Int("attempts", r.Attempts),
		logx.Duration("took", r.Took))

	ev := ResultEvent{
		Name:     r.Contact.Name,
		Phone:    r.Contact.Phone,
		Status:   r.Status,
		Attempts: r.Attempts,
	}
	if r.Err != nil {
		ev.Err = r.Err.Error()
	}
	e.publish(EventResult, ev)

	if e.store != nil {
		entry := storage.ResultEntry{
			At:       time.Now(),
			Name:     r.Contact.Name,
			Phone:    r.Contact.Phone,
			Status:   string(r.Status),
			Attempts: r.Attempts,
			Error:    ev.Err,
			TookMS:   r.Took.Milliseconds(),
		}
		if err := e.store.AppendResult(ctx, entry); err != nil {
			e.log.Warn("result not persisted", logx.String("phone", r.Contact.Phone), logx.Err(err))
		}
	}
}

func (e *Engine) publish(typ string, data any) {
	if e.bus != nil {
		e.bus.Publish(eventbus.Event{Type: typ, Data: data})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
