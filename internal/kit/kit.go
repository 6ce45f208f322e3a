// Package kit holds the small shared types exchanged between the campaign
// core and messaging backends.
package kit

import (
	"context"
	"time"
)

// ChatHandle identifies an open conversation on the messaging platform.
// Its ID is backend-specific (a phone-derived chat id for the WhatsApp
// gateway, a numeric chat id for Telegram).
type ChatHandle struct {
	ID string
}

// InboundMessage is one unread message returned by FetchUnread.
type InboundMessage struct {
	ID       string
	SenderID string
	Text     string
	At       time.Time
}

// Messenger is the single authenticated messaging session the campaign
// drives. It is a stateful, exclusive resource: callers must never invoke
// two operations concurrently. All calls block with a backend-defined
// timeout; a timeout surfaces as an ordinary error, not a crash.
type Messenger interface {
	// Ping verifies the backend is reachable. Used as a startup preflight.
	Ping(ctx context.Context) error

	// OpenChat resolves a recipient to a sendable chat.
	OpenChat(ctx context.Context, recipient string) (ChatHandle, error)

	// SendText delivers text to an open chat.
	SendText(ctx context.Context, to ChatHandle, text string) error

	// FetchUnread returns the currently unread messages. Whether a message
	// stays unread after being fetched is a backend contract.
	FetchUnread(ctx context.Context) ([]InboundMessage, error)

	Close(ctx context.Context) error
}
