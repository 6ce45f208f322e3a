// Package wagateway implements the Messenger capability against a
// WhatsApp Web bridge gateway over HTTP. The gateway owns the browser
// session and QR login; this client only drives its REST API.
package wagateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"wasend/internal/kit"
	"wasend/pkg/logx"
)

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("gateway base url is empty")
	}
	cfg.BaseURL = base
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}, nil
}

// Ping checks gateway health; used as the startup connectivity preflight.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) OpenChat(ctx context.Context, recipient string) (kit.ChatHandle, error) {
	req := struct {
		Phone string `json:"phone"`
	}{Phone: recipient}
	var resp struct {
		ChatID string `json:"chat_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/chats", req, &resp); err != nil {
		return kit.ChatHandle{}, fmt.Errorf("open chat %s: %w", recipient, err)
	}
	if resp.ChatID == "" {
		return kit.ChatHandle{}, fmt.Errorf("open chat %s: gateway returned no chat id", recipient)
	}
	return kit.ChatHandle{ID: resp.ChatID}, nil
}

func (c *Client) SendText(ctx context.Context, to kit.ChatHandle, text string) error {
	req := struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	}{ChatID: to.ID, Text: text}
	if err := c.do(ctx, http.MethodPost, "/messages", req, nil); err != nil {
		return fmt.Errorf("send to %s: %w", to.ID, err)
	}
	return nil
}

func (c *Client) FetchUnread(ctx context.Context) ([]kit.InboundMessage, error) {
	var resp struct {
		Messages []struct {
			ID        string `json:"id"`
			SenderID  string `json:"sender_id"`
			Text      string `json:"text"`
			Timestamp string `json:"timestamp"`
		} `json:"messages"`
	}
	if err := c.do(ctx, http.MethodGet, "/messages/unread", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch unread: %w", err)
	}
	out := make([]kit.InboundMessage, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		at, err := time.Parse(time.RFC3339, m.Timestamp)
		if err != nil {
			at = time.Time{}
		}
		out = append(out, kit.InboundMessage{ID: m.ID, SenderID: m.SenderID, Text: m.Text, At: at})
	}
	return out, nil
}

// Close is a no-op: the browser session belongs to the gateway process.
func (c *Client) Close(ctx context.Context) error { return nil }

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body *bytes.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := strings.TrimSpace(c.cfg.Token); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var ge struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&ge)
		if ge.Error != "" {
			return fmt.Errorf("gateway: %s (http=%d)", ge.Error, resp.StatusCode)
		}
		return fmt.Errorf("gateway: http=%d", resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding gateway response: %w", err)
		}
	}
	return nil
}
