package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/octobot-dev/octobot/internal/config"
)

// chatPayload is the chat collaborator's incoming-webhook JSON schema: a
// Slack-compatible {channel, text, attachments[{color,text}]} body.
type chatPayload struct {
	Channel     string       `json:"channel,omitempty"`
	Text        string       `json:"text"`
	Attachments []attachment `json:"attachments,omitempty"`
}

type attachment struct {
	Color string `json:"color,omitempty"`
	Text  string `json:"text"`
}

// Color constants used by the event notification rules.
const (
	ColorNone    = ""
	ColorGood    = "good"
	ColorDanger  = "danger"
	ColorWarning = "warning"
)

// sender posts chat messages to the collaborator's incoming-webhook
// endpoint.
type sender struct {
	cfg    config.ChatConfig
	client *http.Client
}

func newSender(cfg config.ChatConfig) *sender {
	return &sender{cfg: cfg, client: &http.Client{Timeout: 30 * time.Second}}
}

// sendChannel posts message to the repo's configured channel.
func (s *sender) sendChannel(ctx context.Context, channel, message, color string) error {
	return s.post(ctx, s.cfg.WebhookURL, chatPayload{
		Channel:     channel,
		Text:        message,
		Attachments: attachmentsFor(message, color),
	})
}

// sendDirect posts message as a direct chat to handle. When
// DirectMessageURLTemplate is configured, the message goes to the per-user
// endpoint it derives; otherwise it's posted to the shared webhook with the
// handle named as the channel target, matching a bot-style DM convention.
func (s *sender) sendDirect(ctx context.Context, handle, message, color string) error {
	url := s.cfg.WebhookURL
	channel := "@" + handle
	if s.cfg.DirectMessageURLTemplate != "" {
		url = fmt.Sprintf(s.cfg.DirectMessageURLTemplate, handle)
		channel = ""
	}
	return s.post(ctx, url, chatPayload{
		Channel:     channel,
		Text:        message,
		Attachments: attachmentsFor(message, color),
	})
}

func attachmentsFor(message, color string) []attachment {
	if color == "" {
		return nil
	}
	return []attachment{{Color: color, Text: message}}
}

func (s *sender) post(ctx context.Context, url string, payload chatPayload) error {
	if url == "" {
		return fmt.Errorf("no chat webhook url configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req) // #nosec G107 -- url is operator-configured chat webhook endpoint
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("chat webhook returned %d", resp.StatusCode)
	}
	return nil
}
