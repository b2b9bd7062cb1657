package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultEndpoint    = "https://api.line.me"
	defaultHTTPTimeout = 10 * time.Second
)

// APIError is a terminal rejection from the Messaging API, e.g. an expired or
// already-consumed reply token. Callers must not retry it: the same request
// can never succeed.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line api %d: %s", e.Status, e.Detail)
}

// Client is the outbound Messaging API client. A single Client is shared by
// all concurrent activity invocations; the embedded http.Client is safe for
// concurrent use.
type Client struct {
	channelToken string
	endpoint     string
	client       *http.Client
	logger       *slog.Logger
}

type ClientConfig struct {
	ChannelToken string
	Endpoint     string // override for tests
	Logger       *slog.Logger
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Client{
		channelToken: cfg.ChannelToken,
		endpoint:     cfg.Endpoint,
		client:       &http.Client{Timeout: defaultHTTPTimeout},
		logger:       cfg.Logger,
	}
}

// Message is an outbound message: a text message (optionally quoting the
// original and carrying quick-reply buttons) or an audio clip. Construct via
// NewTextMessage, NewQuickReplyMessage, or NewAudioMessage.
type Message struct {
	Type               string      `json:"type"`
	Text               string      `json:"text,omitempty"`
	QuoteToken         string      `json:"quoteToken,omitempty"`
	QuickReply         *QuickReply `json:"quickReply,omitempty"`
	OriginalContentURL string      `json:"originalContentUrl,omitempty"`
	Duration           int         `json:"duration,omitempty"`
}

type QuickReply struct {
	Items []QuickReplyItem `json:"items"`
}

type QuickReplyItem struct {
	Type   string        `json:"type"`
	Action MessageAction `json:"action"`
}

type MessageAction struct {
	Type  string `json:"type"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

func NewTextMessage(quoteToken, text string) Message {
	return Message{Type: "text", QuoteToken: quoteToken, Text: text}
}

// NewQuickReplyMessage builds a text message with one quick-reply button per
// choice; each button's label and postback text are the choice itself.
func NewQuickReplyMessage(quoteToken, text string, choices []string) Message {
	items := make([]QuickReplyItem, 0, len(choices))
	for _, choice := range choices {
		items = append(items, QuickReplyItem{
			Type:   "action",
			Action: MessageAction{Type: "message", Label: choice, Text: choice},
		})
	}
	return Message{
		Type:       "text",
		QuoteToken: quoteToken,
		Text:       text,
		QuickReply: &QuickReply{Items: items},
	}
}

func NewAudioMessage(contentURL string, durationMS int) Message {
	return Message{Type: "audio", OriginalContentURL: contentURL, Duration: durationMS}
}

// ReplyMessageRequest delivers up to five messages against one reply token.
type ReplyMessageRequest struct {
	ReplyToken string    `json:"replyToken"`
	Messages   []Message `json:"messages"`
}

// ReplyMessage sends a reply. A reply token is consumed by the first
// successful call; reusing it yields an *APIError.
func (c *Client) ReplyMessage(ctx context.Context, req ReplyMessageRequest) error {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("line: marshal reply: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.endpoint+"/v2/bot/message/reply", bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("line: new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("line: reply request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Detail: string(detail)}
	}

	c.logger.Info("reply sent", "reply_token", req.ReplyToken, "messages", len(req.Messages))
	return nil
}
