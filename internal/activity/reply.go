// Package activity holds the Temporal activities behind the conversation
// workflow: message replies, device commands, and model calls. Activities own
// all network IO; the workflow body stays deterministic.
package activity

import (
	"context"
	"errors"
	"log/slog"

	"go.temporal.io/sdk/temporal"

	"homebot/internal/line"
)

// LineAPIErrorType is the application-error type raised when the Messaging
// API rejects a call outright, e.g. a consumed reply token. Workflows list it
// as non-retryable: the same request can never succeed.
const LineAPIErrorType = "LineAPIError"

// Replier sends reply messages against a reply token.
type Replier interface {
	ReplyMessage(ctx context.Context, req line.ReplyMessageRequest) error
}

// ReplyActivities delivers outbound messages through the Messaging API.
type ReplyActivities struct {
	client Replier
	logger *slog.Logger
}

func NewReplyActivities(client Replier, logger *slog.Logger) *ReplyActivities {
	return &ReplyActivities{client: client, logger: logger}
}

type ReplyTextParams struct {
	ReplyToken string `json:"reply_token"`
	QuoteToken string `json:"quote_token,omitempty"`
	Text       string `json:"text"`
}

// ReplyText sends a plain text reply, quoting the original message when a
// quote token is present.
func (a *ReplyActivities) ReplyText(ctx context.Context, p ReplyTextParams) error {
	return a.send(ctx, p.ReplyToken, line.NewTextMessage(p.QuoteToken, p.Text))
}

type ReplyQuickReplyParams struct {
	ReplyToken string   `json:"reply_token"`
	QuoteToken string   `json:"quote_token,omitempty"`
	Text       string   `json:"text"`
	Choices    []string `json:"choices"`
}

// ReplyQuickReply sends a text reply with one quick-reply button per choice.
func (a *ReplyActivities) ReplyQuickReply(ctx context.Context, p ReplyQuickReplyParams) error {
	return a.send(ctx, p.ReplyToken, line.NewQuickReplyMessage(p.QuoteToken, p.Text, p.Choices))
}

type ReplyAudioParams struct {
	ReplyToken string `json:"reply_token"`
	ContentURL string `json:"content_url"`
	DurationMS int    `json:"duration_ms"`
}

// ReplyAudio sends an audio clip reply.
func (a *ReplyActivities) ReplyAudio(ctx context.Context, p ReplyAudioParams) error {
	return a.send(ctx, p.ReplyToken, line.NewAudioMessage(p.ContentURL, p.DurationMS))
}

func (a *ReplyActivities) send(ctx context.Context, replyToken string, msg line.Message) error {
	err := a.client.ReplyMessage(ctx, line.ReplyMessageRequest{
		ReplyToken: replyToken,
		Messages:   []line.Message{msg},
	})
	var apiErr *line.APIError
	if errors.As(err, &apiErr) {
		a.logger.Error("line rejected reply", "status", apiErr.Status, "detail", apiErr.Detail)
		return temporal.NewNonRetryableApplicationError(apiErr.Error(), LineAPIErrorType, apiErr)
	}
	return err
}
