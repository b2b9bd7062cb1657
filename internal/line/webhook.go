// Package line talks to the LINE Messaging API: inbound webhook verification
// and parsing, and outbound replies. Events and messages are modeled as
// closed tagged variants over the kinds this bot actually handles.
package line

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidSignature is returned when the webhook signature does not match
// the channel secret.
var ErrInvalidSignature = errors.New("line: invalid webhook signature")

// SignatureHeader is the HTTP header carrying the webhook signature.
const SignatureHeader = "X-Line-Signature"

// Event kinds and message kinds the bot distinguishes. Anything else is
// EventOther / MessageOther and gets ignored upstream.
const (
	EventMessage = "message"
	EventOther   = "other"

	MessageText  = "text"
	MessageOther = "other"
)

// Event is one webhook event. WebhookEventID uniquely identifies the
// delivery and doubles as the workflow idempotency key; ReplyToken permits
// exactly one reply to this event.
type Event struct {
	Type           string
	WebhookEventID string
	ReplyToken     string
	Redelivery     bool
	Message        *MessageContent
}

// MessageContent is the inbound message attached to a message event.
type MessageContent struct {
	Type       string
	ID         string
	Text       string
	QuoteToken string
}

// IsTextMessage reports whether the event is a message event carrying text,
// the only kind this bot processes.
func (e Event) IsTextMessage() bool {
	return e.Type == EventMessage && e.Message != nil && e.Message.Type == MessageText
}

type webhookBody struct {
	Destination string         `json:"destination"`
	Events      []webhookEvent `json:"events"`
}

type webhookEvent struct {
	Type            string          `json:"type"`
	WebhookEventID  string          `json:"webhookEventId"`
	ReplyToken      string          `json:"replyToken"`
	DeliveryContext deliveryContext `json:"deliveryContext"`
	Message         *webhookMessage `json:"message"`
}

type deliveryContext struct {
	IsRedelivery bool `json:"isRedelivery"`
}

type webhookMessage struct {
	Type       string `json:"type"`
	ID         string `json:"id"`
	Text       string `json:"text"`
	QuoteToken string `json:"quoteToken"`
}

// ParseWebhook verifies the signature against the channel secret and parses
// the body into events. It returns ErrInvalidSignature before looking at the
// payload, so an unauthenticated request can never produce events.
func ParseWebhook(body []byte, signature, channelSecret string) ([]Event, error) {
	if !VerifySignature(body, signature, channelSecret) {
		return nil, ErrInvalidSignature
	}

	var parsed webhookBody
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("line: parse webhook body: %w", err)
	}

	events := make([]Event, 0, len(parsed.Events))
	for _, we := range parsed.Events {
		ev := Event{
			WebhookEventID: we.WebhookEventID,
			ReplyToken:     we.ReplyToken,
			Redelivery:     we.DeliveryContext.IsRedelivery,
		}
		switch we.Type {
		case EventMessage:
			ev.Type = EventMessage
			if we.Message != nil {
				mc := MessageContent{
					ID:         we.Message.ID,
					Text:       we.Message.Text,
					QuoteToken: we.Message.QuoteToken,
				}
				switch we.Message.Type {
				case MessageText:
					mc.Type = MessageText
				default:
					mc.Type = MessageOther
				}
				ev.Message = &mc
			}
		default:
			ev.Type = EventOther
		}
		events = append(events, ev)
	}
	return events, nil
}

// VerifySignature checks the X-Line-Signature value: the base64-encoded
// HMAC-SHA256 of the raw body keyed by the channel secret.
func VerifySignature(body []byte, signature, channelSecret string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}
