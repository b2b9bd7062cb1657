package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"homebot/internal/llm"
)

// GuardrailVerdict classifies one user message before the agent runs. Either
// flag being false rejects the message.
type GuardrailVerdict struct {
	IsRelated   bool   `json:"is_related"`
	IsSupported bool   `json:"is_supported"`
	Reason      string `json:"reason"`
}

const guardrailInstructions = `You classify one user message for a smart-home assistant.
Reply with a JSON object with exactly these fields:
  "is_related": true if the message is about smart-home devices or home state, else false
  "is_supported": true if the request is something the assistant can do (control the air conditioner, answer about home sensors), else false
  "reason": one short sentence explaining the verdict
Output the JSON object only.`

// ModelActivities runs chat-model calls on behalf of the workflow.
type ModelActivities struct {
	provider llm.Provider
	logger   *slog.Logger
}

func NewModelActivities(provider llm.Provider, logger *slog.Logger) *ModelActivities {
	return &ModelActivities{provider: provider, logger: logger}
}

// InvokeModel runs one chat completion. The workflow drives the tool-call
// loop; this activity is a single stateless round trip.
func (a *ModelActivities) InvokeModel(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	resp, err := a.provider.Chat(ctx, req)
	if err != nil {
		return nil, err
	}
	a.logger.Debug("model call finished",
		"provider", a.provider.Name(),
		"finish_reason", resp.FinishReason,
		"tool_calls", len(resp.ToolCalls),
		"total_tokens", resp.Usage.TotalTokens)
	return resp, nil
}

// ClassifyRequest asks the model whether the message is in scope and decodes
// its JSON verdict.
func (a *ModelActivities) ClassifyRequest(ctx context.Context, message string) (GuardrailVerdict, error) {
	resp, err := a.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: guardrailInstructions},
			{Role: "user", Content: message},
		},
		JSONOnly: true,
	})
	if err != nil {
		return GuardrailVerdict{}, err
	}

	var verdict GuardrailVerdict
	content := strings.TrimSpace(resp.Content)
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return GuardrailVerdict{}, fmt.Errorf("decode guardrail verdict %q: %w", content, err)
	}
	return verdict, nil
}
