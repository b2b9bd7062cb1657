// Package workflow holds the durable conversation logic. The workflow body is
// deterministic; every network call goes through an activity.
package workflow

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"homebot/internal/activity"
	"homebot/internal/config"
	"homebot/internal/device"
	"homebot/internal/llm"
)

// Name is the registered workflow type.
const Name = "HandleTextMessage"

// Params describes one inbound text message to handle.
type Params struct {
	ReplyToken string `json:"reply_token"`
	QuoteToken string `json:"quote_token"`
	Message    string `json:"message"`
}

// Canned rejection replies sent when the guardrail turns a message away.
const (
	RejectUnrelatedText   = "抱歉，我只處理智慧家庭相關的請求。"
	RejectUnsupportedText = "抱歉，這個請求目前還不支援。"
)

const (
	replyTimeout = 5 * time.Second
	toolTimeout  = 5 * time.Second
	modelTimeout = 60 * time.Second

	// maxAgentTurns bounds the model/tool round trips for one message.
	maxAgentTurns = 5
)

// Conversation carries the per-process configuration the workflow needs:
// which strategy handles messages, the rendered agent instructions, and where
// sound clips live. One instance is registered on the worker.
type Conversation struct {
	Strategy     string
	Instructions string
	SoundBaseURL string
}

// HandleTextMessage handles one inbound text message and reports whether a
// substantive reply was produced.
func (c *Conversation) HandleTextMessage(ctx workflow.Context, p Params) (bool, error) {
	if c.Strategy == config.StrategyKeyword {
		return c.runKeyword(ctx, p)
	}
	return c.runAgent(ctx, p)
}

func (c *Conversation) runAgent(ctx workflow.Context, p Params) (bool, error) {
	logger := workflow.GetLogger(ctx)

	var verdict activity.GuardrailVerdict
	err := workflow.ExecuteActivity(modelCtx(ctx), activity.TypeClassifyRequest, p.Message).Get(ctx, &verdict)
	if err != nil {
		return false, err
	}

	if !verdict.IsRelated || !verdict.IsSupported {
		logger.Info("guardrail rejected message", "is_related", verdict.IsRelated,
			"is_supported", verdict.IsSupported, "reason", verdict.Reason)
		text := RejectUnsupportedText
		if !verdict.IsRelated {
			text = RejectUnrelatedText
		}
		err := workflow.ExecuteActivity(replyCtx(ctx), activity.TypeReplyText, activity.ReplyTextParams{
			ReplyToken: p.ReplyToken,
			Text:       text,
		}).Get(ctx, nil)
		if err != nil {
			return false, err
		}
		return false, nil
	}

	final, err := c.runAgentLoop(ctx, p.Message)
	if err != nil {
		return false, err
	}

	err = workflow.ExecuteActivity(replyCtx(ctx), activity.TypeReplyText, activity.ReplyTextParams{
		ReplyToken: p.ReplyToken,
		QuoteToken: p.QuoteToken,
		Text:       final,
	}).Get(ctx, nil)
	if err != nil {
		return false, err
	}
	return true, nil
}

// runAgentLoop drives the model until it stops asking for tools and returns
// its final text output.
func (c *Conversation) runAgentLoop(ctx workflow.Context, message string) (string, error) {
	logger := workflow.GetLogger(ctx)

	messages := []llm.Message{
		{Role: "system", Content: c.Instructions},
		{Role: "user", Content: message},
	}
	tools := []llm.ToolDefinition{airConditionerTool()}

	for turn := 0; turn < maxAgentTurns; turn++ {
		var resp llm.ChatResponse
		err := workflow.ExecuteActivity(modelCtx(ctx), activity.TypeInvokeModel, llm.ChatRequest{
			Messages: messages,
			Tools:    tools,
		}).Get(ctx, &resp)
		if err != nil {
			return "", err
		}

		if !resp.HasToolCalls() {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			logger.Info("agent tool call", "tool", call.Name, "turn", turn)
			result, err := c.runTool(ctx, call)
			if err != nil {
				return "", err
			}
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}
	return "", fmt.Errorf("agent did not finish within %d turns", maxAgentTurns)
}

func (c *Conversation) runTool(ctx workflow.Context, call llm.ToolCall) (string, error) {
	if call.Name != airConditionerToolName {
		return fmt.Sprintf("unknown tool %q", call.Name), nil
	}
	cmd, err := airConditionerCommand(call.Arguments)
	if err != nil {
		// Let the model correct its own malformed arguments.
		return err.Error(), nil
	}
	var result string
	if err := workflow.ExecuteActivity(toolCtx(ctx), activity.TypeControlAirConditioner, cmd).Get(ctx, &result); err != nil {
		return "", err
	}
	return result, nil
}

const airConditionerToolName = "control_air_conditioner"

func airConditionerTool() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        airConditionerToolName,
		Description: "Remote control the air conditioner: power it on or off and set the target temperature.",
		Parameters: llm.ToolParameters(map[string]llm.Param{
			"power_on":    {Type: "boolean", Description: "Power on or off the air conditioner."},
			"temperature": {Type: "integer", Description: "Target temperature in Celsius, between 16 and 32."},
		}, []string{"power_on", "temperature"}),
	}
}

func airConditionerCommand(args map[string]any) (device.Command, error) {
	powerOn, ok := args["power_on"].(bool)
	if !ok {
		return device.Command{}, fmt.Errorf("power_on must be a boolean")
	}
	temp, ok := args["temperature"].(float64)
	if !ok {
		return device.Command{}, fmt.Errorf("temperature must be a number")
	}
	return device.Command{PowerOn: powerOn, Temperature: int(temp)}, nil
}

func retryPolicy() *temporal.RetryPolicy {
	return &temporal.RetryPolicy{
		MaximumAttempts:        3,
		MaximumInterval:        5 * time.Second,
		NonRetryableErrorTypes: []string{activity.LineAPIErrorType},
	}
}

func replyCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: replyTimeout,
		RetryPolicy:         retryPolicy(),
	})
}

func toolCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: toolTimeout,
		RetryPolicy:         retryPolicy(),
	})
}

func modelCtx(ctx workflow.Context) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: modelTimeout,
		RetryPolicy:         retryPolicy(),
	})
}
