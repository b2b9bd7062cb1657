package workflow

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdkactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"homebot/internal/activity"
	"homebot/internal/config"
	"homebot/internal/device"
	"homebot/internal/llm"
)

func newTestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	logger := slog.New(slog.DiscardHandler)
	replies := activity.NewReplyActivities(nil, logger)
	devices := activity.NewDeviceActivities(nil, nil, logger)
	models := activity.NewModelActivities(nil, logger)

	env.RegisterActivityWithOptions(replies.ReplyText, sdkactivity.RegisterOptions{Name: activity.TypeReplyText})
	env.RegisterActivityWithOptions(replies.ReplyQuickReply, sdkactivity.RegisterOptions{Name: activity.TypeReplyQuickReply})
	env.RegisterActivityWithOptions(replies.ReplyAudio, sdkactivity.RegisterOptions{Name: activity.TypeReplyAudio})
	env.RegisterActivityWithOptions(devices.ControlAirConditioner, sdkactivity.RegisterOptions{Name: activity.TypeControlAirConditioner})
	env.RegisterActivityWithOptions(models.InvokeModel, sdkactivity.RegisterOptions{Name: activity.TypeInvokeModel})
	env.RegisterActivityWithOptions(models.ClassifyRequest, sdkactivity.RegisterOptions{Name: activity.TypeClassifyRequest})
	return env
}

func agentConversation() *Conversation {
	return &Conversation{
		Strategy:     config.StrategyAgent,
		Instructions: "You control the home.",
	}
}

func TestGuardrailUnrelatedSendsCannedReply(t *testing.T) {
	conv := agentConversation()
	env := newTestEnv(t)

	env.OnActivity(activity.TypeClassifyRequest, mock.Anything, "買一張機票").
		Return(activity.GuardrailVerdict{IsRelated: false, IsSupported: true, Reason: "travel booking"}, nil)
	env.OnActivity(activity.TypeReplyText, mock.Anything, mock.MatchedBy(func(p activity.ReplyTextParams) bool {
		return p.Text == RejectUnrelatedText && p.ReplyToken == "tok"
	})).Return(nil)

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", Message: "買一張機票"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var handled bool
	require.NoError(t, env.GetWorkflowResult(&handled))
	require.False(t, handled)
	env.AssertExpectations(t)
}

func TestGuardrailUnsupportedSendsCannedReply(t *testing.T) {
	conv := agentConversation()
	env := newTestEnv(t)

	env.OnActivity(activity.TypeClassifyRequest, mock.Anything, mock.Anything).
		Return(activity.GuardrailVerdict{IsRelated: true, IsSupported: false, Reason: "no dimmer"}, nil)
	env.OnActivity(activity.TypeReplyText, mock.Anything, mock.MatchedBy(func(p activity.ReplyTextParams) bool {
		return p.Text == RejectUnsupportedText
	})).Return(nil)

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", Message: "把燈調暗"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var handled bool
	require.NoError(t, env.GetWorkflowResult(&handled))
	require.False(t, handled)
	env.AssertExpectations(t)
}

func TestAgentRunsToolThenRepliesVerbatim(t *testing.T) {
	conv := agentConversation()
	env := newTestEnv(t)

	env.OnActivity(activity.TypeClassifyRequest, mock.Anything, mock.Anything).
		Return(activity.GuardrailVerdict{IsRelated: true, IsSupported: true}, nil)

	toolCall := llm.ToolCall{
		ID:        "call_1",
		Name:      "control_air_conditioner",
		Arguments: map[string]any{"power_on": true, "temperature": float64(26)},
	}
	env.OnActivity(activity.TypeInvokeModel, mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		return len(req.Tools) == 1 && req.Tools[0].Name == "control_air_conditioner"
	})).Return(&llm.ChatResponse{ToolCalls: []llm.ToolCall{toolCall}, FinishReason: "tool_calls"}, nil).Once()

	env.OnActivity(activity.TypeControlAirConditioner, mock.Anything, device.Command{PowerOn: true, Temperature: 26}).
		Return("air conditioner turned on, cooling to 26 degrees", nil).Once()

	env.OnActivity(activity.TypeInvokeModel, mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		last := req.Messages[len(req.Messages)-1]
		return last.Role == "tool" && last.ToolCallID == "call_1"
	})).Return(&llm.ChatResponse{Content: "冷氣開好了，26 度", FinishReason: "stop"}, nil).Once()

	env.OnActivity(activity.TypeReplyText, mock.Anything, mock.MatchedBy(func(p activity.ReplyTextParams) bool {
		return p.Text == "冷氣開好了，26 度" && p.QuoteToken == "quote" && p.ReplyToken == "tok"
	})).Return(nil)

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", QuoteToken: "quote", Message: "開冷氣"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var handled bool
	require.NoError(t, env.GetWorkflowResult(&handled))
	require.True(t, handled)
	env.AssertExpectations(t)
}

func TestNonRetryableReplyErrorNotRetried(t *testing.T) {
	conv := agentConversation()
	env := newTestEnv(t)

	env.OnActivity(activity.TypeClassifyRequest, mock.Anything, mock.Anything).
		Return(activity.GuardrailVerdict{IsRelated: true, IsSupported: true}, nil)
	env.OnActivity(activity.TypeInvokeModel, mock.Anything, mock.Anything).
		Return(&llm.ChatResponse{Content: "好的", FinishReason: "stop"}, nil)

	attempts := 0
	env.OnActivity(activity.TypeReplyText, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { attempts++ }).
		Return(temporal.NewNonRetryableApplicationError("line api 400: Invalid reply token", activity.LineAPIErrorType, nil))

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "dead", Message: "開冷氣"})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	var appErr *temporal.ApplicationError
	require.True(t, errors.As(env.GetWorkflowError(), &appErr))
	require.Equal(t, activity.LineAPIErrorType, appErr.Type())
	require.Equal(t, 1, attempts, "non-retryable reply must not be attempted again")
}

func TestTransientReplyErrorRetried(t *testing.T) {
	conv := agentConversation()
	env := newTestEnv(t)

	env.OnActivity(activity.TypeClassifyRequest, mock.Anything, mock.Anything).
		Return(activity.GuardrailVerdict{IsRelated: true, IsSupported: true}, nil)
	env.OnActivity(activity.TypeInvokeModel, mock.Anything, mock.Anything).
		Return(&llm.ChatResponse{Content: "好的", FinishReason: "stop"}, nil)

	attempts := 0
	env.OnActivity(activity.TypeReplyText, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { attempts++ }).
		Return(errors.New("connection reset"))

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", Message: "開冷氣"})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	require.Equal(t, 3, attempts, "transient reply errors retry up to the attempt cap")
}

func TestKeywordPinguQuickReply(t *testing.T) {
	conv := &Conversation{Strategy: config.StrategyKeyword, SoundBaseURL: "https://sounds.example.com"}
	env := newTestEnv(t)

	want := []string{"叫", "驚訝", "生氣", "天婦羅", "甜甜圈", "雞排"}
	env.OnActivity(activity.TypeReplyQuickReply, mock.Anything, mock.MatchedBy(func(p activity.ReplyQuickReplyParams) bool {
		if len(p.Choices) != len(want) {
			return false
		}
		for i := range want {
			if p.Choices[i] != want[i] {
				return false
			}
		}
		return true
	})).Return(nil)

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", Message: "  PINGU "})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var handled bool
	require.NoError(t, env.GetWorkflowResult(&handled))
	require.True(t, handled)
	env.AssertExpectations(t)
}

func TestKeywordSoundNameRepliesAudio(t *testing.T) {
	conv := &Conversation{Strategy: config.StrategyKeyword, SoundBaseURL: "https://sounds.example.com/"}
	env := newTestEnv(t)

	env.OnActivity(activity.TypeReplyAudio, mock.Anything, mock.MatchedBy(func(p activity.ReplyAudioParams) bool {
		return p.ContentURL == "https://sounds.example.com/chicken_cutlet.m4a" && p.DurationMS > 0
	})).Return(nil)

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", Message: "雞排"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var handled bool
	require.NoError(t, env.GetWorkflowResult(&handled))
	require.True(t, handled)
	env.AssertExpectations(t)
}

func TestKeywordNoMatchStaysSilent(t *testing.T) {
	conv := &Conversation{Strategy: config.StrategyKeyword}
	env := newTestEnv(t)

	env.ExecuteWorkflow(conv.HandleTextMessage, Params{ReplyToken: "tok", Message: "hello there"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	var handled bool
	require.NoError(t, env.GetWorkflowResult(&handled))
	require.False(t, handled)
}

func TestNormalizeKeyword(t *testing.T) {
	cases := []struct{ in, want string }{
		{"  Pingu ", "pingu"},
		{"PIN GU", "pingu"},
		{"雞 排", "雞排"},
		{"天婦羅", "天婦羅"},
	}
	for _, tc := range cases {
		if got := normalizeKeyword(tc.in); got != tc.want {
			t.Errorf("normalizeKeyword(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
