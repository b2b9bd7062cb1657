package workflow

import (
	"strings"

	"go.temporal.io/sdk/workflow"

	"homebot/internal/activity"
)

// The keyword strategy answers a small fixed set of literal triggers with
// canned sound-board replies and stays silent otherwise. No model involved.

const pinguKeyword = "pingu"

const pinguMenuText = "想聽哪一個？"

type soundClip struct {
	File       string
	DurationMS int
}

// soundNames lists the clips in menu order; soundClips maps each name to its
// file under the sound base URL.
var soundNames = []string{"叫", "驚訝", "生氣", "天婦羅", "甜甜圈", "雞排"}

var soundClips = map[string]soundClip{
	"叫":   {File: "noot.m4a", DurationMS: 1200},
	"驚訝":  {File: "surprised.m4a", DurationMS: 1500},
	"生氣":  {File: "angry.m4a", DurationMS: 1800},
	"天婦羅": {File: "tempura.m4a", DurationMS: 2100},
	"甜甜圈": {File: "donut.m4a", DurationMS: 1600},
	"雞排":  {File: "chicken_cutlet.m4a", DurationMS: 1900},
}

// normalizeKeyword folds input into its trigger form: trimmed, lowercased,
// all spaces removed.
func normalizeKeyword(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "")
}

func (c *Conversation) runKeyword(ctx workflow.Context, p Params) (bool, error) {
	logger := workflow.GetLogger(ctx)
	input := normalizeKeyword(p.Message)

	if input == pinguKeyword {
		err := workflow.ExecuteActivity(replyCtx(ctx), activity.TypeReplyQuickReply, activity.ReplyQuickReplyParams{
			ReplyToken: p.ReplyToken,
			QuoteToken: p.QuoteToken,
			Text:       pinguMenuText,
			Choices:    soundNames,
		}).Get(ctx, nil)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	if clip, ok := soundClips[input]; ok {
		err := workflow.ExecuteActivity(replyCtx(ctx), activity.TypeReplyAudio, activity.ReplyAudioParams{
			ReplyToken: p.ReplyToken,
			ContentURL: strings.TrimRight(c.SoundBaseURL, "/") + "/" + clip.File,
			DurationMS: clip.DurationMS,
		}).Get(ctx, nil)
		if err != nil {
			return false, err
		}
		return true, nil
	}

	logger.Debug("no keyword match, staying silent")
	return false, nil
}
