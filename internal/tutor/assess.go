package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/pkg/completion"
	"github.com/mitchellh/mapstructure"
)

const (
	noTaskSentinel = "НЕТ ЗАДАЧИ"

	recognitionMaxTokens = 1024
)

// Verification is the grading of a final answer.
type Verification struct {
	Correct     bool     `mapstructure:"correct"`
	FinalAnswer string   `mapstructure:"final_answer"`
	Score       int      `mapstructure:"score"`
	Feedback    string   `mapstructure:"feedback"`
	Mistakes    []string `mapstructure:"mistakes"`
	Strengths   []string `mapstructure:"strengths"`

	Outcome errors.Outcome `mapstructure:"-"`
	// Err explains a degraded outcome.
	Err error `mapstructure:"-"`
}

// FallbackVerification is the neutral grade used when the answer could not
// be checked automatically.
func FallbackVerification(cause error) Verification {
	return Verification{
		Correct:     false,
		FinalAnswer: "н/д",
		Score:       50,
		Feedback:    "Пока не могу проверить решение автоматически. Попробуй самостоятельно оценить ответ или повтори попытку позже.",
		Mistakes:    []string{"Проверка выполнена в офлайн-режиме"},
		Strengths:   []string{},
		Outcome:     errors.OutcomeDegraded,
		Err:         cause,
	}
}

// ParseVerification decodes a grading reply. The JSON object may be wrapped
// in prose or code fences and loosely typed; the score is clamped to 0..100.
func ParseVerification(reply string) (Verification, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return Verification{}, errors.MalformedReply("verification", fmt.Errorf("no JSON object in reply"))
	}

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return Verification{}, errors.MalformedReply("verification", err)
	}

	v := Verification{
		FinalAnswer: "Не удалось определить",
		Feedback:    "Нет обратной связи",
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &v,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return Verification{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Verification{}, errors.MalformedReply("verification", err)
	}

	if v.Score < 0 {
		v.Score = 0
	}
	if v.Score > 100 {
		v.Score = 100
	}
	if v.Mistakes == nil {
		v.Mistakes = []string{}
	}
	if v.Strengths == nil {
		v.Strengths = []string{}
	}
	v.Outcome = errors.OutcomeOK
	return v, nil
}

// Verify grades answer against task. It never fails: any problem yields
// FallbackVerification with a degraded outcome.
func Verify(ctx context.Context, c completion.Completer, task, answer string) Verification {
	if !c.Available() {
		return FallbackVerification(errors.CompletionUnavailable())
	}

	reply, err := c.Complete(ctx, completion.Request{
		System: verificationSystem,
		Turns:  []completion.Turn{{Role: completion.RoleUser, Content: fmt.Sprintf(verificationPrompt, task, answer)}},
	})
	if err != nil {
		return FallbackVerification(err)
	}

	v, err := ParseVerification(reply)
	if err != nil {
		return FallbackVerification(err)
	}
	return v
}

// Recognition is the transcription of a photographed task.
type Recognition struct {
	Text    string
	Found   bool
	Outcome errors.Outcome
	Err     error
}

// Recognize transcribes a base64 JPEG. A reply containing the no-task
// sentinel, or any failure, yields Found == false.
func Recognize(ctx context.Context, c completion.Completer, model, imageBase64 string) Recognition {
	if !c.Available() {
		return Recognition{Outcome: errors.OutcomeDegraded, Err: errors.CompletionUnavailable()}
	}

	reply, err := c.Complete(ctx, completion.Request{
		Model:     model,
		MaxTokens: recognitionMaxTokens,
		Turns:     []completion.Turn{{Role: completion.RoleUser, Content: recognitionPrompt}},
		Images:    []completion.Image{{MediaType: "image/jpeg", Base64: imageBase64}},
	})
	if err != nil {
		return Recognition{Outcome: errors.OutcomeDegraded, Err: err}
	}

	text := strings.TrimSpace(reply)
	if text == "" || strings.Contains(strings.ToUpper(text), noTaskSentinel) {
		return Recognition{Outcome: errors.OutcomeOK}
	}
	return Recognition{Text: text, Found: true, Outcome: errors.OutcomeOK}
}

// Meme is a short congratulation for a graded task.
type Meme struct {
	Text    string
	Outcome errors.Outcome
	Err     error
}

// TaskKind describes a task for the meme prompt.
func TaskKind(task string) string {
	if len([]rune(task)) > 40 {
		return "текстовая задача"
	}
	return "быстрый пример"
}

// FallbackMeme returns the canned meme for a score band.
func FallbackMeme(score int) string {
	switch {
	case score >= 80:
		return "Gigachad момент! Математика сама решается, когда ты рядом."
	case score >= 60:
		return "W-победа! Еще пару шагов и станешь легендой алгебры."
	case score >= 40:
		return "Мы это засчитаем. Маленькие победы тоже считаются!"
	default:
		return "Это не провал, это монтаж тренировки. В следующий раз точно разнесешь!"
	}
}

// GenerateMeme writes a meme for score, falling back to FallbackMeme.
func GenerateMeme(ctx context.Context, c completion.Completer, score int, task, difficulty string) Meme {
	if !c.Available() {
		return Meme{Text: FallbackMeme(score), Outcome: errors.OutcomeDegraded, Err: errors.CompletionUnavailable()}
	}

	reply, err := c.Complete(ctx, completion.Request{
		System: memeSystem,
		Turns: []completion.Turn{{
			Role:    completion.RoleUser,
			Content: fmt.Sprintf(memePrompt, score, TaskKind(task), difficulty),
		}},
	})
	if err != nil {
		return Meme{Text: FallbackMeme(score), Outcome: errors.OutcomeDegraded, Err: err}
	}
	if reply == "" {
		return Meme{Text: FallbackMeme(score), Outcome: errors.OutcomeDegraded, Err: errors.MalformedReply("meme", fmt.Errorf("empty reply"))}
	}
	return Meme{Text: reply, Outcome: errors.OutcomeOK}
}

// TutorReply is the next Socratic turn.
type TutorReply struct {
	Text    string
	Outcome errors.Outcome
	Err     error
}

// Respond asks for the next tutoring turn over the session conversation and
// appends the reply, or the state's fallback, as an assistant turn.
func Respond(ctx context.Context, c completion.Completer, system string, s *Session) TutorReply {
	var r TutorReply
	if !c.Available() {
		r = TutorReply{Outcome: errors.OutcomeDegraded, Err: errors.CompletionUnavailable()}
	} else if text, err := c.Complete(ctx, completion.Request{System: system, Turns: s.Conversation}); err != nil {
		r = TutorReply{Outcome: errors.OutcomeDegraded, Err: err}
	} else {
		r = TutorReply{Text: text, Outcome: errors.OutcomeOK}
	}

	if r.Outcome != errors.OutcomeOK {
		r.Text = fallbackOther
		if s.State == StateSolving {
			r.Text = fallbackSolving
		}
	}
	s.AddTurn(completion.RoleAssistant, r.Text)
	return r
}
