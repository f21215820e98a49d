package telegram

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/internal/tutor"
	"github.com/grovetools/socratic/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResponder(api API) *responder {
	return &responder{api: api, chatID: 7, logger: logging.NewLogger("telegram-test")}
}

func TestResponderSendsMessageWithKeyboard(t *testing.T) {
	api := newFakeAPI()
	r := newResponder(api)

	require.NoError(t, r.Send(context.Background(), tutor.Reply{
		Text:     "<code>x</code>",
		Keyboard: tutor.ConfirmTaskKeyboard(),
		HTML:     true,
	}))

	msgs := api.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, int64(7), msgs[0].ChatID)
	assert.Equal(t, tgbotapi.ModeHTML, msgs[0].ParseMode)

	markup, ok := msgs[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	kb := tutor.ConfirmTaskKeyboard()
	require.Len(t, markup.InlineKeyboard, len(kb))
	assert.Equal(t, kb[0][0].Text, markup.InlineKeyboard[0][0].Text)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, kb[0][0].Data, *markup.InlineKeyboard[0][0].CallbackData)
}

func TestResponderEditsPressedMessage(t *testing.T) {
	api := newFakeAPI()
	r := newResponder(api)
	r.messageID = 42
	r.callbackID = "cb"

	require.NoError(t, r.Send(context.Background(), tutor.Reply{Kind: tutor.ReplyEdit, Text: "edited", Keyboard: tutor.MainMenu()}))
	require.NoError(t, r.Send(context.Background(), tutor.Reply{Kind: tutor.ReplyEdit, Text: "plain"}))

	edits := api.edits()
	require.Len(t, edits, 2)
	assert.Equal(t, 42, edits[0].MessageID)
	assert.Equal(t, "edited", edits[0].Text)
	require.NotNil(t, edits[0].ReplyMarkup)
	assert.Len(t, edits[0].ReplyMarkup.InlineKeyboard, len(tutor.MainMenu()))
	assert.Nil(t, edits[1].ReplyMarkup)
	assert.Empty(t, api.messages())
}

func TestResponderEditWithoutButtonSends(t *testing.T) {
	api := newFakeAPI()
	r := newResponder(api)

	require.NoError(t, r.Send(context.Background(), tutor.Reply{Kind: tutor.ReplyEdit, Text: "hello"}))
	assert.Empty(t, api.edits())
	require.Len(t, api.messages(), 1)
	assert.Equal(t, "hello", api.messages()[0].Text)
}

func TestResponderAlert(t *testing.T) {
	api := newFakeAPI()
	r := newResponder(api)
	r.callbackID = "cb"

	require.NoError(t, r.Send(context.Background(), tutor.Reply{Kind: tutor.ReplyAlert, Text: "careful"}))
	r.finish()

	cbs := api.callbacks()
	require.Len(t, cbs, 1, "finish must not answer twice")
	assert.Equal(t, "cb", cbs[0].CallbackQueryID)
	assert.Equal(t, "careful", cbs[0].Text)
	assert.True(t, cbs[0].ShowAlert)
}

func TestResponderAlertWithoutButtonSends(t *testing.T) {
	api := newFakeAPI()
	r := newResponder(api)

	require.NoError(t, r.Send(context.Background(), tutor.Reply{Kind: tutor.ReplyAlert, Text: "careful"}))
	assert.Empty(t, api.callbacks())
	require.Len(t, api.messages(), 1)
}

func TestResponderFinishAnswersSilently(t *testing.T) {
	api := newFakeAPI()
	r := newResponder(api)
	r.callbackID = "cb"

	r.finish()
	r.finish()
	cbs := api.callbacks()
	require.Len(t, cbs, 1)
	assert.False(t, cbs[0].ShowAlert)
	assert.Empty(t, cbs[0].Text)
}

func TestResponderTyping(t *testing.T) {
	api := newFakeAPI()
	require.NoError(t, newResponder(api).Typing(context.Background()))

	actions := api.actions()
	require.Len(t, actions, 1)
	assert.Equal(t, tgbotapi.ChatTyping, actions[0].Action)
}

func TestResponderWrapsSendErrors(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = assert.AnError
	err := newResponder(api).Send(context.Background(), tutor.Reply{Text: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeTransport))
}

func TestResponderIgnoresUnmodifiedEdit(t *testing.T) {
	api := newFakeAPI()
	api.sendErr = &tgbotapi.Error{Code: 400, Message: "Bad Request: message is not modified"}
	r := newResponder(api)
	r.messageID = 1

	assert.NoError(t, r.Send(context.Background(), tutor.Reply{Kind: tutor.ReplyEdit, Text: "same"}))
}

func TestResponderSplitsLongMessages(t *testing.T) {
	api := newFakeAPI()
	line := strings.Repeat("я", 99) + "\n"
	text := strings.Repeat(line, 50)

	require.NoError(t, newResponder(api).Send(context.Background(), tutor.Reply{Text: text, Keyboard: tutor.BackKeyboard()}))

	msgs := api.messages()
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[0].ReplyMarkup)
	assert.NotNil(t, msgs[1].ReplyMarkup)
	assert.Equal(t, text, msgs[0].Text+msgs[1].Text)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb\n", "cccc"}, parts)

	parts = splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)
}
