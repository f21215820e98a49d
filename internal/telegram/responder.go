package telegram

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/internal/tutor"
	"github.com/sirupsen/logrus"
)

// maxMessageRunes stays under the 4096 character limit of sendMessage.
const maxMessageRunes = 4000

// API is the subset of *tgbotapi.BotAPI the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// responder delivers tutor replies for a single update.
type responder struct {
	api    API
	chatID int64
	// messageID and callbackID are set when the update is a button press.
	messageID  int
	callbackID string
	answered   bool
	logger     *logrus.Entry
}

var _ tutor.Responder = (*responder)(nil)

func (r *responder) Send(_ context.Context, reply tutor.Reply) error {
	switch reply.Kind {
	case tutor.ReplyAlert:
		if r.callbackID != "" {
			r.answered = true
			_, err := r.api.Request(tgbotapi.NewCallbackWithAlert(r.callbackID, reply.Text))
			return transportErr("answerCallbackQuery", err)
		}
	case tutor.ReplyEdit:
		if r.messageID != 0 {
			return r.edit(reply)
		}
	}
	return r.send(reply)
}

func (r *responder) Typing(_ context.Context) error {
	_, err := r.api.Request(tgbotapi.NewChatAction(r.chatID, tgbotapi.ChatTyping))
	return transportErr("sendChatAction", err)
}

func (r *responder) send(reply tutor.Reply) error {
	chunks := splitMessage(reply.Text, maxMessageRunes)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(r.chatID, chunk)
		if reply.HTML {
			msg.ParseMode = tgbotapi.ModeHTML
		}
		// The keyboard belongs under the last part.
		if i == len(chunks)-1 && len(reply.Keyboard) > 0 {
			msg.ReplyMarkup = inlineKeyboard(reply.Keyboard)
		}
		if _, err := r.api.Send(msg); err != nil {
			return transportErr("sendMessage", err)
		}
	}
	return nil
}

func (r *responder) edit(reply tutor.Reply) error {
	var edit tgbotapi.EditMessageTextConfig
	if len(reply.Keyboard) > 0 {
		edit = tgbotapi.NewEditMessageTextAndMarkup(r.chatID, r.messageID, reply.Text, inlineKeyboard(reply.Keyboard))
	} else {
		edit = tgbotapi.NewEditMessageText(r.chatID, r.messageID, reply.Text)
	}
	if reply.HTML {
		edit.ParseMode = tgbotapi.ModeHTML
	}
	if _, err := r.api.Send(edit); err != nil {
		if strings.Contains(err.Error(), "message is not modified") {
			r.logger.Debug("Edit skipped, message unchanged")
			return nil
		}
		return transportErr("editMessageText", err)
	}
	return nil
}

// finish stops the client-side spinner of an unanswered button press.
func (r *responder) finish() {
	if r.callbackID == "" || r.answered {
		return
	}
	r.answered = true
	if _, err := r.api.Request(tgbotapi.NewCallback(r.callbackID, "")); err != nil {
		r.logger.WithError(err).Debug("Failed to answer callback query")
	}
}

func inlineKeyboard(kb tutor.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// splitMessage cuts text into parts of at most maxRunes, preferring line breaks.
func splitMessage(text string, maxRunes int) []string {
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return []string{text}
	}

	var out []string
	for start := 0; start < len(runes); {
		end := start + maxRunes
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		split := end
		for i := end; i > start+maxRunes/2; i-- {
			if runes[i-1] == '\n' {
				split = i
				break
			}
		}
		out = append(out, string(runes[start:split]))
		start = split
	}
	return out
}

func transportErr(method string, err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, errors.ErrCodeTransport, method+" failed").WithDetail("method", method)
}
