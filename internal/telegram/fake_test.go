package telegram

import (
	"context"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grovetools/socratic/internal/tutor"
)

// fakeAPI records every call made through the API interface.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	made     map[string]tgbotapi.Params
	sendErr  error
	fileURL  string
	updates  chan tgbotapi.Update
	stopped  bool
	nextID   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{made: map[string]tgbotapi.Params{}, updates: make(chan tgbotapi.Update, 8)}
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, f.sendErr
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.made[endpoint] = params
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return f.fileURL, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updates
}

func (f *fakeAPI) StopReceivingUpdates() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeAPI) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) edits() []tgbotapi.EditMessageTextConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.EditMessageTextConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.EditMessageTextConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) callbacks() []tgbotapi.CallbackConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.CallbackConfig
	for _, c := range f.requests {
		if m, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeAPI) actions() []tgbotapi.ChatActionConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []tgbotapi.ChatActionConfig
	for _, c := range f.requests {
		if m, ok := c.(tgbotapi.ChatActionConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

// call is one Handler invocation.
type call struct {
	kind   string
	userID int64
	arg    string
	photo  []byte
}

// stubHandler records calls and optionally runs fn for each.
type stubHandler struct {
	mu    sync.Mutex
	calls []call
	fn    func(ctx context.Context, c call, r tutor.Responder) error
}

func (h *stubHandler) record(ctx context.Context, c call, r tutor.Responder) error {
	h.mu.Lock()
	h.calls = append(h.calls, c)
	fn := h.fn
	h.mu.Unlock()
	if fn != nil {
		return fn(ctx, c, r)
	}
	return nil
}

func (h *stubHandler) snapshot() []call {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]call(nil), h.calls...)
}

func (h *stubHandler) HandleText(ctx context.Context, userID int64, text string, r tutor.Responder) error {
	return h.record(ctx, call{kind: "text", userID: userID, arg: text}, r)
}

func (h *stubHandler) HandleCommand(ctx context.Context, userID int64, command string, r tutor.Responder) error {
	return h.record(ctx, call{kind: "command", userID: userID, arg: command}, r)
}

func (h *stubHandler) HandleCallback(ctx context.Context, userID int64, data string, r tutor.Responder) error {
	return h.record(ctx, call{kind: "callback", userID: userID, arg: data}, r)
}

func (h *stubHandler) HandlePhoto(ctx context.Context, userID int64, fetch tutor.PhotoFetcher, r tutor.Responder) error {
	data, err := fetch(ctx)
	if err != nil {
		return err
	}
	return h.record(ctx, call{kind: "photo", userID: userID, photo: data}, r)
}

func textUpdate(id int, userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		Message: &tgbotapi.Message{
			MessageID: id,
			From:      &tgbotapi.User{ID: userID, UserName: "student"},
			Chat:      &tgbotapi.Chat{ID: userID},
			Text:      text,
		},
	}
}

func commandUpdate(id int, userID int64, command string) tgbotapi.Update {
	u := textUpdate(id, userID, "/"+command)
	u.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(command) + 1}}
	return u
}

func callbackUpdate(id int, userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: id,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:   "cb-1",
			From: &tgbotapi.User{ID: userID},
			Message: &tgbotapi.Message{
				MessageID: 42,
				Chat:      &tgbotapi.Chat{ID: userID},
			},
			Data: data,
		},
	}
}
