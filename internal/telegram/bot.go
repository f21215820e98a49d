// Package telegram connects the tutoring service to the Telegram Bot API.
//
// Updates are fanned out to one worker goroutine per user so a slow
// completion call for one user never delays another, while each user's
// updates are still handled in arrival order.
package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/internal/alert"
	"github.com/grovetools/socratic/internal/tutor"
	"github.com/grovetools/socratic/logging"
	"github.com/sirupsen/logrus"
)

const (
	apologyText      = "😔 Произошла ошибка. Я уже сообщил разработчику!"
	defaultQueueSize = 16
	defaultIdleAfter = 10 * time.Minute
	maxPhotoBytes    = 20 << 20
)

// Handler is implemented by *tutor.Service.
type Handler interface {
	HandleText(ctx context.Context, userID int64, text string, r tutor.Responder) error
	HandleCommand(ctx context.Context, userID int64, command string, r tutor.Responder) error
	HandleCallback(ctx context.Context, userID int64, data string, r tutor.Responder) error
	HandlePhoto(ctx context.Context, userID int64, fetch tutor.PhotoFetcher, r tutor.Responder) error
}

// Options tunes a Bot.
type Options struct {
	// AllowedChatIDs restricts the bot to these chats. Empty allows all.
	AllowedChatIDs []int64
	// QueueSize bounds the pending updates per user.
	QueueSize int
	// IdleTimeout stops a user's worker after this long without updates.
	IdleTimeout time.Duration
	Reporter    *alert.Reporter
	// HTTPClient downloads photos.
	HTTPClient *http.Client
}

type worker struct {
	jobs chan tgbotapi.Update
}

// Bot routes Telegram updates to a Handler.
type Bot struct {
	api      API
	handler  Handler
	reporter *alert.Reporter
	allowed  map[int64]struct{}
	queue    int
	idle     time.Duration
	client   *http.Client
	logger   *logrus.Entry

	mu      sync.Mutex
	workers map[int64]*worker
	wg      sync.WaitGroup
}

// New creates a Bot.
func New(api API, handler Handler, opts Options) *Bot {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleAfter
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	allowed := make(map[int64]struct{}, len(opts.AllowedChatIDs))
	for _, id := range opts.AllowedChatIDs {
		allowed[id] = struct{}{}
	}
	return &Bot{
		api:      api,
		handler:  handler,
		reporter: opts.Reporter,
		allowed:  allowed,
		queue:    opts.QueueSize,
		idle:     opts.IdleTimeout,
		client:   opts.HTTPClient,
		logger:   logging.NewLogger("telegram"),
		workers:  make(map[int64]*worker),
	}
}

// Poll receives updates by long polling until ctx is cancelled, then waits
// for in-flight updates to finish.
func (b *Bot) Poll(ctx context.Context, timeoutSeconds int) error {
	// getUpdates is refused while a webhook is registered.
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.WithError(err).Warn("Failed to delete webhook")
	}

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = timeoutSeconds
	updates := b.api.GetUpdatesChan(cfg)
	b.logger.WithField("poll_timeout", timeoutSeconds).Info("Bot started (long polling)")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.Wait()
			b.logger.Info("Bot stopped")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.Wait()
				return nil
			}
			b.Dispatch(ctx, update)
		}
	}
}

// Dispatch queues an update on its user's worker. Updates from chats that
// are not allowed, or that carry nothing the bot handles, are dropped.
func (b *Bot) Dispatch(ctx context.Context, update tgbotapi.Update) {
	userID, chatID, ok := origin(update)
	if !ok {
		return
	}
	if !b.chatAllowed(chatID) {
		b.logger.WithField("chat_id", chatID).Debug("Ignoring update from chat outside the allow list")
		return
	}

	if !b.enqueue(ctx, userID, update) {
		b.logger.WithFields(logrus.Fields{
			"user_id":   userID,
			"update_id": update.UpdateID,
		}).Warn("User queue full, dropping update")
	}
}

// Wait blocks until every worker has exited.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) chatAllowed(chatID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[chatID]
	return ok
}

// enqueue hands update to the user's worker, starting one if needed. It
// reports false when the worker's queue is full. Sending under b.mu keeps an
// idle worker from exiting with a job still queued.
func (b *Bot) enqueue(ctx context.Context, userID int64, update tgbotapi.Update) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	w, ok := b.workers[userID]
	if !ok {
		w = &worker{jobs: make(chan tgbotapi.Update, b.queue)}
		b.workers[userID] = w
		b.wg.Add(1)
		go b.run(ctx, userID, w)
	}
	select {
	case w.jobs <- update:
		return true
	default:
		return false
	}
}

// run handles the user's updates in order until ctx is done or the worker
// has been idle for b.idle.
func (b *Bot) run(ctx context.Context, userID int64, w *worker) {
	defer b.wg.Done()
	idle := time.NewTimer(b.idle)
	defer idle.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case update := <-w.jobs:
			b.handle(ctx, update)
			idle.Reset(b.idle)
		case <-idle.C:
			if b.retire(userID, w) {
				return
			}
			idle.Reset(b.idle)
		}
	}
}

// retire removes an idle worker unless an update arrived meanwhile.
func (b *Bot) retire(userID int64, w *worker) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(w.jobs) > 0 {
		return false
	}
	delete(b.workers, userID)
	b.logger.WithField("user_id", userID).Debug("Stopped idle worker")
	return true
}

func (b *Bot) activeWorkers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.workers)
}

// handle runs one update. Errors and panics are reported and answered with
// an apology; they never stop the worker.
func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	userID, chatID, _ := origin(update)
	r := &responder{
		api:    b.api,
		chatID: chatID,
		logger: b.logger.WithField("user_id", userID),
	}
	if cq := update.CallbackQuery; cq != nil {
		r.callbackID = cq.ID
		if cq.Message != nil {
			r.messageID = cq.Message.MessageID
		}
	}
	defer r.finish()

	name := handlerName(update)
	defer func() {
		if rec := recover(); rec != nil {
			b.fail(ctx, r, update, name, fmt.Errorf("panic: %v", rec), string(debug.Stack()))
		}
	}()

	if err := b.route(ctx, update, userID, r); err != nil {
		b.fail(ctx, r, update, name, err, "")
	}
}

func (b *Bot) route(ctx context.Context, update tgbotapi.Update, userID int64, r *responder) error {
	if cq := update.CallbackQuery; cq != nil {
		return b.handler.HandleCallback(ctx, userID, cq.Data, r)
	}

	msg := update.Message
	switch {
	case len(msg.Photo) > 0:
		// Telegram lists sizes smallest first.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		return b.handler.HandlePhoto(ctx, userID, b.photoFetcher(fileID), r)
	case msg.IsCommand():
		return b.handler.HandleCommand(ctx, userID, msg.Command(), r)
	case msg.Text != "":
		return b.handler.HandleText(ctx, userID, msg.Text, r)
	}
	return nil
}

func (b *Bot) fail(ctx context.Context, r *responder, update tgbotapi.Update, name string, err error, stack string) {
	inc := alert.Incident{Handler: name, Err: err, Stack: stack}
	if from := sender(update); from != nil {
		inc.UserID = from.ID
		inc.Username = from.UserName
	}
	if update.Message != nil {
		inc.Message = update.Message.Text
	} else if update.CallbackQuery != nil {
		inc.Message = update.CallbackQuery.Data
	}

	id := b.reporter.Report(ctx, inc)
	r.logger.WithError(err).WithFields(logrus.Fields{
		"handler":     name,
		"incident_id": id,
		"code":        errors.GetCode(err),
	}).Error("Update failed")

	if _, sendErr := b.api.Send(tgbotapi.NewMessage(r.chatID, apologyText)); sendErr != nil {
		r.logger.WithError(sendErr).Warn("Failed to send apology")
	}
}

func (b *Bot) photoFetcher(fileID string) tutor.PhotoFetcher {
	return func(ctx context.Context) ([]byte, error) {
		url, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			return nil, transportErr("getFile", err)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, transportErr("download", err)
		}
		resp, err := b.client.Do(req)
		if err != nil {
			return nil, transportErr("download", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, transportErr("download", fmt.Errorf("unexpected status %d", resp.StatusCode))
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
		if err != nil {
			return nil, transportErr("download", err)
		}
		return data, nil
	}
}

// origin returns the user and chat an update belongs to.
func origin(update tgbotapi.Update) (userID, chatID int64, ok bool) {
	switch {
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.From == nil {
			return 0, 0, false
		}
		chatID = cq.From.ID
		if cq.Message != nil && cq.Message.Chat != nil {
			chatID = cq.Message.Chat.ID
		}
		return cq.From.ID, chatID, true
	case update.Message != nil:
		msg := update.Message
		if msg.From == nil || msg.Chat == nil {
			return 0, 0, false
		}
		return msg.From.ID, msg.Chat.ID, true
	}
	return 0, 0, false
}

func sender(update tgbotapi.Update) *tgbotapi.User {
	if update.CallbackQuery != nil {
		return update.CallbackQuery.From
	}
	if update.Message != nil {
		return update.Message.From
	}
	return nil
}

func handlerName(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "button_callback"
	case len(update.Message.Photo) > 0:
		return "handle_photo"
	case update.Message.IsCommand():
		return "command_" + update.Message.Command()
	default:
		return "handle_message"
	}
}
