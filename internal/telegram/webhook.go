package telegram

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grovetools/socratic/errors"
)

const (
	// WebhookPath is where Telegram posts updates.
	WebhookPath = "/telegram/webhook"
	// secretHeader carries the secret_token given to setWebhook.
	secretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// WebhookOptions configures the webhook server.
type WebhookOptions struct {
	// URL is the public address registered with Telegram. Empty skips
	// registration, e.g. when it is managed out of band.
	URL        string
	Secret     string
	ListenAddr string
}

// Router returns the webhook HTTP handler. Updates are dispatched with ctx,
// not the request context, so handling outlives the request.
func (b *Bot) Router(ctx context.Context, secret string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/healthz"))

	r.Post(WebhookPath, func(w http.ResponseWriter, req *http.Request) {
		if secret != "" && subtle.ConstantTimeCompare([]byte(req.Header.Get(secretHeader)), []byte(secret)) != 1 {
			b.logger.WithField("request_id", middleware.GetReqID(req.Context())).Warn("Rejected webhook call with bad secret")
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		var update tgbotapi.Update
		if err := json.NewDecoder(req.Body).Decode(&update); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.Dispatch(ctx, update)
		w.WriteHeader(http.StatusOK)
	})
	return r
}

// ServeWebhook registers the webhook and serves updates until ctx is
// cancelled.
func (b *Bot) ServeWebhook(ctx context.Context, opts WebhookOptions) error {
	if opts.URL != "" {
		params := tgbotapi.Params{"url": opts.URL + WebhookPath}
		params.AddNonEmpty("secret_token", opts.Secret)
		if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
			return transportErr("setWebhook", err)
		}
		b.logger.WithField("url", opts.URL+WebhookPath).Info("Webhook registered")
	}

	srv := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           b.Router(ctx, opts.Secret),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.WithField("addr", opts.ListenAddr).Info("Bot started (webhook)")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, errors.ErrCodeTransport, "webhook server failed").WithDetail("addr", opts.ListenAddr)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		b.logger.WithError(err).Warn("Webhook server shutdown failed")
	}
	b.Wait()
	b.logger.Info("Bot stopped")
	return nil
}
