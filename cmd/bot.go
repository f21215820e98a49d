package cmd

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/grovetools/socratic/cli"
	"github.com/grovetools/socratic/config"
	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/internal/alert"
	"github.com/grovetools/socratic/internal/telegram"
	"github.com/grovetools/socratic/internal/tutor"
	"github.com/grovetools/socratic/logging"
	"github.com/spf13/cobra"
)

func NewBotCmd() *cobra.Command {
	var (
		webhook bool
		listen  string
		store   string
	)

	cmd := &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram tutoring bot",
		Long: `Starts the Socratic tutoring bot. Updates are received by long polling
unless --webhook is given or telegram.webhook_url is configured.

Examples:
  socratic bot
  socratic bot --store sqlite
  socratic bot --webhook --listen :8443`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if store != "" {
				cfg.Tutor.SessionStore = store
			}
			if listen != "" {
				cfg.Telegram.ListenAddr = listen
			}
			if cfg.Telegram.Token == "" {
				return errors.ConfigInvalid("TELEGRAM_TOKEN is not set")
			}
			return runBot(cmd.Context(), cfg, webhook || cfg.Telegram.WebhookURL != "")
		},
	}

	cmd.Flags().BoolVar(&webhook, "webhook", false, "Serve a webhook instead of long polling")
	cmd.Flags().StringVar(&listen, "listen", "", "Webhook listen address (default: telegram.listen_addr)")
	cmd.Flags().StringVar(&store, "store", "", "Session store: memory or sqlite (default: tutor.session_store)")
	return cmd
}

func runBot(ctx context.Context, cfg *config.Config, webhook bool) error {
	logger := logging.NewLogger("bot")

	sessions, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	prompts := tutor.NewPromptSource(cfg.Tutor.SystemPromptPath)
	go func() {
		if err := prompts.Watch(ctx); err != nil {
			logger.WithError(err).Warn("System prompt watcher stopped")
		}
	}()

	completer := newCompleter(cfg)
	if !completer.Available() {
		logger.Warn("ANTHROPIC_API_KEY is not set, replies will use canned fallbacks")
	}
	svc := tutor.NewService(sessions, completer, prompts, tutor.Options{
		VisionModel:  cfg.Anthropic.VisionModel,
		HistoryLimit: cfg.Tutor.HistoryLimit,
	})

	if err := tgbotapi.SetLogger(logging.NewLogger("tgbotapi")); err != nil {
		logger.WithError(err).Debug("Keeping default Telegram client logger")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeTransport, "failed to connect to Telegram")
	}
	logger.WithField("username", api.Self.UserName).Info("Authorized on Telegram")

	bot := telegram.New(api, svc, telegram.Options{
		AllowedChatIDs: cfg.Telegram.AllowedChatIDs,
		QueueSize:      cfg.Tutor.WorkerQueue,
		Reporter:       alert.New(cfg.Tutor.ErrorWebhook),
	})

	if webhook {
		return bot.ServeWebhook(ctx, telegram.WebhookOptions{
			URL:        cfg.Telegram.WebhookURL,
			Secret:     cfg.Telegram.WebhookSecret,
			ListenAddr: cfg.Telegram.ListenAddr,
		})
	}
	return bot.Poll(ctx, cfg.Telegram.PollTimeout)
}

func openStore(cfg *config.Config) (tutor.Store, func(), error) {
	logger := logging.NewLogger("bot")
	switch cfg.Tutor.SessionStore {
	case config.SessionStoreSQLite:
		s, err := tutor.OpenSQLiteStore(cfg.Tutor.DBPath)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("path", s.Path()).Info("Using SQLite session store")
		return s, func() {
			if err := s.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close session store")
			}
		}, nil
	case config.SessionStoreMemory:
		logger.Info("Using in-memory session store")
		return tutor.NewMemoryStore(), func() {}, nil
	default:
		return nil, nil, errors.ConfigInvalid("unknown session store " + cfg.Tutor.SessionStore)
	}
}
