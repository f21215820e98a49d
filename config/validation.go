package config

import (
	"fmt"
	"net/url"
	"regexp"

	"github.com/grovetools/socratic/errors"
)

var repoRegex = regexp.MustCompile(`^[A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+$`)

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.GitHub.Repo != "" && !repoRegex.MatchString(c.GitHub.Repo) {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("github.repo must be owner/name, got %q", c.GitHub.Repo)).
			WithDetail("repo", c.GitHub.Repo)
	}
	if c.GitHub.APIURL != "" {
		if err := validateURL("github.api_url", c.GitHub.APIURL); err != nil {
			return err
		}
	}

	if c.Anthropic.MaxTokens <= 0 {
		return errors.New(errors.ErrCodeConfigValidation, "anthropic.max_tokens must be positive")
	}

	switch c.Tutor.SessionStore {
	case SessionStoreMemory:
	case SessionStoreSQLite:
		if c.Tutor.DBPath == "" {
			return errors.New(errors.ErrCodeConfigValidation, "tutor.db_path cannot be empty when session_store is sqlite")
		}
	default:
		return errors.New(errors.ErrCodeConfigValidation,
			fmt.Sprintf("tutor.session_store must be %q or %q, got %q", SessionStoreMemory, SessionStoreSQLite, c.Tutor.SessionStore)).
			WithDetail("session_store", c.Tutor.SessionStore)
	}

	if c.Tutor.ErrorWebhook != "" {
		if err := validateURL("tutor.error_webhook", c.Tutor.ErrorWebhook); err != nil {
			return err
		}
	}
	if c.Telegram.WebhookURL != "" {
		if err := validateURL("telegram.webhook_url", c.Telegram.WebhookURL); err != nil {
			return err
		}
	}

	return nil
}

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New(errors.ErrCodeConfigValidation, fmt.Sprintf("%s must be an absolute URL, got %q", field, raw)).
			WithDetail("field", field)
	}
	return nil
}
