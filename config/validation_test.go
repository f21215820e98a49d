package config

import (
	"testing"

	"github.com/grovetools/socratic/errors"
	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

func TestValidateRepo(t *testing.T) {
	testCases := []struct {
		name  string
		repo  string
		valid bool
	}{
		{"empty is allowed", "", true},
		{"owner and name", "octo/tutor", true},
		{"dots and dashes", "my-org/bot.v2", true},
		{"missing owner", "tutor", false},
		{"too many parts", "a/b/c", false},
		{"spaces", "octo/my repo", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.GitHub.Repo = tc.repo
			err := cfg.Validate()
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.True(t, errors.Is(err, errors.ErrCodeConfigValidation))
			}
		})
	}
}

func TestValidateSessionStore(t *testing.T) {
	cfg := validConfig()
	cfg.Tutor.SessionStore = "redis"
	assert.Error(t, cfg.Validate())

	cfg.Tutor.SessionStore = SessionStoreSQLite
	assert.NoError(t, cfg.Validate())

	cfg.Tutor.DBPath = ""
	assert.Error(t, cfg.Validate())
}

func TestValidateURLs(t *testing.T) {
	cfg := validConfig()
	cfg.Tutor.ErrorWebhook = "not a url"
	assert.Error(t, cfg.Validate())

	cfg.Tutor.ErrorWebhook = "https://hooks.example.com/errors"
	assert.NoError(t, cfg.Validate())

	cfg.Telegram.WebhookURL = "/relative"
	assert.Error(t, cfg.Validate())
}
