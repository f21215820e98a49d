package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Config is the top-level socratic configuration, read from socratic.yml or
// socratic.toml and overlaid with environment variables.
type Config struct {
	Version   string          `yaml:"version" toml:"version"`
	Anthropic AnthropicConfig `yaml:"anthropic" toml:"anthropic"`
	GitHub    GitHubConfig    `yaml:"github" toml:"github"`
	Telegram  TelegramConfig  `yaml:"telegram" toml:"telegram"`
	Tutor     TutorConfig     `yaml:"tutor" toml:"tutor"`
	Agent     AgentConfig     `yaml:"agent" toml:"agent"`

	// Extensions captures any other top-level section (e.g. "logging") so
	// packages can decode their own settings with UnmarshalExtension.
	Extensions map[string]interface{} `yaml:",inline" toml:"-"`
}

// AnthropicConfig configures the chat-completion client.
type AnthropicConfig struct {
	// APIKey can also be set with ANTHROPIC_API_KEY. Empty means stub mode.
	APIKey string `yaml:"api_key" toml:"api_key"`
	// Model is used for tutoring, verification and memes. CLAUDE_MODEL or
	// ANTHROPIC_MODEL override it.
	Model string `yaml:"model" toml:"model"`
	// VisionModel transcribes photographed problems.
	VisionModel    string `yaml:"vision_model" toml:"vision_model"`
	MaxTokens      int    `yaml:"max_tokens" toml:"max_tokens"`
	MaxRetries     int    `yaml:"max_retries" toml:"max_retries"`
	TimeoutSeconds int    `yaml:"timeout_seconds" toml:"timeout_seconds"`
	BaseURL        string `yaml:"base_url,omitempty" toml:"base_url,omitempty"`
}

// GitHubConfig configures the draft-PR publisher.
type GitHubConfig struct {
	// Repo is "owner/name"; GITHUB_REPO or GITHUB_REPOSITORY override it.
	Repo  string `yaml:"repo" toml:"repo"`
	Token string `yaml:"token" toml:"token"`
	// APIURL points at a GitHub Enterprise API root when set.
	APIURL string `yaml:"api_url,omitempty" toml:"api_url,omitempty"`
}

// TelegramConfig configures the bot transport.
type TelegramConfig struct {
	Token          string  `yaml:"token" toml:"token"`
	PollTimeout    int     `yaml:"poll_timeout" toml:"poll_timeout"`
	AllowedChatIDs []int64 `yaml:"allowed_chat_ids,omitempty" toml:"allowed_chat_ids,omitempty"`
	WebhookURL     string  `yaml:"webhook_url,omitempty" toml:"webhook_url,omitempty"`
	WebhookSecret  string  `yaml:"webhook_secret,omitempty" toml:"webhook_secret,omitempty"`
	ListenAddr     string  `yaml:"listen_addr" toml:"listen_addr"`
}

// TutorConfig configures the tutoring bot behaviour.
type TutorConfig struct {
	SystemPromptPath string `yaml:"system_prompt_path,omitempty" toml:"system_prompt_path,omitempty"`
	SessionStore     string `yaml:"session_store" toml:"session_store"`
	DBPath           string `yaml:"db_path" toml:"db_path"`
	ErrorWebhook     string `yaml:"error_webhook,omitempty" toml:"error_webhook,omitempty"`
	HistoryLimit     int    `yaml:"history_limit" toml:"history_limit"`
	WorkerQueue      int    `yaml:"worker_queue" toml:"worker_queue"`
}

// AgentConfig configures the QA plan runner.
type AgentConfig struct {
	PlanPath         string `yaml:"plan_path" toml:"plan_path"`
	ReportsDir       string `yaml:"reports_dir" toml:"reports_dir"`
	PromptPath       string `yaml:"prompt_path,omitempty" toml:"prompt_path,omitempty"`
	RemoteReportPath string `yaml:"remote_report_path" toml:"remote_report_path"`
	SamplePrompt     string `yaml:"sample_prompt" toml:"sample_prompt"`
}

const (
	DefaultModel       = "claude-3-5-sonnet-20241022"
	DefaultVisionModel = "claude-sonnet-4-20250514"

	SessionStoreMemory = "memory"
	SessionStoreSQLite = "sqlite"
)

// knownSections lists the typed top-level keys; everything else is an extension.
var knownSections = map[string]struct{}{
	"version":   {},
	"anthropic": {},
	"github":    {},
	"telegram":  {},
	"tutor":     {},
	"agent":     {},
}

// SetDefaults sets default values for configuration
func (c *Config) SetDefaults() {
	if c.Version == "" {
		c.Version = "1.0"
	}

	if c.Anthropic.Model == "" {
		c.Anthropic.Model = DefaultModel
	}
	if c.Anthropic.VisionModel == "" {
		c.Anthropic.VisionModel = DefaultVisionModel
	}
	if c.Anthropic.MaxTokens <= 0 {
		c.Anthropic.MaxTokens = 600
	}
	if c.Anthropic.MaxRetries <= 0 {
		c.Anthropic.MaxRetries = 2
	}
	if c.Anthropic.TimeoutSeconds <= 0 {
		c.Anthropic.TimeoutSeconds = 60
	}

	if c.Telegram.PollTimeout <= 0 {
		c.Telegram.PollTimeout = 30
	}
	if c.Telegram.ListenAddr == "" {
		c.Telegram.ListenAddr = ":8080"
	}

	if c.Tutor.SessionStore == "" {
		c.Tutor.SessionStore = SessionStoreMemory
	}
	if c.Tutor.DBPath == "" {
		c.Tutor.DBPath = "./data/sessions.db"
	}
	if c.Tutor.HistoryLimit <= 0 {
		c.Tutor.HistoryLimit = 20
	}
	if c.Tutor.WorkerQueue <= 0 {
		c.Tutor.WorkerQueue = 16
	}

	if c.Agent.PlanPath == "" {
		c.Agent.PlanPath = "ai_agent/tests/plan_smoke.yaml"
	}
	if c.Agent.ReportsDir == "" {
		c.Agent.ReportsDir = "ai_agent/reports"
	}
	if c.Agent.PromptPath == "" {
		c.Agent.PromptPath = "ai_agent/prompts/bot_system.md"
	}
	if c.Agent.RemoteReportPath == "" {
		c.Agent.RemoteReportPath = "ai_agent/reports/suggestions.md"
	}
	if c.Agent.SamplePrompt == "" {
		c.Agent.SamplePrompt = "Привет, тестовая просьба."
	}
}

// UnmarshalExtension decodes a specific extension's configuration from the
// loaded file into the provided target struct. The target must be a pointer.
//
// Example:
//
//	var logCfg logging.Config
//	err := cfg.UnmarshalExtension("logging", &logCfg)
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		// It's not an error if the key doesn't exist.
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
