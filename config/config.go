package config

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/grovetools/socratic/errors"
	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

var configNames = []string{
	"socratic.yml",
	"socratic.yaml",
	".socratic.yml",
	".socratic.yaml",
	"socratic.toml",
}

// Load reads and parses a configuration file, then applies environment
// overrides, defaults and validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigNotFound(path)
		}
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to read config file").
			WithDetail("path", path)
	}

	cfg, err := parse(data, formatFor(path))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config file").
			WithDetail("path", path)
	}
	return finish(cfg)
}

// LoadDefault loads configuration starting from the current directory.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to get current directory")
	}

	return LoadFrom(cwd)
}

// LoadFrom loads configuration starting from the given directory.
func LoadFrom(startDir string) (*Config, error) {
	return LoadFromWithLogger(startDir, logrus.New())
}

// LoadFromWithLogger loads configuration in this order, later layers winning:
//  1. built-in defaults
//  2. socratic.yml / socratic.toml found by walking up from startDir (optional)
//  3. .env in startDir (only fills variables that are not already set)
//  4. process environment
func LoadFromWithLogger(startDir string, logger *logrus.Logger) (*Config, error) {
	envPath := filepath.Join(startDir, ".env")
	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			logger.WithError(err).WithField("path", envPath).Warn("Failed to load .env, continuing without it")
		} else {
			logger.WithField("path", envPath).Debug("Loaded .env")
		}
	}

	path, err := FindConfigFile(startDir)
	if err != nil {
		logger.Debug("No config file found, using defaults and environment")
		return finish(&Config{})
	}

	logger.WithField("path", path).Debug("Loading configuration")
	return Load(path)
}

// LoadFromBytes parses YAML configuration data and applies environment
// overrides and defaults.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := parse(data, "yaml")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "failed to parse config")
	}
	return finish(cfg)
}

// FindConfigFile searches for a config file starting at startDir and walking
// up to the filesystem root.
func FindConfigFile(startDir string) (string, error) {
	dir := startDir
	for {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.ConfigNotFound(filepath.Join(startDir, configNames[0]))
}

func formatFor(path string) string {
	if strings.HasSuffix(path, ".toml") {
		return "toml"
	}
	return "yaml"
}

func parse(data []byte, format string) (*Config, error) {
	expanded := []byte(expandEnvVars(string(data)))

	var (
		cfg Config
		raw map[string]interface{}
	)
	switch format {
	case "toml":
		if err := toml.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(expanded, &cfg); err != nil {
			return nil, err
		}
		// go-toml has no inline maps; collect the unknown tables by hand.
		for key, val := range raw {
			if _, known := knownSections[key]; known {
				continue
			}
			if cfg.Extensions == nil {
				cfg.Extensions = make(map[string]interface{})
			}
			cfg.Extensions[key] = val
		}
	default:
		if err := yaml.Unmarshal(expanded, &raw); err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(expanded, &cfg); err != nil {
			return nil, err
		}
	}

	// An empty file decodes to a nil map and is valid.
	if raw != nil {
		if err := ValidateDocument(raw); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func finish(cfg *Config) (*Config, error) {
	applyEnv(cfg)
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overlays the environment variables understood by both processes.
func applyEnv(cfg *Config) {
	overrideString(&cfg.GitHub.Repo, "GITHUB_REPOSITORY")
	overrideString(&cfg.GitHub.Repo, "GITHUB_REPO")
	overrideString(&cfg.GitHub.Token, "GITHUB_TOKEN")
	overrideString(&cfg.GitHub.APIURL, "GITHUB_API_URL")

	overrideString(&cfg.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	overrideString(&cfg.Anthropic.Model, "ANTHROPIC_MODEL")
	overrideString(&cfg.Anthropic.Model, "CLAUDE_MODEL")
	overrideInt(&cfg.Anthropic.MaxTokens, "MAX_TOKENS")

	overrideString(&cfg.Telegram.Token, "TELEGRAM_TOKEN")
	overrideString(&cfg.Telegram.WebhookURL, "TELEGRAM_WEBHOOK_URL")

	overrideString(&cfg.Tutor.SystemPromptPath, "BOT_SYSTEM_PROMPT_PATH")
	overrideString(&cfg.Agent.PromptPath, "BOT_SYSTEM_PROMPT_PATH")
	overrideString(&cfg.Tutor.SessionStore, "SOCRATIC_SESSION_STORE")
	overrideString(&cfg.Tutor.DBPath, "SOCRATIC_DB_PATH")
	overrideString(&cfg.Tutor.ErrorWebhook, "SOCRATIC_ERROR_WEBHOOK")
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} references.
func expandEnvVars(content string) string {
	return envVarRegex.ReplaceAllStringFunc(content, func(match string) string {
		varName := envVarRegex.FindStringSubmatch(match)[1]

		parts := strings.SplitN(varName, ":-", 2)
		varName = parts[0]
		defaultValue := ""
		if len(parts) > 1 {
			defaultValue = parts[1]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

func overrideString(dest *string, key string) {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		*dest = val
	}
}

func overrideInt(dest *int, key string) {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			*dest = parsed
		}
	}
}
