package config

import (
	"sync"

	"github.com/grovetools/socratic/schema"
)

var (
	validatorOnce sync.Once
	validator     *schema.Validator
	validatorErr  error
)

// GenerateSchema generates the JSON Schema for socratic.yml. Extension
// sections such as "logging" are accepted but not described.
func GenerateSchema() ([]byte, error) {
	// Mirror Config without the Extensions field so it does not appear as a
	// property of its own.
	type BaseConfig struct {
		Version   string          `yaml:"version,omitempty" jsonschema:"description=Configuration version (e.g. '1.0')"`
		Anthropic AnthropicConfig `yaml:"anthropic,omitempty" jsonschema:"description=Completion API client"`
		GitHub    GitHubConfig    `yaml:"github,omitempty" jsonschema:"description=Draft pull request publisher"`
		Telegram  TelegramConfig  `yaml:"telegram,omitempty" jsonschema:"description=Telegram bot transport"`
		Tutor     TutorConfig     `yaml:"tutor,omitempty" jsonschema:"description=Tutoring behaviour and session storage"`
		Agent     AgentConfig     `yaml:"agent,omitempty" jsonschema:"description=QA plan runner"`
	}

	return schema.Generate(&BaseConfig{}, "Socratic Configuration", "Schema for socratic.yml.", true)
}

// ValidateDocument checks a decoded socratic.yml document against the
// generated schema. It catches wrong types that Validate cannot see after
// decoding.
func ValidateDocument(doc interface{}) error {
	validatorOnce.Do(func() {
		var data []byte
		data, validatorErr = GenerateSchema()
		if validatorErr != nil {
			return
		}
		validator, validatorErr = schema.NewValidator("socratic.json", data)
	})
	if validatorErr != nil {
		return validatorErr
	}
	return validator.Validate(doc)
}
