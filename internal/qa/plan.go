// Package qa runs smoke-test plans against the tutoring prompt and publishes
// the resulting report as a draft pull request.
package qa

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/grovetools/socratic/errors"
	"github.com/grovetools/socratic/schema"
	"gopkg.in/yaml.v3"
)

// NoUserText replaces a step without a user message.
const NoUserText = "<no user text>"

// Plan is an ordered list of simulated conversation steps.
type Plan struct {
	Name  string `yaml:"name,omitempty" jsonschema:"description=Plan name; defaults to the file stem"`
	Steps []Step `yaml:"steps,omitempty" jsonschema:"description=Conversation steps in order"`
}

// Step is one simulated user turn.
type Step struct {
	User        *string `yaml:"user,omitempty" jsonschema:"description=Message sent as the user"`
	ExpectRegex *string `yaml:"expect_regex,omitempty" jsonschema:"description=Pattern the reply is expected to match"`
}

// UserText returns the step's message or NoUserText.
func (s Step) UserText() string {
	if s.User == nil {
		return NoUserText
	}
	return *s.User
}

var (
	schemaOnce sync.Once
	schemaJSON []byte
	validator  *schema.Validator
	schemaErr  error
)

// PlanSchema returns the JSON Schema plans are validated against.
func PlanSchema() ([]byte, error) {
	if err := loadSchema(); err != nil {
		return nil, err
	}
	return schemaJSON, nil
}

func loadSchema() error {
	schemaOnce.Do(func() {
		schemaJSON, schemaErr = schema.Generate(&Plan{}, "Socratic QA Plan", "Smoke-test plan for the tutoring bot.", true)
		if schemaErr != nil {
			return
		}
		validator, schemaErr = schema.NewValidator("plan.json", schemaJSON)
	})
	return schemaErr
}

// LoadPlan reads a YAML plan. A missing file yields an empty plan named
// after the file stem.
func LoadPlan(path string) (*Plan, error) {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Plan{Name: stem}, nil
		}
		return nil, errors.PlanInvalid(path, err)
	}

	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errors.PlanInvalid(path, err)
	}
	if err := validatePlan(raw); err != nil {
		return nil, errors.PlanInvalid(path, err)
	}

	var plan Plan
	if err := yaml.Unmarshal(data, &plan); err != nil {
		return nil, errors.PlanInvalid(path, err)
	}
	if plan.Name == "" {
		plan.Name = stem
	}
	return &plan, nil
}

func validatePlan(raw interface{}) error {
	if err := loadSchema(); err != nil {
		return fmt.Errorf("failed to compile plan schema: %w", err)
	}
	return validator.Validate(raw)
}
