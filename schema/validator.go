// Package schema generates JSON Schemas from Go types and validates decoded
// YAML or JSON documents against them.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	jsv "github.com/santhosh-tekuri/jsonschema/v5"
)

// draft07 is the dialect generated schemas declare.
const draft07 = "http://json-schema.org/draft-07/schema#"

// Generate reflects v into an indented JSON Schema using yaml field names.
// Open schemas accept properties the type does not declare.
func Generate(v interface{}, title, description string, open bool) ([]byte, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: open,
		// Expand struct references instead of using $ref for a flat schema.
		ExpandedStruct: true,
		Anonymous:      true,
		FieldNameTag:   "yaml",
		// Only fields tagged jsonschema:"required" are required.
		RequiredFromJSONSchemaTags: true,
	}

	s := r.Reflect(v)
	s.Title = title
	s.Description = description
	s.Version = draft07
	return json.MarshalIndent(s, "", "  ")
}

// Validator validates documents against a compiled JSON Schema.
type Validator struct {
	schema *jsv.Schema
}

// NewValidator compiles schemaJSON under the given resource name.
func NewValidator(name string, schemaJSON []byte) (*Validator, error) {
	compiler := jsv.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(string(schemaJSON))); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	return &Validator{schema: compiled}, nil
}

// Validate validates data, which may be a struct or a value decoded from
// YAML, against the schema.
func (v *Validator) Validate(data interface{}) error {
	// Round-trip through JSON so the validator sees plain JSON values.
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document to JSON for validation: %w", err)
	}

	var doc interface{}
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal JSON for validation: %w", err)
	}

	if err := v.schema.Validate(doc); err != nil {
		if validationErr, ok := err.(*jsv.ValidationError); ok {
			var errorMessages []string
			collectErrors(validationErr, &errorMessages)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(errorMessages, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}

	return nil
}

// collectErrors recursively collects all validation errors into a slice
func collectErrors(err *jsv.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
