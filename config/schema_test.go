package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var s map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &s))
	assert.Equal(t, "Socratic Configuration", s["title"])

	props := s["properties"].(map[string]interface{})
	for _, key := range []string{"version", "anthropic", "github", "telegram", "tutor", "agent"} {
		assert.Contains(t, props, key)
	}
	assert.NotContains(t, props, "Extensions")
}

func TestValidateDocument(t *testing.T) {
	decode := func(src string) interface{} {
		var doc interface{}
		require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
		return doc
	}

	assert.NoError(t, ValidateDocument(decode(`
version: "1.0"
anthropic:
  model: claude-test
  max_tokens: 800
telegram:
  allowed_chat_ids: [1, 2]
logging:
  level: debug
`)))

	err := ValidateDocument(decode(`
anthropic:
  max_tokens: lots
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_tokens")

	assert.Error(t, ValidateDocument(decode(`telegram: [1, 2]`)))
}

func TestLoadRejectsSchemaViolations(t *testing.T) {
	clearEnv(t)
	_, err := LoadFromBytes([]byte("telegram:\n  allowed_chat_ids: first\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_chat_ids")
}
