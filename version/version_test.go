package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetInfo(t *testing.T) {
	info := GetInfo()
	assert.Equal(t, Version, info.Version)
	assert.Contains(t, info.String(), "Commit:")
	assert.True(t, strings.HasPrefix(info.GoVersion, "go"))
}

func TestUserAgent(t *testing.T) {
	assert.True(t, strings.HasPrefix(UserAgent(), "socratic/"+Version+" ("))
}
