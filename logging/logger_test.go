package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry.
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "test")
	entry.Info("Test message")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "[test]")
	assert.Contains(t, output, "Test message")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "qa",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "[qa]", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "careful",
				Data:    logrus.Fields{"component": "bot"},
			},
			want:    []string{"[WARN]", "careful"},
			notWant: []string{"[bot]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &TextFormatter{Config: tt.config}
			out, err := f.Format(tt.entry)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, string(out), w)
			}
			for _, nw := range tt.notWant {
				assert.NotContains(t, string(out), nw)
			}
		})
	}
}

func TestTextFormatterSortsFields(t *testing.T) {
	f := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	out, err := f.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2, "mid": 3},
	})
	require.NoError(t, err)
	line := string(out)
	assert.Less(t, strings.Index(line, "alpha="), strings.Index(line, "mid="))
	assert.Less(t, strings.Index(line, "mid="), strings.Index(line, "zeta="))
}

func TestBuildLevelFromEnv(t *testing.T) {
	t.Setenv("SOCRATIC_LOG_LEVEL", "debug")
	entry := build("env-level", Config{Level: "error"})
	assert.Equal(t, logrus.DebugLevel, entry.Logger.GetLevel())

	t.Setenv("SOCRATIC_LOG_LEVEL", "")
	entry = build("cfg-level", Config{Level: "error"})
	assert.Equal(t, logrus.ErrorLevel, entry.Logger.GetLevel())
}

func TestBuildFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "qa.log")
	entry := build("file-sink", Config{
		File:   FileSinkConfig{Enabled: true, Path: path},
		Format: FormatConfig{StructuredToStderr: "never"},
	})
	entry.Info("written to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}
