package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/grovetools/socratic/config"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
)

// NewLogger creates and returns a pre-configured logger for a specific component.
// It uses a singleton pattern per component to avoid re-initializing.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	var logCfg Config
	if cfg, err := config.LoadDefault(); err == nil {
		if err := cfg.UnmarshalExtension("logging", &logCfg); err != nil {
			logrus.Warnf("Failed to parse 'logging' config: %v", err)
		}
	}

	entry := build(component, logCfg)
	loggers[component] = entry
	return entry
}

// build assembles a logger from an already-decoded config.
func build(component string, logCfg Config) *logrus.Entry {
	logger := logrus.New()

	levelStr := "info"
	if env := os.Getenv("SOCRATIC_LOG_LEVEL"); env != "" {
		levelStr = env
	} else if logCfg.Level != "" {
		levelStr = logCfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if os.Getenv("SOCRATIC_LOG_CALLER") == "true" || logCfg.ReportCaller {
		logger.SetReportCaller(true)
	}

	switch logCfg.Format.Preset {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "simple":
		logger.SetFormatter(&TextFormatter{Config: FormatConfig{
			DisableTimestamp: true,
			DisableComponent: true,
		}})
	default:
		logger.SetFormatter(&TextFormatter{Config: logCfg.Format})
	}

	var writers []io.Writer

	if logCfg.File.Enabled {
		logFilePath := expandPath(logCfg.File.Path)
		if logFilePath == "" {
			logFilePath = filepath.Join(".socratic", "logs",
				fmt.Sprintf("%s-%s.log", component, time.Now().Format("2006-01-02")))
		}
		if err := os.MkdirAll(filepath.Dir(logFilePath), 0o755); err != nil {
			logger.Warnf("Failed to create log directory %s: %v", filepath.Dir(logFilePath), err)
		} else if file, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err != nil {
			logger.Warnf("Failed to open log file %s: %v", logFilePath, err)
		} else {
			writers = append(writers, file)
		}
	}

	if shouldLogToStderr(logCfg.Format.StructuredToStderr, logger.GetLevel()) {
		writers = append(writers, os.Stderr)
	}

	switch len(writers) {
	case 0:
		logger.SetOutput(io.Discard)
	case 1:
		logger.SetOutput(writers[0])
	default:
		logger.SetOutput(io.MultiWriter(writers...))
	}

	return logger.WithField("component", component)
}

func shouldLogToStderr(mode string, level logrus.Level) bool {
	switch mode {
	case "never":
		return false
	case "auto":
		isDebug := os.Getenv("SOCRATIC_DEBUG") == "1" || level == logrus.DebugLevel
		isInteractive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		return isDebug || !isInteractive
	default:
		// Both processes run unattended (CI, a bot host), so stderr is the sink.
		return true
	}
}

// expandPath expands tilde in file paths
func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
