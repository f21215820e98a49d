package logging

// Config defines the "logging" section of socratic.yml.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the SOCRATIC_LOG_LEVEL environment variable.
	Level string `yaml:"level"`

	// ReportCaller, if true, includes the file, line, and function name in the log output.
	// Can be enabled with the SOCRATIC_LOG_CALLER=true environment variable.
	ReportCaller bool `yaml:"report_caller"`

	// File configures logging to a file.
	File FileSinkConfig `yaml:"file"`

	// Format configures the appearance of the log output.
	Format FormatConfig `yaml:"format"`
}

// FileSinkConfig configures the file logging sink.
type FileSinkConfig struct {
	Enabled bool `yaml:"enabled"`
	// Path is the full path to the log file. Defaults to .socratic/logs/<component>-<date>.log.
	Path string `yaml:"path"`
}

// FormatConfig controls the log output format.
type FormatConfig struct {
	// Preset can be "default" (rich text), "simple" (minimal text), or "json".
	Preset           string `yaml:"preset"`
	DisableTimestamp bool   `yaml:"disable_timestamp"`
	DisableComponent bool   `yaml:"disable_component"`
	// StructuredToStderr controls when logs are sent to stderr.
	// Can be "always" (default), "auto" (only when stderr is not a terminal or
	// debug is on), or "never".
	StructuredToStderr string `yaml:"structured_to_stderr"`
}
