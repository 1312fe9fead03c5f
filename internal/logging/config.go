package logging

// Config defines the logging section of the cloudbrowser config file.
type Config struct {
	// Level is the minimum log level to output (e.g., "debug", "info", "warn", "error").
	// Can be overridden by the CLOUDBROWSER_LOG_LEVEL environment variable.
	Level string `yaml:"level"`

	// Format is "text" (default) or "json".
	Format string `yaml:"format"`

	// ReportCaller includes file, line and function in each entry.
	ReportCaller bool `yaml:"report_caller"`
}
