package logging

import (
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
)

const levelEnv = "CLOUDBROWSER_LOG_LEVEL"

var (
	loggers   = make(map[string]*logrus.Entry)
	loggersMu sync.Mutex
	base      = newBase(Config{})
)

func newBase(cfg Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	apply(logger, cfg)
	return logger
}

func apply(logger *logrus.Logger, cfg Config) {
	levelStr := "info"
	if env := os.Getenv(levelEnv); env != "" {
		levelStr = env
	} else if cfg.Level != "" {
		levelStr = cfg.Level
	}
	level, err := logrus.ParseLevel(levelStr)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	logger.SetReportCaller(cfg.ReportCaller)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		interactive := isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: !interactive,
		})
	}
}

// NewLogger returns the logger for a component. Loggers are cached per
// component and share one underlying logrus.Logger.
func NewLogger(component string) *logrus.Entry {
	loggersMu.Lock()
	defer loggersMu.Unlock()

	if logger, exists := loggers[component]; exists {
		return logger
	}

	entry := base.WithField("component", component)
	loggers[component] = entry
	return entry
}

// Configure applies cfg to every logger handed out so far and all future ones.
func Configure(cfg Config) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	apply(base, cfg)
}

// SetOutput redirects all component loggers.
func SetOutput(w io.Writer) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base.SetOutput(w)
}

// SetLevel overrides the level of all component loggers.
func SetLevel(level logrus.Level) {
	loggersMu.Lock()
	defer loggersMu.Unlock()
	base.SetLevel(level)
}
