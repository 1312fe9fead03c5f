package billing

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/shehryarbajwa/cloudbrowser/internal/logging"
	"github.com/shehryarbajwa/cloudbrowser/pkg/models"
)

// Reporter receives one usage record per finished or failed session
type Reporter interface {
	Report(ctx context.Context, usage models.Usage) error
}

// LogReporter writes usage records to the log
type LogReporter struct {
	log *logrus.Entry
}

// NewLogReporter creates a LogReporter
func NewLogReporter() *LogReporter {
	return &LogReporter{log: logging.NewLogger("usage")}
}

// Report logs the usage record
func (r *LogReporter) Report(_ context.Context, usage models.Usage) error {
	r.log.WithFields(logrus.Fields{
		"session_id": usage.SessionID,
		"region":     usage.Region,
		"state":      usage.State,
		"duration":   usage.Duration.Round(time.Millisecond),
		"bytes":      usage.Bytes,
	}).Info("session usage")
	return nil
}

// MultiReporter fans a record out to several reporters and returns the first error
type MultiReporter []Reporter

// Report implements Reporter
func (m MultiReporter) Report(ctx context.Context, usage models.Usage) error {
	var first error
	for _, r := range m {
		if err := r.Report(ctx, usage); err != nil && first == nil {
			first = err
		}
	}
	return first
}
