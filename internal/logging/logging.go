// Package logging wires up Night-Kitchen's logging stack: structured,
// context-carried logging via github.com/containerd/log, backed by logrus,
// with an optional hook that duplicates entries to the systemd journal when
// running under it.
package logging

import (
	"fmt"

	"github.com/containerd/log"
	"github.com/coreos/go-systemd/v22/journal"
	"github.com/sirupsen/logrus"
)

// Configure installs process-wide logging defaults: text formatting with
// full timestamps (useful when not running under a journal that already
// timestamps entries) and, if debug is true, debug-level output.
func Configure(debug bool) error {
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if journal.Enabled() {
		logrus.AddHook(&journalHook{})
	}

	if debug {
		return log.SetLevel("debug")
	}
	return nil
}

// journalHook forwards every logrus entry to the systemd journal in
// addition to wherever logrus is already writing, so `journalctl -u
// night-kitchen-scheduler` shows the same structured fields as stdout.
type journalHook struct{}

func (h *journalHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *journalHook) Fire(entry *logrus.Entry) error {
	vars := make(map[string]string, len(entry.Data))
	for k, v := range entry.Data {
		vars[k] = toString(v)
	}
	return journal.Send(entry.Message, journalPriority(entry.Level), vars)
}

func journalPriority(level logrus.Level) journal.Priority {
	switch level {
	case logrus.PanicLevel, logrus.FatalLevel:
		return journal.PriCrit
	case logrus.ErrorLevel:
		return journal.PriErr
	case logrus.WarnLevel:
		return journal.PriWarning
	case logrus.InfoLevel:
		return journal.PriInfo
	default:
		return journal.PriDebug
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	if stringer, ok := v.(interface{ String() string }); ok {
		return stringer.String()
	}
	return fmt.Sprintf("%v", v)
}
