package domain

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Reporter is the user-facing diagnostic sink. The web layer flashes these
// messages to the operator; this core only requires that every skipped line,
// rejected variant and resolver failure produce exactly one message through
// it.
type Reporter interface {
	Report(message string)
}

// LogReporter forwards diagnostics to a structured logger at warning level.
type LogReporter struct {
	Log *logrus.Logger
}

func (r *LogReporter) Report(message string) {
	r.Log.Warn(message)
}

// CaptureReporter records diagnostics in order. Used by tests and by the
// batch result to surface per-item messages to the caller.
type CaptureReporter struct {
	mu       sync.Mutex
	messages []string
}

func (r *CaptureReporter) Report(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
}

// Messages returns a copy of everything reported so far.
func (r *CaptureReporter) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.messages))
	copy(out, r.messages)
	return out
}

// MultiReporter fans one diagnostic out to several sinks.
type MultiReporter []Reporter

func (m MultiReporter) Report(message string) {
	for _, r := range m {
		r.Report(message)
	}
}
