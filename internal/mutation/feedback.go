package mutation

import (
	"fmt"
	"io"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Feedback surfaces the outcome of a mutation to the user.
type Feedback interface {
	Success(msg string)
	Error(msg string, err error)
	Info(msg string)
}

// LogFeedback reports through the logger only.
type LogFeedback struct {
	Log *log.Logger
}

func (f LogFeedback) Success(msg string) { f.Log.Info(msg) }

func (f LogFeedback) Error(msg string, err error) { f.Log.WithError(err).Error(msg) }

func (f LogFeedback) Info(msg string) { f.Log.Info(msg) }

// WriterFeedback prints one line per message, for terminals. Commits and
// fan-outs report from their own goroutines, so writes are serialised.
type WriterFeedback struct {
	mu  sync.Mutex
	out io.Writer
}

func NewWriterFeedback(w io.Writer) *WriterFeedback {
	return &WriterFeedback{out: w}
}

func (f *WriterFeedback) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.out, format, args...)
}

func (f *WriterFeedback) Success(msg string) { f.printf("✓ %s\n", msg) }

func (f *WriterFeedback) Error(msg string, err error) {
	if err != nil {
		f.printf("✗ %s: %v\n", msg, err)
		return
	}
	f.printf("✗ %s\n", msg)
}

func (f *WriterFeedback) Info(msg string) { f.printf("• %s\n", msg) }
