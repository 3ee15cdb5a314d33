package logging

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Reporter is the host's non-halting error channel. Reports go to the
// logger at error level and, when an output is set, verbatim to it.
type Reporter struct {
	log *zap.Logger
	out io.Writer
	mu  sync.Mutex
}

// NewReporter returns a reporter writing to log and out. Either may be nil.
func NewReporter(log *zap.Logger, out io.Writer) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{log: log, out: out}
}

// ErrorNoHalt reports an error without interrupting the caller.
func (r *Reporter) ErrorNoHalt(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	r.log.Error("script error", zap.String("diagnostic", strings.TrimSpace(msg)))

	if r.out == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = io.WriteString(r.out, msg)
}
