package agent

import (
	"io"
	"sync"

	"github.com/hashicorp/logutils"
)

// validLogLevels is the ordered level set qnetd recognizes, matching the
// {level filter, gated writer} pattern serf's agent command uses to defer
// log output until startup has finished announcing itself.
var validLogLevels = []logutils.LogLevel{"TRACE", "DEBUG", "INFO", "WARN", "ERR"}

// newLevelFilter returns a logutils.LevelFilter with qnetd's level set
// and minLevel, or an error if minLevel isn't one of validLogLevels.
func newLevelFilter(minLevel string) (*logutils.LevelFilter, error) {
	f := &logutils.LevelFilter{
		Levels:   validLogLevels,
		MinLevel: logutils.LogLevel(minLevel),
	}
	for _, lvl := range f.Levels {
		if lvl == f.MinLevel {
			return f, nil
		}
	}
	return nil, errInvalidLogLevel(minLevel)
}

type errInvalidLogLevel string

func (e errInvalidLogLevel) Error() string {
	return "invalid log level: " + string(e)
}

// GatedWriter buffers everything written to it until Flush is called, so
// early startup logging (listener bind, cluster registry setup) can be
// held back until the CLI has finished printing its own banner.
type GatedWriter struct {
	Writer io.Writer

	mu     sync.Mutex
	buf    [][]byte
	flowed bool
}

func (w *GatedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.flowed {
		return w.Writer.Write(p)
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	w.buf = append(w.buf, cp)
	return len(p), nil
}

// Flush releases any buffered writes and switches to pass-through mode.
func (w *GatedWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flowed = true
	for _, p := range w.buf {
		w.Writer.Write(p)
	}
	w.buf = nil
}
