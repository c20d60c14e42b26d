// Package testlog provides a log handler for unit tests.
package testlog

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/log"
)

// Logger returns a logger which logs to the unit test log of t.
func Logger(t testing.TB, level slog.Level) log.Logger {
	w := &testWriter{t: t}
	t.Cleanup(w.close)
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, level, false))
}

// testWriter forwards complete lines to t.Log.
// Writes after the test finished are dropped, t.Log panics on those.
type testWriter struct {
	t    testing.TB
	mu   sync.Mutex
	buf  bytes.Buffer
	done bool
}

func (w *testWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done {
		return len(p), nil
	}
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// keep the partial line for the next write
			w.buf.Write(line)
			break
		}
		w.t.Helper()
		w.t.Log(string(bytes.TrimRight(line, "\n")))
	}
	return len(p), nil
}

func (w *testWriter) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() > 0 {
		w.t.Log(w.buf.String())
		w.buf.Reset()
	}
	w.done = true
}
