// Public domain.

// Package logging sets up the program logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cuantar/timing-analysis/internal/tim"
)

// New returns a text logger writing to w at level.
func New(level string, w io.Writer) (*logrus.Logger, error) {
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(lv)
	l.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
		DisableQuote:     true,
	})
	return l, nil
}

// SessionFileName returns the log file name for a session started at t,
// <source>.<nb|wb>.<YYYY-MM-DD_HH:MM:SS>.log.
func SessionFileName(source string, typ tim.Type, t time.Time) string {
	return fmt.Sprintf("%s.%s.%s.log", source, typ.Abbr(), t.Format("2006-01-02_15:04:05"))
}

// Tee adds a session log file in dir to l.  File entries carry timestamps.
// The returned function closes the file and restores l's output.
func Tee(l *logrus.Logger, dir, source string, typ tim.Type, t time.Time) (string, func() error, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", nil, err
	}
	fn := filepath.Join(dir, SessionFileName(source, typ, t))
	f, err := os.Create(fn)
	if err != nil {
		return "", nil, err
	}
	h := &fileHook{w: f, f: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}}
	l.AddHook(h)
	return fn, func() error {
		h.closed = true
		return f.Close()
	}, nil
}

type fileHook struct {
	w      io.Writer
	f      logrus.Formatter
	closed bool
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(e *logrus.Entry) error {
	if h.closed || !e.Logger.IsLevelEnabled(e.Level) {
		return nil
	}
	b, err := h.f.Format(e)
	if err != nil {
		return err
	}
	_, err = h.w.Write(b)
	return err
}
