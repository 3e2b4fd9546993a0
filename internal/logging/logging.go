// Package logging configures zerolog for the server.
//
// Everything goes to stderr: stdout carries the stdio transport's frames and
// must never see a log line.
package logging

import (
	"bytes"
	"context"
	"io"
	stdlog "log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Options selects level and output format.
type Options struct {
	Level  string
	Format string // json | console
}

// New builds the process logger writing to stderr.
func New(opts Options) zerolog.Logger {
	return NewWithWriter(os.Stderr, opts)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(opts.Level)))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if strings.EqualFold(opts.Format, "console") {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// RedirectStdlib routes the standard library logger into l.
func RedirectStdlib(l zerolog.Logger) {
	stdlog.SetFlags(0)
	stdlog.SetOutput(l)
}

// Scope installs a buffered logger in ctx for the duration of one call.
// The returned restore func flushes what was captured to base at debug level
// and must be deferred; it is safe to call more than once.
func Scope(ctx context.Context, base zerolog.Logger, name string) (context.Context, func()) {
	sink := &syncBuffer{}
	scoped := zerolog.New(sink).Level(zerolog.DebugLevel).With().Timestamp().Str("scope", name).Logger()

	var once sync.Once
	restore := func() {
		once.Do(func() {
			if sink.Len() == 0 {
				return
			}
			base.Debug().
				Str("scope", name).
				Int("bytes", sink.Len()).
				RawJSON("diagnostics", sink.jsonLines()).
				Msg("captured runtime diagnostics")
		})
	}
	return scoped.WithContext(ctx), restore
}

// syncBuffer lets concurrent tasks of one call share the sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

// jsonLines turns the newline-delimited events into a JSON array.
func (b *syncBuffer) jsonLines() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n"))
	out := make([]byte, 0, b.buf.Len()+len(lines)+2)
	out = append(out, '[')
	for i, line := range lines {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, line...)
	}
	return append(out, ']')
}
