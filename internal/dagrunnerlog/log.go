// Package dagrunnerlog is a thin structured-logging facade over zerolog,
// in the spirit of the logiface/izerolog family: a small interface the rest
// of the module codes against, with zerolog as the only backend wired in.
package dagrunnerlog

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the narrow structured-logging surface the engine depends on. It
// exists so call sites don't import zerolog directly, keeping the backend
// swappable the way logiface's facade keeps stumpy/izerolog swappable.
type Logger interface {
	Info() Event
	Warn() Event
	Error() Event
	With() Context
}

// Event is a single in-flight log record under construction.
type Event interface {
	Str(key, value string) Event
	Int(key string, value int) Event
	Int64(key string, value int64) Event
	Dur(key string, value time.Duration) Event
	Err(err error) Event
	Bool(key string, value bool) Event
	Msg(msg string)
}

// Context builds a child Logger with fields pinned on every subsequent event.
type Context interface {
	Str(key, value string) Context
	Logger() Logger
}

type zlogger struct{ l zerolog.Logger }

// New returns a Logger writing human-readable console output to w (or
// os.Stderr if w is nil), for local/CLI runs.
func New(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	return &zlogger{l: zerolog.New(console).With().Timestamp().Logger()}
}

// NewJSON returns a Logger writing newline-delimited JSON, suitable for a
// networked log sink.
func NewJSON(w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &zlogger{l: zerolog.New(w).With().Timestamp().Logger()}
}

func (z *zlogger) Info() Event  { return &zevent{e: z.l.Info()} }
func (z *zlogger) Warn() Event  { return &zevent{e: z.l.Warn()} }
func (z *zlogger) Error() Event { return &zevent{e: z.l.Error()} }
func (z *zlogger) With() Context { return &zcontext{c: z.l.With()} }

type zevent struct{ e *zerolog.Event }

func (z *zevent) Str(key, value string) Event { z.e = z.e.Str(key, value); return z }
func (z *zevent) Int(key string, value int) Event { z.e = z.e.Int(key, value); return z }
func (z *zevent) Int64(key string, value int64) Event { z.e = z.e.Int64(key, value); return z }
func (z *zevent) Dur(key string, value time.Duration) Event { z.e = z.e.Dur(key, value); return z }
func (z *zevent) Err(err error) Event { z.e = z.e.Err(err); return z }
func (z *zevent) Bool(key string, value bool) Event { z.e = z.e.Bool(key, value); return z }
func (z *zevent) Msg(msg string) { z.e.Msg(msg) }

type zcontext struct{ c zerolog.Context }

func (z *zcontext) Str(key, value string) Context { z.c = z.c.Str(key, value); return z }
func (z *zcontext) Logger() Logger                { return &zlogger{l: z.c.Logger()} }

// Nop is a Logger that discards everything, used in tests that don't care
// about log output.
func Nop() Logger { return &zlogger{l: zerolog.Nop()} }
