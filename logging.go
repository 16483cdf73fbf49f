package sequencer

import (
	"github.com/joeycumines/ilogrus"
	"github.com/joeycumines/logiface"
	"github.com/sirupsen/logrus"
)

// Logger is the narrow logging port the engine logs through. Any type with
// these methods can be supplied via WithLogger; NewLogrusLogger returns one
// backed by logrus through logiface and ilogrus, and a Program given no
// Logger uses a no-op one. Category mirrors the teacher's
// LogEntry.Category convention.
type Logger interface {
	Category(name string) Logger
	Debug(msg string, fields map[string]any)
	Info(msg string, fields map[string]any)
	Warn(msg string, fields map[string]any)
	Error(msg string, err error, fields map[string]any)
}

// logifaceLogger adapts a *logiface.Logger[*ilogrus.Event] to Logger. It is
// the concrete binding named in the ambient stack: logiface's generic core
// backed by ilogrus's logrus.Entry-based Event.
type logifaceLogger struct {
	l        *logiface.Logger[*ilogrus.Event]
	category string
}

// NewLogrusLogger builds a Logger backed by logrus, via logiface+ilogrus,
// the pairing used throughout the joeycumines-go-utilpkg monorepo.
func NewLogrusLogger(backend *logrus.Logger) Logger {
	return &logifaceLogger{l: ilogrus.L.New(ilogrus.L.WithLogrus(backend))}
}

func (l *logifaceLogger) Category(name string) Logger {
	return &logifaceLogger{l: l.l, category: name}
}

func (l *logifaceLogger) log(b *logiface.Builder[*ilogrus.Event], msg string, fields map[string]any) {
	if l.category != "" {
		b = b.Field(`category`, l.category)
	}
	for k, v := range fields {
		b = b.Field(k, v)
	}
	b.Log(msg)
}

func (l *logifaceLogger) Debug(msg string, fields map[string]any) {
	l.log(l.l.Debug(), msg, fields)
}

func (l *logifaceLogger) Info(msg string, fields map[string]any) {
	l.log(l.l.Info(), msg, fields)
}

func (l *logifaceLogger) Warn(msg string, fields map[string]any) {
	l.log(l.l.Warning(), msg, fields)
}

func (l *logifaceLogger) Error(msg string, err error, fields map[string]any) {
	b := l.l.Err()
	if l.category != "" {
		b = b.Field(`category`, l.category)
	}
	if err != nil {
		b = b.Err(err)
	}
	for k, v := range fields {
		b = b.Field(k, v)
	}
	b.Log(msg)
}

// nopLogger is the default Logger for a Program that doesn't supply one.
type nopLogger struct{}

func (nopLogger) Category(string) Logger                        { return nopLogger{} }
func (nopLogger) Debug(string, map[string]any)                  {}
func (nopLogger) Info(string, map[string]any)                   {}
func (nopLogger) Warn(string, map[string]any)                   {}
func (nopLogger) Error(string, error, map[string]any)           {}
