package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Logger struct {
	Verbose bool
	Debug   bool

	// Out and ErrOut default to os.Stdout and os.Stderr.
	Out    io.Writer
	ErrOut io.Writer

	// Sink receives every message, uncolored, regardless of verbosity.
	Sink io.Writer
}

// Printf writes a progress line that is always shown.
func (l Logger) Printf(msg string, args ...any) {
	l.emit(l.stdout(), "", nil, msg, args...)
}

func (l Logger) Infof(msg string, args ...any) {
	l.record("[info] ", msg, args...)
	if l.Verbose || l.Debug {
		l.write(l.stdout(), color.GreenString("[info] "), msg, args...)
	}
}

func (l Logger) Debugf(msg string, args ...any) {
	l.record("[debug] ", msg, args...)
	if l.Debug {
		l.write(l.stdout(), color.CyanString("[debug] "), msg, args...)
	}
}

func (l Logger) Warnf(msg string, args ...any) {
	l.emit(l.stderr(), "[warn] ", color.New(color.FgYellow), msg, args...)
}

func (l Logger) Errorf(msg string, args ...any) {
	l.emit(l.stderr(), "[error] ", color.New(color.FgRed), msg, args...)
}

func (l Logger) emit(w io.Writer, prefix string, c *color.Color, msg string, args ...any) {
	l.record(prefix, msg, args...)
	if c != nil {
		prefix = c.Sprint(prefix)
	}
	l.write(w, prefix, msg, args...)
}

func (l Logger) write(w io.Writer, prefix, msg string, args ...any) {
	fmt.Fprintf(w, prefix+msg+"\n", args...)
}

func (l Logger) record(prefix, msg string, args ...any) {
	if l.Sink == nil {
		return
	}
	fmt.Fprintf(l.Sink, prefix+msg+"\n", args...)
}

func (l Logger) stdout() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l Logger) stderr() io.Writer {
	if l.ErrOut != nil {
		return l.ErrOut
	}
	return os.Stderr
}
