package logging

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// ConsoleLogger writes one line per message. Verbose and Error lines carry a
// bracketed level prefix; Info lines are written as-is.
// Safe for concurrent use by multiple goroutines.
type ConsoleLogger struct {
	out     io.Writer
	verbose bool
	mu      sync.Mutex
}

// NewConsoleLogger logs to stderr. Verbose calls are dropped unless verbose is true.
func NewConsoleLogger(verbose bool) *ConsoleLogger {
	return NewWriterLogger(os.Stderr, verbose)
}

// NewWriterLogger logs to out.
func NewWriterLogger(out io.Writer, verbose bool) *ConsoleLogger {
	return &ConsoleLogger{out: out, verbose: verbose}
}

func (l *ConsoleLogger) Verbose(format string, args ...interface{}) {
	if !l.verbose {
		return
	}
	l.write("[VERBOSE] ", format, args)
}

func (l *ConsoleLogger) Info(format string, args ...interface{}) {
	l.write("", format, args)
}

func (l *ConsoleLogger) Error(format string, args ...interface{}) {
	l.write("[ERROR] ", format, args)
}

func (l *ConsoleLogger) write(prefix, format string, args []interface{}) {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, prefix+msg+"\n")
}

// NullLogger discards everything. Tests and library callers that want silence use it.
type NullLogger struct{}

func NewNullLogger() *NullLogger { return &NullLogger{} }

func (*NullLogger) Verbose(string, ...interface{}) {}
func (*NullLogger) Info(string, ...interface{})    {}
func (*NullLogger) Error(string, ...interface{})   {}
