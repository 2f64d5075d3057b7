// Package logutil keeps the teacher's Logger shape — Event(...any),
// Fatal(...any) — but backs the file sink with lumberjack for
// rotation, since this is a long-running daemon rather than a
// one-shot CLI run (see SPEC_FULL.md Ambient Stack).
package logutil

import (
	"fmt"
	"log"
	"os"
	"time"

	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// OperationSink receives every line Logger.TraceEvent emits, together
// with its trace id; lines logged with Event are not passed to sinks.
type OperationSink func(traceID, message string)

type Logger struct {
	out      *lumberjack.Logger
	sinks    []OperationSink
	filename string
}

// NewLogger opens (creating if necessary) a rotating log file. An
// empty filename logs to stderr only, which is convenient for tests
// and for `go run` during development.
func NewLogger(filename string) *Logger {
	l := &Logger{filename: filename}
	if filename != "" {
		l.out = &lumberjack.Logger{
			Filename:   filename,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
	}
	return l
}

// AddSink registers a callback invoked for every logged line that
// carries a trace id (see TraceEvent).
func (l *Logger) AddSink(sink OperationSink) {
	l.sinks = append(l.sinks, sink)
}

func (l *Logger) write(prefix string, message string) {
	line := fmt.Sprintf("%s: %s: %s", l.timestamp(), prefix, message)
	if l.out != nil {
		fmt.Fprintln(l.out, line)
	} else {
		fmt.Fprintln(os.Stderr, line)
	}
}

// Event logs an untraced informational line.
func (l *Logger) Event(message ...any) {
	l.write("Event", fmt.Sprint(message...))
}

// TraceEvent logs a line attributed to a specific Operation trace id
// and fans it out to every sink registered with AddSink.
func (l *Logger) TraceEvent(traceID string, message ...any) {
	text := fmt.Sprint(message...)
	l.write(fmt.Sprintf("Event[%s]", traceID), text)
	for _, sink := range l.sinks {
		sink(traceID, text)
	}
}

// Fatal logs a fatal line and terminates the process. Reserved for
// startup failures; request-handling code must never call this, since
// a single bad request would otherwise take the whole daemon down —
// see SPEC_FULL.md's note on inverting the teacher's Fatal discipline.
func (l *Logger) Fatal(message ...any) {
	l.write("Fatal", fmt.Sprint(message...))
	log.Fatal(message...)
}

func (l *Logger) timestamp() string {
	return time.Now().Format("2006-01-02 15:04:05")
}
