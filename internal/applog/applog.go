// Package applog is the hub's process logger: timestamped, level-tagged
// lines to stderr. No structured-logging library — see DESIGN.md.
package applog

import (
	"fmt"
	"log"
	"os"
)

// Logger writes level-tagged lines for a single component, e.g. "router" or
// "registry", matching the bracketed-tag style of a small stdio tool.
type Logger struct {
	component string
	std       *log.Logger
}

// New returns a Logger tagged with component, writing to stderr.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (l *Logger) log(level, format string, args ...any) {
	l.std.Printf("%s [%s] %s", level, l.component, fmt.Sprintf(format, args...))
}

// Info logs an informational line.
func (l *Logger) Info(format string, args ...any) { l.log("INFO", format, args...) }

// Warn logs a warning line.
func (l *Logger) Warn(format string, args ...any) { l.log("WARN", format, args...) }

// Error logs an error line.
func (l *Logger) Error(format string, args ...any) { l.log("ERROR", format, args...) }
