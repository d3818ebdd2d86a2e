// Package logging provides a small component-scoped logger used across the
// gateway: routing decisions, provider calls, and RAG ingestion each log
// through a named, colorized prefix so a reader can grep a component out of
// mixed output.
package logging

import (
	"fmt"
	"log"
	"sync"

	"github.com/fatih/color"
)

// LogLevel is a logging severity.
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

// ComponentLoggerConfig configures a ComponentLogger.
type ComponentLoggerConfig struct {
	ComponentName string
	Color         color.Attribute
	EnabledLevels []LogLevel // empty means all levels enabled
}

// ComponentLogger writes leveled, component-prefixed lines to the stdlib
// logger. It is safe for concurrent use.
type ComponentLogger struct {
	name    string
	color   *color.Color
	enabled map[LogLevel]bool
	mu      sync.Mutex
}

// NewComponentLogger builds a logger for one named component.
func NewComponentLogger(cfg ComponentLoggerConfig) *ComponentLogger {
	enabled := map[LogLevel]bool{}
	if len(cfg.EnabledLevels) == 0 {
		enabled[DEBUG] = true
		enabled[INFO] = true
		enabled[WARN] = true
		enabled[ERROR] = true
	} else {
		for _, lvl := range cfg.EnabledLevels {
			enabled[lvl] = true
		}
	}

	c := cfg.Color
	if c == 0 {
		c = color.FgWhite
	}

	return &ComponentLogger{
		name:    cfg.ComponentName,
		color:   color.New(c),
		enabled: enabled,
	}
}

func (l *ComponentLogger) log(level LogLevel, format string, args ...interface{}) {
	if !l.enabled[level] {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	prefix := l.color.Sprintf("[%s] %s", l.name, level)
	log.Print(prefix + " " + fmt.Sprintf(format, args...))
}

func (l *ComponentLogger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *ComponentLogger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *ComponentLogger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *ComponentLogger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// LoggerFactory hands out well-known component loggers by name, falling back
// to a freshly constructed one for anything it doesn't recognize.
type LoggerFactory struct{}

var (
	RouterLogger     = NewComponentLogger(ComponentLoggerConfig{ComponentName: "ROUTER", Color: color.FgCyan})
	CompletionLogger = NewComponentLogger(ComponentLoggerConfig{ComponentName: "COMPLETION", Color: color.FgGreen})
	RAGLogger        = NewComponentLogger(ComponentLoggerConfig{ComponentName: "RAG", Color: color.FgMagenta})
	ServerLogger     = NewComponentLogger(ComponentLoggerConfig{ComponentName: "SERVER", Color: color.FgYellow})
	StorageLogger    = NewComponentLogger(ComponentLoggerConfig{ComponentName: "STORAGE", Color: color.FgBlue})
)

// GetLogger resolves a named component to its shared logger.
func (f *LoggerFactory) GetLogger(component string) *ComponentLogger {
	switch component {
	case "ROUTER":
		return RouterLogger
	case "COMPLETION":
		return CompletionLogger
	case "RAG":
		return RAGLogger
	case "SERVER":
		return ServerLogger
	case "STORAGE":
		return StorageLogger
	default:
		return NewComponentLogger(ComponentLoggerConfig{ComponentName: component})
	}
}

// LogInfo/LogError are convenience helpers for call sites that don't want to
// hold onto a *ComponentLogger.
func LogInfo(component, format string, args ...interface{}) {
	(&LoggerFactory{}).GetLogger(component).Info(format, args...)
}

func LogError(component, format string, args ...interface{}) {
	(&LoggerFactory{}).GetLogger(component).Error(format, args...)
}
