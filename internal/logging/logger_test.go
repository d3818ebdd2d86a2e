package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestComponentLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewComponentLogger(ComponentLoggerConfig{
		ComponentName: "TEST",
		Color:         color.FgRed,
		EnabledLevels: []LogLevel{INFO, ERROR},
	})

	logger.Info("test info message")
	output := buf.String()
	if !strings.Contains(output, "[TEST]") {
		t.Errorf("expected component name in output, got: %s", output)
	}
	if !strings.Contains(output, "test info message") {
		t.Errorf("expected message in output, got: %s", output)
	}

	buf.Reset()
	logger.Debug("test debug message")
	if buf.Len() > 0 {
		t.Errorf("expected no output for disabled level, got: %s", buf.String())
	}

	logger.Error("test error message")
	if !strings.Contains(buf.String(), "test error message") {
		t.Errorf("expected error message in output, got: %s", buf.String())
	}
}

func TestComponentLogger_LevelMethods(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := NewComponentLogger(ComponentLoggerConfig{
		ComponentName: "TEST",
		EnabledLevels: []LogLevel{DEBUG, INFO, WARN, ERROR},
	})

	tests := []struct {
		method   func(string, ...interface{})
		message  string
		expected string
	}{
		{logger.Debug, "debug message", "debug message"},
		{logger.Info, "info message", "info message"},
		{logger.Warn, "warn message", "warn message"},
		{logger.Error, "error message", "error message"},
	}

	for _, tt := range tests {
		buf.Reset()
		tt.method(tt.message)
		if !strings.Contains(buf.String(), tt.expected) {
			t.Errorf("expected %q in output, got: %s", tt.expected, buf.String())
		}
	}
}

func TestLoggerFactory_GetLogger(t *testing.T) {
	factory := &LoggerFactory{}

	tests := []struct {
		component string
		expected  *ComponentLogger
	}{
		{"ROUTER", RouterLogger},
		{"COMPLETION", CompletionLogger},
		{"RAG", RAGLogger},
		{"SERVER", ServerLogger},
		{"STORAGE", StorageLogger},
	}

	for _, tt := range tests {
		if got := factory.GetLogger(tt.component); got != tt.expected {
			t.Errorf("expected %v for component %s, got %v", tt.expected, tt.component, got)
		}
	}

	if factory.GetLogger("UNKNOWN") == nil {
		t.Error("expected a logger for an unknown component, got nil")
	}
}

func TestComponentLoggerConfig_DefaultLevels(t *testing.T) {
	logger := NewComponentLogger(ComponentLoggerConfig{ComponentName: "TEST"})

	for _, level := range []LogLevel{DEBUG, INFO, WARN, ERROR} {
		if !logger.enabled[level] {
			t.Errorf("expected level %s to be enabled by default", level)
		}
	}
}
