package pkg

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestSetLogLevel(t *testing.T) {
	original := GetLogLevel()
	defer SetLogLevel(original)

	tests := []struct {
		name  string
		level slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SetLogLevel(tt.level)
			if got := GetLogLevel(); got != tt.level {
				t.Errorf("GetLogLevel() = %v, want %v", got, tt.level)
			}
		})
	}
}

func TestNewJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewJSONLogger(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	if logger == nil {
		t.Fatal("NewJSONLogger returned nil")
	}

	logger.Info("test message")
	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("JSON log output missing message: %s", output)
	}
}

func TestLogComponents(t *testing.T) {
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	tests := []struct {
		name      string
		log       func(Component, string, ...any)
		component Component
	}{
		{"debug", LogDebug, ComponentTransfer},
		{"info", LogInfo, ComponentCard},
		{"warn", LogWarn, ComponentDisk},
		{"error", LogError, ComponentLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			tt.log(tt.component, tt.name+" message", "key", "value")
			output := buf.String()
			if !strings.Contains(output, tt.name+" message") {
				t.Errorf("log missing message: %s", output)
			}
			if !strings.Contains(output, "component="+string(tt.component)) {
				t.Errorf("log missing component: %s", output)
			}
			if !strings.Contains(output, "key=value") {
				t.Errorf("log missing attribute: %s", output)
			}
		})
	}
}

func TestLogEnabled(t *testing.T) {
	original := DefaultLogger
	defer func() { DefaultLogger = original }()

	var buf bytes.Buffer
	SetLogger(NewLogger(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	if LogEnabled(slog.LevelDebug) {
		t.Error("LogEnabled(debug) = true at warn level")
	}
	if !LogEnabled(slog.LevelError) {
		t.Error("LogEnabled(error) = false at warn level")
	}

	LogDebug(ComponentSim, "suppressed")
	if buf.Len() != 0 {
		t.Errorf("debug record written at warn level: %s", buf.String())
	}
}

func TestSetLogFormat(t *testing.T) {
	original := DefaultLogger
	defer func() { DefaultLogger = original }()
	level := GetLogLevel()
	defer SetLogLevel(level)
	SetLogLevel(slog.LevelInfo)

	var buf bytes.Buffer
	SetLogFormat(LogFormatJSON, &buf)
	LogInfo(ComponentStorage, "json record")
	if !strings.Contains(buf.String(), `"component":"storage"`) {
		t.Errorf("JSON format not applied: %s", buf.String())
	}

	buf.Reset()
	SetLogFormat(LogFormatText, &buf)
	LogInfo(ComponentStorage, "text record")
	if !strings.Contains(buf.String(), "component=storage") {
		t.Errorf("text format not applied: %s", buf.String())
	}
}
