package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger(LevelInfo)

	if logger == nil {
		t.Fatal("Expected non-nil logger")
	}

	if logger.minLevel != LevelInfo {
		t.Errorf("Expected minLevel to be %s, got %s", LevelInfo, logger.minLevel)
	}

	if logger.format != FormatJSON {
		t.Errorf("Expected format to be %s, got %s", FormatJSON, logger.format)
	}
}

func TestLogger_ShouldLog(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		logLevel Level
		want     bool
	}{
		{"debug logs when min is debug", LevelDebug, LevelDebug, true},
		{"info logs when min is debug", LevelDebug, LevelInfo, true},
		{"error logs when min is debug", LevelDebug, LevelError, true},
		{"debug does not log when min is info", LevelInfo, LevelDebug, false},
		{"info logs when min is info", LevelInfo, LevelInfo, true},
		{"error logs when min is info", LevelInfo, LevelError, true},
		{"info does not log when min is error", LevelError, LevelInfo, false},
		{"error logs when min is error", LevelError, LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := NewLogger(tt.minLevel)
			got := logger.shouldLog(tt.logLevel)
			if got != tt.want {
				t.Errorf("shouldLog() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogger_Log(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, FormatJSON, &buf)

	payload := map[string]interface{}{
		"key": "value",
		"num": 42,
	}
	logger.Log(LevelInfo, "test.event", "Test message", payload)

	var event Event
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("Failed to parse log output as JSON: %v\nOutput: %s", err, buf.String())
	}

	if event.Level != LevelInfo {
		t.Errorf("Expected level %s, got %s", LevelInfo, event.Level)
	}

	if event.Type != "test.event" {
		t.Errorf("Expected type 'test.event', got %s", event.Type)
	}

	if event.Message != "Test message" {
		t.Errorf("Expected message 'Test message', got %s", event.Message)
	}

	if event.Payload["key"] != "value" {
		t.Errorf("Expected payload key 'key' to be 'value', got %v", event.Payload["key"])
	}

	if event.Timestamp == "" {
		t.Error("Expected timestamp to be set")
	}
}

func TestLogger_Error(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelError, FormatJSON, &buf)

	logger.Error("test.error", "Error message", map[string]interface{}{"code": 500})

	output := buf.String()
	if !strings.Contains(output, "test.error") {
		t.Errorf("Expected output to contain 'test.error', got: %s", output)
	}

	if !strings.Contains(output, "Error message") {
		t.Errorf("Expected output to contain 'Error message', got: %s", output)
	}

	if !strings.Contains(output, "500") {
		t.Errorf("Expected output to contain '500', got: %s", output)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelWarn, FormatJSON, &buf)

	logger.Info("test.filtered", "Should not appear", nil)

	if strings.TrimSpace(buf.String()) != "" {
		t.Errorf("Expected no output for filtered log, got: %s", buf.String())
	}
}

func TestTextLogger_Format(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(LevelInfo, FormatText, &buf)

	logger.Info("check.result", "verdict computed", map[string]interface{}{
		"verdict": "idle",
		"signals": 3,
	})

	output := buf.String()
	if strings.Contains(output, "{") {
		t.Errorf("Text format should not emit JSON, got: %s", output)
	}
	if !strings.Contains(output, "check.result") {
		t.Errorf("Expected output to contain event type, got: %s", output)
	}
	if !strings.Contains(output, "verdict=idle") {
		t.Errorf("Expected output to contain 'verdict=idle', got: %s", output)
	}
	if !strings.Contains(output, "signals=3") {
		t.Errorf("Expected output to contain 'signals=3', got: %s", output)
	}
}

func TestTextLogger_StablePayloadOrder(t *testing.T) {
	payload := map[string]interface{}{
		"b": 2,
		"a": 1,
		"c": 3,
	}

	first := formatText(Event{Type: "t", Message: "m", Payload: payload})
	for i := 0; i < 20; i++ {
		if got := formatText(Event{Type: "t", Message: "m", Payload: payload}); got != first {
			t.Fatalf("formatText not stable: %q vs %q", got, first)
		}
	}

	if !strings.Contains(first, "a=1 b=2 c=3") {
		t.Errorf("Expected sorted payload keys, got: %s", first)
	}
}

func TestNewFileLogger(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "doze-log-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := tmpDir + "/test.log"
	logger, err := NewFileLogger(LevelInfo, logPath)
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestNewFileLogger_CreatesDirectory(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "doze-log-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := tmpDir + "/logs/app/test.log"
	logger, err := NewFileLogger(LevelInfo, logPath)
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestFileLogger_WritesJSON(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "doze-log-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := tmpDir + "/test.log"
	logger, err := NewFileLogger(LevelInfo, logPath)
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}

	logger.Info("test.event", "Test message", map[string]interface{}{
		"key": "value",
	})

	if closeErr := logger.Close(); closeErr != nil {
		t.Fatalf("Failed to close logger: %v", closeErr)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	var event Event
	if err := json.Unmarshal(content, &event); err != nil {
		t.Fatalf("Log content is not valid JSON: %v", err)
	}

	if event.Level != LevelInfo {
		t.Errorf("Expected level %s, got %s", LevelInfo, event.Level)
	}
	if event.Type != "test.event" {
		t.Errorf("Expected type 'test.event', got %s", event.Type)
	}
	if event.Message != "Test message" {
		t.Errorf("Expected message 'Test message', got %s", event.Message)
	}
}

func TestFileLogger_Append(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "doze-log-test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	logPath := tmpDir + "/test.log"

	logger1, err := NewFileLogger(LevelInfo, logPath)
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}
	logger1.Info("test.first", "First message", nil)
	if closeErr := logger1.Close(); closeErr != nil {
		t.Fatalf("Failed to close logger: %v", closeErr)
	}

	logger2, err := NewFileLogger(LevelInfo, logPath)
	if err != nil {
		t.Fatalf("Failed to create file logger: %v", err)
	}
	logger2.Info("test.second", "Second message", nil)
	if closeErr := logger2.Close(); closeErr != nil {
		t.Fatalf("Failed to close logger: %v", closeErr)
	}

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	contentStr := string(content)
	if !strings.Contains(contentStr, "test.first") {
		t.Error("First event was not found")
	}
	if !strings.Contains(contentStr, "test.second") {
		t.Error("Second event was not appended")
	}
}
