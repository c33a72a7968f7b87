package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    LogLevel
		wantErr bool
	}{
		{input: "ERROR", want: LevelError},
		{input: "warn", want: LevelWarn},
		{input: "Info", want: LevelInfo},
		{input: "debug", want: LevelDebug},
		{input: "TRACE", want: LevelTrace},
		{input: "loud", want: LevelInfo, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWithPrefixSharesLevel(t *testing.T) {
	logger, err := NewLogger("TEST", Options{Level: LevelInfo, Output: "stderr"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	child := logger.WithPrefix("child")

	if child.shouldLog(LevelDebug) {
		t.Error("Debug should be filtered at info level")
	}

	logger.SetLevel(LevelTrace)
	if !child.shouldLog(LevelTrace) {
		t.Error("Derived logger should follow the parent's level")
	}
	if child.Level() != LevelTrace {
		t.Errorf("Expected level %v, got %v", LevelTrace, child.Level())
	}
}

func TestLoggerWritesToFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "devfs.log")
	logger, err := NewLogger("TEST", Options{Level: LevelDebug, Format: "json", Output: out})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.WithPrefix("catalog").Info("registered %s", "motor")
	logger.Trace("dropped %d", 1)
	_ = logger.Sync()

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, "registered motor") {
		t.Errorf("Expected message in log output, got %q", text)
	}
	if !strings.Contains(text, "catalog") {
		t.Errorf("Expected logger name in log output, got %q", text)
	}
	if strings.Contains(text, "dropped") {
		t.Errorf("Trace message should be filtered at debug level, got %q", text)
	}
}
