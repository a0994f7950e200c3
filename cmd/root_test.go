package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		level     string
		format    string
		debugSeen bool
		infoSeen  bool
	}{
		{"debug", "json", true, true},
		{"info", "json", false, true},
		{"warn", "text", false, false},
		{"bogus", "text", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.level+"-"+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			l := newLogger(&buf, tt.level, tt.format)

			if got := l.Enabled(context.Background(), slog.LevelDebug); got != tt.debugSeen {
				t.Errorf("debug enabled = %v, want %v", got, tt.debugSeen)
			}
			if got := l.Enabled(context.Background(), slog.LevelInfo); got != tt.infoSeen {
				t.Errorf("info enabled = %v, want %v", got, tt.infoSeen)
			}

			l.Error("boom", "key", "value")
			line := strings.TrimSpace(buf.String())
			if tt.format == "json" {
				var m map[string]any
				if err := json.Unmarshal([]byte(line), &m); err != nil {
					t.Fatalf("Expected JSON log line, got %q", line)
				}
				if m["msg"] != "boom" || m["key"] != "value" {
					t.Errorf("Unexpected log record: %v", m)
				}
			} else if !strings.Contains(line, "msg=boom") || !strings.Contains(line, "key=value") {
				t.Errorf("Unexpected text log line: %q", line)
			}
		})
	}
}
