package logger

import (
	"bytes"
	"strings"
	"testing"
)

func TestComponentLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &componentLogger{log: newZerolog("planner", Config{Level: "warn"}, &buf)}

	l.Infof("below threshold")
	l.Warnf("cap reached for %s", "gpu-1")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Fatalf("info line emitted at warn level: %s", out)
	}
	if !strings.Contains(out, "cap reached for gpu-1") {
		t.Fatalf("warn line missing: %s", out)
	}
	if !strings.Contains(out, `"component":"planner"`) {
		t.Fatalf("component field missing: %s", out)
	}
}

func TestComponentLoggerConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	l := &componentLogger{log: newZerolog("service", Config{Format: "console"}, &buf)}

	l.Infof("started")
	out := buf.String()
	if out == "" {
		t.Fatalf("console logger wrote nothing")
	}
	if strings.HasPrefix(out, "{") {
		t.Fatalf("console format emitted JSON: %s", out)
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", Config{}, false},
		{"debug json", Config{Level: "debug", Format: "json"}, false},
		{"console", Config{Level: "info", Format: "console"}, false},
		{"bad level", Config{Level: "verbose"}, true},
		{"bad format", Config{Format: "xml"}, true},
	}
	for _, c := range cases {
		if err := c.cfg.Validate(); (err != nil) != c.wantErr {
			t.Errorf("%s: got err=%v", c.name, err)
		}
	}
}
