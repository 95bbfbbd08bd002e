package debug

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnabled(t *testing.T) {
	tests := []struct {
		name    string
		enabled bool
		verbose bool
		want    bool
	}{
		{"enabled via env", true, false, true},
		{"enabled via verbose", false, true, true},
		{"disabled", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled := enabled
			oldVerbose := verboseMode
			defer func() {
				enabled = oldEnabled
				verboseMode = oldVerbose
			}()

			enabled = tt.enabled
			verboseMode = tt.verbose

			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		format     string
		args       []interface{}
		wantOutput string
	}{
		{
			name:       "outputs when enabled",
			enabled:    true,
			format:     "push failed: %s\n",
			args:       []interface{}{"no route to host"},
			wantOutput: "push failed: no route to host\n",
		},
		{
			name:       "no output when disabled",
			enabled:    false,
			format:     "push failed: %s\n",
			args:       []interface{}{"no route to host"},
			wantOutput: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldEnabled := enabled
			oldStderr := os.Stderr
			defer func() {
				enabled = oldEnabled
				os.Stderr = oldStderr
			}()

			enabled = tt.enabled

			r, w, _ := os.Pipe()
			os.Stderr = w

			Logf(tt.format, tt.args...)

			w.Close()
			var buf bytes.Buffer
			io.Copy(&buf, r)

			if got := buf.String(); got != tt.wantOutput {
				t.Errorf("Logf() output = %q, want %q", got, tt.wantOutput)
			}
		})
	}
}

func TestPrintNormalRespectsQuiet(t *testing.T) {
	oldQuiet := quietMode
	oldStdout := os.Stdout
	defer func() {
		quietMode = oldQuiet
		os.Stdout = oldStdout
	}()

	quietMode = true

	r, w, _ := os.Pipe()
	os.Stdout = w

	PrintNormal("should not appear\n")
	PrintlnNormal("also hidden")

	w.Close()
	var buf bytes.Buffer
	io.Copy(&buf, r)

	if buf.Len() != 0 {
		t.Errorf("quiet mode leaked output: %q", buf.String())
	}
}

func TestLogEventWritesToTasksDir(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".mcp-tasks"), 0755); err != nil {
		t.Fatal(err)
	}

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	LogEventWithContext("TASK_COMPLETED", 7, "agent-1", "sess-1", "merged")

	data, err := os.ReadFile(filepath.Join(root, ".mcp-tasks", "events.log"))
	if err != nil {
		t.Fatalf("reading events.log: %v", err)
	}
	line := strings.TrimSpace(string(data))
	parts := strings.Split(line, "|")
	if len(parts) != 6 {
		t.Fatalf("got %d fields, want 6: %q", len(parts), line)
	}
	if parts[1] != "TASK_COMPLETED" || parts[2] != "7" || parts[3] != "agent-1" || parts[4] != "sess-1" || parts[5] != "merged" {
		t.Errorf("unexpected event line: %q", line)
	}
}

func TestLogEventSilentOutsideProject(t *testing.T) {
	root := t.TempDir()

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(root); err != nil {
		t.Fatal(err)
	}

	// Must not panic or create files anywhere under root.
	LogEvent("TASK_CREATED", 1, "new")

	if _, err := os.Stat(filepath.Join(root, ".mcp-tasks")); !os.IsNotExist(err) {
		t.Error("LogEvent created a tasks dir outside a project")
	}
}
