package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/codemonument/sftpc/internal/plan"
)

func TestSettings(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)

	if !o.useColor || o.debug {
		t.Fatalf("expected color on and debug off by default, got color=%v debug=%v", o.useColor, o.debug)
	}

	o.SetColor(false)
	o.SetDebug(true)
	if o.useColor || !o.debug {
		t.Errorf("expected color off and debug on, got color=%v debug=%v", o.useColor, o.debug)
	}

	if got := o.color(colorGreen, "x"); got != "x" {
		t.Errorf("expected plain text without color, got %q", got)
	}
	o.SetColor(true)
	if got := o.color(colorGreen, "x"); got != colorGreen+"x"+colorReset {
		t.Errorf("expected colored text, got %q", got)
	}
}

func TestStepResult(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		stepName string
		status   string
		debug    bool
		message  string
		wantIn   []string
		wantOut  []string
	}{
		{
			name:     "ok status",
			stepName: "Read cwd",
			status:   "ok",
			wantIn:   []string{"✓", "Read cwd"},
		},
		{
			name:     "changed status",
			stepName: "Upload report",
			status:   "changed",
			wantIn:   []string{"✓", "Upload report"},
		},
		{
			name:     "skipped status",
			stepName: "Skipped Step",
			status:   "skipped (dry run)",
			wantIn:   []string{"○", "Skipped Step"},
		},
		{
			name:     "failed status",
			stepName: "Failed Step",
			status:   "failed",
			message:  "cd into 'x' failed",
			wantIn:   []string{"✗", "Failed Step"},
			wantOut:  []string{"cd into 'x' failed"},
		},
		{
			name:     "labelled",
			label:    "backup",
			stepName: "Upload",
			status:   "changed",
			wantIn:   []string{"[backup] Upload"},
		},
		{
			name:     "debug with message",
			stepName: "Debug Step",
			status:   "ok",
			debug:    true,
			message:  "some details",
			wantIn:   []string{"✓", "Debug Step", "→", "some details"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			o := New(&buf)
			o.SetColor(false)
			o.SetDebug(tt.debug)

			o.StepResult(tt.label, tt.stepName, tt.status, tt.message)

			output := buf.String()
			for _, want := range tt.wantIn {
				if !strings.Contains(output, want) {
					t.Errorf("expected output to contain %q, got %q", want, output)
				}
			}
			for _, unwanted := range tt.wantOut {
				if strings.Contains(output, unwanted) {
					t.Errorf("expected output not to contain %q, got %q", unwanted, output)
				}
			}
		})
	}
}

func TestStepOutput(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.StepOutput([]string{"a.txt"})
	if buf.Len() != 0 {
		t.Errorf("expected no output without debug, got %q", buf.String())
	}

	o.SetDebug(true)
	o.StepOutput([]string{"a.txt", "b.txt"})
	if !strings.Contains(buf.String(), "output:") || !strings.Contains(buf.String(), "        b.txt") {
		t.Errorf("unexpected step output %q", buf.String())
	}
}

func TestPlanStart(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	o.PlanFileStart("deploy.yaml")
	o.PlanStart(&plan.Plan{Name: "Publish", Host: "deploy@example.com"})

	output := buf.String()
	if !strings.Contains(output, "PLAN FILE deploy.yaml") {
		t.Errorf("expected file banner, got %q", output)
	}
	if !strings.Contains(output, "PLAN Publish (deploy@example.com)") {
		t.Errorf("expected plan banner, got %q", output)
	}
}

func TestConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			o.Info("session %d", i)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d: %q", len(lines), buf.String())
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "INFO session ") {
			t.Errorf("interleaved line %q", line)
		}
	}
}

// TestLoggerLevels covers Output as the session logger.
func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name  string
		debug bool
		log   func(o *Output)
		want  string
	}{
		{"info", false, func(o *Output) { o.Info("[s1] sent %s", "pwd") }, "INFO [s1] sent pwd\n"},
		{"warn", false, func(o *Output) { o.Warn("[s1] unrecognized: %s", "???") }, "WARN [s1] unrecognized: ???\n"},
		{"error", false, func(o *Output) { o.Error("[s1] cd into '%s' failed", "/x") }, "ERROR [s1] cd into '/x' failed\n"},
		{"debug on", true, func(o *Output) { o.Debug("[s1] %d pending", 2) }, "DEBUG [s1] 2 pending\n"},
		{"debug off", false, func(o *Output) { o.Debug("[s1] %d pending", 2) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			o := New(&buf)
			o.SetColor(false)
			o.SetDebug(tt.debug)

			tt.log(o)
			if buf.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, buf.String())
			}
		})
	}
}

// mockStats implements the Stats interface for testing
type mockStats struct {
	ok, changed, failed, skipped int
	duration                     time.Duration
}

func (m *mockStats) GetOK() int                 { return m.ok }
func (m *mockStats) GetChanged() int            { return m.changed }
func (m *mockStats) GetFailed() int             { return m.failed }
func (m *mockStats) GetSkipped() int            { return m.skipped }
func (m *mockStats) GetDuration() time.Duration { return m.duration }

func TestRecap(t *testing.T) {
	var buf bytes.Buffer
	o := New(&buf)
	o.SetColor(false)

	stats := &mockStats{
		ok:       5,
		changed:  3,
		failed:   1,
		skipped:  2,
		duration: 2500 * time.Millisecond,
	}

	o.Recap(stats)

	output := buf.String()
	if !strings.Contains(output, "RECAP") {
		t.Error("expected RECAP in output")
	}
	if !strings.Contains(output, "ok=5") {
		t.Error("expected ok=5 in output")
	}
	if !strings.Contains(output, "changed=3") {
		t.Error("expected changed=3 in output")
	}
	if !strings.Contains(output, "failed=1") {
		t.Error("expected failed=1 in output")
	}
	if !strings.Contains(output, "skipped=2") {
		t.Error("expected skipped=2 in output")
	}
	if !strings.Contains(output, "2.50s") {
		t.Error("expected duration in output")
	}
}
