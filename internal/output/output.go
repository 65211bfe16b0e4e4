// Package output provides formatted console output for sessions and plan runs.
package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/codemonument/sftpc/internal/plan"
	"github.com/codemonument/sftpc/pkg/logging"
)

// Colors for terminal output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// Stats holds run statistics for output.
type Stats interface {
	GetOK() int
	GetChanged() int
	GetFailed() int
	GetSkipped() int
	GetDuration() time.Duration
}

// Output handles formatted output. It is safe for concurrent use so
// parallel sessions can share one writer.
type Output struct {
	mu       sync.Mutex
	w        io.Writer
	useColor bool
	debug    bool
}

// New creates a new output handler.
func New(w io.Writer) *Output {
	return &Output{
		w:        w,
		useColor: true,
	}
}

// SetColor enables or disables color output.
func (o *Output) SetColor(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.useColor = enabled
}

// SetDebug enables or disables debug output.
func (o *Output) SetDebug(enabled bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.debug = enabled
}

// color returns the string wrapped in color codes if enabled.
func (o *Output) color(c, s string) string {
	if !o.useColor {
		return s
	}
	return c + s + colorReset
}

// PlanFileStart prints the plan file banner.
func (o *Output) PlanFileStart(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.printf("\n%s %s\n", o.color(colorBold, "PLAN FILE"), path)
	if o.debug {
		o.printf("%s\n", strings.Repeat("-", 60))
	}
}

// PlanStart prints the plan start banner.
func (o *Output) PlanStart(p *plan.Plan) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.printf("\n%s %s %s\n", o.color(colorBold, "PLAN"), p.Title(), o.color(colorGray, "("+p.Host+")"))
}

// Recap prints the run summary.
func (o *Output) Recap(stats Stats) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.printf("\n%s ", o.color(colorBold, "RECAP"))

	ok := o.color(colorGreen, fmt.Sprintf("ok=%d", stats.GetOK()))
	changed := o.color(colorYellow, fmt.Sprintf("changed=%d", stats.GetChanged()))
	failed := o.color(colorRed, fmt.Sprintf("failed=%d", stats.GetFailed()))
	skipped := o.color(colorCyan, fmt.Sprintf("skipped=%d", stats.GetSkipped()))

	o.printf("%s %s %s %s", ok, changed, failed, skipped)
	o.printf(" %s\n", o.color(colorGray, fmt.Sprintf("(%.2fs)", stats.GetDuration().Seconds())))
}

// StepResult prints the step result in a single line.
// Format: [status] [label] step name
func (o *Output) StepResult(label, name, status, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	indicator, statusColor := statusStyle(status)

	labelStr := ""
	if label != "" {
		labelStr = o.color(colorGray, fmt.Sprintf("[%s] ", label))
	}

	o.printf("  %s %s%s\n", o.color(statusColor, indicator), labelStr, name)

	if o.debug && message != "" {
		o.printf("    %s %s\n", o.color(colorGray, "→"), message)
	}
}

// StepOutput prints the lines sftp printed for a step (debug mode only).
func (o *Output) StepOutput(lines []string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.debug || len(lines) == 0 {
		return
	}
	o.printf("      %s\n", o.color(colorGray, "output:"))
	for _, line := range lines {
		o.printf("        %s\n", line)
	}
}

// Section prints a section header.
func (o *Output) Section(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.printf("\n%s\n", o.color(colorBold, name))
}

// Println prints a plain line, e.g. command results for scripts.
func (o *Output) Println(s string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.printf("%s\n", s)
}

// Info prints an informational message.
func (o *Output) Info(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.printf("%s %s\n", o.color(colorBlue, "INFO"), fmt.Sprintf(format, args...))
}

// Warn prints a warning message.
func (o *Output) Warn(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.printf("%s %s\n", o.color(colorYellow, "WARN"), fmt.Sprintf(format, args...))
}

// Error prints an error message.
func (o *Output) Error(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.printf("%s %s\n", o.color(colorRed, "ERROR"), fmt.Sprintf(format, args...))
}

// Debug prints a debug message (only in debug mode).
func (o *Output) Debug(format string, args ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.debug {
		o.printf("%s %s\n", o.color(colorGray, "DEBUG"), fmt.Sprintf(format, args...))
	}
}

func (o *Output) printf(format string, args ...any) {
	fmt.Fprintf(o.w, format, args...)
}

func statusStyle(status string) (string, string) {
	switch {
	case strings.HasPrefix(status, "ok"):
		return "✓", colorGreen
	case strings.HasPrefix(status, "changed"):
		return "✓", colorYellow
	case strings.HasPrefix(status, "skipped"):
		return "○", colorCyan
	case strings.HasPrefix(status, "failed"):
		return "✗", colorRed
	default:
		return "?", colorGray
	}
}

// Ensure Output implements the logging.Logger interface.
var _ logging.Logger = (*Output)(nil)
