// Package runner runs plans, each in its own sftp session.
package runner

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codemonument/sftpc/internal/action"
	"github.com/codemonument/sftpc/internal/output"
	"github.com/codemonument/sftpc/internal/plan"
	"github.com/codemonument/sftpc/pkg/facts"
	"github.com/codemonument/sftpc/pkg/logging"
	"github.com/codemonument/sftpc/pkg/session"
)

// closeTimeout bounds how long a finished plan waits for sftp to exit.
const closeTimeout = 10 * time.Second

// Session is what a plan runs against.
type Session interface {
	action.Session
	WaitConnected(ctx context.Context) error
	Close(ctx context.Context) error
	Label() string
}

// Dialer starts a session against host.
type Dialer func(ctx context.Context, host string, opts ...session.Option) (Session, error)

// Dial starts a real sftp session.
func Dial(ctx context.Context, host string, opts ...session.Option) (Session, error) {
	s, err := session.New(ctx, host, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Runner runs plans.
type Runner struct {
	// Output handles formatted output.
	Output *output.Output

	// Logger receives session diagnostics. Defaults to Output.
	Logger logging.Logger

	// Verbosity overrides the verbosity of every plan when set.
	Verbosity string

	// DryRun only shows what would be done without starting sftp.
	DryRun bool

	// Parallel runs the plans of a file concurrently.
	Parallel bool

	// MaxParallel limits concurrent plans when Parallel is set (0: no limit).
	MaxParallel int

	// Dial starts sessions. Defaults to Dial.
	Dial Dialer
}

// New creates a new runner writing to stdout.
func New() *Runner {
	return &Runner{
		Output: output.New(os.Stdout),
		Dial:   Dial,
	}
}

// RunResult holds the result of a plan file run.
type RunResult struct {
	// Success is true if all plans completed successfully.
	Success bool

	// Stats holds run statistics.
	Stats *Stats
}

// Stats holds run statistics.
type Stats struct {
	Plans     int
	Steps     int
	OK        int
	Changed   int
	Failed    int
	Skipped   int
	StartTime time.Time
	EndTime   time.Time
}

// Duration returns the total run time.
func (s *Stats) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}

// GetOK returns the OK count (implements output.Stats).
func (s *Stats) GetOK() int { return s.OK }

// GetChanged returns the Changed count (implements output.Stats).
func (s *Stats) GetChanged() int { return s.Changed }

// GetFailed returns the Failed count (implements output.Stats).
func (s *Stats) GetFailed() int { return s.Failed }

// GetSkipped returns the Skipped count (implements output.Stats).
func (s *Stats) GetSkipped() int { return s.Skipped }

// GetDuration returns the duration (implements output.Stats).
func (s *Stats) GetDuration() time.Duration { return s.Duration() }

func (s *Stats) add(o *Stats) {
	s.Steps += o.Steps
	s.OK += o.OK
	s.Changed += o.Changed
	s.Failed += o.Failed
	s.Skipped += o.Skipped
}

// PlanContext holds state for one plan run.
type PlanContext struct {
	// Plan is the current plan.
	Plan *plan.Plan

	// Label prefixes step output when plans run in parallel.
	Label string

	// Vars holds all variables (plan vars + facts + registered).
	Vars map[string]any

	// Facts holds gathered session facts.
	Facts map[string]any

	// Registered holds step results stored via register.
	Registered map[string]any

	// Session is the sftp session, nil in dry run.
	Session Session
}

// Run executes every plan in f.
func (r *Runner) Run(ctx context.Context, f *plan.File) (*RunResult, error) {
	stats := &Stats{
		StartTime: time.Now(),
		Plans:     len(f.Plans),
	}

	result := &RunResult{
		Success: true,
		Stats:   stats,
	}

	r.Output.PlanFileStart(f.Path)

	if r.Parallel && len(f.Plans) > 1 {
		if err := r.runParallel(ctx, f.Plans, stats); err != nil {
			result.Success = false
		}
	} else {
		for _, p := range f.Plans {
			if err := r.runPlan(ctx, p, stats, ""); err != nil {
				result.Success = false
				r.Output.Error("Plan failed: %v", err)
				break
			}
		}
	}

	stats.EndTime = time.Now()
	r.Output.Recap(stats)

	return result, nil
}

// runParallel runs every plan in its own goroutine. A failing plan does not
// stop the others.
func (r *Runner) runParallel(ctx context.Context, plans []*plan.Plan, stats *Stats) error {
	var (
		g  errgroup.Group
		mu sync.Mutex
	)
	if r.MaxParallel > 0 {
		g.SetLimit(r.MaxParallel)
	}

	for _, p := range plans {
		g.Go(func() error {
			own := &Stats{}
			err := r.runPlan(ctx, p, own, planLabel(p))

			mu.Lock()
			stats.add(own)
			mu.Unlock()

			if err != nil {
				r.Output.Error("Plan %s failed: %v", p.Title(), err)
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

// runPlan executes a single plan.
func (r *Runner) runPlan(ctx context.Context, p *plan.Plan, stats *Stats, label string) (err error) {
	r.Output.PlanStart(p)

	pctx := &PlanContext{
		Plan:       p,
		Label:      label,
		Vars:       make(map[string]any),
		Facts:      make(map[string]any),
		Registered: make(map[string]any),
	}

	for k, v := range p.Vars {
		pctx.Vars[k] = v
	}

	pctx.Vars["env"] = getEnvMap()

	if !r.DryRun {
		sess, err := r.open(ctx, p)
		if err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
		pctx.Session = sess

		defer func() {
			closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
			defer cancel()
			if cerr := sess.Close(closeCtx); cerr != nil && err == nil {
				err = cerr
			}
		}()

		if err := sess.WaitConnected(ctx); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", p.Host, err)
		}

		if p.ShouldGatherFacts() {
			f, err := facts.Gather(ctx, sess, p.Cwd)
			if err != nil {
				r.Output.StepResult(label, "Gathering Facts", "failed", err.Error())
				return fmt.Errorf("failed to gather facts: %w", err)
			}
			pctx.Facts = f
			pctx.Vars["facts"] = f
			r.Output.StepResult(label, "Gathering Facts", "ok", "")
		}
	}

	for _, step := range p.Steps {
		stats.Steps++

		stepResult, err := r.runStep(ctx, pctx, step)
		if err != nil {
			stats.Failed++
			if !step.IgnoreErrors {
				return err
			}
			r.Output.StepResult(label, step.String(), "failed (ignored)", err.Error())
			continue
		}

		switch stepResult.Status {
		case "ok":
			stats.OK++
		case "changed":
			stats.Changed++
		case "skipped":
			stats.Skipped++
		}
	}

	return nil
}

// open starts the session for p with the plan's settings.
func (r *Runner) open(ctx context.Context, p *plan.Plan) (Session, error) {
	mode, err := p.Mode()
	if r.Verbosity != "" {
		mode, err = logging.ParseMode(r.Verbosity)
	}
	if err != nil {
		return nil, err
	}

	log := r.Logger
	if log == nil {
		log = r.Output
	}

	opts := []session.Option{
		session.WithLogger(log),
		session.WithVerbosity(mode),
	}
	if p.Cwd != "" {
		opts = append(opts, session.WithCwd(p.Cwd))
	}
	if p.Label != "" {
		opts = append(opts, session.WithLabel(p.Label))
	}
	if len(p.Args) > 0 {
		opts = append(opts, session.WithArgs(p.Args...))
	}
	if p.PTY {
		opts = append(opts, session.WithPTY())
	}
	if p.Container != "" {
		opts = append(opts, session.WithContainer(p.Container))
	}

	dial := r.Dial
	if dial == nil {
		dial = Dial
	}
	return dial(ctx, p.Host, opts...)
}

// StepResult holds the result of a step.
type StepResult struct {
	Status  string // ok, changed, skipped, failed
	Changed bool
	Data    map[string]any
	Error   error
}

// runStep executes a step, once or per loop item.
func (r *Runner) runStep(ctx context.Context, pctx *PlanContext, step *plan.Step) (*StepResult, error) {
	plan.ExpandShorthand(step)
	stepName := step.String()

	if step.When != "" {
		shouldRun, err := r.evaluateCondition(step.When, pctx)
		if err != nil {
			return nil, fmt.Errorf("failed to evaluate 'when' condition: %w", err)
		}
		if !shouldRun {
			r.Output.StepResult(pctx.Label, stepName, "skipped", "when condition not met")
			return &StepResult{Status: "skipped"}, nil
		}
	}

	if len(step.Loop) > 0 {
		return r.runStepLoop(ctx, pctx, step, stepName)
	}

	return r.runSingleStep(ctx, pctx, step, stepName)
}

// runStepLoop runs step once per loop item. It stops at the first failure.
func (r *Runner) runStepLoop(ctx context.Context, pctx *PlanContext, step *plan.Step, stepName string) (*StepResult, error) {
	loopVar := step.GetLoopVar()
	defer func() {
		delete(pctx.Vars, loopVar)
		delete(pctx.Vars, "loop_index")
	}()

	var anyChanged, anyRun bool
	for i, item := range step.Loop {
		pctx.Vars[loopVar] = item
		pctx.Vars["loop_index"] = i

		result, err := r.runSingleStep(ctx, pctx, step, fmt.Sprintf("%s (%v)", stepName, item))
		if err != nil {
			return result, err
		}
		if result.Changed {
			anyChanged = true
		}
		if result.Status != "skipped" {
			anyRun = true
		}
	}

	status := "ok"
	switch {
	case anyChanged:
		status = "changed"
	case !anyRun:
		status = "skipped"
	}
	return &StepResult{Status: status, Changed: anyChanged}, nil
}

// runSingleStep runs the step's action once, retrying as configured.
func (r *Runner) runSingleStep(ctx context.Context, pctx *PlanContext, step *plan.Step, stepName string) (*StepResult, error) {
	a := action.Get(step.Action)
	if a == nil {
		err := fmt.Errorf("unknown action: %s", step.Action)
		r.Output.StepResult(pctx.Label, stepName, "failed", err.Error())
		return nil, err
	}

	params, err := r.interpolateParams(step.Params, pctx)
	if err != nil {
		r.Output.StepResult(pctx.Label, stepName, "failed", err.Error())
		return nil, fmt.Errorf("failed to interpolate parameters: %w", err)
	}

	if r.DryRun {
		r.Output.StepResult(pctx.Label, stepName, "skipped (dry run)", fmt.Sprintf("%s %v", step.Action, params))
		return &StepResult{Status: "skipped"}, nil
	}

	if step.Action == "template" {
		params["_template_vars"] = templateVars(pctx)
	}

	var result *action.Result
	var lastErr error
	maxAttempts := step.Retries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			r.Output.Info("Retry %d/%d for step: %s", attempt, maxAttempts, stepName)
			if err := sleep(ctx, time.Duration(step.Delay)*time.Second); err != nil {
				lastErr = err
				break
			}
		}

		result, lastErr = a.Run(ctx, pctx.Session, params)
		if lastErr == nil {
			break
		}
	}

	if lastErr != nil {
		r.Output.StepResult(pctx.Label, stepName, "failed", lastErr.Error())
		return &StepResult{Status: "failed", Error: lastErr}, lastErr
	}

	if step.Register != "" {
		pctx.Registered[step.Register] = map[string]any{
			"changed": result.Changed,
			"message": result.Message,
			"data":    result.Data,
		}
		pctx.Vars[step.Register] = pctx.Registered[step.Register]
	}

	status := "ok"
	if result.Changed {
		status = "changed"
	}

	r.Output.StepResult(pctx.Label, stepName, status, result.Message)
	if lines, ok := result.Data["lines"].([]string); ok {
		r.Output.StepOutput(lines)
	}

	return &StepResult{
		Status:  status,
		Changed: result.Changed,
		Data:    result.Data,
	}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// templateVars returns the variables a template is rendered with.
func templateVars(pctx *PlanContext) map[string]any {
	vars := make(map[string]any, len(pctx.Vars)+len(pctx.Registered))
	for k, v := range pctx.Vars {
		vars[k] = v
	}
	for k, v := range pctx.Registered {
		vars[k] = v
	}
	return vars
}

func planLabel(p *plan.Plan) string {
	if p.Label != "" {
		return p.Label
	}
	return p.Title()
}

// evaluateCondition evaluates a when condition.
// Supports: variable truthiness, ==, !=, not, and registered .changed.
func (r *Runner) evaluateCondition(condition string, pctx *PlanContext) (bool, error) {
	condition = strings.TrimSpace(condition)

	if strings.HasPrefix(condition, "not ") {
		result, err := r.evaluateCondition(condition[4:], pctx)
		return !result, err
	}

	if strings.HasSuffix(condition, ".changed") {
		varName := strings.TrimSuffix(condition, ".changed")
		if reg, ok := pctx.Registered[varName]; ok {
			if regMap, ok := reg.(map[string]any); ok {
				if changed, ok := regMap["changed"].(bool); ok {
					return changed, nil
				}
			}
		}
		return false, nil
	}

	for _, op := range []string{"==", "!="} {
		if !strings.Contains(condition, op) {
			continue
		}
		parts := strings.SplitN(condition, op, 2)
		left := fmt.Sprintf("%v", r.resolveValue(parts[0], pctx))
		right := fmt.Sprintf("%v", r.resolveValue(parts[1], pctx))
		if op == "==" {
			return left == right, nil
		}
		return left != right, nil
	}

	return isTruthy(r.resolveValue(condition, pctx)), nil
}

// resolveValue resolves a value that might be a variable reference.
func (r *Runner) resolveValue(s string, pctx *PlanContext) any {
	s = strings.TrimSpace(s)

	if (strings.HasPrefix(s, "'") && strings.HasSuffix(s, "'")) ||
		(strings.HasPrefix(s, "\"") && strings.HasSuffix(s, "\"")) {
		return s[1 : len(s)-1]
	}

	if s == "true" || s == "True" {
		return true
	}
	if s == "false" || s == "False" {
		return false
	}

	if val := r.lookupVariable(s, pctx); val != nil {
		return val
	}

	if strings.Contains(s, ".") {
		return nil
	}
	return s
}

// isTruthy returns whether a value is considered truthy.
func isTruthy(v any) bool {
	if v == nil {
		return false
	}

	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "False" && val != "no"
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case []any:
		return len(val) > 0
	case []string:
		return len(val) > 0
	case map[string]any:
		return len(val) > 0
	default:
		return true
	}
}

// getEnvMap returns environment variables as a map.
func getEnvMap() map[string]string {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if idx := strings.Index(e, "="); idx > 0 {
			env[e[:idx]] = e[idx+1:]
		}
	}
	return env
}
