// Package engine correlates sftp output lines with pending operations.
package engine

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/codemonument/sftpc/internal/classify"
	"github.com/codemonument/sftpc/internal/diag"
	"github.com/codemonument/sftpc/internal/registry"
)

// probe is an operation whose outcome is signalled by the next bare prompt.
type probe struct {
	kind registry.Kind
	key  string
}

// Engine consumes output lines in arrival order and settles the matching
// operations in the registry. Process must be called from one goroutine.
type Engine struct {
	reg    *registry.Registry
	router *diag.Router

	// probes are echoed operations waiting for their bare prompt, oldest first.
	probes []probe

	// stray counts bare prompts still owed by operations that already failed.
	stray int

	mu   sync.Mutex
	seq  uint64
	last string
}

// New creates an engine settling operations in reg.
func New(reg *registry.Registry, router *diag.Router) *Engine {
	return &Engine{reg: reg, router: router}
}

// Run processes lines until the channel is closed or ctx is done.
func (e *Engine) Run(ctx context.Context, lines <-chan string) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			e.Process(line)
		}
	}
}

// LastLine returns the number of lines processed and the most recent one.
func (e *Engine) LastLine() (uint64, string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.seq, e.last
}

// Process handles a single trimmed, non-empty line.
func (e *Engine) Process(line string) {
	e.mu.Lock()
	e.seq++
	e.last = line
	e.mu.Unlock()

	e.router.Raw(line)

	l := classify.Classify(line)
	switch l.Tag {
	case classify.TagConnected:
		if err := e.reg.Settle(registry.KindConnect, "", true); err != nil {
			e.mismatch(err, line)
			return
		}
		e.router.Milestone("%s", line)

	case classify.TagUploadProgress:
		e.transferDone(registry.KindUpload, l)

	case classify.TagDownloadProgress:
		e.transferDone(registry.KindDownload, l)

	case classify.TagPwdResult:
		if err := e.reg.Settle(registry.KindPwd, "", l.RemotePath); err != nil {
			e.mismatch(err, line)
			return
		}
		e.router.Routine("remote working directory is %s", l.RemotePath)

	case classify.TagCdFailureShell:
		e.failCd(l.RemotePath, l.Reason, line)

	case classify.TagCdFailureStat:
		op, ok := e.reg.Peek(registry.KindCd, "")
		if !ok {
			e.mismatch(fmt.Errorf("%w: no pending cd", registry.ErrStateMismatch), line)
			return
		}
		e.failCd(op.Target, l.Reason, line)

	case classify.TagPrompt:
		if cmd := l.Command(); cmd != "" {
			e.echo(cmd)
			return
		}
		e.prompt()

	default:
		if n := len(e.probes); n > 0 && e.probes[n-1].kind == registry.KindGeneric {
			if err := e.reg.Append(registry.KindGeneric, e.probes[n-1].key, line); err != nil {
				e.mismatch(err, line)
			}
		}
		e.router.Unknown(line)
	}
}

// transferDone settles an upload or download.
func (e *Engine) transferDone(kind registry.Kind, l classify.Line) {
	l, key, err := e.transferKey(kind, l)
	if err == nil {
		err = e.reg.Settle(kind, key, true)
	}
	if err != nil {
		e.router.Error("%v (local %q, remote %q, line %d)", err, l.LocalPath, l.RemotePath, e.lineNo())
		return
	}

	if kind == registry.KindUpload {
		e.router.Milestone("uploaded %s to %s", l.LocalPath, l.RemotePath)
	} else {
		e.router.Milestone("downloaded %s to %s", l.RemotePath, l.LocalPath)
	}
}

// transferKey finds the pending transfer a confirmation line belongs to.
// The line is "<from> to <to>" and either path may itself contain " to ",
// so every split is tried: first for an exact key, then for a key that is
// a path suffix of the printed one (sftp may print a relative path as
// absolute). Among suffix matches the deepest key wins. It returns the line
// with the paths of the split that matched.
func (e *Engine) transferKey(kind registry.Kind, l classify.Line) (classify.Line, string, error) {
	from, to := l.LocalPath, l.RemotePath
	if kind == registry.KindDownload {
		from, to = l.RemotePath, l.LocalPath
	}

	splits := splitTransfer(from, to)
	keys := e.reg.Keys(kind)

	for _, s := range splits {
		if slices.Contains(keys, s[0]) {
			return withPaths(kind, l, s), s[0], nil
		}
	}

	for _, s := range splits {
		key, err := deepestSuffix(keys, s[0])
		if err != nil {
			return l, "", fmt.Errorf("%w: %s %q: %v", registry.ErrStateMismatch, kind, s[0], err)
		}
		if key != "" {
			return withPaths(kind, l, s), key, nil
		}
	}

	// Settle reports the mismatch.
	return l, from, nil
}

// splitTransfer returns every way to read "from to to" as two paths,
// starting with the given one.
func splitTransfer(from, to string) [][2]string {
	const sep = " to "
	body := from + sep + to

	var splits [][2]string
	for i := 0; ; {
		j := strings.Index(body[i:], sep)
		if j < 0 {
			break
		}
		splits = append(splits, [2]string{body[:i+j], body[i+j+len(sep):]})
		i += j + 1
	}
	return splits
}

func withPaths(kind registry.Kind, l classify.Line, s [2]string) classify.Line {
	if kind == registry.KindDownload {
		l.RemotePath, l.LocalPath = s[0], s[1]
	} else {
		l.LocalPath, l.RemotePath = s[0], s[1]
	}
	return l
}

// deepestSuffix returns the key with the most path components that names
// printed. Two such keys of equal depth are ambiguous.
func deepestSuffix(keys []string, printed string) (string, error) {
	var best, tie string
	bestDepth := -1
	for _, key := range keys {
		if !samePath(key, printed) {
			continue
		}
		switch d := pathDepth(key); {
		case d > bestDepth:
			best, bestDepth, tie = key, d, ""
		case d == bestDepth:
			tie = key
		}
	}
	if tie != "" {
		return "", fmt.Errorf("ambiguous between %q and %q", best, tie)
	}
	return best, nil
}

func pathDepth(p string) int {
	p = strings.Trim(path.Clean(p), "/")
	if p == "" || p == "." {
		return 0
	}
	return strings.Count(p, "/") + 1
}

func (e *Engine) failCd(target, reason, line string) {
	err := e.reg.Fail(registry.KindCd, "", &registry.OperationError{
		Op:     "cd",
		Target: target,
		Reason: reason,
	})
	if err != nil {
		e.mismatch(err, line)
		return
	}
	if e.dropProbe(registry.KindCd, "") {
		e.stray++
	}
	e.router.Routine("cd into '%s' failed: %s", target, reason)
}

// echo handles a prompt line carrying the command the CLI is about to run.
func (e *Engine) echo(cmd string) {
	if op, ok := e.reg.Peek(registry.KindCd, ""); ok && op.State == registry.StateIssued && sameCommand(op.Command, cmd) {
		e.await(registry.KindCd, "")
		return
	}

	op, ok := e.reg.Find(registry.KindGeneric, func(op registry.Op) bool {
		return op.State == registry.StateIssued && sameCommand(op.Command, cmd)
	})
	if ok {
		e.await(registry.KindGeneric, op.Key)
		return
	}

	e.router.Routine("sftp> %s", cmd)
}

func (e *Engine) await(kind registry.Kind, key string) {
	if err := e.reg.Advance(kind, key, registry.StateAwaiting); err != nil {
		e.router.Error("%v", err)
		return
	}
	e.probes = append(e.probes, probe{kind: kind, key: key})
}

// prompt handles a bare prompt: it completes the oldest echoed operation,
// or an outstanding cd when the stream carries no echoes.
func (e *Engine) prompt() {
	if len(e.probes) > 0 {
		p := e.probes[0]
		e.probes = e.probes[1:]
		e.complete(p.kind, p.key)
		return
	}

	if e.stray > 0 {
		e.stray--
		e.router.Routine("prompt")
		return
	}

	if _, ok := e.reg.Peek(registry.KindCd, ""); ok {
		e.complete(registry.KindCd, "")
		return
	}

	e.router.Routine("prompt")
}

func (e *Engine) complete(kind registry.Kind, key string) {
	var value any = struct{}{}
	if kind == registry.KindGeneric {
		op, _ := e.reg.Peek(kind, key)
		value = op.Output
	}

	if err := e.reg.Settle(kind, key, value); err != nil {
		e.router.Error("%v (line %d)", err, e.lineNo())
		return
	}

	op := key
	if kind == registry.KindCd {
		op = "cd"
	}
	e.router.Routine("%s completed", op)
}

func (e *Engine) dropProbe(kind registry.Kind, key string) bool {
	for i, p := range e.probes {
		if p.kind == kind && p.key == key {
			e.probes = append(e.probes[:i], e.probes[i+1:]...)
			return true
		}
	}
	return false
}

func (e *Engine) mismatch(err error, line string) {
	e.router.Error("%v: line %d %q", err, e.lineNo(), line)
}

func (e *Engine) lineNo() uint64 {
	n, _ := e.LastLine()
	return n
}

func sameCommand(a, b string) bool {
	return strings.Join(strings.Fields(a), " ") == strings.Join(strings.Fields(b), " ")
}

func samePath(key, printed string) bool {
	if key == "" {
		return false
	}
	key = path.Clean(key)
	printed = path.Clean(printed)
	return key == printed || strings.HasSuffix(printed, "/"+strings.TrimPrefix(key, "./"))
}
