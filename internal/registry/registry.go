// Package registry tracks operations that are waiting for the sftp process
// to confirm them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/codemonument/sftpc/pkg/future"
)

var (
	// ErrDuplicateOperation is returned when a single-slot kind is registered
	// while a previous operation of that kind is still pending.
	ErrDuplicateOperation = errors.New("operation already pending")

	// ErrStateMismatch signals a confirmation with no pending operation.
	ErrStateMismatch = errors.New("state mismatch")
)

// Kind identifies the logical operation behind a pending entry.
type Kind int

const (
	KindConnect Kind = iota
	KindPwd
	KindCd
	KindUpload
	KindDownload
	KindGeneric
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindPwd:
		return "pwd"
	case KindCd:
		return "cd"
	case KindUpload:
		return "upload"
	case KindDownload:
		return "download"
	case KindGeneric:
		return "generic"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SingleSlot reports whether at most one operation of this kind may be pending.
func (k Kind) SingleSlot() bool {
	switch k {
	case KindConnect, KindPwd, KindCd:
		return true
	default:
		return false
	}
}

// State is the progress of a pending operation.
type State int

const (
	// StateIssued means the command was written but not yet echoed.
	StateIssued State = iota

	// StateAwaiting means the CLI echoed the command and its outcome is due.
	StateAwaiting
)

func (s State) String() string {
	if s == StateAwaiting {
		return "awaiting"
	}
	return "issued"
}

// Op is one operation awaiting confirmation.
type Op struct {
	Kind Kind

	// Key disambiguates keyed kinds (transfer path, generic sequence key).
	// Single-slot kinds use the empty key.
	Key string

	// Target is the path the operation is about.
	Target string

	// Command is the exact text written to the process.
	Command string

	State State

	// Output collects raw lines printed on behalf of a generic command.
	Output []string

	seq     uint64
	resolve func(any) bool
	reject  func(error) bool
}

// Registry holds pending operations. It is safe for concurrent use.
type Registry struct {
	mu    sync.Mutex
	slots map[Kind]*Op
	keyed map[Kind]map[string]*Op
	seq   uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		slots: make(map[Kind]*Op),
		keyed: make(map[Kind]map[string]*Op),
	}
}

// Register stores op and returns the future that settles it.
//
// A single-slot kind that is already pending fails with
// ErrDuplicateOperation. A keyed kind silently replaces any entry with the
// same key; the replaced future is never settled.
func Register[T any](r *Registry, op Op) (*future.Future[T], error) {
	f := future.New[T]()

	op.State = StateIssued
	op.resolve = func(v any) bool {
		t, ok := v.(T)
		if !ok && v != nil {
			return f.Reject(fmt.Errorf("%s settled with %T", op.Kind, v))
		}
		return f.Resolve(t)
	}
	op.reject = f.Reject

	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	op.seq = r.seq

	if op.Kind.SingleSlot() {
		if _, busy := r.slots[op.Kind]; busy {
			return nil, fmt.Errorf("%s: %w", op.Kind, ErrDuplicateOperation)
		}
		op.Key = ""
		r.slots[op.Kind] = &op
		return f, nil
	}

	m, ok := r.keyed[op.Kind]
	if !ok {
		m = make(map[string]*Op)
		r.keyed[op.Kind] = m
	}
	m[op.Key] = &op
	return f, nil
}

// Settle resolves the matching operation with value and removes it.
func (r *Registry) Settle(kind Kind, key string, value any) error {
	op, err := r.take(kind, key)
	if err != nil {
		return err
	}
	op.resolve(value)
	return nil
}

// Fail rejects the matching operation with reason and removes it.
func (r *Registry) Fail(kind Kind, key string, reason error) error {
	op, err := r.take(kind, key)
	if err != nil {
		return err
	}
	op.reject(reason)
	return nil
}

// Peek returns a copy of the matching operation without removing it.
func (r *Registry) Peek(kind Kind, key string) (Op, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.lookup(kind, key)
	if op == nil {
		return Op{}, false
	}
	return *op, true
}

// Find returns the oldest pending operation of kind for which match is true.
func (r *Registry) Find(kind Kind, match func(Op) bool) (Op, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var found *Op
	for _, op := range r.all(kind) {
		if !match(*op) {
			continue
		}
		if found == nil || op.seq < found.seq {
			found = op
		}
	}
	if found == nil {
		return Op{}, false
	}
	return *found, true
}

// Keys returns the keys of the pending operations of kind, sorted.
func (r *Registry) Keys(kind Kind) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ops := r.all(kind)
	keys := make([]string, 0, len(ops))
	for _, op := range ops {
		keys = append(keys, op.Key)
	}
	sort.Strings(keys)
	return keys
}

// Advance moves the matching operation to state.
func (r *Registry) Advance(kind Kind, key string, state State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.lookup(kind, key)
	if op == nil {
		return r.mismatch(kind, key)
	}
	op.State = state
	return nil
}

// Append records an output line against the matching operation.
func (r *Registry) Append(kind Kind, key, line string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.lookup(kind, key)
	if op == nil {
		return r.mismatch(kind, key)
	}
	op.Output = append(op.Output, line)
	return nil
}

// Len returns the number of pending operations.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.slots)
	for _, m := range r.keyed {
		n += len(m)
	}
	return n
}

// Drain rejects every pending operation with reason and empties the
// registry. It returns how many operations were rejected.
func (r *Registry) Drain(reason error) int {
	r.mu.Lock()
	var ops []*Op
	for _, op := range r.slots {
		ops = append(ops, op)
	}
	for _, m := range r.keyed {
		for _, op := range m {
			ops = append(ops, op)
		}
	}
	r.slots = make(map[Kind]*Op)
	r.keyed = make(map[Kind]map[string]*Op)
	r.mu.Unlock()

	for _, op := range ops {
		op.reject(reason)
	}
	return len(ops)
}

func (r *Registry) take(kind Kind, key string) (*Op, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	op := r.lookup(kind, key)
	if op == nil {
		return nil, r.mismatch(kind, key)
	}
	if kind.SingleSlot() {
		delete(r.slots, kind)
	} else {
		delete(r.keyed[kind], key)
	}
	return op, nil
}

func (r *Registry) lookup(kind Kind, key string) *Op {
	if kind.SingleSlot() {
		return r.slots[kind]
	}
	return r.keyed[kind][key]
}

func (r *Registry) all(kind Kind) []*Op {
	if kind.SingleSlot() {
		if op, ok := r.slots[kind]; ok {
			return []*Op{op}
		}
		return nil
	}
	ops := make([]*Op, 0, len(r.keyed[kind]))
	for _, op := range r.keyed[kind] {
		ops = append(ops, op)
	}
	return ops
}

func (r *Registry) mismatch(kind Kind, key string) error {
	if kind.SingleSlot() {
		return fmt.Errorf("%w: no pending %s", ErrStateMismatch, kind)
	}
	return fmt.Errorf("%w: no pending %s for %q", ErrStateMismatch, kind, key)
}
