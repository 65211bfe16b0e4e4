// Package action defines the plan steps a session can run.
package action

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/codemonument/sftpc/pkg/future"
)

// Session is the part of a session actions drive.
type Session interface {
	Pwd() (*future.Future[string], error)
	Cd(dir string) (*future.Future[struct{}], error)
	Ls(path string) (*future.Future[[]string], error)
	Lls(path string) (*future.Future[[]string], error)
	SendCommand(cmd string) (*future.Future[[]string], error)
	UploadFile(local, remote string) (*future.Future[bool], error)
	UploadFiles(ctx context.Context, locals []string, remoteDir string) ([]bool, error)
	DownloadFile(remote, local string) (*future.Future[bool], error)
}

// Result holds the outcome of an action.
type Result struct {
	// Changed indicates whether the action changed remote or local state.
	Changed bool

	// Message is a human-readable description of what happened.
	Message string

	// Data holds values later steps can reference through register.
	Data map[string]any
}

// Action is a named step that runs against a session.
type Action interface {
	// Name returns the action's unique identifier.
	Name() string

	// Run executes the action and waits for sftp to confirm it.
	Run(ctx context.Context, sess Session, params map[string]any) (*Result, error)
}

var (
	registry   = make(map[string]Action)
	registryMu sync.RWMutex
)

// Register adds an action to the registry.
// It panics if an action with the same name is already registered.
func Register(a Action) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := registry[name]; exists {
		panic(fmt.Sprintf("action %q is already registered", name))
	}
	registry[name] = a
}

// Get retrieves an action by name. Returns nil if it is not registered.
func Get(name string) Action {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return registry[name]
}

// List returns the sorted names of all registered actions.
func List() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Changed creates a Result indicating a change was made.
func Changed(msg string) *Result {
	return &Result{Changed: true, Message: msg}
}

// Unchanged creates a Result indicating nothing was modified.
func Unchanged(msg string) *Result {
	return &Result{Changed: false, Message: msg}
}

// ChangedWithData creates a Result with a change and additional data.
func ChangedWithData(msg string, data map[string]any) *Result {
	return &Result{Changed: true, Message: msg, Data: data}
}

// UnchangedWithData creates a Result without a change but with data.
func UnchangedWithData(msg string, data map[string]any) *Result {
	return &Result{Changed: false, Message: msg, Data: data}
}
