package registry

import "fmt"

// OperationError is the terminal failure of an operation reported by the
// sftp process.
type OperationError struct {
	Op     string
	Target string
	Reason string
}

func (e *OperationError) Error() string {
	if e.Op == "cd" {
		return fmt.Sprintf("cd into '%s' failed: %s", e.Target, e.Reason)
	}
	return fmt.Sprintf("%s '%s' failed: %s", e.Op, e.Target, e.Reason)
}
