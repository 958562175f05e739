package exec

import (
	"fmt"
	"os/exec"
	"strings"
)

// ExecError wraps an execution error with the command output.
type ExecError struct {
	Command string
	Err     error
	Output  string
}

func (e *ExecError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, strings.TrimSpace(e.Output))
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// RealCommandExecutor implements CommandExecutor with os/exec.
type RealCommandExecutor struct{}

func (e *RealCommandExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (e *RealCommandExecutor) Execute(name string, arg ...string) error {
	output, err := exec.Command(name, arg...).CombinedOutput()
	if err != nil {
		return &ExecError{Command: name, Err: err, Output: string(output)}
	}
	return nil
}
