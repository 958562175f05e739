package exec

import (
	"strings"
)

// MockCommandExecutor records commands instead of running them.
type MockCommandExecutor struct {
	Commands []string

	// LookPathFunc overrides LookPath; by default every command exists.
	LookPathFunc func(file string) (string, error)

	// ExecuteFunc overrides the result of Execute.
	ExecuteFunc func(name string, arg ...string) error
}

func (m *MockCommandExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "/usr/bin/" + file, nil
}

func (m *MockCommandExecutor) Execute(name string, arg ...string) error {
	m.Commands = append(m.Commands, strings.Join(append([]string{name}, arg...), " "))
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(name, arg...)
	}
	return nil
}

var _ CommandExecutor = (*MockCommandExecutor)(nil)
var _ CommandExecutor = (*RealCommandExecutor)(nil)
