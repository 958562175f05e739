// Package exec runs external programs behind a mockable interface. The CLI
// uses it to open shared plans in the browser.
package exec

import (
	"fmt"
	"runtime"
)

// CommandExecutor defines an interface for running external commands.
type CommandExecutor interface {
	// LookPath searches for an executable named file in PATH.
	LookPath(file string) (string, error)

	// Execute runs the command and waits for it to complete.
	Execute(name string, arg ...string) error
}

// Opener opens URLs with the platform's default handler.
type Opener struct {
	Executor CommandExecutor
	// GOOS selects the launcher; defaults to runtime.GOOS.
	GOOS string
}

// NewOpener returns an Opener backed by real commands.
func NewOpener() *Opener {
	return &Opener{Executor: &RealCommandExecutor{}}
}

// Open launches url in the default browser.
func (o *Opener) Open(url string) error {
	if url == "" {
		return fmt.Errorf("no URL to open")
	}
	name, args := launcher(o.goos())
	if _, err := o.Executor.LookPath(name); err != nil {
		return fmt.Errorf("cannot open %s: %s not found: %w", url, name, err)
	}
	return o.Executor.Execute(name, append(args, url)...)
}

func (o *Opener) goos() string {
	if o.GOOS != "" {
		return o.GOOS
	}
	return runtime.GOOS
}

func launcher(goos string) (string, []string) {
	switch goos {
	case "darwin":
		return "open", nil
	case "windows":
		return "rundll32", []string{"url.dll,FileProtocolHandler"}
	default:
		return "xdg-open", nil
	}
}
