package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-planshare/pkg/backend"
	"github.com/mattsolo1/grove-planshare/pkg/exec"
	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/planshare"
	"github.com/mattsolo1/grove-planshare/pkg/state"
)

// projectFlag is shared by commands that scope plans to a project.
var projectFlag string

// newClient builds the backend client from configuration. Tests replace it
// to run commands against an in-memory backend.
var newClient = func(cfg *PlanshareConfig) (backend.Client, error) {
	if cfg.APIURL == "" {
		return nil, fmt.Errorf("no backend configured: set planshare.api_url in grove.yml or %s", envAPIURL)
	}
	client, err := backend.NewHTTPClient(backend.HTTPConfig{
		BaseURL:    cfg.APIURL,
		Token:      cfg.APIToken,
		MaxRetries: cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newOpener returns what --open uses to launch chat URLs.
var newOpener = func() urlOpener {
	return exec.NewOpener()
}

type urlOpener interface {
	Open(url string) error
}

func newService(cfg *PlanshareConfig) (*planshare.Service, error) {
	client, err := newClient(cfg)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return planshare.New(client, store, planshare.Config{Source: cfg.Source}), nil
}

func openStore(cfg *PlanshareConfig) (*state.Store, error) {
	path := cfg.StateFile
	if path == "" {
		var err error
		path, err = state.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	return state.Open(path), nil
}

// loadService loads configuration and builds the service in one step.
func loadService() (*planshare.Service, *PlanshareConfig, error) {
	cfg, err := loadPlanshareConfig()
	if err != nil {
		return nil, nil, err
	}
	svc, err := newService(cfg)
	if err != nil {
		return nil, nil, err
	}
	return svc, cfg, nil
}

// resolveProject returns the project directory for the command: the
// --project flag when set, otherwise the nearest ancestor of the working
// directory holding grove.yml or .git.
func resolveProject() (string, error) {
	if projectFlag != "" {
		return filepath.Abs(projectFlag)
	}
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return findProjectRoot(dir), nil
}

func findProjectRoot(start string) string {
	dir := start
	for {
		for _, marker := range []string{"grove.yml", ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return start
		}
		dir = parent
	}
}

// readPlanInput reads a plan from a file or stdin ("-"). JSON is used when
// the content starts with '{', otherwise it must be a plan document.
func readPlanInput(path string, stdin io.Reader) (*plan.Plan, error) {
	var data []byte
	var err error
	if path == "" || path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read plan: %w", err)
	}

	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		return plan.DecodeJSON(data)
	}
	p, ok := plan.Parse(string(data))
	if !ok {
		return nil, fmt.Errorf("input is neither plan JSON nor a plan document")
	}
	return p, nil
}

// colorWriter returns the command's output writer, turning color off when it
// is not a terminal.
func colorWriter(cmd *cobra.Command) io.Writer {
	out := cmd.OutOrStdout()
	if f, ok := out.(*os.File); !ok || !isTerminal(f) {
		color.NoColor = true
	}
	return out
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
