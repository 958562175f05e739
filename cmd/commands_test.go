package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/mattsolo1/grove-core/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-planshare/pkg/backend"
	"github.com/mattsolo1/grove-planshare/pkg/exec"
	"github.com/mattsolo1/grove-planshare/pkg/plan"
)

const planJSON = `{
  "title": "Add Login",
  "description": "Password login for the admin area.",
  "items": [
    {"content": "Build form", "status": "in_progress", "priority": "high", "children": [
      {"content": "Email field", "status": "completed"}
    ]},
    {"content": "Wire session cookie"}
  ]
}`

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := cli.NewStandardCommand("planshare", "test")
	AddCommands(root)

	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

// useMockBackend points every command at an in-memory backend and a
// temporary state file.
func useMockBackend(t *testing.T) *backend.MockClient {
	t.Helper()
	mock := backend.NewMockClient()
	prev := newClient
	newClient = func(*PlanshareConfig) (backend.Client, error) { return mock, nil }
	t.Cleanup(func() { newClient = prev })
	t.Setenv(envStateFile, filepath.Join(t.TempDir(), "state.yml"))
	return mock
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestFormatCommand(t *testing.T) {
	jsonPath := writeFile(t, "plan.json", planJSON)

	out, err := runCommand(t, "format", "-f", jsonPath, "--source", "ci")
	require.NoError(t, err)
	assert.True(t, plan.IsPlanDocument(out))
	assert.Contains(t, out, "# Plan: Add Login")
	assert.Contains(t, out, "> Shared from ci | Updated: ")
	assert.Contains(t, out, "- [ ] **[HIGH]** Build form *(in progress)*")
	assert.Contains(t, out, "  - [x] **[MED]** Email field")

	mdPath := writeFile(t, "plan.md", out)
	out, err = runCommand(t, "format", "--to-json", "-f", mdPath)
	require.NoError(t, err)

	p, err := plan.DecodeJSON([]byte(out))
	require.NoError(t, err)
	assert.Equal(t, "Add Login", p.Title)
	assert.Equal(t, "ci", p.Metadata.Source)
	require.Len(t, p.Items, 2)
	require.Len(t, p.Items[0].Children, 1)
	assert.Equal(t, plan.StatusCompleted, p.Items[0].Children[0].Status)
}

func TestFormatRejectsOtherInput(t *testing.T) {
	path := writeFile(t, "notes.md", "# Just notes\n- [ ] a task\n")
	_, err := runCommand(t, "format", "-f", path)
	assert.Error(t, err)
}

func TestShareListPullStatus(t *testing.T) {
	mock := useMockBackend(t)
	project := t.TempDir()
	planPath := writeFile(t, "plan.json", planJSON)

	out, err := runCommand(t, "share", "-f", planPath, "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Shared plan Add Login (3 tasks)")
	assert.Equal(t, 1, mock.CallCount("CreateChat"))

	out, err = runCommand(t, "share", "-f", planPath, "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Updated plan Add Login")
	assert.Equal(t, 1, mock.CallCount("CreateChat"))

	out, err = runCommand(t, "list", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "TITLE")
	assert.Contains(t, out, "Add Login")

	chats, err := mock.ListChats(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	_, err = mock.AddReply(chats[0].ID, "dana", "Ship it")
	require.NoError(t, err)

	out, err = runCommand(t, "pull", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "## Tasks")
	assert.Contains(t, out, "Feedback (1):")
	assert.Contains(t, out, "dana: Ship it")

	out, err = runCommand(t, "status", chats[0].ID, "--set", "2=completed", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Progress: 2/3 completed")

	out, err = runCommand(t, "show", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "1.1 [MED] Email field")
	assert.Contains(t, out, "✓ 2 [MED] Wire session cookie")
}

func TestColorOffWhenOutputIsNotTerminal(t *testing.T) {
	useMockBackend(t)
	project := t.TempDir()
	planPath := writeFile(t, "plan.json", planJSON)
	_, err := runCommand(t, "share", "-f", planPath, "--project", project)
	require.NoError(t, err)

	color.NoColor = false
	t.Cleanup(func() { color.NoColor = true })

	for _, args := range [][]string{
		{"show", "--project", project},
		{"status", "--project", project},
		{"pull", "--project", project},
	} {
		color.NoColor = false
		out, err := runCommand(t, args...)
		require.NoError(t, err, args[0])
		assert.NotContains(t, out, "\x1b[", args[0])
		assert.True(t, color.NoColor, args[0])
	}
}

func TestShareOpensChat(t *testing.T) {
	useMockBackend(t)
	launcher := &exec.MockCommandExecutor{}
	prev := newOpener
	newOpener = func() urlOpener { return &exec.Opener{Executor: launcher, GOOS: "linux"} }
	t.Cleanup(func() { newOpener = prev })

	planPath := writeFile(t, "plan.json", planJSON)
	_, err := runCommand(t, "share", "-f", planPath, "--open", "--project", t.TempDir())
	require.NoError(t, err)
	require.Len(t, launcher.Commands, 1)
	assert.True(t, strings.HasPrefix(launcher.Commands[0], "xdg-open https://chat.example.test/c/"))
}

func TestStatusJSON(t *testing.T) {
	useMockBackend(t)
	project := t.TempDir()
	planPath := writeFile(t, "plan.json", planJSON)

	_, err := runCommand(t, "share", "-f", planPath, "--project", project)
	require.NoError(t, err)

	out, err := runCommand(t, "status", "--json", "--project", project)
	require.NoError(t, err)

	var got struct {
		Title  string         `json:"title"`
		Total  int            `json:"total"`
		Counts map[string]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "Add Login", got.Title)
	assert.Equal(t, 3, got.Total)
	assert.Equal(t, 1, got.Counts["completed"])
	assert.Equal(t, 1, got.Counts["in_progress"])
}

func TestStatusRejectsBadUpdates(t *testing.T) {
	useMockBackend(t)
	for _, raw := range []string{"2", "x=completed", "1=finished"} {
		_, err := runCommand(t, "status", "chat", "--set", raw)
		assert.Error(t, err, raw)
	}
}

func TestPullWithoutTrackedPlan(t *testing.T) {
	useMockBackend(t)
	_, err := runCommand(t, "pull", "--project", t.TempDir())
	assert.Error(t, err)
}

func TestRememberAndReview(t *testing.T) {
	mock := useMockBackend(t)
	project := t.TempDir()
	planPath := writeFile(t, "plan.json", planJSON)

	_, err := runCommand(t, "share", "-f", planPath, "--project", project)
	require.NoError(t, err)

	out, err := runCommand(t, "remember", "Deploys", "need", "approval", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Stored note")

	out, err = runCommand(t, "remember", "--list", "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Deploys need approval")

	chats, err := mock.ListChats(t.Context(), "")
	require.NoError(t, err)
	require.Len(t, chats, 1)

	out, err = runCommand(t, "review", chats[0].ID, "0 9 * * 1")
	require.NoError(t, err)
	assert.Contains(t, out, `Scheduled "Review: Add Login" (0 9 * * 1)`)
}

func TestLinkCommand(t *testing.T) {
	mock := useMockBackend(t)
	folder, err := mock.CreateFolder(t.Context(), "Team Plans")
	require.NoError(t, err)

	out, err := runCommand(t, "link", "--list")
	require.NoError(t, err)
	assert.Contains(t, out, "Team Plans")

	project := t.TempDir()
	out, err = runCommand(t, "link", folder.ID, "--project", project)
	require.NoError(t, err)
	assert.Contains(t, out, "Linked")

	_, err = runCommand(t, "link", "missing", "--project", project)
	assert.Error(t, err)
}

func TestMissingBackendConfig(t *testing.T) {
	t.Setenv(envAPIURL, "")
	t.Setenv(envStateFile, filepath.Join(t.TempDir(), "state.yml"))
	_, err := runCommand(t, "pull", "chat-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), envAPIURL)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv(envAPIURL, "https://chat.example.test")
	t.Setenv(envAPIToken, "secret")
	t.Setenv(envStateFile, "/tmp/planshare-state.yml")

	cfg, err := loadPlanshareConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://chat.example.test", cfg.APIURL)
	assert.Equal(t, "secret", cfg.APIToken)
	assert.Equal(t, "/tmp/planshare-state.yml", cfg.StateFile)
	assert.Equal(t, defaultSource, cfg.Source)

	interval, err := cfg.pollInterval()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, interval)

	cfg.PollInterval = "soon"
	_, err = cfg.pollInterval()
	assert.Error(t, err)
	cfg.PollInterval = "-1s"
	_, err = cfg.pollInterval()
	assert.Error(t, err)
}

func TestFindProjectRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "grove.yml"), []byte("name: shop\n"), 0644))
	nested := filepath.Join(root, "pkg", "api")
	require.NoError(t, os.MkdirAll(nested, 0755))

	assert.Equal(t, root, findProjectRoot(nested))
}

func TestRenderTree(t *testing.T) {
	p, err := plan.DecodeJSON([]byte(planJSON))
	require.NoError(t, err)

	var out bytes.Buffer
	renderTree(&out, p)
	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Add Login", lines[0])
	assert.Contains(t, lines[2], "1 [HIGH] Build form")
	assert.True(t, strings.HasPrefix(lines[3], "    "), "children are indented one level deeper")
	assert.Contains(t, lines[3], "1.1 [MED] Email field")

	out.Reset()
	renderTree(&out, &plan.Plan{Title: "Empty", Items: []plan.Item{}})
	assert.Contains(t, out.String(), "(no tasks)")
}
