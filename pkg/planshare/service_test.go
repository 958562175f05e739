package planshare

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattsolo1/grove-planshare/pkg/backend"
	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/state"
)

var fixedNow = time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *backend.MockClient) {
	t.Helper()
	client := backend.NewMockClient()
	store := state.Open(filepath.Join(t.TempDir(), "state.yml"))
	svc := New(client, store, Config{
		Now: func() time.Time { return fixedNow },
	})
	return svc, client
}

func loginPlan() plan.Plan {
	return plan.Plan{
		Title:       "Add Login",
		Description: "Password login for the admin area.",
		Items: []plan.Item{
			plan.NewItem("Build form", plan.StatusInProgress, plan.PriorityHigh,
				plan.NewItem("Email field", plan.StatusCompleted, plan.PriorityMedium),
				plan.NewItem("Password field", plan.StatusPending, plan.PriorityLow),
			),
			plan.NewItem("Wire session cookie", plan.StatusPending, plan.PriorityMedium),
		},
	}
}

func TestShareCreatesChatAndTracksPlan(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop", SessionID: "sess-1"})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.NotEmpty(t, res.ChatID)
	assert.NotEmpty(t, res.URL)
	assert.NotEmpty(t, res.FolderID)
	assert.Contains(t, res.Document, "> Shared from grove-planshare | Updated: 2026-10-18T09:30:00Z")
	assert.Equal(t, "sess-1", res.Plan.Metadata.SessionID)

	msgs, err := client.ListMessages(ctx, res.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, backend.RoleAssistant, msgs[0].Role)
	assert.True(t, plan.IsPlanDocument(msgs[0].Content))

	tracked, err := svc.Store().Get(res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, res.MessageID, tracked.MessageID)
	assert.Equal(t, "Add Login", tracked.Title)
	assert.Equal(t, "/work/shop", tracked.ProjectDir)

	folder, err := svc.Store().FolderFor("/work/shop")
	require.NoError(t, err)
	assert.Equal(t, res.FolderID, folder)

	folders, err := client.ListFolders(ctx)
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "shop", folders[0].Name)
}

func TestShareUpdatesTrackedPlanInPlace(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	first, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)

	updated := loginPlan()
	updated.Items[1].Status = plan.StatusCompleted
	second, err := svc.Share(ctx, ShareRequest{Plan: updated, ProjectDir: "/work/shop"})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.Equal(t, first.MessageID, second.MessageID)
	assert.Equal(t, 1, client.CallCount("CreateChat"))
	assert.Equal(t, 1, client.CallCount("UpdateMessage"))
	assert.Equal(t, 1, client.CallCount("CreateFolder"))

	msgs, err := client.ListMessages(ctx, first.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Content, "- [x] **[MED]** Wire session cookie")
}

func TestShareByChatIDKeepsProject(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)

	updated := loginPlan()
	updated.Items[0].Status = plan.StatusCompleted
	second, err := svc.Share(ctx, ShareRequest{Plan: updated, ChatID: first.ChatID})
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, first.ChatID, second.ChatID)

	_, err = svc.Share(ctx, ShareRequest{Plan: updated, ChatID: first.ChatID, ProjectDir: "/work/other"})
	require.NoError(t, err)

	plans, err := svc.Store().List("/work/shop")
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, first.ChatID, plans[0].ChatID)

	pulled, err := svc.Pull(ctx, "", "/work/shop")
	require.NoError(t, err)
	assert.Equal(t, plan.StatusCompleted, pulled.Plan.Items[0].Status)
}

func TestShareNewForcesChat(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	_, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)
	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop", New: true})
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 2, client.CallCount("CreateChat"))
}

func TestShareRepostsDeletedMessage(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	first, err := svc.Share(ctx, ShareRequest{Plan: loginPlan()})
	require.NoError(t, err)

	client.FailWith("UpdateMessage", &backend.APIError{StatusCode: http.StatusNotFound, Message: "gone"})
	second, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ChatID: first.ChatID})
	require.NoError(t, err)
	assert.Equal(t, first.ChatID, second.ChatID)
	assert.NotEqual(t, first.MessageID, second.MessageID)

	tracked, err := svc.Store().Get(first.ChatID)
	require.NoError(t, err)
	assert.Equal(t, second.MessageID, tracked.MessageID)
}

func TestShareErrors(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	_, err := svc.Share(ctx, ShareRequest{Plan: plan.Plan{}})
	assert.Error(t, err)

	bad := loginPlan()
	bad.Items[0].Status = "done"
	_, err = svc.Share(ctx, ShareRequest{Plan: bad})
	assert.Error(t, err)

	_, err = svc.Share(ctx, ShareRequest{Plan: loginPlan(), ChatID: "unknown"})
	assert.ErrorIs(t, err, state.ErrNotTracked)

	boom := errors.New("backend down")
	client.FailWith("CreateChat", boom)
	_, err = svc.Share(ctx, ShareRequest{Plan: loginPlan()})
	assert.ErrorIs(t, err, boom)

	plans, err := svc.List("")
	require.NoError(t, err)
	assert.Empty(t, plans, "failed shares must not be tracked")
}

func TestPullReturnsPlanAndFeedback(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)
	_, err = client.AddReply(res.ChatID, "dana", "Please add rate limiting.")
	require.NoError(t, err)

	pulled, err := svc.Pull(ctx, res.ChatID, "")
	require.NoError(t, err)
	require.NotNil(t, pulled.Plan)
	assert.Equal(t, "Add Login", pulled.Plan.Title)
	assert.Equal(t, "Password login for the admin area.", pulled.Plan.Description)
	require.Len(t, pulled.Plan.Items, 2)
	assert.Equal(t, plan.StatusInProgress, pulled.Plan.Items[0].Status)
	require.Len(t, pulled.Plan.Items[0].Children, 2)
	assert.Equal(t, res.URL, pulled.URL)
	require.Len(t, pulled.Feedback, 1)
	assert.Equal(t, "Please add rate limiting.", pulled.Feedback[0].Content)
}

func TestPullPicksUpHumanEdits(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)

	edited := plan.Format(loginPlan())
	edited = replaceOnce(edited, "- [ ] **[MED]** Wire session cookie", "- [x] **[MED]** Wire session cookie")
	require.NoError(t, client.EditMessage(res.ChatID, res.MessageID, edited))

	// Empty chat id pulls the latest plan for the project.
	pulled, err := svc.Pull(ctx, "", "/work/shop")
	require.NoError(t, err)
	assert.Equal(t, res.ChatID, pulled.ChatID)
	assert.Equal(t, plan.StatusCompleted, pulled.Plan.Items[1].Status)
}

func TestPullWithoutPlan(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	chat, err := client.CreateChat(ctx, backend.CreateChatRequest{Title: "chit chat"})
	require.NoError(t, err)
	_, err = client.AddReply(chat.ID, "dana", "random chat reply")
	require.NoError(t, err)

	_, err = svc.Pull(ctx, chat.ID, "")
	assert.ErrorIs(t, err, ErrNoPlan)

	_, err = svc.Pull(ctx, "", "/nothing/tracked")
	assert.ErrorIs(t, err, state.ErrNotTracked)
}

func TestLatestPlanMessageAndFeedback(t *testing.T) {
	doc := plan.Format(loginPlan())
	msgs := []backend.Message{
		{ID: "1", Content: doc},
		{ID: "2", Content: "first reply"},
		{ID: "3", Content: doc},
		{ID: "4", Content: "second reply"},
		{ID: "5", Content: "third reply"},
	}
	idx := LatestPlanMessage(msgs)
	assert.Equal(t, 2, idx)

	feedback := Feedback(msgs, idx)
	require.Len(t, feedback, 2)
	assert.Equal(t, "4", feedback[0].ID)

	assert.Equal(t, -1, LatestPlanMessage([]backend.Message{{Content: "hello"}}))
	assert.Equal(t, -1, LatestPlanMessage(nil))
}

func TestSetItemStatus(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)

	updated, err := svc.SetItemStatus(ctx, res.ChatID, []int{0, 1}, plan.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, res.ChatID, updated.ChatID)
	assert.Contains(t, updated.Document, "  - [ ] **[LOW]** Password field ~~cancelled~~")

	msgs, err := client.ListMessages(ctx, res.ChatID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	p, ok := plan.Parse(msgs[0].Content)
	require.True(t, ok)
	assert.Equal(t, plan.StatusCancelled, p.Items[0].Children[1].Status)

	_, err = svc.SetItemStatus(ctx, res.ChatID, []int{9}, plan.StatusCompleted)
	assert.Error(t, err)
	_, err = svc.SetItemStatus(ctx, res.ChatID, []int{0}, "finished")
	assert.Error(t, err)
}

func TestLinkProject(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	folder, err := client.CreateFolder(ctx, "Team Plans")
	require.NoError(t, err)

	require.Error(t, svc.LinkProject(ctx, "/work/shop", "missing"))
	require.NoError(t, svc.LinkProject(ctx, "/work/shop", folder.ID))

	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan(), ProjectDir: "/work/shop"})
	require.NoError(t, err)
	assert.Equal(t, folder.ID, res.FolderID)
	assert.Equal(t, 1, client.CallCount("CreateFolder"))
}

func TestMemories(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Remember(ctx, "", "x")
	assert.Error(t, err)
	_, err = svc.Remember(ctx, "/work/shop", "")
	assert.Error(t, err)

	mem, err := svc.Remember(ctx, "/work/shop", "Deploys go through staging first.")
	require.NoError(t, err)

	memories, err := svc.Memories(ctx, "/work/shop")
	require.NoError(t, err)
	require.Len(t, memories, 1)
	assert.Equal(t, "Deploys go through staging first.", memories[0].Content)

	require.NoError(t, svc.Forget(ctx, mem.ID))
	memories, err = svc.Memories(ctx, "/work/shop")
	require.NoError(t, err)
	assert.Empty(t, memories)
}

func TestScheduleReviewReplacesPrevious(t *testing.T) {
	svc, client := newTestService(t)
	ctx := context.Background()

	res, err := svc.Share(ctx, ShareRequest{Plan: loginPlan()})
	require.NoError(t, err)

	_, err = svc.ScheduleReview(ctx, res.ChatID, "")
	assert.Error(t, err)
	_, err = svc.ScheduleReview(ctx, "unknown", "0 9 * * 1")
	assert.ErrorIs(t, err, state.ErrNotTracked)

	first, err := svc.ScheduleReview(ctx, res.ChatID, "0 9 * * 1")
	require.NoError(t, err)
	assert.Equal(t, "Review: Add Login", first.Name)

	second, err := svc.ScheduleReview(ctx, res.ChatID, "0 17 * * 5")
	require.NoError(t, err)

	automations, err := client.ListAutomations(ctx, res.ChatID)
	require.NoError(t, err)
	require.Len(t, automations, 1)
	assert.Equal(t, second.ID, automations[0].ID)

	tracked, err := svc.Store().Get(res.ChatID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, tracked.ReviewID)
}

func TestPaths(t *testing.T) {
	path, err := ParsePath("2.1")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0}, path)
	assert.Equal(t, "2.1", FormatPath(path))

	for _, bad := range []string{"", "0", "1..2", "a", "-1"} {
		_, err := ParsePath(bad)
		assert.Error(t, err, "path %q", bad)
	}
}

func replaceOnce(s, old, new string) string {
	return strings.Replace(s, old, new, 1)
}
