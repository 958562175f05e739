package planshare

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/sirupsen/logrus"

	"github.com/mattsolo1/grove-planshare/pkg/backend"
	"github.com/mattsolo1/grove-planshare/pkg/plan"
	"github.com/mattsolo1/grove-planshare/pkg/state"
)

// DefaultSource is written into the provenance line of shared plans.
const DefaultSource = "grove-planshare"

// ErrNoPlan is returned when a chat holds no plan document.
var ErrNoPlan = errors.New("no plan found in chat")

// Config holds configuration for the service.
type Config struct {
	// Source is the provenance label written into every shared plan.
	Source string
	// Now returns the current time. Defaults to time.Now.
	Now    func() time.Time
	Logger *logrus.Entry
}

// Service shares plans with the backend and tracks them locally.
type Service struct {
	client backend.Client
	store  *state.Store
	source string
	now    func() time.Time
	logger *logrus.Entry
}

// ShareRequest describes a plan to create or update remotely.
type ShareRequest struct {
	Plan plan.Plan
	// ProjectDir scopes the plan to a project folder on the backend.
	ProjectDir string
	SessionID  string
	// ChatID updates the plan in an existing chat. When empty, the latest
	// tracked plan with the same title in the project is updated, otherwise a
	// new chat is created.
	ChatID string
	// New forces a new chat even when a matching tracked plan exists.
	New bool
}

// ShareResult describes where a plan was shared.
type ShareResult struct {
	ChatID    string
	MessageID string
	FolderID  string
	URL       string
	Created   bool
	Plan      plan.Plan
	Document  string
}

// PullResult is a plan read back from the backend with the replies posted
// after it.
type PullResult struct {
	ChatID    string
	MessageID string
	URL       string
	Plan      *plan.Plan
	Feedback  []backend.Message
	UpdatedAt time.Time
}

// New creates a sharing service.
func New(client backend.Client, store *state.Store, cfg Config) *Service {
	s := &Service{
		client: client,
		store:  store,
		source: cfg.Source,
		now:    cfg.Now,
		logger: cfg.Logger,
	}
	if s.source == "" {
		s.source = DefaultSource
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = grovelogging.NewLogger("planshare")
	}
	return s
}

// Store returns the tracking store used by the service.
func (s *Service) Store() *state.Store {
	return s.store
}

// Share serializes a plan and posts it to the backend, creating a chat for
// new plans and editing the plan message in place for tracked ones.
func (s *Service) Share(ctx context.Context, req ShareRequest) (*ShareResult, error) {
	p := req.Plan
	if p.Title == "" {
		return nil, fmt.Errorf("plan title is required")
	}
	if p.Items == nil {
		p.Items = []plan.Item{}
	}
	if err := plan.Normalize(p.Items); err != nil {
		return nil, err
	}

	tracked, found, err := s.findTracked(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	stamp := now.Format(time.RFC3339)
	p.Metadata.Source = s.source
	if req.SessionID != "" {
		p.Metadata.SessionID = req.SessionID
	}
	p.Metadata.UpdatedAt = stamp
	if found {
		p.Metadata.CreatedAt = tracked.CreatedAt.UTC().Format(time.RFC3339)
	} else if p.Metadata.CreatedAt == "" {
		p.Metadata.CreatedAt = stamp
	}

	doc := plan.Format(p)
	result := &ShareResult{Plan: p, Document: doc}
	projectDir := req.ProjectDir

	if found {
		msg, err := s.client.UpdateMessage(ctx, tracked.ChatID, tracked.MessageID, doc)
		if err != nil && !backend.IsNotFound(err) {
			return nil, fmt.Errorf("update shared plan: %w", err)
		}
		if err != nil {
			// The plan message was deleted remotely; post a fresh copy.
			s.logger.WithField("chat_id", tracked.ChatID).Warn("Plan message missing, posting a new one")
			msg, err = s.client.PostMessage(ctx, tracked.ChatID, backend.MessageInput{Role: backend.RoleAssistant, Content: doc})
			if err != nil {
				return nil, fmt.Errorf("repost shared plan: %w", err)
			}
		}
		result.ChatID = tracked.ChatID
		result.MessageID = msg.ID
		result.FolderID = tracked.FolderID
		result.URL = tracked.URL
		// A plan stays with the project it was first shared from.
		if tracked.ProjectDir != "" {
			projectDir = tracked.ProjectDir
		}
	} else {
		folderID, err := s.resolveFolder(ctx, req.ProjectDir)
		if err != nil {
			return nil, err
		}
		chat, err := s.client.CreateChat(ctx, backend.CreateChatRequest{Title: p.Title, FolderID: folderID})
		if err != nil {
			return nil, fmt.Errorf("create chat: %w", err)
		}
		msg, err := s.client.PostMessage(ctx, chat.ID, backend.MessageInput{Role: backend.RoleAssistant, Content: doc})
		if err != nil {
			return nil, fmt.Errorf("post plan: %w", err)
		}
		result.ChatID = chat.ID
		result.MessageID = msg.ID
		result.FolderID = folderID
		result.URL = chat.URL
		result.Created = true
	}

	err = s.store.Track(state.TrackedPlan{
		ChatID:     result.ChatID,
		MessageID:  result.MessageID,
		Title:      p.Title,
		URL:        result.URL,
		ProjectDir: projectDir,
		FolderID:   result.FolderID,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("track plan: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"chat_id": result.ChatID,
		"title":   p.Title,
		"items":   p.Total(),
		"created": result.Created,
	}).Info("Shared plan")

	return result, nil
}

func (s *Service) findTracked(req ShareRequest) (state.TrackedPlan, bool, error) {
	if req.ChatID != "" {
		tracked, err := s.store.Get(req.ChatID)
		if err != nil {
			return state.TrackedPlan{}, false, err
		}
		return tracked, true, nil
	}
	if req.New || req.ProjectDir == "" {
		return state.TrackedPlan{}, false, nil
	}

	plans, err := s.store.List(req.ProjectDir)
	if err != nil {
		return state.TrackedPlan{}, false, err
	}
	for _, tracked := range plans {
		if tracked.Title == req.Plan.Title {
			return tracked, true, nil
		}
	}
	return state.TrackedPlan{}, false, nil
}

// resolveFolder returns the folder linked to a project, creating and linking
// one named after the project directory when none is.
func (s *Service) resolveFolder(ctx context.Context, projectDir string) (string, error) {
	if projectDir == "" {
		return "", nil
	}
	folderID, err := s.store.FolderFor(projectDir)
	if err != nil {
		return "", err
	}
	if folderID != "" {
		return folderID, nil
	}

	name := filepath.Base(projectDir)
	folders, err := s.client.ListFolders(ctx)
	if err != nil {
		return "", fmt.Errorf("list folders: %w", err)
	}
	for _, f := range folders {
		if f.Name == name {
			folderID = f.ID
			break
		}
	}
	if folderID == "" {
		folder, err := s.client.CreateFolder(ctx, name)
		if err != nil {
			return "", fmt.Errorf("create folder: %w", err)
		}
		folderID = folder.ID
	}

	if err := s.store.LinkProject(projectDir, folderID); err != nil {
		return "", err
	}
	s.logger.WithFields(logrus.Fields{
		"project":   projectDir,
		"folder_id": folderID,
	}).Debug("Linked project folder")
	return folderID, nil
}

// LinkProject maps a project to an existing backend folder.
func (s *Service) LinkProject(ctx context.Context, projectDir, folderID string) error {
	folders, err := s.client.ListFolders(ctx)
	if err != nil {
		return fmt.Errorf("list folders: %w", err)
	}
	for _, f := range folders {
		if f.ID == folderID {
			return s.store.LinkProject(projectDir, folderID)
		}
	}
	return fmt.Errorf("folder %s does not exist", folderID)
}

// Pull fetches the newest plan document in a chat and the replies that
// followed it. An empty chatID selects the latest tracked plan for the
// project.
func (s *Service) Pull(ctx context.Context, chatID, projectDir string) (*PullResult, error) {
	if chatID == "" {
		tracked, err := s.store.Latest(projectDir)
		if err != nil {
			return nil, fmt.Errorf("no plan to pull: %w", err)
		}
		chatID = tracked.ChatID
	}

	msgs, err := s.client.ListMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	result := &PullResult{ChatID: chatID}
	if tracked, err := s.store.Get(chatID); err == nil {
		result.URL = tracked.URL
	}

	idx := LatestPlanMessage(msgs)
	if idx < 0 {
		return nil, fmt.Errorf("chat %s: %w", chatID, ErrNoPlan)
	}

	msg := msgs[idx]
	p, _ := plan.Parse(msg.Content)
	result.MessageID = msg.ID
	result.Plan = p
	result.UpdatedAt = msg.UpdatedAt
	result.Feedback = Feedback(msgs, idx)

	s.logger.WithFields(logrus.Fields{
		"chat_id":  chatID,
		"items":    p.Total(),
		"feedback": len(result.Feedback),
	}).Debug("Pulled plan")

	return result, nil
}

// LatestPlanMessage returns the index of the newest plan document in a chat
// history, or -1 if there is none.
func LatestPlanMessage(msgs []backend.Message) int {
	for i := len(msgs) - 1; i >= 0; i-- {
		if plan.IsPlanDocument(msgs[i].Content) {
			return i
		}
	}
	return -1
}

// Feedback returns the non-plan messages posted after the plan at idx.
func Feedback(msgs []backend.Message, idx int) []backend.Message {
	var out []backend.Message
	for _, msg := range msgs[idx+1:] {
		if !plan.IsPlanDocument(msg.Content) {
			out = append(out, msg)
		}
	}
	return out
}

// SetItemStatus changes one item's status in the remote plan and shares the
// result in place. The path is the index of the item at each depth.
func (s *Service) SetItemStatus(ctx context.Context, chatID string, path []int, status plan.Status) (*ShareResult, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid status %q", status)
	}
	pulled, err := s.Pull(ctx, chatID, "")
	if err != nil {
		return nil, err
	}
	item := pulled.Plan.ItemAt(path)
	if item == nil {
		return nil, fmt.Errorf("no item at %s", FormatPath(path))
	}
	item.Status = status

	tracked, err := s.store.Get(pulled.ChatID)
	if err != nil {
		return nil, err
	}
	// Pin the update to the message that was just read.
	if tracked.MessageID != pulled.MessageID {
		tracked.MessageID = pulled.MessageID
		if err := s.store.Track(tracked); err != nil {
			return nil, err
		}
	}

	return s.Share(ctx, ShareRequest{
		Plan:       *pulled.Plan,
		ProjectDir: tracked.ProjectDir,
		ChatID:     pulled.ChatID,
	})
}

// List returns tracked plans, most recent first.
func (s *Service) List(projectDir string) ([]state.TrackedPlan, error) {
	return s.store.List(projectDir)
}

// Remember stores a note in the project's folder on the backend.
func (s *Service) Remember(ctx context.Context, projectDir, content string) (*backend.Memory, error) {
	if content == "" {
		return nil, fmt.Errorf("memory content is required")
	}
	folderID, err := s.requireFolder(ctx, projectDir)
	if err != nil {
		return nil, err
	}
	return s.client.CreateMemory(ctx, folderID, content)
}

// Memories lists the notes stored for a project.
func (s *Service) Memories(ctx context.Context, projectDir string) ([]backend.Memory, error) {
	folderID, err := s.requireFolder(ctx, projectDir)
	if err != nil {
		return nil, err
	}
	return s.client.ListMemories(ctx, folderID)
}

// Forget removes a stored note.
func (s *Service) Forget(ctx context.Context, memoryID string) error {
	return s.client.DeleteMemory(ctx, memoryID)
}

func (s *Service) requireFolder(ctx context.Context, projectDir string) (string, error) {
	if projectDir == "" {
		return "", fmt.Errorf("project directory is required")
	}
	return s.resolveFolder(ctx, projectDir)
}

// ScheduleReview registers a recurring review prompt for a tracked plan,
// replacing any review scheduled before.
func (s *Service) ScheduleReview(ctx context.Context, chatID, schedule string) (*backend.Automation, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule is required")
	}
	tracked, err := s.store.Get(chatID)
	if err != nil {
		return nil, err
	}
	if tracked.ReviewID != "" {
		if err := s.client.DeleteAutomation(ctx, tracked.ReviewID); err != nil && !backend.IsNotFound(err) {
			return nil, fmt.Errorf("remove previous review: %w", err)
		}
	}

	automation, err := s.client.CreateAutomation(ctx, backend.AutomationInput{
		ChatID:   chatID,
		Name:     "Review: " + tracked.Title,
		Schedule: schedule,
		Prompt:   "Review the plan above. Tick finished tasks and reply with anything that should change.",
	})
	if err != nil {
		return nil, fmt.Errorf("schedule review: %w", err)
	}
	if err := s.store.SetReview(chatID, automation.ID); err != nil {
		return nil, err
	}
	return automation, nil
}
