package backend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockClient is an in-memory implementation of Client for testing.
// It records every call and lets tests inject failures per method.
type MockClient struct {
	mu sync.Mutex

	// Calls records the method names that were invoked, in order.
	Calls []string

	// Errors maps a method name to the error it should return.
	Errors map[string]error

	// BaseURL is used to build chat URLs.
	BaseURL string

	chats       map[string]*Chat
	messages    map[string][]*Message
	folders     map[string]*Folder
	memories    map[string]*Memory
	automations map[string]*Automation
	clock       time.Time
}

// NewMockClient creates an empty mock backend.
func NewMockClient() *MockClient {
	return &MockClient{
		Errors:      make(map[string]error),
		BaseURL:     "https://chat.example.test",
		chats:       make(map[string]*Chat),
		messages:    make(map[string][]*Message),
		folders:     make(map[string]*Folder),
		memories:    make(map[string]*Memory),
		automations: make(map[string]*Automation),
		clock:       time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// FailWith makes the named method return err until cleared with a nil err.
func (m *MockClient) FailWith(method string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.Errors, method)
		return
	}
	m.Errors[method] = err
}

// CallCount returns how many times method was invoked.
func (m *MockClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == method {
			n++
		}
	}
	return n
}

// AddReply appends a message to a chat as if a human posted it.
func (m *MockClient) AddReply(chatID, author, content string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[chatID]; !ok {
		return nil, notFound("chat", chatID)
	}
	msg := m.newMessage(chatID, RoleUser, content)
	msg.Author = author
	return copyMessage(msg), nil
}

// EditMessage replaces a message's content out of band, as a human editing
// the document in the chat UI would.
func (m *MockClient) EditMessage(chatID, messageID, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := m.findMessage(chatID, messageID)
	if msg == nil {
		return notFound("message", messageID)
	}
	msg.Content = content
	msg.UpdatedAt = m.tick()
	return nil
}

func (m *MockClient) record(method string) error {
	m.Calls = append(m.Calls, method)
	return m.Errors[method]
}

func (m *MockClient) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *MockClient) newMessage(chatID, role, content string) *Message {
	now := m.tick()
	msg := &Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      role,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.messages[chatID] = append(m.messages[chatID], msg)
	m.chats[chatID].UpdatedAt = now
	return msg
}

func (m *MockClient) findMessage(chatID, messageID string) *Message {
	for _, msg := range m.messages[chatID] {
		if msg.ID == messageID {
			return msg
		}
	}
	return nil
}

func notFound(kind, id string) error {
	return &APIError{StatusCode: http.StatusNotFound, Message: fmt.Sprintf("%s %s not found", kind, id)}
}

func copyMessage(msg *Message) *Message {
	out := *msg
	return &out
}

func (m *MockClient) CreateChat(ctx context.Context, req CreateChatRequest) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateChat"); err != nil {
		return nil, err
	}
	now := m.tick()
	chat := &Chat{
		ID:        uuid.NewString(),
		Title:     req.Title,
		FolderID:  req.FolderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	chat.URL = m.BaseURL + "/c/" + chat.ID
	m.chats[chat.ID] = chat
	out := *chat
	return &out, nil
}

func (m *MockClient) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("GetChat"); err != nil {
		return nil, err
	}
	chat, ok := m.chats[chatID]
	if !ok {
		return nil, notFound("chat", chatID)
	}
	out := *chat
	return &out, nil
}

func (m *MockClient) ListChats(ctx context.Context, folderID string) ([]Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListChats"); err != nil {
		return nil, err
	}
	var chats []Chat
	for _, chat := range m.chats {
		if folderID == "" || chat.FolderID == folderID {
			chats = append(chats, *chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].CreatedAt.Before(chats[j].CreatedAt) })
	return chats, nil
}

func (m *MockClient) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListMessages"); err != nil {
		return nil, err
	}
	if _, ok := m.chats[chatID]; !ok {
		return nil, notFound("chat", chatID)
	}
	msgs := make([]Message, 0, len(m.messages[chatID]))
	for _, msg := range m.messages[chatID] {
		msgs = append(msgs, *msg)
	}
	return msgs, nil
}

func (m *MockClient) PostMessage(ctx context.Context, chatID string, in MessageInput) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("PostMessage"); err != nil {
		return nil, err
	}
	if _, ok := m.chats[chatID]; !ok {
		return nil, notFound("chat", chatID)
	}
	return copyMessage(m.newMessage(chatID, in.Role, in.Content)), nil
}

func (m *MockClient) UpdateMessage(ctx context.Context, chatID, messageID, content string) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("UpdateMessage"); err != nil {
		return nil, err
	}
	msg := m.findMessage(chatID, messageID)
	if msg == nil {
		return nil, notFound("message", messageID)
	}
	msg.Content = content
	msg.UpdatedAt = m.tick()
	m.chats[chatID].UpdatedAt = msg.UpdatedAt
	return copyMessage(msg), nil
}

func (m *MockClient) ListFolders(ctx context.Context) ([]Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListFolders"); err != nil {
		return nil, err
	}
	var folders []Folder
	for _, f := range m.folders {
		folders = append(folders, *f)
	}
	sort.Slice(folders, func(i, j int) bool { return folders[i].Name < folders[j].Name })
	return folders, nil
}

func (m *MockClient) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateFolder"); err != nil {
		return nil, err
	}
	folder := &Folder{ID: uuid.NewString(), Name: name, CreatedAt: m.tick()}
	m.folders[folder.ID] = folder
	out := *folder
	return &out, nil
}

func (m *MockClient) ListMemories(ctx context.Context, folderID string) ([]Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListMemories"); err != nil {
		return nil, err
	}
	var memories []Memory
	for _, mem := range m.memories {
		if mem.FolderID == folderID {
			memories = append(memories, *mem)
		}
	}
	sort.Slice(memories, func(i, j int) bool { return memories[i].CreatedAt.Before(memories[j].CreatedAt) })
	return memories, nil
}

func (m *MockClient) CreateMemory(ctx context.Context, folderID, content string) (*Memory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateMemory"); err != nil {
		return nil, err
	}
	mem := &Memory{ID: uuid.NewString(), FolderID: folderID, Content: content, CreatedAt: m.tick()}
	m.memories[mem.ID] = mem
	out := *mem
	return &out, nil
}

func (m *MockClient) DeleteMemory(ctx context.Context, memoryID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteMemory"); err != nil {
		return err
	}
	if _, ok := m.memories[memoryID]; !ok {
		return notFound("memory", memoryID)
	}
	delete(m.memories, memoryID)
	return nil
}

func (m *MockClient) ListAutomations(ctx context.Context, chatID string) ([]Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ListAutomations"); err != nil {
		return nil, err
	}
	var automations []Automation
	for _, a := range m.automations {
		if chatID == "" || a.ChatID == chatID {
			automations = append(automations, *a)
		}
	}
	sort.Slice(automations, func(i, j int) bool { return automations[i].CreatedAt.Before(automations[j].CreatedAt) })
	return automations, nil
}

func (m *MockClient) CreateAutomation(ctx context.Context, req AutomationInput) (*Automation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("CreateAutomation"); err != nil {
		return nil, err
	}
	if _, ok := m.chats[req.ChatID]; !ok {
		return nil, notFound("chat", req.ChatID)
	}
	a := &Automation{
		ID:        uuid.NewString(),
		ChatID:    req.ChatID,
		Name:      req.Name,
		Schedule:  req.Schedule,
		Prompt:    req.Prompt,
		CreatedAt: m.tick(),
	}
	m.automations[a.ID] = a
	out := *a
	return &out, nil
}

func (m *MockClient) DeleteAutomation(ctx context.Context, automationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("DeleteAutomation"); err != nil {
		return err
	}
	if _, ok := m.automations[automationID]; !ok {
		return notFound("automation", automationID)
	}
	delete(m.automations, automationID)
	return nil
}

var _ Client = (*MockClient)(nil)
var _ Client = (*HTTPClient)(nil)
