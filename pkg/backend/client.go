package backend

import (
	"context"
	"time"
)

// Message roles used by the backend.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// Chat is a conversation on the collaboration backend.
type Chat struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	FolderID  string    `json:"folderId,omitempty"`
	URL       string    `json:"url,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message is a single opaque text entry in a chat.
type Message struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Role      string    `json:"role"`
	Author    string    `json:"author,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Folder groups chats and memories, typically one per project.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

// Memory is a folder-scoped note the backend feeds into its conversations.
type Memory struct {
	ID        string    `json:"id"`
	FolderID  string    `json:"folderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Automation is a scheduled prompt the backend posts into a chat.
type Automation struct {
	ID        string    `json:"id"`
	ChatID    string    `json:"chatId"`
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	Prompt    string    `json:"prompt"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateChatRequest holds the fields for a new chat.
type CreateChatRequest struct {
	Title    string `json:"title"`
	FolderID string `json:"folderId,omitempty"`
}

// MessageInput holds the fields for a new message.
type MessageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// AutomationInput holds the fields for a new automation.
type AutomationInput struct {
	ChatID   string `json:"chatId"`
	Name     string `json:"name"`
	Schedule string `json:"schedule"`
	Prompt   string `json:"prompt"`
}

// Client defines the operations the collaboration backend exposes.
// This abstraction allows the sharing service to be tested against MockClient.
type Client interface {
	CreateChat(ctx context.Context, req CreateChatRequest) (*Chat, error)
	GetChat(ctx context.Context, chatID string) (*Chat, error)
	ListChats(ctx context.Context, folderID string) ([]Chat, error)

	// ListMessages returns the chat history, oldest first.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
	PostMessage(ctx context.Context, chatID string, msg MessageInput) (*Message, error)
	UpdateMessage(ctx context.Context, chatID, messageID, content string) (*Message, error)

	ListFolders(ctx context.Context) ([]Folder, error)
	CreateFolder(ctx context.Context, name string) (*Folder, error)

	ListMemories(ctx context.Context, folderID string) ([]Memory, error)
	CreateMemory(ctx context.Context, folderID, content string) (*Memory, error)
	DeleteMemory(ctx context.Context, memoryID string) error

	ListAutomations(ctx context.Context, chatID string) ([]Automation, error)
	CreateAutomation(ctx context.Context, req AutomationInput) (*Automation, error)
	DeleteAutomation(ctx context.Context, automationID string) error
}
