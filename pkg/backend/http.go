package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	grovelogging "github.com/mattsolo1/grove-core/logging"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	defaultTimeout      = 30 * time.Second
)

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// HTTPConfig holds configuration for creating an HTTPClient.
type HTTPConfig struct {
	// BaseURL is the root of the backend API, e.g. "https://chat.example.com".
	BaseURL string
	// Token is sent as a bearer token when non-empty.
	Token string
	// HTTPClient is used for all requests. If nil, a client with a 30s timeout is used.
	HTTPClient *http.Client
	// MaxRetries bounds attempts for rate-limited responses, and for 5xx and
	// transport errors on requests other than POST.
	MaxRetries int
	// InitialDelay is the first backoff delay; it doubles per attempt.
	InitialDelay time.Duration
	Logger       *logrus.Entry
}

// HTTPClient implements Client over the backend's JSON REST API.
type HTTPClient struct {
	baseURL      string
	token        string
	client       *http.Client
	maxRetries   int
	initialDelay time.Duration
	logger       *logrus.Entry
}

type errorBody struct {
	Error string `json:"error"`
}

// NewHTTPClient creates a client for the backend at cfg.BaseURL.
func NewHTTPClient(cfg HTTPConfig) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend: base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL %q: %w", cfg.BaseURL, err)
	}

	c := &HTTPClient{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		token:        cfg.Token,
		client:       cfg.HTTPClient,
		maxRetries:   cfg.MaxRetries,
		initialDelay: cfg.InitialDelay,
		logger:       cfg.Logger,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: defaultTimeout}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = defaultMaxRetries
	}
	if c.initialDelay <= 0 {
		c.initialDelay = defaultInitialDelay
	}
	if c.logger == nil {
		c.logger = grovelogging.NewLogger("planshare.backend")
	}
	return c, nil
}

func (c *HTTPClient) CreateChat(ctx context.Context, req CreateChatRequest) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodPost, "/api/chats", req, &chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &chat, nil
}

func (c *HTTPClient) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	var chat Chat
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID), nil, &chat); err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}
	return &chat, nil
}

func (c *HTTPClient) ListChats(ctx context.Context, folderID string) ([]Chat, error) {
	path := "/api/chats"
	if folderID != "" {
		path += "?folderId=" + url.QueryEscape(folderID)
	}
	var chats []Chat
	if err := c.do(ctx, http.MethodGet, path, nil, &chats); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return chats, nil
}

func (c *HTTPClient) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", nil, &msgs); err != nil {
		return nil, fmt.Errorf("list messages for chat %s: %w", chatID, err)
	}
	return msgs, nil
}

func (c *HTTPClient) PostMessage(ctx context.Context, chatID string, msg MessageInput) (*Message, error) {
	var out Message
	if err := c.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/messages", msg, &out); err != nil {
		return nil, fmt.Errorf("post message to chat %s: %w", chatID, err)
	}
	return &out, nil
}

func (c *HTTPClient) UpdateMessage(ctx context.Context, chatID, messageID, content string) (*Message, error) {
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages/" + url.PathEscape(messageID)
	var out Message
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"content": content}, &out); err != nil {
		return nil, fmt.Errorf("update message %s: %w", messageID, err)
	}
	return &out, nil
}

func (c *HTTPClient) ListFolders(ctx context.Context) ([]Folder, error) {
	var folders []Folder
	if err := c.do(ctx, http.MethodGet, "/api/folders", nil, &folders); err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

func (c *HTTPClient) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	var folder Folder
	if err := c.do(ctx, http.MethodPost, "/api/folders", map[string]string{"name": name}, &folder); err != nil {
		return nil, fmt.Errorf("create folder: %w", err)
	}
	return &folder, nil
}

func (c *HTTPClient) ListMemories(ctx context.Context, folderID string) ([]Memory, error) {
	var memories []Memory
	path := "/api/memories?folderId=" + url.QueryEscape(folderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &memories); err != nil {
		return nil, fmt.Errorf("list memories: %w", err)
	}
	return memories, nil
}

func (c *HTTPClient) CreateMemory(ctx context.Context, folderID, content string) (*Memory, error) {
	var memory Memory
	body := map[string]string{"folderId": folderID, "content": content}
	if err := c.do(ctx, http.MethodPost, "/api/memories", body, &memory); err != nil {
		return nil, fmt.Errorf("create memory: %w", err)
	}
	return &memory, nil
}

func (c *HTTPClient) DeleteMemory(ctx context.Context, memoryID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/memories/"+url.PathEscape(memoryID), nil, nil); err != nil {
		return fmt.Errorf("delete memory %s: %w", memoryID, err)
	}
	return nil
}

func (c *HTTPClient) ListAutomations(ctx context.Context, chatID string) ([]Automation, error) {
	var automations []Automation
	path := "/api/automations?chatId=" + url.QueryEscape(chatID)
	if err := c.do(ctx, http.MethodGet, path, nil, &automations); err != nil {
		return nil, fmt.Errorf("list automations: %w", err)
	}
	return automations, nil
}

func (c *HTTPClient) CreateAutomation(ctx context.Context, req AutomationInput) (*Automation, error) {
	var automation Automation
	if err := c.do(ctx, http.MethodPost, "/api/automations", req, &automation); err != nil {
		return nil, fmt.Errorf("create automation: %w", err)
	}
	return &automation, nil
}

func (c *HTTPClient) DeleteAutomation(ctx context.Context, automationID string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/automations/"+url.PathEscape(automationID), nil, nil); err != nil {
		return fmt.Errorf("delete automation %s: %w", automationID, err)
	}
	return nil
}

// do sends a JSON request and decodes the JSON response into out. Rate-limited
// responses are retried with exponential backoff for every method. Server and
// transport errors are retried only for methods that are safe to repeat, since
// a failed POST may already have been committed by the backend.
func (c *HTTPClient) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body []byte
	if in != nil {
		var err error
		body, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
	}

	var respBody []byte
	var retryable bool
	op := func() error {
		var err error
		respBody, retryable, err = c.send(ctx, method, path, body)
		if err != nil && !retryable {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		c.logger.WithFields(logrus.Fields{
			"method": method,
			"path":   path,
			"delay":  delay.String(),
		}).WithError(err).Warn("Retrying backend request")
	}

	if err := backoff.RetryNotify(op, c.newBackOff(ctx), notify); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if retryable {
			return fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, err)
		}
		return err
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// newBackOff doubles the delay from initialDelay, with maxRetries attempts in
// total.
func (c *HTTPClient) newBackOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = c.initialDelay << 10
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.maxRetries-1)), ctx)
}

// send performs one attempt. The returned bool reports whether the failure
// may be retried.
func (c *HTTPClient) send(ctx context.Context, method, path string, body []byte) ([]byte, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	idempotent := method != http.MethodPost

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, idempotent, fmt.Errorf("HTTP request failed: %w", err)
	}
	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, idempotent, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var eb errorBody
		if json.Unmarshal(respBody, &eb) == nil && eb.Error != "" {
			apiErr.Message = eb.Error
		}
		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return nil, true, apiErr
		case resp.StatusCode >= 500:
			return nil, idempotent, apiErr
		}
		return nil, false, apiErr
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"path":   path,
		"status": resp.StatusCode,
	}).Debug("Backend request completed")
	return respBody, false, nil
}
