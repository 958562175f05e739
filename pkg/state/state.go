package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotTracked is returned when a chat has no tracked plan.
var ErrNotTracked = errors.New("plan is not tracked")

// TrackedPlan records where a shared plan lives on the remote backend.
type TrackedPlan struct {
	ChatID     string    `yaml:"chat_id" json:"chat_id"`
	MessageID  string    `yaml:"message_id" json:"message_id"`
	Title      string    `yaml:"title" json:"title"`
	URL        string    `yaml:"url,omitempty" json:"url,omitempty"`
	ProjectDir string    `yaml:"project_dir,omitempty" json:"project_dir,omitempty"`
	FolderID   string    `yaml:"folder_id,omitempty" json:"folder_id,omitempty"`
	ReviewID   string    `yaml:"review_automation_id,omitempty" json:"review_automation_id,omitempty"`
	CreatedAt  time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt  time.Time `yaml:"updated_at" json:"updated_at"`
}

// State is the on-disk layout of the store.
type State struct {
	Plans    map[string]TrackedPlan `yaml:"plans,omitempty"`
	Projects map[string]string      `yaml:"projects,omitempty"`
}

// Store persists tracked plans and project folder links in a yaml file.
// Every operation reads the file fresh so several processes can share it.
type Store struct {
	path string
	mu   sync.Mutex
}

// DefaultPath returns the path to the state file.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".grove", "planshare", "state.yml"), nil
}

// Open returns a store backed by the file at path. The file is created on
// first write.
func Open(path string) *Store {
	return &Store{path: path}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return s.path
}

// Load reads the state file. A missing file is an empty state.
func (s *Store) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *Store) load() (*State, error) {
	st := &State{}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st.init(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	if err := yaml.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return st.init(), nil
}

func (st *State) init() *State {
	if st.Plans == nil {
		st.Plans = make(map[string]TrackedPlan)
	}
	if st.Projects == nil {
		st.Projects = make(map[string]string)
	}
	return st
}

// update applies fn to the current state under the file lock and saves the
// result if fn succeeds.
func (s *Store) update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	lock, err := acquireLock(s.path)
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.release()

	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}

	data, err := yaml.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	if err := replaceFile(s.path, data); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// Track inserts or replaces the tracked plan for its chat. The first
// CreatedAt seen for a chat is kept.
func (s *Store) Track(p TrackedPlan) error {
	if p.ChatID == "" {
		return fmt.Errorf("tracked plan has no chat id")
	}
	return s.update(func(st *State) error {
		now := time.Now().UTC()
		if existing, ok := st.Plans[p.ChatID]; ok && !existing.CreatedAt.IsZero() {
			p.CreatedAt = existing.CreatedAt
			if p.ReviewID == "" {
				p.ReviewID = existing.ReviewID
			}
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = now
		}
		st.Plans[p.ChatID] = p
		return nil
	})
}

// Get returns the tracked plan for a chat.
func (s *Store) Get(chatID string) (TrackedPlan, error) {
	st, err := s.Load()
	if err != nil {
		return TrackedPlan{}, err
	}
	p, ok := st.Plans[chatID]
	if !ok {
		return TrackedPlan{}, fmt.Errorf("chat %s: %w", chatID, ErrNotTracked)
	}
	return p, nil
}

// List returns tracked plans, most recently updated first. A non-empty
// projectDir restricts the result to that project.
func (s *Store) List(projectDir string) ([]TrackedPlan, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}
	plans := make([]TrackedPlan, 0, len(st.Plans))
	for _, p := range st.Plans {
		if projectDir != "" && p.ProjectDir != projectDir {
			continue
		}
		plans = append(plans, p)
	}
	sort.Slice(plans, func(i, j int) bool {
		if plans[i].UpdatedAt.Equal(plans[j].UpdatedAt) {
			return plans[i].ChatID < plans[j].ChatID
		}
		return plans[i].UpdatedAt.After(plans[j].UpdatedAt)
	})
	return plans, nil
}

// Latest returns the most recently updated tracked plan, optionally scoped
// to a project.
func (s *Store) Latest(projectDir string) (TrackedPlan, error) {
	plans, err := s.List(projectDir)
	if err != nil {
		return TrackedPlan{}, err
	}
	if len(plans) == 0 {
		return TrackedPlan{}, ErrNotTracked
	}
	return plans[0], nil
}

// Forget removes a tracked plan. Forgetting an unknown chat is not an error.
func (s *Store) Forget(chatID string) error {
	return s.update(func(st *State) error {
		delete(st.Plans, chatID)
		return nil
	})
}

// SetReview records the review automation registered for a chat.
func (s *Store) SetReview(chatID, automationID string) error {
	return s.update(func(st *State) error {
		p, ok := st.Plans[chatID]
		if !ok {
			return fmt.Errorf("chat %s: %w", chatID, ErrNotTracked)
		}
		p.ReviewID = automationID
		st.Plans[chatID] = p
		return nil
	})
}

// LinkProject maps a project directory to a backend folder.
func (s *Store) LinkProject(projectDir, folderID string) error {
	if projectDir == "" || folderID == "" {
		return fmt.Errorf("project directory and folder id are required")
	}
	return s.update(func(st *State) error {
		st.Projects[projectDir] = folderID
		return nil
	})
}

// UnlinkProject removes a project folder mapping.
func (s *Store) UnlinkProject(projectDir string) error {
	return s.update(func(st *State) error {
		delete(st.Projects, projectDir)
		return nil
	})
}

// FolderFor returns the folder linked to a project, or "" if none is.
func (s *Store) FolderFor(projectDir string) (string, error) {
	st, err := s.Load()
	if err != nil {
		return "", err
	}
	return st.Projects[projectDir], nil
}
