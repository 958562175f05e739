package plan

import (
	"fmt"

	"github.com/google/uuid"
)

// Status represents the current state of a plan item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus converts a raw string into a Status.
func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", fmt.Errorf("invalid status %q (want pending, in_progress, completed or cancelled)", s)
	}
	return status, nil
}

// Priority represents how urgent a plan item is.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ParsePriority converts a raw string into a Priority.
func ParsePriority(s string) (Priority, error) {
	priority := Priority(s)
	if !priority.Valid() {
		return "", fmt.Errorf("invalid priority %q (want high, medium or low)", s)
	}
	return priority, nil
}

// Item is a single task in a plan. Children is nil when the item has none.
type Item struct {
	ID       string   `json:"id"`
	Content  string   `json:"content"`
	Status   Status   `json:"status"`
	Priority Priority `json:"priority"`
	Children []Item   `json:"children,omitempty"`
}

// Metadata records where a plan came from and when it last changed.
// Timestamps are kept as ISO-8601 strings exactly as they appear on the wire.
type Metadata struct {
	Source    string `json:"source"`
	SessionID string `json:"sessionId,omitempty"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// Plan is a titled, described forest of items.
type Plan struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Items       []Item   `json:"items"`
	Metadata    Metadata `json:"metadata"`
}

// NewItem creates an item with a freshly generated ID.
func NewItem(content string, status Status, priority Priority, children ...Item) Item {
	item := Item{
		ID:       newID(),
		Content:  content,
		Status:   status,
		Priority: priority,
	}
	if len(children) > 0 {
		item.Children = children
	}
	return item
}

func newID() string {
	return uuid.NewString()
}

// Walk visits every item depth-first in document order. The path holds the
// sibling index at each depth. Returning false from fn stops the walk.
func (p *Plan) Walk(fn func(path []int, item *Item) bool) {
	walkItems(p.Items, nil, fn)
}

func walkItems(items []Item, prefix []int, fn func([]int, *Item) bool) bool {
	for i := range items {
		path := append(append([]int(nil), prefix...), i)
		if !fn(path, &items[i]) {
			return false
		}
		if !walkItems(items[i].Children, path, fn) {
			return false
		}
	}
	return true
}

// ItemAt returns the item at the given index path, or nil if the path does
// not exist.
func (p *Plan) ItemAt(path []int) *Item {
	if len(path) == 0 {
		return nil
	}
	items := p.Items
	var item *Item
	for _, idx := range path {
		if idx < 0 || idx >= len(items) {
			return nil
		}
		item = &items[idx]
		items = item.Children
	}
	return item
}

// Counts tallies items by status across the whole tree.
func (p *Plan) Counts() map[Status]int {
	counts := make(map[Status]int)
	p.Walk(func(_ []int, item *Item) bool {
		counts[item.Status]++
		return true
	})
	return counts
}

// Total returns the number of items in the tree.
func (p *Plan) Total() int {
	total := 0
	p.Walk(func([]int, *Item) bool {
		total++
		return true
	})
	return total
}
