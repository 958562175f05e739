package plan

import (
	"encoding/json"
	"fmt"
)

// DecodeJSON reads a plan from its JSON form. Items without an ID get one,
// missing statuses default to pending and missing priorities to medium.
func DecodeJSON(data []byte) (*Plan, error) {
	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if p.Items == nil {
		p.Items = []Item{}
	}
	if err := Normalize(p.Items); err != nil {
		return nil, err
	}
	return &p, nil
}

// Normalize fills in defaults on items coming from an untrusted source and
// rejects unknown statuses and priorities. Empty child lists are dropped.
func Normalize(items []Item) error {
	for i := range items {
		item := &items[i]
		if item.ID == "" {
			item.ID = newID()
		}
		if item.Status == "" {
			item.Status = StatusPending
		}
		if item.Priority == "" {
			item.Priority = PriorityMedium
		}
		if !item.Status.Valid() {
			return fmt.Errorf("item %q: invalid status %q", item.Content, item.Status)
		}
		if !item.Priority.Valid() {
			return fmt.Errorf("item %q: invalid priority %q", item.Content, item.Priority)
		}
		if len(item.Children) == 0 {
			item.Children = nil
			continue
		}
		if err := Normalize(item.Children); err != nil {
			return err
		}
	}
	return nil
}

// EncodeJSON renders the plan as indented JSON.
func (p *Plan) EncodeJSON() ([]byte, error) {
	out := *p
	if out.Items == nil {
		out.Items = []Item{}
	}
	return json.MarshalIndent(out, "", "  ")
}
