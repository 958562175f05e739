package plan

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStatusAndPriority(t *testing.T) {
	s, err := ParseStatus("in_progress")
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, s)

	_, err = ParseStatus("done")
	assert.Error(t, err)

	pr, err := ParsePriority("low")
	require.NoError(t, err)
	assert.Equal(t, PriorityLow, pr)

	_, err = ParsePriority("MED")
	assert.Error(t, err)
}

func TestWalkAndItemAt(t *testing.T) {
	p := &Plan{Items: []Item{
		NewItem("a", StatusPending, PriorityHigh,
			NewItem("a.1", StatusCompleted, PriorityLow),
			NewItem("a.2", StatusCancelled, PriorityLow)),
		NewItem("b", StatusInProgress, PriorityMedium),
	}}

	var visited []string
	p.Walk(func(path []int, item *Item) bool {
		visited = append(visited, item.Content)
		return true
	})
	assert.Equal(t, []string{"a", "a.1", "a.2", "b"}, visited)

	item := p.ItemAt([]int{0, 1})
	require.NotNil(t, item)
	assert.Equal(t, "a.2", item.Content)

	item.Status = StatusCompleted
	assert.Equal(t, StatusCompleted, p.Items[0].Children[1].Status)

	assert.Nil(t, p.ItemAt(nil))
	assert.Nil(t, p.ItemAt([]int{2}))
	assert.Nil(t, p.ItemAt([]int{1, 0}))

	counts := p.Counts()
	assert.Equal(t, 2, counts[StatusCompleted])
	assert.Equal(t, 1, counts[StatusPending])
	assert.Equal(t, 1, counts[StatusInProgress])
	assert.Equal(t, 4, p.Total())
}

func TestWalkStops(t *testing.T) {
	p := &Plan{Items: []Item{
		NewItem("a", StatusPending, PriorityHigh, NewItem("a.1", StatusPending, PriorityLow)),
		NewItem("b", StatusPending, PriorityHigh),
	}}
	n := 0
	p.Walk(func([]int, *Item) bool {
		n++
		return n < 2
	})
	assert.Equal(t, 2, n)
}

func TestDecodeJSON(t *testing.T) {
	data := `{
  "title": "From agent",
  "items": [
    {"content": "first", "priority": "high"},
    {"id": "keep", "content": "second", "status": "completed", "priority": "low", "children": []}
  ],
  "metadata": {"source": "cli"}
}`
	p, err := DecodeJSON([]byte(data))
	require.NoError(t, err)
	require.Len(t, p.Items, 2)
	assert.NotEmpty(t, p.Items[0].ID)
	assert.Equal(t, StatusPending, p.Items[0].Status)
	assert.Equal(t, "keep", p.Items[1].ID)
	assert.Nil(t, p.Items[1].Children)

	_, err = DecodeJSON([]byte(`{"title":"x","items":[{"content":"y","status":"done"}]}`))
	assert.Error(t, err)

	_, err = DecodeJSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestEncodeJSONKeepsEmptyItems(t *testing.T) {
	p := &Plan{Title: "Empty"}
	data, err := p.EncodeJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"items": []`)
	assert.False(t, strings.Contains(string(data), "children"))
	assert.NotContains(t, string(data), "description")
}
