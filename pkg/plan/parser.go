package plan

import (
	"regexp"
	"strings"
	"time"
)

const (
	DefaultTitle  = "Untitled Plan"
	DefaultSource = "unknown"
)

var (
	itemLineRegex = regexp.MustCompile(`^(\s*)[-*+] \[([ xX])\] \*\*\[(HIGH|MED|LOW)\]\*\* ?(.*?)(?: ?(\*\(in progress\)\*|~~cancelled~~)[ \t]*)?$`)
	sourceRegex   = regexp.MustCompile(`^> Shared from (.+?) \| `)
	updatedRegex  = regexp.MustCompile(`Updated: (.+)$`)
)

var labelPriorities = map[string]Priority{
	"HIGH": PriorityHigh,
	"MED":  PriorityMedium,
	"LOW":  PriorityLow,
}

// node is an item under construction while the tree is rebuilt from
// indentation.
type node struct {
	item     Item
	children []*node
}

type frame struct {
	depth int
	list  *[]*node
}

// Parse reads a document produced by Format, possibly edited by hand, back into
// a Plan. It returns false only when the document does not carry the plan
// marker; everything else degrades field by field. Item IDs are not part of the
// document, so every parsed item gets a new one.
func Parse(doc string) (*Plan, bool) {
	if !IsPlanDocument(doc) {
		return nil, false
	}

	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	lines := strings.Split(doc, "\n")

	p := &Plan{
		Title: DefaultTitle,
		Items: []Item{},
	}

	titleIdx := -1
	provenanceIdx := -1
	tasksIdx := -1
	for i, line := range lines {
		switch {
		case titleIdx == -1 && strings.HasPrefix(line, titlePrefix):
			titleIdx = i
		case provenanceIdx == -1 && strings.HasPrefix(line, provenancePrefix):
			provenanceIdx = i
		case tasksIdx == -1 && strings.TrimSpace(line) == tasksHeading:
			tasksIdx = i
		}
	}

	if titleIdx >= 0 {
		p.Title = strings.TrimSpace(strings.TrimPrefix(lines[titleIdx], titlePrefix))
	}

	source, updatedAt := DefaultSource, ""
	if provenanceIdx >= 0 {
		source, updatedAt = parseProvenance(lines[provenanceIdx])
	}
	if updatedAt == "" {
		updatedAt = time.Now().UTC().Format(time.RFC3339)
	}
	p.Metadata = Metadata{
		Source:    source,
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}

	p.Description = extractDescription(lines, titleIdx, provenanceIdx, tasksIdx)

	var roots []*node
	stack := []frame{{depth: -1, list: &roots}}
	for _, line := range lines {
		n, depth, ok := parseItemLine(line)
		if !ok {
			continue
		}
		for len(stack) > 1 && stack[len(stack)-1].depth >= depth {
			stack = stack[:len(stack)-1]
		}
		top := stack[len(stack)-1]
		*top.list = append(*top.list, n)
		stack = append(stack, frame{depth: depth, list: &n.children})
	}

	for _, n := range roots {
		p.Items = append(p.Items, n.build())
	}

	return p, true
}

func parseProvenance(line string) (source, updatedAt string) {
	source = DefaultSource
	if m := sourceRegex.FindStringSubmatch(line); len(m) > 1 {
		if s := strings.TrimSpace(m[1]); s != "" {
			source = s
		}
	}
	if m := updatedRegex.FindStringSubmatch(line); len(m) > 1 {
		updatedAt = strings.TrimSpace(m[1])
	}
	return source, updatedAt
}

// extractDescription collects the non-blank lines between the provenance line
// and the tasks heading, skipping the overview heading.
func extractDescription(lines []string, titleIdx, provenanceIdx, tasksIdx int) string {
	start := provenanceIdx
	if start < 0 {
		start = titleIdx
	}
	end := tasksIdx
	if end < 0 {
		end = len(lines)
		for i := start + 1; i < len(lines); i++ {
			if itemLineRegex.MatchString(lines[i]) || strings.TrimSpace(lines[i]) == "---" {
				end = i
				break
			}
		}
	}
	if start < 0 || end <= start {
		return ""
	}

	var kept []string
	for _, line := range lines[start+1 : end] {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || trimmed == overviewHeading || trimmed == Marker {
			continue
		}
		kept = append(kept, line)
	}
	return strings.Join(kept, "\n")
}

func parseItemLine(line string) (*node, int, bool) {
	m := itemLineRegex.FindStringSubmatch(line)
	if m == nil {
		return nil, 0, false
	}
	indent, check, label, content := m[1], m[2], m[3], m[4]

	var status Status
	switch {
	case strings.Contains(line, cancelledSuffix):
		status = StatusCancelled
	case strings.Contains(line, inProgressSuffix):
		status = StatusInProgress
	case check == "x" || check == "X":
		status = StatusCompleted
	default:
		status = StatusPending
	}

	priority, ok := labelPriorities[label]
	if !ok {
		priority = PriorityMedium
	}

	n := &node{item: Item{
		ID:       newID(),
		Content:  content,
		Status:   status,
		Priority: priority,
	}}
	return n, len(indent) / len(indentUnit), true
}

// build converts the node tree into items, leaving Children nil for leaves.
func (n *node) build() Item {
	item := n.item
	for _, child := range n.children {
		item.Children = append(item.Children, child.build())
	}
	return item
}
