package plan

import (
	"strings"
)

// Marker identifies a machine-authored plan document. It is written on its own
// line directly above the title and nowhere else.
const Marker = "<!-- grove:plan -->"

const (
	titlePrefix      = "# Plan: "
	provenancePrefix = "> Shared from "
	overviewHeading  = "## Overview"
	tasksHeading     = "## Tasks"
	indentUnit       = "  "

	inProgressSuffix = "*(in progress)*"
	cancelledSuffix  = "~~cancelled~~"

	footer = "_Reply in this chat with feedback. Tick a box or edit a task line to update the plan._"
)

var priorityLabels = map[Priority]string{
	PriorityHigh:   "HIGH",
	PriorityMedium: "MED",
	PriorityLow:    "LOW",
}

// IsPlanDocument reports whether text carries the plan marker. It does not
// parse the document, so it is cheap enough to run over a whole chat history.
func IsPlanDocument(text string) bool {
	return strings.Contains(text, Marker)
}

// Format renders a plan as a markdown document that Parse can read back.
func Format(p Plan) string {
	var sb strings.Builder

	sb.WriteString(Marker)
	sb.WriteString("\n")
	sb.WriteString(titlePrefix + p.Title + "\n")
	sb.WriteString(provenancePrefix + p.Metadata.Source + " | Updated: " + p.Metadata.UpdatedAt + "\n")
	sb.WriteString("\n")

	if p.Description != "" {
		sb.WriteString(overviewHeading + "\n")
		sb.WriteString(p.Description)
		sb.WriteString("\n\n")
	}

	sb.WriteString(tasksHeading + "\n")
	for _, item := range p.Items {
		formatItem(&sb, item, 0)
	}

	sb.WriteString("\n---\n")
	sb.WriteString(footer + "\n")

	return sb.String()
}

func formatItem(sb *strings.Builder, item Item, depth int) {
	sb.WriteString(strings.Repeat(indentUnit, depth))
	if item.Status == StatusCompleted {
		sb.WriteString("- [x] ")
	} else {
		sb.WriteString("- [ ] ")
	}

	label, ok := priorityLabels[item.Priority]
	if !ok {
		label = priorityLabels[PriorityMedium]
	}
	sb.WriteString("**[" + label + "]** ")
	sb.WriteString(item.Content)

	switch item.Status {
	case StatusInProgress:
		sb.WriteString(" " + inProgressSuffix)
	case StatusCancelled:
		sb.WriteString(" " + cancelledSuffix)
	}
	sb.WriteString("\n")

	for _, child := range item.Children {
		formatItem(sb, child, depth+1)
	}
}
