package model

import (
	"fmt"
	"strings"
)

// Priority is the urgency bucket of an extracted task.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Priorities lists every valid Priority in display order.
var Priorities = []Priority{PriorityHigh, PriorityMedium, PriorityLow}

// SourceType records which provider a task was inferred from.
type SourceType string

const (
	SourceGmail  SourceType = "Gmail"
	SourceChat   SourceType = "Chat"
	SourceManual SourceType = "Manual"
)

// SourceTypes lists every valid SourceType.
var SourceTypes = []SourceType{SourceGmail, SourceChat, SourceManual}

// Task represents one actionable item surfaced to the user.
type Task struct {
	ID              string     `json:"id" yaml:"id"`
	Title           string     `json:"title" yaml:"title"`
	Description     string     `json:"description,omitempty" yaml:"description,omitempty"`
	Priority        Priority   `json:"priority" yaml:"priority"`
	SourceType      SourceType `json:"sourceType" yaml:"sourceType"`
	SourceContext   string     `json:"sourceContext" yaml:"sourceContext"`
	DueDate         string     `json:"dueDate,omitempty" yaml:"dueDate,omitempty"`
	ConfidenceScore float64    `json:"confidenceScore" yaml:"confidenceScore"`
	IsCompleted     bool       `json:"isCompleted" yaml:"isCompleted"`
}

var priorityAliases = map[string]Priority{
	"high":     PriorityHigh,
	"urgent":   PriorityHigh,
	"critical": PriorityHigh,
	"asap":     PriorityHigh,
	"medium":   PriorityMedium,
	"normal":   PriorityMedium,
	"low":      PriorityLow,
	"minor":    PriorityLow,
}

var sourceAliases = map[string]SourceType{
	"gmail":        SourceGmail,
	"email":        SourceGmail,
	"mail":         SourceGmail,
	"chat":         SourceChat,
	"google chat":  SourceChat,
	"manual":       SourceManual,
	"manual input": SourceManual,
}

// ParsePriority maps an arbitrary decoded value onto a Priority.
// Unknown strings and non-string values yield PriorityMedium.
func ParsePriority(v any) Priority {
	s, ok := v.(string)
	if !ok {
		return PriorityMedium
	}
	if p, ok := priorityAliases[normalize(s)]; ok {
		return p
	}
	return PriorityMedium
}

// ParseSourceType maps an arbitrary decoded value onto a SourceType.
// Unknown strings and non-string values yield SourceManual.
func ParseSourceType(v any) SourceType {
	s, ok := v.(string)
	if !ok {
		return SourceManual
	}
	if st, ok := sourceAliases[normalize(s)]; ok {
		return st
	}
	return SourceManual
}

// Valid reports whether p is one of the three priorities.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityMedium || p == PriorityLow
}

// Valid reports whether s is one of the three source types.
func (s SourceType) Valid() bool {
	return s == SourceGmail || s == SourceChat || s == SourceManual
}

func normalize(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

func (t Task) String() string {
	mark := " "
	if t.IsCompleted {
		mark = "x"
	}
	s := fmt.Sprintf("[%s] %s (%s, %s)", mark, t.Title, t.Priority, t.SourceType)
	if t.DueDate != "" {
		s += " due " + t.DueDate
	}
	return s
}

// Stats summarises one pipeline run.
type Stats struct {
	EmailsScanned int `json:"emailsScanned"`
	ChatsScanned  int `json:"chatsScanned"`
	TasksFound    int `json:"tasksFound"`
}
