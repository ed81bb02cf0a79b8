package google

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/model"
	"google.golang.org/api/calendar/v3"
)

// ExtendedPropertyKey holds the task id on every mirrored event.
const ExtendedPropertyKey = "taskmind_id"

const dateLayout = "2006-01-02"

var ErrNoDueDate = errors.New("task has no ISO due date")

var priorityColors = map[model.Priority]string{
	model.PriorityHigh:   "11",
	model.PriorityMedium: "5",
	model.PriorityLow:    "9",
}

// ParseDueDate accepts "2006-01-02" or RFC 3339. Free-form dates are rejected.
func ParseDueDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation(dateLayout, s, time.Local); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(time.Local), true
	}
	return time.Time{}, false
}

// TaskToEvent renders task as an all-day event on its due date.
func TaskToEvent(task model.Task, now time.Time) (*calendar.Event, error) {
	due, ok := ParseDueDate(task.DueDate)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoDueDate, task.ID)
	}
	day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.Local)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)

	summary := task.Title
	if task.IsCompleted {
		summary = "✓ " + task.Title
	} else if day.Before(today) {
		summary = "! " + task.Title
	}

	colorID, ok := priorityColors[task.Priority]
	if !ok {
		colorID = priorityColors[model.PriorityMedium]
	}

	var desc strings.Builder
	if task.Description != "" {
		desc.WriteString(task.Description)
		desc.WriteString("\n\n")
	}
	fmt.Fprintf(&desc, "Priority: %s\n", task.Priority)
	fmt.Fprintf(&desc, "Source: %s\n", task.SourceType)
	fmt.Fprintf(&desc, "Confidence: %.0f%%\n", task.ConfidenceScore)
	if task.SourceContext != "" {
		fmt.Fprintf(&desc, "\n> %s\n", task.SourceContext)
	}

	return &calendar.Event{
		Summary:     summary,
		Description: desc.String(),
		ColorId:     colorID,
		Start:       &calendar.EventDateTime{Date: day.Format(dateLayout)},
		End:         &calendar.EventDateTime{Date: day.AddDate(0, 0, 1).Format(dateLayout)},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{ExtendedPropertyKey: task.ID},
		},
	}, nil
}

// EventNeedsUpdate returns a patch carrying only the fields of target that
// differ from existing, or nil when they match.
func EventNeedsUpdate(existing, target *calendar.Event) *calendar.Event {
	patch := &calendar.Event{}
	needsUpdate := false

	if existing.Summary != target.Summary {
		patch.Summary = target.Summary
		needsUpdate = true
	}
	if existing.Description != target.Description {
		patch.Description = target.Description
		needsUpdate = true
	}
	if existing.ColorId != target.ColorId {
		patch.ColorId = target.ColorId
		needsUpdate = true
	}
	if eventDate(existing.Start) != eventDate(target.Start) || eventDate(existing.End) != eventDate(target.End) {
		patch.Start = target.Start
		patch.End = target.End
		needsUpdate = true
	}

	if needsUpdate {
		return patch
	}
	return nil
}

func eventDate(dt *calendar.EventDateTime) string {
	if dt == nil {
		return ""
	}
	if dt.Date != "" {
		return dt.Date
	}
	return dt.DateTime
}
