package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/index"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/model"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// PushOutcome says what happened to one task during a push.
type PushOutcome string

const (
	PushCreated   PushOutcome = "created"
	PushUpdated   PushOutcome = "updated"
	PushUnchanged PushOutcome = "unchanged"
	PushSkipped   PushOutcome = "skipped"
)

// PushSummary counts outcomes across a push.
type PushSummary struct {
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
	Removed   int
	Failed    int
}

// CalendarClient mirrors tasks into one Google Calendar.
type CalendarClient struct {
	srv        *calendar.Service
	calendarID string
	index      *index.EventIndex
}

// NewCalendarClient resolves calendarName among the user's calendars.
func NewCalendarClient(ctx context.Context, cred auth.Credential, calendarName string, idx *index.EventIndex, opts ...option.ClientOption) (*CalendarClient, error) {
	srv, err := calendar.NewService(ctx, clientOptions(ctx, cred, opts)...)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve Calendar client: %w", err)
	}

	calendarList, err := srv.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve calendar list: %w", err)
	}

	var calendarID string
	for _, item := range calendarList.Items {
		if item.Summary == calendarName {
			calendarID = item.Id
			break
		}
	}
	if calendarID == "" {
		return nil, fmt.Errorf("calendar '%s' not found", calendarName)
	}

	return &CalendarClient{srv: srv, calendarID: calendarID, index: idx}, nil
}

// Push mirrors every task with an ISO due date, deletes the indexed events
// of tasks no longer listed and saves the index.
func (c *CalendarClient) Push(ctx context.Context, tasks []model.Task, now time.Time) (PushSummary, error) {
	var sum PushSummary
	listed := make(map[string]struct{}, len(tasks))
	for _, task := range tasks {
		listed[task.ID] = struct{}{}
		outcome, err := c.PushTask(ctx, task, now)
		if err != nil {
			logger.Warn("could not push task to calendar", "id", task.ID, "title", task.Title, "error", err)
			sum.Failed++
			continue
		}
		switch outcome {
		case PushCreated:
			sum.Created++
		case PushUpdated:
			sum.Updated++
		case PushUnchanged:
			sum.Unchanged++
		case PushSkipped:
			sum.Skipped++
		}
	}

	if c.index != nil {
		for taskID, eventID := range c.index.Entries() {
			if _, ok := listed[taskID]; ok {
				continue
			}
			if err := c.DeleteEvent(ctx, eventID); err != nil {
				logger.Warn("could not delete calendar event of removed task", "id", taskID, "event", eventID, "error", err)
				sum.Failed++
				continue
			}
			c.index.Remove(taskID)
			sum.Removed++
		}
		if err := c.index.Save(ctx); err != nil {
			return sum, err
		}
	}
	return sum, nil
}

// DeleteEvent removes eventID. An event that is already gone is not an error.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string) error {
	err := c.srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do()
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return nil
	}
	return err
}

// PushTask creates the event for task or patches the existing one.
func (c *CalendarClient) PushTask(ctx context.Context, task model.Task, now time.Time) (PushOutcome, error) {
	event, err := TaskToEvent(task, now)
	if errors.Is(err, ErrNoDueDate) {
		return PushSkipped, nil
	}
	if err != nil {
		return "", err
	}

	var existing *calendar.Event
	if c.index != nil {
		if eventID := c.index.Get(task.ID); eventID != "" {
			existing, err = c.srv.Events.Get(c.calendarID, eventID).Context(ctx).Do()
			if err != nil || existing.Status == "cancelled" {
				existing = nil
			}
		}
	}

	if existing == nil {
		existing, err = c.GetEventByTaskID(ctx, task.ID)
		if err != nil {
			return "", fmt.Errorf("error searching for event: %w", err)
		}
	}

	if existing != nil {
		if c.index != nil {
			c.index.Set(task.ID, existing.Id)
		}
		patch := EventNeedsUpdate(existing, event)
		if patch == nil {
			return PushUnchanged, nil
		}
		if _, err := c.srv.Events.Patch(c.calendarID, existing.Id, patch).Context(ctx).Do(); err != nil {
			return "", err
		}
		return PushUpdated, nil
	}

	created, err := c.srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if c.index != nil {
		c.index.Set(task.ID, created.Id)
	}
	return PushCreated, nil
}

// GetEventByTaskID searches for the event carrying taskID in its private
// extended properties.
func (c *CalendarClient) GetEventByTaskID(ctx context.Context, taskID string) (*calendar.Event, error) {
	events, err := c.srv.Events.List(c.calendarID).
		PrivateExtendedProperty(fmt.Sprintf("%s=%s", ExtendedPropertyKey, taskID)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	if len(events.Items) > 0 {
		return events.Items[0], nil
	}
	return nil, nil
}
