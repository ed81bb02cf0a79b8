package events

import (
	"sync"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/logger"
)

// Type names what changed.
type Type string

const (
	TasksReplaced Type = "tasks_replaced"
	TasksMerged   Type = "tasks_merged"
	TaskToggled   Type = "task_toggled"
	TasksCleared  Type = "tasks_cleared"
	SyncStarted   Type = "sync_started"
	SyncFinished  Type = "sync_finished"
)

// Event is delivered to subscribers after the change has been persisted.
type Event struct {
	Type      Type           `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Subscriber receives events on its own goroutine.
type Subscriber func(Event)

// Bus fans events out to subscribers through buffered channels. A subscriber
// whose buffer is full misses the event rather than blocking publishers.
type Bus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	closed      bool
}

func NewBus(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Bus{bufferSize: bufferSize}
}

// Subscribe registers fn for every event type and returns its unsubscribe func.
func (b *Bus) Subscribe(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return func() {}
	}
	b.subscribers = append(b.subscribers, ch)

	go func() {
		for event := range ch {
			func() {
				defer func() {
					if r := recover(); r != nil {
						logger.Error("event subscriber panicked", "event", event.Type, "panic", r)
					}
				}()
				fn(event)
			}()
		}
	}()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.subscribers {
			if sub == ch {
				b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
				close(ch)
				break
			}
		}
	}
}

func (b *Bus) Publish(t Type, data map[string]any) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	event := Event{Type: t, Timestamp: time.Now().UTC(), Data: data}
	for _, ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			logger.Debug("event dropped for slow subscriber", "event", t)
		}
	}
}

// Close closes all subscriber channels.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
	b.closed = true
}
