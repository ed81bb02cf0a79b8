package store

import (
	"fmt"
	"strings"

	"github.com/harrisonrobin/taskmind/pkg/model"
)

// Mode selects how freshly extracted tasks are reconciled with the list.
type Mode string

const (
	// ModeReplace makes the incoming batch the whole list.
	ModeReplace Mode = "replace"
	// ModeAppendDedup prepends incoming tasks whose title is not already listed.
	ModeAppendDedup Mode = "append"
)

func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return ModeReplace, nil
	case "append", "append-dedup":
		return ModeAppendDedup, nil
	default:
		return "", fmt.Errorf("unknown merge mode %q (want replace or append)", s)
	}
}

// Merge reconciles incoming with existing without mutating either slice.
//
// In ModeAppendDedup an incoming task is dropped when its title exactly
// equals the title of an existing task, or when its id is already taken.
// Two distinct tasks that share a title therefore collapse into the
// existing one.
func Merge(existing, incoming []model.Task, mode Mode) []model.Task {
	if mode == ModeReplace {
		out := make([]model.Task, len(incoming))
		copy(out, incoming)
		return out
	}

	titles := make(map[string]struct{}, len(existing))
	ids := make(map[string]struct{}, len(existing)+len(incoming))
	for _, t := range existing {
		titles[t.Title] = struct{}{}
		ids[t.ID] = struct{}{}
	}

	out := make([]model.Task, 0, len(incoming)+len(existing))
	for _, t := range incoming {
		if _, dup := titles[t.Title]; dup {
			continue
		}
		if _, taken := ids[t.ID]; taken {
			continue
		}
		ids[t.ID] = struct{}{}
		out = append(out, t)
	}
	return append(out, existing...)
}
