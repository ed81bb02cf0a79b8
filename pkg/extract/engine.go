// Package extract turns a communication corpus into task records through a
// schema-constrained generative model, re-validating whatever comes back.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/model"
)

var (
	// ErrMissingCredential means no model API key is configured. Retrying will not help.
	ErrMissingCredential = errors.New("missing Gemini API key; add it with `taskmind settings set --api-key`")
	// ErrExtractionFailed wraps every provider-side failure of one extraction.
	ErrExtractionFailed = errors.New("task extraction failed")
)

// Request is one schema-constrained generation.
type Request struct {
	SystemInstruction string
	Prompt            string
	Schema            *Schema
}

// Generator is the generative model provider.
type Generator interface {
	Generate(ctx context.Context, credential string, req Request) (string, error)
}

const baseInstruction = `You are an expert productivity assistant.
Your goal is to analyze raw text logs from Emails and Chat messages to identify actionable tasks.

Rules:
1. Ignore casual conversation or informational updates that don't require action.
2. Infer priority based on urgency words (e.g., "ASAP", "tomorrow", "critical").
3. Infer source type based on context clues (e.g., "Subject:" implies Gmail, names/timestamps in a chat space imply Chat, anything else is Manual).
4. Always copy the exact sentence that triggered the task into sourceContext.
5. Set a confidence score (0-100) based on how clear the task is.
6. A section containing only "(no data)" was checked and is empty; never invent tasks for it.
7. If there are no clear tasks, return an empty array. Do not invent tasks.`

// Instruction builds the system instruction for a policy.
func Instruction(policy model.Policy) string {
	if policy.CustomInstructions == "" {
		return baseInstruction
	}
	return baseInstruction + "\n\nUSER CUSTOM RULES (IMPORTANT): " + policy.CustomInstructions
}

func prompt(corpus string) string {
	return "Analyze the following communication logs and extract a list of to-do items.\n\nLOGS:\n" + corpus
}

// Engine is the task extraction engine.
type Engine struct {
	gen     Generator
	timeout time.Duration
	newID   func() string
}

// NewEngine returns an engine calling gen, each call bounded by timeout when positive.
func NewEngine(gen Generator, timeout time.Duration) *Engine {
	return &Engine{gen: gen, timeout: timeout, newID: uuid.NewString}
}

// Extract submits corpus under policy and returns normalized tasks. It is
// all-or-nothing: an error means no task from this call may be used.
func (e *Engine) Extract(ctx context.Context, corpus string, policy model.Policy) ([]model.Task, error) {
	if strings.TrimSpace(policy.Credential) == "" {
		return nil, ErrMissingCredential
	}
	if strings.TrimSpace(corpus) == "" {
		return nil, nil
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := e.gen.Generate(ctx, policy.Credential, Request{
		SystemInstruction: Instruction(policy),
		Prompt:            prompt(corpus),
		Schema:            TaskListSchema(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	items, err := decodeResponse(text)
	if err != nil {
		logger.Warn("model response was not a task array, treating as no tasks", "error", err, "bytes", len(text))
		return nil, nil
	}

	tasks := make([]model.Task, 0, len(items))
	for _, item := range items {
		task, ok := normalize(item)
		if !ok {
			logger.Debug("dropping extracted item without a title")
			continue
		}
		task.ID = e.newID()
		tasks = append(tasks, task)
	}

	logger.Info("extraction finished", "tasks", len(tasks), "raw_items", len(items), "elapsed", time.Since(start))
	return tasks, nil
}
