package extract

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/model"
)

const liveCorpus = `=== Gmail ===
Subject: Q3 Financial Report
From: Finance Team (finance@company.com)
Snippet: Please submit your department's expense report by Friday. It's critical for the board meeting.
---

=== Google Chat ===
[Google Chat - #random]
Mike: lunch plans?
`

// Runs against the real Gemini API only if GEMINI_API_KEY env is set.
func TestLiveExtractionFiltersChatter(t *testing.T) {
	key := os.Getenv("GEMINI_API_KEY")
	if key == "" {
		t.Skip("GEMINI_API_KEY not set; skipping live test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	tasks, err := NewEngine(NewGemini(DefaultModel), 0).Extract(ctx, liveCorpus, model.Policy{Credential: key})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	foundFriday := false
	for _, task := range tasks {
		if strings.Contains(strings.ToLower(task.SourceContext), "lunch") {
			t.Errorf("non-actionable chat message became a task: %+v", task)
		}
		if strings.Contains(task.SourceContext, "Friday") {
			foundFriday = true
		}
	}
	if !foundFriday {
		t.Errorf("expected a task citing the Friday submission, got %+v", tasks)
	}
}
