// Package source defines how raw communication text is acquired. A fetcher
// never fails past its own boundary: every problem becomes "unavailable".
package source

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Labels of the built-in providers.
const (
	LabelGmail  = "Gmail"
	LabelChat   = "Google Chat"
	LabelManual = "Manual Input"
)

// Blob is the concatenated text of recent items from one provider.
type Blob struct {
	Text  string
	Items int
}

// Fetcher retrieves recent communication text from one upstream provider.
// The boolean result is false when the provider is unreachable, unauthorized
// or empty.
type Fetcher interface {
	Label() string
	Fetch(ctx context.Context, cred auth.Credential) (Blob, bool)
}

// Result is one labeled fetch outcome.
type Result struct {
	Label string
	Blob  Blob
	OK    bool
}

// Text is the manual source: user-supplied text.
type Text struct {
	Name string
	Body string
}

func (t Text) Label() string {
	if t.Name == "" {
		return LabelManual
	}
	return t.Name
}

func (t Text) Fetch(context.Context, auth.Credential) (Blob, bool) {
	if strings.TrimSpace(t.Body) == "" {
		return Blob{}, false
	}
	return Blob{Text: t.Body, Items: 1}, true
}

// FetchAll runs every fetcher concurrently, each bounded by timeout (when
// positive), and returns results in fetcher order.
func FetchAll(ctx context.Context, cred auth.Credential, fetchers []Fetcher, timeout time.Duration) []Result {
	results := make([]Result, len(fetchers))

	var g errgroup.Group
	for i, f := range fetchers {
		g.Go(func() error {
			results[i] = fetchOne(ctx, cred, f, timeout)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func fetchOne(ctx context.Context, cred auth.Credential, f Fetcher, timeout time.Duration) (res Result) {
	label := f.Label()
	res.Label = label

	defer func() {
		if r := recover(); r != nil {
			logger.Error("fetcher panicked", "source", label, "panic", fmt.Sprint(r))
			res = Result{Label: label}
		}
	}()

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	blob, ok := f.Fetch(ctx, cred)
	if ok && strings.TrimSpace(blob.Text) == "" {
		ok = false
	}
	if !ok {
		blob = Blob{}
	}
	logger.Debug("fetch finished", "source", label, "available", ok, "items", blob.Items, "elapsed", time.Since(start))
	return Result{Label: label, Blob: blob, OK: ok}
}
