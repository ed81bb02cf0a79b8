package source

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	label string
	fn    func(ctx context.Context) (Blob, bool)
}

func (f fakeFetcher) Label() string { return f.label }

func (f fakeFetcher) Fetch(ctx context.Context, _ auth.Credential) (Blob, bool) {
	return f.fn(ctx)
}

func TestTextSource(t *testing.T) {
	_, ok := Text{Body: "   \n"}.Fetch(context.Background(), auth.Credential{})
	assert.False(t, ok)

	b, ok := Text{Body: "call Bob"}.Fetch(context.Background(), auth.Credential{})
	assert.True(t, ok)
	assert.Equal(t, "call Bob", b.Text)
	assert.Equal(t, "Manual Input", Text{}.Label())
}

func TestFetchAllPreservesOrderAndAbsorbsFailures(t *testing.T) {
	fetchers := []Fetcher{
		fakeFetcher{"Gmail", func(context.Context) (Blob, bool) {
			time.Sleep(20 * time.Millisecond)
			return Blob{Text: "mail", Items: 2}, true
		}},
		fakeFetcher{"Chat", func(context.Context) (Blob, bool) { panic("chat exploded") }},
		fakeFetcher{"Blank", func(context.Context) (Blob, bool) { return Blob{Text: "  ", Items: 1}, true }},
		fakeFetcher{"Slow", func(ctx context.Context) (Blob, bool) {
			<-ctx.Done()
			return Blob{}, false
		}},
	}

	results := FetchAll(context.Background(), auth.Credential{}, fetchers, 50*time.Millisecond)
	require.Len(t, results, 4)

	assert.Equal(t, Result{Label: "Gmail", Blob: Blob{Text: "mail", Items: 2}, OK: true}, results[0])
	assert.Equal(t, Result{Label: "Chat"}, results[1])
	assert.Equal(t, Result{Label: "Blank"}, results[2])
	assert.Equal(t, Result{Label: "Slow"}, results[3])
}

func TestFetchAllRunsConcurrently(t *testing.T) {
	var inFlight, peak int32
	slow := func(context.Context) (Blob, bool) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(30 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return Blob{Text: "x"}, true
	}

	fetchers := []Fetcher{fakeFetcher{"a", slow}, fakeFetcher{"b", slow}, fakeFetcher{"c", slow}}
	FetchAll(context.Background(), auth.Credential{}, fetchers, 0)

	assert.Equal(t, int32(3), atomic.LoadInt32(&peak), "independent fetches must not be serialized")
}
