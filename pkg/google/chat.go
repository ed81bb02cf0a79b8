package google

import (
	"context"
	"strings"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/source"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/chat/v1"
	"google.golang.org/api/option"
)

// ChatFetcher reads recent Google Chat messages. Only work-tier accounts
// can use the Chat API.
type ChatFetcher struct {
	MaxItems int
	Options  []option.ClientOption
}

func (f *ChatFetcher) Label() string { return source.LabelChat }

func (f *ChatFetcher) Fetch(ctx context.Context, cred auth.Credential) (source.Blob, bool) {
	if !cred.Enhanced {
		logger.Info("chat requires a work account, skipping", "source", f.Label())
		return source.Blob{}, false
	}
	if !cred.Valid() {
		logger.Warn("no Google credential", "source", f.Label())
		return source.Blob{}, false
	}
	limit := maxItems(f.MaxItems)

	srv, err := chat.NewService(ctx, clientOptions(ctx, cred, f.Options)...)
	if err != nil {
		logUnavailable(f.Label(), err)
		return source.Blob{}, false
	}

	resp, err := srv.Spaces.List().PageSize(int64(limit)).Context(ctx).Do()
	if err != nil {
		logUnavailable(f.Label(), err)
		return source.Blob{}, false
	}
	spaces := resp.Spaces
	if len(spaces) > limit {
		spaces = spaces[:limit]
	}

	perSpace := make([][]*chat.Message, len(spaces))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, sp := range spaces {
		g.Go(func() error {
			msgs, err := srv.Spaces.Messages.List(sp.Name).
				PageSize(int64(limit)).
				OrderBy("createTime desc").
				Context(ctx).
				Do()
			if err != nil {
				logger.Debug("skipping space", "source", f.Label(), "space", sp.Name, "error", err)
				return nil
			}
			perSpace[i] = msgs.Messages
			return nil
		})
	}
	_ = g.Wait()

	var b strings.Builder
	total := 0
	for i, sp := range spaces {
		if total >= limit {
			break
		}
		header := false
		for _, m := range perSpace[i] {
			if total >= limit {
				break
			}
			text := strings.TrimSpace(m.Text)
			if text == "" {
				continue
			}
			if !header {
				if b.Len() > 0 {
					b.WriteString("\n")
				}
				b.WriteString("[Google Chat - " + spaceName(sp) + "]\n")
				header = true
			}
			b.WriteString(senderName(m) + ": " + text + "\n")
			total++
		}
	}

	if total == 0 {
		logger.Info("no recent chat messages", "source", f.Label())
		return source.Blob{}, false
	}
	return source.Blob{Text: b.String(), Items: total}, true
}

func spaceName(sp *chat.Space) string {
	if sp.DisplayName != "" {
		return sp.DisplayName
	}
	return sp.Name
}

func senderName(m *chat.Message) string {
	if m.Sender == nil {
		return "Unknown"
	}
	if m.Sender.DisplayName != "" {
		return m.Sender.DisplayName
	}
	if m.Sender.Name != "" {
		return m.Sender.Name
	}
	return "Unknown"
}
