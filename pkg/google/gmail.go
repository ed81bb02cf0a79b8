package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"github.com/harrisonrobin/taskmind/pkg/source"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailFetcher reads the most recent inbox messages.
type GmailFetcher struct {
	MaxItems int
	Options  []option.ClientOption
}

func (f *GmailFetcher) Label() string { return source.LabelGmail }

func (f *GmailFetcher) Fetch(ctx context.Context, cred auth.Credential) (source.Blob, bool) {
	if !cred.Valid() {
		logger.Warn("no Google credential", "source", f.Label())
		return source.Blob{}, false
	}
	limit := maxItems(f.MaxItems)

	srv, err := gmail.NewService(ctx, clientOptions(ctx, cred, f.Options)...)
	if err != nil {
		logUnavailable(f.Label(), err)
		return source.Blob{}, false
	}

	list, err := srv.Users.Messages.List("me").LabelIds("INBOX").MaxResults(int64(limit)).Context(ctx).Do()
	if err != nil {
		logUnavailable(f.Label(), err)
		return source.Blob{}, false
	}
	if len(list.Messages) == 0 {
		logger.Info("inbox is empty", "source", f.Label())
		return source.Blob{}, false
	}
	if len(list.Messages) > limit {
		list.Messages = list.Messages[:limit]
	}

	rendered := make([]string, len(list.Messages))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, m := range list.Messages {
		g.Go(func() error {
			msg, err := srv.Users.Messages.Get("me", m.Id).
				Format("metadata").
				MetadataHeaders("Subject", "From", "Date").
				Context(ctx).
				Do()
			if err != nil {
				logger.Debug("skipping message", "source", f.Label(), "id", m.Id, "error", err)
				return nil
			}
			rendered[i] = renderMessage(msg)
			return nil
		})
	}
	_ = g.Wait()

	parts := make([]string, 0, len(rendered))
	for _, r := range rendered {
		if r != "" {
			parts = append(parts, r)
		}
	}
	if len(parts) == 0 {
		logger.Warn("no message details could be read", "source", f.Label())
		return source.Blob{}, false
	}
	return source.Blob{Text: strings.Join(parts, "\n"), Items: len(parts)}, true
}

func renderMessage(msg *gmail.Message) string {
	subject, from, date := "(No Subject)", "(Unknown Sender)", ""
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				if h.Value != "" {
					subject = h.Value
				}
			case "From":
				if h.Value != "" {
					from = h.Value
				}
			case "Date":
				date = h.Value
			}
		}
	}
	return fmt.Sprintf("Subject: %s\nFrom: %s\nDate: %s\nSnippet: %s\n---", subject, from, date, msg.Snippet)
}
