// Package google adapts Gmail, Google Chat, Drive and Calendar to taskmind.
package google

import (
	"context"
	"errors"
	"net/http"

	"github.com/harrisonrobin/taskmind/pkg/auth"
	"github.com/harrisonrobin/taskmind/pkg/logger"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// DefaultMaxItems bounds list sizes and per-fetcher fan-out.
const DefaultMaxItems = 10

func clientOptions(ctx context.Context, cred auth.Credential, extra []option.ClientOption) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, cred.TokenSource))}
	return append(opts, extra...)
}

func maxItems(n int) int {
	if n <= 0 {
		return DefaultMaxItems
	}
	return n
}

// IsPermissionError reports a 401 or 403 from a Google API.
func IsPermissionError(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden
	}
	return false
}

func logUnavailable(label string, err error) {
	if IsPermissionError(err) {
		logger.Warn("source not authorized, treating as unavailable", "source", label, "error", err)
		return
	}
	logger.Warn("source fetch failed, treating as unavailable", "source", label, "error", err)
}
