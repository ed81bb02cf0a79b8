// Package corpus joins fetch results into the labeled text submitted for extraction.
package corpus

import (
	"errors"
	"strings"

	"github.com/harrisonrobin/taskmind/pkg/source"
)

// NoData marks a source that was checked and had nothing.
const NoData = "(no data)"

// ErrNoContent means every source came back empty; extraction must not run.
var ErrNoContent = errors.New("no content available")

// Aggregate renders each result under a "=== Label ===" header. Absent
// results keep their header with the NoData placeholder.
func Aggregate(results []source.Result) (string, error) {
	var b strings.Builder
	present := false

	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("=== ")
		b.WriteString(r.Label)
		b.WriteString(" ===\n")
		if r.OK {
			present = true
			b.WriteString(strings.TrimRight(r.Blob.Text, "\n"))
		} else {
			b.WriteString(NoData)
		}
		b.WriteString("\n")
	}

	if !present {
		return "", ErrNoContent
	}
	return b.String(), nil
}
