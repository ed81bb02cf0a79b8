package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/harrisonrobin/taskmind/pkg/model"
	"gopkg.in/yaml.v3"
)

// Export writes tasks as "json" or "yaml".
func Export(w io.Writer, tasks []model.Task, format string) error {
	if tasks == nil {
		tasks = []model.Task{}
	}
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tasks)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(tasks); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}
