package extract

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/harrisonrobin/taskmind/pkg/model"
)

// decodeResponse parses the model text into raw objects. Code fences are
// stripped and a lone object (or a {"tasks": [...]} wrapper) is accepted.
func decodeResponse(text string) ([]map[string]any, error) {
	text = stripFences(text)
	if text == "" {
		return nil, nil
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, err
	}

	var elems []any
	switch t := v.(type) {
	case nil:
		return nil, nil
	case []any:
		elems = t
	case map[string]any:
		if inner, ok := t["tasks"].([]any); ok {
			elems = inner
		} else {
			elems = []any{t}
		}
	default:
		return nil, fmt.Errorf("unexpected top-level JSON %T", v)
	}

	items := make([]map[string]any, 0, len(elems))
	for _, e := range elems {
		if obj, ok := e.(map[string]any); ok {
			items = append(items, obj)
		}
	}
	return items, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[i+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

// normalize coerces one raw object into a task. ok is false when no usable
// title is present.
func normalize(item map[string]any) (model.Task, bool) {
	title := strings.TrimSpace(stringValue(item["title"]))
	if title == "" {
		return model.Task{}, false
	}
	return model.Task{
		Title:           title,
		Description:     stringValue(item["description"]),
		Priority:        model.ParsePriority(item["priority"]),
		SourceType:      model.ParseSourceType(item["sourceType"]),
		SourceContext:   stringValue(item["sourceContext"]),
		DueDate:         dueDate(item["dueDate"]),
		ConfidenceScore: confidence(item["confidenceScore"]),
	}, true
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func dueDate(v any) string {
	s := strings.TrimSpace(stringValue(v))
	switch strings.ToLower(s) {
	case "null", "none", "n/a", "undefined":
		return ""
	}
	return s
}

func confidence(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(t), "%"), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) {
		return 0
	}
	return math.Max(0, math.Min(100, f))
}
