package extract

import (
	"github.com/harrisonrobin/taskmind/pkg/model"
)

// Schema type names, as the model API spells them.
const (
	TypeArray  = "ARRAY"
	TypeObject = "OBJECT"
	TypeString = "STRING"
	TypeNumber = "NUMBER"
)

// Schema is the subset of OpenAPI schema a generator constrains its output to.
type Schema struct {
	Type        string
	Format      string
	Description string
	Nullable    bool
	Enum        []string
	Items       *Schema
	Properties  map[string]*Schema
	Required    []string
}

// TaskListSchema is the response schema every generation is constrained to.
func TaskListSchema() *Schema {
	priorities := make([]string, 0, len(model.Priorities))
	for _, p := range model.Priorities {
		priorities = append(priorities, string(p))
	}
	sources := make([]string, 0, len(model.SourceTypes))
	for _, s := range model.SourceTypes {
		sources = append(sources, string(s))
	}

	return &Schema{
		Type: TypeArray,
		Items: &Schema{
			Type: TypeObject,
			Properties: map[string]*Schema{
				"title":           {Type: TypeString, Description: "Short actionable title"},
				"description":     {Type: TypeString, Description: "Detailed context or instructions"},
				"priority":        {Type: TypeString, Format: "enum", Enum: priorities},
				"sourceType":      {Type: TypeString, Format: "enum", Enum: sources},
				"sourceContext":   {Type: TypeString, Description: "The original text snippet"},
				"dueDate":         {Type: TypeString, Nullable: true, Description: "ISO date string or descriptive time (e.g. 'Next Friday') if inferred, else null"},
				"confidenceScore": {Type: TypeNumber, Description: "0 to 100"},
			},
			Required: []string{"title", "priority", "sourceType", "sourceContext", "confidenceScore"},
		},
	}
}
