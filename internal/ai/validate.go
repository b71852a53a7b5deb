package ai

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Schema is a named JSON schema for a structured completion.
type Schema struct {
	Name       string
	Definition map[string]any
}

var compiled sync.Map // name -> *jsonschema.Schema

// validate checks raw against schema and decodes it into out.
func validate(schema *Schema, raw json.RawMessage, out any) error {
	var parsed any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("invalid JSON: %w", err)}
	}
	sch, err := compile(schema)
	if err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("compile schema %q: %w", schema.Name, err)}
	}
	if err := sch.Validate(parsed); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: fmt.Errorf("schema validation failed: %w", err)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &ErrInvalidResponse{Content: raw, Err: err}
	}
	return nil
}

func compile(schema *Schema) (*jsonschema.Schema, error) {
	if v, ok := compiled.Load(schema.Name); ok {
		return v.(*jsonschema.Schema), nil
	}
	// The compiler wants plain decoded JSON values, not Go maps of typed slices.
	b, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, err
	}
	var def any
	if err := json.Unmarshal(b, &def); err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	url := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(url, def); err != nil {
		return nil, err
	}
	sch, err := c.Compile(url)
	if err != nil {
		return nil, err
	}
	compiled.Store(schema.Name, sch)
	return sch, nil
}

func object(required []string, props map[string]any) map[string]any {
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}

var str = map[string]any{"type": "string"}

var topicsSchema = &Schema{
	Name: "study_topics",
	Definition: object([]string{"topics"}, map[string]any{
		"topics": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": object([]string{"title", "icon", "content"}, map[string]any{
				"title":   map[string]any{"type": "string", "minLength": 1},
				"icon":    str,
				"content": str,
			}),
		},
	}),
}

var quizSchema = &Schema{
	Name: "quiz_questions",
	Definition: object([]string{"questions"}, map[string]any{
		"questions": map[string]any{
			"type":     "array",
			"minItems": 1,
			"items": object([]string{"question", "options", "correctAnswer", "explanation", "hint", "topicId"}, map[string]any{
				"question": map[string]any{"type": "string", "minLength": 1},
				"options": map[string]any{
					"type":     "array",
					"minItems": 2,
					"items":    str,
				},
				"correctAnswer": map[string]any{"type": "integer", "minimum": 0},
				"explanation":   str,
				"hint":          str,
				"topicId":       str,
			}),
		},
	}),
}

var scriptSchema = &Schema{
	Name:       "topic_script",
	Definition: object([]string{"script"}, map[string]any{"script": map[string]any{"type": "string", "minLength": 1}}),
}
