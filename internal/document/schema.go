package document

import (
	"encoding/json"
	"os"
	"sort"
)

// Schema is a JSON-Schema-shaped object describing the data a template expects.
type Schema map[string]interface{}

// TemplateInfo is the descriptive metadata of a template.
type TemplateInfo map[string]interface{}

// NewSchema returns the default empty object schema.
func NewSchema() Schema {
	return Schema{
		"type":       "object",
		"properties": map[string]interface{}{},
		"required":   []string{},
	}
}

// Properties returns the properties map, creating it when absent.
func (s Schema) Properties() map[string]interface{} {
	if props, ok := s["properties"].(map[string]interface{}); ok {
		return props
	}
	props := map[string]interface{}{}
	s["properties"] = props
	return props
}

// Required returns the required keys whatever their decoded representation.
func (s Schema) Required() []string {
	switch req := s["required"].(type) {
	case []string:
		return req
	case []interface{}:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if str, ok := r.(string); ok {
				out = append(out, str)
			}
		}
		return out
	}
	return nil
}

// AddRequiredString registers key as a required string property.
func (s Schema) AddRequiredString(key string) {
	props := s.Properties()
	if _, exists := props[key]; !exists {
		props[key] = map[string]interface{}{"type": "string"}
	}
	for _, r := range s.Required() {
		if r == key {
			return
		}
	}
	s["required"] = append(s.Required(), key)
}

// InferSchema collects every placeholder key in texts as a required string property.
func InferSchema(texts []string) Schema {
	seen := map[string]struct{}{}
	for _, t := range texts {
		for _, k := range FindPlaceholders(t) {
			seen[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	schema := NewSchema()
	for _, k := range keys {
		schema.AddRequiredString(k)
	}
	return schema
}

// readSidecar decodes a JSON object file. A missing file is reported as (nil, nil).
func readSidecar(path string) (map[string]interface{}, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// mergeTop copies the top-level keys of src over dst.
func mergeTop(dst, src map[string]interface{}) {
	for k, v := range src {
		dst[k] = v
	}
}
